package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/stillpoint-app/stillpoint/internal/logger"
	"github.com/stillpoint-app/stillpoint/models"
)

type recordRepository struct {
	*DB
	logger *logger.Logger
}

// NewRecordRepository builds the sqlite-backed [RecordRepository].
func NewRecordRepository(db *DB, logger *logger.Logger) RecordRepository {
	return &recordRepository{
		DB:     db,
		logger: logger,
	}
}

func (r *recordRepository) Insert(ctx context.Context, rec models.LocalRecord, queued models.SyncQueueItem) error {
	log := logger.FromContext(ctx)

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, insertRecord,
		rec.ID,
		rec.OwnerID,
		rec.EntityType,
		string(rec.Payload),
		rec.SyncState,
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	if err != nil {
		log.Err(err).
			Str("func", "recordRepository.Insert").
			Str("record_id", rec.ID).
			Msg("failed to insert record")
		return fmt.Errorf("failed to insert record (id=%s): %w", rec.ID, err)
	}

	if err = enqueueInTx(ctx, tx, queued); err != nil {
		log.Err(err).
			Str("func", "recordRepository.Insert").
			Str("record_id", rec.ID).
			Msg("failed to enqueue create item")
		return err
	}

	return tx.Commit()
}

func (r *recordRepository) Update(ctx context.Context, rec models.LocalRecord, queued models.SyncQueueItem) error {
	log := logger.FromContext(ctx)

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, updateRecord,
		string(rec.Payload),
		rec.SyncState,
		rec.UpdatedAt,
		rec.ID,
	)
	if err != nil {
		log.Err(err).
			Str("func", "recordRepository.Update").
			Str("record_id", rec.ID).
			Msg("failed to update record")
		return fmt.Errorf("failed to update record (id=%s): %w", rec.ID, err)
	}
	if affected, raErr := result.RowsAffected(); raErr == nil && affected == 0 {
		return ErrRecordNotFound
	}

	if err = enqueueInTx(ctx, tx, queued); err != nil {
		log.Err(err).
			Str("func", "recordRepository.Update").
			Str("record_id", rec.ID).
			Msg("failed to enqueue update item")
		return err
	}

	return tx.Commit()
}

func (r *recordRepository) Delete(ctx context.Context, id string, queued models.SyncQueueItem) error {
	log := logger.FromContext(ctx)

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, deleteRecord, id)
	if err != nil {
		log.Err(err).
			Str("func", "recordRepository.Delete").
			Str("record_id", id).
			Msg("failed to delete record")
		return fmt.Errorf("failed to delete record (id=%s): %w", id, err)
	}
	if affected, raErr := result.RowsAffected(); raErr == nil && affected == 0 {
		return ErrRecordNotFound
	}

	if err = enqueueInTx(ctx, tx, queued); err != nil {
		log.Err(err).
			Str("func", "recordRepository.Delete").
			Str("record_id", id).
			Msg("failed to enqueue delete item")
		return err
	}

	return tx.Commit()
}

func (r *recordRepository) Get(ctx context.Context, id string) (models.LocalRecord, error) {
	log := logger.FromContext(ctx)

	row := r.DB.QueryRowContext(ctx, getRecord, id)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.LocalRecord{}, ErrRecordNotFound
		}
		log.Err(err).
			Str("func", "recordRepository.Get").
			Str("record_id", id).
			Msg("failed to scan record row")
		return models.LocalRecord{}, fmt.Errorf("failed to get record (id=%s): %w", id, err)
	}

	return rec, nil
}

func (r *recordRepository) List(ctx context.Context, ownerID string, f RecordFilter) ([]models.LocalRecord, error) {
	log := logger.FromContext(ctx)

	builder := sq.Select(
		"id", "owner_id", "entity_type", "payload", "sync_state", "created_at", "updated_at",
	).
		From("records").
		Where(sq.Eq{"owner_id": ownerID}).
		OrderBy("updated_at DESC")

	if f.EntityType != "" {
		builder = builder.Where(sq.Eq{"entity_type": f.EntityType})
	}
	if f.Since != nil {
		builder = builder.Where(sq.GtOrEq{"updated_at": *f.Since})
	}
	if f.Limit > 0 {
		builder = builder.Limit(uint64(f.Limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		log.Err(err).
			Str("func", "recordRepository.List").
			Str("owner_id", ownerID).
			Msg("failed to execute list query")
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var items []models.LocalRecord
	for rows.Next() {
		rec, scanErr := scanRecord(rows)
		if scanErr != nil {
			log.Err(scanErr).
				Str("func", "recordRepository.List").
				Str("owner_id", ownerID).
				Msg("failed to scan record row")
			return nil, fmt.Errorf("failed to scan record row: %w", scanErr)
		}
		items = append(items, rec)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		log.Err(rowsErr).
			Str("func", "recordRepository.List").
			Str("owner_id", ownerID).
			Msg("error occurred during rows iteration")
		return nil, fmt.Errorf("error iterating record rows: %w", rowsErr)
	}

	return items, nil
}

func (r *recordRepository) SetSyncState(ctx context.Context, id string, state models.SyncState) error {
	log := logger.FromContext(ctx)

	result, err := r.DB.ExecContext(ctx, setRecordSyncState, state, id)
	if err != nil {
		log.Err(err).
			Str("func", "recordRepository.SetSyncState").
			Str("record_id", id).
			Msg("failed to set sync state")
		return fmt.Errorf("failed to set sync state (id=%s): %w", id, err)
	}
	if affected, raErr := result.RowsAffected(); raErr == nil && affected == 0 {
		return ErrRecordNotFound
	}

	return nil
}

func (r *recordRepository) CountByType(ctx context.Context, ownerID string, t models.EntityType) (int, error) {
	var count int
	err := r.DB.QueryRowContext(ctx, countRecordsByType, ownerID, t).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count records (type=%s): %w", t, err)
	}
	return count, nil
}

func (r *recordRepository) EvictSynced(ctx context.Context, ownerID string, t models.EntityType, n int) (int, error) {
	log := logger.FromContext(ctx)

	if n <= 0 {
		return 0, nil
	}

	result, err := r.DB.ExecContext(ctx, evictSyncedRecords, ownerID, t, n)
	if err != nil {
		log.Err(err).
			Str("func", "recordRepository.EvictSynced").
			Str("owner_id", ownerID).
			Msg("failed to evict synced records")
		return 0, fmt.Errorf("failed to evict synced records (type=%s): %w", t, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get evicted row count: %w", err)
	}
	return int(affected), nil
}

func (r *recordRepository) Begin(ctx context.Context) (RecordTx, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin record tx: %w", err)
	}
	return &recordTx{tx: tx}, nil
}

// recordTx applies a batch of owner/payload changes atomically. The migration
// engine relies on Rollback leaving guest rows byte-identical.
type recordTx struct {
	tx *sql.Tx
}

func (t *recordTx) SetOwner(ctx context.Context, id, ownerID string, updatedAt time.Time) error {
	result, err := t.tx.ExecContext(ctx, setRecordOwner, ownerID, updatedAt, id)
	if err != nil {
		return fmt.Errorf("failed to set owner (id=%s): %w", id, err)
	}
	if affected, raErr := result.RowsAffected(); raErr == nil && affected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (t *recordTx) SavePayload(ctx context.Context, id string, payload json.RawMessage, updatedAt time.Time) error {
	result, err := t.tx.ExecContext(ctx, saveRecordPayload, string(payload), updatedAt, id)
	if err != nil {
		return fmt.Errorf("failed to save payload (id=%s): %w", id, err)
	}
	if affected, raErr := result.RowsAffected(); raErr == nil && affected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (t *recordTx) Delete(ctx context.Context, id string) error {
	result, err := t.tx.ExecContext(ctx, deleteRecord, id)
	if err != nil {
		return fmt.Errorf("failed to delete record in tx (id=%s): %w", id, err)
	}
	if affected, raErr := result.RowsAffected(); raErr == nil && affected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (t *recordTx) Commit() error {
	return t.tx.Commit()
}

func (t *recordTx) Rollback() error {
	return t.tx.Rollback()
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (models.LocalRecord, error) {
	var rec models.LocalRecord
	var payload string

	err := row.Scan(
		&rec.ID,
		&rec.OwnerID,
		&rec.EntityType,
		&payload,
		&rec.SyncState,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return models.LocalRecord{}, err
	}

	rec.Payload = json.RawMessage(payload)
	return rec, nil
}

func enqueueInTx(ctx context.Context, tx *sql.Tx, item models.SyncQueueItem) error {
	_, err := tx.ExecContext(ctx, insertQueueItem,
		item.ID,
		item.EntityType,
		item.Action,
		item.RecordID,
		string(item.PayloadSnapshot),
		item.EnqueuedAt,
		item.RetryCount,
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue sync item (record_id=%s): %w", item.RecordID, err)
	}
	return nil
}
