package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stillpoint-app/stillpoint/internal/logger"
	"github.com/stillpoint-app/stillpoint/models"
)

type queueRepository struct {
	*DB
	logger *logger.Logger
}

// NewQueueRepository builds the sqlite-backed [QueueRepository].
func NewQueueRepository(db *DB, logger *logger.Logger) QueueRepository {
	return &queueRepository{
		DB:     db,
		logger: logger,
	}
}

func (q *queueRepository) List(ctx context.Context, limit int) ([]models.SyncQueueItem, error) {
	log := logger.FromContext(ctx)

	rows, err := q.DB.QueryContext(ctx, listQueueItems)
	if err != nil {
		log.Err(err).
			Str("func", "queueRepository.List").
			Msg("failed to query sync queue")
		return nil, fmt.Errorf("failed to query sync queue: %w", err)
	}
	defer rows.Close()

	var items []models.SyncQueueItem
	for rows.Next() {
		if limit > 0 && len(items) >= limit {
			break
		}

		var item models.SyncQueueItem
		var snapshot sql.NullString

		scanErr := rows.Scan(
			&item.Seq,
			&item.ID,
			&item.EntityType,
			&item.Action,
			&item.RecordID,
			&snapshot,
			&item.EnqueuedAt,
			&item.RetryCount,
		)
		if scanErr != nil {
			log.Err(scanErr).
				Str("func", "queueRepository.List").
				Msg("failed to scan sync queue row")
			return nil, fmt.Errorf("failed to scan sync queue row: %w", scanErr)
		}

		if snapshot.Valid && snapshot.String != "" {
			item.PayloadSnapshot = json.RawMessage(snapshot.String)
		}
		items = append(items, item)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		log.Err(rowsErr).
			Str("func", "queueRepository.List").
			Msg("error occurred during rows iteration")
		return nil, fmt.Errorf("error iterating sync queue rows: %w", rowsErr)
	}

	return items, nil
}

func (q *queueRepository) Remove(ctx context.Context, seq int64) error {
	log := logger.FromContext(ctx)

	_, err := q.DB.ExecContext(ctx, removeQueueItem, seq)
	if err != nil {
		log.Err(err).
			Str("func", "queueRepository.Remove").
			Int64("seq", seq).
			Msg("failed to remove sync queue item")
		return fmt.Errorf("failed to remove sync queue item (seq=%d): %w", seq, err)
	}

	return nil
}

func (q *queueRepository) IncrementRetry(ctx context.Context, seq int64) (int, error) {
	log := logger.FromContext(ctx)

	result, err := q.DB.ExecContext(ctx, incrementQueueRetry, seq)
	if err != nil {
		log.Err(err).
			Str("func", "queueRepository.IncrementRetry").
			Int64("seq", seq).
			Msg("failed to increment retry count")
		return 0, fmt.Errorf("failed to increment retry count (seq=%d): %w", seq, err)
	}

	if affected, raErr := result.RowsAffected(); raErr == nil && affected == 0 {
		return 0, fmt.Errorf("failed to increment retry count: item not found (seq=%d)", seq)
	}

	var count int
	if err = q.DB.QueryRowContext(ctx, getQueueRetry, seq).Scan(&count); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("failed to read retry count: item not found (seq=%d)", seq)
		}
		return 0, fmt.Errorf("failed to read retry count (seq=%d): %w", seq, err)
	}

	return count, nil
}

func (q *queueRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := q.DB.QueryRowContext(ctx, countQueueItems).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count sync queue items: %w", err)
	}
	return count, nil
}
