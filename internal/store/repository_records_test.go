// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stillpoint-app/stillpoint/internal/logger"
	"github.com/stillpoint-app/stillpoint/models"
)

func newTestDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &DB{DB: db, logger: logger.Nop()}, mock
}

var recordColumns = []string{
	"id", "owner_id", "entity_type", "payload", "sync_state", "created_at", "updated_at",
}

func testRecord(id string) models.LocalRecord {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	return models.LocalRecord{
		ID:         id,
		OwnerID:    "guest-1",
		EntityType: models.EntityMood,
		Payload:    json.RawMessage(`{"mood":3}`),
		SyncState:  models.SyncStatePending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func testQueueItem(recordID string, action models.SyncAction) models.SyncQueueItem {
	return models.SyncQueueItem{
		ID:              "q-" + recordID,
		EntityType:      models.EntityMood,
		Action:          action,
		RecordID:        recordID,
		PayloadSnapshot: json.RawMessage(`{"mood":3}`),
		EnqueuedAt:      time.Date(2026, 3, 14, 9, 0, 1, 0, time.UTC),
	}
}

// ── Insert ───────────────────────────────────────────────────────────────────

func TestRecordRepository_Insert_WritesRecordAndQueueItemInOneTx(t *testing.T) {
	db, mock := newTestDB(t)
	repo := NewRecordRepository(db, logger.Nop())

	rec := testRecord("rec-1")
	item := testQueueItem("rec-1", models.SyncActionCreate)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO records").
		WithArgs(rec.ID, rec.OwnerID, rec.EntityType, string(rec.Payload), rec.SyncState, rec.CreatedAt, rec.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO sync_queue").
		WithArgs(item.ID, item.EntityType, item.Action, item.RecordID, string(item.PayloadSnapshot), item.EnqueuedAt, item.RetryCount).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.Insert(context.Background(), rec, item)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepository_Insert_RollsBackWhenEnqueueFails(t *testing.T) {
	db, mock := newTestDB(t)
	repo := NewRecordRepository(db, logger.Nop())

	rec := testRecord("rec-1")
	item := testQueueItem("rec-1", models.SyncActionCreate)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO records").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO sync_queue").
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := repo.Insert(context.Background(), rec, item)

	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ── Update / Delete ──────────────────────────────────────────────────────────

func TestRecordRepository_Update_UnknownID_ReturnsNotFound(t *testing.T) {
	db, mock := newTestDB(t)
	repo := NewRecordRepository(db, logger.Nop())

	rec := testRecord("missing")

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE records SET").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Update(context.Background(), rec, testQueueItem("missing", models.SyncActionUpdate))

	assert.ErrorIs(t, err, ErrRecordNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepository_Delete_RemovesRowAndEnqueues(t *testing.T) {
	db, mock := newTestDB(t)
	repo := NewRecordRepository(db, logger.Nop())

	item := testQueueItem("rec-1", models.SyncActionDelete)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM records").
		WithArgs("rec-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO sync_queue").
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	err := repo.Delete(context.Background(), "rec-1", item)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ── Get / List ───────────────────────────────────────────────────────────────

func TestRecordRepository_Get_ScansRecord(t *testing.T) {
	db, mock := newTestDB(t)
	repo := NewRecordRepository(db, logger.Nop())

	rec := testRecord("rec-1")
	rows := sqlmock.NewRows(recordColumns).AddRow(
		rec.ID, rec.OwnerID, rec.EntityType, string(rec.Payload), rec.SyncState, rec.CreatedAt, rec.UpdatedAt,
	)
	mock.ExpectQuery("SELECT (.+) FROM records").
		WithArgs("rec-1").
		WillReturnRows(rows)

	got, err := repo.Get(context.Background(), "rec-1")

	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

func TestRecordRepository_Get_UnknownID_ReturnsNotFound(t *testing.T) {
	db, mock := newTestDB(t)
	repo := NewRecordRepository(db, logger.Nop())

	mock.ExpectQuery("SELECT (.+) FROM records").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "missing")

	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestRecordRepository_List_AppliesFilter(t *testing.T) {
	db, mock := newTestDB(t)
	repo := NewRecordRepository(db, logger.Nop())

	since := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	rec := testRecord("rec-1")
	rows := sqlmock.NewRows(recordColumns).AddRow(
		rec.ID, rec.OwnerID, rec.EntityType, string(rec.Payload), rec.SyncState, rec.CreatedAt, rec.UpdatedAt,
	)

	// squirrel renders: owner_id = ? AND entity_type = ? AND updated_at >= ? ... LIMIT 5
	mock.ExpectQuery("SELECT (.+) FROM records WHERE owner_id = (.+) LIMIT 5").
		WithArgs("guest-1", models.EntityMood, since).
		WillReturnRows(rows)

	got, err := repo.List(context.Background(), "guest-1", RecordFilter{
		EntityType: models.EntityMood,
		Since:      &since,
		Limit:      5,
	})

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "rec-1", got[0].ID)
}

// ── SetSyncState / EvictSynced ───────────────────────────────────────────────

func TestRecordRepository_SetSyncState(t *testing.T) {
	db, mock := newTestDB(t)
	repo := NewRecordRepository(db, logger.Nop())

	mock.ExpectExec("UPDATE records SET sync_state").
		WithArgs(models.SyncStateSynced, "rec-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SetSyncState(context.Background(), "rec-1", models.SyncStateSynced)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepository_EvictSynced_NonPositiveN_NoQuery(t *testing.T) {
	db, mock := newTestDB(t)
	repo := NewRecordRepository(db, logger.Nop())

	evicted, err := repo.EvictSynced(context.Background(), "guest-1", models.EntityMood, 0)

	require.NoError(t, err)
	assert.Zero(t, evicted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepository_EvictSynced_ReportsAffectedRows(t *testing.T) {
	db, mock := newTestDB(t)
	repo := NewRecordRepository(db, logger.Nop())

	mock.ExpectExec("DELETE FROM records").
		WithArgs("guest-1", models.EntityMood, 3).
		WillReturnResult(sqlmock.NewResult(0, 3))

	evicted, err := repo.EvictSynced(context.Background(), "guest-1", models.EntityMood, 3)

	require.NoError(t, err)
	assert.Equal(t, 3, evicted)
}

// ── RecordTx ─────────────────────────────────────────────────────────────────

func TestRecordTx_RollbackLeavesNothingCommitted(t *testing.T) {
	db, mock := newTestDB(t)
	repo := NewRecordRepository(db, logger.Nop())

	updatedAt := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE records SET owner_id").
		WithArgs("user-9", updatedAt, "rec-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	tx, err := repo.Begin(context.Background())
	require.NoError(t, err)

	require.NoError(t, tx.SetOwner(context.Background(), "rec-1", "user-9", updatedAt))
	require.NoError(t, tx.Rollback())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordTx_SetOwner_UnknownID_ReturnsNotFound(t *testing.T) {
	db, mock := newTestDB(t)
	repo := NewRecordRepository(db, logger.Nop())

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE records SET owner_id").
		WillReturnResult(sqlmock.NewResult(0, 0))

	tx, err := repo.Begin(context.Background())
	require.NoError(t, err)

	err = tx.SetOwner(context.Background(), "missing", "user-9", time.Now())
	assert.ErrorIs(t, err, ErrRecordNotFound)
}
