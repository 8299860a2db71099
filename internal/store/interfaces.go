package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/stillpoint-app/stillpoint/models"
)

// RecordFilter narrows List results. Zero fields are ignored.
type RecordFilter struct {
	EntityType models.EntityType
	Since      *time.Time
	Limit      int
}

// RecordRepository is the low-level local store for [models.LocalRecord].
// Mutations that must be observable atomically (record write + sync queue
// entry) run inside a single sqlite transaction.
type RecordRepository interface {
	// Insert writes a new record and its create queue item in one transaction.
	Insert(ctx context.Context, rec models.LocalRecord, queued models.SyncQueueItem) error
	// Update rewrites payload, sync state, and updated_at of an existing
	// record and appends the update queue item in one transaction.
	// Returns [ErrRecordNotFound] if the id is unknown.
	Update(ctx context.Context, rec models.LocalRecord, queued models.SyncQueueItem) error
	// Delete removes the record and appends the delete queue item in one
	// transaction. Returns [ErrRecordNotFound] if the id is unknown.
	Delete(ctx context.Context, id string, queued models.SyncQueueItem) error
	Get(ctx context.Context, id string) (models.LocalRecord, error)
	// List returns the current snapshot of the owner's records, newest first.
	// Re-querying always reflects the latest committed state.
	List(ctx context.Context, ownerID string, f RecordFilter) ([]models.LocalRecord, error)
	SetSyncState(ctx context.Context, id string, state models.SyncState) error
	CountByType(ctx context.Context, ownerID string, t models.EntityType) (int, error)
	// EvictSynced deletes the n oldest synced records of one entity type.
	// Pending and failed records are never touched.
	EvictSynced(ctx context.Context, ownerID string, t models.EntityType, n int) (int, error)
	// Begin opens a multi-record transaction. Used by the migration engine so
	// a batch either fully applies or leaves guest data untouched.
	Begin(ctx context.Context) (RecordTx, error)
}

// RecordTx is an open transaction over the records table.
type RecordTx interface {
	SetOwner(ctx context.Context, id, ownerID string, updatedAt time.Time) error
	SavePayload(ctx context.Context, id string, payload json.RawMessage, updatedAt time.Time) error
	Delete(ctx context.Context, id string) error
	Commit() error
	Rollback() error
}

// QueueRepository reads and maintains the append-only sync queue ledger.
// Items are inserted by [RecordRepository] inside record transactions; this
// interface covers the drain side.
type QueueRepository interface {
	// List returns queue items in Seq order, oldest first. limit <= 0 returns
	// the whole queue.
	List(ctx context.Context, limit int) ([]models.SyncQueueItem, error)
	Remove(ctx context.Context, seq int64) error
	// IncrementRetry bumps the retry counter and returns the new value.
	IncrementRetry(ctx context.Context, seq int64) (int, error)
	Count(ctx context.Context) (int, error)
}

// SessionRepository persists SOS sessions and the single active-session
// pointer.
type SessionRepository interface {
	// Save upserts the session snapshot.
	Save(ctx context.Context, s models.SOSSession) error
	Get(ctx context.Context, id string) (models.SOSSession, error)
	// GetActive resolves the active-session pointer. Returns
	// [ErrSessionNotFound] when no pointer is set or the session is gone.
	GetActive(ctx context.Context) (models.SOSSession, error)
	SetActive(ctx context.Context, id string) error
	ClearActive(ctx context.Context) error
	ListHistory(ctx context.Context, limit int) ([]models.SOSSession, error)
	// EvictHistory deletes ended sessions beyond keep, oldest first.
	EvictHistory(ctx context.Context, keep int) (int, error)
}

// StateRepository owns the durable single-value slots.
type StateRepository interface {
	GetMigrationStatus(ctx context.Context) (models.MigrationStatus, error)
	SetMigrationStatus(ctx context.Context, st models.MigrationStatus) error
	GetLastSyncAt(ctx context.Context) (*time.Time, error)
	SetLastSyncAt(ctx context.Context, t time.Time) error
	GetGuestID(ctx context.Context) (string, error)
	SetGuestID(ctx context.Context, id string) error
}

// BackupStore writes namespaced guest snapshots outside the database so a
// failed migration can never damage the only copy of guest data.
type BackupStore interface {
	Write(ctx context.Context, snap models.GuestSnapshot) (path string, err error)
	Load(ctx context.Context, path string) (models.GuestSnapshot, error)
}
