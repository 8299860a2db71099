package models

import (
	"encoding/json"
	"time"
)

// SyncAction is the remote operation a queue item asks for.
type SyncAction string

const (
	SyncActionCreate SyncAction = "create"
	SyncActionUpdate SyncAction = "update"
	SyncActionDelete SyncAction = "delete"
)

// SyncQueueItem is one entry of the append-only ledger of pending remote
// operations. Seq is assigned by the store and grows monotonically; draining
// in Seq order gives FIFO per entity type and per record.
type SyncQueueItem struct {
	Seq             int64           `json:"seq"`
	ID              string          `json:"id"`
	EntityType      EntityType      `json:"entity_type"`
	Action          SyncAction      `json:"action"`
	RecordID        string          `json:"record_id"`
	PayloadSnapshot json.RawMessage `json:"payload_snapshot,omitempty"`
	EnqueuedAt      time.Time       `json:"enqueued_at"`
	RetryCount      int             `json:"retry_count"`
}

// SyncReport summarises one drain pass.
type SyncReport struct {
	Synced int `json:"synced"`
	Failed int `json:"failed"`
}

// SyncStatus is the lightweight snapshot the UI polls for its sync badge.
type SyncStatus struct {
	LastSyncAt   *time.Time `json:"last_sync_at,omitempty"`
	PendingCount int        `json:"pending_count"`
	IsOnline     bool       `json:"is_online"`
}
