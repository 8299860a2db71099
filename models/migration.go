package models

import (
	"encoding/json"
	"time"
)

// ConflictResolution selects how migration treats a guest record whose natural
// identity already exists under the target account.
type ConflictResolution string

const (
	// PreferGuest keeps the guest payload and overwrites the account record.
	PreferGuest ConflictResolution = "prefer_guest"
	// PreferServer keeps the account record and drops the guest copy.
	PreferServer ConflictResolution = "prefer_server"
	// MergeAll merges the two payloads field by field; the record with the
	// newer UpdatedAt is the merge base and wins on every populated field.
	MergeAll ConflictResolution = "merge_all"
	// AskUser records the conflict as deferred and leaves the guest record in
	// place for a later interactive pass.
	AskUser ConflictResolution = "ask_user"
)

// MigrationOptions controls one guest-to-account migration run.
type MigrationOptions struct {
	ConflictResolution    ConflictResolution `json:"conflict_resolution"`
	PreserveTimestamps    bool               `json:"preserve_timestamps"`
	BackupBeforeMigration bool               `json:"backup_before_migration"`
}

// Conflict describes one record that existed on both sides and how it was
// resolved.
type Conflict struct {
	EntityType EntityType      `json:"entity_type"`
	RecordID   string          `json:"record_id"`
	GuestData  json.RawMessage `json:"guest_data"`
	ServerData json.RawMessage `json:"server_data"`
	Resolution string          `json:"resolution"`
}

// MigrationItemError is a per-record failure collected during migration. It
// never aborts the remaining items.
type MigrationItemError struct {
	EntityType EntityType `json:"entity_type"`
	RecordID   string     `json:"record_id"`
	Reason     string     `json:"reason"`
}

// MigrationResult is the outcome of one Migrate call. Success is true only
// when zero errors were recorded; on any error the guest data is untouched.
type MigrationResult struct {
	MigratedCounts map[EntityType]int   `json:"migrated_counts"`
	Conflicts      []Conflict           `json:"conflicts"`
	Errors         []MigrationItemError `json:"errors"`
	Success        bool                 `json:"success"`
}

// MigrationStatus is the durable completion marker that makes Migrate
// idempotent per target user.
type MigrationStatus struct {
	Completed   bool       `json:"completed"`
	UserID      string     `json:"user_id,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// GuestSnapshot is the full guest bundle written to the backup store before a
// migration mutates anything.
type GuestSnapshot struct {
	GuestID string                      `json:"guest_id"`
	TakenAt time.Time                   `json:"taken_at"`
	Records map[EntityType][]LocalRecord `json:"records"`
}
