package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// SyncState describes how a locally stored record relates to the remote store.
type SyncState string

const (
	// SyncStatePending marks a record whose latest local mutation has not yet
	// been confirmed by the remote store.
	SyncStatePending SyncState = "pending"
	// SyncStateSynced marks a record whose latest local mutation was accepted
	// by the remote store.
	SyncStateSynced SyncState = "synced"
	// SyncStateFailed marks a record whose remote write was abandoned after the
	// retry cap. Visible to the UI as "not backed up".
	SyncStateFailed SyncState = "failed"
)

// EntityType identifies the domain collection a record belongs to.
type EntityType string

const (
	EntityMood        EntityType = "mood"
	EntityExercise    EntityType = "exercise"
	EntityPreferences EntityType = "preferences"
	EntityFavorites   EntityType = "favorites"
)

// AllEntityTypes returns every entity type in a fixed order. Batch operations
// (migration, eviction) iterate over this slice so their output is stable.
func AllEntityTypes() []EntityType {
	return []EntityType{EntityMood, EntityExercise, EntityPreferences, EntityFavorites}
}

// ValidEntityType reports whether t names a known entity collection.
func ValidEntityType(t EntityType) bool {
	switch t {
	case EntityMood, EntityExercise, EntityPreferences, EntityFavorites:
		return true
	}
	return false
}

// LocalRecord wraps one domain payload with the sync metadata the local store
// maintains for it. ID is generated on the device (UUIDv7) and never changes.
// OwnerID is a server user id or a guest id; it changes exactly once, during
// guest-to-account migration.
type LocalRecord struct {
	ID         string          `json:"id"`
	OwnerID    string          `json:"owner_id"`
	EntityType EntityType      `json:"entity_type"`
	Payload    json.RawMessage `json:"payload"`
	SyncState  SyncState       `json:"sync_state"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// DecodePayload unmarshals the record payload into v.
func (r *LocalRecord) DecodePayload(v any) error {
	if len(r.Payload) == 0 {
		return fmt.Errorf("record %s has empty payload", r.ID)
	}
	if err := json.Unmarshal(r.Payload, v); err != nil {
		return fmt.Errorf("decode payload of record %s: %w", r.ID, err)
	}
	return nil
}

// EncodePayload marshals a typed payload into the raw form stored on a record.
func EncodePayload(v any) (json.RawMessage, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return raw, nil
}
