package adapter

import (
	"context"

	"github.com/stillpoint-app/stillpoint/models"
)

//go:generate mockgen -source=interfaces.go -destination=../mock/adapter_mock.go -package=mock

// RemoteStore is the narrow contract the backend exposes for domain records.
// All three operations are idempotent keyed by record id, so an interrupted
// drain can safely repeat them.
type RemoteStore interface {
	// Insert uploads a record created locally.
	Insert(ctx context.Context, entityType models.EntityType, rec models.LocalRecord) error
	// Upsert uploads the latest state of a locally updated record.
	Upsert(ctx context.Context, entityType models.EntityType, rec models.LocalRecord) error
	// Remove deletes the record remotely. Removing an id the backend has
	// never seen is a success.
	Remove(ctx context.Context, entityType models.EntityType, id string) error
	// Ping probes the backend health endpoint. Used by the connectivity
	// monitor.
	Ping(ctx context.Context) error
	// SetToken installs (or clears, with "") the bearer token attached to
	// every subsequent request.
	SetToken(token string)
}

// Connectivity is the boolean online/offline signal the sync processor
// consumes.
type Connectivity interface {
	IsOnline() bool
	// Subscribe returns a channel that receives every online/offline edge
	// transition. The channel is never closed.
	Subscribe() <-chan bool
}
