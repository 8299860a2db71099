package service

import (
	"context"
	"time"

	"github.com/stillpoint-app/stillpoint/internal/store"
	"github.com/stillpoint-app/stillpoint/models"
)

// RecordService is the only write path for domain records. It enforces the
// record invariants in one place: ids are immutable, every local mutation
// leaves the record pending and a matching sync queue item behind, and the
// per-entity record cap is applied after each create.
type RecordService interface {
	// Create validates the entity type, assigns a new UUIDv7 id, persists the
	// record as pending together with its create queue item, and evicts the
	// oldest synced records past the per-entity cap.
	Create(ctx context.Context, ownerID string, entityType models.EntityType, payload []byte) (models.LocalRecord, error)

	// Update replaces the payload of an existing record. ID and CreatedAt are
	// preserved, UpdatedAt is refreshed, and the sync state resets to pending.
	// Returns store.ErrRecordNotFound for an unknown id.
	Update(ctx context.Context, id string, payload []byte) (models.LocalRecord, error)

	// Delete removes the record locally and enqueues a delete item carrying
	// the last payload snapshot. Returns store.ErrRecordNotFound for an
	// unknown id.
	Delete(ctx context.Context, id string) error

	// Get loads one record by id.
	Get(ctx context.Context, id string) (models.LocalRecord, error)

	// List returns the owner's records, newest first, narrowed by filter.
	List(ctx context.Context, ownerID string, filter store.RecordFilter) ([]models.LocalRecord, error)
}

// SyncService drains the local sync queue against the remote store.
type SyncService interface {
	// Drain processes queue items oldest-first. It is a no-op (zero report,
	// nil error) while offline, while the current identity is a guest, or
	// while another drain is already in flight. Transient item failures are
	// retried on later passes up to the retry cap, after which the item is
	// dropped and its record marked failed.
	Drain(ctx context.Context) (models.SyncReport, error)

	// GetSyncStatus returns the snapshot the UI polls for its sync badge.
	GetSyncStatus(ctx context.Context) (models.SyncStatus, error)

	// NotifyLocalChange triggers an asynchronous drain if the client is
	// online. Called by the record service after every local mutation.
	NotifyLocalChange()
}

// SyncJob is the background worker that keeps the queue drained. It drains on
// a fixed interval and immediately on every offline→online transition.
type SyncJob interface {
	// Start launches the background goroutine. A non-positive interval
	// defaults to 5 minutes. Any previously running job is stopped first.
	Start(ctx context.Context, interval time.Duration)

	// Stop signals the goroutine to exit and blocks until it has terminated.
	Stop()
}

// StartOptions configures a new SOS session.
type StartOptions struct {
	// ExerciseID optionally attaches a guided exercise to the session.
	ExerciseID *string
	// Notes seeds the session notes, e.g. what triggered the SOS.
	Notes string
}

// SessionService is the crisis-session state machine: Idle → Active → Ended.
// All mutating operations are serialized; timer behavior is driven through
// Tick so tests can advance a simulated clock.
type SessionService interface {
	// Start begins a new session. Any currently active session is force-ended
	// with OutcomeInterrupted first.
	Start(ctx context.Context, opts StartOptions) (models.SOSSession, error)

	// Resume reloads the persisted active session after a restart. Sessions
	// older than the configured max age are force-ended as interrupted and
	// nil is returned. Returns (nil, nil) when no active session exists.
	Resume(ctx context.Context) (*models.SOSSession, error)

	// UpdateProgress persists exercise progress and refreshes LastActiveAt.
	// Returns ErrNoActiveSession when no session is active.
	UpdateProgress(ctx context.Context, progress models.ExerciseProgress) error

	// AddCheckIn appends a check-in to the active session. Check-ins are
	// never reordered or deduplicated. A need_help response ends the session
	// with OutcomeEscalated and emits it on the escalation channel.
	AddCheckIn(ctx context.Context, checkIn models.CheckIn) error

	// End finishes the active session with the given outcome, clears the
	// active pointer, and evicts history past the cap.
	End(ctx context.Context, outcome models.SessionOutcome, notes string) error

	// Current returns the active session, or nil when idle.
	Current(ctx context.Context) (*models.SOSSession, error)

	// Escalations is the signal collaborators observe to route the user to
	// crisis resources. The channel is buffered and never closed.
	Escalations() <-chan models.SOSSession

	// Tick advances the timer state: auto-save when due, a synthesized auto
	// check-in when the window elapsed without a manual one, and a force-end
	// (interrupted) once the session exceeds the max age.
	Tick(ctx context.Context, now time.Time)
}

// SessionRunner drives SessionService.Tick on a wall-clock ticker.
type SessionRunner interface {
	Start(ctx context.Context)
	Stop()
}

// MigrationService moves guest-scoped records to an account owner. Guest data
// is never deleted unless the whole batch applied cleanly.
type MigrationService interface {
	// HasGuestData reports whether any record is still owned by the guest id.
	HasGuestData(ctx context.Context) (bool, error)

	// Migrate re-owns every guest record to targetUserID, resolving natural
	// identity conflicts per opts. Per-item errors are collected into the
	// result and never abort the batch; any error rolls back all mutations so
	// guest data stays intact.
	Migrate(ctx context.Context, targetUserID string, opts models.MigrationOptions) (models.MigrationResult, error)

	// Status returns the durable completion marker.
	Status(ctx context.Context) (models.MigrationStatus, error)
}

// IdentityService tracks whose data the record store scopes to: a backend
// user id after sign-in, otherwise a device-local guest id.
type IdentityService interface {
	// Bootstrap loads the persisted guest id, creating one on first run.
	Bootstrap(ctx context.Context) error

	// CurrentOwner returns the signed-in user id, or the guest id.
	CurrentOwner() string

	// IsGuest reports whether no user is signed in.
	IsGuest() bool

	// SignIn extracts the user id from the backend token's subject claim and
	// installs the token on the remote adapter.
	SignIn(token string) (userID string, err error)

	// SignOut clears the user id and the adapter token, reverting the owner
	// scope to the guest id.
	SignOut()
}
