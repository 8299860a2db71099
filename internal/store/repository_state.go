package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stillpoint-app/stillpoint/internal/logger"
	"github.com/stillpoint-app/stillpoint/models"
)

// Durable slot keys. One row per slot in app_state.
const (
	migrationStatusSlot = "migration_status"
	lastSyncAtSlot      = "last_sync_at"
	guestIDSlot         = "guest_id"
)

type stateRepository struct {
	*DB
	logger *logger.Logger
}

// NewStateRepository builds the sqlite-backed [StateRepository].
func NewStateRepository(db *DB, logger *logger.Logger) StateRepository {
	return &stateRepository{
		DB:     db,
		logger: logger,
	}
}

func (s *stateRepository) GetMigrationStatus(ctx context.Context) (models.MigrationStatus, error) {
	var st models.MigrationStatus
	if err := getSlot(ctx, s.DB, migrationStatusSlot, &st); err != nil {
		if errors.Is(err, ErrStateNotFound) {
			return models.MigrationStatus{}, nil
		}
		return models.MigrationStatus{}, err
	}
	return st, nil
}

func (s *stateRepository) SetMigrationStatus(ctx context.Context, st models.MigrationStatus) error {
	return setSlot(ctx, s.DB, migrationStatusSlot, st, time.Now())
}

func (s *stateRepository) GetLastSyncAt(ctx context.Context) (*time.Time, error) {
	var t time.Time
	if err := getSlot(ctx, s.DB, lastSyncAtSlot, &t); err != nil {
		if errors.Is(err, ErrStateNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

func (s *stateRepository) SetLastSyncAt(ctx context.Context, t time.Time) error {
	return setSlot(ctx, s.DB, lastSyncAtSlot, t, time.Now())
}

func (s *stateRepository) GetGuestID(ctx context.Context) (string, error) {
	var id string
	if err := getSlot(ctx, s.DB, guestIDSlot, &id); err != nil {
		if errors.Is(err, ErrStateNotFound) {
			return "", nil
		}
		return "", err
	}
	return id, nil
}

func (s *stateRepository) SetGuestID(ctx context.Context, id string) error {
	return setSlot(ctx, s.DB, guestIDSlot, id, time.Now())
}

// getSlot reads one app_state row and unmarshals its JSON value into out.
func getSlot(ctx context.Context, db *DB, key string, out any) error {
	var value string
	err := db.QueryRowContext(ctx, getStateSlot, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrStateNotFound
		}
		return fmt.Errorf("failed to read state slot %q: %w", key, err)
	}

	if err = json.Unmarshal([]byte(value), out); err != nil {
		return fmt.Errorf("failed to decode state slot %q: %w", key, err)
	}
	return nil
}

func setSlot(ctx context.Context, db *DB, key string, value any, at time.Time) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode state slot %q: %w", key, err)
	}

	if _, err = db.ExecContext(ctx, setStateSlot, key, string(raw), at); err != nil {
		return fmt.Errorf("failed to write state slot %q: %w", key, err)
	}
	return nil
}

func clearSlot(ctx context.Context, db *DB, key string) error {
	if _, err := db.ExecContext(ctx, clearStateSlot, key); err != nil {
		return fmt.Errorf("failed to clear state slot %q: %w", key, err)
	}
	return nil
}
