package store

import (
	"context"
	"fmt"

	"github.com/stillpoint-app/stillpoint/internal/config"
	"github.com/stillpoint-app/stillpoint/internal/logger"
)

// Storages groups all local repositories into a single value that can be
// passed around the service layer.
type Storages struct {
	// Records is the sqlite repository for domain records and their sync
	// queue entries.
	Records RecordRepository
	// Queue is the drain-side view of the sync queue ledger.
	Queue QueueRepository
	// Sessions persists SOS sessions and the active-session pointer.
	Sessions SessionRepository
	// State owns the durable single-value slots (guest id, migration status,
	// last sync time).
	State StateRepository
	// Backups writes pre-migration guest snapshots to the filesystem.
	Backups BackupStore
}

// NewStorages initialises the local storage layer:
//  1. Opens the sqlite database, creating the file if needed.
//  2. Runs pending schema migrations via [DB.Migrate].
//  3. Wires every repository to the shared connection.
func NewStorages(cfg config.Storage, logger *logger.Logger) (*Storages, error) {
	logger.Info().Msg("creating new storages...")

	db, err := NewConnectSQLite(context.Background(), cfg.DB, logger)
	if err != nil {
		return nil, fmt.Errorf("sqlite connection error: %w", err)
	}

	if err := db.Migrate(); err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return &Storages{
		Records:  NewRecordRepository(db, logger),
		Queue:    NewQueueRepository(db, logger),
		Sessions: NewSessionRepository(db, logger),
		State:    NewStateRepository(db, logger),
		Backups:  NewFileBackupStore(cfg.Backups, logger),
	}, nil
}
