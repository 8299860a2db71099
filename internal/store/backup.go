package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/stillpoint-app/stillpoint/internal/config"
	"github.com/stillpoint-app/stillpoint/internal/logger"
	"github.com/stillpoint-app/stillpoint/models"
)

type fileBackupStore struct {
	dir    string
	logger *logger.Logger
}

// NewFileBackupStore builds a [BackupStore] that writes guest snapshots as
// indented JSON files under cfg.Dir. Snapshots live outside the sqlite file on
// purpose: a migration bug cannot reach them through the database handle.
func NewFileBackupStore(cfg config.Backups, logger *logger.Logger) BackupStore {
	return &fileBackupStore{
		dir:    cfg.Dir,
		logger: logger,
	}
}

func (f *fileBackupStore) Write(ctx context.Context, snap models.GuestSnapshot) (string, error) {
	log := logger.FromContext(ctx)

	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}

	payload, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode guest snapshot: %w", err)
	}

	name := fmt.Sprintf("backup-%s-%d.json", snap.GuestID, snap.TakenAt.Unix())
	path := filepath.Join(f.dir, name)

	if err = os.WriteFile(path, payload, 0o600); err != nil {
		log.Err(err).
			Str("func", "fileBackupStore.Write").
			Str("path", path).
			Msg("failed to write guest snapshot")
		return "", fmt.Errorf("write guest snapshot: %w", err)
	}

	log.Debug().
		Str("func", "fileBackupStore.Write").
		Str("path", path).
		Msg("guest snapshot written")
	return path, nil
}

func (f *fileBackupStore) Load(ctx context.Context, path string) (models.GuestSnapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.GuestSnapshot{}, fmt.Errorf("read guest snapshot: %w", err)
	}

	var snap models.GuestSnapshot
	if err = json.Unmarshal(data, &snap); err != nil {
		return models.GuestSnapshot{}, fmt.Errorf("decode guest snapshot: %w", err)
	}

	return snap, nil
}
