// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"dario.cat/mergo"

	"github.com/stillpoint-app/stillpoint/internal/logger"
	"github.com/stillpoint-app/stillpoint/internal/store"
	"github.com/stillpoint-app/stillpoint/internal/utils"
	"github.com/stillpoint-app/stillpoint/models"
)

type migrationService struct {
	records store.RecordRepository
	state   store.StateRepository
	backups store.BackupStore
	clock   utils.Clock
	logger  *logger.Logger
}

// NewMigrationService builds the guest-to-account migration engine.
func NewMigrationService(records store.RecordRepository, state store.StateRepository, backups store.BackupStore, clock utils.Clock, log *logger.Logger) MigrationService {
	return &migrationService{
		records: records,
		state:   state,
		backups: backups,
		clock:   clock,
		logger:  log,
	}
}

func (m *migrationService) HasGuestData(ctx context.Context) (bool, error) {
	guestID, err := m.state.GetGuestID(ctx)
	if err != nil {
		return false, fmt.Errorf("get guest id: %w", err)
	}
	if guestID == "" {
		return false, nil
	}

	recs, err := m.records.List(ctx, guestID, store.RecordFilter{Limit: 1})
	if err != nil {
		return false, fmt.Errorf("probe guest records: %w", err)
	}
	return len(recs) > 0, nil
}

func (m *migrationService) Status(ctx context.Context) (models.MigrationStatus, error) {
	status, err := m.state.GetMigrationStatus(ctx)
	if err != nil {
		return models.MigrationStatus{}, fmt.Errorf("get migration status: %w", err)
	}
	return status, nil
}

func (m *migrationService) Migrate(ctx context.Context, targetUserID string, opts models.MigrationOptions) (models.MigrationResult, error) {
	result := models.MigrationResult{MigratedCounts: make(map[models.EntityType]int)}

	if targetUserID == "" {
		return result, ErrNoTargetUser
	}
	if !validResolution(opts.ConflictResolution) {
		return result, fmt.Errorf("%w: %q", ErrUnknownResolution, opts.ConflictResolution)
	}

	status, err := m.state.GetMigrationStatus(ctx)
	if err != nil {
		return result, fmt.Errorf("get migration status: %w", err)
	}
	if status.Completed {
		if status.UserID == targetUserID {
			// Idempotent: the same account asking again is a success with
			// nothing left to move.
			result.Success = true
			return result, nil
		}
		return result, fmt.Errorf("%w: completed for %s", ErrMigrationCompleted, status.UserID)
	}

	guestID, err := m.state.GetGuestID(ctx)
	if err != nil {
		return result, fmt.Errorf("get guest id: %w", err)
	}
	if guestID == targetUserID {
		return result, ErrMigrationToGuest
	}

	now := m.clock.Now().UTC()

	guestRecords, err := m.collectByType(ctx, guestID)
	if err != nil {
		return result, err
	}

	if opts.BackupBeforeMigration {
		snap := models.GuestSnapshot{GuestID: guestID, TakenAt: now, Records: guestRecords}
		path, backupErr := m.backups.Write(ctx, snap)
		if backupErr != nil {
			return result, fmt.Errorf("backup guest data: %w", backupErr)
		}
		m.logger.Info().
			Str("func", "migrationService.Migrate").
			Str("path", path).
			Msg("guest snapshot written")
	}

	targetIdx, err := m.indexTargetRecords(ctx, targetUserID)
	if err != nil {
		return result, err
	}

	tx, err := m.records.Begin(ctx)
	if err != nil {
		return result, fmt.Errorf("begin migration transaction: %w", err)
	}

	for _, entityType := range models.AllEntityTypes() {
		for _, rec := range guestRecords[entityType] {
			m.migrateRecord(ctx, tx, rec, targetIdx, targetUserID, opts, now, &result)
		}
	}

	// Any per-item error aborts the whole batch: the rollback puts every
	// guest row back exactly as it was, so the user can retry.
	if len(result.Errors) > 0 {
		if rbErr := tx.Rollback(); rbErr != nil {
			return result, fmt.Errorf("rollback failed migration: %w", rbErr)
		}
		m.logger.Warn().
			Str("func", "migrationService.Migrate").
			Int("errors", len(result.Errors)).
			Msg("migration rolled back, guest data preserved")
		return result, nil
	}

	if err = tx.Commit(); err != nil {
		return result, fmt.Errorf("commit migration: %w", err)
	}

	completedAt := now
	status = models.MigrationStatus{Completed: true, UserID: targetUserID, CompletedAt: &completedAt}
	if err = m.state.SetMigrationStatus(ctx, status); err != nil {
		return result, fmt.Errorf("mark migration complete: %w", err)
	}

	result.Success = true

	m.logger.Info().
		Str("func", "migrationService.Migrate").
		Str("target_user_id", targetUserID).
		Int("conflicts", len(result.Conflicts)).
		Msg("migration complete")

	return result, nil
}

// migrateRecord applies one guest record inside the open transaction. Failures
// are collected into result.Errors instead of propagating, so one bad record
// never blocks the rest of the batch.
func (m *migrationService) migrateRecord(
	ctx context.Context,
	tx store.RecordTx,
	rec models.LocalRecord,
	targetIdx map[string]models.LocalRecord,
	targetUserID string,
	opts models.MigrationOptions,
	now time.Time,
	result *models.MigrationResult,
) {
	itemErr := func(reason string) {
		result.Errors = append(result.Errors, models.MigrationItemError{
			EntityType: rec.EntityType,
			RecordID:   rec.ID,
			Reason:     reason,
		})
	}

	updatedAt := now
	if opts.PreserveTimestamps {
		updatedAt = rec.UpdatedAt
	}

	key, err := naturalKey(rec)
	if err != nil {
		itemErr(err.Error())
		return
	}

	target, conflicted := targetIdx[key]
	if !conflicted {
		if err = tx.SetOwner(ctx, rec.ID, targetUserID, updatedAt); err != nil {
			itemErr(fmt.Sprintf("re-own record: %v", err))
			return
		}
		result.MigratedCounts[rec.EntityType]++
		return
	}

	conflict := models.Conflict{
		EntityType: rec.EntityType,
		RecordID:   target.ID,
		GuestData:  rec.Payload,
		ServerData: target.Payload,
	}

	switch opts.ConflictResolution {
	case models.PreferGuest:
		if err = tx.SavePayload(ctx, target.ID, rec.Payload, updatedAt); err != nil {
			itemErr(fmt.Sprintf("overwrite account record: %v", err))
			return
		}
		if err = tx.Delete(ctx, rec.ID); err != nil {
			itemErr(fmt.Sprintf("drop migrated guest copy: %v", err))
			return
		}
		conflict.Resolution = string(models.PreferGuest)
		result.MigratedCounts[rec.EntityType]++

	case models.PreferServer:
		if err = tx.Delete(ctx, rec.ID); err != nil {
			itemErr(fmt.Sprintf("drop guest copy: %v", err))
			return
		}
		conflict.Resolution = string(models.PreferServer)

	case models.MergeAll:
		merged, mergeErr := mergePayloads(rec, target)
		if mergeErr != nil {
			itemErr(fmt.Sprintf("merge payloads: %v", mergeErr))
			return
		}
		if err = tx.SavePayload(ctx, target.ID, merged, updatedAt); err != nil {
			itemErr(fmt.Sprintf("save merged record: %v", err))
			return
		}
		if err = tx.Delete(ctx, rec.ID); err != nil {
			itemErr(fmt.Sprintf("drop merged guest copy: %v", err))
			return
		}
		conflict.Resolution = string(models.MergeAll)
		result.MigratedCounts[rec.EntityType]++

	case models.AskUser:
		// Left for an interactive pass: the guest record stays where it is
		// and counts neither as migrated nor as an error.
		conflict.Resolution = "deferred"
	}

	result.Conflicts = append(result.Conflicts, conflict)
}

func (m *migrationService) collectByType(ctx context.Context, ownerID string) (map[models.EntityType][]models.LocalRecord, error) {
	out := make(map[models.EntityType][]models.LocalRecord, len(models.AllEntityTypes()))
	for _, entityType := range models.AllEntityTypes() {
		recs, err := m.records.List(ctx, ownerID, store.RecordFilter{EntityType: entityType})
		if err != nil {
			return nil, fmt.Errorf("list %s records of %s: %w", entityType, ownerID, err)
		}
		out[entityType] = recs
	}
	return out, nil
}

func (m *migrationService) indexTargetRecords(ctx context.Context, targetUserID string) (map[string]models.LocalRecord, error) {
	recs, err := m.records.List(ctx, targetUserID, store.RecordFilter{})
	if err != nil {
		return nil, fmt.Errorf("list account records: %w", err)
	}

	idx := make(map[string]models.LocalRecord, len(recs))
	for _, rec := range recs {
		key, keyErr := naturalKey(rec)
		if keyErr != nil {
			continue
		}
		idx[key] = rec
	}
	return idx, nil
}

// naturalKey computes the identity migration uses to detect that a guest
// record and an account record are "the same thing": preferences are a
// per-owner singleton, a favorite is identified by what it points at, and
// mood logs and exercise sessions only ever collide on the record id itself.
func naturalKey(rec models.LocalRecord) (string, error) {
	switch rec.EntityType {
	case models.EntityPreferences:
		return string(models.EntityPreferences), nil
	case models.EntityFavorites:
		var fav models.Favorite
		if err := rec.DecodePayload(&fav); err != nil {
			return "", err
		}
		return fmt.Sprintf("%s/%s/%s", models.EntityFavorites, fav.Kind, fav.TargetID), nil
	default:
		return fmt.Sprintf("%s/%s", rec.EntityType, rec.ID), nil
	}
}

// mergePayloads combines two conflicting payloads field by field. The record
// with the newer UpdatedAt is the merge destination, so its populated fields
// win; absent or zero fields are filled from the older record.
func mergePayloads(a, b models.LocalRecord) (json.RawMessage, error) {
	newer, older := a, b
	if b.UpdatedAt.After(a.UpdatedAt) {
		newer, older = b, a
	}

	var dst, src map[string]any
	if err := newer.DecodePayload(&dst); err != nil {
		return nil, err
	}
	if err := older.DecodePayload(&src); err != nil {
		return nil, err
	}

	if err := mergo.Merge(&dst, src); err != nil {
		return nil, fmt.Errorf("merge maps: %w", err)
	}

	return models.EncodePayload(dst)
}

func validResolution(r models.ConflictResolution) bool {
	switch r {
	case models.PreferGuest, models.PreferServer, models.MergeAll, models.AskUser:
		return true
	}
	return false
}
