package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stillpoint-app/stillpoint/internal/logger"
	"github.com/stillpoint-app/stillpoint/internal/store"
	"github.com/stillpoint-app/stillpoint/internal/utils"
	"github.com/stillpoint-app/stillpoint/models"
)

type recordService struct {
	records   store.RecordRepository
	ids       *utils.UUIDGenerator
	clock     utils.Clock
	recordCap int
	onChange  func()
	logger    *logger.Logger
}

// NewRecordService wires the record write path. onChange is invoked after
// every successful mutation; the sync service uses it to trigger a drain.
func NewRecordService(records store.RecordRepository, ids *utils.UUIDGenerator, clock utils.Clock, recordCap int, onChange func(), log *logger.Logger) RecordService {
	if recordCap <= 0 {
		recordCap = 100
	}
	if onChange == nil {
		onChange = func() {}
	}

	return &recordService{
		records:   records,
		ids:       ids,
		clock:     clock,
		recordCap: recordCap,
		onChange:  onChange,
		logger:    log,
	}
}

func (s *recordService) Create(ctx context.Context, ownerID string, entityType models.EntityType, payload []byte) (models.LocalRecord, error) {
	if ownerID == "" {
		return models.LocalRecord{}, ErrEmptyOwner
	}
	if !models.ValidEntityType(entityType) {
		return models.LocalRecord{}, fmt.Errorf("%w: %q", ErrUnknownEntityType, entityType)
	}
	if len(payload) == 0 {
		return models.LocalRecord{}, ErrEmptyPayload
	}

	now := s.clock.Now().UTC()
	rec := models.LocalRecord{
		ID:         s.ids.Generate(),
		OwnerID:    ownerID,
		EntityType: entityType,
		Payload:    json.RawMessage(payload),
		SyncState:  models.SyncStatePending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	queued := s.queueItem(rec, models.SyncActionCreate, rec.Payload)
	if err := s.records.Insert(ctx, rec, queued); err != nil {
		return models.LocalRecord{}, fmt.Errorf("insert record: %w", err)
	}

	s.evictPastCap(ctx, ownerID, entityType)
	s.onChange()

	return rec, nil
}

func (s *recordService) Update(ctx context.Context, id string, payload []byte) (models.LocalRecord, error) {
	if len(payload) == 0 {
		return models.LocalRecord{}, ErrEmptyPayload
	}

	rec, err := s.records.Get(ctx, id)
	if err != nil {
		return models.LocalRecord{}, fmt.Errorf("load record for update: %w", err)
	}

	rec.Payload = json.RawMessage(payload)
	rec.SyncState = models.SyncStatePending
	rec.UpdatedAt = s.clock.Now().UTC()

	queued := s.queueItem(rec, models.SyncActionUpdate, rec.Payload)
	if err = s.records.Update(ctx, rec, queued); err != nil {
		return models.LocalRecord{}, fmt.Errorf("update record: %w", err)
	}

	s.onChange()

	return rec, nil
}

func (s *recordService) Delete(ctx context.Context, id string) error {
	rec, err := s.records.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("load record for delete: %w", err)
	}

	// The delete item carries the last snapshot so the queue stays readable
	// after the record row is gone.
	queued := s.queueItem(rec, models.SyncActionDelete, rec.Payload)
	if err = s.records.Delete(ctx, id, queued); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}

	s.onChange()

	return nil
}

func (s *recordService) Get(ctx context.Context, id string) (models.LocalRecord, error) {
	rec, err := s.records.Get(ctx, id)
	if err != nil {
		return models.LocalRecord{}, fmt.Errorf("get record: %w", err)
	}
	return rec, nil
}

func (s *recordService) List(ctx context.Context, ownerID string, filter store.RecordFilter) ([]models.LocalRecord, error) {
	if ownerID == "" {
		return nil, ErrEmptyOwner
	}

	recs, err := s.records.List(ctx, ownerID, filter)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return recs, nil
}

func (s *recordService) queueItem(rec models.LocalRecord, action models.SyncAction, snapshot json.RawMessage) models.SyncQueueItem {
	return models.SyncQueueItem{
		ID:              s.ids.Generate(),
		EntityType:      rec.EntityType,
		Action:          action,
		RecordID:        rec.ID,
		PayloadSnapshot: snapshot,
		EnqueuedAt:      s.clock.Now().UTC(),
	}
}

// evictPastCap trims the oldest synced records of one entity type down to the
// cap. Pending and failed records never count as evictable, so a burst of
// offline writes can exceed the cap until it syncs.
func (s *recordService) evictPastCap(ctx context.Context, ownerID string, entityType models.EntityType) {
	total, err := s.records.CountByType(ctx, ownerID, entityType)
	if err != nil {
		s.logger.Error().Err(err).
			Str("func", "recordService.evictPastCap").
			Str("entity_type", string(entityType)).
			Msg("count records")
		return
	}
	if total <= s.recordCap {
		return
	}

	evicted, err := s.records.EvictSynced(ctx, ownerID, entityType, total-s.recordCap)
	if err != nil {
		s.logger.Error().Err(err).
			Str("func", "recordService.evictPastCap").
			Str("entity_type", string(entityType)).
			Msg("evict synced records")
		return
	}
	if evicted > 0 {
		s.logger.Debug().
			Str("func", "recordService.evictPastCap").
			Str("entity_type", string(entityType)).
			Int("evicted", evicted).
			Msg("record cap enforced")
	}
}
