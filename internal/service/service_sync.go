package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/stillpoint-app/stillpoint/internal/adapter"
	"github.com/stillpoint-app/stillpoint/internal/logger"
	"github.com/stillpoint-app/stillpoint/internal/store"
	"github.com/stillpoint-app/stillpoint/internal/utils"
	"github.com/stillpoint-app/stillpoint/models"
)

type syncService struct {
	queue    store.QueueRepository
	records  store.RecordRepository
	state    store.StateRepository
	remote   adapter.RemoteStore
	conn     adapter.Connectivity
	identity IdentityService
	clock    utils.Clock
	retryCap int
	logger   *logger.Logger

	inFlight atomic.Bool
}

// NewSyncService builds the queue drain. retryCap defaults to 3 when
// non-positive.
func NewSyncService(
	queue store.QueueRepository,
	records store.RecordRepository,
	state store.StateRepository,
	remote adapter.RemoteStore,
	conn adapter.Connectivity,
	identity IdentityService,
	clock utils.Clock,
	retryCap int,
	log *logger.Logger,
) SyncService {
	if retryCap <= 0 {
		retryCap = 3
	}

	return &syncService{
		queue:    queue,
		records:  records,
		state:    state,
		remote:   remote,
		conn:     conn,
		identity: identity,
		clock:    clock,
		retryCap: retryCap,
		logger:   log,
	}
}

func (s *syncService) Drain(ctx context.Context) (models.SyncReport, error) {
	// Only one drain at a time; a concurrent caller gets a no-op report
	// instead of blocking behind the in-flight pass.
	if !s.inFlight.CompareAndSwap(false, true) {
		return models.SyncReport{}, nil
	}
	defer s.inFlight.Store(false)

	if !s.conn.IsOnline() || s.identity.IsGuest() {
		return models.SyncReport{}, nil
	}

	items, err := s.queue.List(ctx, 0)
	if err != nil {
		return models.SyncReport{}, fmt.Errorf("list sync queue: %w", err)
	}

	var report models.SyncReport

	// A failed item blocks every later item for the same record, so remote
	// writes per record stay in local mutation order.
	blocked := make(map[string]struct{})

	for _, item := range items {
		if err = ctx.Err(); err != nil {
			return report, err
		}
		if _, ok := blocked[item.RecordID]; ok {
			continue
		}

		sendErr := s.sendItem(ctx, item)
		if sendErr == nil {
			if err = s.finishItem(ctx, item); err != nil {
				return report, err
			}
			report.Synced++
			continue
		}

		if errors.Is(sendErr, adapter.ErrUnauthorized) {
			// Token is dead; nothing later in the queue can succeed either.
			return report, sendErr
		}

		blocked[item.RecordID] = struct{}{}

		retries, retryErr := s.queue.IncrementRetry(ctx, item.Seq)
		if retryErr != nil {
			return report, fmt.Errorf("increment retry for item %d: %w", item.Seq, retryErr)
		}

		s.logger.Warn().Err(sendErr).
			Str("func", "syncService.Drain").
			Int64("seq", item.Seq).
			Str("record_id", item.RecordID).
			Int("retries", retries).
			Msg("queue item failed")

		if retries >= s.retryCap {
			if err = s.abandonItem(ctx, item); err != nil {
				return report, err
			}
			report.Failed++
		}
	}

	if report.Synced > 0 {
		if err = s.state.SetLastSyncAt(ctx, s.clock.Now().UTC()); err != nil {
			return report, fmt.Errorf("record last sync time: %w", err)
		}
	}

	return report, nil
}

func (s *syncService) GetSyncStatus(ctx context.Context) (models.SyncStatus, error) {
	lastSyncAt, err := s.state.GetLastSyncAt(ctx)
	if err != nil {
		return models.SyncStatus{}, fmt.Errorf("get last sync time: %w", err)
	}

	pending, err := s.queue.Count(ctx)
	if err != nil {
		return models.SyncStatus{}, fmt.Errorf("count queue items: %w", err)
	}

	return models.SyncStatus{
		LastSyncAt:   lastSyncAt,
		PendingCount: pending,
		IsOnline:     s.conn.IsOnline(),
	}, nil
}

func (s *syncService) NotifyLocalChange() {
	if !s.conn.IsOnline() || s.identity.IsGuest() {
		return
	}

	go func() {
		if _, err := s.Drain(context.Background()); err != nil {
			s.logger.Warn().Err(err).
				Str("func", "syncService.NotifyLocalChange").
				Msg("change-triggered drain failed")
		}
	}()
}

// sendItem replays one queue item against the remote store. Create and update
// send the live record so the remote always receives the latest committed
// state, not a stale snapshot.
func (s *syncService) sendItem(ctx context.Context, item models.SyncQueueItem) error {
	switch item.Action {
	case models.SyncActionDelete:
		return s.remote.Remove(ctx, item.EntityType, item.RecordID)
	case models.SyncActionCreate, models.SyncActionUpdate:
		rec, err := s.records.Get(ctx, item.RecordID)
		if errors.Is(err, store.ErrRecordNotFound) {
			// Deleted locally after this item was enqueued; the delete item
			// further down the queue handles the remote side.
			return nil
		}
		if err != nil {
			return fmt.Errorf("load record %s: %w", item.RecordID, err)
		}
		if item.Action == models.SyncActionCreate {
			return s.remote.Insert(ctx, item.EntityType, rec)
		}
		return s.remote.Upsert(ctx, item.EntityType, rec)
	default:
		return fmt.Errorf("queue item %d has unknown action %q", item.Seq, item.Action)
	}
}

func (s *syncService) finishItem(ctx context.Context, item models.SyncQueueItem) error {
	if err := s.queue.Remove(ctx, item.Seq); err != nil {
		return fmt.Errorf("remove queue item %d: %w", item.Seq, err)
	}

	if item.Action == models.SyncActionDelete {
		return nil
	}

	err := s.records.SetSyncState(ctx, item.RecordID, models.SyncStateSynced)
	if err != nil && !errors.Is(err, store.ErrRecordNotFound) {
		return fmt.Errorf("mark record %s synced: %w", item.RecordID, err)
	}
	return nil
}

// abandonItem drops an item that exhausted its retries and leaves the record
// failed so the UI can show it as not backed up.
func (s *syncService) abandonItem(ctx context.Context, item models.SyncQueueItem) error {
	if err := s.queue.Remove(ctx, item.Seq); err != nil {
		return fmt.Errorf("drop queue item %d: %w", item.Seq, err)
	}

	if item.Action != models.SyncActionDelete {
		err := s.records.SetSyncState(ctx, item.RecordID, models.SyncStateFailed)
		if err != nil && !errors.Is(err, store.ErrRecordNotFound) {
			return fmt.Errorf("mark record %s failed: %w", item.RecordID, err)
		}
	}

	s.logger.Error().
		Str("func", "syncService.abandonItem").
		Int64("seq", item.Seq).
		Str("record_id", item.RecordID).
		Msg("queue item abandoned after retry cap")

	return nil
}
