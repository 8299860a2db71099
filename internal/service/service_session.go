// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/stillpoint-app/stillpoint/internal/config"
	"github.com/stillpoint-app/stillpoint/internal/logger"
	"github.com/stillpoint-app/stillpoint/internal/store"
	"github.com/stillpoint-app/stillpoint/internal/utils"
	"github.com/stillpoint-app/stillpoint/models"
)

const escalationBuffer = 8

type sessionService struct {
	sessions store.SessionRepository
	ids      *utils.UUIDGenerator
	clock    utils.Clock
	cfg      config.Session
	logger   *logger.Logger

	escalations chan models.SOSSession

	mu     sync.Mutex
	active *models.SOSSession

	// Timer state, valid only while active != nil. nextCheckIn measures from
	// windowStart: a manual check-in inside the window suppresses the auto
	// one, and any check-in stretches the next window to the backoff value.
	nextAutoSave time.Time
	nextCheckIn  time.Time
	windowStart  time.Time
}

// NewSessionService builds the crisis-session state machine. Timer intervals
// come from cfg; zero values fall back to the documented defaults.
func NewSessionService(sessions store.SessionRepository, ids *utils.UUIDGenerator, clock utils.Clock, cfg config.Session, log *logger.Logger) SessionService {
	if cfg.AutoSaveInterval <= 0 {
		cfg.AutoSaveInterval = 10 * time.Second
	}
	if cfg.CheckInInterval <= 0 {
		cfg.CheckInInterval = 60 * time.Second
	}
	if cfg.CheckInBackoff <= 0 {
		cfg.CheckInBackoff = 120 * time.Second
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 30 * time.Minute
	}
	if cfg.HistoryCap <= 0 {
		cfg.HistoryCap = 50
	}

	return &sessionService{
		sessions:    sessions,
		ids:         ids,
		clock:       clock,
		cfg:         cfg,
		logger:      log,
		escalations: make(chan models.SOSSession, escalationBuffer),
	}
}

func (s *sessionService) Start(ctx context.Context, opts StartOptions) (models.SOSSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now().UTC()

	// At most one active session per device: whatever is running gets
	// interrupted before the new one exists.
	if err := s.loadActiveLocked(ctx); err != nil {
		return models.SOSSession{}, err
	}
	if s.active != nil {
		if err := s.endLocked(ctx, now, models.OutcomeInterrupted, ""); err != nil {
			return models.SOSSession{}, fmt.Errorf("interrupt previous session: %w", err)
		}
	}

	sess := models.SOSSession{
		ID:           s.ids.Generate(),
		StartedAt:    now,
		LastActiveAt: now,
		IsActive:     true,
		ExerciseID:   opts.ExerciseID,
		CheckIns:     []models.CheckIn{},
		Notes:        opts.Notes,
	}

	if err := s.sessions.Save(ctx, sess); err != nil {
		return models.SOSSession{}, fmt.Errorf("save new session: %w", err)
	}
	if err := s.sessions.SetActive(ctx, sess.ID); err != nil {
		return models.SOSSession{}, fmt.Errorf("set active session pointer: %w", err)
	}

	s.active = &sess
	s.armTimersLocked(now)

	s.logger.Info().
		Str("func", "sessionService.Start").
		Str("session_id", sess.ID).
		Msg("session started")

	return sess, nil
}

func (s *sessionService) Resume(ctx context.Context) (*models.SOSSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadActiveLocked(ctx); err != nil {
		return nil, err
	}
	if s.active == nil {
		return nil, nil
	}

	now := s.clock.Now().UTC()

	// A session left over from a crash or a long-backgrounded app is not
	// worth resuming; end it instead of continuing a stale crisis flow.
	if s.active.Age(now) > s.cfg.MaxAge {
		if err := s.endLocked(ctx, now, models.OutcomeInterrupted, ""); err != nil {
			return nil, fmt.Errorf("end stale session: %w", err)
		}
		return nil, nil
	}

	s.active.LastActiveAt = now
	if err := s.sessions.Save(ctx, *s.active); err != nil {
		return nil, fmt.Errorf("save resumed session: %w", err)
	}

	s.armTimersLocked(now)

	sess := *s.active
	return &sess, nil
}

func (s *sessionService) UpdateProgress(ctx context.Context, progress models.ExerciseProgress) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireActiveLocked(ctx); err != nil {
		return err
	}

	p := progress
	s.active.Progress = &p
	s.active.LastActiveAt = s.clock.Now().UTC()

	if err := s.sessions.Save(ctx, *s.active); err != nil {
		return fmt.Errorf("save session progress: %w", err)
	}
	return nil
}

func (s *sessionService) AddCheckIn(ctx context.Context, checkIn models.CheckIn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireActiveLocked(ctx); err != nil {
		return err
	}

	now := s.clock.Now().UTC()
	if checkIn.Timestamp.IsZero() {
		checkIn.Timestamp = now
	}
	if checkIn.Type == "" {
		checkIn.Type = models.CheckInManual
	}

	s.active.CheckIns = append(s.active.CheckIns, checkIn)
	s.active.LastActiveAt = now

	if checkIn.Response == models.ResponseNeedHelp {
		if err := s.endLocked(ctx, now, models.OutcomeEscalated, s.active.Notes); err != nil {
			return fmt.Errorf("escalate session: %w", err)
		}
		return nil
	}

	if err := s.sessions.Save(ctx, *s.active); err != nil {
		return fmt.Errorf("save session check-in: %w", err)
	}

	// After the first check-in the cadence relaxes to the backoff interval.
	s.windowStart = now
	s.nextCheckIn = now.Add(s.cfg.CheckInBackoff)

	return nil
}

func (s *sessionService) End(ctx context.Context, outcome models.SessionOutcome, notes string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireActiveLocked(ctx); err != nil {
		return err
	}

	return s.endLocked(ctx, s.clock.Now().UTC(), outcome, notes)
}

func (s *sessionService) Current(ctx context.Context) (*models.SOSSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadActiveLocked(ctx); err != nil {
		return nil, err
	}
	if s.active == nil {
		return nil, nil
	}

	sess := *s.active
	return &sess, nil
}

func (s *sessionService) Escalations() <-chan models.SOSSession {
	return s.escalations
}

func (s *sessionService) Tick(ctx context.Context, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active == nil {
		return
	}

	now = now.UTC()

	if s.active.Age(now) > s.cfg.MaxAge {
		if err := s.endLocked(ctx, now, models.OutcomeInterrupted, s.active.Notes); err != nil {
			s.logger.Error().Err(err).
				Str("func", "sessionService.Tick").
				Msg("force-end expired session")
		}
		return
	}

	if !now.Before(s.nextAutoSave) {
		s.active.LastActiveAt = now
		if err := s.sessions.Save(ctx, *s.active); err != nil {
			s.logger.Error().Err(err).
				Str("func", "sessionService.Tick").
				Str("session_id", s.active.ID).
				Msg("auto-save session")
		}
		s.nextAutoSave = now.Add(s.cfg.AutoSaveInterval)
	}

	if !now.Before(s.nextCheckIn) {
		if !s.active.ManualCheckInSince(s.windowStart) {
			s.active.CheckIns = append(s.active.CheckIns, models.CheckIn{
				Timestamp: now,
				Type:      models.CheckInAuto,
			})
			s.active.LastActiveAt = now
			if err := s.sessions.Save(ctx, *s.active); err != nil {
				s.logger.Error().Err(err).
					Str("func", "sessionService.Tick").
					Str("session_id", s.active.ID).
					Msg("save auto check-in")
			}
		}
		s.windowStart = now
		s.nextCheckIn = now.Add(s.cfg.CheckInBackoff)
	}
}

// loadActiveLocked refreshes s.active from the repository if it is not cached
// yet. Callers hold s.mu.
func (s *sessionService) loadActiveLocked(ctx context.Context) error {
	if s.active != nil {
		return nil
	}

	sess, err := s.sessions.GetActive(ctx)
	if errors.Is(err, store.ErrSessionNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load active session: %w", err)
	}

	s.active = &sess
	return nil
}

func (s *sessionService) requireActiveLocked(ctx context.Context) error {
	if err := s.loadActiveLocked(ctx); err != nil {
		return err
	}
	if s.active == nil {
		return ErrNoActiveSession
	}
	return nil
}

// endLocked finishes the cached active session: terminal fields, persistence,
// active-pointer clear, history eviction, timer disarm, escalation signal.
// Callers hold s.mu and guarantee s.active != nil.
func (s *sessionService) endLocked(ctx context.Context, now time.Time, outcome models.SessionOutcome, notes string) error {
	sess := s.active

	completedAt := now
	sess.IsActive = false
	sess.CompletedAt = &completedAt
	sess.Outcome = outcome
	sess.LastActiveAt = now
	if notes != "" {
		sess.Notes = notes
	}

	if err := s.sessions.Save(ctx, *sess); err != nil {
		return fmt.Errorf("save ended session: %w", err)
	}
	if err := s.sessions.ClearActive(ctx); err != nil {
		return fmt.Errorf("clear active session pointer: %w", err)
	}

	if evicted, err := s.sessions.EvictHistory(ctx, s.cfg.HistoryCap); err != nil {
		s.logger.Error().Err(err).
			Str("func", "sessionService.endLocked").
			Msg("evict session history")
	} else if evicted > 0 {
		s.logger.Debug().
			Str("func", "sessionService.endLocked").
			Int("evicted", evicted).
			Msg("session history trimmed")
	}

	s.active = nil
	s.nextAutoSave = time.Time{}
	s.nextCheckIn = time.Time{}
	s.windowStart = time.Time{}

	s.logger.Info().
		Str("func", "sessionService.endLocked").
		Str("session_id", sess.ID).
		Str("outcome", string(outcome)).
		Msg("session ended")

	if outcome == models.OutcomeEscalated {
		// Non-blocking: a slow observer must never stall the state machine.
		select {
		case s.escalations <- *sess:
		default:
			s.logger.Warn().
				Str("func", "sessionService.endLocked").
				Str("session_id", sess.ID).
				Msg("escalation signal dropped, channel full")
		}
	}

	return nil
}

// armTimersLocked resets the auto-save and check-in deadlines relative to now.
// Callers hold s.mu.
func (s *sessionService) armTimersLocked(now time.Time) {
	s.nextAutoSave = now.Add(s.cfg.AutoSaveInterval)
	s.windowStart = now

	// First check-in fires at the short interval; every one after that at
	// the backoff interval.
	if len(s.active.CheckIns) == 0 {
		s.nextCheckIn = now.Add(s.cfg.CheckInInterval)
	} else {
		s.nextCheckIn = now.Add(s.cfg.CheckInBackoff)
	}
}
