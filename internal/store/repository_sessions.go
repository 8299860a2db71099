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

const activeSessionSlot = "active_session"

type sessionRepository struct {
	*DB
	logger *logger.Logger
}

// NewSessionRepository builds the sqlite-backed [SessionRepository].
func NewSessionRepository(db *DB, logger *logger.Logger) SessionRepository {
	return &sessionRepository{
		DB:     db,
		logger: logger,
	}
}

func (s *sessionRepository) Save(ctx context.Context, sess models.SOSSession) error {
	log := logger.FromContext(ctx)

	checkIns, err := json.Marshal(sess.CheckIns)
	if err != nil {
		return fmt.Errorf("encode check-ins (session=%s): %w", sess.ID, err)
	}

	var progress sql.NullString
	if sess.Progress != nil {
		raw, mErr := json.Marshal(sess.Progress)
		if mErr != nil {
			return fmt.Errorf("encode progress (session=%s): %w", sess.ID, mErr)
		}
		progress = sql.NullString{String: string(raw), Valid: true}
	}

	var exerciseID sql.NullString
	if sess.ExerciseID != nil {
		exerciseID = sql.NullString{String: *sess.ExerciseID, Valid: true}
	}

	_, err = s.DB.ExecContext(ctx, saveSession,
		sess.ID,
		sess.StartedAt,
		sess.LastActiveAt,
		sess.IsActive,
		exerciseID,
		progress,
		string(checkIns),
		sess.CompletedAt,
		nullableString(string(sess.Outcome)),
		sess.Notes,
	)
	if err != nil {
		log.Err(err).
			Str("func", "sessionRepository.Save").
			Str("session_id", sess.ID).
			Msg("failed to upsert session")
		return fmt.Errorf("failed to save session (id=%s): %w", sess.ID, err)
	}

	return nil
}

func (s *sessionRepository) Get(ctx context.Context, id string) (models.SOSSession, error) {
	row := s.DB.QueryRowContext(ctx, getSession, id)
	sess, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.SOSSession{}, ErrSessionNotFound
		}
		return models.SOSSession{}, fmt.Errorf("failed to get session (id=%s): %w", id, err)
	}
	return sess, nil
}

func (s *sessionRepository) GetActive(ctx context.Context) (models.SOSSession, error) {
	var id string
	if err := getSlot(ctx, s.DB, activeSessionSlot, &id); err != nil {
		if errors.Is(err, ErrStateNotFound) {
			return models.SOSSession{}, ErrSessionNotFound
		}
		return models.SOSSession{}, err
	}

	return s.Get(ctx, id)
}

func (s *sessionRepository) SetActive(ctx context.Context, id string) error {
	return setSlot(ctx, s.DB, activeSessionSlot, id, time.Now())
}

func (s *sessionRepository) ClearActive(ctx context.Context) error {
	return clearSlot(ctx, s.DB, activeSessionSlot)
}

func (s *sessionRepository) ListHistory(ctx context.Context, limit int) ([]models.SOSSession, error) {
	log := logger.FromContext(ctx)

	if limit <= 0 {
		limit = -1 // sqlite: LIMIT -1 means no limit
	}

	rows, err := s.DB.QueryContext(ctx, listSessionHistory, limit)
	if err != nil {
		log.Err(err).
			Str("func", "sessionRepository.ListHistory").
			Msg("failed to query session history")
		return nil, fmt.Errorf("failed to query session history: %w", err)
	}
	defer rows.Close()

	var items []models.SOSSession
	for rows.Next() {
		sess, scanErr := scanSession(rows)
		if scanErr != nil {
			log.Err(scanErr).
				Str("func", "sessionRepository.ListHistory").
				Msg("failed to scan session row")
			return nil, fmt.Errorf("failed to scan session row: %w", scanErr)
		}
		items = append(items, sess)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("error iterating session rows: %w", rowsErr)
	}

	return items, nil
}

func (s *sessionRepository) EvictHistory(ctx context.Context, keep int) (int, error) {
	var total int
	if err := s.DB.QueryRowContext(ctx, countEndedSessions).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count ended sessions: %w", err)
	}
	if total <= keep {
		return 0, nil
	}

	result, err := s.DB.ExecContext(ctx, evictSessionHistory, total-keep)
	if err != nil {
		return 0, fmt.Errorf("failed to evict session history: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get evicted session count: %w", err)
	}
	return int(affected), nil
}

func scanSession(row rowScanner) (models.SOSSession, error) {
	var sess models.SOSSession
	var exerciseID, progress, outcome sql.NullString
	var checkIns string
	var completedAt sql.NullTime

	err := row.Scan(
		&sess.ID,
		&sess.StartedAt,
		&sess.LastActiveAt,
		&sess.IsActive,
		&exerciseID,
		&progress,
		&checkIns,
		&completedAt,
		&outcome,
		&sess.Notes,
	)
	if err != nil {
		return models.SOSSession{}, err
	}

	if exerciseID.Valid {
		sess.ExerciseID = &exerciseID.String
	}
	if progress.Valid && progress.String != "" {
		var p models.ExerciseProgress
		if err = json.Unmarshal([]byte(progress.String), &p); err != nil {
			return models.SOSSession{}, fmt.Errorf("decode progress: %w", err)
		}
		sess.Progress = &p
	}
	if checkIns != "" {
		if err = json.Unmarshal([]byte(checkIns), &sess.CheckIns); err != nil {
			return models.SOSSession{}, fmt.Errorf("decode check-ins: %w", err)
		}
	}
	if completedAt.Valid {
		t := completedAt.Time
		sess.CompletedAt = &t
	}
	if outcome.Valid {
		sess.Outcome = models.SessionOutcome(outcome.String)
	}

	return sess, nil
}

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
