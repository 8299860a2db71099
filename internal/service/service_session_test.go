// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stillpoint-app/stillpoint/internal/config"
	"github.com/stillpoint-app/stillpoint/internal/logger"
	"github.com/stillpoint-app/stillpoint/internal/utils"
	"github.com/stillpoint-app/stillpoint/models"
)

func sessionConfigForTest() config.Session {
	return config.Session{
		AutoSaveInterval: 10 * time.Second,
		CheckInInterval:  60 * time.Second,
		CheckInBackoff:   120 * time.Second,
		MaxAge:           30 * time.Minute,
		HistoryCap:       50,
	}
}

func newSessionServiceForTest(t *testing.T) (SessionService, *fakeSessionRepo, *fakeClock) {
	t.Helper()

	repo := newFakeSessionRepo()
	clock := newFakeClock(time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC))
	svc := NewSessionService(repo, utils.NewUUIDGenerator(), clock, sessionConfigForTest(), logger.Nop())
	return svc, repo, clock
}

func TestSessionService_Start_CreatesActiveSession(t *testing.T) {
	svc, repo, clock := newSessionServiceForTest(t)

	sess, err := svc.Start(context.Background(), StartOptions{})

	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID)
	assert.True(t, sess.IsActive)
	assert.Equal(t, clock.Now(), sess.StartedAt)

	stored, err := repo.GetActive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sess.ID, stored.ID)
}

func TestSessionService_Start_InterruptsActiveSession(t *testing.T) {
	svc, repo, _ := newSessionServiceForTest(t)

	first, err := svc.Start(context.Background(), StartOptions{})
	require.NoError(t, err)

	second, err := svc.Start(context.Background(), StartOptions{})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	old, err := repo.Get(context.Background(), first.ID)
	require.NoError(t, err)
	assert.False(t, old.IsActive)
	assert.Equal(t, models.OutcomeInterrupted, old.Outcome)
	require.NotNil(t, old.CompletedAt)

	active, err := repo.GetActive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, second.ID, active.ID)
}

func TestSessionService_Resume_NoActiveSession(t *testing.T) {
	svc, _, _ := newSessionServiceForTest(t)

	sess, err := svc.Resume(context.Background())

	require.NoError(t, err)
	assert.Nil(t, sess)
}

func TestSessionService_Resume_StaleSessionForceEnded(t *testing.T) {
	svc, repo, clock := newSessionServiceForTest(t)

	started, err := svc.Start(context.Background(), StartOptions{})
	require.NoError(t, err)

	clock.Advance(31 * time.Minute)

	sess, err := svc.Resume(context.Background())

	require.NoError(t, err)
	assert.Nil(t, sess, "stale session must not resume")

	old, err := repo.Get(context.Background(), started.ID)
	require.NoError(t, err)
	assert.False(t, old.IsActive)
	assert.Equal(t, models.OutcomeInterrupted, old.Outcome)
}

func TestSessionService_Resume_FreshSessionReturned(t *testing.T) {
	svc, _, clock := newSessionServiceForTest(t)

	started, err := svc.Start(context.Background(), StartOptions{})
	require.NoError(t, err)

	clock.Advance(5 * time.Minute)

	sess, err := svc.Resume(context.Background())

	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, started.ID, sess.ID)
	assert.Equal(t, clock.Now(), sess.LastActiveAt)
}

func TestSessionService_UpdateProgress_RequiresActiveSession(t *testing.T) {
	svc, _, _ := newSessionServiceForTest(t)

	err := svc.UpdateProgress(context.Background(), models.ExerciseProgress{CurrentStep: 1})

	assert.ErrorIs(t, err, ErrNoActiveSession)
}

func TestSessionService_UpdateProgress_Persists(t *testing.T) {
	svc, repo, _ := newSessionServiceForTest(t)

	sess, err := svc.Start(context.Background(), StartOptions{})
	require.NoError(t, err)

	err = svc.UpdateProgress(context.Background(), models.ExerciseProgress{CurrentStep: 2, TotalSteps: 4})
	require.NoError(t, err)

	stored, err := repo.Get(context.Background(), sess.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Progress)
	assert.Equal(t, 2, stored.Progress.CurrentStep)
}

func TestSessionService_AddCheckIn_AppendsInOrder(t *testing.T) {
	svc, repo, clock := newSessionServiceForTest(t)

	sess, err := svc.Start(context.Background(), StartOptions{})
	require.NoError(t, err)

	require.NoError(t, svc.AddCheckIn(context.Background(), models.CheckIn{Response: models.ResponseSame}))
	clock.Advance(time.Minute)
	require.NoError(t, svc.AddCheckIn(context.Background(), models.CheckIn{Response: models.ResponseBetter}))

	stored, err := repo.Get(context.Background(), sess.ID)
	require.NoError(t, err)
	require.Len(t, stored.CheckIns, 2)
	assert.Equal(t, models.ResponseSame, stored.CheckIns[0].Response)
	assert.Equal(t, models.ResponseBetter, stored.CheckIns[1].Response)
	assert.True(t, stored.CheckIns[1].Timestamp.After(stored.CheckIns[0].Timestamp))
}

func TestSessionService_AddCheckIn_NeedHelpEscalates(t *testing.T) {
	svc, repo, _ := newSessionServiceForTest(t)

	sess, err := svc.Start(context.Background(), StartOptions{})
	require.NoError(t, err)

	err = svc.AddCheckIn(context.Background(), models.CheckIn{Response: models.ResponseNeedHelp})
	require.NoError(t, err)

	stored, err := repo.Get(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)
	assert.Equal(t, models.OutcomeEscalated, stored.Outcome)

	select {
	case escalated := <-svc.Escalations():
		assert.Equal(t, sess.ID, escalated.ID)
	case <-time.After(time.Second):
		t.Fatal("escalation signal not emitted")
	}

	current, err := svc.Current(context.Background())
	require.NoError(t, err)
	assert.Nil(t, current)
}

func TestSessionService_End_ClearsActiveAndKeepsHistory(t *testing.T) {
	svc, repo, _ := newSessionServiceForTest(t)

	sess, err := svc.Start(context.Background(), StartOptions{})
	require.NoError(t, err)

	err = svc.End(context.Background(), models.OutcomeCompleted, "felt calmer")
	require.NoError(t, err)

	stored, err := repo.Get(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeCompleted, stored.Outcome)
	assert.Equal(t, "felt calmer", stored.Notes)

	_, err = repo.GetActive(context.Background())
	assert.Error(t, err)

	err = svc.End(context.Background(), models.OutcomeCompleted, "")
	assert.ErrorIs(t, err, ErrNoActiveSession)
}

// ── Tick ─────────────────────────────────────────────────────────────────────

func TestSessionService_Tick_AutoSavesWhenDue(t *testing.T) {
	svc, repo, clock := newSessionServiceForTest(t)

	_, err := svc.Start(context.Background(), StartOptions{})
	require.NoError(t, err)

	savesAfterStart := repo.saves

	svc.Tick(context.Background(), clock.Advance(5*time.Second))
	assert.Equal(t, savesAfterStart, repo.saves, "nothing due yet")

	svc.Tick(context.Background(), clock.Advance(6*time.Second))
	assert.Equal(t, savesAfterStart+1, repo.saves, "auto-save due at 10s")
}

func TestSessionService_Tick_SynthesizesAutoCheckIn(t *testing.T) {
	svc, repo, clock := newSessionServiceForTest(t)

	sess, err := svc.Start(context.Background(), StartOptions{})
	require.NoError(t, err)

	svc.Tick(context.Background(), clock.Advance(61*time.Second))

	stored, err := repo.Get(context.Background(), sess.ID)
	require.NoError(t, err)
	require.Len(t, stored.CheckIns, 1)
	assert.Equal(t, models.CheckInAuto, stored.CheckIns[0].Type)
}

func TestSessionService_Tick_ManualCheckInSuppressesAuto(t *testing.T) {
	svc, repo, clock := newSessionServiceForTest(t)

	sess, err := svc.Start(context.Background(), StartOptions{})
	require.NoError(t, err)

	clock.Advance(30 * time.Second)
	require.NoError(t, svc.AddCheckIn(context.Background(), models.CheckIn{Response: models.ResponseSame}))

	// The original 60s deadline has passed, but the manual check-in moved it
	// out to the backoff interval; no auto check-in is synthesized.
	svc.Tick(context.Background(), clock.Advance(31*time.Second))

	stored, err := repo.Get(context.Background(), sess.ID)
	require.NoError(t, err)
	require.Len(t, stored.CheckIns, 1)
	assert.Equal(t, models.CheckInManual, stored.CheckIns[0].Type)
}

func TestSessionService_Tick_CheckInCadenceRelaxesAfterFirst(t *testing.T) {
	svc, repo, clock := newSessionServiceForTest(t)

	sess, err := svc.Start(context.Background(), StartOptions{})
	require.NoError(t, err)

	// First auto check-in at 60s.
	svc.Tick(context.Background(), clock.Advance(60*time.Second))

	// 60s later nothing fires: the cadence is now 120s.
	svc.Tick(context.Background(), clock.Advance(60*time.Second))

	stored, err := repo.Get(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Len(t, stored.CheckIns, 1)

	// Another 60s completes the backoff window.
	svc.Tick(context.Background(), clock.Advance(60*time.Second))

	stored, err = repo.Get(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Len(t, stored.CheckIns, 2)
}

func TestSessionService_Tick_ForceEndsExpiredSession(t *testing.T) {
	svc, repo, clock := newSessionServiceForTest(t)

	sess, err := svc.Start(context.Background(), StartOptions{})
	require.NoError(t, err)

	svc.Tick(context.Background(), clock.Advance(31*time.Minute))

	stored, err := repo.Get(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)
	assert.Equal(t, models.OutcomeInterrupted, stored.Outcome)

	current, err := svc.Current(context.Background())
	require.NoError(t, err)
	assert.Nil(t, current)
}

func TestSessionService_Tick_IdleIsNoop(t *testing.T) {
	svc, repo, clock := newSessionServiceForTest(t)

	assert.NotPanics(t, func() {
		svc.Tick(context.Background(), clock.Advance(time.Hour))
	})
	assert.Zero(t, repo.saves)
}
