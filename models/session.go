package models

import "time"

// SessionOutcome is the terminal disposition of an SOS session.
type SessionOutcome string

const (
	// OutcomeCompleted means the user ended the session themselves.
	OutcomeCompleted SessionOutcome = "completed"
	// OutcomeInterrupted means the session was cut short: replaced by a new
	// session, expired past the maximum age, or abandoned across a restart.
	OutcomeInterrupted SessionOutcome = "interrupted"
	// OutcomeEscalated means the user asked for additional help and was routed
	// to crisis resources.
	OutcomeEscalated SessionOutcome = "escalated"
)

// CheckInType distinguishes timer-synthesized check-ins from user ones.
type CheckInType string

const (
	CheckInAuto   CheckInType = "auto"
	CheckInManual CheckInType = "manual"
)

// CheckInResponse is the user's answer to "how are you doing?".
type CheckInResponse string

const (
	ResponseBetter   CheckInResponse = "better"
	ResponseSame     CheckInResponse = "same"
	ResponseWorse    CheckInResponse = "worse"
	ResponseNeedHelp CheckInResponse = "need_help"
)

// CheckIn is one entry of a session's append-only check-in sequence. Entries
// are never mutated, reordered, or deduplicated after creation.
type CheckIn struct {
	Timestamp time.Time       `json:"timestamp"`
	Type      CheckInType     `json:"type"`
	Response  CheckInResponse `json:"response,omitempty"`
	Message   string          `json:"message,omitempty"`
}

// ExerciseProgress tracks how far the user got through a guided exercise
// attached to an SOS session.
type ExerciseProgress struct {
	CurrentStep        int `json:"current_step"`
	TotalSteps         int `json:"total_steps"`
	TimeElapsedSeconds int `json:"time_elapsed_seconds"`
}

// SOSSession is a timed crisis-support session. At most one session is active
// per device; the previous one is force-ended with OutcomeInterrupted when a
// new one starts.
type SOSSession struct {
	ID           string            `json:"id"`
	StartedAt    time.Time         `json:"started_at"`
	LastActiveAt time.Time         `json:"last_active_at"`
	IsActive     bool              `json:"is_active"`
	ExerciseID   *string           `json:"exercise_id,omitempty"`
	Progress     *ExerciseProgress `json:"progress,omitempty"`
	CheckIns     []CheckIn         `json:"check_ins"`
	CompletedAt  *time.Time        `json:"completed_at,omitempty"`
	Outcome      SessionOutcome    `json:"outcome,omitempty"`
	Notes        string            `json:"notes,omitempty"`
}

// Age returns how long the session has existed as of now.
func (s *SOSSession) Age(now time.Time) time.Duration {
	return now.Sub(s.StartedAt)
}

// ManualCheckInSince reports whether the user produced a manual check-in at or
// after t. The check-in timer uses this to decide whether to synthesize an
// auto check-in for the elapsed window.
func (s *SOSSession) ManualCheckInSince(t time.Time) bool {
	for i := len(s.CheckIns) - 1; i >= 0; i-- {
		ci := s.CheckIns[i]
		if ci.Timestamp.Before(t) {
			return false
		}
		if ci.Type == CheckInManual {
			return true
		}
	}
	return false
}
