package models

import "time"

// MoodLog is a single mood journal entry.
type MoodLog struct {
	Mood     int       `json:"mood"`
	Note     string    `json:"note,omitempty"`
	Tags     []string  `json:"tags,omitempty"`
	LoggedAt time.Time `json:"logged_at"`
}

// ExerciseSession is a completed or abandoned run of a guided exercise.
type ExerciseSession struct {
	ExerciseID      string     `json:"exercise_id"`
	Category        string     `json:"category,omitempty"`
	DurationSeconds int        `json:"duration_seconds"`
	CompletedSteps  int        `json:"completed_steps"`
	TotalSteps      int        `json:"total_steps"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

// Preferences is the per-user settings bundle. Exactly one bundle exists per
// owner, so its natural identity is the entity type itself.
type Preferences struct {
	Theme           string `json:"theme,omitempty"`
	Language        string `json:"language,omitempty"`
	ReminderEnabled bool   `json:"reminder_enabled"`
	ReminderHour    int    `json:"reminder_hour"`
}

// Favorite marks an exercise or resource the user pinned.
type Favorite struct {
	TargetID string    `json:"target_id"`
	Kind     string    `json:"kind"`
	AddedAt  time.Time `json:"added_at"`
}
