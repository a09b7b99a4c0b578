package challenge

import (
	"time"

	"github.com/google/uuid"
)

type Level string

const (
	LevelSoft   Level = "Soft"
	LevelHard   Level = "Hard"
	LevelCustom Level = "Custom"
)

func (l Level) Valid() bool {
	switch l {
	case LevelSoft, LevelHard, LevelCustom:
		return true
	}
	return false
}

type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusAbandoned Status = "abandoned"
)

// ValidDurations are the only accepted challenge lengths, in days.
var ValidDurations = []int{21, 45, 60, 75}

func ValidDuration(days int) bool {
	for _, d := range ValidDurations {
		if d == days {
			return true
		}
	}
	return false
}

const (
	DefaultDurationDays = 21
	DefaultLevel        = LevelSoft
)

// TaskSpec is one entry of a Custom challenge's task template. The template
// is what backfill instantiates a fresh daily task list from.
type TaskSpec struct {
	ID    string `json:"id,omitempty"`
	Text  string `json:"text"`
	Order int    `json:"order"`
}

type Challenge struct {
	ID              uuid.UUID  `json:"id" db:"id"`
	UserID          uuid.UUID  `json:"user_id" db:"user_id"`
	DurationDays    int        `json:"duration_days" db:"duration_days"`
	Level           Level      `json:"level" db:"level"`
	StartDate       time.Time  `json:"start_date" db:"start_date"`
	ExpectedEndDate time.Time  `json:"expected_end_date" db:"expected_end_date"`
	Status          Status     `json:"status" db:"status"`
	TaskTemplate    []TaskSpec `json:"task_template,omitempty" db:"task_template"`

	// Aggregates maintained by the stats recompute on read.
	TotalDaysElapsed  int     `json:"total_days_elapsed" db:"total_days_elapsed"`
	CompletedDays     int     `json:"completed_days" db:"completed_days"`
	CurrentStreak     int     `json:"current_streak" db:"current_streak"`
	LongestStreak     int     `json:"longest_streak" db:"longest_streak"`
	AvgCompletionRate float64 `json:"avg_completion_rate" db:"avg_completion_rate"`

	CompletedAt   *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	FailedAt      *time.Time `json:"failed_at,omitempty" db:"failed_at"`
	FailureReason *string    `json:"failure_reason,omitempty" db:"failure_reason"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}
