package progress

import (
	"time"

	"github.com/google/uuid"
)

// Task is one item of a day's checklist.
type Task struct {
	ID          string     `json:"id"`
	Text        string     `json:"text"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// DailyProgress is the record of one calendar day of one challenge.
// A user has at most one record per (challenge, date).
type DailyProgress struct {
	ID             uuid.UUID `json:"id" db:"id"`
	UserID         uuid.UUID `json:"user_id" db:"user_id"`
	ChallengeID    uuid.UUID `json:"challenge_id" db:"challenge_id"`
	Date           time.Time `json:"date" db:"date"`
	DayNumber      int       `json:"day_number" db:"day_number"`
	Tasks          []Task    `json:"tasks" db:"tasks"`
	CompletionRate float64   `json:"completion_rate" db:"completion_rate"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

type Stats struct {
	TotalDaysElapsed  int     `json:"total_days_elapsed"`
	CompletedDays     int     `json:"completed_days"`
	CurrentStreak     int     `json:"current_streak"`
	LongestStreak     int     `json:"longest_streak"`
	AvgCompletionRate float64 `json:"avg_completion_rate"`
}

type ToggleTaskRequest struct {
	Completed *bool `json:"completed"`
}

type TaskTextRequest struct {
	Text string `json:"text" validate:"required"`
}

type ChallengeProgressResponse struct {
	Records []*DailyProgress `json:"records"`
	Stats   Stats            `json:"stats"`
}
