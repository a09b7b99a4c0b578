package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"stayHardAPI/internal/challenge"
	"stayHardAPI/internal/progress"
	"stayHardAPI/internal/tasks"
)

type ProgressService struct {
	db      *pgxpool.Pool
	catalog *tasks.Catalog
	now     func() time.Time
}

func NewProgressService(db *pgxpool.Pool, catalog *tasks.Catalog) *ProgressService {
	return &ProgressService{
		db:      db,
		catalog: catalog,
		now:     time.Now,
	}
}

// SetClock overrides the time source. Used by tests to pin "today".
func (s *ProgressService) SetClock(now func() time.Time) {
	s.now = now
}

// GetTasksForDate returns the progress record for one calendar day,
// creating it (and any missing earlier days) on first access.
func (s *ProgressService) GetTasksForDate(ctx context.Context, clerkID, challengeID, date string) (*progress.DailyProgress, error) {
	day, err := time.Parse(progress.DateLayout, date)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid date %q, use YYYY-MM-DD", ErrInvalidInput, date)
	}

	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	ch, err := s.getChallenge(ctx, userID, challengeID)
	if err != nil {
		return nil, err
	}

	dayNumber := progress.DayNumber(ch.StartDate, day)
	if dayNumber <= 0 {
		return nil, fmt.Errorf("%w: date %s is before the challenge start", ErrInvalidInput, date)
	}
	if dayNumber > ch.DurationDays {
		return nil, fmt.Errorf("%w: date %s is past the challenge end", ErrInvalidInput, date)
	}

	if err := s.EnsureProgressThrough(ctx, ch, s.now()); err != nil {
		return nil, err
	}

	record, err := s.findRecordByDate(ctx, userID, ch.ID, day)
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	// Date inside the window but past today; create just this record.
	if err := s.insertRecord(ctx, ch, day, dayNumber); err != nil && !errors.Is(err, ErrConflict) {
		return nil, err
	}
	return s.findRecordByDate(ctx, userID, ch.ID, day)
}

// EnsureProgressThrough backfills a record for every elapsed day of the
// challenge, from the start date through min(today, last challenge day).
// Existing records are never touched, so it is safe to call on every read.
func (s *ProgressService) EnsureProgressThrough(ctx context.Context, ch *challenge.Challenge, today time.Time) error {
	start := progress.MidnightUTC(ch.StartDate)
	last := progress.MidnightUTC(today)
	end := start.AddDate(0, 0, ch.DurationDays-1)
	if last.After(end) {
		last = end
	}
	if last.Before(start) {
		return nil
	}

	for day := start; !day.After(last); day = day.AddDate(0, 0, 1) {
		dayNumber := progress.DayNumber(ch.StartDate, day)
		if err := s.insertRecord(ctx, ch, day, dayNumber); err != nil && !errors.Is(err, ErrConflict) {
			return fmt.Errorf("failed to backfill day %d: %w", dayNumber, err)
		}
	}
	return nil
}

// GetChallengeProgress returns all records for a challenge in day order,
// together with the stats derived from them.
func (s *ProgressService) GetChallengeProgress(ctx context.Context, clerkID, challengeID string) (*progress.ChallengeProgressResponse, error) {
	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	ch, err := s.getChallenge(ctx, userID, challengeID)
	if err != nil {
		return nil, err
	}

	if ch.Status == challenge.StatusActive {
		if err := s.EnsureProgressThrough(ctx, ch, s.now()); err != nil {
			return nil, err
		}
	}

	records, err := s.listRecords(ctx, userID, ch.ID)
	if err != nil {
		return nil, err
	}

	stats := progress.ComputeStats(records, s.elapsedDays(ch))
	return &progress.ChallengeProgressResponse{Records: records, Stats: stats}, nil
}

// ToggleTask flips one task's completed flag and recomputes the day's
// completion rate before persisting.
func (s *ProgressService) ToggleTask(ctx context.Context, clerkID, progressID, taskID string, completed bool) (*progress.DailyProgress, error) {
	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	record, err := s.getRecord(ctx, userID, progressID)
	if err != nil {
		return nil, err
	}

	found := false
	for i := range record.Tasks {
		if record.Tasks[i].ID == taskID {
			record.Tasks[i].Completed = completed
			if completed {
				now := s.now()
				record.Tasks[i].CompletedAt = &now
			} else {
				record.Tasks[i].CompletedAt = nil
			}
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: task %s", ErrNotFound, taskID)
	}

	return s.saveTasks(ctx, record)
}

// AddTask appends a task to a day's checklist. Custom challenges only.
func (s *ProgressService) AddTask(ctx context.Context, clerkID, progressID, text string) (*progress.DailyProgress, error) {
	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	record, err := s.getRecord(ctx, userID, progressID)
	if err != nil {
		return nil, err
	}

	if err := s.requireCustomLevel(ctx, userID, record.ChallengeID); err != nil {
		return nil, err
	}

	record.Tasks = append(record.Tasks, progress.Task{
		ID:   uuid.New().String(),
		Text: text,
	})

	return s.saveTasks(ctx, record)
}

// UpdateTaskText renames a task. Custom challenges only.
func (s *ProgressService) UpdateTaskText(ctx context.Context, clerkID, progressID, taskID, text string) (*progress.DailyProgress, error) {
	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	record, err := s.getRecord(ctx, userID, progressID)
	if err != nil {
		return nil, err
	}

	if err := s.requireCustomLevel(ctx, userID, record.ChallengeID); err != nil {
		return nil, err
	}

	found := false
	for i := range record.Tasks {
		if record.Tasks[i].ID == taskID {
			record.Tasks[i].Text = text
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: task %s", ErrNotFound, taskID)
	}

	return s.saveTasks(ctx, record)
}

// DeleteTask removes a task from a day's checklist. Custom challenges only.
func (s *ProgressService) DeleteTask(ctx context.Context, clerkID, progressID, taskID string) (*progress.DailyProgress, error) {
	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	record, err := s.getRecord(ctx, userID, progressID)
	if err != nil {
		return nil, err
	}

	if err := s.requireCustomLevel(ctx, userID, record.ChallengeID); err != nil {
		return nil, err
	}

	kept := record.Tasks[:0]
	found := false
	for _, t := range record.Tasks {
		if t.ID == taskID {
			found = true
			continue
		}
		kept = append(kept, t)
	}
	if !found {
		return nil, fmt.Errorf("%w: task %s", ErrNotFound, taskID)
	}
	record.Tasks = kept

	return s.saveTasks(ctx, record)
}

// ---------------------------------------------------------------------------
// internals
// ---------------------------------------------------------------------------

func (s *ProgressService) getUserID(ctx context.Context, clerkID string) (uuid.UUID, error) {
	var userID uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT id FROM users WHERE clerk_id = $1`, clerkID).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, fmt.Errorf("%w: user", ErrNotFound)
		}
		return uuid.Nil, fmt.Errorf("failed to get user: %w", err)
	}
	return userID, nil
}

func (s *ProgressService) getChallenge(ctx context.Context, userID uuid.UUID, challengeID string) (*challenge.Challenge, error) {
	id, err := uuid.Parse(challengeID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid challenge id", ErrInvalidInput)
	}

	query := `
	SELECT id, user_id, duration_days, level, start_date, expected_end_date, status, task_template
	FROM challenges
	WHERE id = $1 AND user_id = $2
	`

	ch := &challenge.Challenge{}
	var template []byte
	err = s.db.QueryRow(ctx, query, id, userID).Scan(
		&ch.ID,
		&ch.UserID,
		&ch.DurationDays,
		&ch.Level,
		&ch.StartDate,
		&ch.ExpectedEndDate,
		&ch.Status,
		&template,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: challenge %s", ErrNotFound, challengeID)
		}
		return nil, fmt.Errorf("failed to get challenge: %w", err)
	}

	if len(template) > 0 {
		if err := json.Unmarshal(template, &ch.TaskTemplate); err != nil {
			return nil, fmt.Errorf("failed to decode task template: %w", err)
		}
	}
	return ch, nil
}

func (s *ProgressService) requireCustomLevel(ctx context.Context, userID, challengeID uuid.UUID) error {
	var level challenge.Level
	err := s.db.QueryRow(ctx,
		`SELECT level FROM challenges WHERE id = $1 AND user_id = $2`,
		challengeID, userID,
	).Scan(&level)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: challenge %s", ErrNotFound, challengeID)
		}
		return fmt.Errorf("failed to get challenge level: %w", err)
	}

	if level != challenge.LevelCustom {
		return fmt.Errorf("%w: level is %s", ErrImmutableTaskSet, level)
	}
	return nil
}

// insertRecord creates a fresh all-incomplete record for one day. A
// concurrent insert for the same (user, challenge, date) surfaces as
// ErrConflict; callers re-read instead of failing.
func (s *ProgressService) insertRecord(ctx context.Context, ch *challenge.Challenge, day time.Time, dayNumber int) error {
	taskList, err := s.catalog.Instantiate(ch.Level, ch.TaskTemplate)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	tasksJSON, err := json.Marshal(taskList)
	if err != nil {
		return fmt.Errorf("failed to encode tasks: %w", err)
	}

	query := `
	INSERT INTO daily_progress (id, user_id, challenge_id, date, day_number, tasks, completion_rate, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, 0, NOW(), NOW())
	ON CONFLICT (user_id, challenge_id, date) DO NOTHING
	`

	tag, err := s.db.Exec(ctx, query, uuid.New(), ch.UserID, ch.ID, progress.MidnightUTC(day), dayNumber, tasksJSON)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: progress for %s already exists", ErrConflict, day.Format(progress.DateLayout))
		}
		return fmt.Errorf("failed to insert progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: progress for %s already exists", ErrConflict, day.Format(progress.DateLayout))
	}
	return nil
}

const progressColumns = `id, user_id, challenge_id, date, day_number, tasks, completion_rate, created_at, updated_at`

func scanProgress(row pgx.Row) (*progress.DailyProgress, error) {
	record := &progress.DailyProgress{}
	var tasksJSON []byte
	err := row.Scan(
		&record.ID,
		&record.UserID,
		&record.ChallengeID,
		&record.Date,
		&record.DayNumber,
		&tasksJSON,
		&record.CompletionRate,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(tasksJSON, &record.Tasks); err != nil {
		return nil, fmt.Errorf("failed to decode tasks: %w", err)
	}
	return record, nil
}

func (s *ProgressService) findRecordByDate(ctx context.Context, userID, challengeID uuid.UUID, day time.Time) (*progress.DailyProgress, error) {
	query := `SELECT ` + progressColumns + `
	FROM daily_progress
	WHERE user_id = $1 AND challenge_id = $2 AND date = $3`

	record, err := scanProgress(s.db.QueryRow(ctx, query, userID, challengeID, progress.MidnightUTC(day)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: progress for %s", ErrNotFound, day.Format(progress.DateLayout))
		}
		return nil, fmt.Errorf("failed to get progress: %w", err)
	}
	return record, nil
}

func (s *ProgressService) getRecord(ctx context.Context, userID uuid.UUID, progressID string) (*progress.DailyProgress, error) {
	id, err := uuid.Parse(progressID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid progress id", ErrInvalidInput)
	}

	query := `SELECT ` + progressColumns + `
	FROM daily_progress
	WHERE id = $1 AND user_id = $2`

	record, err := scanProgress(s.db.QueryRow(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: progress %s", ErrNotFound, progressID)
		}
		return nil, fmt.Errorf("failed to get progress: %w", err)
	}
	return record, nil
}

func (s *ProgressService) listRecords(ctx context.Context, userID, challengeID uuid.UUID) ([]*progress.DailyProgress, error) {
	query := `SELECT ` + progressColumns + `
	FROM daily_progress
	WHERE user_id = $1 AND challenge_id = $2
	ORDER BY day_number ASC`

	rows, err := s.db.Query(ctx, query, userID, challengeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list progress: %w", err)
	}
	defer rows.Close()

	var records []*progress.DailyProgress
	for rows.Next() {
		record, err := scanProgress(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// saveTasks persists the record's task list with the completion rate
// recomputed from it. The rate is never written from any other source.
func (s *ProgressService) saveTasks(ctx context.Context, record *progress.DailyProgress) (*progress.DailyProgress, error) {
	record.CompletionRate = progress.CompletionRate(record.Tasks)

	tasksJSON, err := json.Marshal(record.Tasks)
	if err != nil {
		return nil, fmt.Errorf("failed to encode tasks: %w", err)
	}

	query := `
	UPDATE daily_progress
	SET tasks = $2, completion_rate = $3, updated_at = NOW()
	WHERE id = $1
	RETURNING updated_at
	`

	if err := s.db.QueryRow(ctx, query, record.ID, tasksJSON, record.CompletionRate).Scan(&record.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to update progress: %w", err)
	}
	return record, nil
}

func (s *ProgressService) purgeChallenge(ctx context.Context, challengeID uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM daily_progress WHERE challenge_id = $1`, challengeID)
	if err != nil {
		return fmt.Errorf("failed to purge progress: %w", err)
	}
	log.Printf("Purged %d progress records for challenge %s", tag.RowsAffected(), challengeID)
	return nil
}

// elapsedDays is the day count from start through today, capped at the
// challenge duration. 0 when the challenge has not started yet.
func (s *ProgressService) elapsedDays(ch *challenge.Challenge) int {
	elapsed := progress.DayNumber(ch.StartDate, s.now())
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed > ch.DurationDays {
		elapsed = ch.DurationDays
	}
	return elapsed
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
