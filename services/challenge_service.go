package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/skip2/go-qrcode"

	"stayHardAPI/internal/challenge"
	"stayHardAPI/internal/progress"
	"stayHardAPI/internal/tasks"
)

// ChallengeConfig carries the policy switches read from the environment.
// KeepProgressOnLevelChange preserves progress history when the difficulty
// changes instead of the default purge-and-reseed.
type ChallengeConfig struct {
	KeepProgressOnLevelChange bool
}

type ChallengeService struct {
	db       *pgxpool.Pool
	progress *ProgressService
	catalog  *tasks.Catalog
	config   ChallengeConfig
	notifier *NotificationService
	now      func() time.Time
}

func NewChallengeService(db *pgxpool.Pool, progressService *ProgressService, catalog *tasks.Catalog, config ChallengeConfig) *ChallengeService {
	return &ChallengeService{
		db:       db,
		progress: progressService,
		catalog:  catalog,
		config:   config,
		now:      time.Now,
	}
}

// SetNotifier injects the push notification service.
func (s *ChallengeService) SetNotifier(notifier *NotificationService) {
	s.notifier = notifier
}

// SetClock overrides the time source. Used by tests to pin "today".
func (s *ChallengeService) SetClock(now func() time.Time) {
	s.now = now
	s.progress.SetClock(now)
}

// StartDefault starts the default 21-day Soft challenge. When the user
// already has an active challenge it is returned unchanged, so the call is
// idempotent and a user can never hold two active challenges.
func (s *ChallengeService) StartDefault(ctx context.Context, clerkID string) (*challenge.Challenge, bool, error) {
	userID, err := s.progress.getUserID(ctx, clerkID)
	if err != nil {
		return nil, false, err
	}

	existing, err := s.findActive(ctx, userID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	ch, err := s.createChallenge(ctx, userID, challenge.DefaultLevel, challenge.DefaultDurationDays, nil)
	if err != nil {
		if errors.Is(err, ErrConflict) {
			// Lost the race to a concurrent start; the winner's challenge is
			// the active one.
			if existing, findErr := s.findActive(ctx, userID); findErr == nil {
				return existing, false, nil
			}
		}
		return nil, false, err
	}

	return ch, true, nil
}

// Get loads a challenge and, for active ones, refreshes the derived
// aggregates: backfill first, then a full stats recompute. The recompute is
// the single source of truth for the aggregates; individual task toggles
// never patch them incrementally.
func (s *ChallengeService) Get(ctx context.Context, clerkID, challengeID string) (*challenge.Challenge, error) {
	userID, err := s.progress.getUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	ch, err := s.loadChallenge(ctx, userID, challengeID)
	if err != nil {
		return nil, err
	}

	if ch.Status != challenge.StatusActive {
		return ch, nil
	}

	if err := s.refreshStats(ctx, ch); err != nil {
		return nil, err
	}
	return ch, nil
}

// GetCurrent returns the user's active challenge with refreshed stats.
func (s *ChallengeService) GetCurrent(ctx context.Context, clerkID string) (*challenge.Challenge, error) {
	userID, err := s.progress.getUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	ch, err := s.findActive(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.refreshStats(ctx, ch); err != nil {
		return nil, err
	}
	return ch, nil
}

// UpdateDays changes the challenge duration. Active challenges only.
func (s *ChallengeService) UpdateDays(ctx context.Context, clerkID, challengeID string, days int) (*challenge.Challenge, error) {
	if !challenge.ValidDuration(days) {
		return nil, fmt.Errorf("%w: duration must be one of %v", ErrInvalidInput, challenge.ValidDurations)
	}

	userID, err := s.progress.getUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	ch, err := s.loadChallenge(ctx, userID, challengeID)
	if err != nil {
		return nil, err
	}
	if ch.Status != challenge.StatusActive {
		return nil, fmt.Errorf("%w: can only update duration of active challenges", ErrInvalidState)
	}

	newEnd := progress.MidnightUTC(ch.StartDate).AddDate(0, 0, days)
	query := `
	UPDATE challenges
	SET duration_days = $2, expected_end_date = $3, updated_at = NOW()
	WHERE id = $1
	`
	if _, err := s.db.Exec(ctx, query, ch.ID, days, newEnd); err != nil {
		return nil, fmt.Errorf("failed to update challenge days: %w", err)
	}

	ch.DurationDays = days
	ch.ExpectedEndDate = newEnd
	return ch, nil
}

// UpdateDifficulty switches the challenge level. Unless configured to keep
// history, all prior progress is purged, the start date moves to today and a
// fresh day-1 record is seeded under the new template.
func (s *ChallengeService) UpdateDifficulty(ctx context.Context, clerkID, challengeID string, req *challenge.UpdateDifficultyRequest) (*challenge.Challenge, error) {
	if !req.Level.Valid() {
		return nil, fmt.Errorf("%w: level must be one of Soft, Hard, Custom", ErrInvalidInput)
	}
	if req.Level == challenge.LevelCustom && len(req.CustomTasks) == 0 {
		return nil, fmt.Errorf("%w: custom_tasks required when setting level to Custom", ErrInvalidInput)
	}

	userID, err := s.progress.getUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	ch, err := s.loadChallenge(ctx, userID, challengeID)
	if err != nil {
		return nil, err
	}
	if ch.Status != challenge.StatusActive {
		return nil, fmt.Errorf("%w: can only update difficulty of active challenges", ErrInvalidState)
	}

	var template []challenge.TaskSpec
	if req.Level == challenge.LevelCustom {
		template = req.CustomTasks
		for i := range template {
			if template[i].ID == "" {
				template[i].ID = uuid.New().String()
			}
		}
	}

	templateJSON, err := json.Marshal(template)
	if err != nil {
		return nil, fmt.Errorf("failed to encode task template: %w", err)
	}

	if s.config.KeepProgressOnLevelChange {
		query := `
		UPDATE challenges
		SET level = $2, task_template = $3, updated_at = NOW()
		WHERE id = $1
		`
		if _, err := s.db.Exec(ctx, query, ch.ID, req.Level, templateJSON); err != nil {
			return nil, fmt.Errorf("failed to update difficulty: %w", err)
		}
		ch.Level = req.Level
		ch.TaskTemplate = template
		return ch, nil
	}

	if err := s.progress.purgeChallenge(ctx, ch.ID); err != nil {
		return nil, err
	}

	start := progress.MidnightUTC(s.now())
	newEnd := start.AddDate(0, 0, ch.DurationDays)
	query := `
	UPDATE challenges
	SET level = $2, task_template = $3, start_date = $4, expected_end_date = $5,
	    total_days_elapsed = 0, completed_days = 0, current_streak = 0,
	    longest_streak = 0, avg_completion_rate = 0, updated_at = NOW()
	WHERE id = $1
	`
	if _, err := s.db.Exec(ctx, query, ch.ID, req.Level, templateJSON, start, newEnd); err != nil {
		return nil, fmt.Errorf("failed to update difficulty: %w", err)
	}

	ch.Level = req.Level
	ch.TaskTemplate = template
	ch.StartDate = start
	ch.ExpectedEndDate = newEnd
	ch.TotalDaysElapsed = 0
	ch.CompletedDays = 0
	ch.CurrentStreak = 0
	ch.LongestStreak = 0
	ch.AvgCompletionRate = 0

	// Seed day 1 under the new template.
	if err := s.progress.EnsureProgressThrough(ctx, ch, s.now()); err != nil {
		return nil, err
	}
	return ch, nil
}

// Reset restarts a challenge from scratch: new start date, Soft level,
// default duration, all prior progress purged, one fresh day-1 record.
// Allowed for active and failed challenges.
func (s *ChallengeService) Reset(ctx context.Context, clerkID, challengeID string) (*challenge.Challenge, error) {
	userID, err := s.progress.getUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	ch, err := s.loadChallenge(ctx, userID, challengeID)
	if err != nil {
		return nil, err
	}
	if ch.Status != challenge.StatusActive && ch.Status != challenge.StatusFailed {
		return nil, fmt.Errorf("%w: can only reset active or failed challenges", ErrInvalidState)
	}

	if err := s.progress.purgeChallenge(ctx, ch.ID); err != nil {
		return nil, err
	}

	start := progress.MidnightUTC(s.now())
	newEnd := start.AddDate(0, 0, challenge.DefaultDurationDays)
	query := `
	UPDATE challenges
	SET level = $2, duration_days = $3, start_date = $4, expected_end_date = $5,
	    status = $6, task_template = NULL,
	    total_days_elapsed = 0, completed_days = 0, current_streak = 0,
	    longest_streak = 0, avg_completion_rate = 0,
	    completed_at = NULL, failed_at = NULL, failure_reason = NULL,
	    updated_at = NOW()
	WHERE id = $1
	`
	_, err = s.db.Exec(ctx, query, ch.ID,
		challenge.DefaultLevel, challenge.DefaultDurationDays, start, newEnd, challenge.StatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to reset challenge: %w", err)
	}

	ch.Level = challenge.DefaultLevel
	ch.DurationDays = challenge.DefaultDurationDays
	ch.StartDate = start
	ch.ExpectedEndDate = newEnd
	ch.Status = challenge.StatusActive
	ch.TaskTemplate = nil
	ch.TotalDaysElapsed = 0
	ch.CompletedDays = 0
	ch.CurrentStreak = 0
	ch.LongestStreak = 0
	ch.AvgCompletionRate = 0
	ch.CompletedAt = nil
	ch.FailedAt = nil
	ch.FailureReason = nil

	if err := s.progress.EnsureProgressThrough(ctx, ch, s.now()); err != nil {
		return nil, err
	}
	return ch, nil
}

// UpdateStatus moves an active challenge to completed, failed or abandoned.
func (s *ChallengeService) UpdateStatus(ctx context.Context, clerkID, challengeID string, status challenge.Status, reason string) (*challenge.Challenge, error) {
	switch status {
	case challenge.StatusCompleted, challenge.StatusFailed, challenge.StatusAbandoned:
	default:
		return nil, fmt.Errorf("%w: status must be completed, failed or abandoned", ErrInvalidInput)
	}

	userID, err := s.progress.getUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	ch, err := s.loadChallenge(ctx, userID, challengeID)
	if err != nil {
		return nil, err
	}
	if ch.Status != challenge.StatusActive {
		return nil, fmt.Errorf("%w: challenge is %s, not active", ErrInvalidState, ch.Status)
	}

	if err := s.transition(ctx, ch, status, reason); err != nil {
		return nil, err
	}
	return ch, nil
}

// ShareQR renders a QR code encoding the challenge deep link so a user can
// show their commitment to friends.
func (s *ChallengeService) ShareQR(ctx context.Context, clerkID, challengeID string) (*challenge.ShareQrResponse, error) {
	userID, err := s.progress.getUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	ch, err := s.loadChallenge(ctx, userID, challengeID)
	if err != nil {
		return nil, err
	}

	deepLink := fmt.Sprintf("stayhard://challenge/view/%s", ch.ID)
	pngBytes, err := qrcode.Encode(deepLink, qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("failed to generate QR png: %w", err)
	}

	return &challenge.ShareQrResponse{
		ChallengeID:  ch.ID.String(),
		QrCodeBase64: base64.StdEncoding.EncodeToString(pngBytes),
		DeepLink:     deepLink,
	}, nil
}

// ---------------------------------------------------------------------------
// internals
// ---------------------------------------------------------------------------

const challengeColumns = `id, user_id, duration_days, level, start_date, expected_end_date, status, task_template,
	total_days_elapsed, completed_days, current_streak, longest_streak, avg_completion_rate,
	completed_at, failed_at, failure_reason, created_at, updated_at`

func scanChallenge(row pgx.Row) (*challenge.Challenge, error) {
	ch := &challenge.Challenge{}
	var template []byte
	err := row.Scan(
		&ch.ID,
		&ch.UserID,
		&ch.DurationDays,
		&ch.Level,
		&ch.StartDate,
		&ch.ExpectedEndDate,
		&ch.Status,
		&template,
		&ch.TotalDaysElapsed,
		&ch.CompletedDays,
		&ch.CurrentStreak,
		&ch.LongestStreak,
		&ch.AvgCompletionRate,
		&ch.CompletedAt,
		&ch.FailedAt,
		&ch.FailureReason,
		&ch.CreatedAt,
		&ch.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(template) > 0 {
		if err := json.Unmarshal(template, &ch.TaskTemplate); err != nil {
			return nil, fmt.Errorf("failed to decode task template: %w", err)
		}
	}
	return ch, nil
}

func (s *ChallengeService) loadChallenge(ctx context.Context, userID uuid.UUID, challengeID string) (*challenge.Challenge, error) {
	id, err := uuid.Parse(challengeID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid challenge id", ErrInvalidInput)
	}

	query := `SELECT ` + challengeColumns + ` FROM challenges WHERE id = $1 AND user_id = $2`
	ch, err := scanChallenge(s.db.QueryRow(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: challenge %s", ErrNotFound, challengeID)
		}
		return nil, fmt.Errorf("failed to get challenge: %w", err)
	}
	return ch, nil
}

func (s *ChallengeService) findActive(ctx context.Context, userID uuid.UUID) (*challenge.Challenge, error) {
	query := `SELECT ` + challengeColumns + ` FROM challenges WHERE user_id = $1 AND status = 'active'`
	ch, err := scanChallenge(s.db.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: no active challenge", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get active challenge: %w", err)
	}
	return ch, nil
}

func (s *ChallengeService) createChallenge(ctx context.Context, userID uuid.UUID, level challenge.Level, days int, template []challenge.TaskSpec) (*challenge.Challenge, error) {
	start := progress.MidnightUTC(s.now())

	templateJSON, err := json.Marshal(template)
	if err != nil {
		return nil, fmt.Errorf("failed to encode task template: %w", err)
	}

	ch := &challenge.Challenge{
		ID:              uuid.New(),
		UserID:          userID,
		DurationDays:    days,
		Level:           level,
		StartDate:       start,
		ExpectedEndDate: start.AddDate(0, 0, days),
		Status:          challenge.StatusActive,
		TaskTemplate:    template,
	}

	query := `
	INSERT INTO challenges (id, user_id, duration_days, level, start_date, expected_end_date, status, task_template, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
	RETURNING created_at, updated_at
	`
	err = s.db.QueryRow(ctx, query,
		ch.ID, ch.UserID, ch.DurationDays, ch.Level, ch.StartDate, ch.ExpectedEndDate, ch.Status, templateJSON,
	).Scan(&ch.CreatedAt, &ch.UpdatedAt)
	if err != nil {
		// The partial unique index on (user_id) WHERE status = 'active'
		// enforces the one-active-challenge invariant under concurrency.
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: user already has an active challenge", ErrConflict)
		}
		return nil, fmt.Errorf("failed to create challenge: %w", err)
	}

	if _, err := s.db.Exec(ctx,
		`UPDATE users SET current_challenge_id = $2, updated_at = NOW() WHERE id = $1`,
		userID, ch.ID,
	); err != nil {
		log.Printf("Failed to link challenge %s to user %s: %v", ch.ID, userID, err)
	}

	if err := s.progress.EnsureProgressThrough(ctx, ch, s.now()); err != nil {
		return nil, err
	}
	return ch, nil
}

// refreshStats backfills, recomputes every aggregate from the full record
// set and persists the result. When the challenge window has fully elapsed
// the status is settled too: completed when every day was perfect, failed
// otherwise.
func (s *ChallengeService) refreshStats(ctx context.Context, ch *challenge.Challenge) error {
	if err := s.progress.EnsureProgressThrough(ctx, ch, s.now()); err != nil {
		return err
	}

	records, err := s.progress.listRecords(ctx, ch.UserID, ch.ID)
	if err != nil {
		return err
	}

	stats := progress.ComputeStats(records, s.progress.elapsedDays(ch))

	query := `
	UPDATE challenges
	SET total_days_elapsed = $2, completed_days = $3, current_streak = $4,
	    longest_streak = $5, avg_completion_rate = $6, updated_at = NOW()
	WHERE id = $1
	`
	_, err = s.db.Exec(ctx, query, ch.ID,
		stats.TotalDaysElapsed, stats.CompletedDays, stats.CurrentStreak,
		stats.LongestStreak, stats.AvgCompletionRate)
	if err != nil {
		return fmt.Errorf("failed to persist stats: %w", err)
	}

	ch.TotalDaysElapsed = stats.TotalDaysElapsed
	ch.CompletedDays = stats.CompletedDays
	ch.CurrentStreak = stats.CurrentStreak
	ch.LongestStreak = stats.LongestStreak
	ch.AvgCompletionRate = stats.AvgCompletionRate

	windowOver := progress.DayNumber(ch.StartDate, s.now()) > ch.DurationDays
	if !windowOver {
		return nil
	}

	if stats.CompletedDays == ch.DurationDays {
		return s.transition(ctx, ch, challenge.StatusCompleted, "")
	}
	return s.transition(ctx, ch, challenge.StatusFailed,
		fmt.Sprintf("challenge ended with %d of %d days completed", stats.CompletedDays, ch.DurationDays))
}

func (s *ChallengeService) transition(ctx context.Context, ch *challenge.Challenge, status challenge.Status, reason string) error {
	now := s.now()

	query := `
	UPDATE challenges
	SET status = $2,
	    completed_at = CASE WHEN $2 = 'completed' THEN $3 ELSE completed_at END,
	    failed_at = CASE WHEN $2 = 'failed' THEN $3 ELSE failed_at END,
	    failure_reason = NULLIF($4, ''),
	    updated_at = NOW()
	WHERE id = $1
	`
	if _, err := s.db.Exec(ctx, query, ch.ID, status, now, reason); err != nil {
		return fmt.Errorf("failed to update challenge status: %w", err)
	}

	ch.Status = status
	switch status {
	case challenge.StatusCompleted:
		ch.CompletedAt = &now
	case challenge.StatusFailed:
		ch.FailedAt = &now
		if reason != "" {
			ch.FailureReason = &reason
		}
	}

	if s.notifier != nil {
		switch status {
		case challenge.StatusCompleted:
			s.notifier.NotifyUser(ctx, ch.UserID, "Challenge complete!",
				fmt.Sprintf("You finished all %d days. Stay hard.", ch.DurationDays),
				map[string]any{"challenge_id": ch.ID.String(), "status": string(status)})
		case challenge.StatusFailed:
			s.notifier.NotifyUser(ctx, ch.UserID, "Challenge over",
				"This run has ended. Reset and go again.",
				map[string]any{"challenge_id": ch.ID.String(), "status": string(status)})
		}
	}
	return nil
}
