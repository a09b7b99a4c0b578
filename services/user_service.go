package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"stayHardAPI/internal/user"
)

type UserService struct {
	db *pgxpool.Pool
}

func NewUserService(db *pgxpool.Pool) *UserService {
	return &UserService{db: db}
}

func (s *UserService) CreateUser(ctx context.Context, req *user.CreateUserRequest) (*user.User, error) {
	u := &user.User{
		ID:        uuid.New(),
		ClerkID:   req.ClerkID,
		Email:     req.Email,
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		ImageURL:  req.ImageURL,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	query := `
	INSERT INTO users (id, clerk_id, email, username, first_name, last_name, image_url, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	RETURNING id, clerk_id, email, username, first_name, last_name, image_url, email_verified, created_at, updated_at
	`

	err := s.db.QueryRow(
		ctx,
		query,
		u.ID,
		u.ClerkID,
		u.Email,
		u.Username,
		u.FirstName,
		u.LastName,
		u.ImageURL,
		u.CreatedAt,
		u.UpdatedAt,
	).Scan(
		&u.ID,
		&u.ClerkID,
		&u.Email,
		&u.Username,
		&u.FirstName,
		&u.LastName,
		&u.ImageURL,
		&u.EmailVerified,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: user already exists", ErrConflict)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return u, nil
}

func (s *UserService) GetUserByClerkID(ctx context.Context, clerkID string) (*user.User, error) {
	query := `
	SELECT id, clerk_id, email, username, first_name, last_name, image_url, email_verified, current_challenge_id, created_at, updated_at
	FROM users
	WHERE clerk_id = $1
	`

	u := &user.User{}
	err := s.db.QueryRow(ctx, query, clerkID).Scan(
		&u.ID,
		&u.ClerkID,
		&u.Email,
		&u.Username,
		&u.FirstName,
		&u.LastName,
		&u.ImageURL,
		&u.EmailVerified,
		&u.CurrentChallengeID,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: user", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return u, nil
}

func (s *UserService) UpdateProfileByClerkID(ctx context.Context, clerkID string, req *user.UpdateProfileRequest) (*user.User, error) {
	query := `
	UPDATE users
	SET
		username = COALESCE(NULLIF($2, ''), username),
		first_name = COALESCE(NULLIF($3, ''), first_name),
		last_name = COALESCE(NULLIF($4, ''), last_name),
		image_url = COALESCE(NULLIF($5, ''), image_url),
		updated_at = NOW()
	WHERE clerk_id = $1
	RETURNING id, clerk_id, email, username, first_name, last_name, image_url, email_verified, current_challenge_id, created_at, updated_at
	`

	u := &user.User{}
	err := s.db.QueryRow(
		ctx,
		query,
		clerkID,
		req.Username,
		req.FirstName,
		req.LastName,
		req.ImageURL,
	).Scan(
		&u.ID,
		&u.ClerkID,
		&u.Email,
		&u.Username,
		&u.FirstName,
		&u.LastName,
		&u.ImageURL,
		&u.EmailVerified,
		&u.CurrentChallengeID,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: user", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	return u, nil
}

func (s *UserService) UpdateEmailVerification(ctx context.Context, clerkID string, verified bool) error {
	_, err := s.db.Exec(ctx,
		`UPDATE users SET email_verified = $2, updated_at = NOW() WHERE clerk_id = $1`,
		clerkID, verified)
	if err != nil {
		return fmt.Errorf("failed to update email verification: %w", err)
	}
	return nil
}

// DeleteUserByClerkID removes the user and, via FK cascade, all of their
// challenges, progress records, photos and device tokens.
func (s *UserService) DeleteUserByClerkID(ctx context.Context, clerkID string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM users WHERE clerk_id = $1`, clerkID)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: user", ErrNotFound)
	}
	return nil
}

// GetLeaderboard ranks users by longest streak, then completed challenges,
// then total completed tasks.
func (s *UserService) GetLeaderboard(ctx context.Context, limit int) ([]*user.LeaderboardEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	query := `
	WITH challenge_stats AS (
		SELECT user_id,
		       MAX(longest_streak) AS longest_streak,
		       COUNT(*) FILTER (WHERE status = 'completed') AS completed_challenges
		FROM challenges
		GROUP BY user_id
	),
	task_stats AS (
		SELECT dp.user_id, COUNT(*) AS completed_tasks
		FROM daily_progress dp,
		     LATERAL jsonb_array_elements(dp.tasks) AS t
		WHERE (t->>'completed')::boolean
		GROUP BY dp.user_id
	)
	SELECT u.id::text, u.username, u.image_url,
	       COALESCE(cs.longest_streak, 0) AS longest_streak,
	       COALESCE(cs.completed_challenges, 0) AS completed_challenges,
	       COALESCE(ts.completed_tasks, 0) AS completed_tasks
	FROM users u
	LEFT JOIN challenge_stats cs ON cs.user_id = u.id
	LEFT JOIN task_stats ts ON ts.user_id = u.id
	ORDER BY longest_streak DESC, completed_challenges DESC, completed_tasks DESC
	LIMIT $1
	`

	rows, err := s.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []*user.LeaderboardEntry
	rank := 1
	for rows.Next() {
		entry := &user.LeaderboardEntry{}
		if err := rows.Scan(
			&entry.UserID,
			&entry.Username,
			&entry.ImageURL,
			&entry.LongestStreak,
			&entry.CompletedChallenges,
			&entry.CompletedTasks,
		); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard entry: %w", err)
		}
		entry.Rank = rank
		rank++
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// GetAchievements summarizes a user's lifetime stats across all challenges.
func (s *UserService) GetAchievements(ctx context.Context, clerkID string) (*user.Achievements, error) {
	query := `
	SELECT COALESCE(MAX(c.longest_streak), 0),
	       COALESCE(MAX(c.current_streak) FILTER (WHERE c.status = 'active'), 0),
	       COUNT(c.id) FILTER (WHERE c.status = 'completed'),
	       u.created_at
	FROM users u
	LEFT JOIN challenges c ON c.user_id = u.id
	WHERE u.clerk_id = $1
	GROUP BY u.id, u.created_at
	`

	ach := &user.Achievements{}
	err := s.db.QueryRow(ctx, query, clerkID).Scan(
		&ach.LongestStreak,
		&ach.CurrentStreak,
		&ach.CompletedChallenges,
		&ach.MemberSince,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: user", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get achievements: %w", err)
	}

	taskQuery := `
	SELECT COUNT(*)
	FROM daily_progress dp
	JOIN users u ON u.id = dp.user_id,
	     LATERAL jsonb_array_elements(dp.tasks) AS t
	WHERE u.clerk_id = $1 AND (t->>'completed')::boolean
	`
	if err := s.db.QueryRow(ctx, taskQuery, clerkID).Scan(&ach.CompletedTasks); err != nil {
		return nil, fmt.Errorf("failed to count completed tasks: %w", err)
	}

	return ach, nil
}
