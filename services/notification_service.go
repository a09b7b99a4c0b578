package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"stayHardAPI/internal/notification"
)

// PushProvider delivers a notification to a set of device tokens.
// Implemented by notification.FCMService.
type PushProvider interface {
	SendPush(ctx context.Context, tokens []notification.DeviceToken, title, body string, data map[string]any) error
}

type NotificationService struct {
	db           *pgxpool.Pool
	pushProvider PushProvider
}

func NewNotificationService(db *pgxpool.Pool) *NotificationService {
	return &NotificationService{db: db}
}

func (s *NotificationService) SetPushProvider(provider PushProvider) {
	s.pushProvider = provider
}

// RegisterDevice upserts a device token for the user so pushes can reach it.
func (s *NotificationService) RegisterDevice(ctx context.Context, clerkID string, req *notification.RegisterDeviceRequest) error {
	if req.Token == "" {
		return fmt.Errorf("%w: token is required", ErrInvalidInput)
	}

	var userID uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT id FROM users WHERE clerk_id = $1`, clerkID).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: user", ErrNotFound)
		}
		return fmt.Errorf("failed to get user: %w", err)
	}

	query := `
	INSERT INTO device_tokens (id, user_id, token, platform, added_at, last_used)
	VALUES ($1, $2, $3, $4, NOW(), NOW())
	ON CONFLICT (user_id, token)
	DO UPDATE SET platform = $4, last_used = NOW()
	`
	if _, err := s.db.Exec(ctx, query, uuid.New(), userID, req.Token, req.Platform); err != nil {
		return fmt.Errorf("failed to register device: %w", err)
	}
	return nil
}

// NotifyUser sends a push to all of the user's registered devices. Delivery
// is best effort: failures are logged, never propagated to the caller's
// request.
func (s *NotificationService) NotifyUser(ctx context.Context, userID uuid.UUID, title, body string, data map[string]any) {
	if s.pushProvider == nil {
		return
	}

	tokens, err := s.deviceTokens(ctx, userID)
	if err != nil {
		log.Printf("Notify: failed to load device tokens for %s: %v", userID, err)
		return
	}

	if err := s.pushProvider.SendPush(ctx, tokens, title, body, data); err != nil {
		log.Printf("Notify: push to user %s failed: %v", userID, err)
	}
}

// SendTest pushes a test notification to the caller's own devices.
func (s *NotificationService) SendTest(ctx context.Context, clerkID string) error {
	if s.pushProvider == nil {
		return fmt.Errorf("%w: push provider not configured", ErrInvalidState)
	}

	var userID uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT id FROM users WHERE clerk_id = $1`, clerkID).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: user", ErrNotFound)
		}
		return fmt.Errorf("failed to get user: %w", err)
	}

	tokens, err := s.deviceTokens(ctx, userID)
	if err != nil {
		return err
	}
	if len(tokens) == 0 {
		return fmt.Errorf("%w: no registered devices", ErrNotFound)
	}

	return s.pushProvider.SendPush(ctx, tokens, "Test notification",
		"Push notifications are working.", map[string]any{"type": "test"})
}

func (s *NotificationService) deviceTokens(ctx context.Context, userID uuid.UUID) ([]notification.DeviceToken, error) {
	query := `
	SELECT id, user_id, token, platform, added_at, last_used
	FROM device_tokens
	WHERE user_id = $1
	`
	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list device tokens: %w", err)
	}
	defer rows.Close()

	var tokens []notification.DeviceToken
	for rows.Next() {
		var t notification.DeviceToken
		if err := rows.Scan(&t.ID, &t.UserID, &t.Token, &t.Platform, &t.AddedAt, &t.LastUsed); err != nil {
			return nil, fmt.Errorf("failed to scan device token: %w", err)
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}
