package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"stayHardAPI/internal/gallery"
)

type GalleryService struct {
	db  *pgxpool.Pool
	now func() time.Time
}

func NewGalleryService(db *pgxpool.Pool) *GalleryService {
	return &GalleryService{db: db, now: time.Now}
}

var dateLabelRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

type UploadPhotoParams struct {
	ChallengeID    string
	Date           string
	LocalTimestamp string
	Timezone       string
	TimezoneOffset int
	Filename       string
	ContentType    string
	Data           []byte
}

// UploadPhoto stores a progress picture. The client-supplied date, local
// timestamp and timezone are kept as opaque labels for display and filtering;
// the server clock alone decides the upload time.
func (s *GalleryService) UploadPhoto(ctx context.Context, clerkID string, params *UploadPhotoParams) (*gallery.Photo, error) {
	if len(params.Data) == 0 {
		return nil, fmt.Errorf("%w: empty photo payload", ErrInvalidInput)
	}
	if !dateLabelRe.MatchString(params.Date) {
		return nil, fmt.Errorf("%w: invalid date %q, use YYYY-MM-DD", ErrInvalidInput, params.Date)
	}

	userID, challengeID, err := s.resolveOwner(ctx, clerkID, params.ChallengeID)
	if err != nil {
		return nil, err
	}

	photo := &gallery.Photo{
		ID:             uuid.New(),
		UserID:         userID,
		ChallengeID:    challengeID,
		Date:           params.Date,
		Filename:       params.Filename,
		ContentType:    params.ContentType,
		SizeBytes:      len(params.Data),
		UploadedAt:     s.now().UTC(),
		LocalTimestamp: params.LocalTimestamp,
		Timezone:       params.Timezone,
		TimezoneOffset: params.TimezoneOffset,
	}
	if photo.ContentType == "" {
		photo.ContentType = "image/jpeg"
	}
	if photo.Timezone == "" {
		photo.Timezone = "UTC"
	}
	if photo.LocalTimestamp == "" {
		photo.LocalTimestamp = photo.UploadedAt.Format(time.RFC3339)
	}

	query := `
	INSERT INTO photos (id, user_id, challenge_id, date, filename, content_type, size_bytes, data, uploaded_at, local_timestamp, timezone, timezone_offset)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err = s.db.Exec(ctx, query,
		photo.ID, photo.UserID, photo.ChallengeID, photo.Date,
		photo.Filename, photo.ContentType, photo.SizeBytes, params.Data,
		photo.UploadedAt, photo.LocalTimestamp, photo.Timezone, photo.TimezoneOffset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to store photo: %w", err)
	}

	photo.URL = "/api/v1/gallery/" + photo.ID.String()
	return photo, nil
}

// ListPhotos returns photo metadata for the user, optionally filtered by
// challenge and by an inclusive date-label range. Binary data is excluded.
func (s *GalleryService) ListPhotos(ctx context.Context, clerkID, challengeID, startDate, endDate string) ([]*gallery.Photo, error) {
	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	query := `
	SELECT id, user_id, challenge_id, date, filename, content_type, size_bytes, uploaded_at, local_timestamp, timezone, timezone_offset
	FROM photos
	WHERE user_id = $1
	  AND ($2 = '' OR challenge_id::text = $2)
	  AND ($3 = '' OR date >= $3)
	  AND ($4 = '' OR date <= $4)
	ORDER BY uploaded_at DESC
	`

	rows, err := s.db.Query(ctx, query, userID, challengeID, startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("failed to list photos: %w", err)
	}
	defer rows.Close()

	var photos []*gallery.Photo
	for rows.Next() {
		p := &gallery.Photo{}
		if err := rows.Scan(
			&p.ID, &p.UserID, &p.ChallengeID, &p.Date,
			&p.Filename, &p.ContentType, &p.SizeBytes, &p.UploadedAt,
			&p.LocalTimestamp, &p.Timezone, &p.TimezoneOffset,
		); err != nil {
			return nil, fmt.Errorf("failed to scan photo: %w", err)
		}
		p.URL = "/api/v1/gallery/" + p.ID.String()
		photos = append(photos, p)
	}
	return photos, rows.Err()
}

// GetPhotoContent returns the raw bytes and content type for streaming.
func (s *GalleryService) GetPhotoContent(ctx context.Context, clerkID, photoID string) (string, []byte, error) {
	id, err := uuid.Parse(photoID)
	if err != nil {
		return "", nil, fmt.Errorf("%w: invalid photo id", ErrInvalidInput)
	}

	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return "", nil, err
	}

	var contentType string
	var data []byte
	err = s.db.QueryRow(ctx,
		`SELECT content_type, data FROM photos WHERE id = $1 AND user_id = $2`,
		id, userID,
	).Scan(&contentType, &data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil, fmt.Errorf("%w: photo %s", ErrNotFound, photoID)
		}
		return "", nil, fmt.Errorf("failed to get photo: %w", err)
	}
	return contentType, data, nil
}

func (s *GalleryService) DeletePhoto(ctx context.Context, clerkID, photoID string) error {
	id, err := uuid.Parse(photoID)
	if err != nil {
		return fmt.Errorf("%w: invalid photo id", ErrInvalidInput)
	}

	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return err
	}

	tag, err := s.db.Exec(ctx, `DELETE FROM photos WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete photo: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: photo %s", ErrNotFound, photoID)
	}
	return nil
}

func (s *GalleryService) getUserID(ctx context.Context, clerkID string) (uuid.UUID, error) {
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

func (s *GalleryService) resolveOwner(ctx context.Context, clerkID, challengeID string) (uuid.UUID, uuid.UUID, error) {
	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}

	chID, err := uuid.Parse(challengeID)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("%w: invalid challenge id", ErrInvalidInput)
	}

	var exists bool
	err = s.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM challenges WHERE id = $1 AND user_id = $2)`,
		chID, userID,
	).Scan(&exists)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("failed to verify challenge: %w", err)
	}
	if !exists {
		return uuid.Nil, uuid.Nil, fmt.Errorf("%w: challenge %s", ErrNotFound, challengeID)
	}
	return userID, chID, nil
}
