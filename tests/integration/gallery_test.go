package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stayHardAPI/internal/tasks"
	"stayHardAPI/services"
	"stayHardAPI/tests/helpers"
)

func TestGalleryFlow(t *testing.T) {
	pool := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, pool)

	catalog := tasks.DefaultCatalog()
	userService := services.NewUserService(pool)
	progressService := services.NewProgressService(pool, catalog)
	challengeService := services.NewChallengeService(pool, progressService, catalog, services.ChallengeConfig{})
	galleryService := services.NewGalleryService(pool)

	day1 := time.Date(2025, time.July, 1, 8, 0, 0, 0, time.UTC)
	challengeService.SetClock(helpers.FrozenClock(day1))

	clerkID := newTestUser(t, userService)
	ctx := context.Background()

	ch, _, err := challengeService.StartDefault(ctx, clerkID)
	require.NoError(t, err)

	imageBytes := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 0x4A, 0x46}

	photo, err := galleryService.UploadPhoto(ctx, clerkID, &services.UploadPhotoParams{
		ChallengeID:    ch.ID.String(),
		Date:           "2025-07-01",
		LocalTimestamp: "2025-07-01T22:15:00+03:00",
		Timezone:       "Europe/Sofia",
		TimezoneOffset: 180,
		Filename:       "day1.jpg",
		ContentType:    "image/jpeg",
		Data:           imageBytes,
	})
	require.NoError(t, err)
	assert.Equal(t, len(imageBytes), photo.SizeBytes)
	// The client's local evening timestamp is stored verbatim, not converted.
	assert.Equal(t, "2025-07-01T22:15:00+03:00", photo.LocalTimestamp)
	assert.Equal(t, "2025-07-01", photo.Date)
	assert.Contains(t, photo.URL, photo.ID.String())

	_, err = galleryService.UploadPhoto(ctx, clerkID, &services.UploadPhotoParams{
		ChallengeID: ch.ID.String(),
		Date:        "2025-07-02",
		Filename:    "day2.jpg",
		Data:        []byte{0x01},
	})
	require.NoError(t, err)

	// Bad inputs.
	_, err = galleryService.UploadPhoto(ctx, clerkID, &services.UploadPhotoParams{
		ChallengeID: ch.ID.String(),
		Date:        "2025-07-01",
		Data:        nil,
	})
	assert.ErrorIs(t, err, services.ErrInvalidInput)

	_, err = galleryService.UploadPhoto(ctx, clerkID, &services.UploadPhotoParams{
		ChallengeID: ch.ID.String(),
		Date:        "July 1st",
		Data:        []byte{0x01},
	})
	assert.ErrorIs(t, err, services.ErrInvalidInput)

	// Listing returns metadata only, filterable by date range.
	photos, err := galleryService.ListPhotos(ctx, clerkID, ch.ID.String(), "", "")
	require.NoError(t, err)
	assert.Len(t, photos, 2)

	photos, err = galleryService.ListPhotos(ctx, clerkID, ch.ID.String(), "2025-07-02", "2025-07-02")
	require.NoError(t, err)
	require.Len(t, photos, 1)
	assert.Equal(t, "day2.jpg", photos[0].Filename)

	// Streaming returns the stored bytes and content type.
	contentType, data, err := galleryService.GetPhotoContent(ctx, clerkID, photo.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", contentType)
	assert.Equal(t, imageBytes, data)

	// Delete, then the photo is gone.
	require.NoError(t, galleryService.DeletePhoto(ctx, clerkID, photo.ID.String()))
	err = galleryService.DeletePhoto(ctx, clerkID, photo.ID.String())
	assert.ErrorIs(t, err, services.ErrNotFound)
}

func TestGallery_OwnershipEnforced(t *testing.T) {
	pool := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, pool)

	catalog := tasks.DefaultCatalog()
	userService := services.NewUserService(pool)
	progressService := services.NewProgressService(pool, catalog)
	challengeService := services.NewChallengeService(pool, progressService, catalog, services.ChallengeConfig{})
	galleryService := services.NewGalleryService(pool)

	ctx := context.Background()
	owner := newTestUser(t, userService)
	time.Sleep(10 * time.Millisecond)
	stranger := newTestUser(t, userService)

	ch, _, err := challengeService.StartDefault(ctx, owner)
	require.NoError(t, err)

	photo, err := galleryService.UploadPhoto(ctx, owner, &services.UploadPhotoParams{
		ChallengeID: ch.ID.String(),
		Date:        "2025-07-01",
		Filename:    "mine.jpg",
		Data:        []byte{0x01, 0x02},
	})
	require.NoError(t, err)

	// Another user cannot read, delete or attach photos to the challenge.
	_, _, err = galleryService.GetPhotoContent(ctx, stranger, photo.ID.String())
	assert.ErrorIs(t, err, services.ErrNotFound)

	err = galleryService.DeletePhoto(ctx, stranger, photo.ID.String())
	assert.ErrorIs(t, err, services.ErrNotFound)

	_, err = galleryService.UploadPhoto(ctx, stranger, &services.UploadPhotoParams{
		ChallengeID: ch.ID.String(),
		Date:        "2025-07-01",
		Data:        []byte{0x01},
	})
	assert.ErrorIs(t, err, services.ErrNotFound)
}
