package integration

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stayHardAPI/handlers"
	"stayHardAPI/internal/challenge"
	"stayHardAPI/internal/tasks"
	"stayHardAPI/services"
	"stayHardAPI/tests/helpers"
)

func signWebhook(secret, svixID, svixTimestamp string, body []byte) string {
	signedContent := fmt.Sprintf("%s.%s.%s", svixID, svixTimestamp, string(body))
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signedContent))
	return "v1," + hex.EncodeToString(mac.Sum(nil))
}

func TestClerkWebhook_RejectsBadSignature(t *testing.T) {
	os.Setenv("CLERK_WEBHOOK_SECRET", "whsec_test_secret")
	defer os.Unsetenv("CLERK_WEBHOOK_SECRET")

	// Signature checking happens before any service call.
	webhookHandler := handlers.NewWebhookHandler(nil, nil)

	body := helpers.MockClerkWebhookPayload("user.created", "user_test_sig")

	// Missing svix headers.
	req := httptest.NewRequest(http.MethodPost, "/webhooks/clerk", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	webhookHandler.HandleClerkWebhook(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	// Wrong signature.
	req = httptest.NewRequest(http.MethodPost, "/webhooks/clerk", bytes.NewReader(body))
	req.Header.Set("svix-id", "msg_test")
	req.Header.Set("svix-timestamp", "1700000000")
	req.Header.Set("svix-signature", "v1,deadbeef")
	rr = httptest.NewRecorder()
	webhookHandler.HandleClerkWebhook(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestClerkWebhook_AcceptsValidSignature(t *testing.T) {
	pool := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, pool)

	secret := "whsec_test_secret"
	os.Setenv("CLERK_WEBHOOK_SECRET", secret)
	defer os.Unsetenv("CLERK_WEBHOOK_SECRET")

	catalog := tasks.DefaultCatalog()
	userService := services.NewUserService(pool)
	progressService := services.NewProgressService(pool, catalog)
	challengeService := services.NewChallengeService(pool, progressService, catalog, services.ChallengeConfig{})
	webhookHandler := handlers.NewWebhookHandler(userService, challengeService)

	clerkID := "user_test_" + time.Now().Format("20060102150405.000")
	body := helpers.MockClerkWebhookPayload("user.created", clerkID)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/clerk", bytes.NewReader(body))
	req.Header.Set("svix-id", "msg_test")
	req.Header.Set("svix-timestamp", "1700000000")
	req.Header.Set("svix-signature", signWebhook(secret, "msg_test", "1700000000", body))
	rr := httptest.NewRecorder()

	webhookHandler.HandleClerkWebhook(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	u, err := userService.GetUserByClerkID(context.Background(), clerkID)
	require.NoError(t, err)
	assert.Equal(t, "test.user@example.com", u.Email)
	assert.True(t, u.EmailVerified)
}

func TestClerkWebhook_UserLifecycle(t *testing.T) {
	pool := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, pool)

	os.Setenv("CLERK_WEBHOOK_SECRET", "")
	defer os.Unsetenv("CLERK_WEBHOOK_SECRET")

	catalog := tasks.DefaultCatalog()
	userService := services.NewUserService(pool)
	progressService := services.NewProgressService(pool, catalog)
	challengeService := services.NewChallengeService(pool, progressService, catalog, services.ChallengeConfig{})
	webhookHandler := handlers.NewWebhookHandler(userService, challengeService)

	clerkID := "user_test_" + time.Now().Format("20060102150405.000")
	ctx := context.Background()

	post := func(payload []byte) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/clerk", bytes.NewReader(payload))
		rr := httptest.NewRecorder()
		webhookHandler.HandleClerkWebhook(rr, req)
		return rr
	}

	// user.created provisions the account and starts the default challenge.
	rr := post(helpers.MockClerkWebhookPayload("user.created", clerkID))
	require.Equal(t, http.StatusOK, rr.Code)

	u, err := userService.GetUserByClerkID(ctx, clerkID)
	require.NoError(t, err)
	assert.Equal(t, "testuser", u.Username)

	ch, err := challengeService.GetCurrent(ctx, clerkID)
	require.NoError(t, err)
	assert.Equal(t, challenge.StatusActive, ch.Status)
	assert.Equal(t, challenge.LevelSoft, ch.Level)

	// Redelivery of the same event is not an error.
	rr = post(helpers.MockClerkWebhookPayload("user.created", clerkID))
	assert.Equal(t, http.StatusOK, rr.Code)

	// user.updated syncs profile fields.
	rr = post(helpers.MockClerkWebhookPayload("user.updated", clerkID))
	require.Equal(t, http.StatusOK, rr.Code)

	u, err = userService.GetUserByClerkID(ctx, clerkID)
	require.NoError(t, err)
	assert.Equal(t, "updateduser", u.Username)
	assert.Equal(t, "Updated", u.FirstName)

	// user.deleted removes the account and everything hanging off it.
	rr = post(helpers.MockClerkWebhookPayload("user.deleted", clerkID))
	require.Equal(t, http.StatusOK, rr.Code)

	_, err = userService.GetUserByClerkID(ctx, clerkID)
	assert.ErrorIs(t, err, services.ErrNotFound)
}
