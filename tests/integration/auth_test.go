package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stayHardAPI/handlers"
	"stayHardAPI/internal/tasks"
	"stayHardAPI/internal/user"
	"stayHardAPI/middleware"
	"stayHardAPI/services"
	"stayHardAPI/tests/helpers"
)

func TestGetProfile_Authenticated(t *testing.T) {
	pool := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, pool)

	catalog := tasks.DefaultCatalog()
	userService := services.NewUserService(pool)
	progressService := services.NewProgressService(pool, catalog)
	challengeService := services.NewChallengeService(pool, progressService, catalog, services.ChallengeConfig{})
	userHandler := handlers.NewUserHandler(userService, challengeService)

	clerkID := "user_test_" + time.Now().Format("20060102150405.000")
	ctx := context.Background()

	createdUser, err := userService.CreateUser(ctx, &user.CreateUserRequest{
		ClerkID:   clerkID,
		Email:     "testauth@example.com",
		Username:  "testauth",
		FirstName: "Test",
		LastName:  "Auth",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/user", nil)
	ctx = context.WithValue(req.Context(), middleware.ClerkIDKey, clerkID)
	req = req.WithContext(ctx)
	rr := httptest.NewRecorder()

	userHandler.GetProfile(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var response user.User
	err = json.Unmarshal(rr.Body.Bytes(), &response)
	require.NoError(t, err)

	assert.Equal(t, createdUser.ID, response.ID)
	assert.Equal(t, clerkID, response.ClerkID)
	assert.Equal(t, "testauth@example.com", response.Email)
}

func TestProtectedHandlers_Unauthenticated(t *testing.T) {
	// No clerk ID in context; the handlers must reject before touching the
	// services, so nil dependencies are safe here.
	userHandler := handlers.NewUserHandler(nil, nil)
	challengeHandler := handlers.NewChallengeHandler(nil)
	progressHandler := handlers.NewProgressHandler(nil)
	galleryHandler := handlers.NewGalleryHandler(nil)

	cases := []struct {
		name    string
		method  string
		path    string
		handler http.HandlerFunc
	}{
		{"profile", http.MethodGet, "/api/v1/user", userHandler.GetProfile},
		{"current challenge", http.MethodGet, "/api/v1/user/current-challenge", userHandler.GetCurrentChallenge},
		{"start challenge", http.MethodPost, "/api/v1/challenges/start", challengeHandler.StartChallenge},
		{"challenge progress", http.MethodGet, "/api/v1/progress/abc", progressHandler.GetChallengeProgress},
		{"gallery list", http.MethodGet, "/api/v1/gallery", galleryHandler.ListPhotos},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			rr := httptest.NewRecorder()

			tc.handler(rr, req)

			assert.Equal(t, http.StatusUnauthorized, rr.Code)
			assert.Contains(t, rr.Body.String(), "not authenticated")
		})
	}
}

func TestAuthMiddleware_RejectsMissingToken(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next handler should not be reached")
	})
	handler := middleware.ClerkAuthMiddleware(next)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/user", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/user", nil)
	req.Header.Set("Authorization", "Basic abc123")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestUpdateProfile_InvalidBody(t *testing.T) {
	userHandler := handlers.NewUserHandler(nil, nil)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/user/update-profile", strings.NewReader("{not json"))
	ctx := context.WithValue(req.Context(), middleware.ClerkIDKey, "user_test_body")
	req = req.WithContext(ctx)
	rr := httptest.NewRecorder()

	userHandler.UpdateProfile(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
