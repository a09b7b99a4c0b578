package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stayHardAPI/internal/challenge"
	"stayHardAPI/internal/tasks"
	"stayHardAPI/services"
	"stayHardAPI/tests/helpers"
)

func TestCustomChallengeTaskMutations(t *testing.T) {
	pool := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, pool)

	catalog := tasks.DefaultCatalog()
	userService := services.NewUserService(pool)
	progressService := services.NewProgressService(pool, catalog)
	challengeService := services.NewChallengeService(pool, progressService, catalog, services.ChallengeConfig{})

	day1 := time.Date(2025, time.May, 5, 10, 0, 0, 0, time.UTC)
	challengeService.SetClock(helpers.FrozenClock(day1))

	clerkID := newTestUser(t, userService)
	ctx := context.Background()

	ch, _, err := challengeService.StartDefault(ctx, clerkID)
	require.NoError(t, err)

	// Switch to Custom with a two-task template.
	ch, err = challengeService.UpdateDifficulty(ctx, clerkID, ch.ID.String(), &challenge.UpdateDifficultyRequest{
		Level: challenge.LevelCustom,
		CustomTasks: []challenge.TaskSpec{
			{Text: "Cold shower"},
			{Text: "No sugar"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, challenge.LevelCustom, ch.Level)
	require.Len(t, ch.TaskTemplate, 2)
	assert.NotEmpty(t, ch.TaskTemplate[0].ID)

	record, err := progressService.GetTasksForDate(ctx, clerkID, ch.ID.String(), day1.Format("2006-01-02"))
	require.NoError(t, err)
	require.Len(t, record.Tasks, 2)

	// Add a third task for the day.
	record, err = progressService.AddTask(ctx, clerkID, record.ID.String(), "Evening walk")
	require.NoError(t, err)
	require.Len(t, record.Tasks, 3)
	assert.Equal(t, "Evening walk", record.Tasks[2].Text)
	assert.InDelta(t, 0.0, record.CompletionRate, 1e-9)

	// Toggling recomputes the rate from the new task count.
	record, err = progressService.ToggleTask(ctx, clerkID, record.ID.String(), record.Tasks[0].ID, true)
	require.NoError(t, err)
	assert.InDelta(t, 1.0/3.0, record.CompletionRate, 1e-9)
	require.NotNil(t, record.Tasks[0].CompletedAt)

	// Un-toggling clears the completion timestamp.
	record, err = progressService.ToggleTask(ctx, clerkID, record.ID.String(), record.Tasks[0].ID, false)
	require.NoError(t, err)
	assert.Nil(t, record.Tasks[0].CompletedAt)
	assert.InDelta(t, 0.0, record.CompletionRate, 1e-9)

	// Rename and delete.
	record, err = progressService.UpdateTaskText(ctx, clerkID, record.ID.String(), record.Tasks[2].ID, "Morning walk")
	require.NoError(t, err)
	assert.Equal(t, "Morning walk", record.Tasks[2].Text)

	record, err = progressService.DeleteTask(ctx, clerkID, record.ID.String(), record.Tasks[2].ID)
	require.NoError(t, err)
	require.Len(t, record.Tasks, 2)

	_, err = progressService.ToggleTask(ctx, clerkID, record.ID.String(), "missing-task", true)
	assert.ErrorIs(t, err, services.ErrNotFound)
}

func TestFixedLevelsRejectTaskMutations(t *testing.T) {
	pool := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, pool)

	catalog := tasks.DefaultCatalog()
	userService := services.NewUserService(pool)
	progressService := services.NewProgressService(pool, catalog)
	challengeService := services.NewChallengeService(pool, progressService, catalog, services.ChallengeConfig{})

	day1 := time.Date(2025, time.May, 5, 10, 0, 0, 0, time.UTC)
	challengeService.SetClock(helpers.FrozenClock(day1))

	clerkID := newTestUser(t, userService)
	ctx := context.Background()

	ch, _, err := challengeService.StartDefault(ctx, clerkID)
	require.NoError(t, err)

	record, err := progressService.GetTasksForDate(ctx, clerkID, ch.ID.String(), day1.Format("2006-01-02"))
	require.NoError(t, err)

	// Soft and Hard checklists are immutable; only completion may change.
	_, err = progressService.AddTask(ctx, clerkID, record.ID.String(), "Extra task")
	assert.ErrorIs(t, err, services.ErrImmutableTaskSet)

	_, err = progressService.UpdateTaskText(ctx, clerkID, record.ID.String(), record.Tasks[0].ID, "New text")
	assert.ErrorIs(t, err, services.ErrImmutableTaskSet)

	_, err = progressService.DeleteTask(ctx, clerkID, record.ID.String(), record.Tasks[0].ID)
	assert.ErrorIs(t, err, services.ErrImmutableTaskSet)

	// Toggling still works.
	record, err = progressService.ToggleTask(ctx, clerkID, record.ID.String(), record.Tasks[0].ID, true)
	require.NoError(t, err)
	assert.True(t, record.Tasks[0].Completed)
}

func TestDifficultyChangePurgesProgress(t *testing.T) {
	pool := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, pool)

	catalog := tasks.DefaultCatalog()
	userService := services.NewUserService(pool)
	progressService := services.NewProgressService(pool, catalog)
	challengeService := services.NewChallengeService(pool, progressService, catalog, services.ChallengeConfig{})

	day1 := time.Date(2025, time.May, 5, 10, 0, 0, 0, time.UTC)
	challengeService.SetClock(helpers.FrozenClock(day1))

	clerkID := newTestUser(t, userService)
	ctx := context.Background()

	ch, _, err := challengeService.StartDefault(ctx, clerkID)
	require.NoError(t, err)

	// Advance to day 3, then switch Soft -> Hard.
	day3 := day1.AddDate(0, 0, 2)
	challengeService.SetClock(helpers.FrozenClock(day3))

	_, err = progressService.GetChallengeProgress(ctx, clerkID, ch.ID.String())
	require.NoError(t, err)

	ch, err = challengeService.UpdateDifficulty(ctx, clerkID, ch.ID.String(), &challenge.UpdateDifficultyRequest{
		Level: challenge.LevelHard,
	})
	require.NoError(t, err)
	assert.Equal(t, challenge.LevelHard, ch.Level)
	assert.Equal(t, time.Date(2025, time.May, 7, 0, 0, 0, 0, time.UTC), ch.StartDate.UTC())

	// Old Soft records are gone; one Hard day-1 record remains.
	resp, err := progressService.GetChallengeProgress(ctx, clerkID, ch.ID.String())
	require.NoError(t, err)
	require.Len(t, resp.Records, 1)
	assert.Equal(t, 1, resp.Records[0].DayNumber)
	assert.Len(t, resp.Records[0].Tasks, 6)

	// Custom without a template is rejected.
	_, err = challengeService.UpdateDifficulty(ctx, clerkID, ch.ID.String(), &challenge.UpdateDifficultyRequest{
		Level: challenge.LevelCustom,
	})
	assert.ErrorIs(t, err, services.ErrInvalidInput)
}
