package tasks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stayHardAPI/internal/challenge"
)

func TestInstantiate_SoftLevel(t *testing.T) {
	catalog := DefaultCatalog()

	taskList, err := catalog.Instantiate(challenge.LevelSoft, nil)
	require.NoError(t, err)
	require.Len(t, taskList, 5)

	assert.Equal(t, "Eat healthy & balanced diet", taskList[0].Text)
	for _, task := range taskList {
		assert.NotEmpty(t, task.ID)
		assert.False(t, task.Completed)
		assert.Nil(t, task.CompletedAt)
	}
}

func TestInstantiate_HardLevel(t *testing.T) {
	catalog := DefaultCatalog()

	taskList, err := catalog.Instantiate(challenge.LevelHard, nil)
	require.NoError(t, err)
	require.Len(t, taskList, 6)

	assert.Equal(t, "Take daily progress picture", taskList[4].Text)
}

func TestInstantiate_FreshIDsPerDay(t *testing.T) {
	catalog := DefaultCatalog()

	day1, err := catalog.Instantiate(challenge.LevelSoft, nil)
	require.NoError(t, err)
	day2, err := catalog.Instantiate(challenge.LevelSoft, nil)
	require.NoError(t, err)

	assert.NotEqual(t, day1[0].ID, day2[0].ID)
}

func TestInstantiate_CustomUsesTemplateVerbatim(t *testing.T) {
	catalog := DefaultCatalog()

	template := []challenge.TaskSpec{
		{ID: "keep-me", Text: "Cold shower"},
		{Text: "No sugar"},
	}

	taskList, err := catalog.Instantiate(challenge.LevelCustom, template)
	require.NoError(t, err)
	require.Len(t, taskList, 2)

	assert.Equal(t, "keep-me", taskList[0].ID)
	assert.Equal(t, "Cold shower", taskList[0].Text)
	assert.NotEmpty(t, taskList[1].ID)
	assert.Equal(t, "No sugar", taskList[1].Text)
}

func TestInstantiate_CustomEmptyTemplate(t *testing.T) {
	catalog := DefaultCatalog()

	taskList, err := catalog.Instantiate(challenge.LevelCustom, nil)
	require.NoError(t, err)
	assert.Empty(t, taskList)
}

func TestInstantiate_UnknownLevel(t *testing.T) {
	catalog := DefaultCatalog()

	_, err := catalog.Instantiate(challenge.Level("Brutal"), nil)
	assert.ErrorIs(t, err, ErrInvalidLevel)
}
