package challenge

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelValid(t *testing.T) {
	assert.True(t, LevelSoft.Valid())
	assert.True(t, LevelHard.Valid())
	assert.True(t, LevelCustom.Valid())
	assert.False(t, Level("soft").Valid())
	assert.False(t, Level("").Valid())
}

func TestValidDuration(t *testing.T) {
	for _, d := range ValidDurations {
		assert.True(t, ValidDuration(d))
	}
	assert.False(t, ValidDuration(0))
	assert.False(t, ValidDuration(30))
	assert.False(t, ValidDuration(-21))
}
