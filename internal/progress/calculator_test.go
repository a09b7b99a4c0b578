package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func day(year int, month time.Month, d, hour int) time.Time {
	return time.Date(year, month, d, hour, 30, 0, 0, time.UTC)
}

func record(dayNumber int, completed ...bool) *DailyProgress {
	r := &DailyProgress{DayNumber: dayNumber}
	for i, c := range completed {
		r.Tasks = append(r.Tasks, Task{ID: string(rune('a' + i)), Text: "task", Completed: c})
	}
	r.CompletionRate = CompletionRate(r.Tasks)
	return r
}

func TestDayNumber_StartDayIsOne(t *testing.T) {
	start := day(2025, time.March, 10, 8)

	assert.Equal(t, 1, DayNumber(start, start))
	// Time of day must not matter on either side.
	assert.Equal(t, 1, DayNumber(start, day(2025, time.March, 10, 23)))
	assert.Equal(t, 2, DayNumber(day(2025, time.March, 10, 23), day(2025, time.March, 11, 0)))
}

func TestDayNumber_CountsCalendarDays(t *testing.T) {
	start := day(2025, time.March, 10, 8)

	assert.Equal(t, 2, DayNumber(start, day(2025, time.March, 11, 1)))
	assert.Equal(t, 21, DayNumber(start, day(2025, time.March, 30, 12)))
	assert.Equal(t, 75, DayNumber(start, day(2025, time.May, 23, 12)))
}

func TestDayNumber_BeforeStart(t *testing.T) {
	start := day(2025, time.March, 10, 8)

	assert.Equal(t, 0, DayNumber(start, day(2025, time.March, 9, 23)))
	assert.Equal(t, -4, DayNumber(start, day(2025, time.March, 5, 0)))
}

func TestDayNumber_AcrossMonthBoundary(t *testing.T) {
	start := day(2025, time.January, 30, 20)

	assert.Equal(t, 3, DayNumber(start, day(2025, time.February, 1, 0)))
}

func TestMidnightUTC(t *testing.T) {
	got := MidnightUTC(day(2025, time.June, 15, 17))

	assert.Equal(t, time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC), got)
}

func TestCompletionRate(t *testing.T) {
	assert.Equal(t, 0.0, CompletionRate(nil))
	assert.Equal(t, 0.75, CompletionRate(record(1, true, true, false, true).Tasks))
	assert.Equal(t, 1.0, CompletionRate(record(1, true, true).Tasks))
	assert.Equal(t, 0.0, CompletionRate(record(1, false, false).Tasks))
}

func TestComputeStats_Empty(t *testing.T) {
	stats := ComputeStats(nil, 0)

	assert.Equal(t, 0, stats.TotalDaysElapsed)
	assert.Equal(t, 0, stats.CompletedDays)
	assert.Equal(t, 0, stats.CurrentStreak)
	assert.Equal(t, 0, stats.LongestStreak)
	assert.Equal(t, 0.0, stats.AvgCompletionRate)
}

func TestComputeStats_AllComplete(t *testing.T) {
	records := []*DailyProgress{
		record(1, true, true),
		record(2, true, true),
		record(3, true, true),
	}

	stats := ComputeStats(records, 3)

	assert.Equal(t, 3, stats.TotalDaysElapsed)
	assert.Equal(t, 3, stats.CompletedDays)
	assert.Equal(t, 3, stats.CurrentStreak)
	assert.Equal(t, 3, stats.LongestStreak)
	assert.Equal(t, 1.0, stats.AvgCompletionRate)
}

func TestComputeStats_BrokenStreak(t *testing.T) {
	// Complete, complete, missed, complete.
	records := []*DailyProgress{
		record(1, true, true),
		record(2, true, true),
		record(3, false, true),
		record(4, true, true),
	}

	stats := ComputeStats(records, 4)

	assert.Equal(t, 3, stats.CompletedDays)
	assert.Equal(t, 2, stats.LongestStreak)
	assert.Equal(t, 1, stats.CurrentStreak)
}

func TestComputeStats_TodayIncompleteDoesNotResetStreak(t *testing.T) {
	// Two perfect days, then today's checklist is still untouched. The
	// current streak is measured through the last finalized day.
	records := []*DailyProgress{
		record(1, true, true),
		record(2, true, true),
		record(3, false, false),
	}

	stats := ComputeStats(records, 3)

	assert.Equal(t, 2, stats.CompletedDays)
	assert.Equal(t, 2, stats.CurrentStreak)
	assert.Equal(t, 2, stats.LongestStreak)
}

func TestComputeStats_MissedDayBeforeTodayResetsStreak(t *testing.T) {
	// Days 1-3 perfect, day 4 fully missed, day 5 is today.
	records := []*DailyProgress{
		record(1, true),
		record(2, true),
		record(3, true),
		record(4, false),
		record(5, false),
	}

	stats := ComputeStats(records, 5)

	assert.Equal(t, 3, stats.CompletedDays)
	assert.Equal(t, 3, stats.LongestStreak)
	assert.Equal(t, 0, stats.CurrentStreak)
}

func TestComputeStats_PartialDayIsNotComplete(t *testing.T) {
	records := []*DailyProgress{
		record(1, true, true, false),
	}

	stats := ComputeStats(records, 1)

	assert.Equal(t, 0, stats.CompletedDays)
	assert.Equal(t, 0, stats.LongestStreak)
	assert.InDelta(t, 2.0/3.0, stats.AvgCompletionRate, 1e-9)
}

func TestComputeStats_MissingRecordsCountAsMissedDays(t *testing.T) {
	// Backfill normally guarantees a record per elapsed day; if one is
	// absent it behaves like a 0% day.
	records := []*DailyProgress{
		record(1, true),
		record(3, true),
	}

	stats := ComputeStats(records, 3)

	assert.Equal(t, 3, stats.TotalDaysElapsed)
	assert.Equal(t, 2, stats.CompletedDays)
	assert.Equal(t, 1, stats.LongestStreak)
	assert.Equal(t, 1, stats.CurrentStreak)
	assert.InDelta(t, 2.0/3.0, stats.AvgCompletionRate, 1e-9)
}

func TestComputeStats_AvgIsMeanOfDailyRates(t *testing.T) {
	records := []*DailyProgress{
		record(1, true, true, true, true),     // 1.0
		record(2, true, true, false, true),    // 0.75
		record(3, false, false, false, false), // 0.0
	}

	stats := ComputeStats(records, 3)

	assert.InDelta(t, (1.0+0.75)/3.0, stats.AvgCompletionRate, 1e-9)
}
