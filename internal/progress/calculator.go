package progress

import "time"

// DateLayout is the wire format for calendar days (client-facing).
const DateLayout = "2006-01-02"

// MidnightUTC truncates t to 00:00:00 UTC of its calendar day. All day
// arithmetic goes through this so client time-of-day components can never
// shift a day boundary.
func MidnightUTC(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DayNumber returns the 1-based day offset of target from startDate.
// The start date itself is day 1. Dates before the start yield values <= 0;
// callers must treat those as "before challenge start" rather than clamp.
func DayNumber(startDate, target time.Time) int {
	diff := MidnightUTC(target).Sub(MidnightUTC(startDate))
	return int(diff/(24*time.Hour)) + 1
}

// CompletionRate is the only way a record's rate may be derived: completed
// task count over total task count, 0 for an empty list.
func CompletionRate(tasks []Task) float64 {
	if len(tasks) == 0 {
		return 0
	}
	done := 0
	for _, t := range tasks {
		if t.Completed {
			done++
		}
	}
	return float64(done) / float64(len(tasks))
}

// ComputeStats derives all challenge aggregates from the progress records of
// days 1..totalDaysElapsed. Records may arrive in any order; days with no
// record count as 0% (backfill normally guarantees there are none).
//
// A day is complete only at a rate of exactly 1. The current streak is
// measured through the last day whose outcome is final: an incomplete record
// for the newest day is treated as still in progress and does not reset the
// streak, while an incomplete day before it does.
func ComputeStats(records []*DailyProgress, totalDaysElapsed int) Stats {
	stats := Stats{TotalDaysElapsed: totalDaysElapsed}
	if totalDaysElapsed <= 0 {
		return stats
	}

	byDay := make(map[int]*DailyProgress, len(records))
	for _, r := range records {
		byDay[r.DayNumber] = r
	}

	var rateSum float64
	running := 0
	beforeLast := 0
	for day := 1; day <= totalDaysElapsed; day++ {
		complete := false
		if r, ok := byDay[day]; ok {
			rateSum += r.CompletionRate
			complete = r.CompletionRate == 1
		}

		if day == totalDaysElapsed {
			beforeLast = running
		}
		if complete {
			stats.CompletedDays++
			running++
			if running > stats.LongestStreak {
				stats.LongestStreak = running
			}
		} else {
			running = 0
		}
	}

	// The newest day only counts toward the streak once it is complete.
	if last, ok := byDay[totalDaysElapsed]; ok && last.CompletionRate == 1 {
		stats.CurrentStreak = running
	} else {
		stats.CurrentStreak = beforeLast
	}

	stats.AvgCompletionRate = rateSum / float64(totalDaysElapsed)
	return stats
}
