package contestix

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalizeSchedule(t *testing.T) {
	cases := map[string]string{
		"January 5, 2026 at 12:00:00 AM UTC+7":       "January 5, 2026 12:00:00 AM +07:00",
		"January 5, 2026 at 12:00:00\u202fAM UTC+7":  "January 5, 2026 12:00:00 AM +07:00",
		"January 5, 2026 at 12:00:00\u00a0AM UTC-05": "January 5, 2026 12:00:00 AM -05:00",
		"March 1, 2026 at 6:30:00 PM UTC+5:30":       "March 1, 2026 6:30:00 PM +05:30",
		"  January   5, 2026   12:00:00 AM UTC+0":    "January 5, 2026 12:00:00 AM +00:00",
	}
	for raw, want := range cases {
		assert.Equal(t, want, CanonicalizeSchedule(raw), "raw: %q", raw)
	}
}

func TestParseSchedule(t *testing.T) {
	want := time.Date(2026, time.January, 5, 0, 0, 0, 0, time.FixedZone("", 7*3600))

	parsed, ok := ParseSchedule("January 5, 2026 at 12:00:00 AM UTC+7", time.Time{})
	require.True(t, ok)
	assert.True(t, parsed.Equal(want))

	// Narrow no-break space before the meridiem, as locale-aware formatters emit.
	parsed, ok = ParseSchedule("January 5, 2026 at 12:00:00\u202fAM UTC+7", time.Time{})
	require.True(t, ok)
	assert.True(t, parsed.Equal(want))

	parsed, ok = ParseSchedule("2026-01-04 17:00:00 +00:00", time.Time{})
	require.True(t, ok)
	assert.True(t, parsed.Equal(want))
}

func TestParseScheduleFallback(t *testing.T) {
	fallback := time.Date(2026, time.June, 1, 12, 0, 0, 0, time.UTC)

	parsed, ok := ParseSchedule("not a timestamp", fallback)
	assert.False(t, ok)
	assert.True(t, parsed.Equal(fallback))

	parsed, ok = ParseSchedule("", fallback)
	assert.False(t, ok)
	assert.True(t, parsed.Equal(fallback))
}

func TestResolveContestWindowPhases(t *testing.T) {
	schedule := "January 5, 2026 at 12:00:00 AM UTC+7"
	start := time.Date(2026, time.January, 5, 0, 0, 0, 0, time.FixedZone("", 7*3600))

	window := ResolveContestWindow(schedule, 180, start.Add(-time.Hour), nil)
	assert.Equal(t, ContestPhaseUpcoming, window.Phase)
	assert.Equal(t, int64(3600), window.CountdownSec)
	assert.False(t, window.Virtual)

	window = ResolveContestWindow(schedule, 180, start.Add(10*time.Minute), nil)
	assert.Equal(t, ContestPhaseOngoing, window.Phase)
	assert.Equal(t, int64(170*60), window.CountdownSec)
	assert.Equal(t, start.Unix(), window.StartTimeSec)
	assert.Equal(t, start.Add(180*time.Minute).Unix(), window.EndTimeSec)

	// Bounds are inclusive on both ends.
	window = ResolveContestWindow(schedule, 180, start, nil)
	assert.Equal(t, ContestPhaseOngoing, window.Phase)
	window = ResolveContestWindow(schedule, 180, start.Add(180*time.Minute), nil)
	assert.Equal(t, ContestPhaseOngoing, window.Phase)
	assert.Equal(t, int64(0), window.CountdownSec)

	window = ResolveContestWindow(schedule, 180, start.Add(181*time.Minute), nil)
	assert.Equal(t, ContestPhaseEnded, window.Phase)
	assert.Equal(t, int64(0), window.CountdownSec)
}

func TestResolveContestWindowVirtualOverride(t *testing.T) {
	schedule := "January 5, 2026 at 12:00:00 AM UTC+7"
	virtualStart := time.Date(2026, time.February, 10, 9, 0, 0, 0, time.UTC)
	session := &VirtualSession{
		State:        VirtualSessionOngoing,
		StartedAtSec: virtualStart.Unix(),
		AttemptID:    "attempt-1",
	}

	window := ResolveContestWindow(schedule, 180, virtualStart.Add(30*time.Minute), session)
	assert.Equal(t, ContestPhaseOngoing, window.Phase)
	assert.True(t, window.Virtual)
	assert.Equal(t, virtualStart.Unix(), window.StartTimeSec)
	assert.Equal(t, int64(150*60), window.CountdownSec)

	// The virtual timeline runs out on its own clock, regardless of the real schedule.
	window = ResolveContestWindow(schedule, 180, virtualStart.Add(181*time.Minute), session)
	assert.Equal(t, ContestPhaseEnded, window.Phase)
	assert.True(t, window.Virtual)

	// Finished sessions no longer override the schedule.
	finished := &VirtualSession{State: VirtualSessionFinished, StartedAtSec: virtualStart.Unix()}
	window = ResolveContestWindow(schedule, 180, virtualStart.Add(30*time.Minute), finished)
	assert.False(t, window.Virtual)
	assert.Equal(t, ContestPhaseEnded, window.Phase)
}

func TestResolveContestWindowClamps(t *testing.T) {
	now := time.Date(2026, time.March, 3, 8, 0, 0, 0, time.UTC)

	// Negative configured duration behaves as zero.
	window := ResolveContestWindow("garbage", -5, now, nil)
	assert.Equal(t, window.StartTimeSec, window.EndTimeSec)
	assert.Equal(t, ContestPhaseOngoing, window.Phase)
	assert.Equal(t, int64(0), window.CountdownSec)
}

func TestContestPhaseBefore(t *testing.T) {
	assert.True(t, ContestPhaseUpcoming.Before(ContestPhaseOngoing))
	assert.True(t, ContestPhaseOngoing.Before(ContestPhaseEnded))
	assert.True(t, ContestPhaseUpcoming.Before(ContestPhaseEnded))
	assert.False(t, ContestPhaseEnded.Before(ContestPhaseUpcoming))
	assert.False(t, ContestPhaseOngoing.Before(ContestPhaseOngoing))
}

func TestFormatCountdown(t *testing.T) {
	assert.Equal(t, "00:00", FormatCountdown(0))
	assert.Equal(t, "00:00", FormatCountdown(-30))
	assert.Equal(t, "00:59", FormatCountdown(59))
	assert.Equal(t, "02:05", FormatCountdown(125))
	assert.Equal(t, "1:01:01", FormatCountdown(3661))
	assert.Equal(t, "2:00:00", FormatCountdown(7200))
}
