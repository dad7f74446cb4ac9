package contestix

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ContestPhase is the phase of a contest window as experienced by a viewer.
type ContestPhase string

const (
	ContestPhaseUpcoming ContestPhase = "upcoming"
	ContestPhaseOngoing  ContestPhase = "ongoing"
	ContestPhaseEnded    ContestPhase = "ended"
)

// ordinal gives phases a total order so progression can be compared.
func (p ContestPhase) ordinal() int {
	switch p {
	case ContestPhaseUpcoming:
		return 0
	case ContestPhaseOngoing:
		return 1
	case ContestPhaseEnded:
		return 2
	}
	return -1
}

// Before reports whether p sorts ahead of other in the upcoming -> ongoing -> ended progression.
func (p ContestPhase) Before(other ContestPhase) bool {
	return p.ordinal() < other.ordinal()
}

// ContestWindow is the effective contest window for a specific viewer at a specific time.
// When Virtual is true, the bounds come from the viewer's virtual session rather than
// the global schedule.
type ContestWindow struct {
	Phase        ContestPhase `json:"phase"`
	StartTimeSec int64        `json:"start_time_sec"`
	EndTimeSec   int64        `json:"end_time_sec"`
	CountdownSec int64        `json:"countdown_sec"`
	Virtual      bool         `json:"virtual,omitempty"`
}

var (
	// Matches locale artifacts such as "UTC+7", "UTC-05" or "UTC+5:30" in schedule text.
	utcOffsetPattern = regexp.MustCompile(`UTC([+-])(\d{1,2})(?::(\d{2}))?`)

	// Narrow and non-breaking space variants emitted by locale-aware formatters.
	spaceVariantReplacer = strings.NewReplacer("\u202f", " ", "\u00a0", " ", "\u2009", " ")

	scheduleLayouts = []string{
		"January 2, 2006 3:04:05 PM -07:00",
		"January 2, 2006 3:04:05 PM MST",
		"January 2, 2006 15:04:05 -07:00",
		"January 2, 2006 3:04 PM -07:00",
		time.RFC3339,
		"2006-01-02 15:04:05 -07:00",
		"2006-01-02 15:04:05",
	}
)

// CanonicalizeSchedule rewrites a free-text schedule into a parseable timestamp:
// narrow/non-breaking spaces become plain spaces, the " at " separator is dropped
// and "UTC±N" zone artifacts become fixed numeric offsets.
func CanonicalizeSchedule(raw string) string {
	s := spaceVariantReplacer.Replace(raw)
	s = strings.ReplaceAll(s, " at ", " ")
	s = utcOffsetPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := utcOffsetPattern.FindStringSubmatch(match)
		hours, err := strconv.Atoi(parts[2])
		if err != nil || hours > 23 {
			return match
		}
		minutes := parts[3]
		if minutes == "" {
			minutes = "00"
		}
		return fmt.Sprintf("%s%02d:%s", parts[1], hours, minutes)
	})
	return strings.Join(strings.Fields(s), " ")
}

// ParseSchedule parses a free-text schedule timestamp. Malformed input falls back to
// fallback and returns ok=false; callers log the bad data instead of failing the read.
func ParseSchedule(raw string, fallback time.Time) (time.Time, bool) {
	canonical := CanonicalizeSchedule(raw)
	if canonical == "" {
		return fallback, false
	}
	for _, layout := range scheduleLayouts {
		if t, err := time.Parse(layout, canonical); err == nil {
			return t, true
		}
	}
	return fallback, false
}

// ResolveContestWindow derives the effective phase, bounds and countdown for a viewer.
// An ongoing virtual session overrides the global schedule for that viewer only; both
// upcoming and ended are reachable on the virtual timeline depending on drift between
// the session start and the read time.
func ResolveContestWindow(scheduleText string, durationMin int64, now time.Time, virtual *VirtualSession) *ContestWindow {
	if durationMin < 0 {
		durationMin = 0
	}
	duration := time.Duration(durationMin) * time.Minute

	start, _ := ParseSchedule(scheduleText, now)
	isVirtual := false
	if virtual != nil && virtual.State == VirtualSessionOngoing && virtual.StartedAtSec > 0 {
		start = time.Unix(virtual.StartedAtSec, 0)
		isVirtual = true
	}
	end := start.Add(duration)

	window := &ContestWindow{
		StartTimeSec: start.Unix(),
		EndTimeSec:   end.Unix(),
		Virtual:      isVirtual,
	}

	switch {
	case now.Before(start):
		window.Phase = ContestPhaseUpcoming
		window.CountdownSec = int64(start.Sub(now) / time.Second)
	case now.After(end):
		window.Phase = ContestPhaseEnded
	default:
		window.Phase = ContestPhaseOngoing
		window.CountdownSec = int64(end.Sub(now) / time.Second)
	}

	// A countdown can go negative when a tick races a phase recompute; suppress it.
	if window.CountdownSec < 0 {
		window.CountdownSec = 0
	}

	return window
}

// FormatCountdown renders a countdown for display. Non-positive values clamp to "00:00".
func FormatCountdown(seconds int64) string {
	if seconds <= 0 {
		return "00:00"
	}
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	secs := seconds % 60
	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, secs)
	}
	return fmt.Sprintf("%02d:%02d", minutes, secs)
}
