package contestix

import (
	"context"
	"time"

	"github.com/heroiclabs/nakama-common/runtime"
)

// LiveSyncConfig is the data definition for the LiveSyncSystem type.
type LiveSyncConfig struct {
	// TickCron is the cron expression (with a seconds field) driving the countdown
	// tick. Defaults to once per second.
	TickCron string `json:"tick_cron,omitempty"`

	// NotifyViewers also delivers a Nakama notification to the subscription's
	// viewer on each pushed change, so disconnected clients catch up on reconnect.
	NotifyViewers bool `json:"notify_viewers,omitempty"`
}

const defaultTickCron = "* * * * * *"

// LiveResource identifies a class of server-side state a live subscription
// depends on. Invalidation is keyed by resource, never by payload diff.
type LiveResource string

const (
	LiveResourceContest        LiveResource = "contest"
	LiveResourceRegistration   LiveResource = "registration"
	LiveResourceVirtualSession LiveResource = "virtual_session"
	LiveResourceRanking        LiveResource = "ranking"
)

// LiveScope pins a subscription to one contest as seen by one viewer, including
// the ranking page shape the viewer currently has on screen.
type LiveScope struct {
	ContestID string `json:"contest_id"`
	ViewerID  string `json:"viewer_id,omitempty"`
	Limit     int    `json:"limit,omitempty"`
	Filter    string `json:"filter,omitempty"`
}

// LiveSnapshot is a consolidated full-replace payload for one subscription. The
// generation is monotonic per subscription; consumers drop anything stale.
type LiveSnapshot struct {
	Generation uint64       `json:"generation"`
	Contest    *ContestView `json:"contest,omitempty"`
	Ranking    *RankingPage `json:"ranking,omitempty"`
}

// LiveSnapshotFn receives full-replace snapshots for a subscription.
type LiveSnapshotFn func(snapshot *LiveSnapshot)

// LiveTickFn receives the periodic countdown tick. Ticks carry no data; the
// consumer recomputes display countdowns locally from its last snapshot.
type LiveTickFn func(now time.Time)

// The LiveSyncSystem keeps presentation surfaces current without polling. It
// tracks which server-side resources each subscription depends on, rebuilds and
// pushes consolidated snapshots when those resources are invalidated, and runs
// the shared countdown tick.
type LiveSyncSystem interface {
	System

	// Subscribe registers interest in a scope and immediately delivers the initial
	// snapshot. Returns an opaque handle for Unsubscribe.
	Subscribe(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, scope *LiveScope, onSnapshot LiveSnapshotFn, onTick LiveTickFn) (string, error)

	// Unsubscribe releases a subscription and its resource interests. Unknown
	// handles are ignored.
	Unsubscribe(handle string)

	// Invalidate signals that a resource changed. Subscriptions depending on it
	// receive a freshly rebuilt snapshot. userID narrows viewer-scoped resources;
	// empty means all viewers of the contest.
	Invalidate(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, resource LiveResource, contestID, userID string)

	// Shutdown stops the tick scheduler and drops all subscriptions.
	Shutdown()
}
