package contestix

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/heroiclabs/nakama-common/runtime"
	"github.com/robfig/cron/v3"
)

// liveKey is one (resource, identity) pair a subscription depends on. Viewer
// scoped resources carry "contestID:viewerID" identities, shared ones just the
// contest ID.
type liveKey struct {
	resource LiveResource
	id       string
}

type liveSubscription struct {
	handle     string
	scope      *LiveScope
	keys       []liveKey
	onSnapshot LiveSnapshotFn
	onTick     LiveTickFn
	generation uint64
}

// NakamaLiveSyncSystem implements the LiveSyncSystem interface using Nakama as the backend.
type NakamaLiveSyncSystem struct {
	config    *LiveSyncConfig
	contestix Contestix

	mu   sync.Mutex
	cron *cron.Cron
	subs map[string]*liveSubscription
	refs map[liveKey]int
}

// NewNakamaLiveSyncSystem creates a new instance of the live sync system with the given configuration.
func NewNakamaLiveSyncSystem(config *LiveSyncConfig) *NakamaLiveSyncSystem {
	return &NakamaLiveSyncSystem{
		config: config,
		subs:   make(map[string]*liveSubscription),
		refs:   make(map[liveKey]int),
	}
}

// SetContestix sets the Contestix instance for this live sync system
func (l *NakamaLiveSyncSystem) SetContestix(cx Contestix) {
	l.contestix = cx
}

// GetType returns the system type for the live sync system.
func (l *NakamaLiveSyncSystem) GetType() SystemType {
	return SystemTypeLiveSync
}

// GetConfig returns the configuration for the live sync system.
func (l *NakamaLiveSyncSystem) GetConfig() any {
	return l.config
}

func (l *NakamaLiveSyncSystem) tickCron() string {
	if l.config != nil && l.config.TickCron != "" {
		return l.config.TickCron
	}
	return defaultTickCron
}

// Subscribe registers interest in a scope and delivers the initial snapshot.
func (l *NakamaLiveSyncSystem) Subscribe(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, scope *LiveScope, onSnapshot LiveSnapshotFn, onTick LiveTickFn) (string, error) {
	if scope == nil || scope.ContestID == "" || onSnapshot == nil {
		return "", ErrBadInput
	}
	if l.contestix == nil {
		return "", ErrSystemNotAvailable
	}
	contests := l.contestix.GetContestsSystem()
	if contests == nil {
		return "", ErrSystemNotAvailable
	}
	if _, ok := contests.ContestConfig(scope.ContestID); !ok {
		return "", ErrUnknownContest
	}

	sub := &liveSubscription{
		handle:     uuid.New().String(),
		scope:      scope,
		onSnapshot: onSnapshot,
		onTick:     onTick,
	}
	sub.keys = []liveKey{
		{resource: LiveResourceContest, id: scope.ContestID},
		{resource: LiveResourceRanking, id: scope.ContestID},
	}
	if scope.ViewerID != "" {
		sub.keys = append(sub.keys,
			liveKey{resource: LiveResourceRegistration, id: scope.ContestID + ":" + scope.ViewerID},
			liveKey{resource: LiveResourceVirtualSession, id: scope.ContestID + ":" + scope.ViewerID},
		)
	}

	l.mu.Lock()
	l.subs[sub.handle] = sub
	for _, key := range sub.keys {
		l.refs[key]++
	}
	l.ensureTickerLocked(logger)
	l.mu.Unlock()

	// Initial full snapshot, delivered before any invalidation can race it.
	snapshot := l.buildSnapshot(ctx, logger, nk, sub)
	onSnapshot(snapshot)

	return sub.handle, nil
}

// Unsubscribe releases a subscription and its resource interests.
func (l *NakamaLiveSyncSystem) Unsubscribe(handle string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	sub, ok := l.subs[handle]
	if !ok {
		return
	}
	delete(l.subs, handle)
	for _, key := range sub.keys {
		l.refs[key]--
		if l.refs[key] <= 0 {
			delete(l.refs, key)
		}
	}

	// Last subscriber gone, the ticker has nothing left to drive.
	if len(l.subs) == 0 && l.cron != nil {
		l.cron.Stop()
		l.cron = nil
	}
}

// Invalidate rebuilds and pushes snapshots to every subscription depending on
// the changed resource.
func (l *NakamaLiveSyncSystem) Invalidate(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, resource LiveResource, contestID, userID string) {
	if contestID == "" {
		return
	}

	l.mu.Lock()
	targets := make([]*liveSubscription, 0, len(l.subs))
	for _, sub := range l.subs {
		if subscriptionDependsOn(sub, resource, contestID, userID) {
			targets = append(targets, sub)
		}
	}
	l.mu.Unlock()

	// Deliver outside the lock; a snapshot callback may call back into the system.
	for _, sub := range targets {
		snapshot := l.buildSnapshot(ctx, logger, nk, sub)
		sub.onSnapshot(snapshot)
		l.notifyViewer(ctx, logger, nk, sub, snapshot)
	}
}

// notifyViewer mirrors a pushed change to the viewer's notification inbox when
// configured, so clients that lost their live channel catch up on reconnect.
func (l *NakamaLiveSyncSystem) notifyViewer(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, sub *liveSubscription, snapshot *LiveSnapshot) {
	if l.config == nil || !l.config.NotifyViewers || sub.scope.ViewerID == "" {
		return
	}
	err := nk.NotificationsSend(ctx, []*runtime.NotificationSend{{
		UserID:  sub.scope.ViewerID,
		Subject: "contest_update",
		Content: map[string]interface{}{
			"contest_id": sub.scope.ContestID,
			"generation": snapshot.Generation,
		},
		Code:       1,
		Persistent: false,
	}})
	if err != nil {
		logger.Warn("Failed to send contest update notification to %s: %v", sub.scope.ViewerID, err)
	}
}

func subscriptionDependsOn(sub *liveSubscription, resource LiveResource, contestID, userID string) bool {
	for _, key := range sub.keys {
		if key.resource != resource {
			continue
		}
		if key.id == contestID {
			return true
		}
		if userID == "" {
			if strings.HasPrefix(key.id, contestID+":") {
				return true
			}
		} else if key.id == contestID+":"+userID {
			return true
		}
	}
	return false
}

// buildSnapshot assembles the consolidated full-replace payload for one
// subscription. Partial failures degrade the snapshot rather than dropping it.
func (l *NakamaLiveSyncSystem) buildSnapshot(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, sub *liveSubscription) *LiveSnapshot {
	snapshot := &LiveSnapshot{
		Generation: atomic.AddUint64(&sub.generation, 1),
	}

	if contests := l.contestix.GetContestsSystem(); contests != nil {
		view, err := contests.Get(ctx, logger, nk, sub.scope.ViewerID, sub.scope.ContestID)
		if err != nil {
			logger.Warn("Failed to build contest snapshot for %s: %v", sub.scope.ContestID, err)
		} else {
			snapshot.Contest = view
		}
	}
	if rankings := l.contestix.GetRankingsSystem(); rankings != nil {
		page, err := rankings.QueryPage(ctx, logger, nk, sub.scope.ViewerID, sub.scope.ContestID, sub.scope.Limit, "", sub.scope.Filter)
		if err != nil {
			logger.Warn("Failed to build ranking snapshot for %s: %v", sub.scope.ContestID, err)
		} else {
			snapshot.Ranking = page
		}
	}

	return snapshot
}

// ensureTickerLocked lazily starts the shared countdown ticker. Callers hold mu.
func (l *NakamaLiveSyncSystem) ensureTickerLocked(logger runtime.Logger) {
	if l.cron != nil {
		return
	}
	c := cron.New(cron.WithSeconds())
	if _, err := c.AddFunc(l.tickCron(), l.tick); err != nil {
		logger.Error("Failed to schedule live sync tick %q: %v", l.tickCron(), err)
		return
	}
	c.Start()
	l.cron = c
}

// tick fans the shared countdown tick out to subscribers. Ticks carry no data.
func (l *NakamaLiveSyncSystem) tick() {
	now := time.Now()

	l.mu.Lock()
	fns := make([]LiveTickFn, 0, len(l.subs))
	for _, sub := range l.subs {
		if sub.onTick != nil {
			fns = append(fns, sub.onTick)
		}
	}
	l.mu.Unlock()

	for _, fn := range fns {
		fn(now)
	}
}

// Shutdown stops the ticker and drops all subscriptions.
func (l *NakamaLiveSyncSystem) Shutdown() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cron != nil {
		l.cron.Stop()
		l.cron = nil
	}
	l.subs = make(map[string]*liveSubscription)
	l.refs = make(map[liveKey]int)
}

var _ LiveSyncSystem = (*NakamaLiveSyncSystem)(nil)
