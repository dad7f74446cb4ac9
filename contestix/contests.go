package contestix

import (
	"context"

	"github.com/heroiclabs/nakama-common/runtime"
)

// ContestsConfig is the data definition for the ContestsSystem type.
type ContestsConfig struct {
	Contests map[string]*ContestsConfigContest `json:"contests,omitempty"`
}

// ContestsConfigContest describes a single contest. The schedule is kept as the raw
// text the authoring surface produced; it may carry locale artifacts and is only
// interpreted through CanonicalizeSchedule/ParseSchedule at read time.
type ContestsConfigContest struct {
	Title       string   `json:"title,omitempty"`
	Schedule    string   `json:"schedule,omitempty"`
	DurationMin int64    `json:"duration_min,omitempty"`
	Problems    []string `json:"problems,omitempty"`
}

// VirtualSessionState is the closed set of states a virtual session can be in.
type VirtualSessionState string

const (
	VirtualSessionNone     VirtualSessionState = "none"
	VirtualSessionOngoing  VirtualSessionState = "ongoing"
	VirtualSessionFinished VirtualSessionState = "finished"
)

// VirtualSession is a viewer's personal replay of a contest on their own timeline.
// At most one live session exists per (contest, user); a finished session may be
// replaced by a new ongoing one (retake), never stacked.
type VirtualSession struct {
	State        VirtualSessionState `json:"state"`
	StartedAtSec int64               `json:"started_at_sec,omitempty"`
	AttemptID    string              `json:"attempt_id,omitempty"`
}

// Registration marks that a user entered a contest. Created once, never mutated.
type Registration struct {
	CreatedAtSec int64 `json:"created_at_sec"`
}

// Contest is the read model of a configured contest plus its denormalized counter.
type Contest struct {
	ID              string   `json:"id"`
	Title           string   `json:"title,omitempty"`
	Schedule        string   `json:"schedule,omitempty"`
	DurationMin     int64    `json:"duration_min"`
	Problems        []string `json:"problems,omitempty"`
	RegisteredCount int64    `json:"registered_count"`
}

// ContestView is the consolidated per-viewer read of a contest: the contest itself,
// the viewer's effective window, and their participation state.
type ContestView struct {
	Contest      *Contest        `json:"contest"`
	Window       *ContestWindow  `json:"window"`
	Registered   bool            `json:"registered"`
	Registration *Registration   `json:"registration,omitempty"`
	Virtual      *VirtualSession `json:"virtual,omitempty"`
}

// The ContestsSystem owns contest timing resolution and the participation ledger:
// registrations, the denormalized registered count, and virtual session transitions.
// Every mutation is an all-or-nothing storage write batch guarded by read versions,
// retried as a unit on conflict.
type ContestsSystem interface {
	System

	// ContestConfig returns the static definition of a contest, if it exists.
	ContestConfig(contestID string) (*ContestsConfigContest, bool)

	// Get returns the consolidated contest view for a viewer. An empty userID is
	// allowed and yields a view without participation state.
	Get(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID, contestID string) (*ContestView, error)

	// Register enters the user into the contest. Registering twice is a no-op
	// success. Exactly one registration record and one counter increment result
	// from any number of concurrent calls by the same user.
	Register(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID, contestID string) (*ContestView, error)

	// VirtualSession returns the user's current virtual session state for a contest.
	VirtualSession(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID, contestID string) (*VirtualSession, error)

	// StartVirtualSession begins a personal replay at server time. Allowed from the
	// absent and finished states; calling while one is ongoing is a no-op success
	// returning the unchanged session.
	StartVirtualSession(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID, contestID string) (*VirtualSession, error)

	// EndVirtualSession finishes the ongoing replay. The caller must pass
	// confirmed=true; ending is irreversible for that attempt cycle. Any prior
	// state other than ongoing is a no-op success.
	EndVirtualSession(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID, contestID string, confirmed bool) (*VirtualSession, error)
}

// Request/response payloads for the contests RPCs.

type ContestGetRequest struct {
	Id string `json:"id,omitempty"`
}

type ContestRegisterRequest struct {
	Id string `json:"id,omitempty"`
}

type ContestVirtualStartRequest struct {
	Id string `json:"id,omitempty"`
}

type ContestVirtualEndRequest struct {
	Id        string `json:"id,omitempty"`
	Confirmed bool   `json:"confirmed,omitempty"`
}
