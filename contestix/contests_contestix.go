package contestix

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/heroiclabs/nakama-common/runtime"
)

const (
	contestStateStorageCollection    = "contest_state"
	contestRankingsStorageCollection = "contest_rankings"

	contestCounterKeyPrefix      = "counter_"
	contestRegistrationKeyPrefix = "registration_"
	contestVirtualKeyPrefix      = "virtual_"
	rankingEntryKeyPrefix        = "entry_"
	rankingVirtualEntryKeyPrefix = "virtual_entry_"

	backingLeaderboardPrefix = "contest_"

	// Whole-transaction retries before the conflict is surfaced to the caller.
	ledgerTxRetryLimit = 5
)

// contestCounterState is the denormalized registration counter document. It is only
// ever written together with the registration record that it summarizes, guarded by
// the version observed at read time.
type contestCounterState struct {
	RegisteredCount int64 `json:"registered_count"`
}

// NakamaContestsSystem implements the ContestsSystem interface using Nakama as the backend.
type NakamaContestsSystem struct {
	config    *ContestsConfig
	contestix Contestix
}

// NewNakamaContestsSystem creates a new instance of the contests system with the given configuration.
func NewNakamaContestsSystem(config *ContestsConfig) *NakamaContestsSystem {
	return &NakamaContestsSystem{
		config: config,
	}
}

// SetContestix sets the Contestix instance for this contests system
func (c *NakamaContestsSystem) SetContestix(cx Contestix) {
	c.contestix = cx
}

// GetType returns the system type for the contests system.
func (c *NakamaContestsSystem) GetType() SystemType {
	return SystemTypeContests
}

// GetConfig returns the configuration for the contests system.
func (c *NakamaContestsSystem) GetConfig() any {
	return c.config
}

// ContestConfig returns the static definition of a contest, if it exists.
func (c *NakamaContestsSystem) ContestConfig(contestID string) (*ContestsConfigContest, bool) {
	if c.config == nil {
		return nil, false
	}
	cfg, ok := c.config.Contests[contestID]
	return cfg, ok
}

// Get returns the consolidated contest view for a viewer.
func (c *NakamaContestsSystem) Get(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID, contestID string) (*ContestView, error) {
	cfg, ok := c.ContestConfig(contestID)
	if !ok {
		return nil, ErrUnknownContest
	}

	now := time.Now()
	if _, parsed := ParseSchedule(cfg.Schedule, now); !parsed {
		logger.Warn("Contest %s has unparseable schedule %q, treating start as now", contestID, cfg.Schedule)
	}

	reads := []*runtime.StorageRead{
		{Collection: contestStateStorageCollection, Key: contestCounterKeyPrefix + contestID},
	}
	if userID != "" {
		reads = append(reads,
			&runtime.StorageRead{Collection: contestStateStorageCollection, Key: contestRegistrationKeyPrefix + contestID, UserID: userID},
			&runtime.StorageRead{Collection: contestStateStorageCollection, Key: contestVirtualKeyPrefix + contestID, UserID: userID},
		)
	}

	objects, err := nk.StorageRead(ctx, reads)
	if err != nil {
		logger.Error("Failed to read contest state: %v", err)
		return nil, ErrInternal
	}

	view := &ContestView{
		Contest: &Contest{
			ID:          contestID,
			Title:       cfg.Title,
			Schedule:    cfg.Schedule,
			DurationMin: cfg.DurationMin,
			Problems:    cfg.Problems,
		},
	}

	for _, obj := range objects {
		switch {
		case obj.Key == contestCounterKeyPrefix+contestID:
			var counter contestCounterState
			if err := json.Unmarshal([]byte(obj.Value), &counter); err != nil {
				logger.Error("Failed to unmarshal contest counter: %v", err)
				return nil, ErrInternal
			}
			view.Contest.RegisteredCount = counter.RegisteredCount
		case obj.Key == contestRegistrationKeyPrefix+contestID:
			registration := &Registration{}
			if err := json.Unmarshal([]byte(obj.Value), registration); err != nil {
				logger.Error("Failed to unmarshal registration: %v", err)
				return nil, ErrInternal
			}
			view.Registered = true
			view.Registration = registration
		case obj.Key == contestVirtualKeyPrefix+contestID:
			session := &VirtualSession{}
			if err := json.Unmarshal([]byte(obj.Value), session); err != nil {
				logger.Error("Failed to unmarshal virtual session: %v", err)
				return nil, ErrInternal
			}
			view.Virtual = session
		}
	}

	view.Window = ResolveContestWindow(cfg.Schedule, cfg.DurationMin, now, view.Virtual)

	return view, nil
}

// Register enters the user into the contest. The existence check and every write
// happen inside one storage batch guarded by read versions, so the registration
// record, the counter increment and the leaderboard bootstrap land together or not
// at all. A version conflict rewinds the whole attempt.
func (c *NakamaContestsSystem) Register(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID, contestID string) (*ContestView, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	if _, ok := c.ContestConfig(contestID); !ok {
		return nil, ErrUnknownContest
	}

	registrationKey := contestRegistrationKeyPrefix + contestID
	counterKey := contestCounterKeyPrefix + contestID
	entryKey := rankingEntryKeyPrefix + contestID

	for attempt := 0; attempt < ledgerTxRetryLimit; attempt++ {
		// Read everything the transaction depends on before issuing any write.
		objects, err := nk.StorageRead(ctx, []*runtime.StorageRead{
			{Collection: contestStateStorageCollection, Key: registrationKey, UserID: userID},
			{Collection: contestStateStorageCollection, Key: counterKey},
			{Collection: contestRankingsStorageCollection, Key: entryKey, UserID: userID},
		})
		if err != nil {
			logger.Error("Failed to read registration state: %v", err)
			return nil, ErrInternal
		}

		counter := contestCounterState{}
		counterVersion := "*"
		entryExists := false
		alreadyRegistered := false
		for _, obj := range objects {
			switch {
			case obj.Collection == contestStateStorageCollection && obj.Key == registrationKey:
				alreadyRegistered = true
			case obj.Collection == contestStateStorageCollection && obj.Key == counterKey:
				if err := json.Unmarshal([]byte(obj.Value), &counter); err != nil {
					logger.Error("Failed to unmarshal contest counter: %v", err)
					return nil, ErrInternal
				}
				counterVersion = obj.Version
			case obj.Collection == contestRankingsStorageCollection && obj.Key == entryKey:
				entryExists = true
			}
		}

		if alreadyRegistered {
			// Idempotent: the user is in, nothing to do.
			return c.Get(ctx, logger, nk, userID, contestID)
		}

		username, err := c.resolveUsername(ctx, logger, nk, userID)
		if err != nil {
			logger.Error("Failed to resolve username for %s: %v", userID, err)
			return nil, ErrInternal
		}

		now := time.Now().Unix()

		registrationValue, err := json.Marshal(&Registration{CreatedAtSec: now})
		if err != nil {
			return nil, ErrInternal
		}
		counterValue, err := json.Marshal(&contestCounterState{RegisteredCount: counter.RegisteredCount + 1})
		if err != nil {
			return nil, ErrInternal
		}

		writes := []*runtime.StorageWrite{
			{
				Collection: contestStateStorageCollection,
				Key:        registrationKey,
				UserID:     userID,
				Value:      string(registrationValue),
				Version:    "*", // create-only, a concurrent duplicate aborts the batch
			},
			{
				Collection: contestStateStorageCollection,
				Key:        counterKey,
				Value:      string(counterValue),
				Version:    counterVersion,
			},
		}

		if !entryExists {
			entryValue, err := json.Marshal(newZeroRankingEntry(userID, username))
			if err != nil {
				return nil, ErrInternal
			}
			writes = append(writes, &runtime.StorageWrite{
				Collection: contestRankingsStorageCollection,
				Key:        entryKey,
				UserID:     userID,
				Value:      string(entryValue),
				Version:    "*",
			})
		}

		if _, err := nk.StorageWrite(ctx, writes); err != nil {
			if isVersionConflict(err) {
				// A concurrent transaction won the race; re-read and retry as a unit.
				continue
			}
			logger.Error("Failed to write registration batch: %v", err)
			return nil, ErrInternal
		}

		if !entryExists {
			c.bootstrapBackingRecord(ctx, logger, nk, userID, username, contestID)
		}

		if c.contestix != nil {
			c.contestix.SendPublisherEvents(ctx, logger, nk, userID, []*PublisherEvent{{
				Name:      EventContestRegister,
				Id:        uuid.New().String(),
				Timestamp: now,
				System:    c,
				SourceId:  contestID,
			}})
			if liveSync := c.contestix.GetLiveSyncSystem(); liveSync != nil {
				liveSync.Invalidate(ctx, logger, nk, LiveResourceContest, contestID, "")
				liveSync.Invalidate(ctx, logger, nk, LiveResourceRegistration, contestID, userID)
				liveSync.Invalidate(ctx, logger, nk, LiveResourceRanking, contestID, "")
			}
		}

		return c.Get(ctx, logger, nk, userID, contestID)
	}

	return nil, ErrTransactionConflict
}

// VirtualSession returns the user's current virtual session state for a contest.
func (c *NakamaContestsSystem) VirtualSession(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID, contestID string) (*VirtualSession, error) {
	session, _, err := c.readVirtualSession(ctx, logger, nk, userID, contestID)
	return session, err
}

// StartVirtualSession begins a personal replay at server time.
func (c *NakamaContestsSystem) StartVirtualSession(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID, contestID string) (*VirtualSession, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	if _, ok := c.ContestConfig(contestID); !ok {
		return nil, ErrUnknownContest
	}

	for attempt := 0; attempt < ledgerTxRetryLimit; attempt++ {
		session, version, err := c.readVirtualSession(ctx, logger, nk, userID, contestID)
		if err != nil {
			return nil, err
		}

		if session.State == VirtualSessionOngoing {
			// A second start must not create a second attempt.
			return session, nil
		}

		next := &VirtualSession{
			State:        VirtualSessionOngoing,
			StartedAtSec: time.Now().Unix(), // server-assigned, client clocks drift
			AttemptID:    uuid.New().String(),
		}

		if err := c.writeVirtualSession(ctx, nk, userID, contestID, next, version); err != nil {
			if isVersionConflict(err) {
				continue
			}
			logger.Error("Failed to write virtual session: %v", err)
			return nil, ErrInternal
		}

		if c.contestix != nil {
			c.contestix.SendPublisherEvents(ctx, logger, nk, userID, []*PublisherEvent{{
				Name:      EventVirtualStart,
				Id:        uuid.New().String(),
				Timestamp: next.StartedAtSec,
				System:    c,
				SourceId:  contestID,
			}})
			if liveSync := c.contestix.GetLiveSyncSystem(); liveSync != nil {
				liveSync.Invalidate(ctx, logger, nk, LiveResourceVirtualSession, contestID, userID)
			}
		}

		return next, nil
	}

	return nil, ErrTransactionConflict
}

// EndVirtualSession finishes the ongoing replay for that attempt cycle.
func (c *NakamaContestsSystem) EndVirtualSession(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID, contestID string, confirmed bool) (*VirtualSession, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	if _, ok := c.ContestConfig(contestID); !ok {
		return nil, ErrUnknownContest
	}
	if !confirmed {
		// Ending is irreversible for the attempt, the caller has to mean it.
		return nil, ErrConfirmationNeeded
	}

	for attempt := 0; attempt < ledgerTxRetryLimit; attempt++ {
		session, version, err := c.readVirtualSession(ctx, logger, nk, userID, contestID)
		if err != nil {
			return nil, err
		}

		if session.State != VirtualSessionOngoing {
			// Nothing to finish; double-finish must not re-trigger side effects.
			return session, nil
		}

		next := &VirtualSession{
			State:        VirtualSessionFinished,
			StartedAtSec: session.StartedAtSec,
			AttemptID:    session.AttemptID,
		}

		if err := c.writeVirtualSession(ctx, nk, userID, contestID, next, version); err != nil {
			if isVersionConflict(err) {
				continue
			}
			logger.Error("Failed to write virtual session: %v", err)
			return nil, ErrInternal
		}

		if c.contestix != nil {
			c.contestix.SendPublisherEvents(ctx, logger, nk, userID, []*PublisherEvent{{
				Name:      EventVirtualEnd,
				Id:        uuid.New().String(),
				Timestamp: time.Now().Unix(),
				System:    c,
				SourceId:  contestID,
			}})
			if liveSync := c.contestix.GetLiveSyncSystem(); liveSync != nil {
				liveSync.Invalidate(ctx, logger, nk, LiveResourceVirtualSession, contestID, userID)
			}
		}

		return next, nil
	}

	return nil, ErrTransactionConflict
}

func (c *NakamaContestsSystem) readVirtualSession(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID, contestID string) (*VirtualSession, string, error) {
	objects, err := nk.StorageRead(ctx, []*runtime.StorageRead{
		{Collection: contestStateStorageCollection, Key: contestVirtualKeyPrefix + contestID, UserID: userID},
	})
	if err != nil {
		logger.Error("Failed to read virtual session: %v", err)
		return nil, "", ErrInternal
	}

	if len(objects) == 0 || objects[0].Value == "" {
		return &VirtualSession{State: VirtualSessionNone}, "*", nil
	}

	session := &VirtualSession{}
	if err := json.Unmarshal([]byte(objects[0].Value), session); err != nil {
		logger.Error("Failed to unmarshal virtual session: %v", err)
		return nil, "", ErrInternal
	}

	return session, objects[0].Version, nil
}

func (c *NakamaContestsSystem) writeVirtualSession(ctx context.Context, nk runtime.NakamaModule, userID, contestID string, session *VirtualSession, version string) error {
	value, err := json.Marshal(session)
	if err != nil {
		return err
	}

	_, err = nk.StorageWrite(ctx, []*runtime.StorageWrite{
		{
			Collection: contestStateStorageCollection,
			Key:        contestVirtualKeyPrefix + contestID,
			UserID:     userID,
			Value:      string(value),
			Version:    version,
		},
	})
	return err
}

// resolveUsername picks a display name for leaderboard bootstrap. Accounts without a
// username fall back to a placeholder derived from the user id.
func (c *NakamaContestsSystem) resolveUsername(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID string) (string, error) {
	account, err := nk.AccountGetId(ctx, userID)
	if err != nil {
		return "", err
	}
	if account != nil && account.User != nil && account.User.Username != "" {
		return account.User.Username, nil
	}
	return placeholderUsername(userID), nil
}

func placeholderUsername(userID string) string {
	id := userID
	if len(id) > 8 {
		id = id[:8]
	}
	return "user_" + id
}

// bootstrapBackingRecord creates the backing leaderboard lazily and seeds the user's
// zero record so the row is pageable before the judging pipeline ever writes to it.
// Failures are logged and left for the next judged write; the ledger batch has
// already committed.
func (c *NakamaContestsSystem) bootstrapBackingRecord(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID, username, contestID string) {
	backingID := backingLeaderboardID(contestID)
	if err := nk.LeaderboardCreate(ctx, backingID, true, "desc", "set", "", nil, true); err != nil {
		logger.Warn("Failed to create backing leaderboard %s: %v", backingID, err)
	}
	if _, err := nk.LeaderboardRecordWrite(ctx, backingID, userID, username, 0, 0, nil, nil); err != nil {
		logger.Warn("Failed to seed backing record for %s on %s: %v", userID, backingID, err)
	}
}

func backingLeaderboardID(contestID string) string {
	return backingLeaderboardPrefix + contestID
}

// isVersionConflict reports whether a storage write failed its version check, which
// marks a lost race with a concurrent transaction rather than a hard failure.
func isVersionConflict(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "version check failed") || strings.Contains(msg, "storage write rejected")
}

var _ ContestsSystem = (*NakamaContestsSystem)(nil)
