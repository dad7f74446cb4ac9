package contestix

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/heroiclabs/nakama-common/runtime"
)

// rankingPageCursor wraps the backing leaderboard cursor with the absolute
// position of the page start, so display ranks keep counting across pages.
type rankingPageCursor struct {
	Offset int64  `json:"o"`
	Cursor string `json:"c,omitempty"`
}

func encodeRankingCursor(offset int64, cursor string) string {
	if cursor == "" {
		return ""
	}
	data, err := json.Marshal(&rankingPageCursor{Offset: offset, Cursor: cursor})
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(data)
}

func decodeRankingCursor(raw string) (*rankingPageCursor, error) {
	cursor := &rankingPageCursor{}
	if raw == "" {
		return cursor, nil
	}
	data, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, cursor); err != nil {
		return nil, err
	}
	return cursor, nil
}

// NakamaRankingsSystem implements the RankingsSystem interface using Nakama as the backend.
type NakamaRankingsSystem struct {
	config    *RankingsConfig
	contestix Contestix
}

// NewNakamaRankingsSystem creates a new instance of the rankings system with the given configuration.
func NewNakamaRankingsSystem(config *RankingsConfig) *NakamaRankingsSystem {
	return &NakamaRankingsSystem{
		config: config,
	}
}

// SetContestix sets the Contestix instance for this rankings system
func (r *NakamaRankingsSystem) SetContestix(cx Contestix) {
	r.contestix = cx
}

// GetType returns the system type for the rankings system.
func (r *NakamaRankingsSystem) GetType() SystemType {
	return SystemTypeRankings
}

// GetConfig returns the configuration for the rankings system.
func (r *NakamaRankingsSystem) GetConfig() any {
	return r.config
}

func (r *NakamaRankingsSystem) contestsSystem() ContestsSystem {
	if r.contestix == nil {
		return nil
	}
	return r.contestix.GetContestsSystem()
}

func (r *NakamaRankingsSystem) pageSize() int {
	if r.config != nil && r.config.PageSize > 0 {
		return r.config.PageSize
	}
	return defaultRankingPageSize
}

// QueryPage assembles one page of the merged ranking for a viewer.
func (r *NakamaRankingsSystem) QueryPage(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, viewerID, contestID string, limit int, cursor, filter string) (*RankingPage, error) {
	contests := r.contestsSystem()
	if contests == nil {
		return nil, ErrSystemNotAvailable
	}
	cfg, ok := contests.ContestConfig(contestID)
	if !ok {
		return nil, ErrUnknownContest
	}
	if limit <= 0 {
		limit = r.pageSize()
	}

	pageCursor, err := decodeRankingCursor(cursor)
	if err != nil {
		logger.Warn("Rejecting malformed ranking cursor %q: %v", cursor, err)
		return nil, ErrBadInput
	}

	records, _, nextCursor, _, err := nk.LeaderboardRecordsList(ctx, backingLeaderboardID(contestID), nil, limit, pageCursor.Cursor, 0)
	if err != nil {
		logger.Error("Failed to list backing leaderboard records for %s: %v", contestID, err)
		return nil, ErrInternal
	}

	// Hydrate the full rows behind the ordered record page.
	entries := make(map[string]*RankingEntry, len(records))
	if len(records) > 0 {
		reads := make([]*runtime.StorageRead, 0, len(records))
		for _, record := range records {
			reads = append(reads, &runtime.StorageRead{
				Collection: contestRankingsStorageCollection,
				Key:        rankingEntryKeyPrefix + contestID,
				UserID:     record.OwnerId,
			})
		}
		objects, err := nk.StorageRead(ctx, reads)
		if err != nil {
			logger.Error("Failed to read ranking entries for %s: %v", contestID, err)
			return nil, ErrInternal
		}
		for _, obj := range objects {
			entry := &RankingEntry{}
			if err := json.Unmarshal([]byte(obj.Value), entry); err != nil {
				logger.Error("Failed to unmarshal ranking entry for %s: %v", obj.UserId, err)
				continue
			}
			if entry.UserID == "" {
				entry.UserID = obj.UserId
			}
			entries[obj.UserId] = entry
		}
	}

	merged := make([]*RankingEntry, 0, len(records)+1)
	for _, record := range records {
		entry, ok := entries[record.OwnerId]
		if !ok {
			// Entry document missing; fall back to the sort keys the record carries.
			username := record.OwnerId
			if record.Username != nil {
				username = record.Username.Value
			}
			entry = &RankingEntry{
				UserID:        record.OwnerId,
				Username:      username,
				AcceptedCount: record.Score,
				PenaltyMin:    -record.Subscore,
			}
		}
		merged = append(merged, entry)
	}

	// Merge the viewer's transient virtual row, for this viewer's render only.
	virtualUserID := ""
	if viewerID != "" {
		if virtualEntry := r.viewerVirtualEntry(ctx, logger, nk, contests, viewerID, contestID); virtualEntry != nil {
			virtualUserID = viewerID
			replaced := false
			for i, entry := range merged {
				if entry.UserID == viewerID {
					merged[i] = virtualEntry
					replaced = true
					break
				}
			}
			if !replaced {
				merged = append(merged, virtualEntry)
			}
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return compareRankingEntries(merged[i], merged[j])
	})

	if filter != "" {
		needle := strings.ToLower(filter)
		filtered := merged[:0]
		for _, entry := range merged {
			if strings.Contains(strings.ToLower(entry.Username), needle) {
				filtered = append(filtered, entry)
			}
		}
		merged = filtered
	}

	if len(merged) > limit {
		merged = merged[:limit]
	}

	// Display ranks continue across cursor pages; only a filtered view restarts
	// 1-based, because its ranks are positions within the filtered set.
	rankBase := pageCursor.Offset
	if filter != "" {
		rankBase = 0
	}

	page := &RankingPage{
		ContestID:  contestID,
		Rows:       make([]*RankingRow, 0, len(merged)),
		NextCursor: encodeRankingCursor(pageCursor.Offset+int64(len(records)), nextCursor),
	}
	for i, entry := range merged {
		page.Rows = append(page.Rows, &RankingRow{
			Rank:          rankBase + int64(i+1),
			UserID:        entry.UserID,
			Username:      entry.Username,
			AcceptedCount: entry.AcceptedCount,
			PenaltyMin:    entry.PenaltyMin,
			Cells:         buildProblemCells(cfg, entry),
			Virtual:       entry.UserID == virtualUserID && virtualUserID != "",
		})
	}

	return page, nil
}

// viewerVirtualEntry returns the viewer's virtual-scoped row when their session is
// ongoing and judged virtual data exists for that attempt, nil otherwise.
func (r *NakamaRankingsSystem) viewerVirtualEntry(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, contests ContestsSystem, viewerID, contestID string) *RankingEntry {
	session, err := contests.VirtualSession(ctx, logger, nk, viewerID, contestID)
	if err != nil || session == nil || session.State != VirtualSessionOngoing {
		return nil
	}

	objects, err := nk.StorageRead(ctx, []*runtime.StorageRead{
		{Collection: contestRankingsStorageCollection, Key: rankingVirtualEntryKeyPrefix + contestID, UserID: viewerID},
	})
	if err != nil {
		logger.Warn("Failed to read virtual entry for %s: %v", viewerID, err)
		return nil
	}
	if len(objects) == 0 || objects[0].Value == "" {
		return nil
	}

	entry := &RankingEntry{}
	if err := json.Unmarshal([]byte(objects[0].Value), entry); err != nil {
		logger.Warn("Failed to unmarshal virtual entry for %s: %v", viewerID, err)
		return nil
	}
	if entry.UserID == "" {
		entry.UserID = viewerID
	}
	// Stale rows from an earlier attempt do not belong on the current timeline.
	if entry.AttemptID != "" && entry.AttemptID != session.AttemptID {
		return nil
	}
	return entry
}

// RecordJudgedResult upserts a participant's row from judged data and mirrors the
// sort keys to the backing leaderboard.
func (r *NakamaRankingsSystem) RecordJudgedResult(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, result *JudgedResult) error {
	if result == nil || result.ContestID == "" || result.UserID == "" {
		return ErrBadInput
	}
	contests := r.contestsSystem()
	if contests == nil {
		return ErrSystemNotAvailable
	}
	if _, ok := contests.ContestConfig(result.ContestID); !ok {
		return ErrUnknownContest
	}

	entry := &RankingEntry{
		UserID:            result.UserID,
		Username:          result.Username,
		AcceptedCount:     result.AcceptedCount,
		PenaltyMin:        result.PenaltyMin,
		AcceptedProblems:  result.AcceptedProblems,
		AttemptedProblems: result.AttemptedProblems,
	}

	key := rankingEntryKeyPrefix + result.ContestID
	if result.Virtual {
		key = rankingVirtualEntryKeyPrefix + result.ContestID
		entry.AttemptID = result.AttemptID
	}

	if entry.Username == "" {
		entry.Username = r.existingUsername(ctx, logger, nk, result.ContestID, result.UserID)
	}

	value, err := json.Marshal(entry)
	if err != nil {
		return ErrInternal
	}

	if _, err := nk.StorageWrite(ctx, []*runtime.StorageWrite{
		{
			Collection: contestRankingsStorageCollection,
			Key:        key,
			UserID:     result.UserID,
			Value:      string(value),
		},
	}); err != nil {
		logger.Error("Failed to write ranking entry for %s: %v", result.UserID, err)
		return ErrInternal
	}

	if !result.Virtual {
		// Mirror the comparator keys so the backing leaderboard keeps the page order.
		backingID := backingLeaderboardID(result.ContestID)
		if _, err := nk.LeaderboardRecordWrite(ctx, backingID, result.UserID, entry.Username, result.AcceptedCount, -result.PenaltyMin, nil, nil); err != nil {
			logger.Error("Failed to mirror backing record for %s: %v", result.UserID, err)
			return ErrInternal
		}
	}

	if r.contestix != nil {
		r.contestix.SendPublisherEvents(ctx, logger, nk, result.UserID, []*PublisherEvent{{
			Name:      EventResultRecorded,
			Id:        uuid.New().String(),
			Timestamp: time.Now().Unix(),
			System:    r,
			SourceId:  result.ContestID,
		}})
		if liveSync := r.contestix.GetLiveSyncSystem(); liveSync != nil {
			if result.Virtual {
				liveSync.Invalidate(ctx, logger, nk, LiveResourceVirtualSession, result.ContestID, result.UserID)
			} else {
				liveSync.Invalidate(ctx, logger, nk, LiveResourceRanking, result.ContestID, "")
			}
		}
	}

	return nil
}

func (r *NakamaRankingsSystem) existingUsername(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, contestID, userID string) string {
	objects, err := nk.StorageRead(ctx, []*runtime.StorageRead{
		{Collection: contestRankingsStorageCollection, Key: rankingEntryKeyPrefix + contestID, UserID: userID},
	})
	if err == nil && len(objects) > 0 && objects[0].Value != "" {
		entry := &RankingEntry{}
		if err := json.Unmarshal([]byte(objects[0].Value), entry); err == nil && entry.Username != "" {
			return entry.Username
		}
	}
	return placeholderUsername(userID)
}

// compareRankingEntries is the ranking comparator: accepted count descending, then
// penalty ascending, then user id ascending as the deterministic tie-break.
func compareRankingEntries(a, b *RankingEntry) bool {
	if a.AcceptedCount != b.AcceptedCount {
		return a.AcceptedCount > b.AcceptedCount
	}
	if a.PenaltyMin != b.PenaltyMin {
		return a.PenaltyMin < b.PenaltyMin
	}
	return a.UserID < b.UserID
}

// buildProblemCells renders the per-problem cells in contest problem order.
func buildProblemCells(cfg *ContestsConfigContest, entry *RankingEntry) []*ProblemCell {
	if len(cfg.Problems) == 0 {
		return nil
	}
	cells := make([]*ProblemCell, 0, len(cfg.Problems))
	for _, problemID := range cfg.Problems {
		cell := &ProblemCell{ProblemID: problemID, State: ProblemCellUnattempted}
		if accepted, ok := entry.AcceptedProblems[problemID]; ok && accepted != nil {
			cell.State = ProblemCellAccepted
			cell.PenaltyMin = accepted.PenaltyMin
		} else if entry.AttemptedProblems[problemID] {
			cell.State = ProblemCellAttempted
		}
		cells = append(cells, cell)
	}
	return cells
}

var _ RankingsSystem = (*NakamaRankingsSystem)(nil)
