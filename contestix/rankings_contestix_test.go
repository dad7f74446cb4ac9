package contestix

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRankingsFixture(t *testing.T) (*NakamaContestsSystem, *NakamaRankingsSystem, *testNakamaModule) {
	contests := NewNakamaContestsSystem(testContestsConfig())
	rankings := NewNakamaRankingsSystem(&RankingsConfig{})
	newTestContestix(contests, rankings)
	return contests, rankings, newTestNakama()
}

func judged(contestID, userID, username string, accepted, penalty int64) *JudgedResult {
	return &JudgedResult{
		ContestID:     contestID,
		UserID:        userID,
		Username:      username,
		AcceptedCount: accepted,
		PenaltyMin:    penalty,
	}
}

func TestQueryPageOrdering(t *testing.T) {
	_, rankings, nk := newRankingsFixture(t)
	logger := &mockLogger{}
	ctx := context.Background()

	require.NoError(t, rankings.RecordJudgedResult(ctx, logger, nk, judged("weekly_12", "u1", "slowpoke", 5, 100)))
	require.NoError(t, rankings.RecordJudgedResult(ctx, logger, nk, judged("weekly_12", "u2", "speedster", 5, 90)))
	require.NoError(t, rankings.RecordJudgedResult(ctx, logger, nk, judged("weekly_12", "u3", "rookie", 3, 50)))

	page, err := rankings.QueryPage(ctx, logger, nk, "", "weekly_12", 0, "", "")
	require.NoError(t, err)
	require.Len(t, page.Rows, 3)

	// More accepted wins; equal accepted is decided by lower penalty.
	assert.Equal(t, "u2", page.Rows[0].UserID)
	assert.Equal(t, "u1", page.Rows[1].UserID)
	assert.Equal(t, "u3", page.Rows[2].UserID)
	for i, row := range page.Rows {
		assert.Equal(t, int64(i+1), row.Rank)
	}
}

func TestQueryPageTieBreakIsDeterministic(t *testing.T) {
	_, rankings, nk := newRankingsFixture(t)
	logger := &mockLogger{}
	ctx := context.Background()

	require.NoError(t, rankings.RecordJudgedResult(ctx, logger, nk, judged("weekly_12", "zeta", "zeta", 4, 60)))
	require.NoError(t, rankings.RecordJudgedResult(ctx, logger, nk, judged("weekly_12", "alpha", "alpha", 4, 60)))

	page, err := rankings.QueryPage(ctx, logger, nk, "", "weekly_12", 0, "", "")
	require.NoError(t, err)
	require.Len(t, page.Rows, 2)
	assert.Equal(t, "alpha", page.Rows[0].UserID)
	assert.Equal(t, "zeta", page.Rows[1].UserID)
}

func TestQueryPageFilter(t *testing.T) {
	_, rankings, nk := newRankingsFixture(t)
	logger := &mockLogger{}
	ctx := context.Background()

	require.NoError(t, rankings.RecordJudgedResult(ctx, logger, nk, judged("weekly_12", "u1", "alice99", 3, 50)))
	require.NoError(t, rankings.RecordJudgedResult(ctx, logger, nk, judged("weekly_12", "u2", "bob", 5, 40)))

	// The match is case-insensitive and ranks are recomputed over the filtered set.
	page, err := rankings.QueryPage(ctx, logger, nk, "", "weekly_12", 0, "", "ALICE")
	require.NoError(t, err)
	require.Len(t, page.Rows, 1)
	assert.Equal(t, "alice99", page.Rows[0].Username)
	assert.Equal(t, int64(1), page.Rows[0].Rank)
}

func TestQueryPagePagination(t *testing.T) {
	_, rankings, nk := newRankingsFixture(t)
	logger := &mockLogger{}
	ctx := context.Background()

	require.NoError(t, rankings.RecordJudgedResult(ctx, logger, nk, judged("weekly_12", "u1", "first", 6, 10)))
	require.NoError(t, rankings.RecordJudgedResult(ctx, logger, nk, judged("weekly_12", "u2", "second", 5, 10)))
	require.NoError(t, rankings.RecordJudgedResult(ctx, logger, nk, judged("weekly_12", "u3", "third", 4, 10)))

	page, err := rankings.QueryPage(ctx, logger, nk, "", "weekly_12", 2, "", "")
	require.NoError(t, err)
	require.Len(t, page.Rows, 2)
	require.NotEmpty(t, page.NextCursor)
	assert.Equal(t, "u1", page.Rows[0].UserID)
	assert.Equal(t, int64(1), page.Rows[0].Rank)
	assert.Equal(t, "u2", page.Rows[1].UserID)
	assert.Equal(t, int64(2), page.Rows[1].Rank)

	// Display ranks keep counting after the cursor; the overall-third row stays 3.
	next, err := rankings.QueryPage(ctx, logger, nk, "", "weekly_12", 2, page.NextCursor, "")
	require.NoError(t, err)
	require.Len(t, next.Rows, 1)
	assert.Equal(t, "u3", next.Rows[0].UserID)
	assert.Equal(t, int64(3), next.Rows[0].Rank)
	assert.Empty(t, next.NextCursor)

	_, err = rankings.QueryPage(ctx, logger, nk, "", "weekly_12", 2, "not a cursor", "")
	assert.ErrorIs(t, err, ErrBadInput)
}

func TestQueryPageProblemCells(t *testing.T) {
	_, rankings, nk := newRankingsFixture(t)
	logger := &mockLogger{}
	ctx := context.Background()

	result := judged("weekly_12", "u1", "alice99", 2, 65)
	result.AcceptedProblems = map[string]*AcceptedProblem{
		"A": {PenaltyMin: 25},
		"C": {PenaltyMin: 40},
	}
	result.AttemptedProblems = map[string]bool{"B": true}
	require.NoError(t, rankings.RecordJudgedResult(ctx, logger, nk, result))

	page, err := rankings.QueryPage(ctx, logger, nk, "", "weekly_12", 0, "", "")
	require.NoError(t, err)
	require.Len(t, page.Rows, 1)

	cells := page.Rows[0].Cells
	require.Len(t, cells, 4)
	assert.Equal(t, []string{"A", "B", "C", "D"}, []string{cells[0].ProblemID, cells[1].ProblemID, cells[2].ProblemID, cells[3].ProblemID})
	assert.Equal(t, ProblemCellAccepted, cells[0].State)
	assert.Equal(t, int64(25), cells[0].PenaltyMin)
	assert.Equal(t, ProblemCellAttempted, cells[1].State)
	assert.Equal(t, ProblemCellAccepted, cells[2].State)
	assert.Equal(t, ProblemCellUnattempted, cells[3].State)
}

func TestQueryPageVirtualOverlay(t *testing.T) {
	contests, rankings, nk := newRankingsFixture(t)
	logger := &mockLogger{}
	ctx := context.Background()

	require.NoError(t, rankings.RecordJudgedResult(ctx, logger, nk, judged("weekly_12", "viewer", "viewer", 1, 20)))
	require.NoError(t, rankings.RecordJudgedResult(ctx, logger, nk, judged("weekly_12", "other", "other", 4, 30)))

	session, err := contests.StartVirtualSession(ctx, logger, nk, "viewer", "weekly_12")
	require.NoError(t, err)

	virtualResult := judged("weekly_12", "viewer", "viewer", 5, 15)
	virtualResult.Virtual = true
	virtualResult.AttemptID = session.AttemptID
	require.NoError(t, rankings.RecordJudgedResult(ctx, logger, nk, virtualResult))

	// The viewer sees their virtual row in place of the persisted one.
	page, err := rankings.QueryPage(ctx, logger, nk, "viewer", "weekly_12", 0, "", "")
	require.NoError(t, err)
	require.Len(t, page.Rows, 2)
	assert.Equal(t, "viewer", page.Rows[0].UserID)
	assert.True(t, page.Rows[0].Virtual)
	assert.Equal(t, int64(5), page.Rows[0].AcceptedCount)
	assert.Equal(t, "other", page.Rows[1].UserID)
	assert.False(t, page.Rows[1].Virtual)

	// Everyone else still sees the persisted ranked set.
	page, err = rankings.QueryPage(ctx, logger, nk, "other", "weekly_12", 0, "", "")
	require.NoError(t, err)
	require.Len(t, page.Rows, 2)
	assert.Equal(t, "other", page.Rows[0].UserID)
	assert.Equal(t, "viewer", page.Rows[1].UserID)
	assert.Equal(t, int64(1), page.Rows[1].AcceptedCount)
	assert.False(t, page.Rows[1].Virtual)

	// After the session finishes the overlay disappears for the viewer too.
	_, err = contests.EndVirtualSession(ctx, logger, nk, "viewer", "weekly_12", true)
	require.NoError(t, err)
	page, err = rankings.QueryPage(ctx, logger, nk, "viewer", "weekly_12", 0, "", "")
	require.NoError(t, err)
	require.Len(t, page.Rows, 2)
	assert.Equal(t, int64(1), page.Rows[1].AcceptedCount)
	assert.False(t, page.Rows[1].Virtual)
}

func TestVirtualResultNeverTouchesRankedSet(t *testing.T) {
	contests, rankings, nk := newRankingsFixture(t)
	logger := &mockLogger{}
	ctx := context.Background()

	session, err := contests.StartVirtualSession(ctx, logger, nk, "viewer", "weekly_12")
	require.NoError(t, err)

	virtualResult := judged("weekly_12", "viewer", "viewer", 5, 15)
	virtualResult.Virtual = true
	virtualResult.AttemptID = session.AttemptID
	require.NoError(t, rankings.RecordJudgedResult(ctx, logger, nk, virtualResult))

	// No backing record, no persisted entry.
	assert.Empty(t, nk.boards["contest_weekly_12"])
	assert.NotContains(t, nk.storage, storageKey(contestRankingsStorageCollection, "entry_weekly_12", "viewer"))
	assert.Contains(t, nk.storage, storageKey(contestRankingsStorageCollection, "virtual_entry_weekly_12", "viewer"))
}

func TestRecordJudgedResultValidation(t *testing.T) {
	_, rankings, nk := newRankingsFixture(t)
	logger := &mockLogger{}
	ctx := context.Background()

	assert.ErrorIs(t, rankings.RecordJudgedResult(ctx, logger, nk, nil), ErrBadInput)
	assert.ErrorIs(t, rankings.RecordJudgedResult(ctx, logger, nk, judged("weekly_12", "", "x", 1, 1)), ErrBadInput)
	assert.ErrorIs(t, rankings.RecordJudgedResult(ctx, logger, nk, judged("", "u1", "x", 1, 1)), ErrBadInput)
	assert.ErrorIs(t, rankings.RecordJudgedResult(ctx, logger, nk, judged("no_such", "u1", "x", 1, 1)), ErrUnknownContest)
}

func TestQueryPageUnknownContest(t *testing.T) {
	_, rankings, nk := newRankingsFixture(t)
	logger := &mockLogger{}
	ctx := context.Background()

	_, err := rankings.QueryPage(ctx, logger, nk, "", "no_such", 0, "", "")
	assert.ErrorIs(t, err, ErrUnknownContest)
}
