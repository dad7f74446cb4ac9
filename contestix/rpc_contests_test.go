package contestix

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/heroiclabs/nakama-common/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRpcContestsRegister(t *testing.T) {
	contests := NewNakamaContestsSystem(testContestsConfig())
	cx := newTestContestix(contests)
	logger := &mockLogger{}
	nk := newTestNakama()

	handler := rpcContestsRegister(cx)

	// No session user is rejected before any work happens.
	_, err := handler(context.Background(), logger, nil, nk, `{"id":"weekly_12"}`)
	assert.ErrorIs(t, err, ErrNoSessionUser)

	ctx := context.WithValue(context.Background(), runtime.RUNTIME_CTX_USER_ID, "u1")
	out, err := handler(ctx, logger, nil, nk, `{"id":"weekly_12"}`)
	require.NoError(t, err)

	view := &ContestView{}
	require.NoError(t, json.Unmarshal([]byte(out), view))
	assert.True(t, view.Registered)
	assert.Equal(t, int64(1), view.Contest.RegisteredCount)

	_, err = handler(ctx, logger, nil, nk, `not json`)
	assert.ErrorIs(t, err, ErrPayloadDecode)
}

func TestRpcContestsGetAllowsAnonymous(t *testing.T) {
	contests := NewNakamaContestsSystem(testContestsConfig())
	cx := newTestContestix(contests)
	logger := &mockLogger{}
	nk := newTestNakama()

	handler := rpcContestsGet(cx)
	out, err := handler(context.Background(), logger, nil, nk, `{"id":"weekly_12"}`)
	require.NoError(t, err)

	view := &ContestView{}
	require.NoError(t, json.Unmarshal([]byte(out), view))
	assert.False(t, view.Registered)
	assert.Equal(t, "Weekly Round 12", view.Contest.Title)
}

func TestRpcRankingsPage(t *testing.T) {
	contests := NewNakamaContestsSystem(testContestsConfig())
	rankings := NewNakamaRankingsSystem(&RankingsConfig{})
	cx := newTestContestix(contests, rankings)
	logger := &mockLogger{}
	nk := newTestNakama()
	ctx := context.Background()

	require.NoError(t, rankings.RecordJudgedResult(ctx, logger, nk, judged("weekly_12", "u1", "alice99", 3, 50)))

	handler := rpcRankingsPage(cx)
	out, err := handler(ctx, logger, nil, nk, `{"contest_id":"weekly_12"}`)
	require.NoError(t, err)

	page := &RankingPage{}
	require.NoError(t, json.Unmarshal([]byte(out), page))
	require.Len(t, page.Rows, 1)
	assert.Equal(t, "alice99", page.Rows[0].Username)
}

func TestRpcRankingsResultWrite(t *testing.T) {
	contests := NewNakamaContestsSystem(testContestsConfig())
	rankings := NewNakamaRankingsSystem(&RankingsConfig{})
	cx := newTestContestix(contests, rankings)
	logger := &mockLogger{}
	nk := newTestNakama()
	ctx := context.Background()

	handler := rpcRankingsResultWrite(cx)
	payload, err := json.Marshal(judged("weekly_12", "u1", "alice99", 2, 30))
	require.NoError(t, err)

	_, err = handler(ctx, logger, nil, nk, string(payload))
	require.NoError(t, err)

	// A session user may only write their own row.
	otherCtx := context.WithValue(ctx, runtime.RUNTIME_CTX_USER_ID, "intruder")
	_, err = handler(otherCtx, logger, nil, nk, string(payload))
	assert.ErrorIs(t, err, ErrUnauthenticated)

	page, err := rankings.QueryPage(ctx, logger, nk, "", "weekly_12", 0, "", "")
	require.NoError(t, err)
	require.Len(t, page.Rows, 1)
	assert.Equal(t, int64(2), page.Rows[0].AcceptedCount)
}
