package contestix

import (
	"context"

	"github.com/heroiclabs/nakama-common/runtime"
)

// RankingsConfig is the data definition for the RankingsSystem type.
type RankingsConfig struct {
	// PageSize is the default number of rows per page when the caller does not ask
	// for a specific limit. Defaults to 50.
	PageSize int `json:"page_size,omitempty"`
}

const defaultRankingPageSize = 50

// ProblemCellState is the display state of a single (row, problem) cell.
type ProblemCellState string

const (
	ProblemCellAccepted    ProblemCellState = "AC"
	ProblemCellAttempted   ProblemCellState = "ATTEMPTED"
	ProblemCellUnattempted ProblemCellState = "UNATTEMPTED"
)

// AcceptedProblem carries the per-problem penalty for an accepted problem.
type AcceptedProblem struct {
	PenaltyMin int64 `json:"penalty_min"`
}

// RankingEntry is the denormalized, queryable ranking record per participant. It is
// bootstrapped zeroed at registration; the score fields are mutated only by the
// judging pipeline afterwards. Virtual rows share the shape and additionally carry
// the attempt id of the session that produced them.
type RankingEntry struct {
	UserID            string                      `json:"user_id"`
	Username          string                      `json:"username,omitempty"`
	AcceptedCount     int64                       `json:"accepted_count"`
	PenaltyMin        int64                       `json:"penalty_min"`
	AcceptedProblems  map[string]*AcceptedProblem `json:"accepted_problems,omitempty"`
	AttemptedProblems map[string]bool             `json:"attempted_problems,omitempty"`
	AttemptID         string                      `json:"attempt_id,omitempty"`
}

func newZeroRankingEntry(userID, username string) *RankingEntry {
	return &RankingEntry{
		UserID:            userID,
		Username:          username,
		AcceptedProblems:  map[string]*AcceptedProblem{},
		AttemptedProblems: map[string]bool{},
	}
}

// ProblemCell is one rendered cell of a ranking row, in contest problem order.
type ProblemCell struct {
	ProblemID  string           `json:"problem_id"`
	State      ProblemCellState `json:"state"`
	PenaltyMin int64            `json:"penalty_min,omitempty"`
}

// RankingRow is one rendered leaderboard row. Rank is positional over the assembled
// result, recomputed on every page build, never stored.
type RankingRow struct {
	Rank          int64          `json:"rank"`
	UserID        string         `json:"user_id"`
	Username      string         `json:"username,omitempty"`
	AcceptedCount int64          `json:"accepted_count"`
	PenaltyMin    int64          `json:"penalty_min"`
	Cells         []*ProblemCell `json:"cells,omitempty"`
	Virtual       bool           `json:"virtual,omitempty"`
}

// RankingPage is one assembled page of the merged, sorted, filtered ranking.
type RankingPage struct {
	ContestID  string        `json:"contest_id"`
	Rows       []*RankingRow `json:"rows"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

// JudgedResult is the write payload the external judging pipeline delivers after it
// scores submissions. The engine never computes these fields itself.
type JudgedResult struct {
	ContestID         string                      `json:"contest_id"`
	UserID            string                      `json:"user_id"`
	Username          string                      `json:"username,omitempty"`
	Virtual           bool                        `json:"virtual,omitempty"`
	AttemptID         string                      `json:"attempt_id,omitempty"`
	AcceptedCount     int64                       `json:"accepted_count"`
	PenaltyMin        int64                       `json:"penalty_min"`
	AcceptedProblems  map[string]*AcceptedProblem `json:"accepted_problems,omitempty"`
	AttemptedProblems map[string]bool             `json:"attempted_problems,omitempty"`
}

// The RankingsSystem reads pages of persisted ranking rows, merges in the viewer's
// transient virtual row, and renders display ranks and per-problem cells.
type RankingsSystem interface {
	System

	// QueryPage assembles one page of the ranking for a viewer. cursor is the opaque
	// marker returned by the previous page, empty for the top. filter is an optional
	// case-insensitive substring match over display names, applied after merge/sort
	// and before windowing, so filtered ranks are 1-based over the filtered set.
	QueryPage(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, viewerID, contestID string, limit int, cursor, filter string) (*RankingPage, error)

	// RecordJudgedResult upserts a participant's ranking row from judged data and
	// mirrors the sort keys to the backing leaderboard. Virtual results only touch
	// the viewer-scoped virtual row, never the ranked set.
	RecordJudgedResult(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, result *JudgedResult) error
}

// Request payloads for the rankings RPCs.

type RankingPageRequest struct {
	ContestId string `json:"contest_id,omitempty"`
	Limit     int    `json:"limit,omitempty"`
	Cursor    string `json:"cursor,omitempty"`
	Filter    string `json:"filter,omitempty"`
}
