package contestix

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/heroiclabs/nakama-common/runtime"
)

func rpcRankingsPage(p *contestixImpl) func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	return func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
		rankingsSystem := p.GetRankingsSystem()
		if rankingsSystem == nil {
			return "", ErrSystemNotAvailable
		}

		// Rankings are publicly viewable; a session user only adds the virtual overlay.
		viewerID, _ := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)

		var req RankingPageRequest
		if err := json.Unmarshal([]byte(payload), &req); err != nil {
			logger.Error("Failed to unmarshal RankingPageRequest: %v", err)
			return "", ErrPayloadDecode
		}

		page, err := rankingsSystem.QueryPage(ctx, logger, nk, viewerID, req.ContestId, req.Limit, req.Cursor, req.Filter)
		if err != nil {
			return "", err
		}

		data, err := json.Marshal(page)
		if err != nil {
			logger.Error("Failed to marshal ranking page: %v", err)
			return "", ErrPayloadEncode
		}
		return string(data), nil
	}
}

// rpcRankingsResultWrite is the ingest endpoint for the judging pipeline. It is meant
// to be called server-to-server; deployments that expose no trusted channel should
// disable it with UnregisterRpc.
func rpcRankingsResultWrite(p *contestixImpl) func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	return func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
		rankingsSystem := p.GetRankingsSystem()
		if rankingsSystem == nil {
			return "", ErrSystemNotAvailable
		}

		result := &JudgedResult{}
		if err := json.Unmarshal([]byte(payload), result); err != nil {
			logger.Error("Failed to unmarshal JudgedResult: %v", err)
			return "", ErrPayloadDecode
		}

		// Server-to-server calls carry no session user; when one is present it must
		// match the row being written.
		if sessionUserID, ok := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string); ok && sessionUserID != "" && sessionUserID != result.UserID {
			return "", ErrUnauthenticated
		}

		if err := rankingsSystem.RecordJudgedResult(ctx, logger, nk, result); err != nil {
			return "", err
		}

		return "{}", nil
	}
}
