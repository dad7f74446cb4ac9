package contestix

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/heroiclabs/nakama-common/runtime"
)

func rpcContestsGet(p *contestixImpl) func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	return func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
		contestsSystem := p.GetContestsSystem()
		if contestsSystem == nil {
			return "", ErrSystemNotAvailable
		}

		// Anonymous reads are allowed; the view simply carries no participation state.
		userID, _ := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)

		var req ContestGetRequest
		if err := json.Unmarshal([]byte(payload), &req); err != nil {
			logger.Error("Failed to unmarshal ContestGetRequest: %v", err)
			return "", ErrPayloadDecode
		}

		view, err := contestsSystem.Get(ctx, logger, nk, userID, req.Id)
		if err != nil {
			return "", err
		}

		data, err := json.Marshal(view)
		if err != nil {
			logger.Error("Failed to marshal contest view: %v", err)
			return "", ErrPayloadEncode
		}
		return string(data), nil
	}
}

func rpcContestsRegister(p *contestixImpl) func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	return func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
		contestsSystem := p.GetContestsSystem()
		if contestsSystem == nil {
			return "", ErrSystemNotAvailable
		}

		userID, ok := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)
		if !ok || userID == "" {
			return "", ErrNoSessionUser
		}

		var req ContestRegisterRequest
		if err := json.Unmarshal([]byte(payload), &req); err != nil {
			logger.Error("Failed to unmarshal ContestRegisterRequest: %v", err)
			return "", ErrPayloadDecode
		}

		view, err := contestsSystem.Register(ctx, logger, nk, userID, req.Id)
		if err != nil {
			return "", err
		}

		data, err := json.Marshal(view)
		if err != nil {
			logger.Error("Failed to marshal contest view: %v", err)
			return "", ErrPayloadEncode
		}
		return string(data), nil
	}
}

func rpcContestsVirtualStart(p *contestixImpl) func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	return func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
		contestsSystem := p.GetContestsSystem()
		if contestsSystem == nil {
			return "", ErrSystemNotAvailable
		}

		userID, ok := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)
		if !ok || userID == "" {
			return "", ErrNoSessionUser
		}

		var req ContestVirtualStartRequest
		if err := json.Unmarshal([]byte(payload), &req); err != nil {
			logger.Error("Failed to unmarshal ContestVirtualStartRequest: %v", err)
			return "", ErrPayloadDecode
		}

		session, err := contestsSystem.StartVirtualSession(ctx, logger, nk, userID, req.Id)
		if err != nil {
			return "", err
		}

		data, err := json.Marshal(session)
		if err != nil {
			logger.Error("Failed to marshal virtual session: %v", err)
			return "", ErrPayloadEncode
		}
		return string(data), nil
	}
}

func rpcContestsVirtualEnd(p *contestixImpl) func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	return func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
		contestsSystem := p.GetContestsSystem()
		if contestsSystem == nil {
			return "", ErrSystemNotAvailable
		}

		userID, ok := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)
		if !ok || userID == "" {
			return "", ErrNoSessionUser
		}

		var req ContestVirtualEndRequest
		if err := json.Unmarshal([]byte(payload), &req); err != nil {
			logger.Error("Failed to unmarshal ContestVirtualEndRequest: %v", err)
			return "", ErrPayloadDecode
		}

		session, err := contestsSystem.EndVirtualSession(ctx, logger, nk, userID, req.Id, req.Confirmed)
		if err != nil {
			return "", err
		}

		data, err := json.Marshal(session)
		if err != nil {
			logger.Error("Failed to marshal virtual session: %v", err)
			return "", ErrPayloadEncode
		}
		return string(data), nil
	}
}
