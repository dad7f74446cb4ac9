package main

import (
	"context"
	"database/sql"
	"time"

	"contestforge/contestix"

	"github.com/heroiclabs/nakama-common/runtime"
)

// noinspection GoUnusedExportedFunction
func InitModule(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, initializer runtime.Initializer) error {
	initStart := time.Now()

	logger.Info("Loading Contestforge Nakama plugin...")

	_, err := contestix.Init(ctx, logger, nk, initializer,
		contestix.WithContestsSystem("contests.json", true),
		contestix.WithRankingsSystem("rankings.json", true),
		contestix.WithLiveSyncSystem("livesync.json", false),
	)
	if err != nil {
		logger.Error("Failed to initialize contestix: %v", err)
		return err
	}

	logger.Info("Contestforge Nakama plugin loaded in '%d' msec.", time.Now().Sub(initStart).Milliseconds())
	return nil
}
