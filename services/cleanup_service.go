package services

import (
	"context"
	"log/slog"
	"time"
)

// TempSweeper removes abandoned temp files from a blob store.
type TempSweeper interface {
	SweepTemp(olderThan time.Duration) (int, error)
}

type CleanupConfig struct {
	Interval time.Duration
	MaxAge   time.Duration
}

// StartCleanupWorkers runs the background sweeps until ctx is cancelled.
func StartCleanupWorkers(ctx context.Context, sweeper TempSweeper, cfg CleanupConfig) {
	go tempFileCleanupLoop(ctx, sweeper, cfg)
}

func tempFileCleanupLoop(ctx context.Context, sweeper TempSweeper, cfg CleanupConfig) {
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cleanStaleTempFiles(sweeper, cfg.MaxAge)
		}
	}
}

func cleanStaleTempFiles(sweeper TempSweeper, maxAge time.Duration) int {
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	removed, err := sweeper.SweepTemp(maxAge)
	if err != nil {
		slog.Warn("temp file sweep failed", "removed", removed, "error", err)
		return removed
	}
	if removed > 0 {
		slog.Info("removed abandoned temp files", "count", removed)
	}
	return removed
}
