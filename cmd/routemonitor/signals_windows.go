package main

import (
	"context"
	"log/slog"

	"github.com/OCAP2/routemonitor/internal/pipeline"
)

// Windows has no user signals; motion stays as configured.
func watchMotionToggle(ctx context.Context, motion *pipeline.MotionControl, logger *slog.Logger) {
	logger.Debug("Motion toggle is unavailable on this platform", "enabled", motion.Enabled())
	<-ctx.Done()
}
