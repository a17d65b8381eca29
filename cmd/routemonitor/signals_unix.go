//go:build !windows

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/OCAP2/routemonitor/internal/pipeline"
)

// watchMotionToggle flips rendering updates on every SIGUSR1.
func watchMotionToggle(ctx context.Context, motion *pipeline.MotionControl, logger *slog.Logger) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGUSR1)
	defer signal.Stop(ch)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ch:
			logger.Info("Motion toggled", "enabled", motion.Toggle())
		}
	}
}
