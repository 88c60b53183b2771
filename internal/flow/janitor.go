package flow

import (
	"context"
	"log/slog"
	"time"
)

// Janitor timing.
const (
	// JanitorInterval is how often stale conversations are swept.
	JanitorInterval = 5 * time.Minute
	// IdleTimeout is the inactivity after which a mid-flow conversation is
	// reset back to idle. Completed conversations are never touched.
	IdleTimeout = 30 * time.Minute
)

// StartJanitor launches the idle-timeout sweep in the background. It runs
// for the process lifetime and stops when ctx is cancelled.
func (e *Engine) StartJanitor(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(JanitorInterval)
		defer ticker.Stop()
		slog.Debug("Engine janitor started", "interval", JanitorInterval, "idle_timeout", IdleTimeout)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				swept, err := e.store.SweepIdle(IdleTimeout)
				if err != nil {
					slog.Error("Engine janitor sweep failed", "error", err)
					continue
				}
				if swept > 0 {
					slog.Info("Engine janitor reset idle conversations", "count", swept)
				}
			}
		}
	}()
}
