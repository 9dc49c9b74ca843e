package app

import (
	"context"
	"log/slog"
	"time"
)

// StartHeartbeat logs a periodic liveness line with process uptime. The
// goroutine exits when ctx is canceled. A non-positive interval disables
// the heartbeat.
func StartHeartbeat(ctx context.Context, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		return
	}

	start := time.Now()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				logger.Info("heartbeat", "uptime", time.Since(start).Round(time.Second))
			}
		}
	}()
}
