package chat

import (
	"context"
	"log/slog"
	"time"
)

// StartSweeper runs a background goroutine that periodically evicts idle
// sessions from the registry. The returned channel is closed once it stops.
func StartSweeper(ctx context.Context, r *Registry, interval, ttl time.Duration) <-chan struct{} {
	done := make(chan struct{})
	ticker := time.NewTicker(interval)
	go func() {
		defer close(done)
		defer ticker.Stop()
		slog.Info("Session sweeper started", "interval", interval, "ttl", ttl)

		for {
			select {
			case <-ticker.C:
				if n := r.Sweep(ttl); n > 0 {
					slog.Info("Session sweeper evicted idle sessions", "count", n, "remaining", r.Len())
				}
			case <-ctx.Done():
				slog.Info("Session sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
	return done
}
