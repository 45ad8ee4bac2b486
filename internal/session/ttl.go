package session

import (
	"context"
	"log/slog"
	"time"
)

// ExpireCallback is called for every session removed by the sweeper.
type ExpireCallback func(key Key)

// RunSweeper removes sessions idle for longer than ttl every interval until ctx is done.
func RunSweeper(ctx context.Context, reg *Registry, ttl, interval time.Duration, onExpire ExpireCallback) error {
	if ttl <= 0 {
		slog.Info("session sweeper disabled", "ttl", ttl)
		<-ctx.Done()
		return nil
	}
	if interval <= 0 {
		interval = ttl / 4
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	slog.Info("session sweeper started", "interval", interval, "ttl", ttl)

	for {
		select {
		case <-ticker.C:
			sweepOnce(reg, ttl, onExpire)
		case <-ctx.Done():
			slog.Info("session sweeper shutting down", "reason", ctx.Err())
			return nil
		}
	}
}

func sweepOnce(reg *Registry, ttl time.Duration, onExpire ExpireCallback) {
	expired := reg.Sweep(ttl)
	if len(expired) == 0 {
		return
	}
	for _, key := range expired {
		slog.Info("session expired", "visitor_id", key.VisitorID, "session_id", key.SessionID)
		if onExpire != nil {
			onExpire(key)
		}
	}
	slog.Info("session sweep completed", "expired", len(expired), "remaining", reg.Len())
}
