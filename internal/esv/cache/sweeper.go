package cache

import (
	"context"
	"log/slog"
	"time"
)

// Run drives two periodic tasks at interval until ctx is cancelled: expire
// entries whose age exceeds the cache's ttl, and flush the write-back
// queue. Mirrors the storage package's ticker-loop sweeper.
func (c *Cache) Run(ctx context.Context, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.expireOnce(logger)
			c.flushWriteback(ctx, logger)
		}
	}
}

func (c *Cache) expireOnce(logger *slog.Logger) {
	if c.ttl <= 0 {
		return
	}
	removed := c.InvalidateOlderThan(c.ttl)
	if removed > 0 {
		logger.Debug("cache expiry swept entries", "count", removed)
	}
}

// flushWriteback persists every pending write-back entry. Entries that
// fail to persist stay pending for the next tick and bump
// writeback_failures_total.
func (c *Cache) flushWriteback(ctx context.Context, logger *slog.Logger) {
	c.pendingMu.Lock()
	if len(c.pending) == 0 {
		c.pendingMu.Unlock()
		return
	}
	batch := c.pending
	c.pending = make(map[string]string)
	c.pendingMu.Unlock()

	for key, value := range batch {
		if err := c.persist(ctx, key, value); err != nil {
			c.writebackFailed.Add(1)
			c.metrics.RecordOperation(ctx, "cache", "writeback", "error")
			logger.Error("cache write-back failed, re-queuing", "key", key, "error", err)
			c.queueWriteback(key, value)
			continue
		}
		c.metrics.RecordOperation(ctx, "cache", "writeback", "success")
	}
}
