package storage

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper periodically deletes expired entries and stale transactions on a
// ticking goroutine rather than a one-shot CLI invocation.
type Sweeper struct {
	store    *Store
	interval time.Duration
	staleTx  time.Duration
	logger   *slog.Logger
}

// NewSweeper builds a Sweeper that runs every interval, treating
// transactions older than staleTx as abandoned.
func NewSweeper(store *Store, interval, staleTx time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{store: store, interval: interval, staleTx: staleTx, logger: logger}
}

// Run blocks, sweeping on every tick until ctx is canceled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *Sweeper) sweepOnce(ctx context.Context) {
	res := s.store.conn(ctx).Where("expires_at IS NOT NULL AND expires_at <= ?", time.Now().UTC()).Delete(&Entry{})
	if res.Error != nil {
		s.logger.Error("expired entry sweep failed", slog.Any("error", res.Error))
	} else if res.RowsAffected > 0 {
		s.logger.Info("swept expired entries", slog.Int64("count", res.RowsAffected))
	}

	if stale := s.store.txm.SweepStale(s.staleTx); stale > 0 {
		s.logger.Info("swept stale transactions", slog.Int("count", stale))
	}
}
