// Package retention removes old files from the upload directory.
package retention

import (
	"context"
	"time"

	"go.uber.org/zap"

	"invoice-scan/pkg/metrics"
)

// Store is the part of storage.Store the sweeper needs.
type Store interface {
	Expired(ctx context.Context, cutoff time.Time) ([]string, error)
	Remove(ctx context.Context, name string) error
}

// Sweeper deletes files older than ttl every interval.
type Sweeper struct {
	store    Store
	ttl      time.Duration
	interval time.Duration
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

func NewSweeper(store Store, ttl, interval time.Duration, m *metrics.Metrics, logger *zap.Logger) *Sweeper {
	if m == nil {
		m = metrics.Nop()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Sweeper{
		store:    store,
		ttl:      ttl,
		interval: interval,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// Enabled is false when ttl is zero, which keeps files forever.
func (s *Sweeper) Enabled() bool { return s.ttl > 0 }

// Run sweeps once immediately and then on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	if !s.Enabled() {
		s.logger.Info("retention disabled")
		return
	}
	s.logger.Info("retention sweeper started", zap.Duration("ttl", s.ttl), zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		s.Sweep(ctx)
		select {
		case <-ctx.Done():
			s.logger.Info("retention sweeper stopped")
			return
		case <-ticker.C:
		}
	}
}

// Sweep removes every expired file and returns how many were removed.
func (s *Sweeper) Sweep(ctx context.Context) int {
	cutoff := s.now().Add(-s.ttl)
	names, err := s.store.Expired(ctx, cutoff)
	if err != nil {
		s.logger.Error("retention: list expired", zap.Error(err))
		return 0
	}

	removed := 0
	for _, name := range names {
		if err := s.store.Remove(ctx, name); err != nil {
			s.logger.Warn("retention: remove", zap.String("name", name), zap.Error(err))
			continue
		}
		removed++
	}
	if removed > 0 {
		s.metrics.RetentionRemoved.Add(float64(removed))
		s.logger.Info("retention: swept", zap.Int("removed", removed), zap.Time("cutoff", cutoff))
	}
	return removed
}
