// Package sweeper periodically purges expired records from the token
// registry.
package sweeper

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/saraha/internal/logging"
	"github.com/dmitrijs2005/saraha/internal/server/repositories/tokens"
)

type Sweeper struct {
	repo     tokens.Repository
	interval time.Duration
	logger   logging.Logger
	now      func() time.Time
}

func New(repo tokens.Repository, interval time.Duration, l logging.Logger) *Sweeper {
	return &Sweeper{
		repo:     repo,
		interval: interval,
		logger:   l.With("module", "sweeper"),
		now:      time.Now,
	}
}

// RunOnce deletes every record whose expiry has passed.
func (s *Sweeper) RunOnce(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("sweep: %w", err)
	}
	return n, nil
}

// Run sweeps once per interval until ctx is cancelled. Failed sweeps are
// logged and retried on the next tick.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info(ctx, "Starting token sweeper", "interval", s.interval.String())
	for {
		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "Stopping token sweeper...")
			return
		case <-ticker.C:
			n, err := s.RunOnce(ctx)
			if err != nil {
				s.logger.Error(ctx, "token sweep failed", "error", err)
				continue
			}
			s.logger.Info(ctx, "token sweep done", "deleted", n)
		}
	}
}
