// Package sweeper marks hosts offline when they stop reporting.
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Store is the subset of the host store the sweeper needs.
type Store interface {
	MarkStaleHostsOffline(ctx context.Context, cutoff time.Time) (int64, error)
	CountStaleOnlineHosts(ctx context.Context, cutoff time.Time) (int64, error)
}

type Sweeper struct {
	store        Store
	offlineAfter time.Duration
	dryRun       bool
	log          *slog.Logger

	now func() time.Time
}

func New(store Store, offlineAfter time.Duration, dryRun bool, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		store:        store,
		offlineAfter: offlineAfter,
		dryRun:       dryRun,
		log:          logger,
		now:          time.Now,
	}
}

// Run executes one sweep: any host still marked online whose last sample
// arrived before now-offlineAfter is flipped to offline.
func (s *Sweeper) Run(ctx context.Context) error {
	start := s.now()
	cutoff := start.UTC().Add(-s.offlineAfter)

	if s.dryRun {
		count, err := s.store.CountStaleOnlineHosts(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("stale host count failed: %w", err)
		}
		s.log.Info("dry run: would mark hosts offline",
			"count", count,
			"cutoff", cutoff.Format(time.RFC3339))
		return nil
	}

	marked, err := s.store.MarkStaleHostsOffline(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("offline sweep failed: %w", err)
	}

	if marked > 0 {
		s.log.Info("marked stale hosts offline",
			"count", marked,
			"cutoff", cutoff.Format(time.RFC3339),
			"duration", time.Since(start).String())
	}
	return nil
}
