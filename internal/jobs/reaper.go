package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// StaleRunStore fails runs that stopped making progress.
type StaleRunStore interface {
	FailStaleRuns(ctx context.Context, cutoff time.Time, reason string) (int64, error)
}

// PendingRecoverer queues stored PENDING runs that nothing is executing.
type PendingRecoverer interface {
	Recover(ctx context.Context, before time.Time) int
}

// Reaper marks runs left RUNNING by a crashed or restarted process as FAILED
// and hands runs stuck in PENDING back to the queue. A run is stale once it
// has not been updated for longer than maxAge.
type Reaper struct {
	store   StaleRunStore
	pending PendingRecoverer
	maxAge  time.Duration
	log     zerolog.Logger
	now     func() time.Time
}

// NewReaper creates a reaper. maxAge should exceed the audit timeout.
// pending may be nil.
func NewReaper(store StaleRunStore, pending PendingRecoverer, maxAge time.Duration, log zerolog.Logger) *Reaper {
	return &Reaper{
		store:   store,
		pending: pending,
		maxAge:  maxAge,
		log:     log.With().Str("component", "reaper").Logger(),
		now:     time.Now,
	}
}

// Start begins the reaping loop.
func (r *Reaper) Start(ctx context.Context) {
	r.reap(ctx)

	ticker := time.NewTicker(r.maxAge)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.reap(ctx)
		}
	}
}

func (r *Reaper) reap(ctx context.Context) int64 {
	cutoff := r.now().Add(-r.maxAge)
	if r.pending != nil {
		r.pending.Recover(ctx, cutoff)
	}

	n, err := r.store.FailStaleRuns(ctx, cutoff, "audit interrupted before completion")
	if err != nil {
		r.log.Error().Err(err).Msg("failed to reap stale audit runs")
		return 0
	}
	if n > 0 {
		r.log.Warn().Int64("runs", n).Msg("marked stale audit runs failed")
	}
	return n
}
