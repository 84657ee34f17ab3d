package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"career-advisor-platform/internal/domain/model"
	"career-advisor-platform/internal/domain/ports/repository"
	"career-advisor-platform/internal/infra/metrics"
)

// TierCounter is the slice of the subscription repository the worker reads.
type TierCounter interface {
	CountByTier(ctx context.Context, tx repository.Tx) (map[model.TierID]int, error)
}

// PoolStats reports total, idle and in-use database connections.
type PoolStats func() (total, idle, inUse int32)

// StatsWorker periodically refreshes the subscription and pool gauges.
type StatsWorker struct {
	interval time.Duration
	subs     TierCounter
	pool     PoolStats
	log      *zerolog.Logger
}

func NewStatsWorker(interval time.Duration, subs TierCounter, pool PoolStats, logger *zerolog.Logger) *StatsWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	l := logger.With().Str("component", "StatsWorker").Logger()
	return &StatsWorker{
		interval: interval,
		subs:     subs,
		pool:     pool,
		log:      &l,
	}
}

// Run refreshes once immediately, then on every tick until ctx is done.
func (w *StatsWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting stats worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping stats worker")
			return ctx.Err()
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *StatsWorker) tick(ctx context.Context) {
	if w.pool != nil {
		metrics.SetDBPoolStats(w.pool())
	}

	cctx, cancel := context.WithTimeout(ctx, w.interval)
	defer cancel()
	counts, err := w.subs.CountByTier(cctx, repository.NoTX)
	if err != nil {
		if ctx.Err() == nil {
			w.log.Error().Err(err).Msg("count subscriptions by tier")
		}
		return
	}
	metrics.SetSubscriptionsByTier(counts)
}
