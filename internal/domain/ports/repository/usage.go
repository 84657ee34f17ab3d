package repository

import (
	"context"
	"time"
)

// UsageRepository stores per-period usage counters. Increment must be a single
// atomic upsert-increment in the backing store.
type UsageRepository interface {
	Increment(ctx context.Context, tx Tx, userID, metric, periodKey string, delta int64, periodEnd time.Time) (int64, error)
	// Get returns 0 when no counter exists for the bucket.
	Get(ctx context.Context, tx Tx, userID, metric, periodKey string) (int64, error)
}
