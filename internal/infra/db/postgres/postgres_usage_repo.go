package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"career-advisor-platform/internal/domain"
	"career-advisor-platform/internal/domain/ports/repository"
)

var _ repository.UsageRepository = (*usageRepo)(nil)

type usageRepo struct{ pool *pgxpool.Pool }

func NewUsageRepo(pool *pgxpool.Pool) *usageRepo {
	return &usageRepo{pool: pool}
}

// Increment is a single upsert; concurrent callers never lose an update.
// periodEnd is unused here, rows outlive their bucket.
func (r *usageRepo) Increment(ctx context.Context, tx repository.Tx, userID, metric, periodKey string, delta int64, _ time.Time) (int64, error) {
	if delta < 1 {
		return 0, domain.ErrInvalidArgument
	}
	const q = `
INSERT INTO usage_records (user_id, metric, period_key, count, updated_at)
VALUES ($1, $2, $3, $4, NOW())
ON CONFLICT (user_id, metric, period_key) DO UPDATE SET
  count = usage_records.count + EXCLUDED.count,
  updated_at = NOW()
RETURNING count;`
	row, err := pickRow(ctx, r.pool, tx, q, userID, metric, periodKey, delta)
	if err != nil {
		return 0, err
	}
	var count int64
	if err := row.Scan(&count); err != nil {
		return 0, mapExecErr(err)
	}
	return count, nil
}

func (r *usageRepo) Get(ctx context.Context, tx repository.Tx, userID, metric, periodKey string) (int64, error) {
	const q = `SELECT count FROM usage_records WHERE user_id=$1 AND metric=$2 AND period_key=$3;`
	row, err := pickRow(ctx, r.pool, tx, q, userID, metric, periodKey)
	if err != nil {
		return 0, err
	}
	var count int64
	if err := mapScanErr(row.Scan(&count)); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return count, nil
}
