package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"career-advisor-platform/internal/domain"
	"career-advisor-platform/internal/domain/model"
	"career-advisor-platform/internal/domain/ports/repository"
)

// Ensure subscriptionRepo implements repository.SubscriptionRepository
var _ repository.SubscriptionRepository = (*subscriptionRepo)(nil)

type subscriptionRepo struct {
	pool *pgxpool.Pool
}

func NewSubscriptionRepo(pool *pgxpool.Pool) *subscriptionRepo {
	return &subscriptionRepo{pool: pool}
}

const subscriptionColumns = `user_id, tier, status, payment_provider,
  COALESCE(provider_customer_id, ''), COALESCE(provider_subscription_id, ''),
  current_period_start, current_period_end, created_at, updated_at`

func (r *subscriptionRepo) Save(ctx context.Context, tx repository.Tx, s *model.UserSubscription) error {
	if err := s.Validate(); err != nil {
		return err
	}
	const q = `
INSERT INTO user_subscriptions (
  user_id, tier, status, payment_provider, provider_customer_id, provider_subscription_id,
  current_period_start, current_period_end, created_at, updated_at
) VALUES ($1,$2,$3,$4,NULLIF($5,''),NULLIF($6,''),$7,$8,$9,$10)
ON CONFLICT (user_id) DO UPDATE SET
  tier=EXCLUDED.tier, status=EXCLUDED.status, payment_provider=EXCLUDED.payment_provider,
  provider_customer_id=EXCLUDED.provider_customer_id, provider_subscription_id=EXCLUDED.provider_subscription_id,
  current_period_start=EXCLUDED.current_period_start, current_period_end=EXCLUDED.current_period_end,
  updated_at=EXCLUDED.updated_at;`

	createdAt := s.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := execSQL(ctx, r.pool, tx, q,
		s.UserID, string(s.Tier), string(s.Status), string(s.Provider),
		s.ProviderCustomerID, s.ProviderSubscriptionID,
		s.CurrentPeriodStart, s.CurrentPeriodEnd, createdAt, s.UpdatedAt)
	return mapExecErr(err)
}

func (r *subscriptionRepo) FindByUserID(ctx context.Context, tx repository.Tx, userID string) (*model.UserSubscription, error) {
	q := `SELECT ` + subscriptionColumns + ` FROM user_subscriptions WHERE user_id=$1` + forUpdate(tx) + `;`
	return r.queryOne(ctx, tx, q, userID)
}

// EnsureForUpdate serializes first writes for a user: a concurrent insert of
// the same user_id blocks until the other transaction settles, and the
// following read locks whichever row won.
func (r *subscriptionRepo) EnsureForUpdate(ctx context.Context, tx repository.Tx, userID string, at time.Time) (*model.UserSubscription, bool, error) {
	if userID == "" {
		return nil, false, domain.ErrInvalidArgument
	}
	const q = `
INSERT INTO user_subscriptions (user_id, tier, status, payment_provider, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $5)
ON CONFLICT (user_id) DO NOTHING;`
	tag, err := execSQL(ctx, r.pool, tx, q, userID,
		string(model.TierFree), string(model.SubscriptionStatusActive), string(model.ProviderNone), at)
	if err != nil {
		return nil, false, mapExecErr(err)
	}
	sub, err := r.FindByUserID(ctx, tx, userID)
	if err != nil {
		return nil, false, err
	}
	return sub, tag.RowsAffected() == 1, nil
}

func (r *subscriptionRepo) FindByProviderSubscriptionID(ctx context.Context, tx repository.Tx, provider model.PaymentProvider, subscriptionID string) (*model.UserSubscription, error) {
	if subscriptionID == "" {
		return nil, domain.ErrNotFound
	}
	q := `SELECT ` + subscriptionColumns + ` FROM user_subscriptions
 WHERE payment_provider=$1 AND provider_subscription_id=$2
 LIMIT 1` + forUpdate(tx) + `;`
	return r.queryOne(ctx, tx, q, string(provider), subscriptionID)
}

func (r *subscriptionRepo) FindByProviderCustomerID(ctx context.Context, tx repository.Tx, provider model.PaymentProvider, customerID string) (*model.UserSubscription, error) {
	if customerID == "" {
		return nil, domain.ErrNotFound
	}
	q := `SELECT ` + subscriptionColumns + ` FROM user_subscriptions
 WHERE payment_provider=$1 AND provider_customer_id=$2
 ORDER BY updated_at DESC
 LIMIT 1` + forUpdate(tx) + `;`
	return r.queryOne(ctx, tx, q, string(provider), customerID)
}

func (r *subscriptionRepo) CountByTier(ctx context.Context, tx repository.Tx) (map[model.TierID]int, error) {
	const q = `SELECT tier, COUNT(*) FROM user_subscriptions GROUP BY tier;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, mapExecErr(err)
	}
	defer rows.Close()

	out := map[model.TierID]int{}
	for rows.Next() {
		var tier string
		var n int
		if err := rows.Scan(&tier, &n); err != nil {
			return nil, mapScanErr(err)
		}
		out[model.TierID(tier)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, mapExecErr(err)
	}
	return out, nil
}

func (r *subscriptionRepo) queryOne(ctx context.Context, tx repository.Tx, q string, args ...interface{}) (*model.UserSubscription, error) {
	row, err := pickRow(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, err
	}
	var (
		s                    model.UserSubscription
		tier, status, provid string
	)
	if err := row.Scan(&s.UserID, &tier, &status, &provid,
		&s.ProviderCustomerID, &s.ProviderSubscriptionID,
		&s.CurrentPeriodStart, &s.CurrentPeriodEnd, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, mapScanErr(err)
	}
	s.Tier = model.TierID(tier)
	s.Status = model.SubscriptionStatus(status)
	s.Provider = model.PaymentProvider(provid)
	return &s, nil
}
