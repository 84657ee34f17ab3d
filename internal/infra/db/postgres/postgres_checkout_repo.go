package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"career-advisor-platform/internal/domain"
	"career-advisor-platform/internal/domain/model"
	"career-advisor-platform/internal/domain/ports/repository"
)

var _ repository.CheckoutSessionRepository = (*checkoutRepo)(nil)

type checkoutRepo struct{ pool *pgxpool.Pool }

func NewCheckoutRepo(pool *pgxpool.Pool) *checkoutRepo {
	return &checkoutRepo{pool: pool}
}

const checkoutColumns = `id, user_id, email, provider, tier, billing_cycle,
  COALESCE(provider_customer_id, ''), COALESCE(provider_session_id, ''), COALESCE(provider_subscription_id, ''),
  redirect_url, created_at`

func (r *checkoutRepo) Save(ctx context.Context, tx repository.Tx, cs *model.CheckoutSession) error {
	const q = `
INSERT INTO checkout_sessions (
  id, user_id, email, provider, tier, billing_cycle, provider_customer_id, provider_session_id,
  provider_subscription_id, redirect_url, created_at
) VALUES ($1,$2,$3,$4,$5,$6,NULLIF($7,''),NULLIF($8,''),NULLIF($9,''),$10,$11)
ON CONFLICT (id) DO UPDATE SET
  provider_customer_id=EXCLUDED.provider_customer_id, provider_session_id=EXCLUDED.provider_session_id,
  provider_subscription_id=EXCLUDED.provider_subscription_id, redirect_url=EXCLUDED.redirect_url;`
	_, err := execSQL(ctx, r.pool, tx, q,
		cs.ID, cs.UserID, cs.Email, string(cs.Provider), string(cs.Tier), string(cs.BillingCycle),
		cs.ProviderCustomerID, cs.ProviderSessionID, cs.ProviderSubscriptionID, cs.RedirectURL, cs.CreatedAt)
	return mapExecErr(err)
}

func (r *checkoutRepo) FindLatestByProviderRef(ctx context.Context, tx repository.Tx, provider model.PaymentProvider, subscriptionID, customerID string) (*model.CheckoutSession, error) {
	if subscriptionID == "" && customerID == "" {
		return nil, domain.ErrNotFound
	}
	q := `SELECT ` + checkoutColumns + ` FROM checkout_sessions
 WHERE provider=$1
   AND (($2 <> '' AND provider_subscription_id=$2) OR ($3 <> '' AND provider_customer_id=$3))
 ORDER BY COALESCE(provider_subscription_id=$2, false) DESC, created_at DESC
 LIMIT 1;`
	return r.queryOne(ctx, tx, q, string(provider), subscriptionID, customerID)
}

func (r *checkoutRepo) FindLatestByUser(ctx context.Context, tx repository.Tx, userID string) (*model.CheckoutSession, error) {
	q := `SELECT ` + checkoutColumns + ` FROM checkout_sessions WHERE user_id=$1 ORDER BY created_at DESC LIMIT 1;`
	return r.queryOne(ctx, tx, q, userID)
}

func (r *checkoutRepo) queryOne(ctx context.Context, tx repository.Tx, q string, args ...interface{}) (*model.CheckoutSession, error) {
	row, err := pickRow(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, err
	}
	var (
		cs                           model.CheckoutSession
		provider, tier, billingCycle string
	)
	if err := row.Scan(&cs.ID, &cs.UserID, &cs.Email, &provider, &tier, &billingCycle,
		&cs.ProviderCustomerID, &cs.ProviderSessionID, &cs.ProviderSubscriptionID,
		&cs.RedirectURL, &cs.CreatedAt); err != nil {
		return nil, mapScanErr(err)
	}
	cs.Provider = model.PaymentProvider(provider)
	cs.Tier = model.TierID(tier)
	cs.BillingCycle = model.BillingCycle(billingCycle)
	return &cs, nil
}
