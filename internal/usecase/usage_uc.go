package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"career-advisor-platform/internal/domain"
	"career-advisor-platform/internal/domain/catalog"
	"career-advisor-platform/internal/domain/model"
	"career-advisor-platform/internal/domain/ports/repository"
	"career-advisor-platform/internal/infra/logging"
	"career-advisor-platform/internal/infra/metrics"
)

// Compile-time check
var _ UsageUseCase = (*usageUC)(nil)

// LimitStatus is a user's standing against one metric in the current period.
type LimitStatus struct {
	Metric    string    `json:"metric"`
	Allowed   bool      `json:"allowed"`
	Unlimited bool      `json:"unlimited"`
	Limit     int64     `json:"limit"`
	Used      int64     `json:"used"`
	Remaining int64     `json:"remaining"`
	PeriodKey string    `json:"periodKey"`
	ResetsAt  time.Time `json:"resetsAt"`
}

type UsageUseCase interface {
	CheckLimit(ctx context.Context, userID, metric string) (LimitStatus, error)
	// CheckLimitForTier skips the subscription read for callers that already hold it.
	CheckLimitForTier(ctx context.Context, userID string, tier model.TierID, metric string) (LimitStatus, error)
	RecordUsage(ctx context.Context, userID, metric string, delta int64) (int64, error)
	Summary(ctx context.Context, userID string) ([]LimitStatus, error)
}

type usageUC struct {
	catalog *catalog.Catalog
	subs    repository.SubscriptionRepository
	usage   repository.UsageRepository
	now     func() time.Time
	log     *zerolog.Logger
}

func NewUsageUseCase(
	cat *catalog.Catalog,
	subs repository.SubscriptionRepository,
	usage repository.UsageRepository,
	now func() time.Time,
	logger *zerolog.Logger,
) *usageUC {
	if now == nil {
		now = time.Now
	}
	return &usageUC{catalog: cat, subs: subs, usage: usage, now: now, log: logger}
}

func (u *usageUC) CheckLimit(ctx context.Context, userID, metric string) (LimitStatus, error) {
	sub, err := loadSubscription(ctx, u.subs, nil, userID, u.now())
	if err != nil {
		return LimitStatus{}, err
	}
	return u.CheckLimitForTier(ctx, userID, sub.EffectiveTier(), metric)
}

func (u *usageUC) CheckLimitForTier(ctx context.Context, userID string, tier model.TierID, metric string) (LimitStatus, error) {
	period, ok := u.catalog.PeriodOf(metric)
	if !ok {
		return LimitStatus{}, fmt.Errorf("metric %q: %w", metric, domain.ErrNotFound)
	}
	now := u.now()
	st := LimitStatus{
		Metric:    metric,
		PeriodKey: model.PeriodKey(period, now),
		ResetsAt:  model.PeriodEnd(period, now),
	}

	used, err := u.usage.Get(ctx, nil, userID, metric, st.PeriodKey)
	if err != nil {
		return LimitStatus{}, err
	}
	st.Used = used

	if !u.catalog.Consumes(tier, metric) {
		// no feature of the tier draws on it: zero allowance, not unlimited
		return st, nil
	}
	lim, limited := u.catalog.LimitFor(tier, metric)
	if !limited {
		st.Unlimited = true
		st.Allowed = true
		return st, nil
	}
	st.Limit = lim.Limit
	st.Allowed = used < lim.Limit
	if rem := lim.Limit - used; rem > 0 {
		st.Remaining = rem
	}
	return st, nil
}

// RecordUsage counts delta units in the current period. Units are not refunded
// when the gated action later fails.
func (u *usageUC) RecordUsage(ctx context.Context, userID, metric string, delta int64) (int64, error) {
	if delta < 1 {
		return 0, fmt.Errorf("delta %d: %w", delta, domain.ErrInvalidArgument)
	}
	period, ok := u.catalog.PeriodOf(metric)
	if !ok {
		return 0, fmt.Errorf("metric %q: %w", metric, domain.ErrNotFound)
	}
	now := u.now()
	n, err := u.usage.Increment(ctx, nil, userID, metric, model.PeriodKey(period, now), delta, model.PeriodEnd(period, now))
	if err != nil {
		logging.With(ctx, u.log).Error().Err(err).Str("metric", metric).Msg("record usage failed")
		return 0, err
	}
	metrics.AddUsage(metric, delta)
	return n, nil
}

func (u *usageUC) Summary(ctx context.Context, userID string) ([]LimitStatus, error) {
	sub, err := loadSubscription(ctx, u.subs, nil, userID, u.now())
	if err != nil {
		return nil, err
	}
	tier := sub.EffectiveTier()
	names := u.catalog.MetricsFor(tier)
	out := make([]LimitStatus, 0, len(names))
	for _, m := range names {
		st, err := u.CheckLimitForTier(ctx, userID, tier, m)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

// loadSubscription returns the stored subscription, or the free default for
// users that never had one.
func loadSubscription(ctx context.Context, subs repository.SubscriptionRepository, tx repository.Tx, userID string, now time.Time) (*model.UserSubscription, error) {
	if userID == "" {
		return nil, domain.ErrUnauthenticated
	}
	sub, err := subs.FindByUserID(ctx, tx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return model.DefaultSubscription(userID, now), nil
	}
	if err != nil {
		return nil, err
	}
	return sub, nil
}
