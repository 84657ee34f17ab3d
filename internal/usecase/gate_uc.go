package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"career-advisor-platform/internal/domain/catalog"
	"career-advisor-platform/internal/domain/model"
	"career-advisor-platform/internal/domain/ports/repository"
	"career-advisor-platform/internal/infra/metrics"
)

// Compile-time check
var _ FeatureGateUseCase = (*gateUC)(nil)

type DenialReason string

const (
	ReasonNone               DenialReason = ""
	ReasonTierRequired       DenialReason = "tier_required"
	ReasonUsageLimitExceeded DenialReason = "usage_limit_exceeded"
)

// Decision is the outcome of a feature gate check. Denials carry what a client
// needs to render an upgrade prompt.
type Decision struct {
	Allowed       bool                     `json:"allowed"`
	Reason        DenialReason             `json:"reason,omitempty"`
	Feature       string                   `json:"feature"`
	Tier          model.TierID             `json:"tier"`
	Status        model.SubscriptionStatus `json:"status"`
	RequiredTiers []model.TierID           `json:"requiredTiers,omitempty"`
	Metric        string                   `json:"metric,omitempty"`
	Unlimited     bool                     `json:"unlimited,omitempty"`
	Limit         int64                    `json:"limit,omitempty"`
	Used          int64                    `json:"used,omitempty"`
	Remaining     int64                    `json:"remaining,omitempty"`
	ResetsAt      *time.Time               `json:"resetsAt,omitempty"`
}

type FeatureGateUseCase interface {
	CanAccess(ctx context.Context, userID, feature string) (Decision, error)
}

type gateUC struct {
	catalog *catalog.Catalog
	subs    repository.SubscriptionRepository
	usage   UsageUseCase
	now     func() time.Time
	log     *zerolog.Logger
}

func NewFeatureGateUseCase(
	cat *catalog.Catalog,
	subs repository.SubscriptionRepository,
	usage UsageUseCase,
	now func() time.Time,
	logger *zerolog.Logger,
) *gateUC {
	if now == nil {
		now = time.Now
	}
	return &gateUC{catalog: cat, subs: subs, usage: usage, now: now, log: logger}
}

// CanAccess reads the subscription on every call. Paid features require an
// active status; a payment_failed user is evaluated as free.
func (g *gateUC) CanAccess(ctx context.Context, userID, feature string) (Decision, error) {
	f, err := g.catalog.Feature(feature)
	if err != nil {
		return Decision{}, err
	}
	sub, err := loadSubscription(ctx, g.subs, nil, userID, g.now())
	if err != nil {
		return Decision{}, err
	}

	d := Decision{
		Feature: feature,
		Tier:    sub.Tier,
		Status:  sub.Status,
		Metric:  f.Metric,
	}
	tier := sub.EffectiveTier()
	if !f.AllowsTier(tier) {
		d.Reason = ReasonTierRequired
		d.RequiredTiers = g.catalog.TiersWithFeature(feature)
		metrics.IncGateDecision(feature, string(d.Reason))
		return d, nil
	}

	if f.Metric != "" {
		st, err := g.usage.CheckLimitForTier(ctx, userID, tier, f.Metric)
		if err != nil {
			return Decision{}, err
		}
		d.Unlimited = st.Unlimited
		d.Limit, d.Used, d.Remaining = st.Limit, st.Used, st.Remaining
		resets := st.ResetsAt
		d.ResetsAt = &resets
		if !st.Allowed {
			d.Reason = ReasonUsageLimitExceeded
			metrics.IncGateDecision(feature, string(d.Reason))
			return d, nil
		}
	}

	d.Allowed = true
	metrics.IncGateDecision(feature, "allowed")
	return d, nil
}
