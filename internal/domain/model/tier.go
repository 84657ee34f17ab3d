package model

import (
	"strings"

	"career-advisor-platform/internal/domain"
)

type TierID string

const (
	TierFree    TierID = "free"
	TierBasic   TierID = "basic"
	TierPremium TierID = "premium"
	TierElite   TierID = "elite"
)

// ParseTierID normalizes user input into a known tier id.
func ParseTierID(s string) (TierID, error) {
	switch t := TierID(strings.ToLower(strings.TrimSpace(s))); t {
	case TierFree, TierBasic, TierPremium, TierElite:
		return t, nil
	default:
		return "", domain.ErrInvalidArgument
	}
}

func (t TierID) IsPaid() bool { return t != "" && t != TierFree }

type BillingCycle string

const (
	CycleMonthly   BillingCycle = "monthly"
	CycleQuarterly BillingCycle = "quarterly"
)

func ParseBillingCycle(s string) (BillingCycle, error) {
	switch c := BillingCycle(strings.ToLower(strings.TrimSpace(s))); c {
	case CycleMonthly, CycleQuarterly:
		return c, nil
	default:
		return "", domain.ErrInvalidArgument
	}
}

// Period is the bucket a usage metric is counted in.
type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodMonthly Period = "monthly"
)

type UsageLimit struct {
	Limit  int64  `json:"limit" yaml:"limit"`
	Period Period `json:"period" yaml:"period"`
}

// Price holds amounts in minor currency units.
type Price struct {
	Monthly   int64 `json:"monthly" yaml:"monthly"`
	Quarterly int64 `json:"quarterly" yaml:"quarterly"`
}

// Tier is an immutable catalog entry.
type Tier struct {
	ID          TierID                `json:"id"`
	Name        string                `json:"name"`
	Rank        int                   `json:"rank"`
	Currency    string                `json:"currency"`
	Price       Price                 `json:"price"`
	Features    []string              `json:"features"`
	UsageLimits map[string]UsageLimit `json:"usageLimits"`
}

// Limit reports the tier's limit for metric; ok is false when the metric is unlimited.
func (t Tier) Limit(metric string) (UsageLimit, bool) {
	l, ok := t.UsageLimits[metric]
	return l, ok
}

// Feature maps a gated capability to the tiers allowed to use it and,
// optionally, the usage metric it consumes.
type Feature struct {
	Name          string   `json:"name"`
	RequiredTiers []TierID `json:"requiredTiers"`
	Metric        string   `json:"metric,omitempty"`
}

func (f Feature) AllowsTier(t TierID) bool {
	for _, rt := range f.RequiredTiers {
		if rt == t {
			return true
		}
	}
	return false
}
