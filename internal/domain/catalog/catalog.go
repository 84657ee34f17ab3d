// Package catalog holds the static tier and feature tables every gate and
// billing decision is made against.
package catalog

import (
	"fmt"
	"sort"

	"career-advisor-platform/internal/domain"
	"career-advisor-platform/internal/domain/model"
)

// Feature and metric names used by the HTTP surface.
const (
	FeatureCareerQuiz      = "career_quiz"
	FeatureCollegeSearch   = "college_search"
	FeatureAIChat          = "ai_chat"
	FeatureResumeAnalysis  = "resume_analysis"
	FeatureRoadmap         = "roadmap_generation"
	FeatureMockInterview   = "mock_interview"
	FeatureAdvancedRoadmap = "advanced_roadmap"
	FeatureMentorSessions  = "mentor_sessions"
	FeaturePrioritySupport = "priority_support"

	MetricChatMessages   = "chat_messages"
	MetricQuizAttempts   = "quiz_attempts"
	MetricRoadmaps       = "roadmap_creation"
	MetricResumeAnalysis = "resume_analysis"
)

// Catalog is immutable after construction.
type Catalog struct {
	tiers    map[model.TierID]model.Tier
	order    []model.TierID
	features map[string]model.Feature
	periods  map[string]model.Period
}

// New builds a catalog from tier definitions; feature required-tier sets are
// derived from each tier's feature list. Metrics are attached via metrics.
func New(tiers []model.Tier, metrics map[string]string) (*Catalog, error) {
	c := &Catalog{
		tiers:    make(map[model.TierID]model.Tier, len(tiers)),
		features: map[string]model.Feature{},
		periods:  map[string]model.Period{},
	}
	sorted := append([]model.Tier(nil), tiers...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Rank < sorted[j].Rank })

	for _, t := range sorted {
		if _, err := model.ParseTierID(string(t.ID)); err != nil {
			return nil, fmt.Errorf("catalog: tier %q: %w", t.ID, err)
		}
		if _, dup := c.tiers[t.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate tier %q: %w", t.ID, domain.ErrInvalidArgument)
		}
		c.tiers[t.ID] = t
		c.order = append(c.order, t.ID)

		for _, f := range t.Features {
			feat := c.features[f]
			feat.Name = f
			feat.RequiredTiers = append(feat.RequiredTiers, t.ID)
			c.features[f] = feat
		}
		for metric, lim := range t.UsageLimits {
			if lim.Period != model.PeriodDaily && lim.Period != model.PeriodMonthly {
				return nil, fmt.Errorf("catalog: tier %q metric %q: bad period %q: %w", t.ID, metric, lim.Period, domain.ErrInvalidArgument)
			}
			if prev, ok := c.periods[metric]; ok && prev != lim.Period {
				return nil, fmt.Errorf("catalog: metric %q has conflicting periods %q and %q: %w", metric, prev, lim.Period, domain.ErrInvalidArgument)
			}
			c.periods[metric] = lim.Period
		}
	}
	if _, ok := c.tiers[model.TierFree]; !ok {
		return nil, fmt.Errorf("catalog: free tier is required: %w", domain.ErrInvalidArgument)
	}

	for name, metric := range metrics {
		feat, ok := c.features[name]
		if !ok {
			return nil, fmt.Errorf("catalog: metric %q attached to unknown feature %q: %w", metric, name, domain.ErrInvalidArgument)
		}
		if _, ok := c.periods[metric]; !ok {
			return nil, fmt.Errorf("catalog: feature %q references metric %q with no limits: %w", name, metric, domain.ErrInvalidArgument)
		}
		feat.Metric = metric
		c.features[name] = feat
	}
	return c, nil
}

// GetTier is a pure lookup.
func (c *Catalog) GetTier(id model.TierID) (model.Tier, error) {
	t, ok := c.tiers[id]
	if !ok {
		return model.Tier{}, domain.ErrNotFound
	}
	return t, nil
}

// Tiers returns tiers ordered by rank.
func (c *Catalog) Tiers() []model.Tier {
	out := make([]model.Tier, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.tiers[id])
	}
	return out
}

func (c *Catalog) Feature(name string) (model.Feature, error) {
	f, ok := c.features[name]
	if !ok {
		return model.Feature{}, domain.ErrNotFound
	}
	return f, nil
}

// TiersWithFeature lists the tiers granting name, lowest rank first.
func (c *Catalog) TiersWithFeature(name string) []model.TierID {
	f, ok := c.features[name]
	if !ok {
		return nil
	}
	return append([]model.TierID(nil), f.RequiredTiers...)
}

// Metrics lists every limited metric, sorted.
func (c *Catalog) Metrics() []string {
	out := make([]string, 0, len(c.periods))
	for m := range c.periods {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// Consumes reports whether tier holds a feature that draws on metric. Metrics
// no feature draws on are open to every tier.
func (c *Catalog) Consumes(tier model.TierID, metric string) bool {
	drawn := false
	for _, f := range c.features {
		if f.Metric != metric {
			continue
		}
		if f.AllowsTier(tier) {
			return true
		}
		drawn = true
	}
	return !drawn
}

// MetricsFor lists the limited metrics tier can consume, sorted.
func (c *Catalog) MetricsFor(tier model.TierID) []string {
	var out []string
	for _, m := range c.Metrics() {
		if c.Consumes(tier, m) {
			out = append(out, m)
		}
	}
	return out
}

// PeriodOf returns the bucket period of a metric.
func (c *Catalog) PeriodOf(metric string) (model.Period, bool) {
	p, ok := c.periods[metric]
	return p, ok
}

// LimitFor reports tier's limit for metric; ok=false means unlimited.
func (c *Catalog) LimitFor(tier model.TierID, metric string) (model.UsageLimit, bool) {
	t, ok := c.tiers[tier]
	if !ok {
		return model.UsageLimit{}, false
	}
	return t.Limit(metric)
}

// LowestPaidTier is the tier webhook reconciliation falls back to.
func (c *Catalog) LowestPaidTier() model.TierID {
	for _, id := range c.order {
		if id.IsPaid() {
			return id
		}
	}
	return model.TierBasic
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := New(DefaultTiers(), DefaultFeatureMetrics())
	if err != nil {
		panic(err)
	}
	return c
}

func DefaultFeatureMetrics() map[string]string {
	return map[string]string{
		FeatureAIChat:         MetricChatMessages,
		FeatureCareerQuiz:     MetricQuizAttempts,
		FeatureRoadmap:        MetricRoadmaps,
		FeatureResumeAnalysis: MetricResumeAnalysis,
	}
}

func DefaultTiers() []model.Tier {
	free := []string{FeatureCareerQuiz, FeatureCollegeSearch, FeatureAIChat}
	basic := appendFeatures(free, FeatureResumeAnalysis, FeatureRoadmap)
	premium := appendFeatures(basic, FeatureMockInterview, FeatureAdvancedRoadmap)
	elite := appendFeatures(premium, FeatureMentorSessions, FeaturePrioritySupport)

	daily := func(n int64) model.UsageLimit { return model.UsageLimit{Limit: n, Period: model.PeriodDaily} }
	monthly := func(n int64) model.UsageLimit { return model.UsageLimit{Limit: n, Period: model.PeriodMonthly} }

	return []model.Tier{
		{
			ID: model.TierFree, Name: "Free", Rank: 0, Currency: "INR",
			Features: free,
			UsageLimits: map[string]model.UsageLimit{
				MetricChatMessages: daily(3),
				MetricQuizAttempts: daily(2),
			},
		},
		{
			ID: model.TierBasic, Name: "Basic", Rank: 1, Currency: "INR",
			Price:    model.Price{Monthly: 19900, Quarterly: 53700},
			Features: basic,
			UsageLimits: map[string]model.UsageLimit{
				MetricChatMessages:   daily(10),
				MetricRoadmaps:       monthly(2),
				MetricResumeAnalysis: monthly(3),
			},
		},
		{
			ID: model.TierPremium, Name: "Premium", Rank: 2, Currency: "INR",
			Price:    model.Price{Monthly: 49900, Quarterly: 134700},
			Features: premium,
			UsageLimits: map[string]model.UsageLimit{
				MetricChatMessages:   daily(50),
				MetricRoadmaps:       monthly(10),
				MetricResumeAnalysis: monthly(20),
			},
		},
		{
			ID: model.TierElite, Name: "Elite", Rank: 3, Currency: "INR",
			Price:       model.Price{Monthly: 99900, Quarterly: 269700},
			Features:    elite,
			UsageLimits: map[string]model.UsageLimit{},
		},
	}
}

func appendFeatures(base []string, extra ...string) []string {
	out := make([]string, 0, len(base)+len(extra))
	out = append(out, base...)
	return append(out, extra...)
}
