package metrics

import (
	"career-advisor-platform/internal/domain/model"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		subscriptionsByTier,
		subscriptionTransitionsTotal,
	)
}

var (
	subscriptionsByTier = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "subscriptions_by_tier",
			Help: "Current number of stored subscriptions per tier.",
		},
		[]string{"tier"},
	)

	subscriptionTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscription_transitions_total",
			Help: "Subscription state changes by source (webhook/admin) and resulting status.",
		},
		[]string{"source", "status"},
	)
)

func SetSubscriptionsByTier(counts map[model.TierID]int) {
	for _, tier := range []model.TierID{model.TierFree, model.TierBasic, model.TierPremium, model.TierElite} {
		subscriptionsByTier.WithLabelValues(string(tier)).Set(float64(counts[tier]))
	}
}

func IncSubscriptionTransition(source string, status model.SubscriptionStatus) {
	subscriptionTransitionsTotal.WithLabelValues(norm(source), string(status)).Inc()
}
