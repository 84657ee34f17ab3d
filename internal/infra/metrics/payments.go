package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		checkoutRequestsTotal,
		providerLatency,
		webhookEventsTotal,
		webhookDuration,
		webhookTierFallbackTotal,
		webhookUnmatchedTotal,
	)
}

var (
	checkoutRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_requests_total",
			Help: "Checkout initiations by provider and result.",
		},
		[]string{"provider", "result"}, // result: ok|invalid_request|unavailable|rate_limited
	)

	providerLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_provider_latency_seconds",
			Help:    "Latency of payment provider API calls.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"provider", "op", "success"},
	)

	webhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Processed webhook events by provider, normalized kind and outcome.",
		},
		[]string{"provider", "kind", "outcome"},
	)

	webhookDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "webhook_duration_seconds",
			Help:    "Webhook handling latency.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	webhookTierFallbackTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_tier_fallback_total",
			Help: "Activations whose price id was not in the price table.",
		},
		[]string{"provider"},
	)

	webhookUnmatchedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_unmatched_total",
			Help: "Webhook events that could not be matched to a local user.",
		},
		[]string{"provider"},
	)
)

func IncCheckout(provider, result string) {
	checkoutRequestsTotal.WithLabelValues(norm(provider), norm(result)).Inc()
}

func ObserveProviderCall(provider, op string, started time.Time, err error) {
	success := "true"
	if err != nil {
		success = "false"
	}
	providerLatency.WithLabelValues(norm(provider), op, success).Observe(time.Since(started).Seconds())
}

func IncWebhookEvent(provider, kind, outcome string) {
	webhookEventsTotal.WithLabelValues(norm(provider), norm(kind), norm(outcome)).Inc()
}

func ObserveWebhook(provider string, started time.Time) {
	webhookDuration.WithLabelValues(norm(provider)).Observe(time.Since(started).Seconds())
}

func IncTierFallback(provider string) {
	webhookTierFallbackTotal.WithLabelValues(norm(provider)).Inc()
}

func IncWebhookUnmatched(provider string) {
	webhookUnmatchedTotal.WithLabelValues(norm(provider)).Inc()
}
