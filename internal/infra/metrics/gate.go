package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(gateDecisionsTotal, usageIncrementsTotal)
}

var (
	gateDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gate_decisions_total",
			Help: "Feature gate decisions by feature and result (allowed|tier_required|usage_limit_exceeded).",
		},
		[]string{"feature", "result"},
	)

	usageIncrementsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "usage_increments_total",
			Help: "Usage units recorded per metric.",
		},
		[]string{"metric"},
	)
)

func IncGateDecision(feature, result string) {
	gateDecisionsTotal.WithLabelValues(norm(feature), norm(result)).Inc()
}

func AddUsage(metric string, delta int64) {
	usageIncrementsTotal.WithLabelValues(norm(metric)).Add(float64(delta))
}
