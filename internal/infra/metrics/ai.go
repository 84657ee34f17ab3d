package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(llmCalls, llmTokens, llmLatency, advisorDegraded)
}

var (
	llmCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ai_calls_total",
		Help: "Advisor LLM calls by provider, model and result (ok|error).",
	}, []string{"provider", "model", "result"})

	llmTokens = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ai_tokens_total",
		Help: "Tokens consumed by advisor LLM calls.",
	}, []string{"provider", "model"})

	llmLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ai_call_duration_seconds",
		Help:    "Advisor LLM call latency.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 15, 30},
	}, []string{"provider", "model"})

	advisorDegraded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ai_degraded_total",
		Help: "Advisor responses served from fallback data, by operation and reason.",
	}, []string{"op", "reason"})
)

// ObserveLLMCall records one completion attempt. Tokens are only counted on success.
func ObserveLLMCall(provider, model string, tokens int, took time.Duration, err error) {
	p, m := norm(provider), norm(model)
	llmLatency.WithLabelValues(p, m).Observe(took.Seconds())
	if err != nil {
		llmCalls.WithLabelValues(p, m, "error").Inc()
		return
	}
	llmCalls.WithLabelValues(p, m, "ok").Inc()
	llmTokens.WithLabelValues(p, m).Add(float64(tokens))
}

func IncDegraded(op, reason string) {
	advisorDegraded.WithLabelValues(norm(op), norm(reason)).Inc()
}
