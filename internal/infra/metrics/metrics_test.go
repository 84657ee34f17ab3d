//go:build !integration

package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"career-advisor-platform/internal/domain/model"
)

func TestHandler_ExposesServiceMetrics(t *testing.T) {
	MustRegister()
	MustRegister()

	IncGateDecision("ai_chat", "usage_limit_exceeded")
	SetSubscriptionsByTier(map[model.TierID]int{model.TierPremium: 2})
	SetBuildInfo("1.2.3", "abc")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	out := string(body)

	for _, want := range []string{
		`gate_decisions_total{feature="ai_chat",result="usage_limit_exceeded"} 1`,
		`subscriptions_by_tier{tier="premium"} 2`,
		`subscriptions_by_tier{tier="free"} 0`,
		`career_advisor_build_info{commit="abc",version="1.2.3"} 1`,
		`go_goroutines`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected metrics output to contain %q", want)
		}
	}
}
