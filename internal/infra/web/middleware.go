package web

import (
	"context"
	"net/http"
	"time"

	"career-advisor-platform/internal/infra/logging"
	"career-advisor-platform/internal/usecase"
)

// requireUser resolves the bearer token into a principal or answers 401.
func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := s.Auth.ParseFromRequest(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, CodeAuthRequired, "authentication required")
			return
		}
		ctx := withPrincipal(r.Context(), p)
		ctx = logging.WithUserID(ctx, p.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type decisionKey struct{}

func decisionFrom(ctx context.Context) (usecase.Decision, bool) {
	d, ok := ctx.Value(decisionKey{}).(usecase.Decision)
	return d, ok
}

type tierRequiredBody struct {
	errorBody
	Feature       string   `json:"feature"`
	Tier          string   `json:"tier"`
	Status        string   `json:"status"`
	RequiredTiers []string `json:"requiredTiers"`
	UpgradeURL    string   `json:"upgradeUrl"`
}

type usageExceededBody struct {
	errorBody
	Feature    string `json:"feature"`
	Metric     string `json:"metric"`
	Limit      int64  `json:"limit"`
	Used       int64  `json:"used"`
	ResetsAt   string `json:"resetsAt,omitempty"`
	UpgradeURL string `json:"upgradeUrl"`
}

// requireFeature runs the feature gate before the handler. Allowed requests
// carry the decision in context so the handler can record usage.
func (s *Server) requireFeature(feature string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := PrincipalFrom(r.Context())
			if p == nil {
				writeError(w, http.StatusUnauthorized, CodeAuthRequired, "authentication required")
				return
			}
			d, err := s.Gate.CanAccess(r.Context(), p.UserID, feature)
			if err != nil {
				fail(w, logging.With(r.Context(), s.log), err)
				return
			}

			switch d.Reason {
			case usecase.ReasonTierRequired:
				body := tierRequiredBody{
					errorBody:  errorBody{Code: CodeTierRequired, Message: "your plan does not include " + feature},
					Feature:    feature,
					Tier:       string(d.Tier),
					Status:     string(d.Status),
					UpgradeURL: s.upgradeURL,
				}
				for _, t := range d.RequiredTiers {
					body.RequiredTiers = append(body.RequiredTiers, string(t))
				}
				writeJSON(w, http.StatusForbidden, body)
				return
			case usecase.ReasonUsageLimitExceeded:
				body := usageExceededBody{
					errorBody:  errorBody{Code: CodeUsageLimitExceeded, Message: "usage limit reached for " + d.Metric},
					Feature:    feature,
					Metric:     d.Metric,
					Limit:      d.Limit,
					Used:       d.Used,
					UpgradeURL: s.upgradeURL,
				}
				if d.ResetsAt != nil {
					body.ResetsAt = d.ResetsAt.UTC().Format(time.RFC3339)
				}
				writeJSON(w, http.StatusTooManyRequests, body)
				return
			}

			ctx := context.WithValue(r.Context(), decisionKey{}, d)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
