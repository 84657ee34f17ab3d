package web

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"career-advisor-platform/internal/domain"
	"career-advisor-platform/internal/domain/model"
	"career-advisor-platform/internal/infra/logging"
	"career-advisor-platform/internal/usecase"
)

type chatRequest struct {
	Message string `json:"message" validate:"required,max=8000"`
}

type roadmapRequest struct {
	Goal string `json:"goal" validate:"required,max=500"`
}

// resultBody exposes degraded results explicitly instead of mixing fallback
// text into real data.
type resultBody[T any] struct {
	Data     T      `json:"data"`
	Degraded string `json:"degraded,omitempty"`
}

// decode reads a size-capped JSON body into v and validates it.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("malformed body: %v: %w", err, domain.ErrInvalidRequest)
	}
	return s.validate.Struct(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{}
	code := http.StatusOK
	for name, p := range s.Health {
		if err := p.Ping(r.Context()); err != nil {
			status[name] = err.Error()
			code = http.StatusServiceUnavailable
			continue
		}
		status[name] = "ok"
	}
	writeJSON(w, code, status)
}

func (s *Server) handleTiers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tiers": s.Catalog.Tiers()})
}

func (s *Server) handleSubscription(w http.ResponseWriter, r *http.Request) {
	view, err := s.Subscription.Get(r.Context(), PrincipalFrom(r.Context()).UserID)
	if err != nil {
		fail(w, logging.With(r.Context(), s.log), err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	items, err := s.Usage.Summary(r.Context(), PrincipalFrom(r.Context()).UserID)
	if err != nil {
		fail(w, logging.With(r.Context(), s.log), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleFeature(w http.ResponseWriter, r *http.Request) {
	d, err := s.Gate.CanAccess(r.Context(), PrincipalFrom(r.Context()).UserID, chi.URLParam(r, "feature"))
	if err != nil {
		fail(w, logging.With(r.Context(), s.log), err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req usecase.CheckoutRequest
	if err := s.decode(w, r, &req); err != nil {
		fail(w, s.log, err)
		return
	}
	res, err := s.Checkout.StartCheckout(r.Context(), PrincipalFrom(r.Context()), req)
	if err != nil {
		fail(w, logging.With(r.Context(), s.log), err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleWebhook reads the raw body for signature verification. Every
// verified event is acknowledged with 200 so the provider stops retrying;
// local failures answer 500 so it redelivers.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "unreadable body")
		return
	}
	res, err := s.Webhooks.HandleWebhook(r.Context(), chi.URLParam(r, "provider"), payload, r.Header)
	if err != nil {
		fail(w, logging.With(r.Context(), s.log), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"received": true, "outcome": res.Outcome})
}

func (s *Server) handleAdvisorChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := s.decode(w, r, &req); err != nil {
		fail(w, s.log, err)
		return
	}
	p := PrincipalFrom(r.Context())
	res, err := s.Advisor.Chat(r.Context(), p.UserID, req.Message)
	if err != nil {
		fail(w, logging.With(r.Context(), s.log), err)
		return
	}
	s.recordUsage(r.Context(), p.UserID, res.IsDegraded())
	writeJSON(w, http.StatusOK, resultBody[model.ChatReply]{Data: res.Data, Degraded: string(res.Degraded)})
}

func (s *Server) handleAdvisorRoadmap(w http.ResponseWriter, r *http.Request) {
	var req roadmapRequest
	if err := s.decode(w, r, &req); err != nil {
		fail(w, s.log, err)
		return
	}
	p := PrincipalFrom(r.Context())
	res, err := s.Advisor.Roadmap(r.Context(), p.UserID, req.Goal)
	if err != nil {
		fail(w, logging.With(r.Context(), s.log), err)
		return
	}
	s.recordUsage(r.Context(), p.UserID, res.IsDegraded())
	writeJSON(w, http.StatusOK, resultBody[model.Roadmap]{Data: res.Data, Degraded: string(res.Degraded)})
}

// recordUsage charges one unit of the gated feature's metric. Fallback
// results are not charged. A failed increment is logged and the response
// still goes out.
func (s *Server) recordUsage(ctx context.Context, userID string, degraded bool) {
	d, ok := decisionFrom(ctx)
	if !ok || d.Metric == "" || degraded {
		return
	}
	if _, err := s.Usage.RecordUsage(ctx, userID, d.Metric, 1); err != nil {
		logging.With(ctx, s.log).Error().Err(err).Str("metric", d.Metric).Msg("usage not recorded")
	}
}

func (s *Server) handleAdminSet(w http.ResponseWriter, r *http.Request) {
	var req usecase.AdminSetRequest
	if err := s.decode(w, r, &req); err != nil {
		fail(w, s.log, err)
		return
	}
	sub, err := s.Subscription.AdminSet(r.Context(), PrincipalFrom(r.Context()), chi.URLParam(r, "userId"), req)
	if err != nil {
		fail(w, logging.With(r.Context(), s.log), err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (s *Server) handleFlaggedEvents(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if q := r.URL.Query().Get("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 1 || n > 500 {
			fail(w, s.log, fmt.Errorf("limit must be between 1 and 500: %w", domain.ErrInvalidRequest))
			return
		}
		limit = n
	}
	items, err := s.Subscription.ListFlaggedEvents(r.Context(), PrincipalFrom(r.Context()), limit)
	if err != nil {
		fail(w, logging.With(r.Context(), s.log), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}
