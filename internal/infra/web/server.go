package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"career-advisor-platform/internal/domain/catalog"
	"career-advisor-platform/internal/infra/api"
	"career-advisor-platform/internal/infra/metrics"
	"career-advisor-platform/internal/usecase"
)

// maxBodyBytes caps every request body, webhooks included.
const maxBodyBytes = 1 << 20

// Pinger is a dependency checked by /healthz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the HTTP surface is built from.
type Deps struct {
	Catalog      *catalog.Catalog
	Gate         usecase.FeatureGateUseCase
	Usage        usecase.UsageUseCase
	Checkout     usecase.CheckoutUseCase
	Webhooks     usecase.WebhookUseCase
	Subscription usecase.SubscriptionUseCase
	Advisor      usecase.AdvisorUseCase
	Auth         *AuthManager
	Health       map[string]Pinger
}

type Server struct {
	Deps
	upgradeURL string
	timeout    time.Duration
	validate   *validator.Validate
	log        *zerolog.Logger
}

func NewServer(deps Deps, upgradeURL string, requestTimeout time.Duration, logger *zerolog.Logger) *Server {
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}
	l := logger.With().Str("component", "http").Logger()
	return &Server{
		Deps:       deps,
		upgradeURL: upgradeURL,
		timeout:    requestTimeout,
		validate:   validator.New(),
		log:        &l,
	}
}

// Router builds the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(
		api.TraceID(s.log),
		api.RequestLog(s.log),
		api.Recover(s.log),
		api.Timeout(s.timeout),
	)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/tiers", s.handleTiers)
		r.Post("/webhooks/{provider}", s.handleWebhook)

		r.Group(func(r chi.Router) {
			r.Use(s.requireUser)

			r.Get("/subscription", s.handleSubscription)
			r.Get("/usage", s.handleUsage)
			r.Get("/features/{feature}", s.handleFeature)
			r.Post("/checkout", s.handleCheckout)

			r.With(s.requireFeature(catalog.FeatureAIChat)).Post("/advisor/chat", s.handleAdvisorChat)
			r.With(s.requireFeature(catalog.FeatureRoadmap)).Post("/advisor/roadmap", s.handleAdvisorRoadmap)

			r.Put("/admin/subscriptions/{userId}", s.handleAdminSet)
			r.Get("/admin/payment-events", s.handleFlaggedEvents)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, CodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, CodeInvalidRequest, "method not allowed")
	})
	return r
}
