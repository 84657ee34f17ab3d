package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"career-advisor-platform/internal/domain"
	"career-advisor-platform/internal/domain/catalog"
	"career-advisor-platform/internal/domain/model"
	"career-advisor-platform/internal/domain/ports/adapter"
	"career-advisor-platform/internal/domain/ports/repository"
	"career-advisor-platform/internal/infra/logging"
	"career-advisor-platform/internal/infra/metrics"
)

// Compile-time check
var _ CheckoutUseCase = (*checkoutUC)(nil)

type CheckoutRequest struct {
	Tier     string `json:"tier" validate:"required"`
	Billing  string `json:"billing" validate:"required"`
	Provider string `json:"provider" validate:"required"`
}

type CheckoutResult struct {
	RedirectURL string `json:"redirectUrl"`
	SessionID   string `json:"sessionId"`
}

// RateLimiter is a per-key fixed window counter.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type CheckoutOptions struct {
	Timeout    time.Duration
	SuccessURL string
	CancelURL  string
	RateLimit  int // checkout starts per user per minute, 0 disables
}

type CheckoutUseCase interface {
	StartCheckout(ctx context.Context, p *model.Principal, req CheckoutRequest) (CheckoutResult, error)
}

type checkoutUC struct {
	prices    *catalog.PriceTable
	gateways  map[model.PaymentProvider]adapter.PaymentGateway
	checkouts repository.CheckoutSessionRepository
	limiter   RateLimiter
	opts      CheckoutOptions
	now       func() time.Time
	log       *zerolog.Logger
}

func NewCheckoutUseCase(
	prices *catalog.PriceTable,
	gateways []adapter.PaymentGateway,
	checkouts repository.CheckoutSessionRepository,
	limiter RateLimiter,
	opts CheckoutOptions,
	logger *zerolog.Logger,
) *checkoutUC {
	byName := make(map[model.PaymentProvider]adapter.PaymentGateway, len(gateways))
	for _, g := range gateways {
		byName[g.Name()] = g
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &checkoutUC{
		prices:    prices,
		gateways:  byName,
		checkouts: checkouts,
		limiter:   limiter,
		opts:      opts,
		now:       time.Now,
		log:       logger,
	}
}

// StartCheckout creates a provider customer and hosted checkout and records
// the session. The user's subscription changes only when the provider's
// webhook arrives.
func (u *checkoutUC) StartCheckout(ctx context.Context, p *model.Principal, req CheckoutRequest) (CheckoutResult, error) {
	defer logging.TraceDuration(u.log, "CheckoutUC.StartCheckout")()

	if p == nil || p.UserID == "" {
		return CheckoutResult{}, domain.ErrUnauthenticated
	}
	tier, cycle, provider, err := parseCheckoutRequest(req)
	if err != nil {
		metrics.IncCheckout(req.Provider, "invalid")
		return CheckoutResult{}, err
	}
	priceID, err := u.prices.PriceID(provider, tier, cycle)
	if err != nil {
		metrics.IncCheckout(string(provider), "invalid")
		return CheckoutResult{}, fmt.Errorf("no price for %s/%s/%s: %w", provider, tier, cycle, domain.ErrInvalidRequest)
	}
	gw, ok := u.gateways[provider]
	if !ok {
		metrics.IncCheckout(string(provider), "unavailable")
		return CheckoutResult{}, fmt.Errorf("%s gateway not configured: %w", provider, domain.ErrPaymentUnavailable)
	}

	log := logging.With(ctx, u.log)
	if u.limiter != nil && u.opts.RateLimit > 0 {
		allowed, err := u.limiter.Allow(ctx, "rate_limit:"+p.UserID+":checkout", u.opts.RateLimit, time.Minute)
		switch {
		case err != nil:
			log.Warn().Err(err).Msg("checkout rate limiter unavailable, allowing")
		case !allowed:
			metrics.IncCheckout(string(provider), "rate_limited")
			return CheckoutResult{}, domain.ErrRateLimited
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, u.opts.Timeout)
	defer cancel()

	started := time.Now()
	customerID, err := gw.EnsureCustomer(callCtx, adapter.CustomerRequest{UserID: p.UserID, Email: p.Email})
	metrics.ObserveProviderCall(string(provider), "ensure_customer", started, err)
	if err != nil {
		return CheckoutResult{}, u.unavailable(log, provider, "ensure customer", err)
	}

	started = time.Now()
	resp, err := gw.CreateCheckout(callCtx, adapter.CheckoutRequest{
		UserID:     p.UserID,
		CustomerID: customerID,
		PriceID:    priceID,
		Tier:       tier,
		Cycle:      cycle,
		SuccessURL: u.opts.SuccessURL,
		CancelURL:  u.opts.CancelURL,
	})
	metrics.ObserveProviderCall(string(provider), "create_checkout", started, err)
	if err != nil {
		return CheckoutResult{}, u.unavailable(log, provider, "create checkout", err)
	}

	cs, err := model.NewCheckoutSession(ulid.Make().String(), p.UserID, p.Email, provider, tier, cycle, u.now().UTC())
	if err != nil {
		return CheckoutResult{}, err
	}
	cs.ProviderCustomerID = customerID
	cs.ProviderSessionID = resp.SessionID
	cs.ProviderSubscriptionID = resp.SubscriptionID
	cs.RedirectURL = resp.RedirectURL
	if err := u.checkouts.Save(ctx, nil, cs); err != nil {
		log.Error().Err(err).Str("session_id", resp.SessionID).Msg("failed to persist checkout session")
		return CheckoutResult{}, err
	}

	metrics.IncCheckout(string(provider), "ok")
	log.Info().
		Str("provider", string(provider)).
		Str("tier", string(tier)).
		Str("billing", string(cycle)).
		Str("session_id", resp.SessionID).
		Str("email", logging.Redact(p.Email, false)).
		Msg("checkout started")
	return CheckoutResult{RedirectURL: resp.RedirectURL, SessionID: resp.SessionID}, nil
}

func (u *checkoutUC) unavailable(log *zerolog.Logger, provider model.PaymentProvider, op string, err error) error {
	result := "provider_error"
	if errors.Is(err, context.DeadlineExceeded) {
		result = "timeout"
	}
	metrics.IncCheckout(string(provider), result)
	log.Error().Err(err).Str("provider", string(provider)).Msg(op + " failed")
	return fmt.Errorf("%s: %v: %w", op, err, domain.ErrPaymentUnavailable)
}

func parseCheckoutRequest(req CheckoutRequest) (model.TierID, model.BillingCycle, model.PaymentProvider, error) {
	tier, err := model.ParseTierID(req.Tier)
	if err != nil || !tier.IsPaid() {
		return "", "", "", fmt.Errorf("tier %q: %w", req.Tier, domain.ErrInvalidRequest)
	}
	cycle, err := model.ParseBillingCycle(req.Billing)
	if err != nil {
		return "", "", "", fmt.Errorf("billing %q: %w", req.Billing, domain.ErrInvalidRequest)
	}
	provider, err := model.ParsePaymentProvider(req.Provider)
	if err != nil {
		return "", "", "", fmt.Errorf("provider %q: %w", req.Provider, domain.ErrInvalidRequest)
	}
	return tier, cycle, provider, nil
}
