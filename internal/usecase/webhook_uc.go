package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
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
var _ WebhookUseCase = (*webhookUC)(nil)

type WebhookOutcome string

const (
	OutcomeApplied   WebhookOutcome = "applied"
	OutcomeDuplicate WebhookOutcome = "duplicate"
	OutcomeIgnored   WebhookOutcome = "ignored"
	OutcomeUnmatched WebhookOutcome = "unmatched"
	OutcomeSkipped   WebhookOutcome = "skipped"
	OutcomeRecorded  WebhookOutcome = "recorded"
)

// Review reasons stored on flagged payment events.
const (
	ReviewUnmatched    = "unmatched"
	ReviewUnknownPrice = "unknown_price"
	ReviewStale        = "stale_subscription"
)

type WebhookResult struct {
	EventID string          `json:"eventId"`
	Kind    model.EventKind `json:"kind"`
	Outcome WebhookOutcome  `json:"outcome"`
	UserID  string          `json:"-"`
}

type WebhookUseCase interface {
	// HandleWebhook verifies and applies one provider notification. Every
	// verified event yields a result; an error means nothing was committed.
	HandleWebhook(ctx context.Context, provider string, payload []byte, header http.Header) (WebhookResult, error)
}

type webhookUC struct {
	catalog   *catalog.Catalog
	prices    *catalog.PriceTable
	gateways  map[model.PaymentProvider]adapter.PaymentGateway
	subs      repository.SubscriptionRepository
	events    repository.PaymentEventRepository
	checkouts repository.CheckoutSessionRepository
	tm        repository.TransactionManager
	warn      *logging.RateLimited
	now       func() time.Time
	log       *zerolog.Logger
}

func NewWebhookUseCase(
	cat *catalog.Catalog,
	prices *catalog.PriceTable,
	gateways []adapter.PaymentGateway,
	subs repository.SubscriptionRepository,
	events repository.PaymentEventRepository,
	checkouts repository.CheckoutSessionRepository,
	tm repository.TransactionManager,
	warn *logging.RateLimited,
	now func() time.Time,
	logger *zerolog.Logger,
) *webhookUC {
	byName := make(map[model.PaymentProvider]adapter.PaymentGateway, len(gateways))
	for _, g := range gateways {
		byName[g.Name()] = g
	}
	if now == nil {
		now = time.Now
	}
	return &webhookUC{
		catalog:   cat,
		prices:    prices,
		gateways:  byName,
		subs:      subs,
		events:    events,
		checkouts: checkouts,
		tm:        tm,
		warn:      warn,
		now:       now,
		log:       logger,
	}
}

// resolved is the subscription a webhook applies to. persisted is false when
// the row was first created for this event from a checkout session.
type resolved struct {
	sub       *model.UserSubscription
	persisted bool
}

func (u *webhookUC) HandleWebhook(ctx context.Context, provider string, payload []byte, header http.Header) (WebhookResult, error) {
	defer logging.TraceDuration(u.log, "WebhookUC.HandleWebhook")()
	started := time.Now()

	p := model.PaymentProvider(strings.ToLower(strings.TrimSpace(provider)))
	gw, ok := u.gateways[p]
	if !ok {
		return WebhookResult{}, fmt.Errorf("webhook provider %q: %w", provider, domain.ErrNotFound)
	}
	ctx = logging.WithProvider(ctx, string(p))
	log := logging.With(ctx, u.log)

	ev, err := gw.ParseWebhook(payload, header)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidSignature) {
			metrics.IncWebhookEvent(string(p), "unknown", "invalid_signature")
			return WebhookResult{}, err
		}
		metrics.IncWebhookEvent(string(p), "unknown", "invalid_payload")
		return WebhookResult{}, fmt.Errorf("decode %s webhook: %v: %w", p, err, domain.ErrInvalidRequest)
	}

	res := WebhookResult{EventID: ev.EventID, Kind: ev.Kind}
	if ev.Kind == model.EventIgnored {
		res.Outcome = OutcomeIgnored
		metrics.IncWebhookEvent(string(p), string(ev.Kind), string(res.Outcome))
		log.Debug().Str("event_type", ev.Type).Str("event_id", ev.EventID).Msg("webhook ignored")
		return res, nil
	}

	now := u.now().UTC()
	record := &model.PaymentEvent{
		ID:              ulid.Make().String(),
		Provider:        p,
		ProviderEventID: ev.EventID,
		Type:            ev.Type,
		Kind:            ev.Kind,
		RawPayload:      ev.Payload,
		ProcessedAt:     now,
	}
	var applied *model.UserSubscription

	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		applied = nil
		record.UserID, record.NeedsReview, record.ReviewReason = "", false, ""

		inserted, err := u.events.InsertIfAbsent(ctx, tx, record)
		if err != nil {
			return err
		}
		if !inserted {
			res.Outcome = OutcomeDuplicate
			return nil
		}

		r, err := u.resolve(ctx, tx, ev)
		if err != nil {
			return err
		}
		if r.sub == nil {
			res.Outcome = OutcomeUnmatched
			record.Flag(ReviewUnmatched)
			return u.events.Update(ctx, tx, record)
		}

		record.UserID = r.sub.UserID
		res.Outcome = u.apply(r, ev, record, now)
		if err := u.events.Update(ctx, tx, record); err != nil {
			return err
		}
		if res.Outcome != OutcomeApplied {
			return nil
		}
		if err := u.subs.Save(ctx, tx, r.sub); err != nil {
			return err
		}
		applied = r.sub
		return nil
	})
	if err != nil {
		metrics.IncWebhookEvent(string(p), string(ev.Kind), "error")
		log.Error().Err(err).Str("event_id", ev.EventID).Str("event_type", ev.Type).Msg("webhook reconciliation failed")
		return WebhookResult{}, err
	}

	res.UserID = record.UserID
	metrics.IncWebhookEvent(string(p), string(ev.Kind), string(res.Outcome))
	metrics.ObserveWebhook(string(p), started)
	if record.ReviewReason == ReviewUnknownPrice {
		metrics.IncTierFallback(string(p))
	}

	switch res.Outcome {
	case OutcomeUnmatched:
		metrics.IncWebhookUnmatched(string(p))
		u.warn.Warn("webhook_unmatched:"+string(p)).
			Str("event_id", ev.EventID).
			Str("event_type", ev.Type).
			Msg("webhook matched no user, flagged for review")
	case OutcomeApplied:
		metrics.IncSubscriptionTransition("webhook", applied.Status)
		log.Info().
			Str("event_id", ev.EventID).
			Str("kind", string(ev.Kind)).
			Str("user_id", applied.UserID).
			Str("tier", string(applied.Tier)).
			Str("status", string(applied.Status)).
			Msg("subscription updated from webhook")
	default:
		log.Info().
			Str("event_id", ev.EventID).
			Str("kind", string(ev.Kind)).
			Str("outcome", string(res.Outcome)).
			Str("review_reason", record.ReviewReason).
			Msg("webhook processed")
	}
	return res, nil
}

// resolve finds the subscription by provider subscription id, then provider
// customer id, then the latest checkout session for either id.
func (u *webhookUC) resolve(ctx context.Context, tx repository.Tx, ev *model.WebhookEvent) (resolved, error) {
	if ev.SubscriptionID != "" {
		sub, err := u.subs.FindByProviderSubscriptionID(ctx, tx, ev.Provider, ev.SubscriptionID)
		if err == nil {
			return resolved{sub: sub, persisted: true}, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return resolved{}, err
		}
	}
	if ev.CustomerID != "" {
		sub, err := u.subs.FindByProviderCustomerID(ctx, tx, ev.Provider, ev.CustomerID)
		if err == nil {
			return resolved{sub: sub, persisted: true}, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return resolved{}, err
		}
	}
	if ev.SubscriptionID == "" && ev.CustomerID == "" {
		return resolved{}, nil
	}

	cs, err := u.checkouts.FindLatestByProviderRef(ctx, tx, ev.Provider, ev.SubscriptionID, ev.CustomerID)
	if errors.Is(err, domain.ErrNotFound) {
		return resolved{}, nil
	}
	if err != nil {
		return resolved{}, err
	}
	// The row may not exist yet; lock a stored one so a concurrent first
	// event for the same user waits instead of overwriting.
	sub, created, err := u.subs.EnsureForUpdate(ctx, tx, cs.UserID, cs.CreatedAt)
	if err != nil {
		return resolved{}, err
	}
	return resolved{sub: sub, persisted: !created}, nil
}

// apply runs the transition table against r.sub in place.
func (u *webhookUC) apply(r resolved, ev *model.WebhookEvent, record *model.PaymentEvent, now time.Time) WebhookOutcome {
	sub := r.sub

	switch ev.Kind {
	case model.EventRenewed, model.EventCanceled, model.EventPaymentSucceeded, model.EventPaymentFailed:
		if r.persisted && isStale(sub, ev) {
			record.Flag(ReviewStale)
			return OutcomeSkipped
		}
	}

	switch ev.Kind {
	case model.EventActivated:
		tier, _, ok := u.prices.Resolve(ev.Provider, ev.PriceID)
		if !ok {
			tier = u.catalog.LowestPaidTier()
			record.Flag(ReviewUnknownPrice)
		}
		sub.LinkProvider(ev.Provider, ev.CustomerID, ev.SubscriptionID)
		sub.Activate(tier, ev.PeriodStart, ev.PeriodEnd, now)
		return OutcomeApplied

	case model.EventRenewed:
		if !sub.IsActive() {
			return OutcomeSkipped
		}
		if tier, _, ok := u.prices.Resolve(ev.Provider, ev.PriceID); ok {
			sub.Tier = tier
		}
		sub.LinkProvider(ev.Provider, ev.CustomerID, ev.SubscriptionID)
		sub.Renew(ev.PeriodStart, ev.PeriodEnd, now)
		return OutcomeApplied

	case model.EventCanceled:
		sub.Cancel(now)
		return OutcomeApplied

	case model.EventPaymentSucceeded:
		if !r.persisted {
			return OutcomeRecorded
		}
		switch {
		case sub.Status == model.SubscriptionStatusPaymentFailed:
			sub.Activate(sub.Tier, ev.PeriodStart, ev.PeriodEnd, now)
			return OutcomeApplied
		case sub.IsActive() && ev.PeriodEnd != nil:
			sub.Renew(ev.PeriodStart, ev.PeriodEnd, now)
			return OutcomeApplied
		}
		return OutcomeRecorded

	case model.EventPaymentFailed:
		if !r.persisted || !sub.IsActive() {
			return OutcomeRecorded
		}
		sub.MarkPaymentFailed(now)
		return OutcomeApplied

	case model.EventCheckoutCompleted:
		// link only; UpdatedAt tracks tier and status changes
		sub.LinkProvider(ev.Provider, ev.CustomerID, ev.SubscriptionID)
		return OutcomeApplied
	}
	return OutcomeRecorded
}

// isStale reports an event for a provider subscription other than the one
// currently stored, such as the cancellation of a replaced plan.
func isStale(sub *model.UserSubscription, ev *model.WebhookEvent) bool {
	if sub.Provider != "" && sub.Provider != model.ProviderNone && sub.Provider != ev.Provider {
		return true
	}
	return sub.ProviderSubscriptionID != "" && ev.SubscriptionID != "" && sub.ProviderSubscriptionID != ev.SubscriptionID
}
