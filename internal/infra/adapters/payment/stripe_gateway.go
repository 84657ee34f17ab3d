package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	stripelib "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/customer"
	"github.com/stripe/stripe-go/v82/webhook"

	"career-advisor-platform/internal/domain"
	"career-advisor-platform/internal/domain/model"
	"career-advisor-platform/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*StripeGateway)(nil)

// StripeGateway implements adapter.PaymentGateway on hosted Checkout in
// subscription mode. Provider calls are injectable for tests.
type StripeGateway struct {
	secret string

	findCustomer  func(params *stripelib.CustomerListParams) (*stripelib.Customer, error)
	newCustomer   func(params *stripelib.CustomerParams) (*stripelib.Customer, error)
	createSession func(params *stripelib.CheckoutSessionParams) (*stripelib.CheckoutSession, error)
}

func NewStripeGateway(apiKey, webhookSecret string) (*StripeGateway, error) {
	if strings.TrimSpace(apiKey) == "" || strings.TrimSpace(webhookSecret) == "" {
		return nil, errors.New("stripe: api key and webhook secret are required")
	}
	stripelib.Key = strings.TrimSpace(apiKey)
	return &StripeGateway{
		secret:        strings.TrimSpace(webhookSecret),
		findCustomer:  firstCustomer,
		newCustomer:   customer.New,
		createSession: session.New,
	}, nil
}

func firstCustomer(params *stripelib.CustomerListParams) (*stripelib.Customer, error) {
	it := customer.List(params)
	if it.Next() {
		return it.Customer(), nil
	}
	return nil, it.Err()
}

func (g *StripeGateway) Name() model.PaymentProvider { return model.ProviderStripe }

func (g *StripeGateway) EnsureCustomer(ctx context.Context, req adapter.CustomerRequest) (string, error) {
	if req.Email != "" {
		lp := &stripelib.CustomerListParams{Email: stripelib.String(req.Email)}
		lp.Context = ctx
		lp.Limit = stripelib.Int64(1)
		c, err := g.findCustomer(lp)
		if err != nil {
			return "", fmt.Errorf("stripe: list customers: %w", err)
		}
		if c != nil {
			return c.ID, nil
		}
	}

	params := &stripelib.CustomerParams{
		Metadata: map[string]string{"user_id": req.UserID},
	}
	if req.Email != "" {
		params.Email = stripelib.String(req.Email)
	}
	params.Context = ctx
	c, err := g.newCustomer(params)
	if err != nil {
		return "", fmt.Errorf("stripe: create customer: %w", err)
	}
	return c.ID, nil
}

func (g *StripeGateway) CreateCheckout(ctx context.Context, req adapter.CheckoutRequest) (adapter.CheckoutResponse, error) {
	meta := map[string]string{
		"user_id": req.UserID,
		"tier":    string(req.Tier),
		"billing": string(req.Cycle),
	}
	params := &stripelib.CheckoutSessionParams{
		Mode:              stripelib.String(string(stripelib.CheckoutSessionModeSubscription)),
		SuccessURL:        stripelib.String(req.SuccessURL),
		CancelURL:         stripelib.String(req.CancelURL),
		ClientReferenceID: stripelib.String(req.UserID),
		LineItems: []*stripelib.CheckoutSessionLineItemParams{
			{
				Price:    stripelib.String(req.PriceID),
				Quantity: stripelib.Int64(1),
			},
		},
		SubscriptionData: &stripelib.CheckoutSessionSubscriptionDataParams{
			Metadata: meta,
		},
		Metadata: meta,
	}
	if req.CustomerID != "" {
		params.Customer = stripelib.String(req.CustomerID)
	}
	params.Context = ctx

	s, err := g.createSession(params)
	if err != nil {
		return adapter.CheckoutResponse{}, fmt.Errorf("stripe: create checkout session: %w", err)
	}
	if s == nil || strings.TrimSpace(s.URL) == "" {
		return adapter.CheckoutResponse{}, errors.New("stripe: checkout session has no url")
	}
	return adapter.CheckoutResponse{SessionID: s.ID, RedirectURL: s.URL}, nil
}

func (g *StripeGateway) ParseWebhook(payload []byte, header http.Header) (*model.WebhookEvent, error) {
	sig := header.Get("Stripe-Signature")
	if strings.TrimSpace(sig) == "" {
		return nil, fmt.Errorf("%w: missing Stripe-Signature", domain.ErrInvalidSignature)
	}
	event, err := webhook.ConstructEventWithOptions(payload, sig, g.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidSignature, err)
	}

	ev := &model.WebhookEvent{
		Provider: model.ProviderStripe,
		EventID:  event.ID,
		Type:     string(event.Type),
		Kind:     model.EventIgnored,
		Payload:  payload,
	}
	if event.Data == nil {
		return ev, nil
	}

	switch event.Type {
	case "customer.subscription.created", "customer.subscription.updated", "customer.subscription.deleted":
		var sub stripeSubscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("stripe: decode subscription: %w", err)
		}
		ev.CustomerID = sub.Customer
		ev.SubscriptionID = sub.ID
		ev.ProviderStatus = sub.Status
		ev.PriceID = sub.firstPriceID()
		ev.PeriodStart, ev.PeriodEnd = sub.period()
		ev.Kind = subscriptionKind(string(event.Type), sub.Status)

	case "invoice.paid", "invoice.payment_succeeded", "invoice.payment_failed":
		var inv stripeInvoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return nil, fmt.Errorf("stripe: decode invoice: %w", err)
		}
		ev.CustomerID = inv.Customer
		ev.SubscriptionID = inv.subscriptionID()
		ev.ProviderStatus = inv.Status
		ev.PriceID = inv.firstPriceID()
		ev.PeriodStart, ev.PeriodEnd = inv.period()
		ev.Kind = model.EventPaymentSucceeded
		if event.Type == "invoice.payment_failed" {
			ev.Kind = model.EventPaymentFailed
		}
		if ev.SubscriptionID == "" && ev.CustomerID == "" {
			ev.Kind = model.EventIgnored
		}

	case "checkout.session.completed":
		var cs stripeCheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
			return nil, fmt.Errorf("stripe: decode checkout.session: %w", err)
		}
		ev.CustomerID = cs.Customer
		ev.SubscriptionID = cs.Subscription
		ev.ProviderStatus = cs.Status
		ev.Kind = model.EventCheckoutCompleted
		if cs.Mode != "" && cs.Mode != string(stripelib.CheckoutSessionModeSubscription) {
			ev.Kind = model.EventIgnored
		}
	}
	return ev, nil
}

func subscriptionKind(eventType, status string) model.EventKind {
	if eventType == "customer.subscription.deleted" {
		return model.EventCanceled
	}
	switch status {
	case "canceled", "incomplete_expired":
		return model.EventCanceled
	case "past_due", "unpaid":
		return model.EventPaymentFailed
	case "incomplete":
		return model.EventIgnored
	}
	if eventType == "customer.subscription.created" {
		return model.EventActivated
	}
	return model.EventRenewed
}

type stripeSubscription struct {
	ID                 string `json:"id"`
	Customer           string `json:"customer"`
	Status             string `json:"status"`
	CurrentPeriodStart int64  `json:"current_period_start"`
	CurrentPeriodEnd   int64  `json:"current_period_end"`
	Items              struct {
		Data []struct {
			CurrentPeriodStart int64 `json:"current_period_start"`
			CurrentPeriodEnd   int64 `json:"current_period_end"`
			Price              struct {
				ID string `json:"id"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

func (s *stripeSubscription) firstPriceID() string {
	for _, item := range s.Items.Data {
		if id := strings.TrimSpace(item.Price.ID); id != "" {
			return id
		}
	}
	return ""
}

// period reads the top-level fields, falling back to the first item for API
// versions that moved them.
func (s *stripeSubscription) period() (*time.Time, *time.Time) {
	start, end := s.CurrentPeriodStart, s.CurrentPeriodEnd
	if (start == 0 || end == 0) && len(s.Items.Data) > 0 {
		start, end = s.Items.Data[0].CurrentPeriodStart, s.Items.Data[0].CurrentPeriodEnd
	}
	return unixPtr(start), unixPtr(end)
}

type stripeInvoice struct {
	ID           string `json:"id"`
	Customer     string `json:"customer"`
	Subscription string `json:"subscription"`
	Status       string `json:"status"`
	Parent       struct {
		SubscriptionDetails struct {
			Subscription string `json:"subscription"`
		} `json:"subscription_details"`
	} `json:"parent"`
	Lines struct {
		Data []struct {
			Period struct {
				Start int64 `json:"start"`
				End   int64 `json:"end"`
			} `json:"period"`
			Price struct {
				ID string `json:"id"`
			} `json:"price"`
			Pricing struct {
				PriceDetails struct {
					Price string `json:"price"`
				} `json:"price_details"`
			} `json:"pricing"`
		} `json:"data"`
	} `json:"lines"`
}

func (i *stripeInvoice) subscriptionID() string {
	if i.Subscription != "" {
		return i.Subscription
	}
	return i.Parent.SubscriptionDetails.Subscription
}

func (i *stripeInvoice) firstPriceID() string {
	for _, l := range i.Lines.Data {
		if l.Price.ID != "" {
			return l.Price.ID
		}
		if l.Pricing.PriceDetails.Price != "" {
			return l.Pricing.PriceDetails.Price
		}
	}
	return ""
}

func (i *stripeInvoice) period() (*time.Time, *time.Time) {
	if len(i.Lines.Data) == 0 {
		return nil, nil
	}
	p := i.Lines.Data[0].Period
	return unixPtr(p.Start), unixPtr(p.End)
}

type stripeCheckoutSession struct {
	ID                string `json:"id"`
	Mode              string `json:"mode"`
	Status            string `json:"status"`
	Customer          string `json:"customer"`
	Subscription      string `json:"subscription"`
	ClientReferenceID string `json:"client_reference_id"`
}

func unixPtr(sec int64) *time.Time {
	if sec <= 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}
