package adapter

import (
	"context"
	"net/http"

	"career-advisor-platform/internal/domain/model"
)

// CustomerRequest identifies the user a provider customer is resolved for.
type CustomerRequest struct {
	UserID string
	Email  string
}

// CheckoutRequest describes a hosted subscription checkout to create.
type CheckoutRequest struct {
	UserID     string
	CustomerID string
	PriceID    string
	Tier       model.TierID
	Cycle      model.BillingCycle
	SuccessURL string
	CancelURL  string
}

// CheckoutResponse carries what the provider returned for a new checkout.
// SubscriptionID is set by providers that create the subscription up front.
type CheckoutResponse struct {
	SessionID      string
	SubscriptionID string
	RedirectURL    string
}

// PaymentGateway is the hex port for subscription payment providers.
type PaymentGateway interface {
	Name() model.PaymentProvider

	// EnsureCustomer looks up the provider customer by email and creates it if missing.
	EnsureCustomer(ctx context.Context, req CustomerRequest) (customerID string, err error)
	// CreateCheckout starts a hosted subscription checkout.
	CreateCheckout(ctx context.Context, req CheckoutRequest) (CheckoutResponse, error)

	// ParseWebhook verifies the signature over the raw payload and normalizes
	// the event. It must return domain.ErrInvalidSignature without decoding
	// anything when verification fails.
	ParseWebhook(payload []byte, header http.Header) (*model.WebhookEvent, error)
}
