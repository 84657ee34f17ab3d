package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"career-advisor-platform/internal/domain"
	"career-advisor-platform/internal/domain/model"
	"career-advisor-platform/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*NoopPaymentGateway)(nil)

// NoopSignatureHeader carries the shared secret for NoopPaymentGateway webhooks.
const NoopSignatureHeader = "X-Noop-Signature"

// NoopPaymentGateway is an in-memory gateway for tests and local runs. It
// answers to the provider name it was built with. Webhooks are JSON-encoded
// model.WebhookEvent values authenticated by a shared secret header.
type NoopPaymentGateway struct {
	provider model.PaymentProvider
	secret   string

	mu        sync.Mutex
	seq       int64
	customers map[string]string // email or user id -> customer id
}

func NewNoopPaymentGateway(provider model.PaymentProvider, secret string) *NoopPaymentGateway {
	return &NoopPaymentGateway{
		provider:  provider,
		secret:    secret,
		customers: make(map[string]string),
	}
}

func (g *NoopPaymentGateway) Name() model.PaymentProvider { return g.provider }

func (g *NoopPaymentGateway) next(prefix string) string {
	g.seq++
	return fmt.Sprintf("%s_noop_%d", prefix, g.seq)
}

func (g *NoopPaymentGateway) EnsureCustomer(ctx context.Context, req adapter.CustomerRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key := req.Email
	if key == "" {
		key = req.UserID
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if id, ok := g.customers[key]; ok {
		return id, nil
	}
	id := g.next("cus")
	g.customers[key] = id
	return id, nil
}

func (g *NoopPaymentGateway) CreateCheckout(ctx context.Context, req adapter.CheckoutRequest) (adapter.CheckoutResponse, error) {
	if err := ctx.Err(); err != nil {
		return adapter.CheckoutResponse{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.next("cs")
	return adapter.CheckoutResponse{
		SessionID:   id,
		RedirectURL: "https://example.test/checkout/" + id,
	}, nil
}

func (g *NoopPaymentGateway) ParseWebhook(payload []byte, header http.Header) (*model.WebhookEvent, error) {
	if g.secret == "" || header.Get(NoopSignatureHeader) != g.secret {
		return nil, domain.ErrInvalidSignature
	}
	var ev model.WebhookEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("noop: decode event: %w", err)
	}
	ev.Provider = g.provider
	ev.Payload = payload
	if ev.Kind == "" {
		ev.Kind = model.EventIgnored
	}
	return &ev, nil
}
