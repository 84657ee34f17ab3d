//go:build !integration

package payment

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	stripelib "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"career-advisor-platform/internal/domain"
	"career-advisor-platform/internal/domain/model"
	"career-advisor-platform/internal/domain/ports/adapter"
)

const testStripeSecret = "whsec_test"

func newTestStripeGateway(t *testing.T) *StripeGateway {
	t.Helper()
	g, err := NewStripeGateway("sk_test_123", testStripeSecret)
	require.NoError(t, err)
	return g
}

func signedStripeHeader(t *testing.T, payload []byte, secret string) http.Header {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	})
	h := http.Header{}
	h.Set("Stripe-Signature", signed.Header)
	return h
}

func stripeEventJSON(id, typ, object string) []byte {
	return []byte(`{"id":"` + id + `","object":"event","type":"` + typ + `","data":{"object":` + object + `}}`)
}

func TestStripeGateway_ParseWebhook(t *testing.T) {
	g := newTestStripeGateway(t)

	t.Run("rejects missing signature", func(t *testing.T) {
		_, err := g.ParseWebhook(stripeEventJSON("evt_1", "customer.subscription.created", `{}`), http.Header{})
		assert.True(t, errors.Is(err, domain.ErrInvalidSignature))
	})

	t.Run("rejects signature from another secret", func(t *testing.T) {
		payload := stripeEventJSON("evt_1", "customer.subscription.created", `{}`)
		_, err := g.ParseWebhook(payload, signedStripeHeader(t, payload, "whsec_other"))
		assert.True(t, errors.Is(err, domain.ErrInvalidSignature))
	})

	t.Run("rejects tampered body", func(t *testing.T) {
		payload := stripeEventJSON("evt_1", "customer.subscription.created", `{"id":"sub_1"}`)
		header := signedStripeHeader(t, payload, testStripeSecret)
		tampered := stripeEventJSON("evt_1", "customer.subscription.created", `{"id":"sub_2"}`)
		_, err := g.ParseWebhook(tampered, header)
		assert.True(t, errors.Is(err, domain.ErrInvalidSignature))
	})

	cases := []struct {
		name     string
		typ      string
		object   string
		wantKind model.EventKind
		wantSub  string
		wantCust string
		wantPric string
	}{
		{
			name:     "subscription created activates",
			typ:      "customer.subscription.created",
			object:   `{"id":"sub_1","customer":"cus_1","status":"active","items":{"data":[{"current_period_start":1767225600,"current_period_end":1769904000,"price":{"id":"price_basic_m"}}]}}`,
			wantKind: model.EventActivated, wantSub: "sub_1", wantCust: "cus_1", wantPric: "price_basic_m",
		},
		{
			name:     "subscription updated renews",
			typ:      "customer.subscription.updated",
			object:   `{"id":"sub_1","customer":"cus_1","status":"active"}`,
			wantKind: model.EventRenewed, wantSub: "sub_1", wantCust: "cus_1",
		},
		{
			name:     "subscription updated to past_due fails payment",
			typ:      "customer.subscription.updated",
			object:   `{"id":"sub_1","customer":"cus_1","status":"past_due"}`,
			wantKind: model.EventPaymentFailed, wantSub: "sub_1", wantCust: "cus_1",
		},
		{
			name:     "subscription updated to canceled cancels",
			typ:      "customer.subscription.updated",
			object:   `{"id":"sub_1","customer":"cus_1","status":"canceled"}`,
			wantKind: model.EventCanceled, wantSub: "sub_1", wantCust: "cus_1",
		},
		{
			name:     "subscription deleted cancels",
			typ:      "customer.subscription.deleted",
			object:   `{"id":"sub_1","customer":"cus_1","status":"canceled"}`,
			wantKind: model.EventCanceled, wantSub: "sub_1", wantCust: "cus_1",
		},
		{
			name:     "invoice paid reads subscription from parent",
			typ:      "invoice.paid",
			object:   `{"id":"in_1","customer":"cus_1","parent":{"subscription_details":{"subscription":"sub_1"}}}`,
			wantKind: model.EventPaymentSucceeded, wantSub: "sub_1", wantCust: "cus_1",
		},
		{
			name:     "invoice payment failed",
			typ:      "invoice.payment_failed",
			object:   `{"id":"in_1","customer":"cus_1","subscription":"sub_1"}`,
			wantKind: model.EventPaymentFailed, wantSub: "sub_1", wantCust: "cus_1",
		},
		{
			name:     "checkout completed",
			typ:      "checkout.session.completed",
			object:   `{"id":"cs_1","mode":"subscription","customer":"cus_1","subscription":"sub_1","client_reference_id":"user-1"}`,
			wantKind: model.EventCheckoutCompleted, wantSub: "sub_1", wantCust: "cus_1",
		},
		{
			name:     "unrelated event is ignored",
			typ:      "charge.refunded",
			object:   `{"id":"ch_1"}`,
			wantKind: model.EventIgnored,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			payload := stripeEventJSON("evt_"+tc.typ, tc.typ, tc.object)
			ev, err := g.ParseWebhook(payload, signedStripeHeader(t, payload, testStripeSecret))
			require.NoError(t, err)
			assert.Equal(t, model.ProviderStripe, ev.Provider)
			assert.Equal(t, "evt_"+tc.typ, ev.EventID)
			assert.Equal(t, tc.wantKind, ev.Kind)
			assert.Equal(t, tc.wantSub, ev.SubscriptionID)
			assert.Equal(t, tc.wantCust, ev.CustomerID)
			assert.Equal(t, tc.wantPric, ev.PriceID)
		})
	}

	t.Run("period falls back to first item", func(t *testing.T) {
		payload := stripeEventJSON("evt_p", "customer.subscription.created", cases[0].object)
		ev, err := g.ParseWebhook(payload, signedStripeHeader(t, payload, testStripeSecret))
		require.NoError(t, err)
		require.NotNil(t, ev.PeriodEnd)
		assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), *ev.PeriodEnd)
	})
}

func TestStripeGateway_EnsureCustomer(t *testing.T) {
	ctx := context.Background()

	t.Run("reuses customer found by email", func(t *testing.T) {
		g := newTestStripeGateway(t)
		g.findCustomer = func(p *stripelib.CustomerListParams) (*stripelib.Customer, error) {
			assert.Equal(t, "a@example.com", *p.Email)
			return &stripelib.Customer{ID: "cus_existing"}, nil
		}
		g.newCustomer = func(*stripelib.CustomerParams) (*stripelib.Customer, error) {
			t.Fatal("must not create when a customer exists")
			return nil, nil
		}
		id, err := g.EnsureCustomer(ctx, adapter.CustomerRequest{UserID: "u1", Email: "a@example.com"})
		require.NoError(t, err)
		assert.Equal(t, "cus_existing", id)
	})

	t.Run("creates customer when none found", func(t *testing.T) {
		g := newTestStripeGateway(t)
		g.findCustomer = func(*stripelib.CustomerListParams) (*stripelib.Customer, error) { return nil, nil }
		g.newCustomer = func(p *stripelib.CustomerParams) (*stripelib.Customer, error) {
			assert.Equal(t, "u1", p.Metadata["user_id"])
			return &stripelib.Customer{ID: "cus_new"}, nil
		}
		id, err := g.EnsureCustomer(ctx, adapter.CustomerRequest{UserID: "u1", Email: "a@example.com"})
		require.NoError(t, err)
		assert.Equal(t, "cus_new", id)
	})
}

func TestStripeGateway_CreateCheckout(t *testing.T) {
	g := newTestStripeGateway(t)
	g.createSession = func(p *stripelib.CheckoutSessionParams) (*stripelib.CheckoutSession, error) {
		assert.Equal(t, "subscription", *p.Mode)
		assert.Equal(t, "u1", *p.ClientReferenceID)
		assert.Equal(t, "cus_1", *p.Customer)
		assert.Equal(t, "price_basic_m", *p.LineItems[0].Price)
		return &stripelib.CheckoutSession{ID: "cs_1", URL: "https://checkout.stripe.test/cs_1"}, nil
	}
	resp, err := g.CreateCheckout(context.Background(), adapter.CheckoutRequest{
		UserID: "u1", CustomerID: "cus_1", PriceID: "price_basic_m",
		Tier: model.TierBasic, Cycle: model.CycleMonthly,
		SuccessURL: "https://app.test/ok", CancelURL: "https://app.test/cancel",
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_1", resp.SessionID)
	assert.Equal(t, "https://checkout.stripe.test/cs_1", resp.RedirectURL)
}
