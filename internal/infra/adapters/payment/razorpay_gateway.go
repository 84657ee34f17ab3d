package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	razorpay "github.com/razorpay/razorpay-go"
	"github.com/razorpay/razorpay-go/utils"

	"career-advisor-platform/internal/domain"
	"career-advisor-platform/internal/domain/model"
	"career-advisor-platform/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*RazorpayGateway)(nil)

type razorpayCall func(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)

// RazorpayGateway implements adapter.PaymentGateway on Razorpay Subscriptions.
// Plan ids play the role of price ids.
type RazorpayGateway struct {
	webhookSecret string
	totalCount    int

	createCustomer     razorpayCall
	createSubscription razorpayCall
}

func NewRazorpayGateway(keyID, keySecret, webhookSecret string, totalCount int) (*RazorpayGateway, error) {
	if keyID == "" || keySecret == "" || webhookSecret == "" {
		return nil, errors.New("razorpay: key id, key secret and webhook secret are required")
	}
	if totalCount <= 0 {
		totalCount = 12
	}
	client := razorpay.NewClient(keyID, keySecret)
	return &RazorpayGateway{
		webhookSecret:      webhookSecret,
		totalCount:         totalCount,
		createCustomer:     client.Customer.Create,
		createSubscription: client.Subscription.Create,
	}, nil
}

func (g *RazorpayGateway) Name() model.PaymentProvider { return model.ProviderRazorpay }

// EnsureCustomer relies on fail_existing=0: Razorpay returns the existing
// customer for a known email instead of an error.
func (g *RazorpayGateway) EnsureCustomer(ctx context.Context, req adapter.CustomerRequest) (string, error) {
	data := map[string]interface{}{
		"fail_existing": "0",
		"notes":         map[string]interface{}{"user_id": req.UserID},
	}
	if req.Email != "" {
		data["email"] = req.Email
	}
	resp, err := callWithContext(ctx, g.createCustomer, data)
	if err != nil {
		return "", fmt.Errorf("razorpay: create customer: %w", err)
	}
	id, _ := resp["id"].(string)
	if id == "" {
		return "", errors.New("razorpay: customer response has no id")
	}
	return id, nil
}

func (g *RazorpayGateway) CreateCheckout(ctx context.Context, req adapter.CheckoutRequest) (adapter.CheckoutResponse, error) {
	data := map[string]interface{}{
		"plan_id":         req.PriceID,
		"total_count":     g.totalCount,
		"customer_notify": 1,
		"notes": map[string]interface{}{
			"user_id": req.UserID,
			"tier":    string(req.Tier),
			"billing": string(req.Cycle),
		},
	}
	if req.CustomerID != "" {
		data["customer_id"] = req.CustomerID
	}
	resp, err := callWithContext(ctx, g.createSubscription, data)
	if err != nil {
		return adapter.CheckoutResponse{}, fmt.Errorf("razorpay: create subscription: %w", err)
	}
	id, _ := resp["id"].(string)
	shortURL, _ := resp["short_url"].(string)
	if id == "" || shortURL == "" {
		return adapter.CheckoutResponse{}, errors.New("razorpay: subscription response has no id or short_url")
	}
	return adapter.CheckoutResponse{SessionID: id, SubscriptionID: id, RedirectURL: shortURL}, nil
}

// callWithContext bounds an SDK call that has no context support of its own.
// On ctx expiry the call itself keeps running until the SDK's HTTP client
// timeout (10s by default) and its result is dropped.
func callWithContext(ctx context.Context, call razorpayCall, data map[string]interface{}) (map[string]interface{}, error) {
	type result struct {
		resp map[string]interface{}
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		resp, err := call(data, nil)
		ch <- result{resp, err}
	}()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		return r.resp, r.err
	}
}

func (g *RazorpayGateway) ParseWebhook(payload []byte, header http.Header) (*model.WebhookEvent, error) {
	sig := strings.TrimSpace(header.Get("X-Razorpay-Signature"))
	if sig == "" {
		return nil, fmt.Errorf("%w: missing X-Razorpay-Signature", domain.ErrInvalidSignature)
	}
	if !utils.VerifyWebhookSignature(string(payload), sig, g.webhookSecret) {
		return nil, domain.ErrInvalidSignature
	}

	var body razorpayEvent
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, fmt.Errorf("razorpay: decode event: %w", err)
	}

	sub := body.Payload.Subscription.Entity
	pay := body.Payload.Payment.Entity
	ev := &model.WebhookEvent{
		Provider:       model.ProviderRazorpay,
		Type:           body.Event,
		Kind:           razorpayKind(body.Event),
		CustomerID:     firstNonEmpty(sub.CustomerID, pay.CustomerID),
		SubscriptionID: firstNonEmpty(sub.ID, pay.SubscriptionID),
		PriceID:        sub.PlanID,
		ProviderStatus: firstNonEmpty(sub.Status, pay.Status),
		PeriodStart:    unixPtr(sub.CurrentStart),
		PeriodEnd:      unixPtr(sub.CurrentEnd),
		Payload:        payload,
	}

	ev.EventID = strings.TrimSpace(header.Get("X-Razorpay-Event-Id"))
	if ev.EventID == "" {
		entityID := firstNonEmpty(sub.ID, pay.ID)
		ev.EventID = fmt.Sprintf("%s:%s:%d", body.Event, entityID, body.CreatedAt)
	}
	if ev.Kind != model.EventIgnored && ev.SubscriptionID == "" && ev.CustomerID == "" {
		ev.Kind = model.EventIgnored
	}
	return ev, nil
}

func razorpayKind(event string) model.EventKind {
	switch event {
	case "subscription.activated":
		return model.EventActivated
	case "subscription.charged":
		return model.EventPaymentSucceeded
	case "subscription.updated":
		return model.EventRenewed
	case "subscription.cancelled", "subscription.completed":
		return model.EventCanceled
	case "subscription.halted", "subscription.pending", "payment.failed":
		return model.EventPaymentFailed
	default:
		return model.EventIgnored
	}
}

type razorpayEvent struct {
	Event     string `json:"event"`
	CreatedAt int64  `json:"created_at"`
	Payload   struct {
		Subscription struct {
			Entity struct {
				ID           string `json:"id"`
				PlanID       string `json:"plan_id"`
				CustomerID   string `json:"customer_id"`
				Status       string `json:"status"`
				CurrentStart int64  `json:"current_start"`
				CurrentEnd   int64  `json:"current_end"`
			} `json:"entity"`
		} `json:"subscription"`
		Payment struct {
			Entity struct {
				ID             string `json:"id"`
				CustomerID     string `json:"customer_id"`
				SubscriptionID string `json:"subscription_id"`
				Status         string `json:"status"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
