//go:build !integration

package web

import (
	"context"
	"net/http"
	"sync"
	"time"

	"career-advisor-platform/internal/domain"
	"career-advisor-platform/internal/domain/model"
	"career-advisor-platform/internal/domain/ports/repository"
	"career-advisor-platform/internal/usecase"
)

// ---- in-memory repositories backing the real gate and usage use cases ----

type memSubs struct {
	mu   sync.Mutex
	rows map[string]*model.UserSubscription
}

var _ repository.SubscriptionRepository = (*memSubs)(nil)

func newMemSubs() *memSubs { return &memSubs{rows: map[string]*model.UserSubscription{}} }

func (m *memSubs) put(userID string, tier model.TierID, status model.SubscriptionStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := model.DefaultSubscription(userID, time.Now())
	s.Tier, s.Status = tier, status
	m.rows[userID] = s
}

func (m *memSubs) FindByUserID(ctx context.Context, tx repository.Tx, userID string) (*model.UserSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.rows[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memSubs) EnsureForUpdate(ctx context.Context, tx repository.Tx, userID string, at time.Time) (*model.UserSubscription, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.rows[userID]
	if !ok {
		s = model.DefaultSubscription(userID, at)
		m.rows[userID] = s
	}
	cp := *s
	return &cp, !ok, nil
}

func (m *memSubs) FindByProviderSubscriptionID(context.Context, repository.Tx, model.PaymentProvider, string) (*model.UserSubscription, error) {
	return nil, domain.ErrNotFound
}

func (m *memSubs) FindByProviderCustomerID(context.Context, repository.Tx, model.PaymentProvider, string) (*model.UserSubscription, error) {
	return nil, domain.ErrNotFound
}

func (m *memSubs) Save(ctx context.Context, tx repository.Tx, s *model.UserSubscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.rows[s.UserID] = &cp
	return nil
}

func (m *memSubs) CountByTier(context.Context, repository.Tx) (map[model.TierID]int, error) {
	return map[model.TierID]int{}, nil
}

type memUsage struct {
	mu     sync.Mutex
	counts map[string]int64
}

var _ repository.UsageRepository = (*memUsage)(nil)

func newMemUsage() *memUsage { return &memUsage{counts: map[string]int64{}} }

func (m *memUsage) Increment(ctx context.Context, tx repository.Tx, userID, metric, periodKey string, delta int64, periodEnd time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := userID + "|" + metric + "|" + periodKey
	m.counts[k] += delta
	return m.counts[k], nil
}

func (m *memUsage) Get(ctx context.Context, tx repository.Tx, userID, metric, periodKey string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[userID+"|"+metric+"|"+periodKey], nil
}

func (m *memUsage) set(userID, metric string, period model.Period, n int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[userID+"|"+metric+"|"+model.PeriodKey(period, time.Now())] = n
}

// ---- use case fakes ----

type fakeCheckout struct {
	StartFunc func(ctx context.Context, p *model.Principal, req usecase.CheckoutRequest) (usecase.CheckoutResult, error)
}

func (f *fakeCheckout) StartCheckout(ctx context.Context, p *model.Principal, req usecase.CheckoutRequest) (usecase.CheckoutResult, error) {
	if f.StartFunc != nil {
		return f.StartFunc(ctx, p, req)
	}
	return usecase.CheckoutResult{RedirectURL: "https://pay.example/cs_1", SessionID: "cs_1"}, nil
}

type fakeWebhooks struct {
	HandleFunc func(ctx context.Context, provider string, payload []byte, header http.Header) (usecase.WebhookResult, error)
}

func (f *fakeWebhooks) HandleWebhook(ctx context.Context, provider string, payload []byte, header http.Header) (usecase.WebhookResult, error) {
	if f.HandleFunc != nil {
		return f.HandleFunc(ctx, provider, payload, header)
	}
	return usecase.WebhookResult{Outcome: usecase.OutcomeApplied}, nil
}

type fakeSubscriptions struct {
	AdminSetFunc func(ctx context.Context, p *model.Principal, userID string, req usecase.AdminSetRequest) (*model.UserSubscription, error)
}

func (f *fakeSubscriptions) Get(ctx context.Context, userID string) (usecase.SubscriptionView, error) {
	return usecase.SubscriptionView{Subscription: model.DefaultSubscription(userID, time.Now())}, nil
}

func (f *fakeSubscriptions) AdminSet(ctx context.Context, p *model.Principal, userID string, req usecase.AdminSetRequest) (*model.UserSubscription, error) {
	if f.AdminSetFunc != nil {
		return f.AdminSetFunc(ctx, p, userID, req)
	}
	return model.DefaultSubscription(userID, time.Now()), nil
}

func (f *fakeSubscriptions) ListFlaggedEvents(ctx context.Context, p *model.Principal, limit int) ([]*model.PaymentEvent, error) {
	if !p.HasRole("admin") {
		return nil, domain.ErrForbidden
	}
	return []*model.PaymentEvent{}, nil
}

type fakeAdvisor struct {
	Degraded model.DegradedReason
}

func (f *fakeAdvisor) Chat(ctx context.Context, userID, message string) (model.Result[model.ChatReply], error) {
	if f.Degraded != model.DegradedNone {
		return model.Fallback(model.ChatReply{Reply: "fallback"}, f.Degraded), nil
	}
	return model.Real(model.ChatReply{Reply: "echo: " + message}), nil
}

func (f *fakeAdvisor) Roadmap(ctx context.Context, userID, goal string) (model.Result[model.Roadmap], error) {
	return model.Real(model.Roadmap{Goal: goal, Steps: []model.RoadmapStep{{Title: "start"}}}), nil
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }
