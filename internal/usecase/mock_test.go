//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"career-advisor-platform/internal/domain"
	"career-advisor-platform/internal/domain/model"
	"career-advisor-platform/internal/domain/ports/adapter"
	"career-advisor-platform/internal/domain/ports/repository"
	"career-advisor-platform/internal/infra/logging"
)

// -----------------------------
// Utilities
// -----------------------------

var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

func newTestWarn() *logging.RateLimited {
	return logging.NewRateLimited(newTestLogger(), time.Minute, clock)
}

func activeSub(userID string, tier model.TierID) *model.UserSubscription {
	s := model.DefaultSubscription(userID, fixedNow.Add(-24*time.Hour))
	s.Tier = tier
	return s
}

// =============================
// Repositories
// =============================

// ---- Mock SubscriptionRepository ----

type MockSubscriptionRepo struct {
	mu   sync.Mutex
	data map[string]*model.UserSubscription

	FindByUserIDFunc    func(ctx context.Context, tx repository.Tx, userID string) (*model.UserSubscription, error)
	EnsureForUpdateFunc func(ctx context.Context, tx repository.Tx, userID string, at time.Time) (*model.UserSubscription, bool, error)
	SaveFunc            func(ctx context.Context, tx repository.Tx, s *model.UserSubscription) error
}

var _ repository.SubscriptionRepository = (*MockSubscriptionRepo)(nil)

func NewMockSubscriptionRepo() *MockSubscriptionRepo {
	return &MockSubscriptionRepo{data: map[string]*model.UserSubscription{}}
}

// Seed stores a copy of s.
func (r *MockSubscriptionRepo) Seed(s *model.UserSubscription) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.data[s.UserID] = &cp
}

// Get returns a copy of the stored row, or nil.
func (r *MockSubscriptionRepo) Get(userID string) *model.UserSubscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.data[userID]
	if !ok {
		return nil
	}
	cp := *s
	return &cp
}

func (r *MockSubscriptionRepo) FindByUserID(ctx context.Context, tx repository.Tx, userID string) (*model.UserSubscription, error) {
	if r.FindByUserIDFunc != nil {
		return r.FindByUserIDFunc(ctx, tx, userID)
	}
	if s := r.Get(userID); s != nil {
		return s, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockSubscriptionRepo) EnsureForUpdate(ctx context.Context, tx repository.Tx, userID string, at time.Time) (*model.UserSubscription, bool, error) {
	if r.EnsureForUpdateFunc != nil {
		return r.EnsureForUpdateFunc(ctx, tx, userID, at)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.data[userID]
	created := !ok
	if created {
		s = model.DefaultSubscription(userID, at)
		r.data[userID] = s
	}
	cp := *s
	return &cp, created, nil
}

func (r *MockSubscriptionRepo) snapshot() map[string]model.UserSubscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]model.UserSubscription, len(r.data))
	for k, v := range r.data {
		out[k] = *v
	}
	return out
}

func (r *MockSubscriptionRepo) restore(snap map[string]model.UserSubscription) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data = make(map[string]*model.UserSubscription, len(snap))
	for k, v := range snap {
		r.data[k] = &v
	}
}

func (r *MockSubscriptionRepo) find(match func(*model.UserSubscription) bool) (*model.UserSubscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.data {
		if match(s) {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MockSubscriptionRepo) FindByProviderSubscriptionID(ctx context.Context, tx repository.Tx, provider model.PaymentProvider, subscriptionID string) (*model.UserSubscription, error) {
	if subscriptionID == "" {
		return nil, domain.ErrNotFound
	}
	return r.find(func(s *model.UserSubscription) bool {
		return s.Provider == provider && s.ProviderSubscriptionID == subscriptionID
	})
}

func (r *MockSubscriptionRepo) FindByProviderCustomerID(ctx context.Context, tx repository.Tx, provider model.PaymentProvider, customerID string) (*model.UserSubscription, error) {
	if customerID == "" {
		return nil, domain.ErrNotFound
	}
	return r.find(func(s *model.UserSubscription) bool {
		return s.Provider == provider && s.ProviderCustomerID == customerID
	})
}

func (r *MockSubscriptionRepo) Save(ctx context.Context, tx repository.Tx, s *model.UserSubscription) error {
	if r.SaveFunc != nil {
		return r.SaveFunc(ctx, tx, s)
	}
	if err := s.Validate(); err != nil {
		return err
	}
	r.Seed(s)
	return nil
}

func (r *MockSubscriptionRepo) CountByTier(ctx context.Context, tx repository.Tx) (map[model.TierID]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[model.TierID]int{}
	for _, s := range r.data {
		out[s.Tier]++
	}
	return out, nil
}

// ---- Mock UsageRepository ----

type MockUsageRepo struct {
	mu     sync.Mutex
	counts map[string]int64

	IncrementFunc func(ctx context.Context, tx repository.Tx, userID, metric, periodKey string, delta int64, periodEnd time.Time) (int64, error)
	GetFunc       func(ctx context.Context, tx repository.Tx, userID, metric, periodKey string) (int64, error)
}

var _ repository.UsageRepository = (*MockUsageRepo)(nil)

func NewMockUsageRepo() *MockUsageRepo {
	return &MockUsageRepo{counts: map[string]int64{}}
}

func usageKey(userID, metric, periodKey string) string {
	return userID + "|" + metric + "|" + periodKey
}

func (r *MockUsageRepo) Set(userID, metric, periodKey string, n int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[usageKey(userID, metric, periodKey)] = n
}

func (r *MockUsageRepo) Increment(ctx context.Context, tx repository.Tx, userID, metric, periodKey string, delta int64, periodEnd time.Time) (int64, error) {
	if r.IncrementFunc != nil {
		return r.IncrementFunc(ctx, tx, userID, metric, periodKey, delta, periodEnd)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	k := usageKey(userID, metric, periodKey)
	r.counts[k] += delta
	return r.counts[k], nil
}

func (r *MockUsageRepo) Get(ctx context.Context, tx repository.Tx, userID, metric, periodKey string) (int64, error) {
	if r.GetFunc != nil {
		return r.GetFunc(ctx, tx, userID, metric, periodKey)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[usageKey(userID, metric, periodKey)], nil
}

// ---- Mock PaymentEventRepository ----

type MockPaymentEventRepo struct {
	mu     sync.Mutex
	events map[string]*model.PaymentEvent

	InsertIfAbsentFunc func(ctx context.Context, tx repository.Tx, ev *model.PaymentEvent) (bool, error)
}

var _ repository.PaymentEventRepository = (*MockPaymentEventRepo)(nil)

func NewMockPaymentEventRepo() *MockPaymentEventRepo {
	return &MockPaymentEventRepo{events: map[string]*model.PaymentEvent{}}
}

func eventKey(p model.PaymentProvider, id string) string { return string(p) + "|" + id }

func (r *MockPaymentEventRepo) InsertIfAbsent(ctx context.Context, tx repository.Tx, ev *model.PaymentEvent) (bool, error) {
	if r.InsertIfAbsentFunc != nil {
		return r.InsertIfAbsentFunc(ctx, tx, ev)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	k := eventKey(ev.Provider, ev.ProviderEventID)
	if _, ok := r.events[k]; ok {
		return false, nil
	}
	cp := *ev
	r.events[k] = &cp
	return true, nil
}

func (r *MockPaymentEventRepo) Update(ctx context.Context, tx repository.Tx, ev *model.PaymentEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := eventKey(ev.Provider, ev.ProviderEventID)
	if _, ok := r.events[k]; !ok {
		return domain.ErrNotFound
	}
	cp := *ev
	r.events[k] = &cp
	return nil
}

func (r *MockPaymentEventRepo) FindByProviderEventID(ctx context.Context, tx repository.Tx, provider model.PaymentProvider, providerEventID string) (*model.PaymentEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev, ok := r.events[eventKey(provider, providerEventID)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *ev
	return &cp, nil
}

func (r *MockPaymentEventRepo) ListNeedsReview(ctx context.Context, tx repository.Tx, limit int) ([]*model.PaymentEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.PaymentEvent
	for _, ev := range r.events {
		if ev.NeedsReview {
			cp := *ev
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProviderEventID < out[j].ProviderEventID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MockPaymentEventRepo) snapshot() map[string]model.PaymentEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]model.PaymentEvent, len(r.events))
	for k, v := range r.events {
		out[k] = *v
	}
	return out
}

func (r *MockPaymentEventRepo) restore(snap map[string]model.PaymentEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = make(map[string]*model.PaymentEvent, len(snap))
	for k, v := range snap {
		r.events[k] = &v
	}
}

func (r *MockPaymentEventRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// ---- Mock CheckoutSessionRepository ----

type MockCheckoutRepo struct {
	mu       sync.Mutex
	sessions []*model.CheckoutSession

	SaveFunc func(ctx context.Context, tx repository.Tx, cs *model.CheckoutSession) error
}

var _ repository.CheckoutSessionRepository = (*MockCheckoutRepo)(nil)

func NewMockCheckoutRepo() *MockCheckoutRepo { return &MockCheckoutRepo{} }

func (r *MockCheckoutRepo) Save(ctx context.Context, tx repository.Tx, cs *model.CheckoutSession) error {
	if r.SaveFunc != nil {
		return r.SaveFunc(ctx, tx, cs)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *cs
	r.sessions = append(r.sessions, &cp)
	return nil
}

func (r *MockCheckoutRepo) latest(match func(*model.CheckoutSession) bool) (*model.CheckoutSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var best *model.CheckoutSession
	for _, cs := range r.sessions {
		if match(cs) && (best == nil || !cs.CreatedAt.Before(best.CreatedAt)) {
			best = cs
		}
	}
	if best == nil {
		return nil, domain.ErrNotFound
	}
	cp := *best
	return &cp, nil
}

func (r *MockCheckoutRepo) FindLatestByProviderRef(ctx context.Context, tx repository.Tx, provider model.PaymentProvider, subscriptionID, customerID string) (*model.CheckoutSession, error) {
	if subscriptionID != "" {
		cs, err := r.latest(func(cs *model.CheckoutSession) bool {
			return cs.Provider == provider && cs.ProviderSubscriptionID == subscriptionID
		})
		if err == nil {
			return cs, nil
		}
	}
	if customerID == "" {
		return nil, domain.ErrNotFound
	}
	return r.latest(func(cs *model.CheckoutSession) bool {
		return cs.Provider == provider && cs.ProviderCustomerID == customerID
	})
}

func (r *MockCheckoutRepo) FindLatestByUser(ctx context.Context, tx repository.Tx, userID string) (*model.CheckoutSession, error) {
	return r.latest(func(cs *model.CheckoutSession) bool { return cs.UserID == userID })
}

func (r *MockCheckoutRepo) All() []*model.CheckoutSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*model.CheckoutSession(nil), r.sessions...)
}

// ---- Mock TransactionManager ----

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

// WithTx runs fn immediately with NoTX unless WithTxFunc is set.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, repository.NoTX)
}

// rollbackOnError makes tm discard every subscription and event write of a
// transaction whose fn fails, the way TxManager rolls back.
func rollbackOnError(tm *MockTxManager, subs *MockSubscriptionRepo, events *MockPaymentEventRepo) {
	var mu sync.Mutex
	tm.WithTxFunc = func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
		mu.Lock()
		defer mu.Unlock()
		subSnap, evSnap := subs.snapshot(), events.snapshot()
		if err := fn(ctx, repository.NoTX); err != nil {
			subs.restore(subSnap)
			events.restore(evSnap)
			return err
		}
		return nil
	}
}

// =============================
// Adapters
// =============================

// ---- Mock PaymentGateway ----

type MockGateway struct {
	Provider model.PaymentProvider

	EnsureCustomerFunc func(ctx context.Context, req adapter.CustomerRequest) (string, error)
	CreateCheckoutFunc func(ctx context.Context, req adapter.CheckoutRequest) (adapter.CheckoutResponse, error)
	ParseWebhookFunc   func(payload []byte, header http.Header) (*model.WebhookEvent, error)

	mu        sync.Mutex
	Checkouts []adapter.CheckoutRequest
}

var _ adapter.PaymentGateway = (*MockGateway)(nil)

func (g *MockGateway) Name() model.PaymentProvider { return g.Provider }

func (g *MockGateway) EnsureCustomer(ctx context.Context, req adapter.CustomerRequest) (string, error) {
	if g.EnsureCustomerFunc != nil {
		return g.EnsureCustomerFunc(ctx, req)
	}
	return "cus_" + req.UserID, nil
}

func (g *MockGateway) CreateCheckout(ctx context.Context, req adapter.CheckoutRequest) (adapter.CheckoutResponse, error) {
	g.mu.Lock()
	g.Checkouts = append(g.Checkouts, req)
	g.mu.Unlock()
	if g.CreateCheckoutFunc != nil {
		return g.CreateCheckoutFunc(ctx, req)
	}
	return adapter.CheckoutResponse{SessionID: "cs_1", RedirectURL: "https://pay.example/cs_1"}, nil
}

// ParseWebhook rejects every payload unless ParseWebhookFunc is set.
func (g *MockGateway) ParseWebhook(payload []byte, header http.Header) (*model.WebhookEvent, error) {
	if g.ParseWebhookFunc != nil {
		return g.ParseWebhookFunc(payload, header)
	}
	return nil, domain.ErrInvalidSignature
}

// eventGateway returns a gateway that hands back ev for every webhook.
func eventGateway(p model.PaymentProvider, ev *model.WebhookEvent) *MockGateway {
	return &MockGateway{
		Provider: p,
		ParseWebhookFunc: func([]byte, http.Header) (*model.WebhookEvent, error) {
			cp := *ev
			cp.Provider = p
			return &cp, nil
		},
	}
}

// ---- Mock AIServiceAdapter ----

type MockAI struct {
	Reply  string
	Tokens int

	CountTokensFunc   func(ctx context.Context, model string, messages []adapter.Message) (int, error)
	ChatWithUsageFunc func(ctx context.Context, model string, messages []adapter.Message) (string, adapter.Usage, error)

	mu    sync.Mutex
	Calls int
}

var _ adapter.AIServiceAdapter = (*MockAI)(nil)

func (m *MockAI) Name() string { return "mock" }

func (m *MockAI) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	if m.CountTokensFunc != nil {
		return m.CountTokensFunc(ctx, model, messages)
	}
	return m.Tokens, nil
}

func (m *MockAI) ChatWithUsage(ctx context.Context, model string, messages []adapter.Message) (string, adapter.Usage, error) {
	m.mu.Lock()
	m.Calls++
	m.mu.Unlock()
	if m.ChatWithUsageFunc != nil {
		return m.ChatWithUsageFunc(ctx, model, messages)
	}
	return m.Reply, adapter.Usage{PromptTokens: m.Tokens, CompletionTokens: 10, TotalTokens: m.Tokens + 10}, nil
}

// ---- Mock RateLimiter ----

type MockRateLimiter struct {
	AllowFunc func(ctx context.Context, key string, limit int, window time.Duration) (bool, error)

	mu   sync.Mutex
	hits map[string]int
}

func (l *MockRateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if l.AllowFunc != nil {
		return l.AllowFunc(ctx, key, limit, window)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.hits == nil {
		l.hits = map[string]int{}
	}
	l.hits[key]++
	return l.hits[key] <= limit, nil
}
