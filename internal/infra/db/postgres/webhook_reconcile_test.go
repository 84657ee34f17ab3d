//go:build integration

package postgres

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"career-advisor-platform/internal/domain"
	"career-advisor-platform/internal/domain/catalog"
	"career-advisor-platform/internal/domain/model"
	"career-advisor-platform/internal/domain/ports/adapter"
	"career-advisor-platform/internal/domain/ports/repository"
	"career-advisor-platform/internal/infra/logging"
	"career-advisor-platform/internal/usecase"
)

// replayGateway returns the event registered under the raw payload.
type replayGateway struct {
	mu     sync.Mutex
	events map[string]*model.WebhookEvent
}

var _ adapter.PaymentGateway = (*replayGateway)(nil)

func (g *replayGateway) Name() model.PaymentProvider { return model.ProviderStripe }

func (g *replayGateway) EnsureCustomer(context.Context, adapter.CustomerRequest) (string, error) {
	return "", domain.ErrPaymentUnavailable
}

func (g *replayGateway) CreateCheckout(context.Context, adapter.CheckoutRequest) (adapter.CheckoutResponse, error) {
	return adapter.CheckoutResponse{}, domain.ErrPaymentUnavailable
}

func (g *replayGateway) ParseWebhook(payload []byte, _ http.Header) (*model.WebhookEvent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	ev, ok := g.events[string(payload)]
	if !ok {
		return nil, domain.ErrInvalidSignature
	}
	cp := *ev
	cp.Provider = model.ProviderStripe
	cp.Payload = payload
	return &cp, nil
}

func (g *replayGateway) add(ev *model.WebhookEvent) []byte {
	payload := []byte(fmt.Sprintf(`{"id":%q}`, ev.EventID))
	g.mu.Lock()
	g.events[string(payload)] = ev
	g.mu.Unlock()
	return payload
}

func newReconciler(t *testing.T, gw adapter.PaymentGateway, subs repository.SubscriptionRepository) usecase.WebhookUseCase {
	t.Helper()
	prices, err := catalog.NewPriceTable([]catalog.PriceEntry{
		{Provider: model.ProviderStripe, Tier: model.TierPremium, Cycle: model.CycleMonthly, PriceID: "price_premium_m"},
	})
	if err != nil {
		t.Fatalf("price table: %v", err)
	}
	logger := zerolog.New(io.Discard)
	return usecase.NewWebhookUseCase(catalog.Default(), prices, []adapter.PaymentGateway{gw},
		subs, NewPaymentEventRepo(testPool), NewCheckoutRepo(testPool), NewTxManager(testPool),
		logging.NewRateLimited(&logger, time.Minute, nil), nil, &logger)
}

func TestWebhookReconcile_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}
	ctx := context.Background()

	t.Run("first-time subscriber keeps the paid tier when checkout and activation race", func(t *testing.T) {
		cleanup(t)
		gw := &replayGateway{events: map[string]*model.WebhookEvent{}}
		subs := NewSubscriptionRepo(testPool)
		uc := newReconciler(t, gw, subs)
		checkouts := NewCheckoutRepo(testPool)
		started := time.Now().UTC().Add(-time.Minute).Truncate(time.Microsecond)
		end := started.AddDate(0, 1, 0)

		const users = 20
		type pair struct{ completed, created []byte }
		pairs := make([]pair, users)
		for i := 0; i < users; i++ {
			uid := fmt.Sprintf("user-%02d", i)
			cus, sub := "cus_"+uid, "sub_"+uid
			cs, err := model.NewCheckoutSession("chk_"+uid, uid, "", model.ProviderStripe, model.TierPremium, model.CycleMonthly, started)
			if err != nil {
				t.Fatal(err)
			}
			cs.ProviderCustomerID = cus
			if err := checkouts.Save(ctx, nil, cs); err != nil {
				t.Fatalf("save checkout: %v", err)
			}
			pairs[i] = pair{
				completed: gw.add(&model.WebhookEvent{
					EventID: "evt_done_" + uid, Type: "checkout.session.completed", Kind: model.EventCheckoutCompleted,
					CustomerID: cus, SubscriptionID: sub,
				}),
				created: gw.add(&model.WebhookEvent{
					EventID: "evt_new_" + uid, Type: "customer.subscription.created", Kind: model.EventActivated,
					CustomerID: cus, SubscriptionID: sub, PriceID: "price_premium_m", PeriodStart: &started, PeriodEnd: &end,
				}),
			}
		}

		var wg sync.WaitGroup
		errs := make(chan error, users*2)
		gate := make(chan struct{})
		for _, p := range pairs {
			for _, payload := range [][]byte{p.completed, p.created} {
				wg.Add(1)
				go func(payload []byte) {
					defer wg.Done()
					<-gate
					if _, err := uc.HandleWebhook(ctx, "stripe", payload, http.Header{}); err != nil {
						errs <- err
					}
				}(payload)
			}
		}
		close(gate)
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Errorf("HandleWebhook: %v", err)
		}

		for i := 0; i < users; i++ {
			uid := fmt.Sprintf("user-%02d", i)
			got, err := subs.FindByUserID(ctx, nil, uid)
			if err != nil {
				t.Fatalf("%s: %v", uid, err)
			}
			if got.Tier != model.TierPremium || got.Status != model.SubscriptionStatusActive {
				t.Errorf("%s: expected premium/active, got %s/%s", uid, got.Tier, got.Status)
			}
			if got.ProviderSubscriptionID != "sub_"+uid {
				t.Errorf("%s: expected linked subscription, got %q", uid, got.ProviderSubscriptionID)
			}
		}
	})

	t.Run("failed write rolls back the event so redelivery applies", func(t *testing.T) {
		cleanup(t)
		gw := &replayGateway{events: map[string]*model.WebhookEvent{}}
		store := NewSubscriptionRepo(testPool)
		if err := store.Save(ctx, nil, stripeRow("user-rb")); err != nil {
			t.Fatal(err)
		}
		flaky := &failingSaveRepo{subscriptionRepo: store, failures: 1}
		uc := newReconciler(t, gw, flaky)
		payload := gw.add(&model.WebhookEvent{
			EventID: "evt_cancel_rb", Type: "customer.subscription.deleted", Kind: model.EventCanceled,
			SubscriptionID: "sub_user-rb",
		})

		if _, err := uc.HandleWebhook(ctx, "stripe", payload, http.Header{}); err == nil {
			t.Fatal("expected the failed write to surface as an error")
		}
		if _, err := NewPaymentEventRepo(testPool).FindByProviderEventID(ctx, nil, model.ProviderStripe, "evt_cancel_rb"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected event row to be rolled back, got %v", err)
		}

		res, err := uc.HandleWebhook(ctx, "stripe", payload, http.Header{})
		if err != nil || res.Outcome != usecase.OutcomeApplied {
			t.Fatalf("expected redelivery to apply, got %s (%v)", res.Outcome, err)
		}
		got, _ := store.FindByUserID(ctx, nil, "user-rb")
		if got.Status != model.SubscriptionStatusCanceled || got.Tier != model.TierFree {
			t.Errorf("expected canceled free row, got %s/%s", got.Tier, got.Status)
		}
	})
}

func TestTxManager_RollsBackOnError(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}
	cleanup(t)
	ctx := context.Background()
	repo := NewSubscriptionRepo(testPool)
	boom := errors.New("boom")

	err := NewTxManager(testPool).WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if _, _, err := repo.EnsureForUpdate(ctx, tx, "user-tx", time.Now().UTC()); err != nil {
			return err
		}
		return boom
	})

	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error unchanged, got %v", err)
	}
	if _, err := repo.FindByUserID(ctx, nil, "user-tx"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected no committed row, got %v", err)
	}
}

func stripeRow(userID string) *model.UserSubscription {
	now := time.Now().UTC().Truncate(time.Microsecond)
	s := model.DefaultSubscription(userID, now)
	s.LinkProvider(model.ProviderStripe, "cus_"+userID, "sub_"+userID)
	s.Activate(model.TierBasic, nil, nil, now)
	return s
}

// failingSaveRepo fails the first Save calls after everything else in the
// transaction succeeded.
type failingSaveRepo struct {
	*subscriptionRepo
	mu       sync.Mutex
	failures int
}

func (r *failingSaveRepo) Save(ctx context.Context, tx repository.Tx, s *model.UserSubscription) error {
	r.mu.Lock()
	fail := r.failures > 0
	if fail {
		r.failures--
	}
	r.mu.Unlock()
	if fail {
		return fmt.Errorf("%w: simulated write failure", domain.ErrOperationFailed)
	}
	return r.subscriptionRepo.Save(ctx, tx, s)
}
