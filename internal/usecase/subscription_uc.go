package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"career-advisor-platform/internal/domain"
	"career-advisor-platform/internal/domain/model"
	"career-advisor-platform/internal/domain/ports/repository"
	"career-advisor-platform/internal/infra/logging"
	"career-advisor-platform/internal/infra/metrics"
)

// Compile-time check
var _ SubscriptionUseCase = (*subscriptionUC)(nil)

// SubscriptionView is the user's subscription plus a checkout started after
// the last subscription change, if any.
type SubscriptionView struct {
	Subscription    *model.UserSubscription `json:"subscription"`
	PendingCheckout *model.CheckoutSession  `json:"pendingCheckout,omitempty"`
}

type AdminSetRequest struct {
	Tier   string `json:"tier" validate:"required"`
	Status string `json:"status" validate:"required"`
}

type SubscriptionUseCase interface {
	Get(ctx context.Context, userID string) (SubscriptionView, error)
	AdminSet(ctx context.Context, p *model.Principal, userID string, req AdminSetRequest) (*model.UserSubscription, error)
	ListFlaggedEvents(ctx context.Context, p *model.Principal, limit int) ([]*model.PaymentEvent, error)
}

type subscriptionUC struct {
	subs      repository.SubscriptionRepository
	checkouts repository.CheckoutSessionRepository
	events    repository.PaymentEventRepository
	tm        repository.TransactionManager
	authz     Authorizer
	now       func() time.Time
	log       *zerolog.Logger
}

func NewSubscriptionUseCase(
	subs repository.SubscriptionRepository,
	checkouts repository.CheckoutSessionRepository,
	events repository.PaymentEventRepository,
	tm repository.TransactionManager,
	authz Authorizer,
	logger *zerolog.Logger,
) *subscriptionUC {
	return &subscriptionUC{
		subs:      subs,
		checkouts: checkouts,
		events:    events,
		tm:        tm,
		authz:     authz,
		now:       time.Now,
		log:       logger,
	}
}

func (u *subscriptionUC) Get(ctx context.Context, userID string) (SubscriptionView, error) {
	if userID == "" {
		return SubscriptionView{}, domain.ErrUnauthenticated
	}
	stored := true
	sub, err := u.subs.FindByUserID(ctx, nil, userID)
	if errors.Is(err, domain.ErrNotFound) {
		sub, stored = model.DefaultSubscription(userID, u.now().UTC()), false
	} else if err != nil {
		return SubscriptionView{}, err
	}
	view := SubscriptionView{Subscription: sub}

	// A checkout is pending until a tier or status change lands after it.
	cs, err := u.checkouts.FindLatestByUser(ctx, nil, userID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
	case err != nil:
		return SubscriptionView{}, err
	case !stored || !cs.CreatedAt.Before(sub.UpdatedAt):
		view.PendingCheckout = cs
	}
	return view, nil
}

// AdminSet overrides tier and status for support cases. Statuses that cannot
// carry a paid tier force free.
func (u *subscriptionUC) AdminSet(ctx context.Context, p *model.Principal, userID string, req AdminSetRequest) (*model.UserSubscription, error) {
	defer logging.TraceDuration(u.log, "SubscriptionUC.AdminSet")()

	if p == nil {
		return nil, domain.ErrUnauthenticated
	}
	if !u.authz.IsAdmin(p) {
		return nil, domain.ErrForbidden
	}
	if userID == "" {
		return nil, domain.ErrInvalidArgument
	}
	tier, err := model.ParseTierID(req.Tier)
	if err != nil {
		return nil, err
	}
	status, err := model.ParseSubscriptionStatus(req.Status)
	if err != nil {
		return nil, err
	}

	var before model.UserSubscription
	var sub *model.UserSubscription
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		now := u.now().UTC()
		s, _, err := u.subs.EnsureForUpdate(ctx, tx, userID, now)
		if err != nil {
			return err
		}
		before = *s
		s.Override(tier, status, now)
		if err := u.subs.Save(ctx, tx, s); err != nil {
			return err
		}
		sub = s
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.IncSubscriptionTransition("admin", sub.Status)
	logging.With(ctx, u.log).Info().
		Str("audit", "subscription_override").
		Str("admin_id", p.UserID).
		Str("target_user_id", userID).
		Str("tier_before", string(before.Tier)).
		Str("status_before", string(before.Status)).
		Str("tier", string(sub.Tier)).
		Str("status", string(sub.Status)).
		Msg("admin subscription override")
	return sub, nil
}

func (u *subscriptionUC) ListFlaggedEvents(ctx context.Context, p *model.Principal, limit int) ([]*model.PaymentEvent, error) {
	if p == nil {
		return nil, domain.ErrUnauthenticated
	}
	if !u.authz.IsAdmin(p) {
		return nil, domain.ErrForbidden
	}
	return u.events.ListNeedsReview(ctx, nil, limit)
}
