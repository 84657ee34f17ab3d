package repository

import (
	"context"

	"career-advisor-platform/internal/domain/model"
)

type PaymentEventRepository interface {
	// InsertIfAbsent inserts the event keyed by (provider, provider event id).
	// It reports false when the event was already recorded.
	InsertIfAbsent(ctx context.Context, tx Tx, ev *model.PaymentEvent) (bool, error)
	// Update persists the resolution fields (user, review flag) of a recorded event.
	Update(ctx context.Context, tx Tx, ev *model.PaymentEvent) error
	FindByProviderEventID(ctx context.Context, tx Tx, provider model.PaymentProvider, providerEventID string) (*model.PaymentEvent, error)
	ListNeedsReview(ctx context.Context, tx Tx, limit int) ([]*model.PaymentEvent, error)
}
