package repository

import (
	"context"
	"time"

	"career-advisor-platform/internal/domain/model"
)

// SubscriptionRepository is the port for the one-per-user subscription row.
type SubscriptionRepository interface {
	// FindByUserID returns domain.ErrNotFound when the user has no stored row.
	FindByUserID(ctx context.Context, tx Tx, userID string) (*model.UserSubscription, error)
	FindByProviderSubscriptionID(ctx context.Context, tx Tx, provider model.PaymentProvider, subscriptionID string) (*model.UserSubscription, error)
	FindByProviderCustomerID(ctx context.Context, tx Tx, provider model.PaymentProvider, customerID string) (*model.UserSubscription, error)
	// EnsureForUpdate inserts the free default row for userID unless one
	// exists, then returns the stored row locked to tx. created reports
	// whether this call inserted it.
	EnsureForUpdate(ctx context.Context, tx Tx, userID string, at time.Time) (sub *model.UserSubscription, created bool, err error)
	// Save upserts by user id.
	Save(ctx context.Context, tx Tx, sub *model.UserSubscription) error
	CountByTier(ctx context.Context, tx Tx) (map[model.TierID]int, error)
}
