package repository

import (
	"context"

	"career-advisor-platform/internal/domain/model"
)

type CheckoutSessionRepository interface {
	Save(ctx context.Context, tx Tx, cs *model.CheckoutSession) error
	// FindLatestByProviderRef matches on provider subscription id first, then customer id.
	FindLatestByProviderRef(ctx context.Context, tx Tx, provider model.PaymentProvider, subscriptionID, customerID string) (*model.CheckoutSession, error)
	FindLatestByUser(ctx context.Context, tx Tx, userID string) (*model.CheckoutSession, error)
}
