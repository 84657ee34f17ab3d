package model

import (
	"time"

	"career-advisor-platform/internal/domain"
)

// CheckoutSession records a started provider checkout. It links the
// application user to provider identifiers; it is not subscription state.
type CheckoutSession struct {
	ID                     string          `json:"id"`
	UserID                 string          `json:"userId"`
	Email                  string          `json:"-"`
	Provider               PaymentProvider `json:"provider"`
	Tier                   TierID          `json:"tier"`
	BillingCycle           BillingCycle    `json:"billingCycle"`
	ProviderCustomerID     string          `json:"providerCustomerId"`
	ProviderSessionID      string          `json:"providerSessionId"`
	ProviderSubscriptionID string          `json:"providerSubscriptionId,omitempty"`
	RedirectURL            string          `json:"redirectUrl"`
	CreatedAt              time.Time       `json:"createdAt"`
}

func NewCheckoutSession(id, userID, email string, provider PaymentProvider, tier TierID, cycle BillingCycle, now time.Time) (*CheckoutSession, error) {
	if id == "" || userID == "" || !tier.IsPaid() {
		return nil, domain.ErrInvalidArgument
	}
	return &CheckoutSession{
		ID:           id,
		UserID:       userID,
		Email:        email,
		Provider:     provider,
		Tier:         tier,
		BillingCycle: cycle,
		CreatedAt:    now,
	}, nil
}
