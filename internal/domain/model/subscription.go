package model

import (
	"strings"
	"time"

	"career-advisor-platform/internal/domain"
)

type SubscriptionStatus string

const (
	SubscriptionStatusActive        SubscriptionStatus = "active"
	SubscriptionStatusCanceled      SubscriptionStatus = "canceled"
	SubscriptionStatusExpired       SubscriptionStatus = "expired"
	SubscriptionStatusPaymentFailed SubscriptionStatus = "payment_failed"
	SubscriptionStatusPending       SubscriptionStatus = "pending"
)

func ParseSubscriptionStatus(s string) (SubscriptionStatus, error) {
	switch st := SubscriptionStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case SubscriptionStatusActive, SubscriptionStatusCanceled, SubscriptionStatusExpired,
		SubscriptionStatusPaymentFailed, SubscriptionStatusPending:
		return st, nil
	default:
		return "", domain.ErrInvalidArgument
	}
}

// RetainsTier reports whether a paid tier may be stored alongside the status.
// payment_failed keeps the tier so the user can recover it by fixing payment.
func (s SubscriptionStatus) RetainsTier() bool {
	return s == SubscriptionStatusActive || s == SubscriptionStatusPaymentFailed
}

type PaymentProvider string

const (
	ProviderNone     PaymentProvider = "none"
	ProviderStripe   PaymentProvider = "stripe"
	ProviderRazorpay PaymentProvider = "razorpay"
)

func ParsePaymentProvider(s string) (PaymentProvider, error) {
	switch p := PaymentProvider(strings.ToLower(strings.TrimSpace(s))); p {
	case ProviderStripe, ProviderRazorpay:
		return p, nil
	default:
		return "", domain.ErrUnknownProvider
	}
}

// UserSubscription is the single subscription row a user owns.
type UserSubscription struct {
	UserID                 string             `json:"userId"`
	Tier                   TierID             `json:"tier"`
	Status                 SubscriptionStatus `json:"status"`
	Provider               PaymentProvider    `json:"paymentProvider"`
	ProviderCustomerID     string             `json:"providerCustomerId,omitempty"`
	ProviderSubscriptionID string             `json:"providerSubscriptionId,omitempty"`
	CurrentPeriodStart     *time.Time         `json:"currentPeriodStart,omitempty"`
	CurrentPeriodEnd       *time.Time         `json:"currentPeriodEnd,omitempty"`
	CreatedAt              time.Time          `json:"createdAt"`
	UpdatedAt              time.Time          `json:"updatedAt"`
}

// DefaultSubscription is what a user without a stored row is treated as.
func DefaultSubscription(userID string, now time.Time) *UserSubscription {
	return &UserSubscription{
		UserID:    userID,
		Tier:      TierFree,
		Status:    SubscriptionStatusActive,
		Provider:  ProviderNone,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *UserSubscription) IsActive() bool {
	return s != nil && s.Status == SubscriptionStatusActive
}

// EffectiveTier is the tier gates and limits are evaluated against: a paid
// tier counts only while the subscription is active.
func (s *UserSubscription) EffectiveTier() TierID {
	if !s.IsActive() {
		return TierFree
	}
	return s.Tier
}

// Validate checks the tier/status invariant.
func (s *UserSubscription) Validate() error {
	if s == nil || s.UserID == "" {
		return domain.ErrInvalidArgument
	}
	if _, err := ParseTierID(string(s.Tier)); err != nil {
		return err
	}
	if _, err := ParseSubscriptionStatus(string(s.Status)); err != nil {
		return err
	}
	if !s.Status.RetainsTier() && s.Tier != TierFree {
		return domain.ErrSubscriptionInvalid
	}
	return nil
}

// LinkProvider records the provider identifiers without changing tier or status.
func (s *UserSubscription) LinkProvider(p PaymentProvider, customerID, subscriptionID string) {
	s.Provider = p
	if customerID != "" {
		s.ProviderCustomerID = customerID
	}
	if subscriptionID != "" {
		s.ProviderSubscriptionID = subscriptionID
	}
}

func (s *UserSubscription) Activate(tier TierID, start, end *time.Time, now time.Time) {
	s.Tier = tier
	s.Status = SubscriptionStatusActive
	s.setPeriod(start, end)
	s.UpdatedAt = now
}

func (s *UserSubscription) Renew(start, end *time.Time, now time.Time) {
	s.setPeriod(start, end)
	s.UpdatedAt = now
}

// Cancel downgrades to free and closes the current period at now.
func (s *UserSubscription) Cancel(now time.Time) {
	s.Status = SubscriptionStatusCanceled
	s.Tier = TierFree
	end := now
	s.CurrentPeriodEnd = &end
	s.UpdatedAt = now
}

func (s *UserSubscription) MarkPaymentFailed(now time.Time) {
	s.Status = SubscriptionStatusPaymentFailed
	s.UpdatedAt = now
}

// Override applies an admin-chosen tier and status, forcing free where the
// status cannot carry a paid tier.
func (s *UserSubscription) Override(tier TierID, status SubscriptionStatus, now time.Time) {
	if !status.RetainsTier() {
		tier = TierFree
	}
	s.Tier = tier
	s.Status = status
	s.UpdatedAt = now
}

func (s *UserSubscription) setPeriod(start, end *time.Time) {
	if start != nil {
		v := start.UTC()
		s.CurrentPeriodStart = &v
	}
	if end != nil {
		v := end.UTC()
		s.CurrentPeriodEnd = &v
	}
}
