package model

import (
	"time"
)

// EventKind is a provider event normalized for reconciliation.
type EventKind string

const (
	EventActivated         EventKind = "activated"
	EventRenewed           EventKind = "renewed"
	EventCanceled          EventKind = "canceled"
	EventPaymentSucceeded  EventKind = "payment_succeeded"
	EventPaymentFailed     EventKind = "payment_failed"
	EventCheckoutCompleted EventKind = "checkout_completed"
	EventIgnored           EventKind = "ignored"
)

// WebhookEvent is what a payment gateway hands the reconciler after the
// signature has been verified.
type WebhookEvent struct {
	Provider       PaymentProvider
	EventID        string
	Type           string
	Kind           EventKind
	CustomerID     string
	SubscriptionID string
	PriceID        string
	ProviderStatus string
	PeriodStart    *time.Time
	PeriodEnd      *time.Time
	Payload        []byte
}

// PaymentEvent is the persisted, idempotent log of processed webhooks.
type PaymentEvent struct {
	ID              string          `json:"id"`
	Provider        PaymentProvider `json:"provider"`
	ProviderEventID string          `json:"providerEventId"`
	Type            string          `json:"type"`
	Kind            EventKind       `json:"kind"`
	UserID          string          `json:"userId,omitempty"`
	NeedsReview     bool            `json:"needsReview"`
	ReviewReason    string          `json:"reviewReason,omitempty"`
	RawPayload      []byte          `json:"-"`
	ProcessedAt     time.Time       `json:"processedAt"`
}

// Flag marks the event for manual review, keeping the first reason.
func (e *PaymentEvent) Flag(reason string) {
	if !e.NeedsReview {
		e.ReviewReason = reason
	}
	e.NeedsReview = true
}
