package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrAlreadyExists   = errors.New("entity already exists")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrForbidden       = errors.New("forbidden")
	ErrUnauthenticated = errors.New("authentication required")
	ErrRateLimited     = errors.New("rate limited")

	// Storage errors
	ErrOperationFailed    = errors.New("database operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid execution context")

	// Billing errors
	ErrInvalidRequest      = errors.New("invalid_request")
	ErrPaymentUnavailable  = errors.New("payment_service_unavailable")
	ErrInvalidSignature    = errors.New("invalid webhook signature")
	ErrUnknownProvider     = errors.New("unknown payment provider")
	ErrSubscriptionInvalid = errors.New("subscription violates tier/status invariant")
)
