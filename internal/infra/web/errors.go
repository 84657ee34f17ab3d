package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"career-advisor-platform/internal/domain"
)

// Error codes in JSON error bodies.
const (
	CodeAuthRequired       = "AUTH_REQUIRED"
	CodeTierRequired       = "TIER_REQUIRED"
	CodeUsageLimitExceeded = "USAGE_LIMIT_EXCEEDED"
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodePaymentUnavailable = "PAYMENT_SERVICE_UNAVAILABLE"
	CodeRateLimited        = "RATE_LIMITED"
	CodeForbidden          = "FORBIDDEN"
	CodeNotFound           = "NOT_FOUND"
	CodeInternal           = "INTERNAL"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorBody{Code: code, Message: msg})
}

// statusFor maps domain sentinels to HTTP status and error code.
func statusFor(err error) (int, string) {
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs),
		errors.Is(err, domain.ErrInvalidRequest),
		errors.Is(err, domain.ErrInvalidArgument),
		errors.Is(err, domain.ErrInvalidSignature),
		errors.Is(err, domain.ErrUnknownProvider):
		return http.StatusBadRequest, CodeInvalidRequest
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized, CodeAuthRequired
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, CodeForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests, CodeRateLimited
	case errors.Is(err, domain.ErrPaymentUnavailable):
		return http.StatusServiceUnavailable, CodePaymentUnavailable
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

// fail writes the mapped error. Internal errors are logged and their text is
// not exposed.
func fail(w http.ResponseWriter, log *zerolog.Logger, err error) {
	status, code := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("request failed")
		msg = "internal error"
	}
	writeError(w, status, code, msg)
}
