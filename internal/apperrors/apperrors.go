// Package apperrors defines the error taxonomy shared by the HTTP handlers and
// the checkout flow, and maps each kind to an HTTP status.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound          = errors.New("record not found")
	ErrConflict          = errors.New("record already exists")
	ErrUserCancelled     = errors.New("payment cancelled by user")
	ErrPaymentRequired   = errors.New("payment has not been captured")
	ErrMissingFields     = NewValidationError("Missing required fields")
	ErrRequestInProgress = errors.New("request with this idempotency key is already in progress")
)

// ValidationError is a missing or malformed request field. Never retried.
type ValidationError struct {
	Message string
	Field   string
}

func NewValidationError(message string) *ValidationError {
	return &ValidationError{Message: message}
}

func FieldError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	return e.Message
}

// UpstreamError wraps a failure from the identity provider, the payment
// processor or the database. Kind is a stable code clients can branch on.
type UpstreamError struct {
	Service string
	Kind    string
	Err     error
}

func (e *UpstreamError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Service, e.Kind)
	}
	return e.Err.Error()
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Upstream tags err as coming from service. A nil err stays nil.
func Upstream(service, kind string, err error) error {
	if err == nil {
		return nil
	}
	return &UpstreamError{Service: service, Kind: kind, Err: err}
}

// StatusCode picks the HTTP status for err.
func StatusCode(err error) int {
	var validationErr *ValidationError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &validationErr):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict), errors.Is(err, ErrRequestInProgress):
		return http.StatusConflict
	case errors.Is(err, ErrPaymentRequired):
		return http.StatusPaymentRequired
	}
	return http.StatusInternalServerError
}

// Code is the machine readable code sent next to the error message.
func Code(err error) string {
	var validationErr *ValidationError
	var upstreamErr *UpstreamError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &validationErr):
		return "validation_error"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrRequestInProgress):
		return "request_in_progress"
	case errors.Is(err, ErrPaymentRequired):
		return "payment_required"
	case errors.As(err, &upstreamErr):
		return upstreamErr.Kind
	}
	return "internal_error"
}
