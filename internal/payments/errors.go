package payments

import (
	"errors"
	"net/http"

	"github.com/stripe/stripe-go/v74"

	"github.com/farellandr/ridehail/internal/apperrors"
)

type Kind string

const (
	KindCardDeclined   Kind = "card_declined"
	KindInvalidRequest Kind = "invalid_request"
	KindIdempotency    Kind = "idempotency_conflict"
	KindUnavailable    Kind = "upstream_unavailable"
	KindUpstream       Kind = "upstream_error"
)

const serviceName = "stripe"

// Error is a processor failure tagged with its kind. Code and DeclineCode are
// copied from the processor when it sent them.
type Error struct {
	Op          string
	Kind        Kind
	Code        string
	DeclineCode string
	Message     string
	Err         error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether the same call may succeed later without changes.
func (e *Error) Retryable() bool {
	return e.Kind == KindUnavailable
}

// classify turns an SDK error into an *Error wrapped as an apperrors.UpstreamError.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	perr := &Error{Op: op, Err: err, Message: err.Error(), Kind: KindUnavailable}

	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		perr.Code = string(stripeErr.Code)
		perr.DeclineCode = string(stripeErr.DeclineCode)
		if stripeErr.Msg != "" {
			perr.Message = stripeErr.Msg
		}
		perr.Kind = kindOf(stripeErr)
	}

	return apperrors.Upstream(serviceName, string(perr.Kind), perr)
}

func kindOf(err *stripe.Error) Kind {
	switch string(err.Type) {
	case "card_error":
		return KindCardDeclined
	case "idempotency_error":
		return KindIdempotency
	case "invalid_request_error":
		if err.HTTPStatusCode == http.StatusTooManyRequests {
			return KindUnavailable
		}
		return KindInvalidRequest
	}
	if err.HTTPStatusCode == http.StatusTooManyRequests || err.HTTPStatusCode >= http.StatusInternalServerError {
		return KindUnavailable
	}
	return KindUpstream
}

// AsError extracts the processor error from err, if any.
func AsError(err error) (*Error, bool) {
	var perr *Error
	ok := errors.As(err, &perr)
	return perr, ok
}
