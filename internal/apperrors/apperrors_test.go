package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: http.StatusOK},
		{name: "validation", err: ErrMissingFields, want: http.StatusBadRequest},
		{name: "wrapped validation", err: fmt.Errorf("bind: %w", FieldError("email", "bad email")), want: http.StatusBadRequest},
		{name: "not found", err: fmt.Errorf("user: %w", ErrNotFound), want: http.StatusNotFound},
		{name: "conflict", err: ErrConflict, want: http.StatusConflict},
		{name: "in progress", err: ErrRequestInProgress, want: http.StatusConflict},
		{name: "payment required", err: ErrPaymentRequired, want: http.StatusPaymentRequired},
		{name: "upstream", err: Upstream("stripe", "card_declined", errors.New("declined")), want: http.StatusInternalServerError},
		{name: "unknown", err: errors.New("boom"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusCode(tt.err); got != tt.want {
				t.Fatalf("StatusCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestCodeUsesUpstreamKind(t *testing.T) {
	err := fmt.Errorf("confirm: %w", Upstream("stripe", "upstream_unavailable", errors.New("dial tcp: timeout")))
	if got := Code(err); got != "upstream_unavailable" {
		t.Fatalf("expected upstream kind, got %q", got)
	}
	if got := err.Error(); got != "confirm: dial tcp: timeout" {
		t.Fatalf("expected upstream message to be preserved, got %q", got)
	}
}

func TestUpstreamNilStaysNil(t *testing.T) {
	if err := Upstream("postgres", "db_error", nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}
