// Package idempotency remembers responses by Idempotency-Key so a retried
// request replays the first answer instead of charging or writing twice.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

const (
	StateInFlight  = "in_flight"
	StateCompleted = "completed"
)

const DefaultTTL = 24 * time.Hour

type Record struct {
	State       string    `json:"state"`
	Fingerprint string    `json:"fingerprint"`
	StatusCode  int       `json:"status_code,omitempty"`
	ContentType string    `json:"content_type,omitempty"`
	Body        []byte    `json:"body,omitempty"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func (r *Record) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && now.After(r.ExpiresAt)
}

// Store keeps one Record per key.
//
// Reserve stores an in-flight record when key is free and returns (nil, true).
// When key is taken it returns the stored record and false.
type Store interface {
	Reserve(ctx context.Context, key, fingerprint string, ttl time.Duration) (*Record, bool, error)
	Complete(ctx context.Context, key string, record Record, ttl time.Duration) error
	Release(ctx context.Context, key string) error
}

// Fingerprint identifies the request a key was first used with.
func Fingerprint(method, path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}
