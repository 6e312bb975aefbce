// Package events publishes operator-facing payment and ride events.
package events

import (
	"context"
	"time"
)

const (
	PaymentIntentCreated = "payment.intent_created"
	PaymentConfirmed     = "payment.confirmed"
	RideCreated          = "ride.created"
	PaymentOrphaned      = "payment.orphaned"
)

const DefaultExchange = "ridehail.events"

// Publisher sends an event to the operator exchange under routingKey.
// Callers log failures and never fail a request on them.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, body interface{}) error
	Close()
}

type PaymentEvent struct {
	PaymentIntentID string    `json:"payment_intent_id"`
	CustomerID      string    `json:"customer_id,omitempty"`
	Email           string    `json:"email,omitempty"`
	Amount          int64     `json:"amount,omitempty"`
	Status          string    `json:"status"`
	OccurredAt      time.Time `json:"occurred_at"`
}

type RideEvent struct {
	RideID          string    `json:"ride_id"`
	UserID          string    `json:"user_id"`
	DriverID        int64     `json:"driver_id"`
	FarePrice       int64     `json:"fare_price"`
	PaymentIntentID string    `json:"payment_intent_id,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// OrphanEvent reports a captured payment with no ride row. An operator
// decides whether to record the ride by hand or refund.
type OrphanEvent struct {
	PaymentIntentID string    `json:"payment_intent_id"`
	UserID          string    `json:"user_id,omitempty"`
	Email           string    `json:"email,omitempty"`
	Amount          int64     `json:"amount"`
	Reason          string    `json:"reason"`
	OccurredAt      time.Time `json:"occurred_at"`
}
