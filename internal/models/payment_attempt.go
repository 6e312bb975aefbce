package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentAttempt mirrors a processor payment intent so that a captured
// charge without a ride can be found later. LastCheckedAt is when the
// reconciler last asked the processor about it.
type PaymentAttempt struct {
	ID               uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primary_key" json:"id"`
	PaymentIntentID  string     `gorm:"unique;not null" json:"payment_intent_id"`
	CustomerID       string     `gorm:"not null;index" json:"customer_id"`
	Email            string     `gorm:"not null" json:"email"`
	Amount           int64      `gorm:"not null" json:"amount"`
	Currency         string     `gorm:"not null;default:'usd'" json:"currency"`
	Status           string     `gorm:"not null" json:"status"`
	RideID           *uuid.UUID `gorm:"type:uuid" json:"ride_id,omitempty"`
	OrphanReportedAt *time.Time `json:"orphan_reported_at,omitempty"`
	LastCheckedAt    *time.Time `gorm:"index" json:"last_checked_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}
