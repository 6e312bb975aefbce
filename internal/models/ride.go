package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	PaymentStatusPaid    = "paid"
	PaymentStatusPending = "pending"
)

// Ride is written after the rider's payment sheet reports success.
// PaymentIntentID is optional; older clients do not send it. At most one
// ride can be recorded per payment intent.
type Ride struct {
	ID                   uuid.UUID `gorm:"type:uuid;primary_key;column:ride_id" json:"ride_id"`
	OriginAddress        string    `gorm:"not null" json:"origin_address"`
	DestinationAddress   string    `gorm:"not null" json:"destination_address"`
	OriginLatitude       float64   `gorm:"type:decimal(9,6);not null" json:"origin_latitude"`
	OriginLongitude      float64   `gorm:"type:decimal(9,6);not null" json:"origin_longitude"`
	DestinationLatitude  float64   `gorm:"type:decimal(9,6);not null" json:"destination_latitude"`
	DestinationLongitude float64   `gorm:"type:decimal(9,6);not null" json:"destination_longitude"`
	RideTime             int       `gorm:"not null" json:"ride_time"`
	FarePrice            int64     `gorm:"not null" json:"fare_price"`
	PaymentStatus        string    `gorm:"not null" json:"payment_status"`
	DriverID             int64     `gorm:"not null;index" json:"driver_id"`
	UserID               string    `gorm:"not null;index" json:"user_id"`
	PaymentIntentID      *string   `gorm:"uniqueIndex" json:"payment_intent_id,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
}

func (ride *Ride) BeforeCreate(tx *gorm.DB) (err error) {
	if ride.ID == uuid.Nil {
		ride.ID = uuid.New()
	}
	return
}
