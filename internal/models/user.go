package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is keyed by the identity provider's user id (ClerkID).
type User struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	FirstName   string    `gorm:"not null" json:"first_name"`
	LastName    string    `gorm:"not null" json:"last_name"`
	Email       string    `gorm:"unique;not null" json:"email"`
	PhoneNumber *string   `json:"phone_number"`
	ClerkID     string    `gorm:"unique;not null" json:"clerk_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (user *User) BeforeCreate(tx *gorm.DB) (err error) {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	return
}
