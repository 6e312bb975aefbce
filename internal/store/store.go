// Package store persists users, rides and payment attempts in Postgres through gorm.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/farellandr/ridehail/internal/apperrors"
	"github.com/farellandr/ridehail/internal/models"
)

const uniqueViolation = "23505"

type UserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByClerkID(ctx context.Context, clerkID string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
}

type RideRepository interface {
	Create(ctx context.Context, ride *models.Ride) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Ride, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Ride, int64, error)
}

type PaymentAttemptRepository interface {
	Create(ctx context.Context, attempt *models.PaymentAttempt) error
	UpdateStatus(ctx context.Context, paymentIntentID, status string) error
	LinkRide(ctx context.Context, paymentIntentID string, rideID uuid.UUID) error
	ListUnlinked(ctx context.Context, createdAfter, createdBefore time.Time, limit int) ([]models.PaymentAttempt, error)
	MarkOrphanReported(ctx context.Context, paymentIntentID string, at time.Time) error
	MarkChecked(ctx context.Context, paymentIntentIDs []string, at time.Time) error
}

// Repositories bundles everything the handlers read and write.
type Repositories struct {
	Users           UserRepository
	Rides           RideRepository
	PaymentAttempts PaymentAttemptRepository
}

func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Users:           &userStore{db: db},
		Rides:           &rideStore{db: db},
		PaymentAttempts: &paymentAttemptStore{db: db},
	}
}

// translateError maps driver errors onto apperrors so handlers never see gorm types.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.ErrNotFound
	}
	if isUniqueViolation(err) {
		return apperrors.ErrConflict
	}
	return apperrors.Upstream("postgres", "database_error", err)
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
