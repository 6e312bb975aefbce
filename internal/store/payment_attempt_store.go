package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/farellandr/ridehail/internal/apperrors"
	"github.com/farellandr/ridehail/internal/models"
)

type paymentAttemptStore struct {
	db *gorm.DB
}

func (s *paymentAttemptStore) Create(ctx context.Context, attempt *models.PaymentAttempt) error {
	return translateError(s.db.WithContext(ctx).Create(attempt).Error)
}

func (s *paymentAttemptStore) UpdateStatus(ctx context.Context, paymentIntentID, status string) error {
	result := s.db.WithContext(ctx).
		Model(&models.PaymentAttempt{}).
		Where("payment_intent_id = ?", paymentIntentID).
		Update("status", status)
	return rowsAffected(result)
}

func (s *paymentAttemptStore) LinkRide(ctx context.Context, paymentIntentID string, rideID uuid.UUID) error {
	result := s.db.WithContext(ctx).
		Model(&models.PaymentAttempt{}).
		Where("payment_intent_id = ?", paymentIntentID).
		Update("ride_id", rideID)
	return rowsAffected(result)
}

// ListUnlinked returns attempts created in [createdAfter, createdBefore) that
// have no ride, were never reported and were not canceled. Attempts never
// checked come first, then the least recently checked.
func (s *paymentAttemptStore) ListUnlinked(ctx context.Context, createdAfter, createdBefore time.Time, limit int) ([]models.PaymentAttempt, error) {
	var attempts []models.PaymentAttempt
	err := s.db.WithContext(ctx).
		Where("ride_id IS NULL AND orphan_reported_at IS NULL").
		Where("status <> ?", "canceled").
		Where("created_at >= ? AND created_at < ?", createdAfter, createdBefore).
		Order("last_checked_at ASC NULLS FIRST").
		Order("created_at ASC").
		Limit(limit).
		Find(&attempts).Error
	if err != nil {
		return nil, translateError(err)
	}
	return attempts, nil
}

func (s *paymentAttemptStore) MarkOrphanReported(ctx context.Context, paymentIntentID string, at time.Time) error {
	result := s.db.WithContext(ctx).
		Model(&models.PaymentAttempt{}).
		Where("payment_intent_id = ? AND orphan_reported_at IS NULL", paymentIntentID).
		Update("orphan_reported_at", at)
	return rowsAffected(result)
}

func (s *paymentAttemptStore) MarkChecked(ctx context.Context, paymentIntentIDs []string, at time.Time) error {
	if len(paymentIntentIDs) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).
		Model(&models.PaymentAttempt{}).
		Where("payment_intent_id IN ?", paymentIntentIDs).
		Update("last_checked_at", at).Error
	return translateError(err)
}

func rowsAffected(result *gorm.DB) error {
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
