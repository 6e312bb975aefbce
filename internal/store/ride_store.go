package store

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/farellandr/ridehail/internal/models"
)

type rideStore struct {
	db *gorm.DB
}

func (s *rideStore) Create(ctx context.Context, ride *models.Ride) error {
	return translateError(s.db.WithContext(ctx).Create(ride).Error)
}

func (s *rideStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Ride, error) {
	var ride models.Ride
	if err := s.db.WithContext(ctx).Where("ride_id = ?", id).First(&ride).Error; err != nil {
		return nil, translateError(err)
	}
	return &ride, nil
}

func (s *rideStore) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Ride, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Ride{}).Where("user_id = ?", userID).Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, translateError(err)
	}

	var rides []models.Ride
	if err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&rides).Error; err != nil {
		return nil, 0, translateError(err)
	}
	return rides, total, nil
}
