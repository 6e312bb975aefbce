package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/farellandr/ridehail/internal/models"
)

type userStore struct {
	db *gorm.DB
}

func (s *userStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, translateError(err)
	}
	return &user, nil
}

func (s *userStore) FindByClerkID(ctx context.Context, clerkID string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("clerk_id = ?", clerkID).First(&user).Error; err != nil {
		return nil, translateError(err)
	}
	return &user, nil
}

func (s *userStore) Create(ctx context.Context, user *models.User) error {
	return translateError(s.db.WithContext(ctx).Create(user).Error)
}

func (s *userStore) Update(ctx context.Context, user *models.User) error {
	return translateError(s.db.WithContext(ctx).Save(user).Error)
}
