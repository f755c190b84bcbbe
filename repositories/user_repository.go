package repositories

import (
	"context"

	"notebox/models"

	"gorm.io/gorm"
)

type GormUserRepository struct {
	db *gorm.DB
}

func NewGormUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

func (r *GormUserRepository) CountByUsername(ctx context.Context, tx *gorm.DB, username string) (int64, error) {
	var count int64
	err := useTx(ctx, r.db, tx).Model(&models.User{}).Where("username = ?", username).Count(&count).Error
	return count, err
}

func (r *GormUserRepository) Create(ctx context.Context, tx *gorm.DB, user *models.User) error {
	return useTx(ctx, r.db, tx).Create(user).Error
}

func (r *GormUserRepository) GetByUsername(ctx context.Context, tx *gorm.DB, username string) (models.User, error) {
	var user models.User
	err := useTx(ctx, r.db, tx).Where("username = ?", username).First(&user).Error
	return user, err
}

func (r *GormUserRepository) GetByID(ctx context.Context, tx *gorm.DB, userID string) (models.User, error) {
	var user models.User
	err := useTx(ctx, r.db, tx).Where("id = ?", userID).First(&user).Error
	return user, err
}
