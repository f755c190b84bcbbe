package repositories

import (
	"context"

	"notebox/models"

	"gorm.io/gorm"
)

type GormFileRepository struct {
	db *gorm.DB
}

func NewGormFileRepository(db *gorm.DB) *GormFileRepository {
	return &GormFileRepository{db: db}
}

func (r *GormFileRepository) ownerQuery(db *gorm.DB, in ListFilesInput) *gorm.DB {
	query := db.Model(&models.File{}).Where("user_id = ?", in.UserID)
	if in.Query != "" {
		query = query.Where("filename_lower LIKE ? ESCAPE '!'", containsPattern(in.Query))
	}
	return query
}

func (r *GormFileRepository) Create(ctx context.Context, tx *gorm.DB, file *models.File) error {
	return useTx(ctx, r.db, tx).Create(file).Error
}

func (r *GormFileRepository) GetByID(ctx context.Context, tx *gorm.DB, fileID string) (models.File, error) {
	var file models.File
	err := useTx(ctx, r.db, tx).Where("id = ?", fileID).First(&file).Error
	return file, err
}

func (r *GormFileRepository) GetByIDAndUser(ctx context.Context, tx *gorm.DB, fileID string, userID string) (models.File, error) {
	var file models.File
	err := useTx(ctx, r.db, tx).Where("id = ? AND user_id = ?", fileID, userID).First(&file).Error
	return file, err
}

func (r *GormFileRepository) GetByIDsAndUser(ctx context.Context, tx *gorm.DB, userID string, fileIDs []string) ([]models.File, error) {
	if len(fileIDs) == 0 {
		return nil, nil
	}
	var files []models.File
	err := useTx(ctx, r.db, tx).Where("user_id = ? AND id IN ?", userID, fileIDs).Find(&files).Error
	return files, err
}

func (r *GormFileRepository) CountByUser(ctx context.Context, tx *gorm.DB, in ListFilesInput) (int64, error) {
	var total int64
	err := r.ownerQuery(useTx(ctx, r.db, tx), in).Count(&total).Error
	return total, err
}

// ListByUser returns the newest files first; ties on created_at fall back to
// id so that pages never overlap.
func (r *GormFileRepository) ListByUser(ctx context.Context, tx *gorm.DB, in ListFilesInput) ([]models.File, error) {
	var files []models.File
	err := r.ownerQuery(useTx(ctx, r.db, tx), in).
		Order("created_at DESC").
		Order("id DESC").
		Offset(in.Offset).
		Limit(in.Limit).
		Find(&files).Error
	return files, err
}

func (r *GormFileRepository) DeleteByIDAndUser(ctx context.Context, tx *gorm.DB, fileID string, userID string) (int64, error) {
	result := useTx(ctx, r.db, tx).Where("id = ? AND user_id = ?", fileID, userID).Delete(&models.File{})
	return result.RowsAffected, result.Error
}
