package repositories

import (
	"context"

	"notebox/models"

	"gorm.io/gorm"
)

type GormNoteRepository struct {
	db *gorm.DB
}

func NewGormNoteRepository(db *gorm.DB) *GormNoteRepository {
	return &GormNoteRepository{db: db}
}

func (r *GormNoteRepository) ownerQuery(db *gorm.DB, in ListNotesInput) *gorm.DB {
	query := db.Model(&models.Note{}).Where("user_id = ?", in.UserID)
	if in.Query != "" {
		pattern := containsPattern(in.Query)
		query = query.Where("(title_lower LIKE ? ESCAPE '!' OR content_lower LIKE ? ESCAPE '!')", pattern, pattern)
	}
	return query
}

func (r *GormNoteRepository) Create(ctx context.Context, tx *gorm.DB, note *models.Note) error {
	return useTx(ctx, r.db, tx).Omit("Files").Create(note).Error
}

func (r *GormNoteRepository) GetByIDAndUser(ctx context.Context, tx *gorm.DB, noteID string, userID string, preloadFiles bool) (models.Note, error) {
	db := useTx(ctx, r.db, tx)
	if preloadFiles {
		db = db.Preload("Files", func(db *gorm.DB) *gorm.DB {
			return db.Order("files.created_at DESC")
		})
	}
	var note models.Note
	err := db.Where("id = ? AND user_id = ?", noteID, userID).First(&note).Error
	return note, err
}

func (r *GormNoteRepository) CountByUser(ctx context.Context, tx *gorm.DB, in ListNotesInput) (int64, error) {
	var total int64
	err := r.ownerQuery(useTx(ctx, r.db, tx), in).Count(&total).Error
	return total, err
}

func (r *GormNoteRepository) ListByUser(ctx context.Context, tx *gorm.DB, in ListNotesInput) ([]models.Note, error) {
	var notes []models.Note
	err := r.ownerQuery(useTx(ctx, r.db, tx), in).
		Order("created_at DESC").
		Order("id DESC").
		Offset(in.Offset).
		Limit(in.Limit).
		Find(&notes).Error
	return notes, err
}

func (r *GormNoteRepository) UpdateByIDAndUser(ctx context.Context, tx *gorm.DB, noteID string, userID string, updates map[string]interface{}) (int64, error) {
	result := useTx(ctx, r.db, tx).Model(&models.Note{}).
		Where("id = ? AND user_id = ?", noteID, userID).
		Updates(models.SearchUpdates(updates))
	return result.RowsAffected, result.Error
}

func (r *GormNoteRepository) DeleteByIDAndUser(ctx context.Context, tx *gorm.DB, noteID string, userID string) (int64, error) {
	result := useTx(ctx, r.db, tx).Where("id = ? AND user_id = ?", noteID, userID).Delete(&models.Note{})
	return result.RowsAffected, result.Error
}

func (r *GormNoteRepository) AttachFiles(ctx context.Context, tx *gorm.DB, note *models.Note, files []models.File) error {
	if len(files) == 0 {
		return nil
	}
	return useTx(ctx, r.db, tx).Model(note).Association("Files").Append(files)
}

func (r *GormNoteRepository) DetachFiles(ctx context.Context, tx *gorm.DB, note *models.Note, files []models.File) error {
	if len(files) == 0 {
		return nil
	}
	return useTx(ctx, r.db, tx).Model(note).Association("Files").Delete(files)
}

func (r *GormNoteRepository) DeleteLinksByFile(ctx context.Context, tx *gorm.DB, fileID string) error {
	return useTx(ctx, r.db, tx).Exec("DELETE FROM note_files WHERE file_id = ?", fileID).Error
}

func (r *GormNoteRepository) DeleteLinksByNote(ctx context.Context, tx *gorm.DB, noteID string) error {
	return useTx(ctx, r.db, tx).Exec("DELETE FROM note_files WHERE note_id = ?", noteID).Error
}
