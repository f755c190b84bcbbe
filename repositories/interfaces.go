package repositories

import (
	"context"
	"time"

	"notebox/models"

	"gorm.io/gorm"
)

type TxManager interface {
	WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type UserRepository interface {
	CountByUsername(ctx context.Context, tx *gorm.DB, username string) (int64, error)
	Create(ctx context.Context, tx *gorm.DB, user *models.User) error
	GetByUsername(ctx context.Context, tx *gorm.DB, username string) (models.User, error)
	GetByID(ctx context.Context, tx *gorm.DB, userID string) (models.User, error)
}

// ListFilesInput scopes a file listing to one owner. Query is matched as a
// case-insensitive substring of the filename; wildcards in it are literal.
type ListFilesInput struct {
	UserID string
	Query  string
	Offset int
	Limit  int
}

type FileRepository interface {
	Create(ctx context.Context, tx *gorm.DB, file *models.File) error
	GetByID(ctx context.Context, tx *gorm.DB, fileID string) (models.File, error)
	GetByIDAndUser(ctx context.Context, tx *gorm.DB, fileID string, userID string) (models.File, error)
	GetByIDsAndUser(ctx context.Context, tx *gorm.DB, userID string, fileIDs []string) ([]models.File, error)
	CountByUser(ctx context.Context, tx *gorm.DB, in ListFilesInput) (int64, error)
	ListByUser(ctx context.Context, tx *gorm.DB, in ListFilesInput) ([]models.File, error)
	DeleteByIDAndUser(ctx context.Context, tx *gorm.DB, fileID string, userID string) (int64, error)
}

type ListNotesInput struct {
	UserID string
	Query  string
	Offset int
	Limit  int
}

type NoteRepository interface {
	Create(ctx context.Context, tx *gorm.DB, note *models.Note) error
	GetByIDAndUser(ctx context.Context, tx *gorm.DB, noteID string, userID string, preloadFiles bool) (models.Note, error)
	CountByUser(ctx context.Context, tx *gorm.DB, in ListNotesInput) (int64, error)
	ListByUser(ctx context.Context, tx *gorm.DB, in ListNotesInput) ([]models.Note, error)
	UpdateByIDAndUser(ctx context.Context, tx *gorm.DB, noteID string, userID string, updates map[string]interface{}) (int64, error)
	DeleteByIDAndUser(ctx context.Context, tx *gorm.DB, noteID string, userID string) (int64, error)
	AttachFiles(ctx context.Context, tx *gorm.DB, note *models.Note, files []models.File) error
	DetachFiles(ctx context.Context, tx *gorm.DB, note *models.Note, files []models.File) error
	DeleteLinksByFile(ctx context.Context, tx *gorm.DB, fileID string) error
	DeleteLinksByNote(ctx context.Context, tx *gorm.DB, noteID string) error
}

// TokenRevocationRepository remembers revoked token ids until their tokens
// would have expired anyway.
type TokenRevocationRepository interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

type Container struct {
	TxManager   TxManager
	Users       UserRepository
	Files       FileRepository
	Notes       NoteRepository
	Revocations TokenRevocationRepository
}
