package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// File is the metadata row of one stored blob. StoragePath is relative to
// the blob root and always uses forward slashes.
type File struct {
	ID            string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID        string    `gorm:"type:varchar(36);not null;index:idx_files_user_created,priority:1" json:"user_id"`
	User          *User     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Filename      string    `gorm:"type:varchar(255);not null" json:"filename"`
	FilenameLower string    `gorm:"type:varchar(255);not null;default:''" json:"-"`
	StoragePath   string    `gorm:"type:varchar(512);not null;uniqueIndex" json:"storage_path"`
	ThumbnailPath string    `gorm:"type:varchar(512)" json:"-"`
	MimeType      string    `gorm:"type:varchar(100);not null" json:"mime_type"`
	Size          int64     `gorm:"not null" json:"size"`
	CreatedAt     time.Time `gorm:"index:idx_files_user_created,priority:2" json:"created_at"`
}

// BeforeCreate stores the search key folded with Go's Unicode case mapping,
// since SQLite's LOWER only folds ASCII.
func (f *File) BeforeCreate(tx *gorm.DB) error {
	f.FilenameLower = strings.ToLower(f.Filename)
	return nil
}
