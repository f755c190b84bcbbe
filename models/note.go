package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

type Note struct {
	ID           string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID       string    `gorm:"type:varchar(36);not null;index" json:"user_id"`
	User         *User     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Title        string    `gorm:"type:varchar(255);not null" json:"title"`
	TitleLower   string    `gorm:"type:varchar(255);not null;default:''" json:"-"`
	Content      string    `gorm:"type:text" json:"content"`
	ContentLower string    `gorm:"type:text" json:"-"`
	Files        []File    `gorm:"many2many:note_files;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (n *Note) BeforeCreate(tx *gorm.DB) error {
	n.TitleLower = strings.ToLower(n.Title)
	n.ContentLower = strings.ToLower(n.Content)
	return nil
}

// SearchUpdates returns a copy of updates with the folded search columns
// filled in for any title or content change.
func SearchUpdates(updates map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(updates)+2)
	for k, v := range updates {
		out[k] = v
	}
	if title, ok := updates["title"].(string); ok {
		out["title_lower"] = strings.ToLower(title)
	}
	if content, ok := updates["content"].(string); ok {
		out["content_lower"] = strings.ToLower(content)
	}
	return out
}
