package model

import (
	"time"

	"gorm.io/gorm"
)

// Tag is a shared label. NameKey is the lower-cased name and is unique.
type Tag struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Name      string    `gorm:"size:64;not null" json:"name"`
	NameKey   string    `gorm:"size:64;not null;uniqueIndex:idx_tag_name_key" json:"-"`
	Color     string    `gorm:"size:7;not null;default:'#6b7280'" json:"color"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (t *Tag) BeforeCreate(*gorm.DB) error {
	if t.ID == "" {
		t.ID = newID()
	}
	return nil
}

// PageTag joins pages and tags.
type PageTag struct {
	PageID    string    `gorm:"primaryKey;size:36" json:"page_id"`
	TagID     string    `gorm:"primaryKey;size:36;index:idx_page_tag_tag" json:"tag_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// QuestTag joins quests and tags.
type QuestTag struct {
	QuestID   string    `gorm:"primaryKey;size:36" json:"quest_id"`
	TagID     string    `gorm:"primaryKey;size:36;index:idx_quest_tag_tag" json:"tag_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
