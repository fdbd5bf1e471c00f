package model

import (
	"time"

	"gorm.io/gorm"
)

// PageType is the kind of content document.
type PageType = string

const (
	PageTypeBlog    PageType = "blog"
	PageTypeDevlog  PageType = "devlog"
	PageTypeNotes   PageType = "notes"
	PageTypeProject PageType = "project"
)

// Page is a markdown content document.
type Page struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	Title      string    `gorm:"size:200;not null" json:"title"`
	Slug       *string   `gorm:"size:200;uniqueIndex:idx_page_slug" json:"slug"`
	PageType   string    `gorm:"size:10;not null;index:idx_page_type" json:"page_type"`
	Summary    *string   `gorm:"type:text" json:"summary"`
	Content    string    `gorm:"type:text" json:"content"`
	Visibility string    `gorm:"size:10;not null;index:idx_page_visibility" json:"visibility"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *Page) BeforeCreate(*gorm.DB) error {
	if p.ID == "" {
		p.ID = newID()
	}
	return nil
}

// PageConnection links a page to a quest or a project.
type PageConnection struct {
	ID              string    `gorm:"primaryKey;size:36" json:"id"`
	PageID          string    `gorm:"size:36;not null;uniqueIndex:idx_page_conn" json:"page_id"`
	ConnectedToType string    `gorm:"size:10;not null;uniqueIndex:idx_page_conn;index:idx_conn_target" json:"connected_to_type"`
	ConnectedToID   string    `gorm:"size:36;not null;uniqueIndex:idx_page_conn;index:idx_conn_target" json:"connected_to_id"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (c *PageConnection) BeforeCreate(*gorm.DB) error {
	if c.ID == "" {
		c.ID = newID()
	}
	return nil
}
