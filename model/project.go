package model

import (
	"time"

	"gorm.io/gorm"
)

// ProjectStatus is the lifecycle state of a project.
type ProjectStatus = string

const (
	ProjectStatusPlanning   ProjectStatus = "planning"
	ProjectStatusActive     ProjectStatus = "active"
	ProjectStatusInProgress ProjectStatus = "in_progress"
	ProjectStatusOnHold     ProjectStatus = "on_hold"
	ProjectStatusCompleted  ProjectStatus = "completed"
	ProjectStatusArchived   ProjectStatus = "archived"
)

// Project is a portfolio project. Issues and page connections may point at it.
type Project struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	Title       string    `gorm:"size:200;not null" json:"title"`
	Description *string   `gorm:"type:text" json:"description"`
	Status      string    `gorm:"size:20;not null;index:idx_project_status" json:"status"`
	Visibility  string    `gorm:"size:10;not null;index:idx_project_visibility" json:"visibility"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *Project) BeforeCreate(*gorm.DB) error {
	if p.ID == "" {
		p.ID = newID()
	}
	return nil
}
