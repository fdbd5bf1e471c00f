package model

import (
	"time"

	"gorm.io/gorm"
)

// ParentKind is the discriminant of a polymorphic reference.
type ParentKind = string

const (
	ParentProject ParentKind = "project"
	ParentQuest   ParentKind = "quest"
)

// IssueType distinguishes defects from improvement requests.
type IssueType = string

const (
	IssueTypeIssue       IssueType = "issues"
	IssueTypeImprovement IssueType = "improvements"
)

const (
	SeverityMinor    = "minor"
	SeverityMajor    = "major"
	SeverityCritical = "critical"
)

const (
	IssueStatusOpen       = "open"
	IssueStatusInProgress = "in_progress"
	IssueStatusResolved   = "resolved"
	IssueStatusClosed     = "closed"
	IssueStatusWontFix    = "wont_fix"
)

// Issue is attached to exactly one project or quest.
type Issue struct {
	ID             string    `gorm:"primaryKey;size:36" json:"id"`
	AttachedToType string    `gorm:"size:10;not null;index:idx_issue_parent" json:"attached_to_type"`
	AttachedToID   string    `gorm:"size:36;not null;index:idx_issue_parent" json:"attached_to_id"`
	IssueType      string    `gorm:"size:20;not null" json:"issue_type"`
	Severity       *string   `gorm:"size:10" json:"severity"` // only for IssueTypeIssue
	Status         string    `gorm:"size:20;not null" json:"status"`
	Title          string    `gorm:"size:200;not null" json:"title"`
	Description    *string   `gorm:"type:text" json:"description"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (i *Issue) BeforeCreate(*gorm.DB) error {
	if i.ID == "" {
		i.ID = newID()
	}
	return nil
}
