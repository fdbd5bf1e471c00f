package content

import (
	"context"
	"strings"

	"github.com/kasuganosora/questfolio/model"
	"gorm.io/gorm"
)

// IssueInput is the payload for filing an issue against a project or quest.
type IssueInput struct {
	AttachedToType string  `json:"attached_to_type" validate:"required,oneof=project quest"`
	AttachedToID   string  `json:"attached_to_id" validate:"required"`
	IssueType      string  `json:"issue_type" validate:"required,oneof=issues improvements"`
	Severity       *string `json:"severity" validate:"omitempty,oneof=minor major critical"`
	Status         string  `json:"status" validate:"omitempty,oneof=open in_progress resolved closed wont_fix"`
	Title          string  `json:"title" validate:"required,max=200"`
	Description    *string `json:"description"`
}

// IssuePatch is a partial issue update. The parent cannot be changed.
type IssuePatch struct {
	IssueType   *string `json:"issue_type" validate:"omitempty,oneof=issues improvements"`
	Severity    *string `json:"severity" validate:"omitempty,oneof=minor major critical"`
	Status      *string `json:"status" validate:"omitempty,oneof=open in_progress resolved closed wont_fix"`
	Title       *string `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string `json:"description"`
}

// IssueFilter restricts ListIssues. Empty fields match everything.
type IssueFilter struct {
	ParentType string `form:"parent_type" json:"parent_type"`
	ParentID   string `form:"parent_id" json:"parent_id"`
	IssueType  string `form:"type" json:"issue_type"`
	Status     string `form:"status" json:"status"`
}

func (f IssueFilter) check() error {
	if err := checkEnum("parent_type", f.ParentType, parentKinds); err != nil {
		return err
	}
	if f.ParentID != "" && f.ParentType == "" {
		return invalid("parent_type", "is required with parent_id")
	}
	if err := checkEnum("type", f.IssueType, issueTypes); err != nil {
		return err
	}
	return checkEnum("status", f.Status, issueStatuses)
}

// CreateIssue files an issue. The parent must exist; otherwise a
// ValidationError is returned and nothing is written.
func (s *Service) CreateIssue(ctx context.Context, in IssueInput) (*model.Issue, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.AttachedToID = strings.TrimSpace(in.AttachedToID)
	in.Severity = trimPtr(in.Severity)
	if in.Severity != nil && *in.Severity == "" {
		in.Severity = nil
	}
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	iss := &model.Issue{
		AttachedToType: in.AttachedToType,
		AttachedToID:   in.AttachedToID,
		IssueType:      in.IssueType,
		Severity:       severityFor(in.IssueType, in.Severity),
		Status:         orDefault(in.Status, model.IssueStatusOpen),
		Title:          in.Title,
		Description:    emptyToNil(in.Description),
	}
	err := s.tx(ctx, "issue.create", func(tx *gorm.DB) error {
		ok, err := parentExists(tx, in.AttachedToType, in.AttachedToID)
		if err != nil {
			return err
		}
		if !ok {
			return invalid("attached_to_id", "parent not found")
		}
		return tx.Create(iss).Error
	})
	if err != nil {
		return nil, err
	}
	s.changed(ctx, KindIssue, iss.ID, "create")
	return iss, nil
}

// severityFor drops severity on improvements.
func severityFor(issueType string, sev *string) *string {
	if issueType != model.IssueTypeIssue {
		return nil
	}
	return sev
}

func parentExists(db *gorm.DB, kind, id string) (bool, error) {
	switch kind {
	case model.ParentProject:
		return exists[model.Project](db, id)
	case model.ParentQuest:
		return exists[model.Quest](db, id)
	}
	return false, nil
}

// GetIssue returns an issue whose parent is visible to the caller.
func (s *Service) GetIssue(ctx context.Context, id string) (*model.Issue, error) {
	var iss *model.Issue
	err := s.run(ctx, "issue.get", func(db *gorm.DB) error {
		var err error
		if iss, err = findByID[model.Issue](db, KindIssue, id); err != nil {
			return err
		}
		if ViewerFrom(ctx).IsPublic() {
			var n int64
			if err := publicIssues(db.Model(&model.Issue{}).Where("id = ?", id)).Count(&n).Error; err != nil {
				return err
			}
			if n == 0 {
				return &NotFoundError{Kind: KindIssue, ID: id}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return iss, nil
}

// ListIssues returns issues matching f, newest first.
func (s *Service) ListIssues(ctx context.Context, f IssueFilter) ([]model.Issue, error) {
	if err := f.check(); err != nil {
		return nil, err
	}
	var out []model.Issue
	err := s.run(ctx, "issue.list", func(db *gorm.DB) error {
		q := db.Model(&model.Issue{})
		if f.ParentType != "" {
			q = q.Where("attached_to_type = ?", f.ParentType)
		}
		if f.ParentID != "" {
			q = q.Where("attached_to_id = ?", f.ParentID)
		}
		if f.IssueType != "" {
			q = q.Where("issue_type = ?", f.IssueType)
		}
		if f.Status != "" {
			q = q.Where("status = ?", f.Status)
		}
		if ViewerFrom(ctx).IsPublic() {
			q = publicIssues(q)
		}
		return q.Order("created_at DESC").Find(&out).Error
	})
	return out, err
}

// publicIssues keeps only issues attached to public projects or quests.
func publicIssues(q *gorm.DB) *gorm.DB {
	return q.Where(
		"(attached_to_type = ? AND attached_to_id IN (SELECT id FROM projects WHERE visibility = ?)) OR "+
			"(attached_to_type = ? AND attached_to_id IN (SELECT id FROM quests WHERE visibility = ?))",
		model.ParentProject, model.VisibilityPublic, model.ParentQuest, model.VisibilityPublic)
}

// UpdateIssue applies patch. Switching to improvements clears severity.
func (s *Service) UpdateIssue(ctx context.Context, id string, patch IssuePatch) (*model.Issue, error) {
	patch.Title = trimPtr(patch.Title)
	patch.Severity = trimPtr(patch.Severity)
	if err := validateStruct(patch); err != nil {
		return nil, err
	}
	var iss *model.Issue
	err := s.tx(ctx, "issue.update", func(tx *gorm.DB) error {
		var err error
		if iss, err = findByID[model.Issue](tx, KindIssue, id); err != nil {
			return err
		}
		updates := map[string]interface{}{}
		if patch.IssueType != nil {
			iss.IssueType = *patch.IssueType
			updates["issue_type"] = iss.IssueType
		}
		if patch.Severity != nil {
			iss.Severity = emptyToNil(patch.Severity)
			updates["severity"] = iss.Severity
		}
		if iss.IssueType != model.IssueTypeIssue && iss.Severity != nil {
			iss.Severity = nil
			updates["severity"] = nil
		}
		if patch.Status != nil {
			iss.Status = *patch.Status
			updates["status"] = iss.Status
		}
		if patch.Title != nil {
			iss.Title = *patch.Title
			updates["title"] = iss.Title
		}
		if patch.Description != nil {
			iss.Description = emptyToNil(patch.Description)
			updates["description"] = iss.Description
		}
		return applyUpdates(tx, &model.Issue{}, id, updates, &iss.UpdatedAt)
	})
	if err != nil {
		return nil, err
	}
	s.changed(ctx, KindIssue, id, "update")
	return iss, nil
}

// DeleteIssue removes one issue.
func (s *Service) DeleteIssue(ctx context.Context, id string) error {
	err := s.tx(ctx, "issue.delete", func(tx *gorm.DB) error {
		if _, err := findByID[model.Issue](tx, KindIssue, id); err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&model.Issue{}).Error
	})
	if err != nil {
		return err
	}
	s.changed(ctx, KindIssue, id, "delete")
	return nil
}
