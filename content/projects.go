package content

import (
	"context"
	"strings"
	"time"

	"github.com/kasuganosora/questfolio/model"
	"gorm.io/gorm"
)

// ProjectInput is the payload for creating a project.
type ProjectInput struct {
	Title       string  `json:"title" validate:"required,max=200"`
	Description *string `json:"description"`
	Status      string  `json:"status" validate:"omitempty,oneof=planning active in_progress on_hold completed archived"`
	Visibility  string  `json:"visibility" validate:"omitempty,oneof=public private"`
}

// ProjectPatch is a partial project update; nil fields are left untouched.
type ProjectPatch struct {
	Title       *string `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string `json:"description"`
	Status      *string `json:"status" validate:"omitempty,oneof=planning active in_progress on_hold completed archived"`
	Visibility  *string `json:"visibility" validate:"omitempty,oneof=public private"`
}

// CreateProject validates and inserts a project.
func (s *Service) CreateProject(ctx context.Context, in ProjectInput) (*model.Project, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	p := &model.Project{
		Title:       in.Title,
		Description: emptyToNil(in.Description),
		Status:      orDefault(in.Status, model.ProjectStatusPlanning),
		Visibility:  orDefault(in.Visibility, model.VisibilityPrivate),
	}
	if err := s.run(ctx, "project.create", func(db *gorm.DB) error {
		return db.Create(p).Error
	}); err != nil {
		return nil, err
	}
	s.changed(ctx, KindProject, p.ID, "create")
	return p, nil
}

// GetProject returns a project visible to the caller.
func (s *Service) GetProject(ctx context.Context, id string) (*model.Project, error) {
	var p *model.Project
	err := s.run(ctx, "project.get", func(db *gorm.DB) error {
		var err error
		p, err = findByID[model.Project](db, KindProject, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !canSee(ctx, p.Visibility) {
		return nil, &NotFoundError{Kind: KindProject, ID: id}
	}
	return p, nil
}

// ListProjects returns projects matching f, newest first. Projects have no
// type, so f.Type is rejected when set.
func (s *Service) ListProjects(ctx context.Context, f ListFilter) ([]model.Project, error) {
	if err := f.check(nil, projectStatuses); err != nil {
		return nil, err
	}
	var out []model.Project
	err := s.run(ctx, "project.list", func(db *gorm.DB) error {
		return f.apply(ctx, db.Model(&model.Project{}), "").Order("created_at DESC").Find(&out).Error
	})
	return out, err
}

// UpdateProject applies patch to the project. Concurrent edits are last-write-wins.
func (s *Service) UpdateProject(ctx context.Context, id string, patch ProjectPatch) (*model.Project, error) {
	patch.Title = trimPtr(patch.Title)
	if err := validateStruct(patch); err != nil {
		return nil, err
	}
	var p *model.Project
	err := s.tx(ctx, "project.update", func(tx *gorm.DB) error {
		var err error
		if p, err = findByID[model.Project](tx, KindProject, id); err != nil {
			return err
		}
		updates := map[string]interface{}{}
		if patch.Title != nil {
			p.Title = *patch.Title
			updates["title"] = p.Title
		}
		if patch.Description != nil {
			p.Description = emptyToNil(patch.Description)
			updates["description"] = p.Description
		}
		if patch.Status != nil {
			p.Status = *patch.Status
			updates["status"] = p.Status
		}
		if patch.Visibility != nil {
			p.Visibility = *patch.Visibility
			updates["visibility"] = p.Visibility
		}
		return applyUpdates(tx, &model.Project{}, id, updates, &p.UpdatedAt)
	})
	if err != nil {
		return nil, err
	}
	s.changed(ctx, KindProject, id, "update")
	return p, nil
}

// DeleteProject removes the project with its issues and page connections.
func (s *Service) DeleteProject(ctx context.Context, id string) error {
	err := s.tx(ctx, "project.delete", func(tx *gorm.DB) error {
		if _, err := findByID[model.Project](tx, KindProject, id); err != nil {
			return err
		}
		if err := deleteParentRefs(tx, model.ParentProject, id); err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&model.Project{}).Error
	})
	if err != nil {
		return err
	}
	s.changed(ctx, KindProject, id, "delete")
	return nil
}

// deleteParentRefs removes issues and page connections that point at a
// project or quest.
func deleteParentRefs(tx *gorm.DB, kind, id string) error {
	if err := tx.Where("attached_to_type = ? AND attached_to_id = ?", kind, id).
		Delete(&model.Issue{}).Error; err != nil {
		return err
	}
	return tx.Where("connected_to_type = ? AND connected_to_id = ?", kind, id).
		Delete(&model.PageConnection{}).Error
}

// applyUpdates writes a column map for one row and stamps updated_at.
func applyUpdates(tx *gorm.DB, m interface{}, id string, updates map[string]interface{}, updatedAt *time.Time) error {
	if len(updates) == 0 {
		return nil
	}
	now := time.Now()
	updates["updated_at"] = now
	if err := tx.Model(m).Where("id = ?", id).Updates(updates).Error; err != nil {
		return err
	}
	*updatedAt = now
	return nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
