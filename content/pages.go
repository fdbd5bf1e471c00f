package content

import (
	"context"
	"errors"
	"strings"

	"github.com/kasuganosora/questfolio/model"
	"gorm.io/gorm"
)

// PageInput is the payload for creating a page.
type PageInput struct {
	Title      string  `json:"title" validate:"required,max=200"`
	PageType   string  `json:"page_type" validate:"required,oneof=blog devlog notes project"`
	Slug       *string `json:"slug" validate:"omitempty,max=200,slug"`
	Summary    *string `json:"summary"`
	Content    string  `json:"content"`
	Visibility string  `json:"visibility" validate:"omitempty,oneof=public private"`
}

// PagePatch is a partial page update.
type PagePatch struct {
	Title      *string `json:"title" validate:"omitempty,min=1,max=200"`
	PageType   *string `json:"page_type" validate:"omitempty,oneof=blog devlog notes project"`
	Slug       *string `json:"slug" validate:"omitempty,max=200,slug"`
	Summary    *string `json:"summary"`
	Content    *string `json:"content"`
	Visibility *string `json:"visibility" validate:"omitempty,oneof=public private"`
}

func normSlug(s *string) *string {
	s = trimPtr(s)
	if s == nil || *s == "" {
		return nil
	}
	v := strings.ToLower(*s)
	return &v
}

// CreatePage validates and inserts a page.
func (s *Service) CreatePage(ctx context.Context, in PageInput) (*model.Page, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Slug = normSlug(in.Slug)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	p := &model.Page{
		Title:      in.Title,
		PageType:   in.PageType,
		Slug:       in.Slug,
		Summary:    emptyToNil(in.Summary),
		Content:    in.Content,
		Visibility: orDefault(in.Visibility, model.VisibilityPrivate),
	}
	err := s.run(ctx, "page.create", func(db *gorm.DB) error {
		if err := db.Create(p).Error; err != nil {
			if isUniqueViolation(err) && p.Slug != nil {
				return &DuplicateError{Kind: KindPage, Field: "slug", Value: *p.Slug}
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.changed(ctx, KindPage, p.ID, "create")
	return p, nil
}

// GetPage returns a page visible to the caller.
func (s *Service) GetPage(ctx context.Context, id string) (*model.Page, error) {
	var p *model.Page
	err := s.run(ctx, "page.get", func(db *gorm.DB) error {
		var err error
		p, err = findByID[model.Page](db, KindPage, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !canSee(ctx, p.Visibility) {
		return nil, &NotFoundError{Kind: KindPage, ID: id}
	}
	return p, nil
}

// GetPageBySlug resolves a page by its slug.
func (s *Service) GetPageBySlug(ctx context.Context, slug string) (*model.Page, error) {
	var p model.Page
	err := s.run(ctx, "page.get", func(db *gorm.DB) error {
		err := db.Where("slug = ?", strings.ToLower(slug)).First(&p).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &NotFoundError{Kind: KindPage, ID: slug}
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	if !canSee(ctx, p.Visibility) {
		return nil, &NotFoundError{Kind: KindPage, ID: slug}
	}
	return &p, nil
}

// ListPages returns pages matching f, newest first. Pages have no status.
func (s *Service) ListPages(ctx context.Context, f ListFilter) ([]model.Page, error) {
	if f.Status != "" {
		return nil, invalid("status", "is not supported here")
	}
	if err := f.check(pageTypes, nil); err != nil {
		return nil, err
	}
	var out []model.Page
	err := s.run(ctx, "page.list", func(db *gorm.DB) error {
		return f.apply(ctx, db.Model(&model.Page{}), "page_type").Order("created_at DESC").Find(&out).Error
	})
	return out, err
}

// recentPublicPages returns the newest public pages.
func (s *Service) recentPublicPages(ctx context.Context, limit int) ([]model.Page, error) {
	var out []model.Page
	err := s.run(ctx, "page.recent", func(db *gorm.DB) error {
		return db.Where("visibility = ?", model.VisibilityPublic).
			Order("created_at DESC").Limit(limit).Find(&out).Error
	})
	return out, err
}

// UpdatePage applies patch to the page.
func (s *Service) UpdatePage(ctx context.Context, id string, patch PagePatch) (*model.Page, error) {
	patch.Title = trimPtr(patch.Title)
	clearSlug := patch.Slug != nil && strings.TrimSpace(*patch.Slug) == ""
	patch.Slug = normSlug(patch.Slug)
	if err := validateStruct(patch); err != nil {
		return nil, err
	}
	var p *model.Page
	err := s.tx(ctx, "page.update", func(tx *gorm.DB) error {
		var err error
		if p, err = findByID[model.Page](tx, KindPage, id); err != nil {
			return err
		}
		updates := map[string]interface{}{}
		if patch.Title != nil {
			p.Title = *patch.Title
			updates["title"] = p.Title
		}
		if patch.PageType != nil {
			p.PageType = *patch.PageType
			updates["page_type"] = p.PageType
		}
		if patch.Slug != nil || clearSlug {
			p.Slug = patch.Slug
			updates["slug"] = p.Slug
		}
		if patch.Summary != nil {
			p.Summary = emptyToNil(patch.Summary)
			updates["summary"] = p.Summary
		}
		if patch.Content != nil {
			p.Content = *patch.Content
			updates["content"] = p.Content
		}
		if patch.Visibility != nil {
			p.Visibility = *patch.Visibility
			updates["visibility"] = p.Visibility
		}
		err = applyUpdates(tx, &model.Page{}, id, updates, &p.UpdatedAt)
		if err != nil && isUniqueViolation(err) && p.Slug != nil {
			return &DuplicateError{Kind: KindPage, Field: "slug", Value: *p.Slug}
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	s.changed(ctx, KindPage, id, "update")
	return p, nil
}

// DeletePage removes the page with its tag links and connections.
func (s *Service) DeletePage(ctx context.Context, id string) error {
	err := s.tx(ctx, "page.delete", func(tx *gorm.DB) error {
		if _, err := findByID[model.Page](tx, KindPage, id); err != nil {
			return err
		}
		if err := tx.Where("page_id = ?", id).Delete(&model.PageTag{}).Error; err != nil {
			return err
		}
		if err := tx.Where("page_id = ?", id).Delete(&model.PageConnection{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&model.Page{}).Error
	})
	if err != nil {
		return err
	}
	s.changed(ctx, KindPage, id, "delete")
	return nil
}
