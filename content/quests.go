package content

import (
	"context"
	"strings"

	"github.com/kasuganosora/questfolio/model"
	"gorm.io/gorm"
)

// QuestInput is the payload for creating a quest.
type QuestInput struct {
	Title       string  `json:"title" validate:"required,max=200"`
	QuestType   string  `json:"quest_type" validate:"required,oneof=main side future"`
	Status      string  `json:"status" validate:"omitempty,oneof=not_started in_progress debugging on_hold completed abandoned"`
	Description *string `json:"description"`
	Visibility  string  `json:"visibility" validate:"omitempty,oneof=public private"`
}

// QuestPatch is a partial quest update.
type QuestPatch struct {
	Title       *string `json:"title" validate:"omitempty,min=1,max=200"`
	QuestType   *string `json:"quest_type" validate:"omitempty,oneof=main side future"`
	Status      *string `json:"status" validate:"omitempty,oneof=not_started in_progress debugging on_hold completed abandoned"`
	Description *string `json:"description"`
	Visibility  *string `json:"visibility" validate:"omitempty,oneof=public private"`
}

// CreateQuest validates and inserts a quest.
func (s *Service) CreateQuest(ctx context.Context, in QuestInput) (*model.Quest, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	q := &model.Quest{
		Title:       in.Title,
		QuestType:   in.QuestType,
		Status:      orDefault(in.Status, model.QuestStatusNotStarted),
		Description: emptyToNil(in.Description),
		Visibility:  orDefault(in.Visibility, model.VisibilityPrivate),
	}
	if err := s.run(ctx, "quest.create", func(db *gorm.DB) error {
		return db.Create(q).Error
	}); err != nil {
		return nil, err
	}
	s.changed(ctx, KindQuest, q.ID, "create")
	return q, nil
}

// GetQuest returns a quest visible to the caller.
func (s *Service) GetQuest(ctx context.Context, id string) (*model.Quest, error) {
	var q *model.Quest
	err := s.run(ctx, "quest.get", func(db *gorm.DB) error {
		var err error
		q, err = findByID[model.Quest](db, KindQuest, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !canSee(ctx, q.Visibility) {
		return nil, &NotFoundError{Kind: KindQuest, ID: id}
	}
	return q, nil
}

// ListQuests returns quests matching f, newest first.
func (s *Service) ListQuests(ctx context.Context, f ListFilter) ([]model.Quest, error) {
	if err := f.check(questTypes, questStatuses); err != nil {
		return nil, err
	}
	var out []model.Quest
	err := s.run(ctx, "quest.list", func(db *gorm.DB) error {
		return f.apply(ctx, db.Model(&model.Quest{}), "quest_type").Order("created_at DESC").Find(&out).Error
	})
	return out, err
}

// UpdateQuest applies patch to the quest.
func (s *Service) UpdateQuest(ctx context.Context, id string, patch QuestPatch) (*model.Quest, error) {
	patch.Title = trimPtr(patch.Title)
	if err := validateStruct(patch); err != nil {
		return nil, err
	}
	var q *model.Quest
	err := s.tx(ctx, "quest.update", func(tx *gorm.DB) error {
		var err error
		if q, err = findByID[model.Quest](tx, KindQuest, id); err != nil {
			return err
		}
		updates := map[string]interface{}{}
		if patch.Title != nil {
			q.Title = *patch.Title
			updates["title"] = q.Title
		}
		if patch.QuestType != nil {
			q.QuestType = *patch.QuestType
			updates["quest_type"] = q.QuestType
		}
		if patch.Status != nil {
			q.Status = *patch.Status
			updates["status"] = q.Status
		}
		if patch.Description != nil {
			q.Description = emptyToNil(patch.Description)
			updates["description"] = q.Description
		}
		if patch.Visibility != nil {
			q.Visibility = *patch.Visibility
			updates["visibility"] = q.Visibility
		}
		return applyUpdates(tx, &model.Quest{}, id, updates, &q.UpdatedAt)
	})
	if err != nil {
		return nil, err
	}
	s.changed(ctx, KindQuest, id, "update")
	return q, nil
}

// DeleteQuest removes the quest together with its sub-quests, issues, tag
// links and page connections.
func (s *Service) DeleteQuest(ctx context.Context, id string) error {
	err := s.tx(ctx, "quest.delete", func(tx *gorm.DB) error {
		if _, err := findByID[model.Quest](tx, KindQuest, id); err != nil {
			return err
		}
		if err := tx.Where("quest_id = ?", id).Delete(&model.SubQuest{}).Error; err != nil {
			return err
		}
		if err := tx.Where("quest_id = ?", id).Delete(&model.QuestTag{}).Error; err != nil {
			return err
		}
		if err := deleteParentRefs(tx, model.ParentQuest, id); err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&model.Quest{}).Error
	})
	if err != nil {
		return err
	}
	s.changed(ctx, KindQuest, id, "delete")
	return nil
}
