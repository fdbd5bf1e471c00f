package content

import (
	"context"
	"strings"

	"github.com/kasuganosora/questfolio/model"
	"gorm.io/gorm"
)

// SubQuestInput is the payload for adding a sub-quest to a quest.
type SubQuestInput struct {
	QuestID     string `json:"quest_id" validate:"required"`
	Title       string `json:"title" validate:"required,max=200"`
	IsCompleted bool   `json:"is_completed"`
}

// SubQuestPatch is a partial sub-quest update.
type SubQuestPatch struct {
	Title       *string `json:"title" validate:"omitempty,min=1,max=200"`
	IsCompleted *bool   `json:"is_completed"`
}

// CreateSubQuest appends a sub-quest to an existing quest.
func (s *Service) CreateSubQuest(ctx context.Context, in SubQuestInput) (*model.SubQuest, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.QuestID = strings.TrimSpace(in.QuestID)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	sq := &model.SubQuest{QuestID: in.QuestID, Title: in.Title, IsCompleted: in.IsCompleted}
	err := s.tx(ctx, "subquest.create", func(tx *gorm.DB) error {
		ok, err := exists[model.Quest](tx, in.QuestID)
		if err != nil {
			return err
		}
		if !ok {
			return invalid("quest_id", "parent not found")
		}
		var last int
		if err := tx.Model(&model.SubQuest{}).
			Where("quest_id = ?", in.QuestID).
			Select("COALESCE(MAX(sort_order), -1)").
			Scan(&last).Error; err != nil {
			return err
		}
		sq.SortOrder = last + 1
		return tx.Create(sq).Error
	})
	if err != nil {
		return nil, err
	}
	s.changed(ctx, KindQuest, sq.QuestID, "update")
	return sq, nil
}

// ListSubQuests returns a quest's sub-quests in display order.
func (s *Service) ListSubQuests(ctx context.Context, questID string) ([]model.SubQuest, error) {
	if _, err := s.GetQuest(ctx, questID); err != nil {
		return nil, err
	}
	var out []model.SubQuest
	err := s.run(ctx, "subquest.list", func(db *gorm.DB) error {
		return orderedSubQuests(db, []string{questID}, &out)
	})
	return out, err
}

func orderedSubQuests(db *gorm.DB, questIDs []string, out *[]model.SubQuest) error {
	return db.Where("quest_id IN ?", questIDs).
		Order("sort_order ASC").Order("created_at ASC").
		Find(out).Error
}

// GetSubQuest returns one sub-quest.
func (s *Service) GetSubQuest(ctx context.Context, id string) (*model.SubQuest, error) {
	var sq *model.SubQuest
	err := s.run(ctx, "subquest.get", func(db *gorm.DB) error {
		var err error
		sq, err = findByID[model.SubQuest](db, KindSubQuest, id)
		return err
	})
	return sq, err
}

// UpdateSubQuest renames or (un)completes a sub-quest.
func (s *Service) UpdateSubQuest(ctx context.Context, id string, patch SubQuestPatch) (*model.SubQuest, error) {
	patch.Title = trimPtr(patch.Title)
	if err := validateStruct(patch); err != nil {
		return nil, err
	}
	var sq *model.SubQuest
	err := s.tx(ctx, "subquest.update", func(tx *gorm.DB) error {
		var err error
		if sq, err = findByID[model.SubQuest](tx, KindSubQuest, id); err != nil {
			return err
		}
		updates := map[string]interface{}{}
		if patch.Title != nil {
			sq.Title = *patch.Title
			updates["title"] = sq.Title
		}
		if patch.IsCompleted != nil {
			sq.IsCompleted = *patch.IsCompleted
			updates["is_completed"] = sq.IsCompleted
		}
		return applyUpdates(tx, &model.SubQuest{}, id, updates, &sq.UpdatedAt)
	})
	if err != nil {
		return nil, err
	}
	s.changed(ctx, KindQuest, sq.QuestID, "update")
	return sq, nil
}

// ToggleSubQuest flips is_completed.
func (s *Service) ToggleSubQuest(ctx context.Context, id string) (*model.SubQuest, error) {
	sq, err := s.GetSubQuest(ctx, id)
	if err != nil {
		return nil, err
	}
	done := !sq.IsCompleted
	return s.UpdateSubQuest(ctx, id, SubQuestPatch{IsCompleted: &done})
}

// DeleteSubQuest removes a sub-quest.
func (s *Service) DeleteSubQuest(ctx context.Context, id string) error {
	var questID string
	err := s.tx(ctx, "subquest.delete", func(tx *gorm.DB) error {
		sq, err := findByID[model.SubQuest](tx, KindSubQuest, id)
		if err != nil {
			return err
		}
		questID = sq.QuestID
		return tx.Where("id = ?", id).Delete(&model.SubQuest{}).Error
	})
	if err != nil {
		return err
	}
	s.changed(ctx, KindQuest, questID, "update")
	return nil
}

// ReorderSubQuests sets each sub-quest's sort_order to its index in
// orderedIDs, which must be exactly the quest's current sub-quest ids.
func (s *Service) ReorderSubQuests(ctx context.Context, questID string, orderedIDs []string) ([]model.SubQuest, error) {
	var out []model.SubQuest
	err := s.tx(ctx, "subquest.reorder", func(tx *gorm.DB) error {
		if _, err := findByID[model.Quest](tx, KindQuest, questID); err != nil {
			return err
		}
		var current []string
		if err := tx.Model(&model.SubQuest{}).Where("quest_id = ?", questID).
			Pluck("id", &current).Error; err != nil {
			return err
		}
		if !sameSet(current, orderedIDs) {
			return invalid("ordered_ids", "must list every sub-quest of the quest exactly once")
		}
		for i, id := range orderedIDs {
			if err := tx.Model(&model.SubQuest{}).Where("id = ?", id).
				Update("sort_order", i).Error; err != nil {
				return err
			}
		}
		return orderedSubQuests(tx, []string{questID}, &out)
	})
	if err != nil {
		return nil, err
	}
	s.changed(ctx, KindQuest, questID, "update")
	return out, nil
}

// sameSet reports whether b is a permutation of a with no repeats.
func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	want := make(map[string]bool, len(a))
	for _, id := range a {
		want[id] = true
	}
	for _, id := range b {
		if !want[id] {
			return false
		}
		delete(want, id)
	}
	return len(want) == 0
}
