package content

import (
	"context"
	"strings"

	"github.com/kasuganosora/questfolio/model"
	"gorm.io/gorm"
)

// ReplaceTags makes tagIDs the exact tag set of a page or quest. Duplicate
// ids are collapsed and an empty set clears all tags. Rows are diffed and
// patched inside one transaction, so a failure leaves the old set intact.
func (s *Service) ReplaceTags(ctx context.Context, kind, entityID string, tagIDs []string) ([]model.Tag, error) {
	var (
		joinModel interface{} = &model.PageTag{}
		fk                    = "page_id"
	)
	switch kind {
	case KindPage:
	case KindQuest:
		joinModel, fk = &model.QuestTag{}, "quest_id"
	default:
		return nil, invalid("kind", "must be one of: page, quest")
	}
	want := dedupe(tagIDs)
	var tags []model.Tag
	err := s.tx(ctx, kind+"_tags.replace", func(tx *gorm.DB) error {
		var ok bool
		var err error
		if kind == KindPage {
			ok, err = exists[model.Page](tx, entityID)
		} else {
			ok, err = exists[model.Quest](tx, entityID)
		}
		if err != nil {
			return err
		}
		if !ok {
			return &NotFoundError{Kind: kind, ID: entityID}
		}
		if err := requireAll[model.Tag](tx, "tag_ids", want); err != nil {
			return err
		}

		var have []string
		if err := tx.Model(joinModel).Where(fk+" = ?", entityID).Pluck("tag_id", &have).Error; err != nil {
			return err
		}
		add, remove := diff(have, want)
		if len(remove) > 0 {
			if err := tx.Where(fk+" = ? AND tag_id IN ?", entityID, remove).
				Delete(joinModel).Error; err != nil {
				return err
			}
		}
		for _, tagID := range add {
			var row interface{} = &model.PageTag{PageID: entityID, TagID: tagID}
			if kind == KindQuest {
				row = &model.QuestTag{QuestID: entityID, TagID: tagID}
			}
			if err := tx.Create(row).Error; err != nil {
				return err
			}
		}
		byOwner, err := tagsFor(tx, kind, []string{entityID})
		tags = byOwner[entityID]
		return err
	})
	if err != nil {
		return nil, err
	}
	if tags == nil {
		tags = []model.Tag{}
	}
	s.changed(ctx, kind, entityID, "update")
	return tags, nil
}

// ReplaceConnections makes questIDs and projectIDs the exact connection set
// of a page. Both empty clears every connection.
func (s *Service) ReplaceConnections(ctx context.Context, pageID string, questIDs, projectIDs []string) ([]model.PageConnection, error) {
	quests, projects := dedupe(questIDs), dedupe(projectIDs)
	var conns []model.PageConnection
	err := s.tx(ctx, "page_connections.replace", func(tx *gorm.DB) error {
		if _, err := findByID[model.Page](tx, KindPage, pageID); err != nil {
			return err
		}
		if err := requireAll[model.Quest](tx, "quest_ids", quests); err != nil {
			return err
		}
		if err := requireAll[model.Project](tx, "project_ids", projects); err != nil {
			return err
		}

		var have []model.PageConnection
		if err := tx.Where("page_id = ?", pageID).Find(&have).Error; err != nil {
			return err
		}
		for _, target := range []struct {
			kind string
			want []string
		}{{model.ParentQuest, quests}, {model.ParentProject, projects}} {
			var current []string
			for _, c := range have {
				if c.ConnectedToType == target.kind {
					current = append(current, c.ConnectedToID)
				}
			}
			add, remove := diff(current, target.want)
			if len(remove) > 0 {
				if err := tx.Where("page_id = ? AND connected_to_type = ? AND connected_to_id IN ?",
					pageID, target.kind, remove).Delete(&model.PageConnection{}).Error; err != nil {
					return err
				}
			}
			for _, id := range add {
				c := &model.PageConnection{PageID: pageID, ConnectedToType: target.kind, ConnectedToID: id}
				if err := tx.Create(c).Error; err != nil {
					return err
				}
			}
		}
		return tx.Where("page_id = ?", pageID).Order("created_at ASC").Find(&conns).Error
	})
	if err != nil {
		return nil, err
	}
	s.changed(ctx, KindPage, pageID, "update")
	return conns, nil
}

// requireAll fails with a ValidationError unless every id exists in T's table.
func requireAll[T any](db *gorm.DB, field string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	var found []string
	if err := db.Model(new(T)).Where("id IN ?", ids).Pluck("id", &found).Error; err != nil {
		return err
	}
	if len(found) == len(ids) {
		return nil
	}
	seen := make(map[string]bool, len(found))
	for _, id := range found {
		seen[id] = true
	}
	for _, id := range ids {
		if !seen[id] {
			return invalid(field, "references unknown id "+id)
		}
	}
	return nil
}

// dedupe trims ids, dropping blanks and repeats while keeping first-seen order.
func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// diff returns the members of want missing from have, and the members of
// have missing from want.
func diff(have, want []string) (add, remove []string) {
	inHave := make(map[string]bool, len(have))
	for _, id := range have {
		inHave[id] = true
	}
	inWant := make(map[string]bool, len(want))
	for _, id := range want {
		inWant[id] = true
		if !inHave[id] {
			add = append(add, id)
		}
	}
	for _, id := range have {
		if !inWant[id] {
			remove = append(remove, id)
		}
	}
	return add, remove
}
