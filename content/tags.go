package content

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/kasuganosora/questfolio/model"
	"gorm.io/gorm"
)

const defaultTagColor = "#6b7280"

// TagInput is the payload for creating a tag.
type TagInput struct {
	Name  string `json:"name" validate:"required,max=64"`
	Color string `json:"color" validate:"omitempty,hexcolor"`
}

// TagPatch is a partial tag update.
type TagPatch struct {
	Name  *string `json:"name" validate:"omitempty,min=1,max=64"`
	Color *string `json:"color" validate:"omitempty,hexcolor"`
}

func tagKey(name string) string { return strings.ToLower(strings.TrimSpace(name)) }

// CreateTag creates a tag. Names are unique case-insensitively.
func (s *Service) CreateTag(ctx context.Context, in TagInput) (*model.Tag, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Color = strings.TrimSpace(in.Color)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if in.Color == "" {
		in.Color = defaultTagColor
	}
	tag := &model.Tag{Name: in.Name, NameKey: tagKey(in.Name), Color: in.Color}
	err := s.run(ctx, "tag.create", func(db *gorm.DB) error {
		if err := s.checkTagName(db, tag.NameKey, ""); err != nil {
			return err
		}
		if err := db.Create(tag).Error; err != nil {
			if isUniqueViolation(err) {
				return &DuplicateError{Kind: KindTag, Field: "name", Value: in.Name}
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.changed(ctx, KindTag, tag.ID, "create")
	return tag, nil
}

func (s *Service) checkTagName(db *gorm.DB, key, exceptID string) error {
	var existing model.Tag
	q := db.Where("name_key = ?", key)
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	err := q.First(&existing).Error
	if err == nil {
		return &DuplicateError{Kind: KindTag, Field: "name", Value: existing.Name}
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	return err
}

// ListTags returns all tags ordered by name.
func (s *Service) ListTags(ctx context.Context) ([]model.Tag, error) {
	var tags []model.Tag
	err := s.run(ctx, "tag.list", func(db *gorm.DB) error {
		return db.Order("name_key ASC").Find(&tags).Error
	})
	return tags, err
}

// UpdateTag renames or recolors a tag.
func (s *Service) UpdateTag(ctx context.Context, id string, patch TagPatch) (*model.Tag, error) {
	patch.Name = trimPtr(patch.Name)
	patch.Color = trimPtr(patch.Color)
	if err := validateStruct(patch); err != nil {
		return nil, err
	}
	var tag *model.Tag
	err := s.tx(ctx, "tag.update", func(tx *gorm.DB) error {
		var err error
		if tag, err = findByID[model.Tag](tx, KindTag, id); err != nil {
			return err
		}
		updates := map[string]interface{}{}
		if patch.Name != nil {
			key := tagKey(*patch.Name)
			if err := s.checkTagName(tx, key, id); err != nil {
				return err
			}
			tag.Name, tag.NameKey = *patch.Name, key
			updates["name"], updates["name_key"] = tag.Name, tag.NameKey
		}
		if patch.Color != nil {
			tag.Color = *patch.Color
			updates["color"] = tag.Color
		}
		if len(updates) == 0 {
			return nil
		}
		return tx.Model(tag).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}
	s.changed(ctx, KindTag, id, "update")
	return tag, nil
}

// DeleteTag removes the tag and every page/quest association pointing at it.
func (s *Service) DeleteTag(ctx context.Context, id string) error {
	err := s.tx(ctx, "tag.delete", func(tx *gorm.DB) error {
		if _, err := findByID[model.Tag](tx, KindTag, id); err != nil {
			return err
		}
		if err := tx.Where("tag_id = ?", id).Delete(&model.PageTag{}).Error; err != nil {
			return err
		}
		if err := tx.Where("tag_id = ?", id).Delete(&model.QuestTag{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&model.Tag{}).Error
	})
	if err != nil {
		return err
	}
	s.changed(ctx, KindTag, id, "delete")
	return nil
}

// tagsFor returns the tags joined to each entity id, keyed by entity id.
func tagsFor(db *gorm.DB, kind string, ids []string) (map[string][]model.Tag, error) {
	out := make(map[string][]model.Tag, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	joinTable, fk := "page_tags", "page_id"
	if kind == KindQuest {
		joinTable, fk = "quest_tags", "quest_id"
	}
	type row struct {
		model.Tag
		OwnerID string
	}
	var rows []row
	err := db.Table("tags").
		Select("tags.*, "+joinTable+"."+fk+" AS owner_id").
		Joins("JOIN "+joinTable+" ON "+joinTable+".tag_id = tags.id").
		Where(joinTable+"."+fk+" IN ?", ids).
		Order("tags.name_key ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.OwnerID] = append(out[r.OwnerID], r.Tag)
	}
	return out, nil
}

// TagCount is a tag with the number of public pages and quests using it.
type TagCount struct {
	model.Tag
	Uses int64 `json:"uses"`
}

// TagUsage counts public pages and public quests per tag, most used first.
// Unused tags are omitted.
func (s *Service) TagUsage(ctx context.Context, limit int) ([]TagCount, error) {
	var out []TagCount
	err := s.run(ctx, "tag.usage", func(db *gorm.DB) error {
		type row struct {
			TagID string
			N     int64
		}
		uses := map[string]int64{}
		for _, src := range []struct{ join, fk, table string }{
			{"page_tags", "page_id", "pages"},
			{"quest_tags", "quest_id", "quests"},
		} {
			var rows []row
			err := db.Table(src.join).
				Select(src.join+".tag_id AS tag_id, COUNT(*) AS n").
				Joins("JOIN "+src.table+" ON "+src.table+".id = "+src.join+"."+src.fk).
				Where(src.table+".visibility = ?", model.VisibilityPublic).
				Group(src.join + ".tag_id").
				Scan(&rows).Error
			if err != nil {
				return err
			}
			for _, r := range rows {
				uses[r.TagID] += r.N
			}
		}
		if len(uses) == 0 {
			return nil
		}
		ids := make([]string, 0, len(uses))
		for id := range uses {
			ids = append(ids, id)
		}
		var tags []model.Tag
		if err := db.Where("id IN ?", ids).Find(&tags).Error; err != nil {
			return err
		}
		out = make([]TagCount, 0, len(tags))
		for _, t := range tags {
			out = append(out, TagCount{Tag: t, Uses: uses[t.ID]})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Uses != out[j].Uses {
			return out[i].Uses > out[j].Uses
		}
		return out[i].NameKey < out[j].NameKey
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// TagsByID loads tags by id, keyed by id. Missing ids are skipped.
func (s *Service) TagsByID(ctx context.Context, ids []string) (map[string]model.Tag, error) {
	out := make(map[string]model.Tag, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	err := s.run(ctx, "tag.get", func(db *gorm.DB) error {
		var tags []model.Tag
		if err := db.Where("id IN ?", ids).Find(&tags).Error; err != nil {
			return err
		}
		for _, t := range tags {
			out[t.ID] = t
		}
		return nil
	})
	return out, err
}
