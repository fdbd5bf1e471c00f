package content

import (
	"context"
	"strings"
	"time"

	"github.com/kasuganosora/questfolio/model"
	"gorm.io/gorm"
)

// ItemInput is the payload for adding an inventory item or achievement.
type ItemInput struct {
	Name        string     `json:"name" validate:"required,max=100"`
	Description *string    `json:"description"`
	Icon        string     `json:"icon" validate:"max=64"`
	Kind        string     `json:"kind" validate:"omitempty,oneof=item achievement"`
	Rarity      string     `json:"rarity" validate:"omitempty,oneof=common uncommon rare epic legendary"`
	Quantity    int        `json:"quantity" validate:"gte=0"`
	SortOrder   int        `json:"sort_order"`
	Visibility  string     `json:"visibility" validate:"omitempty,oneof=public private"`
	AcquiredAt  *time.Time `json:"acquired_at"`
}

// ItemPatch is a partial inventory item update.
type ItemPatch struct {
	Name        *string    `json:"name" validate:"omitempty,min=1,max=100"`
	Description *string    `json:"description"`
	Icon        *string    `json:"icon" validate:"omitempty,max=64"`
	Kind        *string    `json:"kind" validate:"omitempty,oneof=item achievement"`
	Rarity      *string    `json:"rarity" validate:"omitempty,oneof=common uncommon rare epic legendary"`
	Quantity    *int       `json:"quantity" validate:"omitempty,gte=0"`
	SortOrder   *int       `json:"sort_order"`
	Visibility  *string    `json:"visibility" validate:"omitempty,oneof=public private"`
	AcquiredAt  *time.Time `json:"acquired_at"`
}

// CreateItem inserts an inventory item.
func (s *Service) CreateItem(ctx context.Context, in ItemInput) (*model.InventoryItem, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if in.Quantity == 0 {
		in.Quantity = 1
	}
	it := &model.InventoryItem{
		Name:        in.Name,
		Description: emptyToNil(in.Description),
		Icon:        in.Icon,
		Kind:        orDefault(in.Kind, model.ItemKindItem),
		Rarity:      orDefault(in.Rarity, model.RarityCommon),
		Quantity:    in.Quantity,
		SortOrder:   in.SortOrder,
		Visibility:  orDefault(in.Visibility, model.VisibilityPublic),
		AcquiredAt:  in.AcquiredAt,
	}
	if err := s.run(ctx, "item.create", func(db *gorm.DB) error {
		return db.Create(it).Error
	}); err != nil {
		return nil, err
	}
	s.changed(ctx, KindItem, it.ID, "create")
	return it, nil
}

// GetItem returns an item visible to the caller.
func (s *Service) GetItem(ctx context.Context, id string) (*model.InventoryItem, error) {
	var it *model.InventoryItem
	err := s.run(ctx, "item.get", func(db *gorm.DB) error {
		var err error
		it, err = findByID[model.InventoryItem](db, KindItem, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !canSee(ctx, it.Visibility) {
		return nil, &NotFoundError{Kind: KindItem, ID: id}
	}
	return it, nil
}

// ListItems returns items in display order. f.Type filters on kind.
func (s *Service) ListItems(ctx context.Context, f ListFilter) ([]model.InventoryItem, error) {
	if f.Status != "" {
		return nil, invalid("status", "is not supported here")
	}
	if err := f.check(itemKinds, nil); err != nil {
		return nil, err
	}
	var out []model.InventoryItem
	err := s.run(ctx, "item.list", func(db *gorm.DB) error {
		return f.apply(ctx, db.Model(&model.InventoryItem{}), "kind").
			Order("sort_order ASC").Order("created_at ASC").Find(&out).Error
	})
	return out, err
}

// UpdateItem applies patch to the item.
func (s *Service) UpdateItem(ctx context.Context, id string, patch ItemPatch) (*model.InventoryItem, error) {
	patch.Name = trimPtr(patch.Name)
	if err := validateStruct(patch); err != nil {
		return nil, err
	}
	var it *model.InventoryItem
	err := s.tx(ctx, "item.update", func(tx *gorm.DB) error {
		var err error
		if it, err = findByID[model.InventoryItem](tx, KindItem, id); err != nil {
			return err
		}
		updates := map[string]interface{}{}
		if patch.Name != nil {
			it.Name = *patch.Name
			updates["name"] = it.Name
		}
		if patch.Description != nil {
			it.Description = emptyToNil(patch.Description)
			updates["description"] = it.Description
		}
		if patch.Icon != nil {
			it.Icon = *patch.Icon
			updates["icon"] = it.Icon
		}
		if patch.Kind != nil {
			it.Kind = *patch.Kind
			updates["kind"] = it.Kind
		}
		if patch.Rarity != nil {
			it.Rarity = *patch.Rarity
			updates["rarity"] = it.Rarity
		}
		if patch.Quantity != nil {
			it.Quantity = *patch.Quantity
			updates["quantity"] = it.Quantity
		}
		if patch.SortOrder != nil {
			it.SortOrder = *patch.SortOrder
			updates["sort_order"] = it.SortOrder
		}
		if patch.Visibility != nil {
			it.Visibility = *patch.Visibility
			updates["visibility"] = it.Visibility
		}
		if patch.AcquiredAt != nil {
			it.AcquiredAt = patch.AcquiredAt
			updates["acquired_at"] = it.AcquiredAt
		}
		return applyUpdates(tx, &model.InventoryItem{}, id, updates, &it.UpdatedAt)
	})
	if err != nil {
		return nil, err
	}
	s.changed(ctx, KindItem, id, "update")
	return it, nil
}

// DeleteItem removes an inventory item.
func (s *Service) DeleteItem(ctx context.Context, id string) error {
	err := s.tx(ctx, "item.delete", func(tx *gorm.DB) error {
		if _, err := findByID[model.InventoryItem](tx, KindItem, id); err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&model.InventoryItem{}).Error
	})
	if err != nil {
		return err
	}
	s.changed(ctx, KindItem, id, "delete")
	return nil
}
