package model

import (
	"time"

	"gorm.io/gorm"
)

// ItemKind distinguishes inventory items from achievements.
type ItemKind = string

const (
	ItemKindItem        ItemKind = "item"
	ItemKindAchievement ItemKind = "achievement"
)

const (
	RarityCommon    = "common"
	RarityUncommon  = "uncommon"
	RarityRare      = "rare"
	RarityEpic      = "epic"
	RarityLegendary = "legendary"
)

// InventoryItem is a skill, tool or achievement shown on the inventory screen.
type InventoryItem struct {
	ID          string     `gorm:"primaryKey;size:36" json:"id"`
	Name        string     `gorm:"size:100;not null" json:"name"`
	Description *string    `gorm:"type:text" json:"description"`
	Icon        string     `gorm:"size:64" json:"icon"`
	Kind        string     `gorm:"size:16;not null;index:idx_item_kind" json:"kind"`
	Rarity      string     `gorm:"size:16;not null" json:"rarity"`
	Quantity    int        `gorm:"default:1" json:"quantity"`
	SortOrder   int        `gorm:"default:0" json:"sort_order"`
	Visibility  string     `gorm:"size:10;not null" json:"visibility"`
	AcquiredAt  *time.Time `json:"acquired_at"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (i *InventoryItem) BeforeCreate(*gorm.DB) error {
	if i.ID == "" {
		i.ID = newID()
	}
	return nil
}
