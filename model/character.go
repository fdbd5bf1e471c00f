package model

import (
	"time"

	"gorm.io/datatypes"
)

// CharacterSettingsID is the id of the single character sheet row.
const CharacterSettingsID = "default"

// CharacterSettings is the site owner's character sheet.
type CharacterSettings struct {
	ID          string         `gorm:"primaryKey;size:36" json:"id"`
	DisplayName string         `gorm:"size:64" json:"display_name"`
	ClassTitle  string         `gorm:"size:64" json:"class_title"`
	Level       int            `gorm:"default:1" json:"level"`
	Bio         string         `gorm:"type:text" json:"bio"`
	AvatarURL   string         `gorm:"size:512" json:"avatar_url"`
	Stats       datatypes.JSON `json:"stats"` // {"golang": 7, "design": 4}
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (CharacterSettings) TableName() string { return "character_settings" }
