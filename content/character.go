package content

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/kasuganosora/questfolio/model"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CharacterPatch is a partial update of the character sheet.
type CharacterPatch struct {
	DisplayName *string        `json:"display_name" validate:"omitempty,max=64"`
	ClassTitle  *string        `json:"class_title" validate:"omitempty,max=64"`
	Level       *int           `json:"level" validate:"omitempty,gte=1"`
	Bio         *string        `json:"bio"`
	Stats       map[string]int `json:"stats" validate:"omitempty,dive,gte=0"`
}

func defaultCharacter() *model.CharacterSettings {
	return &model.CharacterSettings{
		ID:    model.CharacterSettingsID,
		Level: 1,
		Stats: datatypes.JSON("{}"),
	}
}

// GetCharacter returns the character sheet, or defaults when none was saved.
func (s *Service) GetCharacter(ctx context.Context) (*model.CharacterSettings, error) {
	var c *model.CharacterSettings
	err := s.run(ctx, "character.get", func(db *gorm.DB) error {
		var err error
		c, err = loadCharacter(db)
		return err
	})
	return c, err
}

func loadCharacter(db *gorm.DB) (*model.CharacterSettings, error) {
	var c model.CharacterSettings
	err := db.Where("id = ?", model.CharacterSettingsID).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return defaultCharacter(), nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// UpdateCharacter upserts the character sheet.
func (s *Service) UpdateCharacter(ctx context.Context, patch CharacterPatch) (*model.CharacterSettings, error) {
	patch.DisplayName = trimPtr(patch.DisplayName)
	patch.ClassTitle = trimPtr(patch.ClassTitle)
	if err := validateStruct(patch); err != nil {
		return nil, err
	}
	var stats datatypes.JSON
	if patch.Stats != nil {
		for k := range patch.Stats {
			if strings.TrimSpace(k) == "" {
				return nil, invalid("stats", "keys must not be empty")
			}
		}
		raw, err := json.Marshal(patch.Stats)
		if err != nil {
			return nil, invalid("stats", "is invalid")
		}
		stats = datatypes.JSON(raw)
	}
	return s.saveCharacter(ctx, "character.update", func(c *model.CharacterSettings) {
		if patch.DisplayName != nil {
			c.DisplayName = *patch.DisplayName
		}
		if patch.ClassTitle != nil {
			c.ClassTitle = *patch.ClassTitle
		}
		if patch.Level != nil {
			c.Level = *patch.Level
		}
		if patch.Bio != nil {
			c.Bio = *patch.Bio
		}
		if stats != nil {
			c.Stats = stats
		}
	})
}

// SetAvatarURL records the uploaded avatar location on the character sheet.
func (s *Service) SetAvatarURL(ctx context.Context, url string) (*model.CharacterSettings, error) {
	return s.saveCharacter(ctx, "character.avatar", func(c *model.CharacterSettings) {
		c.AvatarURL = url
	})
}

func (s *Service) saveCharacter(ctx context.Context, op string, mutate func(*model.CharacterSettings)) (*model.CharacterSettings, error) {
	var c *model.CharacterSettings
	err := s.tx(ctx, op, func(tx *gorm.DB) error {
		var err error
		if c, err = loadCharacter(tx); err != nil {
			return err
		}
		mutate(c)
		return tx.Save(c).Error
	})
	if err != nil {
		return nil, err
	}
	s.changed(ctx, KindCharacter, c.ID, "update")
	return c, nil
}
