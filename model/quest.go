package model

import (
	"time"

	"gorm.io/gorm"
)

// QuestType classifies a quest on the quest log.
type QuestType = string

const (
	QuestTypeMain   QuestType = "main"
	QuestTypeSide   QuestType = "side"
	QuestTypeFuture QuestType = "future"
)

// QuestStatus represents the progress state of a quest.
type QuestStatus = string

const (
	QuestStatusNotStarted QuestStatus = "not_started"
	QuestStatusInProgress QuestStatus = "in_progress"
	QuestStatusDebugging  QuestStatus = "debugging"
	QuestStatusOnHold     QuestStatus = "on_hold"
	QuestStatusCompleted  QuestStatus = "completed"
	QuestStatusAbandoned  QuestStatus = "abandoned"
)

// Quest is a trackable unit of project work (an epic or milestone).
type Quest struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	Title       string    `gorm:"size:200;not null" json:"title"`
	QuestType   string    `gorm:"size:10;not null;index:idx_quest_type" json:"quest_type"`
	Status      string    `gorm:"size:20;not null;index:idx_quest_status" json:"status"`
	Description *string   `gorm:"type:text" json:"description"`
	Visibility  string    `gorm:"size:10;not null;index:idx_quest_visibility" json:"visibility"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (q *Quest) BeforeCreate(*gorm.DB) error {
	if q.ID == "" {
		q.ID = newID()
	}
	return nil
}

// SubQuest is a checklist item owned by exactly one quest.
type SubQuest struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	QuestID     string    `gorm:"size:36;not null;index:idx_subquest_quest" json:"quest_id"`
	Title       string    `gorm:"size:200;not null" json:"title"`
	IsCompleted bool      `gorm:"default:false" json:"is_completed"`
	SortOrder   int       `gorm:"default:0" json:"sort_order"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (s *SubQuest) BeforeCreate(*gorm.DB) error {
	if s.ID == "" {
		s.ID = newID()
	}
	return nil
}
