package model

import (
	"time"

	"github.com/google/uuid"
)

type Member struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CampaignID   uuid.UUID `gorm:"type:uuid;not null" json:"campaign_id"`
	GroupID      uuid.UUID `gorm:"type:uuid;not null;index" json:"group_id"`
	Phone        string    `gorm:"type:varchar(32);not null" json:"phone"`
	Name         string    `gorm:"type:varchar(255)" json:"name"`
	Channel      string    `gorm:"type:varchar(64)" json:"channel"`
	Status       string    `gorm:"type:varchar(16);not null;default:'registered'" json:"status"`
	RegisteredAt time.Time `gorm:"not null" json:"registered_at"`
}

func (Member) TableName() string { return "members" }
