package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type InstanceStatus string

const (
	InstanceStatusConnected    InstanceStatus = "connected"
	InstanceStatusDisconnected InstanceStatus = "disconnected"
)

// Instance is a connected WhatsApp account on the gateway. Name is the
// instance reference the gateway routes calls by.
type Instance struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string         `gorm:"type:varchar(128);uniqueIndex;not null" json:"name"`
	PhoneNumber string         `gorm:"type:varchar(32)" json:"phone_number"`
	Status      InstanceStatus `gorm:"type:varchar(16);not null;default:'connected'" json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Instance) TableName() string { return "gateway_instances" }
