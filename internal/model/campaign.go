package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusActive    CampaignStatus = "active"
	CampaignStatusPaused    CampaignStatus = "paused"
	CampaignStatusCompleted CampaignStatus = "completed"
	CampaignStatusArchived  CampaignStatus = "archived"
)

func (s CampaignStatus) Valid() bool {
	switch s {
	case CampaignStatusDraft, CampaignStatusActive, CampaignStatusPaused,
		CampaignStatusCompleted, CampaignStatusArchived:
		return true
	}
	return false
}

const (
	GroupNumberPlaceholder   = "{group_number}"
	DefaultMaxMembersInGroup = 950
)

type Campaign struct {
	ID                 uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerID            uuid.UUID      `gorm:"type:uuid;not null;index" json:"owner_id"`
	InstanceID         uuid.UUID      `gorm:"type:uuid;not null;index" json:"instance_id"`
	Name               string         `gorm:"type:varchar(255);not null" json:"name"`
	GroupNameTemplate  string         `gorm:"type:varchar(255);not null" json:"group_name_template"`
	GroupDescription   string         `gorm:"type:text" json:"group_description"`
	GroupImageURL      string         `gorm:"type:varchar(1024)" json:"group_image_url"`
	AdminOnly          bool           `gorm:"not null;default:false" json:"admin_only"`
	MaxMembersPerGroup int            `gorm:"not null;default:950" json:"max_members_per_group"`
	AutoCreateGroups   bool           `gorm:"not null" json:"auto_create_groups"`
	Slug               string         `gorm:"type:varchar(128);uniqueIndex;not null" json:"slug"`
	Status             CampaignStatus `gorm:"type:varchar(16);not null;default:'draft';index" json:"status"`
	TotalGroupsCreated int            `gorm:"not null;default:0" json:"total_groups_created"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	Instance *Instance `gorm:"foreignKey:InstanceID" json:"instance,omitempty"`
}

func (Campaign) TableName() string { return "campaigns" }

// ValidGroupNameTemplate reports whether the template carries the group number placeholder.
func ValidGroupNameTemplate(tpl string) bool {
	return strings.Contains(tpl, GroupNumberPlaceholder)
}
