package model

import (
	"time"

	"github.com/google/uuid"
)

type GroupStatus string

const (
	GroupStatusActive   GroupStatus = "active"
	GroupStatusArchived GroupStatus = "archived"
	GroupStatusError    GroupStatus = "error"
)

// Group is one WhatsApp group in a campaign's ordered sequence.
// CurrentMemberCount is a cache of the gateway's participant count; it is
// bumped on registration and overwritten by the sync loop.
type Group struct {
	ID                      uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	CampaignID              uuid.UUID   `gorm:"type:uuid;not null;index" json:"campaign_id"`
	InstanceID              uuid.UUID   `gorm:"type:uuid;not null" json:"instance_id"`
	GroupNumber             int         `gorm:"not null" json:"group_number"`
	ExternalGroupID         string      `gorm:"type:varchar(128);index" json:"external_group_id"`
	Name                    string      `gorm:"type:varchar(255);not null" json:"name"`
	Description             string      `gorm:"type:text" json:"description"`
	ImageURL                string      `gorm:"type:varchar(1024)" json:"image_url"`
	AdminOnly               bool        `gorm:"not null;default:false" json:"admin_only"`
	InviteLink              *string     `gorm:"type:varchar(512)" json:"invite_link,omitempty"`
	MaxMembers              int         `gorm:"not null" json:"max_members"`
	CurrentMemberCount      int         `gorm:"not null;default:0" json:"current_member_count"`
	IsActiveForDistribution bool        `gorm:"not null;default:false" json:"is_active_for_distribution"`
	Status                  GroupStatus `gorm:"type:varchar(16);not null;default:'active';index" json:"status"`
	LastSyncedAt            *time.Time  `json:"last_synced_at,omitempty"`
	CreatedAt               time.Time   `json:"created_at"`
	UpdatedAt               time.Time   `json:"updated_at"`
}

func (Group) TableName() string { return "distribution_groups" }

func (g *Group) IsFull() bool {
	return g.CurrentMemberCount >= g.MaxMembers
}

func (g *Group) HasInviteLink() bool {
	return g.InviteLink != nil && *g.InviteLink != ""
}
