package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type EventType string

const (
	EventCampaignCreated      EventType = "campaign_created"
	EventCampaignStatus       EventType = "campaign_status_changed"
	EventGroupCreated         EventType = "group_created"
	EventMemberRegistered     EventType = "member_registered"
	EventMemberCountUpdated   EventType = "member_count_updated"
	EventCapacityWarning      EventType = "capacity_warning"
	EventAutoGroupCreated     EventType = "auto_group_created"
	EventAutoGroupReactivated EventType = "auto_group_reactivated"
	EventAutoGroupFailed      EventType = "auto_group_failed"
	EventInviteLinkMissing    EventType = "invite_link_missing"
	EventInviteLinkRefreshed  EventType = "invite_link_refreshed"
	EventBulkUpdateStarted    EventType = "bulk_update_started"
	EventBulkUpdateCompleted  EventType = "bulk_update_completed"
	EventBulkUpdateFailed     EventType = "bulk_update_failed"
)

// Log is an append-only audit entry for a campaign.
type Log struct {
	ID          uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	CampaignID  uuid.UUID         `gorm:"type:uuid;not null;index:idx_campaign_logs_campaign_created,priority:1" json:"campaign_id"`
	GroupID     *uuid.UUID        `gorm:"type:uuid" json:"group_id,omitempty"`
	EventType   EventType         `gorm:"type:varchar(64);not null;index" json:"event_type"`
	Description string            `gorm:"type:text" json:"description"`
	Metadata    datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt   time.Time         `gorm:"index:idx_campaign_logs_campaign_created,priority:2" json:"created_at"`
}

func (Log) TableName() string { return "campaign_logs" }
