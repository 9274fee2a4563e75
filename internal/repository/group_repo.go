package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"groupflow/distributor/internal/model"
)

// SyncFilter narrows the membership sweep. Empty lists mean no restriction.
type SyncFilter struct {
	CampaignIDs        []uuid.UUID
	ExcludeCampaignIDs []uuid.UUID
}

type GroupRepository interface {
	Create(ctx context.Context, group *model.Group) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Group, error)
	ListByCampaign(ctx context.Context, campaignID uuid.UUID) ([]model.Group, error)

	// ListLive returns groups of a campaign that exist on the gateway and are still in use.
	ListLive(ctx context.Context, campaignID uuid.UUID) ([]model.Group, error)
	ListSyncTargets(ctx context.Context, filter SyncFilter) ([]model.Group, error)
	ListFillCandidates(ctx context.Context, minGroupSize int) ([]model.Group, error)

	// FindActiveForDistribution returns the group new signups go to.
	// Ties are broken by the lowest group number.
	FindActiveForDistribution(ctx context.Context, campaignID uuid.UUID) (*model.Group, error)
	// FindSuccessor returns the lowest-numbered live group after afterNumber that still has room.
	FindSuccessor(ctx context.Context, campaignID uuid.UUID, afterNumber int) (*model.Group, error)
	HasActiveForDistribution(ctx context.Context, campaignID uuid.UUID) (bool, error)
	MaxGroupNumber(ctx context.Context, campaignID uuid.UUID) (int, error)

	UpdateMemberCount(ctx context.Context, id uuid.UUID, count int, syncedAt time.Time) error
	IncrementMemberCount(ctx context.Context, id uuid.UUID) error
	SetActiveForDistribution(ctx context.Context, id uuid.UUID, active bool) error
	// SwapActive moves the distribution flag from one group to another atomically.
	SwapActive(ctx context.Context, fromID, toID uuid.UUID) error
	SetInviteLink(ctx context.Context, id uuid.UUID, link string) error
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error
}
