package repository

import (
	"context"

	"github.com/google/uuid"

	"groupflow/distributor/internal/model"
)

type MemberRepository interface {
	GetByCampaignAndPhone(ctx context.Context, campaignID uuid.UUID, phone string) (*model.Member, error)
	Create(ctx context.Context, member *model.Member) error
	CountByCampaign(ctx context.Context, campaignID uuid.UUID) (int64, error)
}
