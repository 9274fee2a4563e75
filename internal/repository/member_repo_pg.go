package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"groupflow/distributor/internal/model"
)

type pgMemberRepository struct {
	db *gorm.DB
}

func NewPGMemberRepository(db *gorm.DB) MemberRepository {
	return &pgMemberRepository{db: db}
}

func (r *pgMemberRepository) GetByCampaignAndPhone(ctx context.Context, campaignID uuid.UUID, phone string) (*model.Member, error) {
	var member model.Member
	err := r.db.WithContext(ctx).
		Where("campaign_id = ? AND phone = ?", campaignID, phone).
		First(&member).Error
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *pgMemberRepository) Create(ctx context.Context, member *model.Member) error {
	return r.db.WithContext(ctx).Create(member).Error
}

func (r *pgMemberRepository) CountByCampaign(ctx context.Context, campaignID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Member{}).
		Where("campaign_id = ?", campaignID).
		Count(&count).Error
	return count, err
}
