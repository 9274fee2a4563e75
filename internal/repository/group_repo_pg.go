package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"groupflow/distributor/internal/model"
)

type pgGroupRepository struct {
	db *gorm.DB
}

func NewPGGroupRepository(db *gorm.DB) GroupRepository {
	return &pgGroupRepository{db: db}
}

func (r *pgGroupRepository) Create(ctx context.Context, group *model.Group) error {
	return r.db.WithContext(ctx).Create(group).Error
}

func (r *pgGroupRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Group, error) {
	var group model.Group
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&group).Error; err != nil {
		return nil, err
	}
	return &group, nil
}

func (r *pgGroupRepository) ListByCampaign(ctx context.Context, campaignID uuid.UUID) ([]model.Group, error) {
	var groups []model.Group
	err := r.db.WithContext(ctx).
		Where("campaign_id = ?", campaignID).
		Order("group_number ASC").
		Find(&groups).Error
	if err != nil {
		return nil, err
	}
	return groups, nil
}

func (r *pgGroupRepository) ListLive(ctx context.Context, campaignID uuid.UUID) ([]model.Group, error) {
	var groups []model.Group
	err := r.db.WithContext(ctx).
		Where("campaign_id = ? AND status = ? AND external_group_id <> ''", campaignID, model.GroupStatusActive).
		Order("group_number ASC").
		Find(&groups).Error
	if err != nil {
		return nil, err
	}
	return groups, nil
}

func (r *pgGroupRepository) ListSyncTargets(ctx context.Context, filter SyncFilter) ([]model.Group, error) {
	q := r.db.WithContext(ctx).
		Model(&model.Group{}).
		Joins("JOIN campaigns ON campaigns.id = distribution_groups.campaign_id AND campaigns.deleted_at IS NULL").
		Where("distribution_groups.status = ?", model.GroupStatusActive).
		Where("distribution_groups.external_group_id <> ''").
		Where("campaigns.status IN ?", []model.CampaignStatus{model.CampaignStatusActive, model.CampaignStatusDraft})

	if len(filter.CampaignIDs) > 0 {
		q = q.Where("distribution_groups.campaign_id IN ?", filter.CampaignIDs)
	}
	if len(filter.ExcludeCampaignIDs) > 0 {
		q = q.Where("distribution_groups.campaign_id NOT IN ?", filter.ExcludeCampaignIDs)
	}

	var groups []model.Group
	err := q.Order("distribution_groups.campaign_id, distribution_groups.group_number").
		Find(&groups).Error
	if err != nil {
		return nil, err
	}
	return groups, nil
}

func (r *pgGroupRepository) ListFillCandidates(ctx context.Context, minGroupSize int) ([]model.Group, error) {
	var groups []model.Group
	err := r.db.WithContext(ctx).
		Model(&model.Group{}).
		Joins("JOIN campaigns ON campaigns.id = distribution_groups.campaign_id AND campaigns.deleted_at IS NULL").
		Where("campaigns.status = ? AND campaigns.auto_create_groups = ?", model.CampaignStatusActive, true).
		Where("distribution_groups.status = ?", model.GroupStatusActive).
		Where("distribution_groups.is_active_for_distribution = ?", true).
		Where("distribution_groups.current_member_count >= distribution_groups.max_members").
		Where("distribution_groups.max_members >= ?", minGroupSize).
		Order("distribution_groups.campaign_id, distribution_groups.group_number").
		Find(&groups).Error
	if err != nil {
		return nil, err
	}
	return groups, nil
}

func (r *pgGroupRepository) FindActiveForDistribution(ctx context.Context, campaignID uuid.UUID) (*model.Group, error) {
	var group model.Group
	err := r.db.WithContext(ctx).
		Where("campaign_id = ? AND status = ? AND is_active_for_distribution = ?", campaignID, model.GroupStatusActive, true).
		Where("current_member_count < max_members").
		Order("group_number ASC").
		First(&group).Error
	if err != nil {
		return nil, err
	}
	return &group, nil
}

func (r *pgGroupRepository) FindSuccessor(ctx context.Context, campaignID uuid.UUID, afterNumber int) (*model.Group, error) {
	var group model.Group
	err := r.db.WithContext(ctx).
		Where("campaign_id = ? AND group_number > ? AND status = ?", campaignID, afterNumber, model.GroupStatusActive).
		Where("current_member_count < max_members").
		Order("group_number ASC").
		First(&group).Error
	if err != nil {
		return nil, err
	}
	return &group, nil
}

func (r *pgGroupRepository) HasActiveForDistribution(ctx context.Context, campaignID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Group{}).
		Where("campaign_id = ? AND is_active_for_distribution = ?", campaignID, true).
		Count(&count).Error
	return count > 0, err
}

func (r *pgGroupRepository) MaxGroupNumber(ctx context.Context, campaignID uuid.UUID) (int, error) {
	var highest int
	err := r.db.WithContext(ctx).
		Model(&model.Group{}).
		Where("campaign_id = ?", campaignID).
		Select("COALESCE(MAX(group_number), 0)").
		Scan(&highest).Error
	return highest, err
}

func (r *pgGroupRepository) UpdateMemberCount(ctx context.Context, id uuid.UUID, count int, syncedAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.Group{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"current_member_count": count,
			"last_synced_at":       syncedAt,
		}).Error
}

func (r *pgGroupRepository) IncrementMemberCount(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&model.Group{}).
		Where("id = ?", id).
		UpdateColumn("current_member_count", gorm.Expr("current_member_count + 1")).
		Error
}

func (r *pgGroupRepository) SetActiveForDistribution(ctx context.Context, id uuid.UUID, active bool) error {
	return r.db.WithContext(ctx).
		Model(&model.Group{}).
		Where("id = ?", id).
		Update("is_active_for_distribution", active).
		Error
}

func (r *pgGroupRepository) SwapActive(ctx context.Context, fromID, toID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Clear first so the one-active index never sees two rows.
		if err := tx.Model(&model.Group{}).
			Where("id = ?", fromID).
			Update("is_active_for_distribution", false).Error; err != nil {
			return err
		}
		return tx.Model(&model.Group{}).
			Where("id = ?", toID).
			Update("is_active_for_distribution", true).Error
	})
}

func (r *pgGroupRepository) SetInviteLink(ctx context.Context, id uuid.UUID, link string) error {
	return r.db.WithContext(ctx).
		Model(&model.Group{}).
		Where("id = ?", id).
		Update("invite_link", link).
		Error
}

func (r *pgGroupRepository) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).
		Model(&model.Group{}).
		Where("id = ?", id).
		Updates(fields).
		Error
}
