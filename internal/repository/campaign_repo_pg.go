package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"groupflow/distributor/internal/model"
)

type pgCampaignRepository struct {
	db *gorm.DB
}

func NewPGCampaignRepository(db *gorm.DB) CampaignRepository {
	return &pgCampaignRepository{db: db}
}

func (r *pgCampaignRepository) Create(ctx context.Context, campaign *model.Campaign) error {
	return r.db.WithContext(ctx).Create(campaign).Error
}

func (r *pgCampaignRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Campaign, error) {
	var campaign model.Campaign
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&campaign).Error; err != nil {
		return nil, err
	}
	return &campaign, nil
}

func (r *pgCampaignRepository) GetBySlug(ctx context.Context, slug string) (*model.Campaign, error) {
	var campaign model.Campaign
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&campaign).Error; err != nil {
		return nil, err
	}
	return &campaign, nil
}

func (r *pgCampaignRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var count int64
	// Soft-deleted campaigns still hold their slug.
	err := r.db.WithContext(ctx).Unscoped().
		Model(&model.Campaign{}).
		Where("slug = ?", slug).
		Count(&count).Error
	return count > 0, err
}

func (r *pgCampaignRepository) List(ctx context.Context, ownerID uuid.UUID) ([]model.Campaign, error) {
	var campaigns []model.Campaign
	q := r.db.WithContext(ctx).Order("created_at DESC")
	if ownerID != uuid.Nil {
		q = q.Where("owner_id = ?", ownerID)
	}
	if err := q.Find(&campaigns).Error; err != nil {
		return nil, err
	}
	return campaigns, nil
}

func (r *pgCampaignRepository) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	res := r.db.WithContext(ctx).
		Model(&model.Campaign{}).
		Where("id = ?", id).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *pgCampaignRepository) IncrementGroupCount(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&model.Campaign{}).
		Where("id = ?", id).
		UpdateColumn("total_groups_created", gorm.Expr("total_groups_created + 1")).
		Error
}
