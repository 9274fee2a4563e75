package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"groupflow/distributor/internal/model"
)

const defaultLogLimit = 100

type pgLogRepository struct {
	db *gorm.DB
}

func NewPGLogRepository(db *gorm.DB) LogRepository {
	return &pgLogRepository{db: db}
}

func (r *pgLogRepository) Append(ctx context.Context, entry *model.Log) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *pgLogRepository) ListByCampaign(ctx context.Context, campaignID uuid.UUID, filter LogFilter) ([]model.Log, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultLogLimit
	}

	q := r.db.WithContext(ctx).
		Where("campaign_id = ?", campaignID).
		Order("created_at DESC").
		Limit(limit)
	if len(filter.EventTypes) > 0 {
		q = q.Where("event_type IN ?", filter.EventTypes)
	}

	var logs []model.Log
	if err := q.Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}
