package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"groupflow/distributor/internal/model"
)

type pgInstanceRepository struct {
	db *gorm.DB
}

func NewPGInstanceRepository(db *gorm.DB) InstanceRepository {
	return &pgInstanceRepository{db: db}
}

func (r *pgInstanceRepository) Create(ctx context.Context, instance *model.Instance) error {
	return r.db.WithContext(ctx).Create(instance).Error
}

func (r *pgInstanceRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Instance, error) {
	var instance model.Instance
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&instance).Error; err != nil {
		return nil, err
	}
	return &instance, nil
}

func (r *pgInstanceRepository) List(ctx context.Context) ([]model.Instance, error) {
	var instances []model.Instance
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&instances).Error; err != nil {
		return nil, err
	}
	return instances, nil
}
