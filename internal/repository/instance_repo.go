package repository

import (
	"context"

	"github.com/google/uuid"

	"groupflow/distributor/internal/model"
)

type InstanceRepository interface {
	Create(ctx context.Context, instance *model.Instance) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Instance, error)
	List(ctx context.Context) ([]model.Instance, error)
}
