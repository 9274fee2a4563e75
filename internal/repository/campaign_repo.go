package repository

import (
	"context"

	"github.com/google/uuid"

	"groupflow/distributor/internal/model"
)

type CampaignRepository interface {
	Create(ctx context.Context, campaign *model.Campaign) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Campaign, error)
	GetBySlug(ctx context.Context, slug string) (*model.Campaign, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	// List returns campaigns of one owner, or all campaigns when ownerID is uuid.Nil.
	List(ctx context.Context, ownerID uuid.UUID) ([]model.Campaign, error)
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error
	IncrementGroupCount(ctx context.Context, id uuid.UUID) error
}
