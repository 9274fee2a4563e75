package repository

import (
	"context"

	"github.com/google/uuid"

	"groupflow/distributor/internal/model"
)

type LogFilter struct {
	EventTypes []model.EventType
	Limit      int
}

// LogRepository is append-only; there is no update or delete.
type LogRepository interface {
	Append(ctx context.Context, entry *model.Log) error
	ListByCampaign(ctx context.Context, campaignID uuid.UUID, filter LogFilter) ([]model.Log, error)
}
