package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"groupflow/distributor/internal/model"
)

// JobStore keeps the latest bulk job per campaign.
// Implementations: Redis (survives restarts) or in-memory (single process).
type JobStore interface {
	Save(ctx context.Context, job *model.BulkJob, ttl time.Duration) error
	// Get returns nil, nil when no job is recorded for the campaign.
	Get(ctx context.Context, campaignID uuid.UUID) (*model.BulkJob, error)
	Delete(ctx context.Context, campaignID uuid.UUID) error
}

func jobKey(campaignID uuid.UUID) string {
	return "bulk_job:" + campaignID.String()
}
