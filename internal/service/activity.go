package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"groupflow/distributor/internal/events"
	"groupflow/distributor/internal/model"
	"groupflow/distributor/internal/repository"
)

const (
	publishQueueSize = 1024
	publishTimeout   = 2 * time.Second
)

// ActivityRecorder appends campaign log entries and mirrors them to the event stream.
type ActivityRecorder struct {
	logs      repository.LogRepository
	publisher events.Publisher
	logger    *zap.Logger
}

func NewActivityRecorder(logs repository.LogRepository, publisher events.Publisher, logger *zap.Logger) *ActivityRecorder {
	switch publisher.(type) {
	case nil:
		publisher = events.NewNoopPublisher()
	case *events.AsyncPublisher:
	default:
		publisher = events.NewAsyncPublisher(publisher, logger, publishQueueSize, publishTimeout)
	}
	return &ActivityRecorder{logs: logs, publisher: publisher, logger: logger}
}

// Close flushes queued events and closes the publisher.
func (r *ActivityRecorder) Close() error {
	return r.publisher.Close()
}

// Record persists the entry. Publishing is best-effort and never fails the call.
func (r *ActivityRecorder) Record(ctx context.Context, campaignID uuid.UUID, groupID *uuid.UUID, eventType model.EventType, description string, meta datatypes.JSONMap) error {
	entry := &model.Log{
		CampaignID:  campaignID,
		GroupID:     groupID,
		EventType:   eventType,
		Description: description,
		Metadata:    meta,
	}
	if err := r.logs.Append(ctx, entry); err != nil {
		return fmt.Errorf("append %s log: %w", eventType, err)
	}

	if err := r.publisher.Publish(ctx, events.Event{
		ID:          entry.ID,
		CampaignID:  campaignID,
		GroupID:     groupID,
		Type:        string(eventType),
		Description: description,
		Metadata:    meta,
		OccurredAt:  entry.CreatedAt,
	}); err != nil {
		r.logger.Warn("campaign event not queued",
			zap.String("event_type", string(eventType)),
			zap.String("campaign_id", campaignID.String()),
			zap.Error(err),
		)
	}
	return nil
}

// recordOrWarn is for side logs whose failure must not abort the caller.
func (r *ActivityRecorder) recordOrWarn(ctx context.Context, campaignID uuid.UUID, groupID *uuid.UUID, eventType model.EventType, description string, meta datatypes.JSONMap) {
	if err := r.Record(ctx, campaignID, groupID, eventType, description, meta); err != nil {
		r.logger.Warn("record campaign log failed", zap.Error(err))
	}
}
