// Package events mirrors campaign log entries to an external stream.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Event struct {
	ID          uuid.UUID              `json:"id"`
	CampaignID  uuid.UUID              `json:"campaign_id"`
	GroupID     *uuid.UUID             `json:"group_id,omitempty"`
	Type        string                 `json:"type"`
	Description string                 `json:"description"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	OccurredAt  time.Time              `json:"occurred_at"`
}

// Publisher delivers events best-effort. Implementations must not block
// longer than the context allows.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

type noopPublisher struct{}

func NewNoopPublisher() Publisher { return noopPublisher{} }

func (noopPublisher) Publish(context.Context, Event) error { return nil }
func (noopPublisher) Close() error                         { return nil }
