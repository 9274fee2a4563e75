package model

import (
	"time"

	"github.com/google/uuid"
)

type BulkJobStatus string

const (
	BulkJobProcessing BulkJobStatus = "processing"
	BulkJobCompleted  BulkJobStatus = "completed"
	BulkJobFailed     BulkJobStatus = "error"
)

type BulkJobError struct {
	GroupID     uuid.UUID `json:"group_id"`
	GroupNumber int       `json:"group_number"`
	Error       string    `json:"error"`
}

// BulkJob tracks one paced reconfiguration run. It lives in the job store,
// not in the relational database.
type BulkJob struct {
	ID              uuid.UUID      `json:"id"`
	CampaignID      uuid.UUID      `json:"campaign_id"`
	TotalGroups     int            `json:"total_groups"`
	ProcessedGroups int            `json:"processed_groups"`
	Errors          []BulkJobError `json:"errors"`
	StartedAt       time.Time      `json:"started_at"`
	FinishedAt      *time.Time     `json:"finished_at,omitempty"`
	Status          BulkJobStatus  `json:"status"`
	FatalError      string         `json:"fatal_error,omitempty"`
}
