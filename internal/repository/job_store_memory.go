package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"groupflow/distributor/internal/model"
)

type memEntry struct {
	job       model.BulkJob
	expiresAt time.Time
	hasTTL    bool
}

func (e memEntry) isExpired() bool {
	return e.hasTTL && time.Now().After(e.expiresAt)
}

type memoryJobStore struct {
	mu      sync.RWMutex
	entries map[string]memEntry
}

func NewMemoryJobStore() JobStore {
	return &memoryJobStore{
		entries: make(map[string]memEntry),
	}
}

func (s *memoryJobStore) Save(_ context.Context, job *model.BulkJob, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := memEntry{job: copyJob(job)}
	if ttl > 0 {
		entry.hasTTL = true
		entry.expiresAt = time.Now().Add(ttl)
	}
	s.entries[jobKey(job.CampaignID)] = entry
	return nil
}

func (s *memoryJobStore) Get(_ context.Context, campaignID uuid.UUID) (*model.BulkJob, error) {
	key := jobKey(campaignID)

	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		return nil, nil
	}
	if entry.isExpired() {
		s.mu.Lock()
		delete(s.entries, key)
		s.mu.Unlock()
		return nil, nil
	}
	job := copyJob(&entry.job)
	return &job, nil
}

func (s *memoryJobStore) Delete(_ context.Context, campaignID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, jobKey(campaignID))
	return nil
}

// copyJob detaches the error slice so callers never share state with the store.
func copyJob(job *model.BulkJob) model.BulkJob {
	c := *job
	c.Errors = append([]model.BulkJobError(nil), job.Errors...)
	if job.FinishedAt != nil {
		t := *job.FinishedAt
		c.FinishedAt = &t
	}
	return c
}
