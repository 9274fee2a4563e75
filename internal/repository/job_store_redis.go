package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"groupflow/distributor/internal/model"
)

type redisJobStore struct {
	client *redis.Client
}

func NewRedisJobStore(client *redis.Client) JobStore {
	return &redisJobStore{client: client}
}

func (s *redisJobStore) Save(ctx context.Context, job *model.BulkJob, ttl time.Duration) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal bulk job: %w", err)
	}
	return s.client.Set(ctx, jobKey(job.CampaignID), data, ttl).Err()
}

func (s *redisJobStore) Get(ctx context.Context, campaignID uuid.UUID) (*model.BulkJob, error) {
	val, err := s.client.Get(ctx, jobKey(campaignID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var job model.BulkJob
	if err := json.Unmarshal(val, &job); err != nil {
		return nil, fmt.Errorf("unmarshal bulk job: %w", err)
	}
	return &job, nil
}

func (s *redisJobStore) Delete(ctx context.Context, campaignID uuid.UUID) error {
	return s.client.Del(ctx, jobKey(campaignID)).Err()
}
