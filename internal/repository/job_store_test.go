package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groupflow/distributor/internal/model"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return client, mr
}

func sampleJob() *model.BulkJob {
	return &model.BulkJob{
		ID:              uuid.New(),
		CampaignID:      uuid.New(),
		TotalGroups:     3,
		ProcessedGroups: 1,
		Errors:          []model.BulkJobError{{GroupNumber: 1, Error: "gateway timeout"}},
		StartedAt:       time.Now().UTC().Truncate(time.Second),
		Status:          model.BulkJobProcessing,
	}
}

func TestMemoryJobStore_SaveGet(t *testing.T) {
	store := NewMemoryJobStore()
	ctx := context.Background()
	job := sampleJob()

	got, err := store.Get(ctx, job.CampaignID)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, store.Save(ctx, job, time.Hour))

	// Mutating the caller's copy must not leak into the store.
	job.Errors = append(job.Errors, model.BulkJobError{GroupNumber: 2})

	got, err = store.Get(ctx, job.CampaignID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Len(t, got.Errors, 1)
	assert.Equal(t, model.BulkJobProcessing, got.Status)

	require.NoError(t, store.Delete(ctx, job.CampaignID))
	got, err = store.Get(ctx, job.CampaignID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryJobStore_Expiry(t *testing.T) {
	store := NewMemoryJobStore()
	ctx := context.Background()
	job := sampleJob()

	require.NoError(t, store.Save(ctx, job, time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	got, err := store.Get(ctx, job.CampaignID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisJobStore_SaveGet(t *testing.T) {
	client, mr := setupTestRedis(t)
	store := NewRedisJobStore(client)
	ctx := context.Background()
	job := sampleJob()

	require.NoError(t, store.Save(ctx, job, time.Hour))
	assert.True(t, mr.Exists("bulk_job:"+job.CampaignID.String()))

	got, err := store.Get(ctx, job.CampaignID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, 3, got.TotalGroups)
	assert.Equal(t, "gateway timeout", got.Errors[0].Error)
	assert.True(t, job.StartedAt.Equal(got.StartedAt))

	mr.FastForward(2 * time.Hour)
	got, err = store.Get(ctx, job.CampaignID)
	require.NoError(t, err)
	assert.Nil(t, got)
}
