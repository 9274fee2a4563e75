package repository

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groupflow/distributor/internal/model"
	"groupflow/distributor/internal/testutil"
)

func TestCampaignRepository_SlugLookup(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewPGCampaignRepository(db)
	ctx := context.Background()

	instance := testutil.SeedInstance(t, db, "5511999990000")
	campaign := testutil.SeedCampaign(t, db, instance.ID, func(c *model.Campaign) { c.Slug = "promo" })

	exists, err := repo.SlugExists(ctx, "promo")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.SlugExists(ctx, "promo-1")
	require.NoError(t, err)
	assert.False(t, exists)

	got, err := repo.GetBySlug(ctx, "promo")
	require.NoError(t, err)
	assert.Equal(t, campaign.ID, got.ID)
}

func TestCampaignRepository_UpdateAndIncrement(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewPGCampaignRepository(db)
	ctx := context.Background()

	instance := testutil.SeedInstance(t, db, "5511999990000")
	campaign := testutil.SeedCampaign(t, db, instance.ID, nil)

	require.NoError(t, repo.UpdateFields(ctx, campaign.ID, map[string]interface{}{
		"group_description": "new description",
		"admin_only":        true,
	}))
	require.NoError(t, repo.IncrementGroupCount(ctx, campaign.ID))

	got, err := repo.GetByID(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, "new description", got.GroupDescription)
	assert.True(t, got.AdminOnly)
	assert.Equal(t, 1, got.TotalGroupsCreated)

	err = repo.UpdateFields(ctx, uuid.New(), map[string]interface{}{"name": "x"})
	assert.Error(t, err)
}

func TestCampaignRepository_ListByOwner(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewPGCampaignRepository(db)
	ctx := context.Background()

	instance := testutil.SeedInstance(t, db, "5511999990000")
	owner := uuid.New()
	testutil.SeedCampaign(t, db, instance.ID, func(c *model.Campaign) { c.OwnerID = owner })
	testutil.SeedCampaign(t, db, instance.ID, func(c *model.Campaign) { c.OwnerID = owner })
	testutil.SeedCampaign(t, db, instance.ID, nil)

	mine, err := repo.List(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	all, err := repo.List(ctx, uuid.Nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
