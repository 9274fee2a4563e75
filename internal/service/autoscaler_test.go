package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"groupflow/distributor/internal/gateway"
	"groupflow/distributor/internal/model"
	"groupflow/distributor/internal/repository"
	"groupflow/distributor/internal/testutil"
)

func newTestScaler(r *repos, gw gateway.Gateway) AutoScaler {
	return NewAutoScaler(r.groups, r.campaigns, r.instances, gw, r.recorder, nil, zap.NewNop(), MinGroupSizeFloor)
}

func seedFullCampaign(t *testing.T, r *repos, phone string) (*model.Campaign, *model.Group) {
	t.Helper()
	instance := testutil.SeedInstance(t, r.db, phone)
	campaign := testutil.SeedCampaign(t, r.db, instance.ID, func(c *model.Campaign) { c.MaxMembersPerGroup = 5 })
	full := testutil.SeedGroup(t, r.db, campaign, 1, func(g *model.Group) {
		g.IsActiveForDistribution = true
		g.CurrentMemberCount = 5
	})
	return campaign, full
}

func TestAutoScaler_CreatesExactlyOneSuccessor(t *testing.T) {
	r := newRepos(t)
	ctx := context.Background()
	campaign, full := seedFullCampaign(t, r, "5511999990000")

	gw := &fakeGateway{}
	scaler := newTestScaler(r, gw)

	report, err := scaler.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Candidates)
	assert.Equal(t, 1, report.Created)

	creates := gw.callsFor("create")
	require.Len(t, creates, 1)
	assert.Equal(t, "Group 2", creates[0].Value)

	groups, err := r.groups.ListByCampaign(ctx, campaign.ID)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.False(t, groups[0].IsActiveForDistribution)
	assert.True(t, groups[1].IsActiveForDistribution)
	assert.Equal(t, 2, groups[1].GroupNumber)
	assert.True(t, groups[1].HasInviteLink())

	stored, err := r.campaigns.GetByID(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, campaign.TotalGroupsCreated+1, stored.TotalGroupsCreated)

	logs, err := r.logs.ListByCampaign(ctx, campaign.ID, repository.LogFilter{EventTypes: []model.EventType{model.EventAutoGroupCreated}})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, full.ID.String(), logs[0].Metadata["predecessor_id"])

	// The successor is not full, so a second pass has nothing to do.
	report, err = scaler.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Candidates)
	assert.Len(t, gw.callsFor("create"), 1)
}

func TestAutoScaler_ReactivatesExistingSuccessor(t *testing.T) {
	r := newRepos(t)
	ctx := context.Background()
	campaign, full := seedFullCampaign(t, r, "5511999990000")
	spare := testutil.SeedGroup(t, r.db, campaign, 2, func(g *model.Group) { g.CurrentMemberCount = 2 })

	gw := &fakeGateway{}
	report, err := newTestScaler(r, gw).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Reactivated)
	assert.Empty(t, gw.callsFor("create"))

	got, err := r.groups.FindActiveForDistribution(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, spare.ID, got.ID)

	old, err := r.groups.GetByID(ctx, full.ID)
	require.NoError(t, err)
	assert.False(t, old.IsActiveForDistribution)
}

func TestAutoScaler_AdminPhoneMissing(t *testing.T) {
	r := newRepos(t)
	ctx := context.Background()
	campaign, full := seedFullCampaign(t, r, "")

	gw := &fakeGateway{}
	report, err := newTestScaler(r, gw).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	assert.Empty(t, gw.callsFor("create"))

	stored, err := r.groups.GetByID(ctx, full.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsActiveForDistribution)

	logs, err := r.logs.ListByCampaign(ctx, campaign.ID, repository.LogFilter{EventTypes: []model.EventType{model.EventAutoGroupFailed}})
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestAutoScaler_GatewayFailureRestoresCandidate(t *testing.T) {
	r := newRepos(t)
	ctx := context.Background()
	campaign, full := seedFullCampaign(t, r, "5511999990000")

	gw := &fakeGateway{CreateGroupFunc: func(context.Context, string, gateway.CreateGroupRequest) (string, error) {
		return "", &gateway.Error{Op: "create", StatusCode: 502, Body: "bad gateway"}
	}}
	report, err := newTestScaler(r, gw).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)

	stored, err := r.groups.GetByID(ctx, full.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsActiveForDistribution)

	groups, err := r.groups.ListByCampaign(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Len(t, groups, 1)
}

func TestAutoScaler_ConcurrentRunIsNoop(t *testing.T) {
	r := newRepos(t)
	ctx := context.Background()
	seedFullCampaign(t, r, "5511999990000")

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	gw := &fakeGateway{CreateGroupFunc: func(context.Context, string, gateway.CreateGroupRequest) (string, error) {
		once.Do(func() { close(entered) })
		<-release
		return "", errors.New("gateway timeout")
	}}
	scaler := newTestScaler(r, gw)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = scaler.Run(ctx)
	}()

	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("first cascade never reached the gateway")
	}

	report, err := scaler.Run(ctx)
	require.NoError(t, err)
	assert.True(t, report.Skipped)

	close(release)
	<-done
	assert.Len(t, gw.callsFor("create"), 1)
}

func TestAutoScaler_IgnoresManualCampaigns(t *testing.T) {
	r := newRepos(t)
	ctx := context.Background()

	instance := testutil.SeedInstance(t, r.db, "5511999990000")
	campaign := testutil.SeedCampaign(t, r.db, instance.ID, func(c *model.Campaign) {
		c.MaxMembersPerGroup = 5
		c.AutoCreateGroups = false
	})
	testutil.SeedGroup(t, r.db, campaign, 1, func(g *model.Group) {
		g.IsActiveForDistribution = true
		g.CurrentMemberCount = 5
	})

	gw := &fakeGateway{}
	report, err := newTestScaler(r, gw).Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Candidates)
	assert.Empty(t, gw.callsFor("create"))
}
