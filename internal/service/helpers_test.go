package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"groupflow/distributor/internal/gateway"
	"groupflow/distributor/internal/repository"
	"groupflow/distributor/internal/testutil"
)

type gatewayCall struct {
	Op      string
	GroupID string
	Value   interface{}
}

// fakeGateway records calls; each Func field overrides the default behaviour.
type fakeGateway struct {
	mu      sync.Mutex
	calls   []gatewayCall
	created int

	CreateGroupFunc   func(ctx context.Context, instance string, req gateway.CreateGroupRequest) (string, error)
	GetGroupInfoFunc  func(ctx context.Context, instance, groupID string) (*gateway.GroupInfo, error)
	GetInviteLinkFunc func(ctx context.Context, instance, groupID string) (string, error)
	UpdateFunc        func(op, groupID string) error
}

func (f *fakeGateway) record(op, groupID string, value interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, gatewayCall{Op: op, GroupID: groupID, Value: value})
}

func (f *fakeGateway) callsFor(op string) []gatewayCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []gatewayCall
	for _, c := range f.calls {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeGateway) CreateGroup(ctx context.Context, instance string, req gateway.CreateGroupRequest) (string, error) {
	f.record("create", "", req.Name)
	if f.CreateGroupFunc != nil {
		return f.CreateGroupFunc(ctx, instance, req)
	}
	f.mu.Lock()
	f.created++
	n := f.created
	f.mu.Unlock()
	return fmt.Sprintf("12036300000%d@g.us", n), nil
}

func (f *fakeGateway) GetGroupInfo(ctx context.Context, instance, groupID string) (*gateway.GroupInfo, error) {
	f.record("info", groupID, nil)
	if f.GetGroupInfoFunc != nil {
		return f.GetGroupInfoFunc(ctx, instance, groupID)
	}
	return &gateway.GroupInfo{ID: groupID}, nil
}

func (f *fakeGateway) GetInviteLink(ctx context.Context, instance, groupID string) (string, error) {
	f.record("invite", groupID, nil)
	if f.GetInviteLinkFunc != nil {
		return f.GetInviteLinkFunc(ctx, instance, groupID)
	}
	return "https://chat.whatsapp.com/" + groupID, nil
}

func (f *fakeGateway) update(op, groupID string, value interface{}) error {
	f.record(op, groupID, value)
	if f.UpdateFunc != nil {
		return f.UpdateFunc(op, groupID)
	}
	return nil
}

func (f *fakeGateway) UpdateSubject(_ context.Context, _, groupID, subject string) error {
	return f.update("subject", groupID, subject)
}

func (f *fakeGateway) UpdateDescription(_ context.Context, _, groupID, description string) error {
	return f.update("description", groupID, description)
}

func (f *fakeGateway) UpdateAdminOnlySetting(_ context.Context, _, groupID string, enabled bool) error {
	return f.update("admin_only", groupID, enabled)
}

func (f *fakeGateway) UpdatePicture(_ context.Context, _, groupID, imageURL string) error {
	return f.update("picture", groupID, imageURL)
}

type repos struct {
	db        *gorm.DB
	campaigns repository.CampaignRepository
	groups    repository.GroupRepository
	members   repository.MemberRepository
	instances repository.InstanceRepository
	logs      repository.LogRepository
	recorder  *ActivityRecorder
}

func newRepos(t *testing.T) *repos {
	t.Helper()
	db := testutil.NewTestDB(t)
	logs := repository.NewPGLogRepository(db)
	return &repos{
		db:        db,
		campaigns: repository.NewPGCampaignRepository(db),
		groups:    repository.NewPGGroupRepository(db),
		members:   repository.NewPGMemberRepository(db),
		instances: repository.NewPGInstanceRepository(db),
		logs:      logs,
		recorder:  NewActivityRecorder(logs, nil, zap.NewNop()),
	}
}
