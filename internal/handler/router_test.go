package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"groupflow/distributor/internal/config"
	"groupflow/distributor/internal/gateway"
	"groupflow/distributor/internal/model"
	"groupflow/distributor/internal/repository"
	"groupflow/distributor/internal/scheduler"
	"groupflow/distributor/internal/service"
	"groupflow/distributor/internal/testutil"
	jwtpkg "groupflow/distributor/pkg/jwt"
)

type stubGateway struct{}

func (stubGateway) CreateGroup(context.Context, string, gateway.CreateGroupRequest) (string, error) {
	return uuid.NewString() + "@g.us", nil
}

func (stubGateway) GetGroupInfo(_ context.Context, _, groupID string) (*gateway.GroupInfo, error) {
	return &gateway.GroupInfo{ID: groupID}, nil
}

func (stubGateway) GetInviteLink(_ context.Context, _, groupID string) (string, error) {
	return "https://chat.whatsapp.com/" + groupID, nil
}

func (stubGateway) UpdateSubject(context.Context, string, string, string) error        { return nil }
func (stubGateway) UpdateDescription(context.Context, string, string, string) error    { return nil }
func (stubGateway) UpdateAdminOnlySetting(context.Context, string, string, bool) error { return nil }
func (stubGateway) UpdatePicture(context.Context, string, string, string) error        { return nil }

type testServer struct {
	router  *gin.Engine
	db      *gorm.DB
	jwt     *jwtpkg.Manager
	bulk    service.BulkUpdater
	release chan struct{}
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewTestDB(t)
	logger := zap.NewNop()
	gw := stubGateway{}

	campaigns := repository.NewPGCampaignRepository(db)
	groups := repository.NewPGGroupRepository(db)
	members := repository.NewPGMemberRepository(db)
	instances := repository.NewPGInstanceRepository(db)
	logs := repository.NewPGLogRepository(db)
	recorder := service.NewActivityRecorder(logs, nil, logger)

	scaler := service.NewAutoScaler(groups, campaigns, instances, gw, recorder, nil, logger, 5)
	syncer := service.NewMembershipSyncer(groups, instances, gw, scaler, recorder, nil, logger, 0.9)
	sched := scheduler.New(syncer, scaler, logger, scheduler.Options{Interval: time.Hour})
	registrar := service.NewRegistrar(campaigns, groups, members, recorder, nil, logger, "BR")
	campaignSvc := service.NewCampaignService(campaigns, groups, members, instances, logs, gw, recorder, nil, logger, "BR")

	release := make(chan struct{})
	bulk := service.NewBulkUpdater(campaigns, groups, instances, repository.NewMemoryJobStore(), logs, gw, recorder, nil, logger,
		service.BulkOptions{Sleep: func(context.Context, time.Duration) { <-release }})
	t.Cleanup(func() {
		select {
		case <-release:
		default:
			close(release)
		}
		bulk.Wait()
	})

	cfg := &config.Config{}
	cfg.Server.Mode = "test"
	jwtManager := jwtpkg.NewManager("test-secret", "groupflow", time.Hour)

	router := SetupRouter(cfg, logger, jwtManager, nil, nil, Handlers{
		Distribution: NewDistributionHandler(registrar),
		Campaign:     NewCampaignHandler(campaignSvc, nil),
		Bulk:         NewBulkHandler(bulk, campaignSvc, nil),
		Admin:        NewAdminHandler(sched),
	})
	return &testServer{router: router, db: db, jwt: jwtManager, bulk: bulk, release: release}
}

func (s *testServer) token(t *testing.T, userID uuid.UUID, role jwtpkg.Role) string {
	t.Helper()
	tok, err := s.jwt.GenerateAccessToken(userID, role)
	require.NoError(t, err)
	return tok
}

func (s *testServer) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder, into interface{}) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	if into != nil {
		require.NoError(t, json.Unmarshal(env.Data, into))
	}
	return env
}

func TestPublicLinks(t *testing.T) {
	s := newTestServer(t)
	instance := testutil.SeedInstance(t, s.db, "5511999990000")
	campaign := testutil.SeedCampaign(t, s.db, instance.ID, nil)

	w := s.do(http.MethodGet, "/g/"+campaign.Slug, "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "no groups available", decode(t, w, nil).Message)

	group := testutil.SeedGroup(t, s.db, campaign, 1, func(g *model.Group) { g.IsActiveForDistribution = true })

	w = s.do(http.MethodGet, "/g/"+campaign.Slug, "", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, *group.InviteLink, w.Header().Get("Location"))

	var reg RegisterResponse
	w = s.do(http.MethodPost, "/g/"+campaign.Slug+"/register", "", RegisterRequest{Phone: "11988887777"})
	require.Equal(t, http.StatusCreated, w.Code)
	decode(t, w, &reg)
	assert.Equal(t, 1, reg.GroupNumber)
	assert.False(t, reg.AlreadyRegistered)

	w = s.do(http.MethodPost, "/g/"+campaign.Slug+"/register", "", RegisterRequest{Phone: "+55 11 98888-7777"})
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &reg)
	assert.True(t, reg.AlreadyRegistered)
	assert.Equal(t, *group.InviteLink, reg.InviteLink)

	w = s.do(http.MethodPost, "/g/"+campaign.Slug+"/register", "", RegisterRequest{Phone: "abc"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/g/unknown", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestOperatorCampaignFlow(t *testing.T) {
	s := newTestServer(t)
	owner := uuid.New()
	tok := s.token(t, owner, jwtpkg.RoleOperator)

	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/v1/campaigns", "", nil).Code)

	var instance model.Instance
	w := s.do(http.MethodPost, "/api/v1/instances", tok, CreateInstanceRequest{Name: "main", PhoneNumber: "+5511999990000"})
	require.Equal(t, http.StatusCreated, w.Code)
	decode(t, w, &instance)

	var campaign model.Campaign
	w = s.do(http.MethodPost, "/api/v1/campaigns", tok, CreateCampaignRequest{
		InstanceID:        instance.ID,
		Name:              "Promo",
		GroupNameTemplate: "Promo #{group_number}",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	decode(t, w, &campaign)
	assert.Equal(t, "promo", campaign.Slug)

	base := "/api/v1/campaigns/" + campaign.ID.String()
	w = s.do(http.MethodPatch, base+"/status", tok, UpdateStatusRequest{Status: model.CampaignStatusActive})
	require.Equal(t, http.StatusOK, w.Code)

	var group model.Group
	w = s.do(http.MethodPost, base+"/groups", tok, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	decode(t, w, &group)
	assert.Equal(t, "Promo 1", group.Name)
	assert.True(t, group.IsActiveForDistribution)

	var stats service.CampaignStats
	w = s.do(http.MethodGet, base+"/stats", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &stats)
	assert.Equal(t, 1, stats.TotalGroups)

	var logs []model.Log
	w = s.do(http.MethodGet, base+"/logs?event_type=campaign_created", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &logs)
	assert.Len(t, logs, 1)

	stranger := s.token(t, uuid.New(), jwtpkg.RoleOperator)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, base, stranger, nil).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, base, s.token(t, uuid.New(), jwtpkg.RoleAdmin), nil).Code)
}

func TestBulkUpdateEndpoints(t *testing.T) {
	s := newTestServer(t)
	owner := uuid.New()
	tok := s.token(t, owner, "")

	instance := testutil.SeedInstance(t, s.db, "5511999990000")
	campaign := testutil.SeedCampaign(t, s.db, instance.ID, func(c *model.Campaign) { c.OwnerID = owner })
	testutil.SeedGroup(t, s.db, campaign, 1, nil)
	testutil.SeedGroup(t, s.db, campaign, 2, nil)
	base := "/api/v1/campaigns/" + campaign.ID.String() + "/bulk-update"

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, base, tok, nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, base, tok, map[string]interface{}{}).Code)

	description := "new rules"
	w := s.do(http.MethodPost, base, tok, service.BulkUpdate{GroupDescription: &description})
	require.Equal(t, http.StatusAccepted, w.Code)

	w = s.do(http.MethodPost, base, tok, service.BulkUpdate{GroupDescription: &description})
	assert.Equal(t, http.StatusConflict, w.Code)

	close(s.release)
	s.bulk.Wait()

	var job model.BulkJob
	w = s.do(http.MethodGet, base, tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &job)
	assert.Equal(t, model.BulkJobCompleted, job.Status)
	assert.Equal(t, 2, job.ProcessedGroups)

	var history []model.Log
	w = s.do(http.MethodGet, base+"/history", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &history)
	assert.Len(t, history, 1)
}

func TestAdminRoutes(t *testing.T) {
	s := newTestServer(t)
	operator := s.token(t, uuid.New(), jwtpkg.RoleOperator)
	admin := s.token(t, uuid.New(), jwtpkg.RoleAdmin)

	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/api/v1/admin/sync", operator, nil).Code)

	var st scheduler.Status
	w := s.do(http.MethodGet, "/api/v1/admin/sync", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &st)
	assert.False(t, st.Running)

	id := uuid.New()
	w = s.do(http.MethodPut, "/api/v1/admin/sync/campaigns/"+id.String()+"/interval", admin, SetIntervalRequest{Interval: "15s"})
	require.Equal(t, http.StatusOK, w.Code)
	w = s.do(http.MethodPut, "/api/v1/admin/sync/campaigns/"+id.String()+"/interval", admin, SetIntervalRequest{Interval: "soon"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Equal(t, http.StatusOK, s.do(http.MethodDelete, "/api/v1/admin/sync/campaigns/"+id.String()+"/interval", admin, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodDelete, "/api/v1/admin/sync/campaigns/"+id.String()+"/interval", admin, nil).Code)

	var report service.SyncReport
	w = s.do(http.MethodPost, "/api/v1/admin/sync/run", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &report)
	assert.Zero(t, report.Checked)

	assert.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/v1/admin/cascade/run", admin, nil).Code)
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/healthz", "", nil).Code)
}

func TestManualGroupWithoutAdminPhone(t *testing.T) {
	s := newTestServer(t)
	tok := s.token(t, uuid.New(), jwtpkg.RoleOperator)

	var instance model.Instance
	w := s.do(http.MethodPost, "/api/v1/instances", tok, CreateInstanceRequest{Name: "main"})
	require.Equal(t, http.StatusCreated, w.Code)
	decode(t, w, &instance)

	var campaign model.Campaign
	w = s.do(http.MethodPost, "/api/v1/campaigns", tok, CreateCampaignRequest{
		InstanceID:        instance.ID,
		Name:              "Promo",
		GroupNameTemplate: "Promo {group_number}",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	decode(t, w, &campaign)

	w = s.do(http.MethodPost, "/api/v1/campaigns/"+campaign.ID.String()+"/groups", tok, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "admin phone required")
}
