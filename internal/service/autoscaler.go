package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"gorm.io/gorm"

	"groupflow/distributor/internal/gateway"
	"groupflow/distributor/internal/metrics"
	"groupflow/distributor/internal/model"
	"groupflow/distributor/internal/repository"
)

const MinGroupSizeFloor = 5

type CascadeReport struct {
	Candidates  int  `json:"candidates"`
	Created     int  `json:"created"`
	Reactivated int  `json:"reactivated"`
	Failed      int  `json:"failed"`
	Skipped     bool `json:"skipped"`
}

// AutoScaler opens a successor group for every full distribution group.
type AutoScaler interface {
	// Run is single-flight: while a pass is running, further calls return
	// immediately with Skipped set and no error.
	Run(ctx context.Context) (*CascadeReport, error)
}

type autoScaler struct {
	groups       repository.GroupRepository
	campaigns    repository.CampaignRepository
	instances    repository.InstanceRepository
	provisioner  *groupProvisioner
	recorder     *ActivityRecorder
	metrics      *metrics.Metrics
	logger       *zap.Logger
	minGroupSize int
	running      *semaphore.Weighted
}

var _ AutoScaler = (*autoScaler)(nil)

func NewAutoScaler(
	groups repository.GroupRepository,
	campaigns repository.CampaignRepository,
	instances repository.InstanceRepository,
	gw gateway.Gateway,
	recorder *ActivityRecorder,
	m *metrics.Metrics,
	logger *zap.Logger,
	minGroupSize int,
) AutoScaler {
	if minGroupSize < MinGroupSizeFloor {
		minGroupSize = MinGroupSizeFloor
	}
	return &autoScaler{
		groups:    groups,
		campaigns: campaigns,
		instances: instances,
		provisioner: &groupProvisioner{
			gw:        gw,
			groups:    groups,
			campaigns: campaigns,
			recorder:  recorder,
			metrics:   m,
			logger:    logger,
		},
		recorder:     recorder,
		metrics:      m,
		logger:       logger,
		minGroupSize: minGroupSize,
		running:      semaphore.NewWeighted(1),
	}
}

func (a *autoScaler) Run(ctx context.Context) (*CascadeReport, error) {
	report := &CascadeReport{}
	if !a.running.TryAcquire(1) {
		report.Skipped = true
		a.metrics.IncCascadeRun("skipped")
		return report, nil
	}
	defer a.running.Release(1)

	candidates, err := a.groups.ListFillCandidates(ctx, a.minGroupSize)
	if err != nil {
		a.metrics.IncCascadeRun("error")
		return report, fmt.Errorf("list fill candidates: %w", err)
	}
	report.Candidates = len(candidates)

	for i := range candidates {
		candidate := &candidates[i]
		reactivated, err := a.advance(ctx, candidate)
		switch {
		case err != nil:
			report.Failed++
			a.fail(ctx, candidate, err)
		case reactivated:
			report.Reactivated++
		default:
			report.Created++
		}
	}

	a.metrics.IncCascadeRun("ok")
	if report.Candidates > 0 {
		a.logger.Info("cascade finished",
			zap.Int("candidates", report.Candidates),
			zap.Int("created", report.Created),
			zap.Int("reactivated", report.Reactivated),
			zap.Int("failed", report.Failed),
		)
	}
	return report, nil
}

// advance moves distribution off a full group. It reports true when an
// existing successor took over and false when a new group was created.
func (a *autoScaler) advance(ctx context.Context, candidate *model.Group) (bool, error) {
	successor, err := a.groups.FindSuccessor(ctx, candidate.CampaignID, candidate.GroupNumber)
	switch {
	case err == nil:
		if err := a.groups.SwapActive(ctx, candidate.ID, successor.ID); err != nil {
			return false, fmt.Errorf("reactivate group %d: %w", successor.GroupNumber, err)
		}
		a.recorder.recordOrWarn(ctx, candidate.CampaignID, &successor.ID, model.EventAutoGroupReactivated,
			fmt.Sprintf("group %d full, distribution moved to existing group %d", candidate.GroupNumber, successor.GroupNumber),
			predecessorMeta(candidate))
		return true, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return false, fmt.Errorf("find successor: %w", err)
	}

	campaign, err := a.campaigns.GetByID(ctx, candidate.CampaignID)
	if err != nil {
		return false, fmt.Errorf("load campaign: %w", err)
	}
	instance, err := a.instances.GetByID(ctx, campaign.InstanceID)
	if err != nil {
		return false, fmt.Errorf("load instance: %w", err)
	}
	if instance.PhoneNumber == "" {
		return false, gateway.ErrAdminPhoneRequired
	}

	if err := a.groups.SetActiveForDistribution(ctx, candidate.ID, false); err != nil {
		return false, fmt.Errorf("deactivate group %d: %w", candidate.GroupNumber, err)
	}

	group, err := a.createSuccessor(ctx, campaign, instance)
	if err != nil {
		// Hand distribution back so the next pass picks the candidate up again.
		if rerr := a.groups.SetActiveForDistribution(ctx, candidate.ID, true); rerr != nil {
			a.logger.Error("restore distribution flag failed",
				zap.String("group_id", candidate.ID.String()), zap.Error(rerr))
		}
		return false, err
	}

	meta := predecessorMeta(candidate)
	meta["group_number"] = group.GroupNumber
	meta["external_group_id"] = group.ExternalGroupID
	meta["invite_link_ready"] = group.HasInviteLink()
	a.recorder.recordOrWarn(ctx, campaign.ID, &group.ID, model.EventAutoGroupCreated,
		fmt.Sprintf("group %d full, created group %d", candidate.GroupNumber, group.GroupNumber),
		meta)
	return false, nil
}

func (a *autoScaler) createSuccessor(ctx context.Context, campaign *model.Campaign, instance *model.Instance) (*model.Group, error) {
	highest, err := a.groups.MaxGroupNumber(ctx, campaign.ID)
	if err != nil {
		return nil, fmt.Errorf("next group number: %w", err)
	}
	return a.provisioner.provision(ctx, campaign, instance, highest+1, true)
}

func (a *autoScaler) fail(ctx context.Context, candidate *model.Group, err error) {
	a.logger.Error("cascade candidate failed",
		zap.String("campaign_id", candidate.CampaignID.String()),
		zap.String("group_id", candidate.ID.String()),
		zap.Int("group_number", candidate.GroupNumber),
		zap.Error(err),
	)
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", "cascade")
		scope.SetTag("campaign_id", candidate.CampaignID.String())
		sentry.CaptureException(err)
	})
	meta := predecessorMeta(candidate)
	meta["error"] = err.Error()
	a.recorder.recordOrWarn(ctx, candidate.CampaignID, &candidate.ID, model.EventAutoGroupFailed,
		fmt.Sprintf("could not open successor for group %d", candidate.GroupNumber), meta)
}

func predecessorMeta(g *model.Group) map[string]interface{} {
	return map[string]interface{}{
		"predecessor_id":           g.ID.String(),
		"predecessor_number":       g.GroupNumber,
		"predecessor_member_count": g.CurrentMemberCount,
		"predecessor_capacity":     g.MaxMembers,
	}
}
