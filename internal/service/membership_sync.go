package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"groupflow/distributor/internal/gateway"
	"groupflow/distributor/internal/metrics"
	"groupflow/distributor/internal/model"
	"groupflow/distributor/internal/repository"
)

type SyncReport struct {
	Checked            int       `json:"checked"`
	Updated            int       `json:"updated"`
	Failed             int       `json:"failed"`
	InviteLinksFetched int       `json:"invite_links_fetched"`
	Skipped            bool      `json:"skipped"`
	CascadeRan         bool      `json:"cascade_ran"`
	StartedAt          time.Time `json:"started_at"`
	Duration           string    `json:"duration"`
}

// MembershipSyncer reconciles cached member counts with the gateway.
type MembershipSyncer interface {
	// Sync sweeps the groups selected by filter. A sweep for the same filter
	// that is still running makes this call a no-op with Skipped set.
	Sync(ctx context.Context, filter repository.SyncFilter) (*SyncReport, error)
}

type membershipSyncer struct {
	groups    repository.GroupRepository
	instances repository.InstanceRepository
	gw        gateway.Gateway
	scaler    AutoScaler
	recorder  *ActivityRecorder
	metrics   *metrics.Metrics
	logger    *zap.Logger
	threshold float64
	now       func() time.Time

	mu       sync.Mutex
	inFlight map[string]*semaphore.Weighted
}

var _ MembershipSyncer = (*membershipSyncer)(nil)

func NewMembershipSyncer(
	groups repository.GroupRepository,
	instances repository.InstanceRepository,
	gw gateway.Gateway,
	scaler AutoScaler,
	recorder *ActivityRecorder,
	m *metrics.Metrics,
	logger *zap.Logger,
	warningThreshold float64,
) MembershipSyncer {
	if warningThreshold <= 0 || warningThreshold > 1 {
		warningThreshold = 0.9
	}
	return &membershipSyncer{
		groups:    groups,
		instances: instances,
		gw:        gw,
		scaler:    scaler,
		recorder:  recorder,
		metrics:   m,
		logger:    logger,
		threshold: warningThreshold,
		now:       time.Now,
		inFlight:  make(map[string]*semaphore.Weighted),
	}
}

func filterKey(f repository.SyncFilter) string {
	if len(f.CampaignIDs) == 0 {
		return "all"
	}
	ids := make([]string, 0, len(f.CampaignIDs))
	for _, id := range f.CampaignIDs {
		ids = append(ids, id.String())
	}
	sort.Strings(ids)
	return strings.Join(ids, ",")
}

func (s *membershipSyncer) guard(key string) *semaphore.Weighted {
	s.mu.Lock()
	defer s.mu.Unlock()
	sem, ok := s.inFlight[key]
	if !ok {
		sem = semaphore.NewWeighted(1)
		s.inFlight[key] = sem
	}
	return sem
}

func (s *membershipSyncer) Sync(ctx context.Context, filter repository.SyncFilter) (*SyncReport, error) {
	report := &SyncReport{StartedAt: s.now()}

	sem := s.guard(filterKey(filter))
	if !sem.TryAcquire(1) {
		report.Skipped = true
		s.metrics.IncSyncRun("skipped")
		s.logger.Debug("sync sweep still running, skipping tick", zap.String("scope", filterKey(filter)))
		return report, nil
	}
	defer sem.Release(1)

	groups, err := s.groups.ListSyncTargets(ctx, filter)
	if err != nil {
		s.metrics.IncSyncRun("error")
		return report, fmt.Errorf("list sync targets: %w", err)
	}

	instances := map[uuid.UUID]*model.Instance{}
	stalled := false
	for i := range groups {
		group := &groups[i]
		report.Checked++

		instance, err := s.instanceFor(ctx, instances, group.InstanceID)
		if err != nil {
			report.Failed++
			s.logger.Warn("sync group skipped: instance lookup failed",
				zap.String("group_id", group.ID.String()), zap.Error(err))
			continue
		}

		changed, err := s.syncGroup(ctx, instance, group)
		if err != nil {
			report.Failed++
			s.logger.Warn("sync group failed",
				zap.String("group_id", group.ID.String()),
				zap.Int("group_number", group.GroupNumber),
				zap.Error(err),
			)
			continue
		}
		if changed {
			report.Updated++
		}
		if group.IsActiveForDistribution && group.IsFull() {
			stalled = true
		}

		if group.IsActiveForDistribution && !group.HasInviteLink() && s.retryInviteLink(ctx, instance, group) {
			report.InviteLinksFetched++
		}
	}

	// A full group still marked for distribution is left over from a failed
	// or skipped cascade.
	if (report.Updated > 0 || stalled) && s.scaler != nil {
		cascade, err := s.scaler.Run(ctx)
		switch {
		case err != nil:
			s.logger.Error("cascade after sync failed", zap.Error(err))
		case !cascade.Skipped:
			report.CascadeRan = true
		}
	}

	report.Duration = s.now().Sub(report.StartedAt).String()
	s.metrics.IncSyncRun("ok")
	s.metrics.AddSyncResult(report.Updated, report.Failed)
	s.logger.Info("sync sweep finished",
		zap.Int("checked", report.Checked),
		zap.Int("updated", report.Updated),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

func (s *membershipSyncer) instanceFor(ctx context.Context, cache map[uuid.UUID]*model.Instance, id uuid.UUID) (*model.Instance, error) {
	if inst, ok := cache[id]; ok {
		return inst, nil
	}
	inst, err := s.instances.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	cache[id] = inst
	return inst, nil
}

// syncGroup writes nothing when the gateway count equals the cached one.
func (s *membershipSyncer) syncGroup(ctx context.Context, instance *model.Instance, group *model.Group) (bool, error) {
	info, err := s.gw.GetGroupInfo(ctx, instance.Name, group.ExternalGroupID)
	if err != nil {
		return false, err
	}

	previous, current := group.CurrentMemberCount, info.ParticipantCount
	if previous == current {
		return false, nil
	}

	if err := s.groups.UpdateMemberCount(ctx, group.ID, current, s.now()); err != nil {
		return false, fmt.Errorf("persist member count: %w", err)
	}
	group.CurrentMemberCount = current

	s.recorder.recordOrWarn(ctx, group.CampaignID, &group.ID, model.EventMemberCountUpdated,
		fmt.Sprintf("group %d member count %d -> %d", group.GroupNumber, previous, current),
		map[string]interface{}{
			"previous": previous,
			"current":  current,
			"delta":    current - previous,
		})

	if s.crossedWarning(previous, current, group.MaxMembers) {
		s.recorder.recordOrWarn(ctx, group.CampaignID, &group.ID, model.EventCapacityWarning,
			fmt.Sprintf("group %d reached %d of %d members", group.GroupNumber, current, group.MaxMembers),
			map[string]interface{}{
				"current":   current,
				"capacity":  group.MaxMembers,
				"threshold": s.threshold,
			})
	}
	return true, nil
}

func (s *membershipSyncer) crossedWarning(previous, current, capacity int) bool {
	if capacity <= 0 {
		return false
	}
	limit := s.threshold * float64(capacity)
	return float64(previous) < limit && float64(current) >= limit
}

func (s *membershipSyncer) retryInviteLink(ctx context.Context, instance *model.Instance, group *model.Group) bool {
	link, err := s.gw.GetInviteLink(ctx, instance.Name, group.ExternalGroupID)
	if err == nil {
		err = s.groups.SetInviteLink(ctx, group.ID, link)
	}
	if err != nil {
		s.logger.Warn("invite link retry failed", zap.String("group_id", group.ID.String()), zap.Error(err))
		return false
	}
	group.InviteLink = &link
	s.recorder.recordOrWarn(ctx, group.CampaignID, &group.ID, model.EventInviteLinkRefreshed,
		fmt.Sprintf("invite link for group %d fetched", group.GroupNumber), nil)
	return true
}
