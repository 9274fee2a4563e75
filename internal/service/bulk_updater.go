package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"gorm.io/gorm"

	"groupflow/distributor/internal/gateway"
	"groupflow/distributor/internal/metrics"
	"groupflow/distributor/internal/model"
	"groupflow/distributor/internal/repository"
)

const (
	DefaultBulkMinDelay = 2 * time.Second
	DefaultBulkMaxDelay = 5 * time.Second
	maxGroupCapacity    = 1024
)

// BulkUpdate is a sparse set of campaign settings; nil fields are left alone.
type BulkUpdate struct {
	Name              *string `json:"name"`
	GroupNameTemplate *string `json:"group_name_template"`
	GroupDescription  *string `json:"group_description"`
	GroupImageURL     *string `json:"group_image_url"`
	AdminOnly         *bool   `json:"admin_only"`
	MaxMembers        *int    `json:"max_members"`
}

func (u BulkUpdate) empty() bool {
	return u.Name == nil && u.GroupNameTemplate == nil && u.GroupDescription == nil &&
		u.GroupImageURL == nil && u.AdminOnly == nil && u.MaxMembers == nil
}

func (u BulkUpdate) campaignFields() map[string]interface{} {
	fields := map[string]interface{}{}
	if u.Name != nil {
		fields["name"] = *u.Name
	}
	if u.GroupNameTemplate != nil {
		fields["group_name_template"] = *u.GroupNameTemplate
	}
	if u.GroupDescription != nil {
		fields["group_description"] = *u.GroupDescription
	}
	if u.GroupImageURL != nil {
		fields["group_image_url"] = *u.GroupImageURL
	}
	if u.AdminOnly != nil {
		fields["admin_only"] = *u.AdminOnly
	}
	if u.MaxMembers != nil {
		fields["max_members_per_group"] = *u.MaxMembers
	}
	return fields
}

// BulkUpdater applies campaign settings to every live group, one group at a
// time with a randomized pause between groups.
type BulkUpdater interface {
	// Start validates and launches a job in the background. Only one job runs
	// per process; a second Start while busy returns ErrBulkUpdateInProgress.
	Start(ctx context.Context, campaignID uuid.UUID, update BulkUpdate) (*model.BulkJob, error)
	Status(ctx context.Context, campaignID uuid.UUID) (*model.BulkJob, error)
	History(ctx context.Context, campaignID uuid.UUID, limit int) ([]model.Log, error)
	Busy() bool
	// Wait blocks until the running job, if any, has finished.
	Wait()
}

type BulkOptions struct {
	MinDelay time.Duration
	MaxDelay time.Duration
	JobTTL   time.Duration
	// Sleep and RandDuration are replaced in tests.
	Sleep        func(ctx context.Context, d time.Duration)
	RandDuration func(n time.Duration) time.Duration
}

type bulkUpdater struct {
	campaigns repository.CampaignRepository
	groups    repository.GroupRepository
	instances repository.InstanceRepository
	jobs      repository.JobStore
	logs      repository.LogRepository
	gw        gateway.Gateway
	recorder  *ActivityRecorder
	metrics   *metrics.Metrics
	logger    *zap.Logger
	opts      BulkOptions

	running *semaphore.Weighted
	busy    atomic.Bool
	wg      sync.WaitGroup
}

var _ BulkUpdater = (*bulkUpdater)(nil)

func NewBulkUpdater(
	campaigns repository.CampaignRepository,
	groups repository.GroupRepository,
	instances repository.InstanceRepository,
	jobs repository.JobStore,
	logs repository.LogRepository,
	gw gateway.Gateway,
	recorder *ActivityRecorder,
	m *metrics.Metrics,
	logger *zap.Logger,
	opts BulkOptions,
) BulkUpdater {
	if opts.MinDelay < DefaultBulkMinDelay {
		opts.MinDelay = DefaultBulkMinDelay
	}
	if opts.MaxDelay <= opts.MinDelay {
		opts.MaxDelay = DefaultBulkMaxDelay
		if opts.MaxDelay <= opts.MinDelay {
			opts.MaxDelay = opts.MinDelay + time.Second
		}
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	if opts.RandDuration == nil {
		opts.RandDuration = rand.N[time.Duration]
	}
	return &bulkUpdater{
		campaigns: campaigns,
		groups:    groups,
		instances: instances,
		jobs:      jobs,
		logs:      logs,
		gw:        gw,
		recorder:  recorder,
		metrics:   m,
		logger:    logger,
		opts:      opts,
		running:   semaphore.NewWeighted(1),
	}
}

func sleepContext(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// delay is uniform in [MinDelay, MaxDelay).
func (b *bulkUpdater) delay() time.Duration {
	return b.opts.MinDelay + b.opts.RandDuration(b.opts.MaxDelay-b.opts.MinDelay)
}

func (b *bulkUpdater) Busy() bool { return b.busy.Load() }

func (b *bulkUpdater) release() {
	b.busy.Store(false)
	b.running.Release(1)
}

func (b *bulkUpdater) Wait() { b.wg.Wait() }

func validateBulkUpdate(u BulkUpdate) error {
	if u.empty() {
		return ErrEmptyBulkUpdate
	}
	if u.GroupNameTemplate != nil && !model.ValidGroupNameTemplate(*u.GroupNameTemplate) {
		return ErrInvalidTemplate
	}
	if u.MaxMembers != nil && (*u.MaxMembers < MinGroupSizeFloor || *u.MaxMembers > maxGroupCapacity) {
		return ErrInvalidCapacity
	}
	if u.Name != nil && strings.TrimSpace(*u.Name) == "" {
		return fmt.Errorf("%w: name must not be empty", ErrEmptyBulkUpdate)
	}
	return nil
}

func (b *bulkUpdater) Start(ctx context.Context, campaignID uuid.UUID, update BulkUpdate) (*model.BulkJob, error) {
	if err := validateBulkUpdate(update); err != nil {
		return nil, err
	}
	if !b.running.TryAcquire(1) {
		return nil, ErrBulkUpdateInProgress
	}
	b.busy.Store(true)

	campaign, err := b.campaigns.GetByID(ctx, campaignID)
	if err != nil {
		b.release()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCampaignNotFound
		}
		return nil, fmt.Errorf("get campaign: %w", err)
	}

	job := &model.BulkJob{
		ID:         uuid.New(),
		CampaignID: campaign.ID,
		Errors:     []model.BulkJobError{},
		StartedAt:  time.Now(),
		Status:     model.BulkJobProcessing,
	}
	if err := b.jobs.Save(ctx, job, b.opts.JobTTL); err != nil {
		b.release()
		return nil, fmt.Errorf("save bulk job: %w", err)
	}

	snapshot := *job
	b.wg.Add(1)
	b.metrics.SetBulkActive(true)
	go b.run(context.WithoutCancel(ctx), job, update)
	return &snapshot, nil
}

func (b *bulkUpdater) run(ctx context.Context, job *model.BulkJob, update BulkUpdate) {
	defer b.wg.Done()
	defer b.release()
	defer b.metrics.SetBulkActive(false)

	logger := b.logger.With(
		zap.String("job_id", job.ID.String()),
		zap.String("campaign_id", job.CampaignID.String()),
	)

	campaign, groups, err := b.prepare(ctx, job.CampaignID, update)
	if err != nil {
		b.abort(ctx, logger, job, err)
		return
	}

	job.TotalGroups = len(groups)
	b.checkpoint(ctx, logger, job)
	b.recorder.recordOrWarn(ctx, campaign.ID, nil, model.EventBulkUpdateStarted,
		fmt.Sprintf("bulk update started for %d groups", len(groups)),
		map[string]interface{}{"job_id": job.ID.String(), "total_groups": len(groups)})

	instances := map[uuid.UUID]*model.Instance{}
	for i := range groups {
		group := &groups[i]
		if err := b.applyToGroup(ctx, campaign, instances, group, update); err != nil {
			logger.Warn("bulk update group failed",
				zap.Int("group_number", group.GroupNumber), zap.Error(err))
			job.Errors = append(job.Errors, model.BulkJobError{
				GroupID:     group.ID,
				GroupNumber: group.GroupNumber,
				Error:       err.Error(),
			})
			b.metrics.IncBulkGroup("error")
		} else {
			b.metrics.IncBulkGroup("ok")
		}
		job.ProcessedGroups++
		b.checkpoint(ctx, logger, job)

		if i < len(groups)-1 {
			b.opts.Sleep(ctx, b.delay())
		}
	}

	finished := time.Now()
	job.FinishedAt = &finished
	job.Status = model.BulkJobCompleted
	b.checkpoint(ctx, logger, job)

	b.recorder.recordOrWarn(ctx, campaign.ID, nil, model.EventBulkUpdateCompleted,
		fmt.Sprintf("bulk update processed %d groups with %d errors", job.ProcessedGroups, len(job.Errors)),
		map[string]interface{}{
			"job_id":           job.ID.String(),
			"total_groups":     job.TotalGroups,
			"processed_groups": job.ProcessedGroups,
			"errors":           len(job.Errors),
			"fields":           fieldNames(update),
		})
	logger.Info("bulk update completed",
		zap.Int("processed", job.ProcessedGroups), zap.Int("errors", len(job.Errors)))
}

// prepare persists the campaign fields once and loads the groups to touch.
func (b *bulkUpdater) prepare(ctx context.Context, campaignID uuid.UUID, update BulkUpdate) (*model.Campaign, []model.Group, error) {
	if err := b.campaigns.UpdateFields(ctx, campaignID, update.campaignFields()); err != nil {
		return nil, nil, fmt.Errorf("update campaign: %w", err)
	}
	campaign, err := b.campaigns.GetByID(ctx, campaignID)
	if err != nil {
		return nil, nil, fmt.Errorf("reload campaign: %w", err)
	}
	groups, err := b.groups.ListLive(ctx, campaignID)
	if err != nil {
		return nil, nil, fmt.Errorf("list live groups: %w", err)
	}
	return campaign, groups, nil
}

func (b *bulkUpdater) abort(ctx context.Context, logger *zap.Logger, job *model.BulkJob, cause error) {
	finished := time.Now()
	job.FinishedAt = &finished
	job.Status = model.BulkJobFailed
	job.FatalError = cause.Error()
	b.checkpoint(ctx, logger, job)

	logger.Error("bulk update aborted", zap.Error(cause))
	b.recorder.recordOrWarn(ctx, job.CampaignID, nil, model.EventBulkUpdateFailed,
		"bulk update aborted",
		map[string]interface{}{"job_id": job.ID.String(), "error": cause.Error()})
}

func (b *bulkUpdater) checkpoint(ctx context.Context, logger *zap.Logger, job *model.BulkJob) {
	if err := b.jobs.Save(ctx, job, b.opts.JobTTL); err != nil {
		logger.Warn("save bulk job checkpoint failed", zap.Error(err))
	}
}

// applyToGroup issues only the gateway calls whose target value differs from
// the group's stored state, then persists what succeeded.
func (b *bulkUpdater) applyToGroup(ctx context.Context, campaign *model.Campaign, instances map[uuid.UUID]*model.Instance, group *model.Group, update BulkUpdate) error {
	instance, ok := instances[group.InstanceID]
	if !ok {
		var err error
		instance, err = b.instances.GetByID(ctx, group.InstanceID)
		if err != nil {
			return fmt.Errorf("load instance: %w", err)
		}
		instances[group.InstanceID] = instance
	}

	fields := map[string]interface{}{}
	persist := func() error {
		if len(fields) == 0 {
			return nil
		}
		return b.groups.UpdateFields(ctx, group.ID, fields)
	}
	fail := func(step string, err error) error {
		if perr := persist(); perr != nil {
			b.logger.Warn("persist partial group update failed", zap.String("group_id", group.ID.String()), zap.Error(perr))
		}
		return fmt.Errorf("%s: %w", step, err)
	}

	if update.GroupNameTemplate != nil {
		name := RenderGroupName(campaign.GroupNameTemplate, group.GroupNumber)
		if name != group.Name {
			if err := b.gw.UpdateSubject(ctx, instance.Name, group.ExternalGroupID, name); err != nil {
				return fail("update subject", err)
			}
			fields["name"] = name
		}
	}
	if update.GroupDescription != nil && *update.GroupDescription != group.Description {
		if err := b.gw.UpdateDescription(ctx, instance.Name, group.ExternalGroupID, *update.GroupDescription); err != nil {
			return fail("update description", err)
		}
		fields["description"] = *update.GroupDescription
	}
	if update.AdminOnly != nil && *update.AdminOnly != group.AdminOnly {
		if err := b.gw.UpdateAdminOnlySetting(ctx, instance.Name, group.ExternalGroupID, *update.AdminOnly); err != nil {
			return fail("update admin-only setting", err)
		}
		fields["admin_only"] = *update.AdminOnly
	}
	if update.GroupImageURL != nil && *update.GroupImageURL != "" && *update.GroupImageURL != group.ImageURL {
		if err := b.gw.UpdatePicture(ctx, instance.Name, group.ExternalGroupID, *update.GroupImageURL); err != nil {
			return fail("update picture", err)
		}
		fields["image_url"] = *update.GroupImageURL
	}
	if update.MaxMembers != nil && *update.MaxMembers != group.MaxMembers {
		fields["max_members"] = *update.MaxMembers
	}

	if err := persist(); err != nil {
		return fmt.Errorf("persist group: %w", err)
	}
	return nil
}

func (b *bulkUpdater) Status(ctx context.Context, campaignID uuid.UUID) (*model.BulkJob, error) {
	job, err := b.jobs.Get(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("get bulk job: %w", err)
	}
	if job == nil {
		return nil, ErrJobNotFound
	}
	return job, nil
}

func (b *bulkUpdater) History(ctx context.Context, campaignID uuid.UUID, limit int) ([]model.Log, error) {
	return b.logs.ListByCampaign(ctx, campaignID, repository.LogFilter{
		EventTypes: []model.EventType{model.EventBulkUpdateCompleted, model.EventBulkUpdateFailed},
		Limit:      limit,
	})
}

func fieldNames(u BulkUpdate) []string {
	names := make([]string, 0, 6)
	for name := range u.campaignFields() {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
