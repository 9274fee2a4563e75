// Package scheduler drives the periodic membership sync and the cascade.
package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"groupflow/distributor/internal/repository"
	"groupflow/distributor/internal/service"
)

const (
	defaultInterval   = 30 * time.Second
	defaultRunTimeout = 5 * time.Minute
	minInterval       = time.Second
)

type Options struct {
	Interval     time.Duration
	HotInterval  time.Duration
	HotCampaigns map[uuid.UUID]time.Duration
	// RunTimeout bounds a single scheduled sweep.
	RunTimeout time.Duration
}

type HotCampaign struct {
	CampaignID uuid.UUID `json:"campaign_id"`
	Interval   string    `json:"interval"`
}

type Status struct {
	Running      bool                `json:"running"`
	Interval     string              `json:"interval"`
	HotCampaigns []HotCampaign       `json:"hot_campaigns"`
	LastRunAt    *time.Time          `json:"last_run_at,omitempty"`
	LastReport   *service.SyncReport `json:"last_report,omitempty"`
}

type hotEntry struct {
	interval time.Duration
	entry    cron.EntryID
}

// Scheduler runs the all-campaign sweep on one interval and gives selected
// campaigns their own faster sweep. Hot campaigns are left out of the main
// sweep while they have a dedicated one.
type Scheduler struct {
	syncer service.MembershipSyncer
	scaler service.AutoScaler
	logger *zap.Logger
	opts   Options

	mu         sync.Mutex
	cron       *cron.Cron
	hot        map[uuid.UUID]*hotEntry
	lastRunAt  *time.Time
	lastReport *service.SyncReport
}

func New(syncer service.MembershipSyncer, scaler service.AutoScaler, logger *zap.Logger, opts Options) *Scheduler {
	if opts.Interval < minInterval {
		opts.Interval = defaultInterval
	}
	if opts.HotInterval < minInterval {
		opts.HotInterval = opts.Interval
	}
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = defaultRunTimeout
	}

	s := &Scheduler{
		syncer: syncer,
		scaler: scaler,
		logger: logger.Named("scheduler"),
		opts:   opts,
		hot:    make(map[uuid.UUID]*hotEntry),
	}
	for id, d := range opts.HotCampaigns {
		s.hot[id] = &hotEntry{interval: s.hotInterval(d)}
	}
	return s
}

func (s *Scheduler) hotInterval(d time.Duration) time.Duration {
	if d < minInterval {
		return s.opts.HotInterval
	}
	return d
}

// Start schedules the sweeps and fires the first main and campaign sweeps right away.
// Calling Start on a running scheduler does nothing.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return
	}

	l := cronLogger{s.logger.Sugar()}
	c := cron.New(cron.WithLogger(l), cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)))
	c.Schedule(cron.Every(s.opts.Interval), cron.FuncJob(s.sweepMain))
	for id, h := range s.hot {
		h.entry = c.Schedule(cron.Every(h.interval), s.hotJob(id))
	}
	c.Start()
	s.cron = c

	go s.sweepMain()
	for id := range s.hot {
		go s.hotJob(id).Run()
	}
	s.logger.Info("sync scheduler started",
		zap.Duration("interval", s.opts.Interval),
		zap.Int("hot_campaigns", len(s.hot)),
	)
}

// Stop halts scheduling. The returned context is done once in-flight sweeps return.
func (s *Scheduler) Stop() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron == nil {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}
	ctx := s.cron.Stop()
	s.cron = nil
	for _, h := range s.hot {
		h.entry = 0
	}
	s.logger.Info("sync scheduler stopped")
	return ctx
}

func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cron != nil
}

// SetCampaignInterval gives a campaign its own sweep, replacing any previous one.
func (s *Scheduler) SetCampaignInterval(campaignID uuid.UUID, d time.Duration) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	d = s.hotInterval(d)
	h, ok := s.hot[campaignID]
	if !ok {
		h = &hotEntry{}
		s.hot[campaignID] = h
	}
	if s.cron != nil && h.entry != 0 {
		s.cron.Remove(h.entry)
	}
	h.interval = d
	if s.cron != nil {
		h.entry = s.cron.Schedule(cron.Every(d), s.hotJob(campaignID))
	}
	return d
}

// ClearCampaignInterval returns the campaign to the main sweep. It reports
// whether the campaign had its own interval.
func (s *Scheduler) ClearCampaignInterval(campaignID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.hot[campaignID]
	if !ok {
		return false
	}
	if s.cron != nil && h.entry != 0 {
		s.cron.Remove(h.entry)
	}
	delete(s.hot, campaignID)
	return true
}

// RunNow sweeps every campaign, hot ones included.
func (s *Scheduler) RunNow(ctx context.Context) (*service.SyncReport, error) {
	report, err := s.syncer.Sync(ctx, repository.SyncFilter{})
	if err == nil && !report.Skipped {
		s.remember(report)
	}
	return report, err
}

func (s *Scheduler) RunCascade(ctx context.Context) (*service.CascadeReport, error) {
	return s.scaler.Run(ctx)
}

// TriggerCascade runs a cascade in the background. A pass already in
// progress absorbs the trigger.
func (s *Scheduler) TriggerCascade() {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.opts.RunTimeout)
		defer cancel()
		if _, err := s.scaler.Run(ctx); err != nil {
			s.logger.Error("triggered cascade failed", zap.Error(err))
		}
	}()
}

func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		Running:      s.cron != nil,
		Interval:     s.opts.Interval.String(),
		HotCampaigns: make([]HotCampaign, 0, len(s.hot)),
		LastRunAt:    s.lastRunAt,
		LastReport:   s.lastReport,
	}
	for id, h := range s.hot {
		st.HotCampaigns = append(st.HotCampaigns, HotCampaign{CampaignID: id, Interval: h.interval.String()})
	}
	sort.Slice(st.HotCampaigns, func(i, j int) bool {
		return st.HotCampaigns[i].CampaignID.String() < st.HotCampaigns[j].CampaignID.String()
	})
	return st
}

func (s *Scheduler) hotIDs() []uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]uuid.UUID, 0, len(s.hot))
	for id := range s.hot {
		ids = append(ids, id)
	}
	return ids
}

func (s *Scheduler) remember(report *service.SyncReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	at := report.StartedAt
	s.lastRunAt = &at
	s.lastReport = report
}

func (s *Scheduler) sweepMain() {
	s.sweep("main", repository.SyncFilter{ExcludeCampaignIDs: s.hotIDs()})
}

func (s *Scheduler) hotJob(campaignID uuid.UUID) cron.Job {
	return cron.FuncJob(func() {
		s.sweep("campaign", repository.SyncFilter{CampaignIDs: []uuid.UUID{campaignID}})
	})
}

func (s *Scheduler) sweep(scope string, filter repository.SyncFilter) {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.RunTimeout)
	defer cancel()

	report, err := s.syncer.Sync(ctx, filter)
	if err != nil {
		s.logger.Error("scheduled sync failed", zap.String("scope", scope), zap.Error(err))
		return
	}
	if scope == "main" && !report.Skipped {
		s.remember(report)
	}
}

// cronLogger routes cron's own messages into zap.
type cronLogger struct {
	l *zap.SugaredLogger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Errorw(msg, append(keysAndValues, "error", err)...)
}
