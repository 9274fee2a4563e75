package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"groupflow/distributor/internal/config"
	"groupflow/distributor/internal/events"
	"groupflow/distributor/internal/gateway"
	"groupflow/distributor/internal/handler"
	"groupflow/distributor/internal/metrics"
	"groupflow/distributor/internal/model"
	"groupflow/distributor/internal/repository"
	"groupflow/distributor/internal/scheduler"
	"groupflow/distributor/internal/service"
	jwtpkg "groupflow/distributor/pkg/jwt"
)

func main() {
	// 1. Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// 2. Initialize logger
	logger := newLogger(cfg.Log)
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	// 3. Initialize Sentry (optional)
	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: cfg.Sentry.Environment,
			SampleRate:  cfg.Sentry.SampleRate,
		}); err != nil {
			logger.Warn("sentry init failed, continuing without it", zap.Error(err))
		} else {
			defer sentry.Flush(2 * time.Second)
			logger.Info("sentry enabled", zap.String("environment", cfg.Sentry.Environment))
		}
	}

	// 4. Connect to PostgreSQL
	db, err := config.NewPostgresDB(cfg.Database.Postgres)
	if err != nil {
		logger.Fatal("failed to connect to postgres", zap.Error(err))
	}

	// 5. Auto-migrate if enabled
	if cfg.Database.Postgres.AutoMigrate {
		if err := model.AutoMigrate(db); err != nil {
			logger.Fatal("failed to auto-migrate", zap.Error(err))
		}
		logger.Info("database migration completed")
	}

	// 6. Initialize bulk job store (Redis or in-memory)
	var jobStore repository.JobStore
	switch cfg.JobStore.Backend {
	case "redis":
		redisClient, err := config.NewRedisClient(cfg.Database.Redis)
		if err != nil {
			logger.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer redisClient.Close()
		jobStore = repository.NewRedisJobStore(redisClient)
		logger.Info("using Redis job store")
	case "memory":
		jobStore = repository.NewMemoryJobStore()
		logger.Info("using in-memory job store")
	default:
		logger.Fatal("unknown job store backend", zap.String("backend", cfg.JobStore.Backend))
	}

	// 7. Initialize event publisher
	var publisher events.Publisher
	switch cfg.Events.Backend {
	case "kafka":
		publisher = events.NewKafkaPublisher(cfg.Events.Kafka.Brokers, cfg.Events.Kafka.Topic)
		logger.Info("publishing campaign events to kafka", zap.String("topic", cfg.Events.Kafka.Topic))
	default:
		publisher = events.NewNoopPublisher()
	}

	// 8. Initialize metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	// 9. Initialize repositories
	campaignRepo := repository.NewPGCampaignRepository(db)
	groupRepo := repository.NewPGGroupRepository(db)
	memberRepo := repository.NewPGMemberRepository(db)
	instanceRepo := repository.NewPGInstanceRepository(db)
	logRepo := repository.NewPGLogRepository(db)

	// 10. Initialize gateway client and services
	gw := gateway.NewHTTPClient(cfg.Gateway, m)
	recorder := service.NewActivityRecorder(logRepo, publisher, logger)

	scaler := service.NewAutoScaler(groupRepo, campaignRepo, instanceRepo, gw, recorder, m, logger, cfg.Scaling.MinGroupSize)
	syncer := service.NewMembershipSyncer(groupRepo, instanceRepo, gw, scaler, recorder, m, logger, cfg.Scaling.WarningThreshold)
	sched := scheduler.New(syncer, scaler, logger, scheduler.Options{
		Interval:     cfg.Sync.Interval,
		HotInterval:  cfg.Sync.HotInterval,
		HotCampaigns: hotCampaigns(cfg.Sync.HotCampaigns, logger),
	})

	registrar := service.NewRegistrar(campaignRepo, groupRepo, memberRepo, recorder, m, logger,
		cfg.Registration.DefaultRegion, service.WithGroupFilledHook(sched.TriggerCascade))
	campaignService := service.NewCampaignService(campaignRepo, groupRepo, memberRepo, instanceRepo, logRepo,
		gw, recorder, m, logger, cfg.Registration.DefaultRegion)
	bulkUpdater := service.NewBulkUpdater(campaignRepo, groupRepo, instanceRepo, jobStore, logRepo, gw, recorder, m, logger,
		service.BulkOptions{
			MinDelay: cfg.Bulk.MinDelay,
			MaxDelay: cfg.Bulk.MaxDelay,
			JobTTL:   cfg.JobStore.TTL,
		})

	// 11. Start the sync scheduler
	if cfg.Sync.Enabled {
		sched.Start()
	}

	// 12. Setup router
	jwtManager := jwtpkg.NewManager(cfg.JWT.SigningKey, cfg.JWT.Issuer, cfg.JWT.AccessTokenTTL)
	router := handler.SetupRouter(cfg, logger, jwtManager, m, registry, handler.Handlers{
		Distribution: handler.NewDistributionHandler(registrar),
		Campaign:     handler.NewCampaignHandler(campaignService, cfg.Admin.UserIDs),
		Bulk:         handler.NewBulkHandler(bulkUpdater, campaignService, cfg.Admin.UserIDs),
		Admin:        handler.NewAdminHandler(sched),
	})

	// 13. Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 14. Start server with graceful shutdown
	go func() {
		logger.Info("server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// 15. Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	select {
	case <-sched.Stop().Done():
	case <-ctx.Done():
		logger.Warn("sync sweep still running at shutdown")
	}

	if bulkUpdater.Busy() {
		logger.Info("waiting for bulk update to finish")
		done := make(chan struct{})
		go func() {
			bulkUpdater.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			logger.Warn("bulk update interrupted by shutdown; its job record keeps the last checkpoint")
		}
	}

	if err := recorder.Close(); err != nil {
		logger.Warn("close event publisher", zap.Error(err))
	}
	logger.Info("server exited gracefully")
}

func newLogger(cfg config.LogConfig) *zap.Logger {
	var zcfg zap.Config
	if cfg.Format == "json" {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}
	if level, err := zapcore.ParseLevel(cfg.Level); err == nil {
		zcfg.Level = zap.NewAtomicLevelAt(level)
	}
	logger, err := zcfg.Build()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	return logger
}

func hotCampaigns(raw map[string]time.Duration, logger *zap.Logger) map[uuid.UUID]time.Duration {
	out := make(map[uuid.UUID]time.Duration, len(raw))
	for key, d := range raw {
		id, err := uuid.Parse(key)
		if err != nil {
			logger.Warn("ignoring hot campaign with invalid id", zap.String("campaign_id", key))
			continue
		}
		out[id] = d
	}
	return out
}
