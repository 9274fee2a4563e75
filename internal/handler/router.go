package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"groupflow/distributor/internal/config"
	"groupflow/distributor/internal/handler/middleware"
	"groupflow/distributor/internal/metrics"
	jwtpkg "groupflow/distributor/pkg/jwt"
)

type Handlers struct {
	Distribution *DistributionHandler
	Campaign     *CampaignHandler
	Bulk         *BulkHandler
	Admin        *AdminHandler
}

func SetupRouter(
	cfg *config.Config,
	logger *zap.Logger,
	jwtManager *jwtpkg.Manager,
	m *metrics.Metrics,
	gatherer prometheus.Gatherer,
	h Handlers,
) *gin.Engine {
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogger(logger, m))
	r.Use(middleware.CORS(cfg.CORS))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	// Public campaign links
	public := r.Group("/g/:slug")
	{
		public.GET("", h.Distribution.Redirect)
		public.POST("/register", h.Distribution.Register)
	}

	protected := r.Group("/api/v1")
	protected.Use(middleware.JWTAuth(jwtManager))
	{
		protected.POST("/instances", h.Campaign.CreateInstance)
		protected.GET("/instances", h.Campaign.ListInstances)

		protected.POST("/campaigns", h.Campaign.CreateCampaign)
		protected.GET("/campaigns", h.Campaign.ListCampaigns)

		campaign := protected.Group("/campaigns/:id")
		campaign.GET("", h.Campaign.GetCampaign)
		campaign.PATCH("/status", h.Campaign.UpdateStatus)
		campaign.GET("/stats", h.Campaign.Stats)
		campaign.GET("/groups", h.Campaign.ListGroups)
		campaign.POST("/groups", h.Campaign.CreateGroup)
		campaign.POST("/groups/:group_id/invite-link", h.Campaign.RefreshInviteLink)
		campaign.GET("/logs", h.Campaign.ListLogs)

		campaign.POST("/bulk-update", h.Bulk.Start)
		campaign.GET("/bulk-update", h.Bulk.Status)
		campaign.GET("/bulk-update/history", h.Bulk.History)
	}

	// Admin routes (JWT + admin check)
	if h.Admin != nil {
		admin := r.Group("/api/v1/admin")
		admin.Use(middleware.JWTAuth(jwtManager))
		admin.Use(middleware.AdminAuth(cfg.Admin.UserIDs))
		{
			admin.GET("/sync", h.Admin.SyncStatus)
			admin.POST("/sync/start", h.Admin.StartSync)
			admin.POST("/sync/stop", h.Admin.StopSync)
			admin.POST("/sync/run", h.Admin.RunSync)
			admin.PUT("/sync/campaigns/:id/interval", h.Admin.SetCampaignInterval)
			admin.DELETE("/sync/campaigns/:id/interval", h.Admin.ClearCampaignInterval)
			admin.POST("/cascade/run", h.Admin.RunCascade)
		}
	}

	return r
}
