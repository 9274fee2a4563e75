package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"groupflow/distributor/internal/scheduler"
	"groupflow/distributor/internal/service"
	"groupflow/distributor/pkg/response"
)

// SyncController is the part of the scheduler the admin API drives.
type SyncController interface {
	Start()
	Stop() context.Context
	Status() scheduler.Status
	RunNow(ctx context.Context) (*service.SyncReport, error)
	RunCascade(ctx context.Context) (*service.CascadeReport, error)
	SetCampaignInterval(campaignID uuid.UUID, d time.Duration) time.Duration
	ClearCampaignInterval(campaignID uuid.UUID) bool
}

type AdminHandler struct {
	sync SyncController
}

func NewAdminHandler(sync SyncController) *AdminHandler {
	return &AdminHandler{sync: sync}
}

func (h *AdminHandler) SyncStatus(c *gin.Context) {
	response.Success(c, h.sync.Status())
}

func (h *AdminHandler) StartSync(c *gin.Context) {
	h.sync.Start()
	response.Success(c, h.sync.Status())
}

// StopSync returns once scheduling has stopped; in-flight sweeps finish on their own.
func (h *AdminHandler) StopSync(c *gin.Context) {
	h.sync.Stop()
	response.Success(c, h.sync.Status())
}

func (h *AdminHandler) RunSync(c *gin.Context) {
	report, err := h.sync.RunNow(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, report)
}

type SetIntervalRequest struct {
	// Interval is a Go duration string such as "10s".
	Interval string `json:"interval" binding:"required"`
}

func (h *AdminHandler) SetCampaignInterval(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req SetIntervalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	d, err := time.ParseDuration(req.Interval)
	if err != nil || d <= 0 {
		response.BadRequest(c, "invalid interval")
		return
	}

	applied := h.sync.SetCampaignInterval(id, d)
	response.Success(c, gin.H{"campaign_id": id, "interval": applied.String()})
}

func (h *AdminHandler) ClearCampaignInterval(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if !h.sync.ClearCampaignInterval(id) {
		response.NotFound(c, "campaign has no dedicated interval")
		return
	}
	response.Success(c, gin.H{"campaign_id": id})
}

func (h *AdminHandler) RunCascade(c *gin.Context) {
	report, err := h.sync.RunCascade(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, report)
}
