package handler

import (
	"github.com/gin-gonic/gin"

	"groupflow/distributor/internal/service"
	"groupflow/distributor/pkg/response"
)

type BulkHandler struct {
	bulk   service.BulkUpdater
	access campaignAccess
}

func NewBulkHandler(bulk service.BulkUpdater, campaigns service.CampaignService, adminUserIDs []string) *BulkHandler {
	return &BulkHandler{bulk: bulk, access: newCampaignAccess(campaigns, adminUserIDs)}
}

// Start answers 202 with the initial job snapshot; progress is polled via Status.
func (h *BulkHandler) Start(c *gin.Context) {
	campaign, ok := h.access.load(c)
	if !ok {
		return
	}

	var req service.BulkUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	job, err := h.bulk.Start(c.Request.Context(), campaign.ID, req)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Accepted(c, job)
}

func (h *BulkHandler) Status(c *gin.Context) {
	campaign, ok := h.access.load(c)
	if !ok {
		return
	}
	job, err := h.bulk.Status(c.Request.Context(), campaign.ID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, job)
}

func (h *BulkHandler) History(c *gin.Context) {
	campaign, ok := h.access.load(c)
	if !ok {
		return
	}
	entries, err := h.bulk.History(c.Request.Context(), campaign.ID, intQuery(c, "limit", 20))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, entries)
}
