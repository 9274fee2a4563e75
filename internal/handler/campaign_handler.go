package handler

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"groupflow/distributor/internal/model"
	"groupflow/distributor/internal/repository"
	"groupflow/distributor/internal/service"
	"groupflow/distributor/pkg/response"
)

type CampaignHandler struct {
	campaigns service.CampaignService
	access    campaignAccess
}

func NewCampaignHandler(campaigns service.CampaignService, adminUserIDs []string) *CampaignHandler {
	return &CampaignHandler{
		campaigns: campaigns,
		access:    newCampaignAccess(campaigns, adminUserIDs),
	}
}

type CreateInstanceRequest struct {
	Name        string `json:"name" binding:"required,max=128"`
	PhoneNumber string `json:"phone_number"`
}

func (h *CampaignHandler) CreateInstance(c *gin.Context) {
	var req CreateInstanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	instance, err := h.campaigns.CreateInstance(c.Request.Context(), service.CreateInstanceInput{
		Name:        req.Name,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Created(c, instance)
}

func (h *CampaignHandler) ListInstances(c *gin.Context) {
	instances, err := h.campaigns.ListInstances(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, instances)
}

type CreateCampaignRequest struct {
	InstanceID         uuid.UUID            `json:"instance_id" binding:"required"`
	Name               string               `json:"name" binding:"required,max=255"`
	GroupNameTemplate  string               `json:"group_name_template" binding:"required"`
	GroupDescription   string               `json:"group_description"`
	GroupImageURL      string               `json:"group_image_url" binding:"omitempty,url"`
	AdminOnly          bool                 `json:"admin_only"`
	MaxMembersPerGroup int                  `json:"max_members_per_group"`
	AutoCreateGroups   *bool                `json:"auto_create_groups"`
	Status             model.CampaignStatus `json:"status"`
}

func (h *CampaignHandler) CreateCampaign(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		response.Unauthorized(c, "invalid user context")
		return
	}

	var req CreateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	campaign, err := h.campaigns.CreateCampaign(c.Request.Context(), userID, service.CreateCampaignInput{
		InstanceID:         req.InstanceID,
		Name:               req.Name,
		GroupNameTemplate:  req.GroupNameTemplate,
		GroupDescription:   req.GroupDescription,
		GroupImageURL:      req.GroupImageURL,
		AdminOnly:          req.AdminOnly,
		MaxMembersPerGroup: req.MaxMembersPerGroup,
		AutoCreateGroups:   req.AutoCreateGroups,
		Status:             req.Status,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Created(c, campaign)
}

// ListCampaigns returns the caller's campaigns.
func (h *CampaignHandler) ListCampaigns(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		response.Unauthorized(c, "invalid user context")
		return
	}
	campaigns, err := h.campaigns.ListCampaigns(c.Request.Context(), userID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, campaigns)
}

func (h *CampaignHandler) GetCampaign(c *gin.Context) {
	campaign, ok := h.access.load(c)
	if !ok {
		return
	}
	response.Success(c, campaign)
}

type UpdateStatusRequest struct {
	Status model.CampaignStatus `json:"status" binding:"required"`
}

func (h *CampaignHandler) UpdateStatus(c *gin.Context) {
	campaign, ok := h.access.load(c)
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	updated, err := h.campaigns.UpdateStatus(c.Request.Context(), campaign.ID, req.Status)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, updated)
}

func (h *CampaignHandler) Stats(c *gin.Context) {
	campaign, ok := h.access.load(c)
	if !ok {
		return
	}
	stats, err := h.campaigns.Stats(c.Request.Context(), campaign.ID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, stats)
}

func (h *CampaignHandler) ListGroups(c *gin.Context) {
	campaign, ok := h.access.load(c)
	if !ok {
		return
	}
	groups, err := h.campaigns.ListGroups(c.Request.Context(), campaign.ID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, groups)
}

func (h *CampaignHandler) CreateGroup(c *gin.Context) {
	campaign, ok := h.access.load(c)
	if !ok {
		return
	}
	group, err := h.campaigns.CreateGroup(c.Request.Context(), campaign.ID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Created(c, group)
}

func (h *CampaignHandler) RefreshInviteLink(c *gin.Context) {
	campaign, ok := h.access.load(c)
	if !ok {
		return
	}
	groupID, ok := uuidParam(c, "group_id")
	if !ok {
		return
	}
	group, err := h.campaigns.RefreshInviteLink(c.Request.Context(), campaign.ID, groupID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, group)
}

// ListLogs accepts ?event_type=a,b and ?limit=N.
func (h *CampaignHandler) ListLogs(c *gin.Context) {
	campaign, ok := h.access.load(c)
	if !ok {
		return
	}

	filter := repository.LogFilter{Limit: intQuery(c, "limit", 0)}
	if raw := c.Query("event_type"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				filter.EventTypes = append(filter.EventTypes, model.EventType(t))
			}
		}
	}

	logs, err := h.campaigns.ListLogs(c.Request.Context(), campaign.ID, filter)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, logs)
}
