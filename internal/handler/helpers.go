package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"groupflow/distributor/internal/gateway"
	"groupflow/distributor/internal/handler/middleware"
	"groupflow/distributor/internal/model"
	"groupflow/distributor/internal/service"
	jwtpkg "groupflow/distributor/pkg/jwt"
	"groupflow/distributor/pkg/response"
)

var ErrNoClaims = errors.New("claims not found in context")

func getUserIDFromContext(c *gin.Context) (uuid.UUID, error) {
	claims, ok := middleware.ClaimsFromContext(c)
	if !ok {
		return uuid.Nil, ErrNoClaims
	}
	return uuid.Parse(claims.Subject)
}

func isAdmin(c *gin.Context, adminIDs map[string]struct{}) bool {
	claims, ok := middleware.ClaimsFromContext(c)
	if !ok {
		return false
	}
	if claims.Role == jwtpkg.RoleAdmin {
		return true
	}
	_, listed := adminIDs[claims.Subject]
	return listed
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.BadRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

func intQuery(c *gin.Context, name string, fallback int) int {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

// campaignAccess loads the :id campaign and checks that the caller owns it.
type campaignAccess struct {
	campaigns service.CampaignService
	adminIDs  map[string]struct{}
}

func newCampaignAccess(campaigns service.CampaignService, adminUserIDs []string) campaignAccess {
	ids := make(map[string]struct{}, len(adminUserIDs))
	for _, id := range adminUserIDs {
		ids[id] = struct{}{}
	}
	return campaignAccess{campaigns: campaigns, adminIDs: ids}
}

func (a campaignAccess) load(c *gin.Context) (*model.Campaign, bool) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return nil, false
	}
	userID, err := getUserIDFromContext(c)
	if err != nil {
		response.Unauthorized(c, "invalid user context")
		return nil, false
	}

	campaign, err := a.campaigns.GetCampaign(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return nil, false
	}
	// Another operator's campaign is reported as missing.
	if campaign.OwnerID != userID && !isAdmin(c, a.adminIDs) {
		response.NotFound(c, service.ErrCampaignNotFound.Error())
		return nil, false
	}
	return campaign, true
}

// writeServiceError maps service sentinels onto HTTP statuses.
func writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrCampaignNotFound),
		errors.Is(err, service.ErrGroupNotFound),
		errors.Is(err, service.ErrInstanceNotFound),
		errors.Is(err, service.ErrJobNotFound):
		response.NotFound(c, rootMessage(err))
	case errors.Is(err, service.ErrNoGroupsAvailable),
		errors.Is(err, service.ErrCampaignUnavailable):
		response.ServiceUnavailable(c, rootMessage(err))
	case errors.Is(err, service.ErrInvalidPhone),
		errors.Is(err, service.ErrInvalidTemplate),
		errors.Is(err, service.ErrInvalidStatus),
		errors.Is(err, service.ErrInvalidCapacity),
		errors.Is(err, service.ErrEmptyBulkUpdate),
		errors.Is(err, service.ErrGroupNotOnGateway):
		response.BadRequest(c, err.Error())
	case errors.Is(err, gateway.ErrAdminPhoneRequired):
		response.UnprocessableEntity(c, err.Error())
	case errors.Is(err, service.ErrBulkUpdateInProgress),
		errors.Is(err, service.ErrSlugExhausted):
		response.Conflict(c, err.Error())
	default:
		_ = c.Error(err)
		zap.L().Error("request failed", zap.String("route", c.FullPath()), zap.Error(err))
		response.InternalError(c, "internal error")
	}
}

func rootMessage(err error) string {
	for _, sentinel := range []error{
		service.ErrCampaignNotFound, service.ErrGroupNotFound, service.ErrInstanceNotFound,
		service.ErrJobNotFound, service.ErrNoGroupsAvailable, service.ErrCampaignUnavailable,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}
