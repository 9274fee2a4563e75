package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"groupflow/distributor/internal/service"
	"groupflow/distributor/pkg/response"
)

// DistributionHandler serves the public campaign links.
type DistributionHandler struct {
	registrar service.Registrar
}

func NewDistributionHandler(registrar service.Registrar) *DistributionHandler {
	return &DistributionHandler{registrar: registrar}
}

// Redirect sends the visitor to the current distribution group's invite link.
func (h *DistributionHandler) Redirect(c *gin.Context) {
	res, err := h.registrar.Resolve(c.Request.Context(), c.Param("slug"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.Redirect(http.StatusFound, res.InviteLink)
}

type RegisterRequest struct {
	Phone   string `json:"phone" binding:"required"`
	Name    string `json:"name" binding:"max=128"`
	Channel string `json:"channel" binding:"max=64"`
}

type RegisterResponse struct {
	InviteLink        string `json:"invite_link"`
	GroupNumber       int    `json:"group_number"`
	AlreadyRegistered bool   `json:"already_registered"`
}

func (h *DistributionHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	reg, err := h.registrar.Register(c.Request.Context(), service.RegisterInput{
		Slug:    c.Param("slug"),
		Phone:   req.Phone,
		Name:    req.Name,
		Channel: req.Channel,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}

	resp := RegisterResponse{
		InviteLink:        reg.InviteLink,
		GroupNumber:       reg.Group.GroupNumber,
		AlreadyRegistered: reg.AlreadyRegistered,
	}
	if reg.AlreadyRegistered {
		response.Success(c, resp)
		return
	}
	response.Created(c, resp)
}
