package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/parley-hq/parley/internal/middleware"
	"github.com/parley-hq/parley/internal/service"
)

// InviteHandler exposes invite links. Details is the one route mounted
// outside the auth group: the landing page renders the channel card
// before the visitor has signed in.
type InviteHandler struct {
	invites *service.Invites
	logger  *zap.Logger
}

func NewInviteHandler(invites *service.Invites, logger *zap.Logger) *InviteHandler {
	return &InviteHandler{invites: invites, logger: logger}
}

type createInviteRequest struct {
	ExpiresInDays *int `json:"expires_in_days"`
	MaxUses       *int `json:"max_uses"`
}

// Create handles POST /v1/channels/:id/invites
func (h *InviteHandler) Create(c *gin.Context) {
	channelID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid channel id"})
		return
	}
	var req createInviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	actor := middleware.GetActor(c)

	link, err := h.invites.CreateLink(c.Request.Context(), actor, channelID, req.ExpiresInDays, req.MaxUses)
	if err != nil {
		respondError(c, h.logger, "create invite", err)
		return
	}
	c.JSON(http.StatusCreated, link)
}

// Details handles GET /v1/invites/:token (public)
func (h *InviteHandler) Details(c *gin.Context) {
	details, err := h.invites.Details(c.Request.Context(), c.Param("token"))
	if err != nil {
		respondError(c, h.logger, "get invite", err)
		return
	}
	c.JSON(http.StatusOK, details)
}

// Accept handles POST /v1/invites/:token/accept
//
// Idempotent for existing members: accepting again returns the current
// membership with already_member set and does not consume a use.
func (h *InviteHandler) Accept(c *gin.Context) {
	actor := middleware.GetActor(c)

	result, err := h.invites.Accept(c.Request.Context(), actor, c.Param("token"))
	if err != nil {
		respondError(c, h.logger, "accept invite", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Deactivate handles DELETE /v1/invites/:token
func (h *InviteHandler) Deactivate(c *gin.Context) {
	actor := middleware.GetActor(c)

	if err := h.invites.Deactivate(c.Request.Context(), actor, c.Param("token")); err != nil {
		respondError(c, h.logger, "deactivate invite", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListForChannel handles GET /v1/channels/:id/invites
func (h *InviteHandler) ListForChannel(c *gin.Context) {
	channelID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid channel id"})
		return
	}
	actor := middleware.GetActor(c)

	invites, err := h.invites.ListForChannel(c.Request.Context(), actor, channelID)
	if err != nil {
		respondError(c, h.logger, "list invites", err)
		return
	}
	c.JSON(http.StatusOK, invites)
}
