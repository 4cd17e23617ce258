package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/parley-hq/parley/internal/middleware"
	"github.com/parley-hq/parley/internal/models"
	"github.com/parley-hq/parley/internal/service"
)

// MembershipHandler exposes roster operations: add, remove, role
// changes, leaving, and read cursors.
type MembershipHandler struct {
	members *service.Membership
	logger  *zap.Logger
}

func NewMembershipHandler(members *service.Membership, logger *zap.Logger) *MembershipHandler {
	return &MembershipHandler{members: members, logger: logger}
}

type addMemberRequest struct {
	UserID uuid.UUID `json:"user_id"`
	Role   string    `json:"role"`
}

type changeRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// Add handles POST /v1/channels/:id/members
//
// Role defaults to "member" when omitted. Adding is an admin action on
// someone else; self-service joining goes through invite links instead.
func (h *MembershipHandler) Add(c *gin.Context) {
	channelID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid channel id"})
		return
	}
	var req addMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	actor := middleware.GetActor(c)

	m, err := h.members.Add(c.Request.Context(), actor, channelID, req.UserID, models.Role(req.Role))
	if err != nil {
		respondError(c, h.logger, "add member", err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

// Remove handles DELETE /v1/channels/:id/members/:userId
func (h *MembershipHandler) Remove(c *gin.Context) {
	channelID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid channel id"})
		return
	}
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	actor := middleware.GetActor(c)

	if err := h.members.Remove(c.Request.Context(), actor, channelID, userID); err != nil {
		respondError(c, h.logger, "remove member", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Leave handles POST /v1/channels/:id/leave
func (h *MembershipHandler) Leave(c *gin.Context) {
	channelID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid channel id"})
		return
	}
	actor := middleware.GetActor(c)

	if err := h.members.Leave(c.Request.Context(), actor, channelID); err != nil {
		respondError(c, h.logger, "leave channel", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ChangeRole handles PATCH /v1/channels/:id/members/:userId
func (h *MembershipHandler) ChangeRole(c *gin.Context) {
	channelID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid channel id"})
		return
	}
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	var req changeRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	actor := middleware.GetActor(c)

	m, err := h.members.ChangeRole(c.Request.Context(), actor, channelID, userID, models.Role(req.Role))
	if err != nil {
		respondError(c, h.logger, "change member role", err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// ListMembers handles GET /v1/channels/:id/members
func (h *MembershipHandler) ListMembers(c *gin.Context) {
	channelID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid channel id"})
		return
	}
	actor := middleware.GetActor(c)

	members, err := h.members.List(c.Request.Context(), actor, channelID)
	if err != nil {
		respondError(c, h.logger, "list members", err)
		return
	}
	c.JSON(http.StatusOK, members)
}

// MarkRead handles POST /v1/channels/:id/read
//
// Stamps the caller's read cursor at the current time. Clients call
// this when the channel is focused; unread counts derive from it.
func (h *MembershipHandler) MarkRead(c *gin.Context) {
	channelID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid channel id"})
		return
	}
	actor := middleware.GetActor(c)

	if err := h.members.MarkRead(c.Request.Context(), actor, channelID); err != nil {
		respondError(c, h.logger, "mark channel read", err)
		return
	}
	c.Status(http.StatusNoContent)
}
