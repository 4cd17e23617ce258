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

type PresenceHandler struct {
	presence *service.Presence
	logger   *zap.Logger
}

func NewPresenceHandler(presence *service.Presence, logger *zap.Logger) *PresenceHandler {
	return &PresenceHandler{presence: presence, logger: logger}
}

type updatePresenceRequest struct {
	Status string `json:"status" binding:"required"`
}

// Query is a POST because the id list does not fit comfortably in a
// query string once rosters get large.
type queryPresenceRequest struct {
	UserIDs []uuid.UUID `json:"user_ids" binding:"required"`
}

// Update handles PUT /v1/presence
//
// Clients send this as a heartbeat. The record expires on its own, so
// a client that stops heartbeating drifts back to offline without any
// cleanup job.
func (h *PresenceHandler) Update(c *gin.Context) {
	var req updatePresenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	actor := middleware.GetActor(c)

	view, err := h.presence.Update(c.Request.Context(), actor, models.PresenceStatus(req.Status))
	if err != nil {
		respondError(c, h.logger, "update presence", err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Query handles POST /v1/presence/query
func (h *PresenceHandler) Query(c *gin.Context) {
	var req queryPresenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	views, err := h.presence.Get(c.Request.Context(), req.UserIDs)
	if err != nil {
		respondError(c, h.logger, "query presence", err)
		return
	}
	c.JSON(http.StatusOK, views)
}
