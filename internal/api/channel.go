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

// ChannelHandler exposes the channel directory over HTTP. It holds the
// service behind a pointer so main.go can construct everything once and
// hand the same instance to every route.
type ChannelHandler struct {
	channels *service.Channels
	logger   *zap.Logger
}

func NewChannelHandler(channels *service.Channels, logger *zap.Logger) *ChannelHandler {
	return &ChannelHandler{channels: channels, logger: logger}
}

// Request structs are deliberately separate from the models: clients
// never control ids, org scope, or timestamps.

type createDMRequest struct {
	UserID uuid.UUID `json:"user_id"`
}

type createGroupRequest struct {
	Name        string      `json:"name" binding:"required"`
	Description string      `json:"description"`
	MemberIDs   []uuid.UUID `json:"member_ids"`
}

type createDealRoomRequest struct {
	Name        string      `json:"name" binding:"required"`
	Description string      `json:"description"`
	Vertical    *string     `json:"vertical"`
	MemberIDs   []uuid.UUID `json:"member_ids"`
}

type createSubChannelRequest struct {
	Name        string      `json:"name" binding:"required"`
	Description string      `json:"description"`
	MemberIDs   []uuid.UUID `json:"member_ids"`
}

type updateChannelRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

type pinChannelRequest struct {
	Pinned *bool `json:"pinned" binding:"required"`
}

// dealRoomResponse returns the room together with the general
// sub-channel that is created alongside it.
type dealRoomResponse struct {
	DealRoom *models.Channel `json:"deal_room"`
	General  *models.Channel `json:"general"`
}

// CreateDM handles POST /v1/channels/dm
//
// DMs are idempotent per user pair: the first call creates, later calls
// return the existing conversation with 200 instead of 201.
func (h *ChannelHandler) CreateDM(c *gin.Context) {
	var req createDMRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	actor := middleware.GetActor(c)

	ch, existed, err := h.channels.CreateDM(c.Request.Context(), actor, req.UserID)
	if err != nil {
		respondError(c, h.logger, "create dm", err)
		return
	}

	status := http.StatusCreated
	if existed {
		status = http.StatusOK
	}
	c.JSON(status, ch)
}

// CreateGroup handles POST /v1/channels/group
func (h *ChannelHandler) CreateGroup(c *gin.Context) {
	var req createGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	actor := middleware.GetActor(c)

	ch, err := h.channels.CreateGroup(c.Request.Context(), actor, req.Name, req.Description, req.MemberIDs)
	if err != nil {
		respondError(c, h.logger, "create group", err)
		return
	}
	c.JSON(http.StatusCreated, ch)
}

// CreateDealRoom handles POST /v1/channels/deal-room
func (h *ChannelHandler) CreateDealRoom(c *gin.Context) {
	var req createDealRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	actor := middleware.GetActor(c)

	room, general, err := h.channels.CreateDealRoom(c.Request.Context(), actor, req.Name, req.Description, req.Vertical, req.MemberIDs)
	if err != nil {
		respondError(c, h.logger, "create deal room", err)
		return
	}
	c.JSON(http.StatusCreated, dealRoomResponse{DealRoom: room, General: general})
}

// CreateAnnouncement handles POST /v1/channels/announcement
func (h *ChannelHandler) CreateAnnouncement(c *gin.Context) {
	var req createGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	actor := middleware.GetActor(c)

	ch, err := h.channels.CreateAnnouncement(c.Request.Context(), actor, req.Name, req.Description, req.MemberIDs)
	if err != nil {
		respondError(c, h.logger, "create announcement channel", err)
		return
	}
	c.JSON(http.StatusCreated, ch)
}

// CreateSubChannel handles POST /v1/channels/:id/sub-channels
func (h *ChannelHandler) CreateSubChannel(c *gin.Context) {
	parentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid channel id"})
		return
	}
	var req createSubChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	actor := middleware.GetActor(c)

	ch, err := h.channels.CreateSubChannel(c.Request.Context(), actor, parentID, req.Name, req.Description, req.MemberIDs)
	if err != nil {
		respondError(c, h.logger, "create sub-channel", err)
		return
	}
	c.JSON(http.StatusCreated, ch)
}

// List handles GET /v1/channels
func (h *ChannelHandler) List(c *gin.Context) {
	actor := middleware.GetActor(c)

	channels, err := h.channels.List(c.Request.Context(), actor)
	if err != nil {
		respondError(c, h.logger, "list channels", err)
		return
	}
	c.JSON(http.StatusOK, channels)
}

// GetByID handles GET /v1/channels/:id
func (h *ChannelHandler) GetByID(c *gin.Context) {
	channelID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid channel id"})
		return
	}
	actor := middleware.GetActor(c)

	ch, err := h.channels.Get(c.Request.Context(), actor, channelID)
	if err != nil {
		respondError(c, h.logger, "get channel", err)
		return
	}
	c.JSON(http.StatusOK, ch)
}

// ListSubChannels handles GET /v1/channels/:id/sub-channels
func (h *ChannelHandler) ListSubChannels(c *gin.Context) {
	parentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid channel id"})
		return
	}
	actor := middleware.GetActor(c)

	channels, err := h.channels.ListSubChannels(c.Request.Context(), actor, parentID)
	if err != nil {
		respondError(c, h.logger, "list sub-channels", err)
		return
	}
	c.JSON(http.StatusOK, channels)
}

// Update handles PATCH /v1/channels/:id
func (h *ChannelHandler) Update(c *gin.Context) {
	channelID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid channel id"})
		return
	}
	var req updateChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	actor := middleware.GetActor(c)

	ch, err := h.channels.Update(c.Request.Context(), actor, channelID, req.Name, req.Description)
	if err != nil {
		respondError(c, h.logger, "update channel", err)
		return
	}
	c.JSON(http.StatusOK, ch)
}

// Pin handles PUT /v1/channels/:id/pin
func (h *ChannelHandler) Pin(c *gin.Context) {
	channelID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid channel id"})
		return
	}
	var req pinChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	actor := middleware.GetActor(c)

	if err := h.channels.Pin(c.Request.Context(), actor, channelID, *req.Pinned); err != nil {
		respondError(c, h.logger, "pin channel", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Delete handles DELETE /v1/channels/:id
func (h *ChannelHandler) Delete(c *gin.Context) {
	channelID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid channel id"})
		return
	}
	actor := middleware.GetActor(c)

	if err := h.channels.Delete(c.Request.Context(), actor, channelID); err != nil {
		respondError(c, h.logger, "delete channel", err)
		return
	}
	c.Status(http.StatusNoContent)
}
