package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/parley-hq/parley/internal/middleware"
	"github.com/parley-hq/parley/internal/service"
)

type MessageHandler struct {
	messages *service.Messages
	logger   *zap.Logger
}

func NewMessageHandler(messages *service.Messages, logger *zap.Logger) *MessageHandler {
	return &MessageHandler{messages: messages, logger: logger}
}

type sendMessageRequest struct {
	Content   string `json:"content" binding:"required"`
	ReplyToID *int64 `json:"reply_to_id"`
}

type editMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

type pinMessageRequest struct {
	Pinned *bool `json:"pinned" binding:"required"`
}

type reactRequest struct {
	Emoji string `json:"emoji" binding:"required"`
}

// messageID parses the :id path parameter. Message ids are sequence
// values, not UUIDs. On failure it writes the 400 and reports false.
func messageID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return 0, false
	}
	return id, true
}

// Send handles POST /v1/channels/:id/messages
func (h *MessageHandler) Send(c *gin.Context) {
	channelID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid channel id"})
		return
	}
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	actor := middleware.GetActor(c)

	msg, err := h.messages.Send(c.Request.Context(), actor, channelID, req.Content, req.ReplyToID)
	if err != nil {
		respondError(c, h.logger, "send message", err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// List handles GET /v1/channels/:id/messages?before=123&limit=50
//
// Cursor pagination, newest first. "before" is the next_cursor from the
// previous page; omit it for the latest page.
func (h *MessageHandler) List(c *gin.Context) {
	channelID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid channel id"})
		return
	}

	var cursor *int64
	if b := c.Query("before"); b != "" {
		v, err := strconv.ParseInt(b, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'before' parameter"})
			return
		}
		cursor = &v
	}

	limit := 0
	if l := c.Query("limit"); l != "" {
		limit, err = strconv.Atoi(l)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'limit' parameter"})
			return
		}
	}
	actor := middleware.GetActor(c)

	page, err := h.messages.List(c.Request.Context(), actor, channelID, limit, cursor)
	if err != nil {
		respondError(c, h.logger, "list messages", err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// Thread handles GET /v1/messages/:id/thread
func (h *MessageHandler) Thread(c *gin.Context) {
	id, ok := messageID(c)
	if !ok {
		return
	}
	actor := middleware.GetActor(c)

	thread, err := h.messages.Thread(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, h.logger, "get thread", err)
		return
	}
	c.JSON(http.StatusOK, thread)
}

// Edit handles PATCH /v1/messages/:id
func (h *MessageHandler) Edit(c *gin.Context) {
	id, ok := messageID(c)
	if !ok {
		return
	}
	var req editMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	actor := middleware.GetActor(c)

	msg, err := h.messages.Edit(c.Request.Context(), actor, id, req.Content)
	if err != nil {
		respondError(c, h.logger, "edit message", err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

// Delete handles DELETE /v1/messages/:id
func (h *MessageHandler) Delete(c *gin.Context) {
	id, ok := messageID(c)
	if !ok {
		return
	}
	actor := middleware.GetActor(c)

	if err := h.messages.Delete(c.Request.Context(), actor, id); err != nil {
		respondError(c, h.logger, "delete message", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Pin handles PUT /v1/messages/:id/pin
func (h *MessageHandler) Pin(c *gin.Context) {
	id, ok := messageID(c)
	if !ok {
		return
	}
	var req pinMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	actor := middleware.GetActor(c)

	msg, err := h.messages.Pin(c.Request.Context(), actor, id, *req.Pinned)
	if err != nil {
		respondError(c, h.logger, "pin message", err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

// ListPinned handles GET /v1/channels/:id/pins
func (h *MessageHandler) ListPinned(c *gin.Context) {
	channelID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid channel id"})
		return
	}
	actor := middleware.GetActor(c)

	pinned, err := h.messages.ListPinned(c.Request.Context(), actor, channelID)
	if err != nil {
		respondError(c, h.logger, "list pinned messages", err)
		return
	}
	c.JSON(http.StatusOK, pinned)
}

// React handles POST /v1/messages/:id/reactions
//
// 201 when the reaction was added, 200 when the same user already had
// the same emoji on the message.
func (h *MessageHandler) React(c *gin.Context) {
	id, ok := messageID(c)
	if !ok {
		return
	}
	var req reactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	actor := middleware.GetActor(c)

	added, err := h.messages.React(c.Request.Context(), actor, id, req.Emoji)
	if err != nil {
		respondError(c, h.logger, "add reaction", err)
		return
	}

	status := http.StatusCreated
	if !added {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{"added": added})
}

// Unreact handles DELETE /v1/messages/:id/reactions/:emoji
func (h *MessageHandler) Unreact(c *gin.Context) {
	id, ok := messageID(c)
	if !ok {
		return
	}
	actor := middleware.GetActor(c)

	if err := h.messages.Unreact(c.Request.Context(), actor, id, c.Param("emoji")); err != nil {
		respondError(c, h.logger, "remove reaction", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Reactions handles GET /v1/messages/:id/reactions
func (h *MessageHandler) Reactions(c *gin.Context) {
	id, ok := messageID(c)
	if !ok {
		return
	}
	actor := middleware.GetActor(c)

	reactions, err := h.messages.Reactions(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, h.logger, "list reactions", err)
		return
	}
	c.JSON(http.StatusOK, reactions)
}
