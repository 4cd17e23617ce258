package api

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/parley-hq/parley/internal/middleware"
	"github.com/parley-hq/parley/internal/models"
	"github.com/parley-hq/parley/internal/service"
)

// maxRecordingBytes bounds the recording upload body. Anything larger
// belongs in chunked client-side storage, not a single POST.
const maxRecordingBytes = 256 << 20

type CallHandler struct {
	calls  *service.Calls
	logger *zap.Logger
}

func NewCallHandler(calls *service.Calls, logger *zap.Logger) *CallHandler {
	return &CallHandler{calls: calls, logger: logger}
}

type startCallRequest struct {
	Type string `json:"type" binding:"required"`
}

type joinCallRequest struct {
	AudioEnabled *bool `json:"audio_enabled"`
	VideoEnabled *bool `json:"video_enabled"`
}

type setMediaRequest struct {
	AudioEnabled *bool `json:"audio_enabled" binding:"required"`
	VideoEnabled *bool `json:"video_enabled" binding:"required"`
}

// Start handles POST /v1/channels/:id/calls
func (h *CallHandler) Start(c *gin.Context) {
	channelID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid channel id"})
		return
	}
	var req startCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	actor := middleware.GetActor(c)

	view, err := h.calls.Start(c.Request.Context(), actor, channelID, models.CallType(req.Type))
	if err != nil {
		respondError(c, h.logger, "start call", err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

// GetByID handles GET /v1/calls/:id
func (h *CallHandler) GetByID(c *gin.Context) {
	callID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid call id"})
		return
	}
	actor := middleware.GetActor(c)

	view, err := h.calls.Get(c.Request.Context(), actor, callID)
	if err != nil {
		respondError(c, h.logger, "get call", err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Active handles GET /v1/channels/:id/calls/active
func (h *CallHandler) Active(c *gin.Context) {
	channelID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid channel id"})
		return
	}
	actor := middleware.GetActor(c)

	view, err := h.calls.Active(c.Request.Context(), actor, channelID)
	if err != nil {
		respondError(c, h.logger, "get active call", err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Join handles POST /v1/calls/:id/join
//
// The body is optional; joining defaults to audio on, video off.
func (h *CallHandler) Join(c *gin.Context) {
	callID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid call id"})
		return
	}

	audio, video := true, false
	var req joinCallRequest
	if err := c.ShouldBindJSON(&req); err == nil {
		if req.AudioEnabled != nil {
			audio = *req.AudioEnabled
		}
		if req.VideoEnabled != nil {
			video = *req.VideoEnabled
		}
	}
	actor := middleware.GetActor(c)

	participant, err := h.calls.Join(c.Request.Context(), actor, callID, audio, video)
	if err != nil {
		respondError(c, h.logger, "join call", err)
		return
	}
	c.JSON(http.StatusOK, participant)
}

// Leave handles POST /v1/calls/:id/leave
//
// The response reports whether this departure ended the call.
func (h *CallHandler) Leave(c *gin.Context) {
	callID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid call id"})
		return
	}
	actor := middleware.GetActor(c)

	ended, err := h.calls.Leave(c.Request.Context(), actor, callID)
	if err != nil {
		respondError(c, h.logger, "leave call", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ended": ended})
}

// End handles POST /v1/calls/:id/end
func (h *CallHandler) End(c *gin.Context) {
	callID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid call id"})
		return
	}
	actor := middleware.GetActor(c)

	call, err := h.calls.End(c.Request.Context(), actor, callID)
	if err != nil {
		respondError(c, h.logger, "end call", err)
		return
	}
	c.JSON(http.StatusOK, call)
}

// SetMedia handles PATCH /v1/calls/:id/media
func (h *CallHandler) SetMedia(c *gin.Context) {
	callID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid call id"})
		return
	}
	var req setMediaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	actor := middleware.GetActor(c)

	if err := h.calls.SetMedia(c.Request.Context(), actor, callID, *req.AudioEnabled, *req.VideoEnabled); err != nil {
		respondError(c, h.logger, "update media state", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UploadRecording handles POST /v1/calls/:id/recording
//
// The request body is the raw audio bytes; Content-Type picks the file
// extension. Transcription and summarization run in the background, so
// the response carries only the stored recording URL.
func (h *CallHandler) UploadRecording(c *gin.Context) {
	callID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid call id"})
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxRecordingBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read recording body"})
		return
	}
	actor := middleware.GetActor(c)

	call, err := h.calls.UploadRecording(c.Request.Context(), actor, callID, data, c.ContentType())
	if err != nil {
		respondError(c, h.logger, "upload recording", err)
		return
	}
	c.JSON(http.StatusOK, call)
}
