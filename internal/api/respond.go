package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/parley-hq/parley/internal/service"
)

func statusOf(code service.Code) int {
	switch code {
	case service.CodeNotFound:
		return http.StatusNotFound
	case service.CodeForbidden:
		return http.StatusForbidden
	case service.CodeBadRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondError maps a service error to the wire. Service-level reasons
// are safe to show as-is; anything untyped is an internal failure, so
// the detail goes to the log and the client gets a generic message.
func respondError(c *gin.Context, logger *zap.Logger, action string, err error) {
	code := service.CodeOf(err)
	if code == service.CodeInternal {
		logger.Error("failed to "+action, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to " + action})
		return
	}
	c.JSON(statusOf(code), gin.H{"error": err.Error()})
}
