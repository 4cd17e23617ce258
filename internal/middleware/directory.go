package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/parley-hq/parley/internal/models"
	"github.com/parley-hq/parley/internal/repository"
)

// DirectorySync refreshes the local user directory from the verified
// token claims on every authenticated request. The platform issues the
// tokens, so the claims are the source of truth for display names and
// emails; the replica only exists so rosters and messages can render
// names without a cross-service call.
//
// Sync failures are logged and swallowed. A stale directory row is a
// cosmetic problem, not worth failing the request over.
func DirectorySync(users repository.UserStore, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := GetActor(c)
		if actor.UserID != uuid.Nil {
			err := users.Upsert(c.Request.Context(), &models.User{
				ID:          actor.UserID,
				DisplayName: actor.DisplayName,
				Email:       actor.Email,
				OrgID:       actor.OrgID,
			})
			if err != nil {
				logger.Warn("user directory sync failed",
					zap.String("user_id", actor.UserID.String()),
					zap.Error(err))
			}
		}
		c.Next()
	}
}
