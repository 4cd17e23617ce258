package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/parley-hq/parley/internal/auth"
	"github.com/parley-hq/parley/internal/service"
)

// ContextKeyActor is where AuthMiddleware stores the authenticated
// actor in gin's per-request context.
const ContextKeyActor = "actor"

// AuthMiddleware validates the platform bearer token and stores the
// resulting actor in the request context. Handlers read it back with
// GetActor; an invalid or missing token aborts the chain with 401.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing authorization header",
			})
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid authorization format, expected: Bearer <token>",
			})
			return
		}

		claims, err := auth.ParseToken(parts[1], secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid or expired token",
			})
			return
		}

		c.Set(ContextKeyActor, service.Actor{
			UserID:      claims.UserID,
			DisplayName: claims.DisplayName,
			Email:       claims.Email,
			OrgID:       claims.OrgID,
		})
		c.Next()
	}
}

// GetActor returns the actor stored by AuthMiddleware. The zero Actor
// comes back on routes that skipped authentication; its nil UserID
// fails every membership lookup.
func GetActor(c *gin.Context) service.Actor {
	val, exists := c.Get(ContextKeyActor)
	if !exists {
		return service.Actor{}
	}
	actor, ok := val.(service.Actor)
	if !ok {
		return service.Actor{}
	}
	return actor
}
