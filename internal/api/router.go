package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/parley-hq/parley/internal/middleware"
	"github.com/parley-hq/parley/internal/repository"
)

// Handlers bundles everything RegisterRoutes mounts, so main.go passes
// one value instead of six.
type Handlers struct {
	Channels   *ChannelHandler
	Membership *MembershipHandler
	Invites    *InviteHandler
	Messages   *MessageHandler
	Presence   *PresenceHandler
	Calls      *CallHandler
}

// RegisterRoutes mounts the v1 surface.
//
// Two routes stay public: the health check (load balancers cannot hold
// tokens) and the invite landing card (the visitor has not signed in
// yet). Everything else runs behind AuthMiddleware, with DirectorySync
// keeping the local user replica fresh from the verified claims.
func RegisterRoutes(r *gin.Engine, h Handlers, users repository.UserStore, jwtSecret string, logger *zap.Logger) {
	r.GET("/v1/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/v1/invites/:token", h.Invites.Details)

	v1 := r.Group("/v1")
	v1.Use(middleware.AuthMiddleware(jwtSecret), middleware.DirectorySync(users, logger))

	// Channel directory.
	v1.POST("/channels/dm", h.Channels.CreateDM)
	v1.POST("/channels/group", h.Channels.CreateGroup)
	v1.POST("/channels/deal-room", h.Channels.CreateDealRoom)
	v1.POST("/channels/announcement", h.Channels.CreateAnnouncement)
	v1.GET("/channels", h.Channels.List)
	v1.GET("/channels/:id", h.Channels.GetByID)
	v1.PATCH("/channels/:id", h.Channels.Update)
	v1.DELETE("/channels/:id", h.Channels.Delete)
	v1.PUT("/channels/:id/pin", h.Channels.Pin)
	v1.POST("/channels/:id/sub-channels", h.Channels.CreateSubChannel)
	v1.GET("/channels/:id/sub-channels", h.Channels.ListSubChannels)

	// Roster.
	v1.POST("/channels/:id/members", h.Membership.Add)
	v1.GET("/channels/:id/members", h.Membership.ListMembers)
	v1.DELETE("/channels/:id/members/:userId", h.Membership.Remove)
	v1.PATCH("/channels/:id/members/:userId", h.Membership.ChangeRole)
	v1.POST("/channels/:id/leave", h.Membership.Leave)
	v1.POST("/channels/:id/read", h.Membership.MarkRead)

	// Invites. Details for :token is public, see above.
	v1.POST("/channels/:id/invites", h.Invites.Create)
	v1.GET("/channels/:id/invites", h.Invites.ListForChannel)
	v1.POST("/invites/:token/accept", h.Invites.Accept)
	v1.DELETE("/invites/:token", h.Invites.Deactivate)

	// Messaging.
	v1.POST("/channels/:id/messages", h.Messages.Send)
	v1.GET("/channels/:id/messages", h.Messages.List)
	v1.GET("/channels/:id/pins", h.Messages.ListPinned)
	v1.GET("/messages/:id/thread", h.Messages.Thread)
	v1.PATCH("/messages/:id", h.Messages.Edit)
	v1.DELETE("/messages/:id", h.Messages.Delete)
	v1.PUT("/messages/:id/pin", h.Messages.Pin)
	v1.POST("/messages/:id/reactions", h.Messages.React)
	v1.GET("/messages/:id/reactions", h.Messages.Reactions)
	v1.DELETE("/messages/:id/reactions/:emoji", h.Messages.Unreact)

	// Presence.
	v1.PUT("/presence", h.Presence.Update)
	v1.POST("/presence/query", h.Presence.Query)

	// Calls.
	v1.POST("/channels/:id/calls", h.Calls.Start)
	v1.GET("/channels/:id/calls/active", h.Calls.Active)
	v1.GET("/calls/:id", h.Calls.GetByID)
	v1.POST("/calls/:id/join", h.Calls.Join)
	v1.POST("/calls/:id/leave", h.Calls.Leave)
	v1.POST("/calls/:id/end", h.Calls.End)
	v1.PATCH("/calls/:id/media", h.Calls.SetMedia)
	v1.POST("/calls/:id/recording", h.Calls.UploadRecording)
}
