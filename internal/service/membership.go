package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/parley-hq/parley/internal/models"
	"github.com/parley-hq/parley/internal/repository"
	"go.uber.org/zap"
)

// Membership manages role assignments on a channel. Every mutation here
// is admin-gated except Leave and MarkRead, which act on the caller's
// own row.
type Membership struct {
	access
	users    repository.UserStore
	messages repository.MessageStore
	logger   *zap.Logger
	now      func() time.Time
}

func NewMembership(channels repository.ChannelStore, members repository.MembershipStore, users repository.UserStore, messages repository.MessageStore, logger *zap.Logger) *Membership {
	return &Membership{
		access:   access{channels: channels, members: members},
		users:    users,
		messages: messages,
		logger:   logger,
		now:      time.Now,
	}
}

// Member is a roster entry joined with the directory replica.
type Member struct {
	models.ChannelMembership
	DisplayName string `json:"display_name"`
}

// Add inserts a membership. Duplicates are rejected rather than
// silently updated; re-adding a previously removed member is fine.
func (s *Membership) Add(ctx context.Context, actor Actor, channelID, userID uuid.UUID, role models.Role) (*models.ChannelMembership, error) {
	if userID == uuid.Nil {
		return nil, BadRequest("user_id is required")
	}
	if role == "" {
		role = models.RoleMember
	}
	if !role.Valid() {
		return nil, BadRequest("invalid role")
	}

	_, actorM, err := s.require(ctx, channelID, actor.UserID, models.RoleAdmin)
	if err != nil {
		return nil, err
	}
	if !actorM.Role.AtLeast(role) {
		return nil, Forbidden("cannot grant a role above your own")
	}

	m := models.ChannelMembership{
		ChannelID: channelID,
		UserID:    userID,
		Role:      role,
		IsGuest:   role == models.RoleGuest,
	}
	added, err := s.members.Add(ctx, &m)
	if err != nil {
		return nil, err
	}
	if !added {
		return nil, BadRequest("already a member")
	}

	return s.members.Get(ctx, channelID, userID)
}

// Remove drops a member from the channel and records the removal as a
// system message. Removing yourself is a leave.
func (s *Membership) Remove(ctx context.Context, actor Actor, channelID, userID uuid.UUID) error {
	if userID == actor.UserID {
		return s.Leave(ctx, actor, channelID)
	}

	if _, err := s.channel(ctx, channelID); err != nil {
		return err
	}
	actorM, err := s.membership(ctx, channelID, actor.UserID)
	if err != nil {
		return err
	}
	if actorM == nil {
		return Forbidden("not a channel member")
	}
	if !actorM.Role.AtLeast(models.RoleAdmin) {
		return Forbidden("Only channel owners/admins can remove guests/members")
	}

	target, err := s.membership(ctx, channelID, userID)
	if err != nil {
		return err
	}
	if target == nil {
		return NotFound("member not found")
	}
	if !actorM.Role.AtLeast(target.Role) {
		return Forbidden("cannot remove a member with a higher role")
	}

	removed, err := s.members.Remove(ctx, channelID, userID)
	if err != nil {
		return err
	}
	if !removed {
		return NotFound("member not found")
	}

	content := fmt.Sprintf("%s removed %s from the channel", actor.DisplayName, s.displayName(ctx, userID))
	return s.systemMessage(ctx, channelID, actor.UserID, content)
}

// Leave removes the caller's own membership and records it as a system
// message. No role requirement.
func (s *Membership) Leave(ctx context.Context, actor Actor, channelID uuid.UUID) error {
	if _, err := s.channel(ctx, channelID); err != nil {
		return err
	}
	removed, err := s.members.Remove(ctx, channelID, actor.UserID)
	if err != nil {
		return err
	}
	if !removed {
		return Forbidden("not a channel member")
	}

	content := fmt.Sprintf("%s left the channel", actor.DisplayName)
	return s.systemMessage(ctx, channelID, actor.UserID, content)
}

// ChangeRole reassigns a member's role. Actors cannot touch their own
// role, cannot grant above their own, and cannot demote someone who
// outranks them. The guest origin flag survives promotions.
func (s *Membership) ChangeRole(ctx context.Context, actor Actor, channelID, userID uuid.UUID, role models.Role) (*models.ChannelMembership, error) {
	if !role.Valid() {
		return nil, BadRequest("invalid role")
	}

	_, actorM, err := s.require(ctx, channelID, actor.UserID, models.RoleAdmin)
	if err != nil {
		return nil, err
	}
	if userID == actor.UserID {
		return nil, BadRequest("cannot change your own role")
	}
	if !actorM.Role.AtLeast(role) {
		return nil, Forbidden("cannot grant a role above your own")
	}

	target, err := s.membership(ctx, channelID, userID)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, NotFound("member not found")
	}
	if !actorM.Role.AtLeast(target.Role) {
		return nil, Forbidden("cannot change the role of a member with a higher role")
	}

	ok, err := s.members.UpdateRole(ctx, channelID, userID, role)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, NotFound("member not found")
	}
	return s.members.Get(ctx, channelID, userID)
}

// List returns the channel roster with display names resolved from the
// directory replica.
func (s *Membership) List(ctx context.Context, actor Actor, channelID uuid.UUID) ([]Member, error) {
	if _, _, err := s.require(ctx, channelID, actor.UserID, models.RoleGuest); err != nil {
		return nil, err
	}

	ms, err := s.members.List(ctx, channelID)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(ms))
	for _, m := range ms {
		ids = append(ids, m.UserID)
	}
	users, err := s.users.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	roster := make([]Member, 0, len(ms))
	for _, m := range ms {
		entry := Member{ChannelMembership: m}
		if u, ok := users[m.UserID]; ok {
			entry.DisplayName = u.DisplayName
		}
		roster = append(roster, entry)
	}
	return roster, nil
}

// MarkRead stamps the caller's lastReadAt. Self-only, no role check.
func (s *Membership) MarkRead(ctx context.Context, actor Actor, channelID uuid.UUID) error {
	if _, err := s.channel(ctx, channelID); err != nil {
		return err
	}
	ok, err := s.members.MarkRead(ctx, channelID, actor.UserID, s.now())
	if err != nil {
		return err
	}
	if !ok {
		return Forbidden("not a channel member")
	}
	return nil
}

func (s *Membership) systemMessage(ctx context.Context, channelID, actorID uuid.UUID, content string) error {
	_, err := s.messages.Create(ctx, &models.Message{
		ChannelID: channelID,
		UserID:    actorID,
		Content:   content,
		Kind:      models.MessageKindSystem,
	})
	if err != nil {
		return fmt.Errorf("record system message: %w", err)
	}
	return nil
}

func (s *Membership) displayName(ctx context.Context, userID uuid.UUID) string {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil || u == nil {
		return userID.String()
	}
	return u.DisplayName
}
