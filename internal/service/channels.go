package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/parley-hq/parley/internal/models"
	"github.com/parley-hq/parley/internal/repository"
	"go.uber.org/zap"
)

// Channels is the channel directory: one constructor per channel
// variant so each variant's invariants live next to its creation logic,
// plus hierarchy and listing with per-viewer DM naming.
type Channels struct {
	access
	users  repository.UserStore
	logger *zap.Logger
}

func NewChannels(channels repository.ChannelStore, members repository.MembershipStore, users repository.UserStore, logger *zap.Logger) *Channels {
	return &Channels{
		access: access{channels: channels, members: members},
		users:  users,
		logger: logger,
	}
}

// CreateDM finds or creates the direct channel between the actor and
// exactly one other user. Idempotent: both orderings of the pair land
// on the same channel. DMs carry no org scope and both sides are plain
// members, so no admin-gated operation applies to them.
func (s *Channels) CreateDM(ctx context.Context, actor Actor, otherID uuid.UUID) (*models.Channel, bool, error) {
	if otherID == uuid.Nil {
		return nil, false, BadRequest("user_id is required")
	}
	if otherID == actor.UserID {
		return nil, false, BadRequest("cannot start a DM with yourself")
	}

	ch := &models.Channel{Type: models.ChannelTypeDM, CreatedBy: actor.UserID}
	created, existed, err := s.channels.CreateDM(ctx, ch, actor.UserID, otherID)
	if err != nil {
		return nil, false, err
	}

	view := []models.Channel{*created}
	if err := s.resolveDMNames(ctx, actor, view); err != nil {
		return nil, false, err
	}
	return &view[0], existed, nil
}

// CreateGroup creates a plain group channel scoped to the actor's org.
// The creator becomes owner; memberIDs join as members.
func (s *Channels) CreateGroup(ctx context.Context, actor Actor, name, description string, memberIDs []uuid.UUID) (*models.Channel, error) {
	return s.createFlat(ctx, actor, models.ChannelTypeGroup, name, description, memberIDs)
}

// CreateAnnouncement creates a broadcast channel: everyone can read,
// only admins and owners can post.
func (s *Channels) CreateAnnouncement(ctx context.Context, actor Actor, name, description string, memberIDs []uuid.UUID) (*models.Channel, error) {
	return s.createFlat(ctx, actor, models.ChannelTypeAnnouncement, name, description, memberIDs)
}

func (s *Channels) createFlat(ctx context.Context, actor Actor, typ models.ChannelType, name, description string, memberIDs []uuid.UUID) (*models.Channel, error) {
	if strings.TrimSpace(name) == "" {
		return nil, BadRequest("name is required")
	}

	ch := &models.Channel{
		Type:        typ,
		OrgID:       actor.OrgID,
		Name:        name,
		Description: description,
		CreatedBy:   actor.UserID,
	}
	members := initialMembers(actor.UserID, memberIDs)
	if err := s.channels.CreateWithMembers(ctx, ch, members); err != nil {
		return nil, err
	}
	s.logger.Info("channel created",
		zap.String("channel_id", ch.ID.String()),
		zap.String("type", string(typ)),
	)
	return ch, nil
}

// CreateDealRoom creates a transaction workspace. One "general"
// sub-channel is created atomically with the room; the creator holds
// owner on both and memberIDs join both as members.
func (s *Channels) CreateDealRoom(ctx context.Context, actor Actor, name, description string, vertical *string, memberIDs []uuid.UUID) (*models.Channel, *models.Channel, error) {
	if strings.TrimSpace(name) == "" {
		return nil, nil, BadRequest("name is required")
	}

	room := &models.Channel{
		Type:        models.ChannelTypeDealRoom,
		OrgID:       actor.OrgID,
		Name:        name,
		Description: description,
		Vertical:    vertical,
		CreatedBy:   actor.UserID,
	}
	general := &models.Channel{
		Type:      models.ChannelTypeSubChannel,
		OrgID:     actor.OrgID,
		Name:      "general",
		CreatedBy: actor.UserID,
	}
	err := s.channels.CreateDealRoom(ctx, room, general,
		initialMembers(actor.UserID, memberIDs),
		initialMembers(actor.UserID, memberIDs))
	if err != nil {
		return nil, nil, err
	}
	s.logger.Info("deal room created",
		zap.String("deal_room_id", room.ID.String()),
		zap.String("general_channel_id", general.ID.String()),
	)
	return room, general, nil
}

// CreateSubChannel adds a child channel under a deal room. The actor
// must hold admin or better on the parent.
func (s *Channels) CreateSubChannel(ctx context.Context, actor Actor, parentID uuid.UUID, name, description string, memberIDs []uuid.UUID) (*models.Channel, error) {
	if strings.TrimSpace(name) == "" {
		return nil, BadRequest("name is required")
	}

	parent, err := s.channel(ctx, parentID)
	if err != nil {
		return nil, err
	}
	if parent.Type != models.ChannelTypeDealRoom {
		return nil, BadRequest("parent channel must be a deal room")
	}
	m, err := s.membership(ctx, parentID, actor.UserID)
	if err != nil {
		return nil, err
	}
	if err := authorize(m, models.RoleAdmin); err != nil {
		return nil, err
	}

	ch := &models.Channel{
		Type:        models.ChannelTypeSubChannel,
		OrgID:       parent.OrgID,
		ParentID:    &parentID,
		Name:        name,
		Description: description,
		CreatedBy:   actor.UserID,
	}
	if err := s.channels.CreateWithMembers(ctx, ch, initialMembers(actor.UserID, memberIDs)); err != nil {
		return nil, err
	}
	return ch, nil
}

// Get returns a channel the actor belongs to, with the DM display name
// resolved for this viewer.
func (s *Channels) Get(ctx context.Context, actor Actor, id uuid.UUID) (*models.Channel, error) {
	ch, err := s.channel(ctx, id)
	if err != nil {
		return nil, err
	}
	m, err := s.membership(ctx, id, actor.UserID)
	if err != nil {
		return nil, err
	}
	if err := authorize(m, models.RoleGuest); err != nil {
		return nil, err
	}

	view := []models.Channel{*ch}
	if err := s.resolveDMNames(ctx, actor, view); err != nil {
		return nil, err
	}
	return &view[0], nil
}

// List returns every channel the actor belongs to, newest first, with
// DM display names resolved.
func (s *Channels) List(ctx context.Context, actor Actor) ([]models.Channel, error) {
	channels, err := s.channels.ListByMember(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	if err := s.resolveDMNames(ctx, actor, channels); err != nil {
		return nil, err
	}
	return channels, nil
}

// ListSubChannels returns the children of a deal room the actor belongs
// to, in creation order.
func (s *Channels) ListSubChannels(ctx context.Context, actor Actor, parentID uuid.UUID) ([]models.Channel, error) {
	if _, _, err := s.require(ctx, parentID, actor.UserID, models.RoleGuest); err != nil {
		return nil, err
	}
	return s.channels.ListSubChannels(ctx, parentID)
}

// Update renames or re-describes a channel. Admin-gated; the channel
// type is immutable and has no update path at all.
func (s *Channels) Update(ctx context.Context, actor Actor, id uuid.UUID, name, description *string) (*models.Channel, error) {
	if name != nil && strings.TrimSpace(*name) == "" {
		return nil, BadRequest("name cannot be empty")
	}
	if _, _, err := s.require(ctx, id, actor.UserID, models.RoleAdmin); err != nil {
		return nil, err
	}

	updated, err := s.channels.Update(ctx, id, name, description)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, NotFound("channel not found")
	}
	return updated, nil
}

// Pin flips the channel-level pin flag. Admin-gated.
func (s *Channels) Pin(ctx context.Context, actor Actor, id uuid.UUID, pinned bool) error {
	if _, _, err := s.require(ctx, id, actor.UserID, models.RoleAdmin); err != nil {
		return err
	}
	ok, err := s.channels.SetPinned(ctx, id, pinned)
	if err != nil {
		return err
	}
	if !ok {
		return NotFound("channel not found")
	}
	return nil
}

// Delete removes a channel and everything under it: memberships,
// invites, messages, calls, and for a deal room its sub-channels.
func (s *Channels) Delete(ctx context.Context, actor Actor, id uuid.UUID) error {
	if _, _, err := s.require(ctx, id, actor.UserID, models.RoleAdmin); err != nil {
		return err
	}
	ok, err := s.channels.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return NotFound("channel not found")
	}
	s.logger.Info("channel deleted", zap.String("channel_id", id.String()))
	return nil
}

// initialMembers builds the creator's owner membership plus one member
// row per distinct other id.
func initialMembers(creator uuid.UUID, memberIDs []uuid.UUID) []models.ChannelMembership {
	members := []models.ChannelMembership{{UserID: creator, Role: models.RoleOwner}}
	seen := map[uuid.UUID]bool{creator: true}
	for _, id := range memberIDs {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		members = append(members, models.ChannelMembership{UserID: id, Role: models.RoleMember})
	}
	return members
}

// resolveDMNames sets each DM's display name to the other participant's
// name for this viewer. Presentation only; nothing is persisted.
func (s *Channels) resolveDMNames(ctx context.Context, viewer Actor, channels []models.Channel) error {
	otherByChannel := make(map[uuid.UUID]uuid.UUID)
	ids := make([]uuid.UUID, 0)
	for _, ch := range channels {
		if ch.Type != models.ChannelTypeDM {
			continue
		}
		members, err := s.members.List(ctx, ch.ID)
		if err != nil {
			return err
		}
		for _, m := range members {
			if m.UserID != viewer.UserID {
				otherByChannel[ch.ID] = m.UserID
				ids = append(ids, m.UserID)
			}
		}
	}
	if len(ids) == 0 {
		return nil
	}

	users, err := s.users.GetByIDs(ctx, ids)
	if err != nil {
		return err
	}
	for i := range channels {
		otherID, ok := otherByChannel[channels[i].ID]
		if !ok {
			continue
		}
		if u, ok := users[otherID]; ok {
			channels[i].Name = u.DisplayName
		}
	}
	return nil
}
