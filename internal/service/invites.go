package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/parley-hq/parley/internal/models"
	"github.com/parley-hq/parley/internal/repository"
	"go.uber.org/zap"
)

// Invites issues and consumes guest-invite tokens. A token is a bearer
// credential: anyone holding it may inspect the channel's public card
// and, while the invite stays consumable, join as a guest.
type Invites struct {
	access
	invites  repository.InviteStore
	users    repository.UserStore
	messages repository.MessageStore
	logger   *zap.Logger
	baseURL  string
	now      func() time.Time
}

func NewInvites(channels repository.ChannelStore, members repository.MembershipStore, invites repository.InviteStore, users repository.UserStore, messages repository.MessageStore, logger *zap.Logger, baseURL string) *Invites {
	return &Invites{
		access:   access{channels: channels, members: members},
		invites:  invites,
		users:    users,
		messages: messages,
		logger:   logger,
		baseURL:  baseURL,
		now:      time.Now,
	}
}

// InviteLink is a created invite plus its shareable URL.
type InviteLink struct {
	models.ChannelInvite
	URL string `json:"url"`
}

// InviteDetails is the public card behind an invite URL. Deliberately
// minimal: no member lists, no messages, nothing beyond what a landing
// page needs to render.
type InviteDetails struct {
	ChannelName        string `json:"channel_name"`
	ChannelDescription string `json:"channel_description"`
	CreatorName        string `json:"creator_name"`
}

// AcceptResult reports what accepting an invite did.
type AcceptResult struct {
	ChannelID     uuid.UUID                 `json:"channel_id"`
	AlreadyMember bool                      `json:"already_member"`
	Membership    *models.ChannelMembership `json:"membership,omitempty"`
}

// CreateLink issues a new invite for a channel. Admin-gated.
func (s *Invites) CreateLink(ctx context.Context, actor Actor, channelID uuid.UUID, expiresInDays, maxUses *int) (*InviteLink, error) {
	if expiresInDays != nil && *expiresInDays <= 0 {
		return nil, BadRequest("expires_in_days must be positive")
	}
	if maxUses != nil && *maxUses <= 0 {
		return nil, BadRequest("max_uses must be positive")
	}
	if _, _, err := s.require(ctx, channelID, actor.UserID, models.RoleAdmin); err != nil {
		return nil, err
	}

	token, err := newInviteToken()
	if err != nil {
		return nil, err
	}

	var expiresAt *time.Time
	if expiresInDays != nil {
		t := s.now().Add(time.Duration(*expiresInDays) * 24 * time.Hour)
		expiresAt = &t
	}

	inv := &models.ChannelInvite{
		Token:     token,
		ChannelID: channelID,
		CreatedBy: actor.UserID,
		ExpiresAt: expiresAt,
		MaxUses:   maxUses,
	}
	if err := s.invites.Create(ctx, inv); err != nil {
		return nil, err
	}

	s.logger.Info("invite created",
		zap.String("channel_id", channelID.String()),
		zap.String("invite_id", inv.ID.String()),
	)
	return &InviteLink{ChannelInvite: *inv, URL: s.inviteURL(token)}, nil
}

// Details is the unauthenticated invite lookup. It reveals only the
// channel card and fails with the precise state reason for an invite
// that can no longer be used.
func (s *Invites) Details(ctx context.Context, token string) (*InviteDetails, error) {
	inv, err := s.invites.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, NotFound("invite not found")
	}
	if err := inviteStateErr(inv.State(s.now())); err != nil {
		return nil, err
	}

	ch, err := s.channel(ctx, inv.ChannelID)
	if err != nil {
		return nil, err
	}

	details := &InviteDetails{
		ChannelName:        ch.Name,
		ChannelDescription: ch.Description,
	}
	if u, err := s.users.GetByID(ctx, inv.CreatedBy); err == nil && u != nil {
		details.CreatorName = u.DisplayName
	}
	return details, nil
}

// Accept joins the caller to the invite's channel as a guest. An actor
// who is already a member gets alreadyMember=true and consumes nothing;
// a first-time join consumes exactly one use via an atomic conditional
// increment, so concurrent acceptors can never push UsedCount past
// MaxUses.
func (s *Invites) Accept(ctx context.Context, actor Actor, token string) (*AcceptResult, error) {
	inv, err := s.invites.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, NotFound("invite not found")
	}
	if err := inviteStateErr(inv.State(s.now())); err != nil {
		return nil, err
	}

	m := models.ChannelMembership{
		ChannelID: inv.ChannelID,
		UserID:    actor.UserID,
		Role:      models.RoleGuest,
		IsGuest:   true,
	}
	res, err := s.invites.Redeem(ctx, token, &m, s.now())
	if err != nil {
		return nil, err
	}

	switch res {
	case repository.RedeemAlreadyMember:
		existing, err := s.membership(ctx, inv.ChannelID, actor.UserID)
		if err != nil {
			return nil, err
		}
		return &AcceptResult{ChannelID: inv.ChannelID, AlreadyMember: true, Membership: existing}, nil

	case repository.RedeemNotConsumable:
		// Lost a race since the pre-check; re-read for the precise
		// reason.
		current, err := s.invites.GetByToken(ctx, token)
		if err != nil {
			return nil, err
		}
		if current == nil {
			return nil, NotFound("invite not found")
		}
		if err := inviteStateErr(current.State(s.now())); err != nil {
			return nil, err
		}
		return nil, BadRequest("invite is no longer valid")
	}

	if _, err := s.messages.Create(ctx, &models.Message{
		ChannelID: inv.ChannelID,
		UserID:    actor.UserID,
		Content:   fmt.Sprintf("%s joined via invite", actor.DisplayName),
		Kind:      models.MessageKindSystem,
	}); err != nil {
		s.logger.Warn("record invite join message", zap.Error(err))
	}

	joined, err := s.membership(ctx, inv.ChannelID, actor.UserID)
	if err != nil {
		return nil, err
	}
	if joined == nil {
		joined = &m
	}
	return &AcceptResult{ChannelID: inv.ChannelID, AlreadyMember: false, Membership: joined}, nil
}

// Deactivate kills an invite link. Admin-gated; idempotent.
func (s *Invites) Deactivate(ctx context.Context, actor Actor, token string) error {
	inv, err := s.invites.GetByToken(ctx, token)
	if err != nil {
		return err
	}
	if inv == nil {
		return NotFound("invite not found")
	}
	if _, _, err := s.require(ctx, inv.ChannelID, actor.UserID, models.RoleAdmin); err != nil {
		return err
	}

	ok, err := s.invites.Deactivate(ctx, token)
	if err != nil {
		return err
	}
	if !ok {
		return NotFound("invite not found")
	}
	return nil
}

// ListForChannel returns every invite issued for a channel. Admin-gated
// since tokens are bearer credentials.
func (s *Invites) ListForChannel(ctx context.Context, actor Actor, channelID uuid.UUID) ([]models.ChannelInvite, error) {
	if _, _, err := s.require(ctx, channelID, actor.UserID, models.RoleAdmin); err != nil {
		return nil, err
	}
	return s.invites.ListByChannel(ctx, channelID)
}

func (s *Invites) inviteURL(token string) string {
	return strings.TrimRight(s.baseURL, "/") + "/invite/" + token
}

// inviteStateErr maps a non-active invite state to its contract reason.
func inviteStateErr(state models.InviteState) error {
	switch state {
	case models.InviteStateExpired:
		return BadRequest("invite expired")
	case models.InviteStateExhausted:
		return BadRequest("maximum uses reached")
	case models.InviteStateDeactivated:
		return BadRequest("invite deactivated")
	}
	return nil
}

// newInviteToken draws 32 bytes from the CSPRNG, hex-encoded. 256 bits
// keeps tokens unguessable even with unbounded attempts.
func newInviteToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate invite token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
