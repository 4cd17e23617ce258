package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/parley-hq/parley/internal/models"
	"github.com/parley-hq/parley/internal/repository"
)

// authorize is the permission predicate every mutating operation runs
// before acting. Absent membership and insufficient role are both
// FORBIDDEN; the only exemptions in the core are self-leave and self
// mark-read, which act on the caller's own row.
func authorize(m *models.ChannelMembership, min models.Role) error {
	if m == nil {
		return Forbidden("not a channel member")
	}
	if !m.Role.AtLeast(min) {
		return Forbidden("insufficient role")
	}
	return nil
}

// access bundles the channel and membership lookups the engines share.
type access struct {
	channels repository.ChannelStore
	members  repository.MembershipStore
}

// channel loads a channel or reports NOT_FOUND.
func (a access) channel(ctx context.Context, id uuid.UUID) (*models.Channel, error) {
	ch, err := a.channels.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if ch == nil {
		return nil, NotFound("channel not found")
	}
	return ch, nil
}

// membership loads the actor's membership; nil means non-member.
func (a access) membership(ctx context.Context, channelID, userID uuid.UUID) (*models.ChannelMembership, error) {
	return a.members.Get(ctx, channelID, userID)
}

// require loads the channel and enforces the actor's minimum role on it.
func (a access) require(ctx context.Context, channelID, userID uuid.UUID, min models.Role) (*models.Channel, *models.ChannelMembership, error) {
	ch, err := a.channel(ctx, channelID)
	if err != nil {
		return nil, nil, err
	}
	m, err := a.membership(ctx, channelID, userID)
	if err != nil {
		return nil, nil, err
	}
	if err := authorize(m, min); err != nil {
		return nil, nil, err
	}
	return ch, m, nil
}
