package models

import (
	"time"

	"github.com/google/uuid"
)

// InviteState is the lifecycle state of an invite link, derived from the
// row rather than stored: an invite is consumable only while Active.
type InviteState string

const (
	InviteStateActive      InviteState = "active"
	InviteStateExpired     InviteState = "expired"
	InviteStateExhausted   InviteState = "exhausted"
	InviteStateDeactivated InviteState = "deactivated"
)

// ChannelInvite is a bearer token granting a bounded-use right to join a
// channel as a guest. UsedCount only ever increases; the increment is
// guarded against MaxUses by an atomic conditional update in the store.
type ChannelInvite struct {
	ID        uuid.UUID  `json:"id"`
	Token     string     `json:"token"`
	ChannelID uuid.UUID  `json:"channel_id"`
	CreatedBy uuid.UUID  `json:"created_by"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	MaxUses   *int       `json:"max_uses,omitempty"`
	UsedCount int        `json:"used_count"`
	IsActive  bool       `json:"is_active"`
	CreatedAt time.Time  `json:"created_at"`
}

// State classifies the invite at the given instant. Deactivation wins
// over expiry, expiry over exhaustion, so the reported state is stable
// for an invite that is invalid for more than one reason.
func (i *ChannelInvite) State(now time.Time) InviteState {
	switch {
	case !i.IsActive:
		return InviteStateDeactivated
	case i.ExpiresAt != nil && !now.Before(*i.ExpiresAt):
		return InviteStateExpired
	case i.MaxUses != nil && i.UsedCount >= *i.MaxUses:
		return InviteStateExhausted
	}
	return InviteStateActive
}

// Consumable reports whether the invite can still be accepted at now.
func (i *ChannelInvite) Consumable(now time.Time) bool {
	return i.State(now) == InviteStateActive
}
