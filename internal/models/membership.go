package models

import (
	"time"

	"github.com/google/uuid"
)

// Role is a member's permission level within one channel. Roles form a
// total order guest < member < admin < owner; every permission check in
// the core reduces to "does the actor's role reach the minimum for this
// operation".
type Role string

const (
	RoleGuest  Role = "guest"
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
	RoleOwner  Role = "owner"
)

var roleRank = map[Role]int{
	RoleGuest:  0,
	RoleMember: 1,
	RoleAdmin:  2,
	RoleOwner:  3,
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// AtLeast reports whether r grants at least the privileges of min.
// Unknown values never satisfy any minimum.
func (r Role) AtLeast(min Role) bool {
	rr, ok := roleRank[r]
	if !ok {
		return false
	}
	mr, ok := roleRank[min]
	if !ok {
		return false
	}
	return rr >= mr
}

// ChannelMembership ties a user to a channel. Exactly one row exists per
// (channel, user) pair; IsGuest marks members whose access originated
// from an invite token rather than org membership.
type ChannelMembership struct {
	ChannelID  uuid.UUID  `json:"channel_id"`
	UserID     uuid.UUID  `json:"user_id"`
	Role       Role       `json:"role"`
	IsGuest    bool       `json:"is_guest"`
	LastReadAt *time.Time `json:"last_read_at,omitempty"`
	JoinedAt   time.Time  `json:"joined_at"`
}
