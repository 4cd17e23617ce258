package models

import (
	"time"

	"github.com/google/uuid"
)

// PresenceStatus is a user's self-reported availability.
type PresenceStatus string

const (
	PresenceOnline  PresenceStatus = "online"
	PresenceAway    PresenceStatus = "away"
	PresenceOffline PresenceStatus = "offline"
)

// Valid reports whether s is one of the known statuses.
func (s PresenceStatus) Valid() bool {
	switch s {
	case PresenceOnline, PresenceAway, PresenceOffline:
		return true
	}
	return false
}

// Presence is the latest known status for one user. Writes are
// last-write-wins and no history is kept; a user with no stored entry
// must be treated by callers as offline.
type Presence struct {
	UserID     uuid.UUID      `json:"user_id"`
	Status     PresenceStatus `json:"status"`
	LastSeenAt time.Time      `json:"last_seen_at"`
}
