package models

import (
	"time"

	"github.com/google/uuid"
)

// ChannelType distinguishes the channel variants. The type is fixed at
// creation and never changes afterwards; each variant carries its own
// creation rules in the channel directory service.
type ChannelType string

const (
	ChannelTypeDM           ChannelType = "dm"
	ChannelTypeGroup        ChannelType = "group"
	ChannelTypeDealRoom     ChannelType = "deal_room"
	ChannelTypeSubChannel   ChannelType = "sub_channel"
	ChannelTypeAnnouncement ChannelType = "announcement"
)

// Valid reports whether t is one of the known channel types.
func (t ChannelType) Valid() bool {
	switch t {
	case ChannelTypeDM, ChannelTypeGroup, ChannelTypeDealRoom, ChannelTypeSubChannel, ChannelTypeAnnouncement:
		return true
	}
	return false
}

// Channel is a conversation container. Deal rooms act as parents for
// sub-channels; DMs carry no org scope (the two sides may belong to
// different orgs).
type Channel struct {
	ID          uuid.UUID   `json:"id"`
	Type        ChannelType `json:"type"`
	OrgID       *uuid.UUID  `json:"org_id,omitempty"`
	ParentID    *uuid.UUID  `json:"parent_id,omitempty"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Vertical    *string     `json:"vertical,omitempty"`
	IsPinned    bool        `json:"is_pinned"`
	CreatedBy   uuid.UUID   `json:"created_by"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}
