package models

import (
	"time"

	"github.com/google/uuid"
)

// MessageKind separates user-authored messages from system notices
// (join/leave/remove records). System messages are written by the core
// itself and are never editable or deletable through the API.
type MessageKind string

const (
	MessageKindUser   MessageKind = "user"
	MessageKindSystem MessageKind = "system"
)

// Message is one entry in a channel. IDs come from a single bigserial
// sequence, so they are monotonic and define the total order used for
// cursor pagination. Deletion is soft: the row (and its content) stays
// so replies anchored to it keep a valid parent.
type Message struct {
	ID        int64       `json:"id"`
	ChannelID uuid.UUID   `json:"channel_id"`
	UserID    uuid.UUID   `json:"user_id"`
	Content   string      `json:"content"`
	Kind      MessageKind `json:"kind"`
	ReplyToID *int64      `json:"reply_to_id,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	EditedAt  *time.Time  `json:"edited_at,omitempty"`
	DeletedAt *time.Time  `json:"deleted_at,omitempty"`
	IsPinned  bool        `json:"is_pinned"`
}

// Deleted reports whether the message has been soft-deleted.
func (m *Message) Deleted() bool {
	return m.DeletedAt != nil
}

// Reaction is one emoji reaction on a message. The (message, user,
// emoji) triple is unique; re-adding an existing reaction is a no-op.
type Reaction struct {
	MessageID int64     `json:"message_id"`
	UserID    uuid.UUID `json:"user_id"`
	Emoji     string    `json:"emoji"`
	CreatedAt time.Time `json:"created_at"`
}
