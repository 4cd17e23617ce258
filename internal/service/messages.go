package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/parley-hq/parley/internal/models"
	"github.com/parley-hq/parley/internal/repository"
	"go.uber.org/zap"
)

// EditWindow is how long after creation the author may still edit or
// delete a message.
const EditWindow = 15 * time.Minute

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

// Messages is the message and thread engine: channel timelines, thread
// replies, the time-boxed edit window, pins and reactions.
type Messages struct {
	access
	messages repository.MessageStore
	logger   *zap.Logger
	now      func() time.Time
}

func NewMessages(channels repository.ChannelStore, members repository.MembershipStore, messages repository.MessageStore, logger *zap.Logger) *Messages {
	return &Messages{
		access:   access{channels: channels, members: members},
		messages: messages,
		logger:   logger,
		now:      time.Now,
	}
}

// MessagePage is one slice of a channel timeline, newest first. A nil
// NextCursor means the oldest message has been reached.
type MessagePage struct {
	Messages   []models.Message `json:"messages"`
	NextCursor *int64           `json:"next_cursor,omitempty"`
}

// Thread is a parent message with its direct replies in creation order.
// ReplyCount is counted, never stored.
type Thread struct {
	Parent     models.Message   `json:"parent"`
	Replies    []models.Message `json:"replies"`
	ReplyCount int              `json:"reply_count"`
}

// Send posts a message. Any member may post, except in announcement
// channels where posting is admin-gated. A reply must reference a
// message in the same channel.
func (s *Messages) Send(ctx context.Context, actor Actor, channelID uuid.UUID, content string, replyToID *int64) (*models.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, BadRequest("content is required")
	}

	ch, m, err := s.require(ctx, channelID, actor.UserID, models.RoleGuest)
	if err != nil {
		return nil, err
	}
	if ch.Type == models.ChannelTypeAnnouncement && !m.Role.AtLeast(models.RoleAdmin) {
		return nil, Forbidden("only admins can post in announcement channels")
	}

	if replyToID != nil {
		parent, err := s.messages.GetByID(ctx, *replyToID)
		if err != nil {
			return nil, err
		}
		if parent == nil {
			return nil, NotFound("message not found")
		}
		if parent.ChannelID != channelID {
			return nil, BadRequest("reply must reference a message in this channel")
		}
	}

	return s.messages.Create(ctx, &models.Message{
		ChannelID: channelID,
		UserID:    actor.UserID,
		Content:   content,
		Kind:      models.MessageKindUser,
		ReplyToID: replyToID,
	})
}

// List pages through a channel timeline in descending id order. The
// page is fetched with one extra row; its id becomes the next cursor,
// which keeps the total order stable across pages without a count
// query.
func (s *Messages) List(ctx context.Context, actor Actor, channelID uuid.UUID, limit int, cursor *int64) (*MessagePage, error) {
	if _, _, err := s.require(ctx, channelID, actor.UserID, models.RoleGuest); err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	var beforeID int64
	if cursor != nil {
		if *cursor <= 0 {
			return nil, BadRequest("invalid cursor")
		}
		beforeID = *cursor
	}

	items, err := s.messages.ListByChannel(ctx, channelID, beforeID, limit+1)
	if err != nil {
		return nil, err
	}

	page := &MessagePage{}
	if len(items) > limit {
		next := items[limit].ID
		page.NextCursor = &next
		items = items[:limit]
	}
	page.Messages = maskDeleted(items)
	return page, nil
}

// Thread returns a parent message and its replies.
func (s *Messages) Thread(ctx context.Context, actor Actor, parentID int64) (*Thread, error) {
	parent, err := s.messages.GetByID(ctx, parentID)
	if err != nil {
		return nil, err
	}
	if parent == nil {
		return nil, NotFound("message not found")
	}
	if _, _, err := s.require(ctx, parent.ChannelID, actor.UserID, models.RoleGuest); err != nil {
		return nil, err
	}

	replies, err := s.messages.ListThread(ctx, parentID)
	if err != nil {
		return nil, err
	}
	count, err := s.messages.CountReplies(ctx, parentID)
	if err != nil {
		return nil, err
	}

	masked := maskDeleted(append([]models.Message{*parent}, replies...))
	return &Thread{
		Parent:     masked[0],
		Replies:    masked[1:],
		ReplyCount: count,
	}, nil
}

// Edit rewrites a message's content. Author-only and only within the
// edit window; system messages are untouchable.
func (s *Messages) Edit(ctx context.Context, actor Actor, messageID int64, content string) (*models.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, BadRequest("content is required")
	}

	m, err := s.editable(ctx, actor, messageID)
	if err != nil {
		return nil, err
	}

	at := s.now()
	if err := s.messages.Edit(ctx, messageID, content, at); err != nil {
		return nil, err
	}
	m.Content = content
	m.EditedAt = &at
	return m, nil
}

// Delete soft-deletes a message under the same author-and-window rule
// as Edit. Deleting an already-deleted message is a no-op.
func (s *Messages) Delete(ctx context.Context, actor Actor, messageID int64) error {
	m, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if m == nil {
		return NotFound("message not found")
	}
	if m.Deleted() {
		return nil
	}
	if m.Kind == models.MessageKindSystem {
		return Forbidden("system messages cannot be deleted")
	}
	if m.UserID != actor.UserID {
		return Forbidden("only the author can delete a message")
	}
	if s.now().Sub(m.CreatedAt) > EditWindow {
		return Forbidden("edit window has elapsed")
	}

	return s.messages.SoftDelete(ctx, messageID, s.now())
}

// editable runs the author-and-window gate for Edit.
func (s *Messages) editable(ctx context.Context, actor Actor, messageID int64) (*models.Message, error) {
	m, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, NotFound("message not found")
	}
	if m.Kind == models.MessageKindSystem {
		return nil, Forbidden("system messages cannot be edited")
	}
	if m.Deleted() {
		return nil, BadRequest("message is deleted")
	}
	if m.UserID != actor.UserID {
		return nil, Forbidden("only the author can edit a message")
	}
	if s.now().Sub(m.CreatedAt) > EditWindow {
		return nil, Forbidden("edit window has elapsed")
	}
	return m, nil
}

// Pin flips a message's pin flag. Admin-gated on the message's channel.
func (s *Messages) Pin(ctx context.Context, actor Actor, messageID int64, pinned bool) (*models.Message, error) {
	m, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, NotFound("message not found")
	}
	if _, _, err := s.require(ctx, m.ChannelID, actor.UserID, models.RoleAdmin); err != nil {
		return nil, err
	}

	ok, err := s.messages.SetPinned(ctx, messageID, pinned)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, NotFound("message not found")
	}
	m.IsPinned = pinned
	masked := maskDeleted([]models.Message{*m})
	return &masked[0], nil
}

// ListPinned returns a channel's pinned, non-deleted messages.
func (s *Messages) ListPinned(ctx context.Context, actor Actor, channelID uuid.UUID) ([]models.Message, error) {
	if _, _, err := s.require(ctx, channelID, actor.UserID, models.RoleGuest); err != nil {
		return nil, err
	}
	return s.messages.ListPinned(ctx, channelID)
}

// React adds an emoji reaction. Re-adding the same reaction is a no-op;
// the return value reports whether anything was added.
func (s *Messages) React(ctx context.Context, actor Actor, messageID int64, emoji string) (bool, error) {
	if strings.TrimSpace(emoji) == "" {
		return false, BadRequest("emoji is required")
	}
	m, err := s.reactable(ctx, actor, messageID)
	if err != nil {
		return false, err
	}
	if m.Deleted() {
		return false, BadRequest("message is deleted")
	}

	return s.messages.AddReaction(ctx, &models.Reaction{
		MessageID: messageID,
		UserID:    actor.UserID,
		Emoji:     emoji,
	})
}

// Unreact removes the caller's reaction. Removing one that is not there
// is a no-op.
func (s *Messages) Unreact(ctx context.Context, actor Actor, messageID int64, emoji string) error {
	if strings.TrimSpace(emoji) == "" {
		return BadRequest("emoji is required")
	}
	if _, err := s.reactable(ctx, actor, messageID); err != nil {
		return err
	}

	_, err := s.messages.RemoveReaction(ctx, messageID, actor.UserID, emoji)
	return err
}

// Reactions lists a message's reactions in the order they were added.
func (s *Messages) Reactions(ctx context.Context, actor Actor, messageID int64) ([]models.Reaction, error) {
	if _, err := s.reactable(ctx, actor, messageID); err != nil {
		return nil, err
	}
	return s.messages.ListReactions(ctx, messageID)
}

// reactable loads a message and checks the actor belongs to its channel.
func (s *Messages) reactable(ctx context.Context, actor Actor, messageID int64) (*models.Message, error) {
	m, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, NotFound("message not found")
	}
	if _, _, err := s.require(ctx, m.ChannelID, actor.UserID, models.RoleGuest); err != nil {
		return nil, err
	}
	return m, nil
}

// maskDeleted blanks the content of soft-deleted messages before they
// leave the core. Rows stay visible so threads keep their shape.
func maskDeleted(ms []models.Message) []models.Message {
	for i := range ms {
		if ms[i].DeletedAt != nil {
			ms[i].Content = ""
		}
	}
	return ms
}
