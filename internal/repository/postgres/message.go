package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/parley-hq/parley/internal/models"
)

const messageColumns = `id, channel_id, user_id, content, kind, reply_to_id, created_at, edited_at, deleted_at, is_pinned`

type MessageStore struct {
	pool *pgxpool.Pool
}

func NewMessageStore(pool *pgxpool.Pool) *MessageStore {
	return &MessageStore{pool: pool}
}

func scanMessage(row pgx.Row) (*models.Message, error) {
	var m models.Message
	err := row.Scan(
		&m.ID,
		&m.ChannelID,
		&m.UserID,
		&m.Content,
		&m.Kind,
		&m.ReplyToID,
		&m.CreatedAt,
		&m.EditedAt,
		&m.DeletedAt,
		&m.IsPinned,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func collectMessages(rows pgx.Rows) ([]models.Message, error) {
	messages := make([]models.Message, 0)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return messages, nil
}

func (s *MessageStore) Create(ctx context.Context, m *models.Message) (*models.Message, error) {
	query := `
		INSERT INTO messages (channel_id, user_id, content, kind, reply_to_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + messageColumns

	created, err := scanMessage(s.pool.QueryRow(ctx, query,
		m.ChannelID, m.UserID, m.Content, m.Kind, m.ReplyToID))
	if err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}
	return created, nil
}

func (s *MessageStore) GetByID(ctx context.Context, id int64) (*models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE id = $1`

	m, err := scanMessage(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get message: %w", err)
	}
	return m, nil
}

func (s *MessageStore) ListByChannel(ctx context.Context, channelID uuid.UUID, beforeID int64, limit int) ([]models.Message, error) {
	// Serial ids give a stable newest-first order; the cursor is
	// inclusive so the caller can over-fetch one row and reuse its id
	// as the next cursor.
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE channel_id = $1 AND ($2 = 0 OR id <= $2)
		ORDER BY id DESC
		LIMIT $3`

	rows, err := s.pool.Query(ctx, query, channelID, beforeID, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	return collectMessages(rows)
}

func (s *MessageStore) ListThread(ctx context.Context, parentID int64) ([]models.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE reply_to_id = $1
		ORDER BY id ASC`

	rows, err := s.pool.Query(ctx, query, parentID)
	if err != nil {
		return nil, fmt.Errorf("list thread: %w", err)
	}
	defer rows.Close()

	return collectMessages(rows)
}

func (s *MessageStore) CountReplies(ctx context.Context, parentID int64) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM messages WHERE reply_to_id = $1`, parentID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count replies: %w", err)
	}
	return count, nil
}

func (s *MessageStore) Edit(ctx context.Context, id int64, content string, at time.Time) error {
	query := `UPDATE messages SET content = $2, edited_at = $3 WHERE id = $1`

	if _, err := s.pool.Exec(ctx, query, id, content, at); err != nil {
		return fmt.Errorf("edit message: %w", err)
	}
	return nil
}

func (s *MessageStore) SoftDelete(ctx context.Context, id int64, at time.Time) error {
	// The row stays so replies keep a parent to hang off.
	query := `UPDATE messages SET deleted_at = $2 WHERE id = $1 AND deleted_at IS NULL`

	if _, err := s.pool.Exec(ctx, query, id, at); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

func (s *MessageStore) SetPinned(ctx context.Context, id int64, pinned bool) (bool, error) {
	query := `UPDATE messages SET is_pinned = $2 WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query, id, pinned)
	if err != nil {
		return false, fmt.Errorf("pin message: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *MessageStore) ListPinned(ctx context.Context, channelID uuid.UUID) ([]models.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE channel_id = $1 AND is_pinned AND deleted_at IS NULL
		ORDER BY id DESC`

	rows, err := s.pool.Query(ctx, query, channelID)
	if err != nil {
		return nil, fmt.Errorf("list pinned messages: %w", err)
	}
	defer rows.Close()

	return collectMessages(rows)
}

func (s *MessageStore) AddReaction(ctx context.Context, r *models.Reaction) (bool, error) {
	query := `
		INSERT INTO message_reactions (message_id, user_id, emoji)
		VALUES ($1, $2, $3)
		ON CONFLICT (message_id, user_id, emoji) DO NOTHING`

	tag, err := s.pool.Exec(ctx, query, r.MessageID, r.UserID, r.Emoji)
	if err != nil {
		return false, fmt.Errorf("add reaction: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *MessageStore) RemoveReaction(ctx context.Context, messageID int64, userID uuid.UUID, emoji string) (bool, error) {
	query := `DELETE FROM message_reactions WHERE message_id = $1 AND user_id = $2 AND emoji = $3`

	tag, err := s.pool.Exec(ctx, query, messageID, userID, emoji)
	if err != nil {
		return false, fmt.Errorf("remove reaction: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *MessageStore) ListReactions(ctx context.Context, messageID int64) ([]models.Reaction, error) {
	query := `
		SELECT message_id, user_id, emoji, created_at
		FROM message_reactions
		WHERE message_id = $1
		ORDER BY created_at ASC`

	rows, err := s.pool.Query(ctx, query, messageID)
	if err != nil {
		return nil, fmt.Errorf("list reactions: %w", err)
	}
	defer rows.Close()

	reactions := make([]models.Reaction, 0)
	for rows.Next() {
		var r models.Reaction
		if err := rows.Scan(&r.MessageID, &r.UserID, &r.Emoji, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan reaction: %w", err)
		}
		reactions = append(reactions, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reactions: %w", err)
	}
	return reactions, nil
}
