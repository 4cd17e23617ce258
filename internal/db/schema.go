package db

import (
	"context"
	"fmt"
)

// schemaStatements is applied in order on startup. Every statement is
// idempotent (IF NOT EXISTS), so a restarting server converges on the
// same schema without a separate migration step. pgx's extended
// protocol takes one statement per Exec, hence the slice.
var schemaStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`,

	// Replica of the platform directory, refreshed from token claims.
	`CREATE TABLE IF NOT EXISTS users (
		id           UUID PRIMARY KEY,
		display_name TEXT NOT NULL,
		email        TEXT NOT NULL DEFAULT '',
		org_id       UUID,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	// dm_key is the sorted "low:high" user-id pair for type = 'dm' and
	// NULL otherwise; the unique constraint is what makes concurrent
	// DM creation collapse to one conversation.
	`CREATE TABLE IF NOT EXISTS channels (
		id          UUID PRIMARY KEY,
		type        TEXT NOT NULL,
		org_id      UUID,
		parent_id   UUID REFERENCES channels(id) ON DELETE CASCADE,
		name        TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		vertical    TEXT,
		is_pinned   BOOLEAN NOT NULL DEFAULT FALSE,
		created_by  UUID NOT NULL,
		dm_key      TEXT UNIQUE,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_channels_parent ON channels(parent_id)`,

	`CREATE TABLE IF NOT EXISTS channel_members (
		channel_id   UUID NOT NULL REFERENCES channels(id) ON DELETE CASCADE,
		user_id      UUID NOT NULL,
		role         TEXT NOT NULL DEFAULT 'member',
		is_guest     BOOLEAN NOT NULL DEFAULT FALSE,
		last_read_at TIMESTAMPTZ,
		joined_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (channel_id, user_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_channel_members_user ON channel_members(user_id)`,

	`CREATE TABLE IF NOT EXISTS channel_invites (
		id         UUID PRIMARY KEY,
		token      TEXT NOT NULL UNIQUE,
		channel_id UUID NOT NULL REFERENCES channels(id) ON DELETE CASCADE,
		created_by UUID NOT NULL,
		expires_at TIMESTAMPTZ,
		max_uses   INTEGER,
		used_count INTEGER NOT NULL DEFAULT 0,
		is_active  BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_channel_invites_channel ON channel_invites(channel_id)`,

	// Message ids come from one bigserial sequence; cursor pagination
	// leans on that ordering.
	`CREATE TABLE IF NOT EXISTS messages (
		id          BIGSERIAL PRIMARY KEY,
		channel_id  UUID NOT NULL REFERENCES channels(id) ON DELETE CASCADE,
		user_id     UUID NOT NULL,
		content     TEXT NOT NULL,
		kind        TEXT NOT NULL DEFAULT 'user',
		reply_to_id BIGINT REFERENCES messages(id) ON DELETE CASCADE,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		edited_at   TIMESTAMPTZ,
		deleted_at  TIMESTAMPTZ,
		is_pinned   BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_channel ON messages(channel_id, id DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_reply ON messages(reply_to_id)`,

	`CREATE TABLE IF NOT EXISTS message_reactions (
		message_id BIGINT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
		user_id    UUID NOT NULL,
		emoji      TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (message_id, user_id, emoji)
	)`,

	`CREATE TABLE IF NOT EXISTS calls (
		id               UUID PRIMARY KEY,
		channel_id       UUID NOT NULL REFERENCES channels(id) ON DELETE CASCADE,
		initiator_id     UUID NOT NULL,
		type             TEXT NOT NULL,
		status           TEXT NOT NULL DEFAULT 'ongoing',
		started_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
		ended_at         TIMESTAMPTZ,
		duration_seconds BIGINT,
		recording_url    TEXT,
		transcript_url   TEXT,
		summary_url      TEXT
	)`,
	// At most one ongoing call per channel. Start() arbitrates races
	// through this index.
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_calls_one_ongoing
		ON calls(channel_id) WHERE status = 'ongoing'`,

	`CREATE TABLE IF NOT EXISTS call_participants (
		id            BIGSERIAL PRIMARY KEY,
		call_id       UUID NOT NULL REFERENCES calls(id) ON DELETE CASCADE,
		user_id       UUID NOT NULL,
		role          TEXT NOT NULL DEFAULT 'participant',
		audio_enabled BOOLEAN NOT NULL DEFAULT TRUE,
		video_enabled BOOLEAN NOT NULL DEFAULT FALSE,
		joined_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
		left_at       TIMESTAMPTZ
	)`,
	// One active row per user per call; rejoining after a leave makes
	// a fresh row.
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_call_participants_active
		ON call_participants(call_id, user_id) WHERE left_at IS NULL`,
}

// EnsureSchema brings the database up to the current schema.
func (db *DB) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := db.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	db.logger.Info("database schema ensured")
	return nil
}
