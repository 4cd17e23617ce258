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

const callColumns = `id, channel_id, initiator_id, type, status, started_at, ended_at, duration_seconds, recording_url, transcript_url, summary_url`

const participantColumns = `id, call_id, user_id, role, audio_enabled, video_enabled, joined_at, left_at`

type CallStore struct {
	pool *pgxpool.Pool
}

func NewCallStore(pool *pgxpool.Pool) *CallStore {
	return &CallStore{pool: pool}
}

func scanCall(row pgx.Row) (*models.Call, error) {
	var c models.Call
	err := row.Scan(
		&c.ID,
		&c.ChannelID,
		&c.InitiatorID,
		&c.Type,
		&c.Status,
		&c.StartedAt,
		&c.EndedAt,
		&c.DurationSeconds,
		&c.RecordingURL,
		&c.TranscriptURL,
		&c.SummaryURL,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func scanParticipant(row pgx.Row) (*models.CallParticipant, error) {
	var p models.CallParticipant
	err := row.Scan(
		&p.ID,
		&p.CallID,
		&p.UserID,
		&p.Role,
		&p.AudioEnabled,
		&p.VideoEnabled,
		&p.JoinedAt,
		&p.LeftAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *CallStore) Start(ctx context.Context, call *models.Call, host *models.CallParticipant) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin start call: %w", err)
	}
	defer tx.Rollback(ctx)

	// The partial unique index on (channel_id) WHERE status = 'ongoing'
	// arbitrates concurrent starts: the loser's insert conflicts,
	// returns no row and leaves the winner's call untouched.
	insert := `
		INSERT INTO calls (id, channel_id, initiator_id, type)
		VALUES (uuid_generate_v4(), $1, $2, $3)
		ON CONFLICT (channel_id) WHERE status = 'ongoing' DO NOTHING
		RETURNING id, status, started_at`

	err = tx.QueryRow(ctx, insert, call.ChannelID, call.InitiatorID, call.Type).
		Scan(&call.ID, &call.Status, &call.StartedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("start call: %w", err)
	}

	host.CallID = call.ID
	hostInsert := `
		INSERT INTO call_participants (call_id, user_id, role, audio_enabled, video_enabled)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, joined_at`

	err = tx.QueryRow(ctx, hostInsert,
		host.CallID, host.UserID, host.Role, host.AudioEnabled, host.VideoEnabled,
	).Scan(&host.ID, &host.JoinedAt)
	if err != nil {
		return false, fmt.Errorf("start call host: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit start call: %w", err)
	}
	return true, nil
}

func (s *CallStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Call, error) {
	query := `SELECT ` + callColumns + ` FROM calls WHERE id = $1`

	c, err := scanCall(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get call: %w", err)
	}
	return c, nil
}

func (s *CallStore) GetOngoingByChannel(ctx context.Context, channelID uuid.UUID) (*models.Call, error) {
	query := `SELECT ` + callColumns + ` FROM calls WHERE channel_id = $1 AND status = 'ongoing'`

	c, err := scanCall(s.pool.QueryRow(ctx, query, channelID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get ongoing call: %w", err)
	}
	return c, nil
}

func (s *CallStore) AddParticipant(ctx context.Context, p *models.CallParticipant) (bool, error) {
	// Guarded insert: no row comes back when the call is no longer
	// ongoing or the user already has an active row. The caller
	// re-reads the call to tell the two apart.
	query := `
		INSERT INTO call_participants (call_id, user_id, role, audio_enabled, video_enabled)
		SELECT $1, $2, $3, $4, $5
		WHERE EXISTS (SELECT 1 FROM calls WHERE id = $1 AND status = 'ongoing')
		ON CONFLICT (call_id, user_id) WHERE left_at IS NULL DO NOTHING
		RETURNING id, joined_at`

	err := s.pool.QueryRow(ctx, query,
		p.CallID, p.UserID, p.Role, p.AudioEnabled, p.VideoEnabled,
	).Scan(&p.ID, &p.JoinedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("add call participant: %w", err)
	}
	return true, nil
}

func (s *CallStore) Leave(ctx context.Context, callID, userID uuid.UUID, now time.Time) (bool, bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, false, fmt.Errorf("begin leave call: %w", err)
	}
	defer tx.Rollback(ctx)

	// Lock the call row first. Concurrent leavers queue here, so each
	// one counts remaining participants against the previous leaver's
	// committed state and exactly one of them observes zero.
	var locked uuid.UUID
	err = tx.QueryRow(ctx, `SELECT id FROM calls WHERE id = $1 FOR UPDATE`, callID).Scan(&locked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, false, nil
		}
		return false, false, fmt.Errorf("lock call: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE call_participants SET left_at = $3
		WHERE call_id = $1 AND user_id = $2 AND left_at IS NULL`,
		callID, userID, now)
	if err != nil {
		return false, false, fmt.Errorf("leave call: %w", err)
	}
	left := tag.RowsAffected() > 0

	tag, err = tx.Exec(ctx, `
		UPDATE calls
		SET status = 'ended', ended_at = $2,
		    duration_seconds = EXTRACT(EPOCH FROM ($2 - started_at))::bigint
		WHERE id = $1 AND status = 'ongoing'
		  AND NOT EXISTS (
			SELECT 1 FROM call_participants
			WHERE call_id = $1 AND left_at IS NULL)`,
		callID, now)
	if err != nil {
		return false, false, fmt.Errorf("auto-end call: %w", err)
	}
	ended := tag.RowsAffected() > 0

	if err := tx.Commit(ctx); err != nil {
		return false, false, fmt.Errorf("commit leave call: %w", err)
	}
	return left, ended, nil
}

func (s *CallStore) EndAll(ctx context.Context, callID uuid.UUID, now time.Time) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin end call: %w", err)
	}
	defer tx.Rollback(ctx)

	var locked uuid.UUID
	err = tx.QueryRow(ctx, `SELECT id FROM calls WHERE id = $1 FOR UPDATE`, callID).Scan(&locked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("lock call: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE call_participants SET left_at = $2
		WHERE call_id = $1 AND left_at IS NULL`,
		callID, now); err != nil {
		return false, fmt.Errorf("end call participants: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE calls
		SET status = 'ended', ended_at = $2,
		    duration_seconds = EXTRACT(EPOCH FROM ($2 - started_at))::bigint
		WHERE id = $1 AND status = 'ongoing'`,
		callID, now)
	if err != nil {
		return false, fmt.Errorf("end call: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit end call: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *CallStore) SetMedia(ctx context.Context, callID, userID uuid.UUID, audio, video bool) (bool, error) {
	query := `
		UPDATE call_participants SET audio_enabled = $3, video_enabled = $4
		WHERE call_id = $1 AND user_id = $2 AND left_at IS NULL`

	tag, err := s.pool.Exec(ctx, query, callID, userID, audio, video)
	if err != nil {
		return false, fmt.Errorf("set call media: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *CallStore) ListParticipants(ctx context.Context, callID uuid.UUID) ([]models.CallParticipant, error) {
	query := `
		SELECT ` + participantColumns + `
		FROM call_participants
		WHERE call_id = $1
		ORDER BY joined_at ASC, id ASC`

	rows, err := s.pool.Query(ctx, query, callID)
	if err != nil {
		return nil, fmt.Errorf("list call participants: %w", err)
	}
	defer rows.Close()

	participants := make([]models.CallParticipant, 0)
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan call participant: %w", err)
		}
		participants = append(participants, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate call participants: %w", err)
	}
	return participants, nil
}

func (s *CallStore) SetArtifacts(ctx context.Context, callID uuid.UUID, recordingURL, transcriptURL, summaryURL *string) error {
	query := `
		UPDATE calls
		SET recording_url  = COALESCE($2, recording_url),
		    transcript_url = COALESCE($3, transcript_url),
		    summary_url    = COALESCE($4, summary_url)
		WHERE id = $1`

	if _, err := s.pool.Exec(ctx, query, callID, recordingURL, transcriptURL, summaryURL); err != nil {
		return fmt.Errorf("set call artifacts: %w", err)
	}
	return nil
}
