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
	"github.com/parley-hq/parley/internal/repository"
)

const inviteColumns = `id, token, channel_id, created_by, expires_at, max_uses, used_count, is_active, created_at`

type InviteStore struct {
	pool *pgxpool.Pool
}

func NewInviteStore(pool *pgxpool.Pool) *InviteStore {
	return &InviteStore{pool: pool}
}

func scanInvite(row pgx.Row) (*models.ChannelInvite, error) {
	var inv models.ChannelInvite
	err := row.Scan(
		&inv.ID,
		&inv.Token,
		&inv.ChannelID,
		&inv.CreatedBy,
		&inv.ExpiresAt,
		&inv.MaxUses,
		&inv.UsedCount,
		&inv.IsActive,
		&inv.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (s *InviteStore) Create(ctx context.Context, inv *models.ChannelInvite) error {
	query := `
		INSERT INTO channel_invites (id, token, channel_id, created_by, expires_at, max_uses)
		VALUES (uuid_generate_v4(), $1, $2, $3, $4, $5)
		RETURNING id, used_count, is_active, created_at`

	err := s.pool.QueryRow(ctx, query,
		inv.Token, inv.ChannelID, inv.CreatedBy, inv.ExpiresAt, inv.MaxUses,
	).Scan(&inv.ID, &inv.UsedCount, &inv.IsActive, &inv.CreatedAt)
	if err != nil {
		return fmt.Errorf("create invite: %w", err)
	}
	return nil
}

func (s *InviteStore) GetByToken(ctx context.Context, token string) (*models.ChannelInvite, error) {
	query := `SELECT ` + inviteColumns + ` FROM channel_invites WHERE token = $1`

	inv, err := scanInvite(s.pool.QueryRow(ctx, query, token))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get invite: %w", err)
	}
	return inv, nil
}

func (s *InviteStore) ListByChannel(ctx context.Context, channelID uuid.UUID) ([]models.ChannelInvite, error) {
	query := `
		SELECT ` + inviteColumns + `
		FROM channel_invites
		WHERE channel_id = $1
		ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query, channelID)
	if err != nil {
		return nil, fmt.Errorf("list invites: %w", err)
	}
	defer rows.Close()

	invites := make([]models.ChannelInvite, 0)
	for rows.Next() {
		inv, err := scanInvite(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invite: %w", err)
		}
		invites = append(invites, *inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invites: %w", err)
	}
	return invites, nil
}

func (s *InviteStore) Deactivate(ctx context.Context, token string) (bool, error) {
	query := `UPDATE channel_invites SET is_active = false WHERE token = $1`

	tag, err := s.pool.Exec(ctx, query, token)
	if err != nil {
		return false, fmt.Errorf("deactivate invite: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *InviteStore) Redeem(ctx context.Context, token string, m *models.ChannelMembership, now time.Time) (repository.RedeemResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return repository.RedeemNotConsumable, fmt.Errorf("begin redeem: %w", err)
	}
	defer tx.Rollback(ctx)

	insert := `
		INSERT INTO channel_members (channel_id, user_id, role, is_guest, joined_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (channel_id, user_id) DO NOTHING`

	tag, err := tx.Exec(ctx, insert, m.ChannelID, m.UserID, m.Role, m.IsGuest)
	if err != nil {
		return repository.RedeemNotConsumable, fmt.Errorf("redeem insert member: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Existing members do not consume a use.
		if err := tx.Commit(ctx); err != nil {
			return repository.RedeemNotConsumable, fmt.Errorf("commit redeem: %w", err)
		}
		return repository.RedeemAlreadyMember, nil
	}

	// The validity predicate rides on the increment itself, so two
	// acceptors racing for the last use serialize on the invite row and
	// exactly one of them sees used_count < max_uses.
	consume := `
		UPDATE channel_invites
		SET used_count = used_count + 1
		WHERE token = $1
		  AND is_active
		  AND (expires_at IS NULL OR $2 < expires_at)
		  AND (max_uses IS NULL OR used_count < max_uses)`

	tag, err = tx.Exec(ctx, consume, token, now)
	if err != nil {
		return repository.RedeemNotConsumable, fmt.Errorf("redeem consume use: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.RedeemNotConsumable, nil
	}

	if err := tx.Commit(ctx); err != nil {
		return repository.RedeemNotConsumable, fmt.Errorf("commit redeem: %w", err)
	}
	return repository.RedeemJoined, nil
}
