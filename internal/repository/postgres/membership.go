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

const membershipColumns = `channel_id, user_id, role, is_guest, last_read_at, joined_at`

type MembershipStore struct {
	pool *pgxpool.Pool
}

func NewMembershipStore(pool *pgxpool.Pool) *MembershipStore {
	return &MembershipStore{pool: pool}
}

func scanMembership(row pgx.Row) (*models.ChannelMembership, error) {
	var m models.ChannelMembership
	err := row.Scan(
		&m.ChannelID,
		&m.UserID,
		&m.Role,
		&m.IsGuest,
		&m.LastReadAt,
		&m.JoinedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *MembershipStore) Get(ctx context.Context, channelID, userID uuid.UUID) (*models.ChannelMembership, error) {
	query := `SELECT ` + membershipColumns + ` FROM channel_members WHERE channel_id = $1 AND user_id = $2`

	m, err := scanMembership(s.pool.QueryRow(ctx, query, channelID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get membership: %w", err)
	}
	return m, nil
}

func (s *MembershipStore) Add(ctx context.Context, m *models.ChannelMembership) (bool, error) {
	// ON CONFLICT DO NOTHING absorbs the duplicate-key race between two
	// concurrent adds of the same user; the caller learns the insert
	// did not happen from the affected-row count.
	query := `
		INSERT INTO channel_members (channel_id, user_id, role, is_guest, joined_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (channel_id, user_id) DO NOTHING`

	tag, err := s.pool.Exec(ctx, query, m.ChannelID, m.UserID, m.Role, m.IsGuest)
	if err != nil {
		return false, fmt.Errorf("add member: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *MembershipStore) Remove(ctx context.Context, channelID, userID uuid.UUID) (bool, error) {
	query := `DELETE FROM channel_members WHERE channel_id = $1 AND user_id = $2`

	tag, err := s.pool.Exec(ctx, query, channelID, userID)
	if err != nil {
		return false, fmt.Errorf("remove member: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *MembershipStore) UpdateRole(ctx context.Context, channelID, userID uuid.UUID, role models.Role) (bool, error) {
	query := `UPDATE channel_members SET role = $3 WHERE channel_id = $1 AND user_id = $2`

	tag, err := s.pool.Exec(ctx, query, channelID, userID, role)
	if err != nil {
		return false, fmt.Errorf("update member role: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *MembershipStore) List(ctx context.Context, channelID uuid.UUID) ([]models.ChannelMembership, error) {
	query := `
		SELECT ` + membershipColumns + `
		FROM channel_members
		WHERE channel_id = $1
		ORDER BY joined_at ASC`

	rows, err := s.pool.Query(ctx, query, channelID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	members := make([]models.ChannelMembership, 0)
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members: %w", err)
	}
	return members, nil
}

func (s *MembershipStore) MarkRead(ctx context.Context, channelID, userID uuid.UUID, at time.Time) (bool, error) {
	query := `UPDATE channel_members SET last_read_at = $3 WHERE channel_id = $1 AND user_id = $2`

	tag, err := s.pool.Exec(ctx, query, channelID, userID, at)
	if err != nil {
		return false, fmt.Errorf("mark read: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
