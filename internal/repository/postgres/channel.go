package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/parley-hq/parley/internal/models"
)

const channelColumns = `id, type, org_id, parent_id, name, description, vertical, is_pinned, created_by, created_at, updated_at`

type ChannelStore struct {
	pool *pgxpool.Pool
}

func NewChannelStore(pool *pgxpool.Pool) *ChannelStore {
	return &ChannelStore{pool: pool}
}

func scanChannel(row pgx.Row) (*models.Channel, error) {
	var ch models.Channel
	err := row.Scan(
		&ch.ID,
		&ch.Type,
		&ch.OrgID,
		&ch.ParentID,
		&ch.Name,
		&ch.Description,
		&ch.Vertical,
		&ch.IsPinned,
		&ch.CreatedBy,
		&ch.CreatedAt,
		&ch.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

// dmKey is the canonical identity of a DM pair: both ids sorted, joined.
// A UNIQUE constraint on the column makes concurrent creates for the
// same pair converge on one row.
func dmKey(a, b uuid.UUID) string {
	x, y := a.String(), b.String()
	if strings.Compare(x, y) > 0 {
		x, y = y, x
	}
	return x + ":" + y
}

func (s *ChannelStore) CreateDM(ctx context.Context, ch *models.Channel, userA, userB uuid.UUID) (*models.Channel, bool, error) {
	key := dmKey(userA, userB)

	existing, err := s.getByDMKey(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, true, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("begin dm create: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO channels (id, type, org_id, parent_id, name, description, vertical, is_pinned, created_by, dm_key, created_at, updated_at)
		VALUES (uuid_generate_v4(), $1, NULL, NULL, '', '', NULL, false, $2, $3, now(), now())
		ON CONFLICT (dm_key) DO NOTHING
		RETURNING ` + channelColumns

	created, err := scanChannel(tx.QueryRow(ctx, query, ch.Type, ch.CreatedBy, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Lost the creation race; the winner's row is the channel.
			existing, err2 := s.getByDMKey(ctx, key)
			if err2 != nil {
				return nil, false, err2
			}
			if existing == nil {
				return nil, false, fmt.Errorf("dm channel vanished after conflict")
			}
			return existing, true, nil
		}
		return nil, false, fmt.Errorf("insert dm channel: %w", err)
	}

	for _, userID := range []uuid.UUID{userA, userB} {
		m := models.ChannelMembership{
			ChannelID: created.ID,
			UserID:    userID,
			Role:      models.RoleMember,
		}
		if err := insertMembership(ctx, tx, &m); err != nil {
			return nil, false, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("commit dm create: %w", err)
	}
	return created, false, nil
}

func (s *ChannelStore) getByDMKey(ctx context.Context, key string) (*models.Channel, error) {
	query := `SELECT ` + channelColumns + ` FROM channels WHERE dm_key = $1`

	ch, err := scanChannel(s.pool.QueryRow(ctx, query, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get dm channel: %w", err)
	}
	return ch, nil
}

func insertChannel(ctx context.Context, tx pgx.Tx, ch *models.Channel) error {
	query := `
		INSERT INTO channels (id, type, org_id, parent_id, name, description, vertical, is_pinned, created_by, created_at, updated_at)
		VALUES (uuid_generate_v4(), $1, $2, $3, $4, $5, $6, false, $7, now(), now())
		RETURNING ` + channelColumns

	inserted, err := scanChannel(tx.QueryRow(ctx, query,
		ch.Type, ch.OrgID, ch.ParentID, ch.Name, ch.Description, ch.Vertical, ch.CreatedBy))
	if err != nil {
		return fmt.Errorf("insert channel: %w", err)
	}
	*ch = *inserted
	return nil
}

func insertMembership(ctx context.Context, tx pgx.Tx, m *models.ChannelMembership) error {
	query := `
		INSERT INTO channel_members (channel_id, user_id, role, is_guest, joined_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (channel_id, user_id) DO NOTHING`

	if _, err := tx.Exec(ctx, query, m.ChannelID, m.UserID, m.Role, m.IsGuest); err != nil {
		return fmt.Errorf("insert membership: %w", err)
	}
	return nil
}

func (s *ChannelStore) CreateWithMembers(ctx context.Context, ch *models.Channel, members []models.ChannelMembership) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin channel create: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := insertChannel(ctx, tx, ch); err != nil {
		return err
	}
	for i := range members {
		members[i].ChannelID = ch.ID
		if err := insertMembership(ctx, tx, &members[i]); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit channel create: %w", err)
	}
	return nil
}

func (s *ChannelStore) CreateDealRoom(ctx context.Context, room, general *models.Channel, roomMembers, generalMembers []models.ChannelMembership) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin deal room create: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := insertChannel(ctx, tx, room); err != nil {
		return err
	}

	general.ParentID = &room.ID
	if err := insertChannel(ctx, tx, general); err != nil {
		return err
	}

	for i := range roomMembers {
		roomMembers[i].ChannelID = room.ID
		if err := insertMembership(ctx, tx, &roomMembers[i]); err != nil {
			return err
		}
	}
	for i := range generalMembers {
		generalMembers[i].ChannelID = general.ID
		if err := insertMembership(ctx, tx, &generalMembers[i]); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit deal room create: %w", err)
	}
	return nil
}

func (s *ChannelStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Channel, error) {
	query := `SELECT ` + channelColumns + ` FROM channels WHERE id = $1`

	ch, err := scanChannel(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get channel: %w", err)
	}
	return ch, nil
}

func (s *ChannelStore) ListByMember(ctx context.Context, userID uuid.UUID) ([]models.Channel, error) {
	query := `
		SELECT c.id, c.type, c.org_id, c.parent_id, c.name, c.description, c.vertical, c.is_pinned, c.created_by, c.created_at, c.updated_at
		FROM channels c
		JOIN channel_members m ON m.channel_id = c.id
		WHERE m.user_id = $1
		ORDER BY c.created_at DESC`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	defer rows.Close()

	return collectChannels(rows)
}

func (s *ChannelStore) ListSubChannels(ctx context.Context, parentID uuid.UUID) ([]models.Channel, error) {
	query := `
		SELECT ` + channelColumns + `
		FROM channels
		WHERE parent_id = $1
		ORDER BY created_at ASC`

	rows, err := s.pool.Query(ctx, query, parentID)
	if err != nil {
		return nil, fmt.Errorf("list sub-channels: %w", err)
	}
	defer rows.Close()

	return collectChannels(rows)
}

func collectChannels(rows pgx.Rows) ([]models.Channel, error) {
	channels := make([]models.Channel, 0)
	for rows.Next() {
		ch, err := scanChannel(rows)
		if err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		channels = append(channels, *ch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate channels: %w", err)
	}
	return channels, nil
}

func (s *ChannelStore) Update(ctx context.Context, id uuid.UUID, name, description *string) (*models.Channel, error) {
	query := `
		UPDATE channels
		SET name = COALESCE($2, name),
		    description = COALESCE($3, description),
		    updated_at = now()
		WHERE id = $1
		RETURNING ` + channelColumns

	ch, err := scanChannel(s.pool.QueryRow(ctx, query, id, name, description))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("update channel: %w", err)
	}
	return ch, nil
}

func (s *ChannelStore) SetPinned(ctx context.Context, id uuid.UUID, pinned bool) (bool, error) {
	query := `UPDATE channels SET is_pinned = $2, updated_at = now() WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query, id, pinned)
	if err != nil {
		return false, fmt.Errorf("pin channel: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *ChannelStore) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	// Memberships, invites, messages, calls and sub-channels cascade
	// via foreign keys.
	query := `DELETE FROM channels WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("delete channel: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
