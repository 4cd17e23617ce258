package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/parley-hq/parley/internal/models"
)

// Store contracts for the communications core. Postgres implementations
// live in repository/postgres; presence lives in repository/redis since
// it is ephemeral state shared across instances, not durable history.
//
// Single-row lookups return nil, nil when the row does not exist so the
// service layer owns the translation to NOT_FOUND. Multi-table
// invariants (DM uniqueness, invite redemption, call start/leave) are
// transactional store methods: the concurrency discipline belongs next
// to the SQL that needs it.

// ChannelStore owns the channel hierarchy.
type ChannelStore interface {
	// CreateDM finds or creates the direct-message channel between two
	// users. Creation is race-safe: concurrent calls for the same pair
	// converge on a single channel. Returns the channel and whether it
	// already existed.
	CreateDM(ctx context.Context, ch *models.Channel, userA, userB uuid.UUID) (*models.Channel, bool, error)

	// CreateWithMembers inserts a channel plus its initial memberships
	// in one transaction. Used for group, announcement and sub_channel
	// creation.
	CreateWithMembers(ctx context.Context, ch *models.Channel, members []models.ChannelMembership) error

	// CreateDealRoom inserts a deal room and its auto-created "general"
	// sub-channel, with memberships on both, in one transaction.
	CreateDealRoom(ctx context.Context, room, general *models.Channel, roomMembers, generalMembers []models.ChannelMembership) error

	// GetByID returns a single channel. Returns nil, nil if not found.
	GetByID(ctx context.Context, id uuid.UUID) (*models.Channel, error)

	// ListByMember returns every channel the user belongs to, newest
	// first.
	ListByMember(ctx context.Context, userID uuid.UUID) ([]models.Channel, error)

	// ListSubChannels returns the children of a deal room in creation
	// order.
	ListSubChannels(ctx context.Context, parentID uuid.UUID) ([]models.Channel, error)

	// Update applies the non-nil fields and returns the updated row.
	// Returns nil, nil if the channel does not exist.
	Update(ctx context.Context, id uuid.UUID, name, description *string) (*models.Channel, error)

	// SetPinned flips the channel-level pin flag.
	SetPinned(ctx context.Context, id uuid.UUID, pinned bool) (bool, error)

	// Delete removes the channel; memberships, invites, messages, calls
	// and sub-channels go with it (FK cascade). Reports whether a row
	// was deleted.
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
}

// MembershipStore owns the (channel, user) role assignments.
type MembershipStore interface {
	// Get returns one membership. Returns nil, nil if absent.
	Get(ctx context.Context, channelID, userID uuid.UUID) (*models.ChannelMembership, error)

	// Add inserts a membership. A concurrent duplicate is absorbed by
	// the unique key; the return value reports whether the row was
	// actually inserted.
	Add(ctx context.Context, m *models.ChannelMembership) (bool, error)

	// Remove deletes a membership and reports whether a row existed.
	Remove(ctx context.Context, channelID, userID uuid.UUID) (bool, error)

	// UpdateRole sets the member's role; false when no membership.
	UpdateRole(ctx context.Context, channelID, userID uuid.UUID, role models.Role) (bool, error)

	// List returns all memberships of a channel, oldest join first.
	List(ctx context.Context, channelID uuid.UUID) ([]models.ChannelMembership, error)

	// MarkRead stamps last_read_at; false when no membership.
	MarkRead(ctx context.Context, channelID, userID uuid.UUID, at time.Time) (bool, error)
}

// RedeemResult reports what an invite redemption attempt did.
type RedeemResult int

const (
	// RedeemJoined: membership created and used_count incremented.
	RedeemJoined RedeemResult = iota
	// RedeemAlreadyMember: the user already belonged to the channel;
	// used_count untouched.
	RedeemAlreadyMember
	// RedeemNotConsumable: the conditional increment found the invite
	// expired, exhausted or deactivated; nothing changed.
	RedeemNotConsumable
)

// InviteStore owns guest-invite tokens.
type InviteStore interface {
	Create(ctx context.Context, inv *models.ChannelInvite) error

	// GetByToken returns the invite. Returns nil, nil if unknown.
	GetByToken(ctx context.Context, token string) (*models.ChannelInvite, error)

	ListByChannel(ctx context.Context, channelID uuid.UUID) ([]models.ChannelInvite, error)

	// Deactivate flips is_active off; false when the token is unknown.
	Deactivate(ctx context.Context, token string) (bool, error)

	// Redeem atomically adds the membership and consumes one use. The
	// increment is a conditional UPDATE guarded by the validity
	// predicate, run in the same transaction as the membership insert:
	// when concurrent acceptors race for the last slot, the loser's
	// membership insert is rolled back with its failed increment.
	Redeem(ctx context.Context, token string, m *models.ChannelMembership, now time.Time) (RedeemResult, error)
}

// MessageStore owns messages, threads, pins and reactions.
type MessageStore interface {
	// Create persists a message and returns it with ID and CreatedAt
	// populated by the database.
	Create(ctx context.Context, m *models.Message) (*models.Message, error)

	// GetByID returns a message regardless of soft-delete state.
	// Returns nil, nil if not found.
	GetByID(ctx context.Context, id int64) (*models.Message, error)

	// ListByChannel returns up to limit messages in descending id
	// order. A beforeID of 0 starts from the newest; otherwise listing
	// starts at beforeID inclusive, which lets the caller fetch
	// limit+1 rows and reuse the extra row's id as the next cursor.
	ListByChannel(ctx context.Context, channelID uuid.UUID, beforeID int64, limit int) ([]models.Message, error)

	// ListThread returns the direct replies to a parent in creation
	// order.
	ListThread(ctx context.Context, parentID int64) ([]models.Message, error)

	// CountReplies returns the number of direct replies to a parent.
	CountReplies(ctx context.Context, parentID int64) (int, error)

	// Edit replaces the content and stamps edited_at.
	Edit(ctx context.Context, id int64, content string, at time.Time) error

	// SoftDelete stamps deleted_at, keeping the row for thread
	// integrity. Deleting an already-deleted message is a no-op.
	SoftDelete(ctx context.Context, id int64, at time.Time) error

	// SetPinned flips the pin flag; false when the message is unknown.
	SetPinned(ctx context.Context, id int64, pinned bool) (bool, error)

	// ListPinned returns a channel's pinned messages, newest first.
	ListPinned(ctx context.Context, channelID uuid.UUID) ([]models.Message, error)

	// AddReaction inserts a reaction; duplicates on the (message, user,
	// emoji) key are absorbed and reported as false.
	AddReaction(ctx context.Context, r *models.Reaction) (bool, error)

	// RemoveReaction deletes one reaction; false when absent.
	RemoveReaction(ctx context.Context, messageID int64, userID uuid.UUID, emoji string) (bool, error)

	ListReactions(ctx context.Context, messageID int64) ([]models.Reaction, error)
}

// PresenceStore owns ephemeral per-user status.
type PresenceStore interface {
	// Set is a last-write-wins upsert.
	Set(ctx context.Context, p *models.Presence) error

	// GetMany returns entries for the given ids; ids with no stored
	// entry are simply omitted, never defaulted.
	GetMany(ctx context.Context, userIDs []uuid.UUID) ([]models.Presence, error)
}

// CallStore owns call sessions and their rosters.
type CallStore interface {
	// Start inserts the call and its host participant in one
	// transaction. The insert is conditional on no ongoing call
	// existing for the channel (partial unique index); false means a
	// call was already ongoing and nothing was written.
	Start(ctx context.Context, call *models.Call, host *models.CallParticipant) (bool, error)

	// GetByID returns the call. Returns nil, nil if unknown.
	GetByID(ctx context.Context, id uuid.UUID) (*models.Call, error)

	// GetOngoingByChannel returns the channel's ongoing call, or
	// nil, nil when there is none.
	GetOngoingByChannel(ctx context.Context, channelID uuid.UUID) (*models.Call, error)

	// AddParticipant inserts an active participant row, conditional on
	// the call still being ongoing. False means nothing was inserted:
	// either the call has ended or the user already has an active row;
	// the caller disambiguates by re-reading the call.
	AddParticipant(ctx context.Context, p *models.CallParticipant) (bool, error)

	// Leave stamps the participant's left_at and, in the same
	// transaction, ends the call if no active participants remain.
	// Leaves serialize on the call row so concurrent leavers each
	// observe the true remaining count; ending an already-ended call
	// is a no-op. Reports (participantLeft, callEnded).
	Leave(ctx context.Context, callID, userID uuid.UUID, now time.Time) (bool, bool, error)

	// EndAll stamps left_at for every active participant and ends the
	// call through the same zero-participant transition. No-op on an
	// already-ended call; reports whether the call ended now.
	EndAll(ctx context.Context, callID uuid.UUID, now time.Time) (bool, error)

	// SetMedia updates the active participant's mute flags; false when
	// the user has no active row.
	SetMedia(ctx context.Context, callID, userID uuid.UUID, audio, video bool) (bool, error)

	ListParticipants(ctx context.Context, callID uuid.UUID) ([]models.CallParticipant, error)

	// SetArtifacts fills in the non-nil artifact URLs on the call row.
	SetArtifacts(ctx context.Context, callID uuid.UUID, recordingURL, transcriptURL, summaryURL *string) error
}

// UserStore owns the local user-directory replica.
type UserStore interface {
	// Upsert refreshes the replica row from verified token claims.
	Upsert(ctx context.Context, u *models.User) error

	// GetByID returns one user. Returns nil, nil if unknown.
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)

	// GetByIDs returns the known users among ids, keyed by id. Unknown
	// ids are absent from the map.
	GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.User, error)
}
