package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/parley-hq/parley/internal/models"
	"github.com/parley-hq/parley/internal/repository"
	"go.uber.org/zap"
)

const maxPresenceQuery = 100

// Presence tracks ephemeral per-user status. Nothing here is
// historical: one entry per user, last write wins, entries age out on
// their own.
type Presence struct {
	store  repository.PresenceStore
	logger *zap.Logger
	now    func() time.Time
}

func NewPresence(store repository.PresenceStore, logger *zap.Logger) *Presence {
	return &Presence{store: store, logger: logger, now: time.Now}
}

// PresenceView is a presence answer for one requested user. A user with
// no stored entry reads as offline with no last-seen time.
type PresenceView struct {
	UserID     uuid.UUID             `json:"user_id"`
	Status     models.PresenceStatus `json:"status"`
	LastSeenAt *time.Time            `json:"last_seen_at,omitempty"`
}

// Update upserts the caller's status and stamps lastSeenAt.
func (s *Presence) Update(ctx context.Context, actor Actor, status models.PresenceStatus) (*PresenceView, error) {
	if !status.Valid() {
		return nil, BadRequest("invalid presence status")
	}

	p := &models.Presence{UserID: actor.UserID, Status: status, LastSeenAt: s.now()}
	if err := s.store.Set(ctx, p); err != nil {
		return nil, err
	}
	seen := p.LastSeenAt
	return &PresenceView{UserID: p.UserID, Status: p.Status, LastSeenAt: &seen}, nil
}

// Get answers a batch presence query with exactly one view per distinct
// requested id, in request order. Missing entries are reported offline;
// no row is ever created for them.
func (s *Presence) Get(ctx context.Context, userIDs []uuid.UUID) ([]PresenceView, error) {
	if len(userIDs) == 0 {
		return nil, BadRequest("user_ids is required")
	}
	if len(userIDs) > maxPresenceQuery {
		return nil, BadRequest("at most 100 user ids per query")
	}

	distinct := make([]uuid.UUID, 0, len(userIDs))
	seen := make(map[uuid.UUID]bool, len(userIDs))
	for _, id := range userIDs {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		distinct = append(distinct, id)
	}

	stored, err := s.store.GetMany(ctx, distinct)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]models.Presence, len(stored))
	for _, p := range stored {
		byID[p.UserID] = p
	}

	views := make([]PresenceView, 0, len(distinct))
	for _, id := range distinct {
		if p, ok := byID[id]; ok {
			seenAt := p.LastSeenAt
			views = append(views, PresenceView{UserID: id, Status: p.Status, LastSeenAt: &seenAt})
			continue
		}
		views = append(views, PresenceView{UserID: id, Status: models.PresenceOffline})
	}
	return views, nil
}
