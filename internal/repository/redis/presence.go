package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/parley-hq/parley/internal/models"
	"github.com/redis/go-redis/v9"
)

// DefaultTTL is how long a presence entry survives without a refresh.
// After it lapses the user simply reads as offline.
const DefaultTTL = 24 * time.Hour

// PresenceStore keeps per-user status in Redis. Presence is ephemeral
// and shared across instances, so it never touches Postgres: a key per
// user with a TTL, last write wins.
type PresenceStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewPresenceStore(client *redis.Client, ttl time.Duration) *PresenceStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &PresenceStore{client: client, ttl: ttl}
}

type presenceEntry struct {
	Status     models.PresenceStatus `json:"status"`
	LastSeenAt time.Time             `json:"last_seen_at"`
}

func presenceKey(userID uuid.UUID) string {
	return "presence:" + userID.String()
}

func (s *PresenceStore) Set(ctx context.Context, p *models.Presence) error {
	payload, err := json.Marshal(presenceEntry{Status: p.Status, LastSeenAt: p.LastSeenAt})
	if err != nil {
		return fmt.Errorf("encode presence: %w", err)
	}
	if err := s.client.Set(ctx, presenceKey(p.UserID), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("set presence: %w", err)
	}
	return nil
}

func (s *PresenceStore) GetMany(ctx context.Context, userIDs []uuid.UUID) ([]models.Presence, error) {
	if len(userIDs) == 0 {
		return []models.Presence{}, nil
	}

	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = presenceKey(id)
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("get presence: %w", err)
	}

	entries := make([]models.Presence, 0, len(userIDs))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// nil for expired or never-set keys; the caller defaults
			// absent users to offline.
			continue
		}
		var e presenceEntry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			continue
		}
		entries = append(entries, models.Presence{
			UserID:     userIDs[i],
			Status:     e.Status,
			LastSeenAt: e.LastSeenAt,
		})
	}
	return entries, nil
}
