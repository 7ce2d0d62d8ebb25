package repository

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/deskline/helpdesk/internal/domain"
)

// TypingRepository stores ephemeral typing indicators, one per (ticket, user).
type TypingRepository interface {
	// Set writes the indicator. If the same user is already typing, the
	// original StartedAt is kept so arrival order stays stable.
	Set(ctx context.Context, indicator domain.TypingIndicator) error
	// Clear removes the user's indicator. Clearing a missing entry is not an error.
	Clear(ctx context.Context, ticketID, userID string) error
	// List returns the indicators live at now, oldest arrival first, and
	// prunes the expired ones it finds.
	List(ctx context.Context, ticketID string, now time.Time) ([]domain.TypingIndicator, error)
}

type redisTypingRepository struct {
	client *redis.Client
}

// NewTypingRepository returns a Redis-backed implementation. Each ticket is
// one hash keyed by user id.
func NewTypingRepository(client *redis.Client) TypingRepository {
	return &redisTypingRepository{client: client}
}

func typingKey(ticketID string) string {
	return "typing:" + ticketID
}

func (r *redisTypingRepository) Set(ctx context.Context, indicator domain.TypingIndicator) error {
	key := typingKey(indicator.TicketID)

	raw, err := r.client.HGet(ctx, key, indicator.UserID).Result()
	switch {
	case err == nil:
		var existing domain.TypingIndicator
		if json.Unmarshal([]byte(raw), &existing) == nil && existing.Active(indicator.StartedAt) {
			indicator.StartedAt = existing.StartedAt
		}
	case err != redis.Nil:
		return err
	}

	payload, err := json.Marshal(indicator)
	if err != nil {
		return err
	}
	// Every writer uses the same TTL, so the newest write carries the
	// latest expiry and can own the key deadline.
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, indicator.UserID, payload)
		pipe.PExpireAt(ctx, key, indicator.ExpiresAt)
		return nil
	})
	return err
}

func (r *redisTypingRepository) Clear(ctx context.Context, ticketID, userID string) error {
	return r.client.HDel(ctx, typingKey(ticketID), userID).Err()
}

func (r *redisTypingRepository) List(ctx context.Context, ticketID string, now time.Time) ([]domain.TypingIndicator, error) {
	key := typingKey(ticketID)
	entries, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, err
	}

	active := make([]domain.TypingIndicator, 0, len(entries))
	var stale []string
	for userID, raw := range entries {
		var indicator domain.TypingIndicator
		if err := json.Unmarshal([]byte(raw), &indicator); err != nil || !indicator.Active(now) {
			stale = append(stale, userID)
			continue
		}
		active = append(active, indicator)
	}
	if len(stale) > 0 {
		if err := r.client.HDel(ctx, key, stale...).Err(); err != nil {
			return nil, err
		}
	}

	sort.Slice(active, func(i, j int) bool {
		if active[i].StartedAt.Equal(active[j].StartedAt) {
			return active[i].UserID < active[j].UserID
		}
		return active[i].StartedAt.Before(active[j].StartedAt)
	})
	return active, nil
}
