package repository

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/deskline/helpdesk/internal/domain"
)

const presenceKey = "presence"

// PresenceRepository stores each agent's availability.
type PresenceRepository interface {
	Set(ctx context.Context, userID string, status domain.PresenceStatus) error
	// Get returns PresenceOffline for agents that never reported a status.
	Get(ctx context.Context, userID string) (domain.PresenceStatus, error)
}

type redisPresenceRepository struct {
	client *redis.Client
}

// NewPresenceRepository returns a Redis-backed implementation.
func NewPresenceRepository(client *redis.Client) PresenceRepository {
	return &redisPresenceRepository{client: client}
}

func (r *redisPresenceRepository) Set(ctx context.Context, userID string, status domain.PresenceStatus) error {
	return r.client.HSet(ctx, presenceKey, userID, string(status)).Err()
}

func (r *redisPresenceRepository) Get(ctx context.Context, userID string) (domain.PresenceStatus, error) {
	raw, err := r.client.HGet(ctx, presenceKey, userID).Result()
	if err == redis.Nil {
		return domain.PresenceOffline, nil
	}
	if err != nil {
		return "", err
	}
	status := domain.PresenceStatus(raw)
	if !status.Valid() {
		return domain.PresenceOffline, nil
	}
	return status, nil
}
