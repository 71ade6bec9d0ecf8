package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/habit-tracker/internal/services/auth"
	"github.com/redis/go-redis/v9"
)

// RedisSessionStore keeps live session ids as session:<id> keys holding the
// user id, expiring with the session.
type RedisSessionStore struct {
	client *redis.Client
}

// NewRedisSessionStore creates a session store
func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{client: client}
}

var _ auth.SessionStore = (*RedisSessionStore)(nil)

func sessionKey(id string) string { return "session:" + id }

// Create implements auth.SessionStore
func (s *RedisSessionStore) Create(ctx context.Context, sessionID string, userID int64, ttl time.Duration) error {
	ok, err := s.client.SetNX(ctx, sessionKey(sessionID), userID, ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	if !ok {
		return fmt.Errorf("session %s already exists", sessionID)
	}
	return nil
}

// Get implements auth.SessionStore
func (s *RedisSessionStore) Get(ctx context.Context, sessionID string) (int64, error) {
	userID, err := s.client.Get(ctx, sessionKey(sessionID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, auth.ErrSessionNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read session: %w", err)
	}
	return userID, nil
}

// Touch implements auth.SessionStore
func (s *RedisSessionStore) Touch(ctx context.Context, sessionID string, ttl time.Duration) error {
	ok, err := s.client.Expire(ctx, sessionKey(sessionID), ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to extend session: %w", err)
	}
	if !ok {
		return auth.ErrSessionNotFound
	}
	return nil
}

// Delete implements auth.SessionStore
func (s *RedisSessionStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, sessionKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
