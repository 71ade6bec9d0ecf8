package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/habit-tracker/internal/models"
	"github.com/redis/go-redis/v9"
)

// DefaultStatsTTL bounds how long an unused snapshot stays in Redis.
const DefaultStatsTTL = 24 * time.Hour

// statsSnapshot is the JSON document stored under stats:<user>.
type statsSnapshot struct {
	Day        string       `json:"day"`
	Generation int64        `json:"generation"`
	Stats      models.Stats `json:"stats"`
}

// RedisStatsCache keeps one stats snapshot per user. Each user also has a
// generation counter that mutations increment; a snapshot is served only
// while its day and generation both match.
type RedisStatsCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStatsCache creates a stats cache. A non-positive ttl uses DefaultStatsTTL.
func NewRedisStatsCache(client *redis.Client, ttl time.Duration) *RedisStatsCache {
	if ttl <= 0 {
		ttl = DefaultStatsTTL
	}
	return &RedisStatsCache{client: client, ttl: ttl}
}

func statsKey(userID int64) string      { return fmt.Sprintf("stats:%d", userID) }
func generationKey(userID int64) string { return fmt.Sprintf("stats_gen:%d", userID) }

// Load implements habits.StatsCache
func (c *RedisStatsCache) Load(ctx context.Context, userID int64, day models.Date) (models.Stats, int64, bool, error) {
	values, err := c.client.MGet(ctx, generationKey(userID), statsKey(userID)).Result()
	if err != nil {
		return models.Stats{}, 0, false, fmt.Errorf("failed to read stats cache: %w", err)
	}

	var gen int64
	if s, ok := values[0].(string); ok {
		if _, err := fmt.Sscanf(s, "%d", &gen); err != nil {
			return models.Stats{}, 0, false, fmt.Errorf("invalid stats generation %q: %w", s, err)
		}
	}

	raw, ok := values[1].(string)
	if !ok {
		return models.Stats{}, gen, false, nil
	}
	var snap statsSnapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		// A corrupt snapshot is treated as a miss and overwritten on store.
		return models.Stats{}, gen, false, nil
	}
	if snap.Day != day.String() || snap.Generation != gen {
		return models.Stats{}, gen, false, nil
	}
	return snap.Stats, gen, true, nil
}

// Store implements habits.StatsCache. The write is skipped when the
// generation moved on while the stats were being computed.
func (c *RedisStatsCache) Store(ctx context.Context, userID int64, day models.Date, gen int64, stats models.Stats) error {
	data, err := json.Marshal(statsSnapshot{Day: day.String(), Generation: gen, Stats: stats})
	if err != nil {
		return fmt.Errorf("failed to marshal stats snapshot: %w", err)
	}

	genKey := generationKey(userID)
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != gen {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, statsKey(userID), data, c.ttl)
			return nil
		})
		return err
	}, genKey)
	if errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to store stats snapshot: %w", err)
	}
	return nil
}

// Invalidate implements habits.StatsCache
func (c *RedisStatsCache) Invalidate(ctx context.Context, userID int64) error {
	if err := c.client.Incr(ctx, generationKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to bump stats generation: %w", err)
	}
	return nil
}
