package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"libripal/internal/catalog/models"
)

const redisKeyPrefix = "catalog:search:"

// Redis backs the search cache with a shared Redis instance so multiple
// server instances share hits. Values are JSON-encoded item slices with the
// TTL enforced by Redis itself.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedis creates a Redis-backed search cache.
func NewRedis(client *redis.Client, ttl time.Duration, logger *slog.Logger) *Redis {
	return &Redis{client: client, ttl: ttl, logger: logger}
}

// Get implements Cache. Any Redis error is treated as a miss; search never
// fails because the cache does.
func (r *Redis) Get(ctx context.Context, key string) ([]models.Item, bool) {
	raw, err := r.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		r.logger.WarnContext(ctx, "redis cache read failed", "key", key, "error", err)
		return nil, false
	}

	var items []models.Item
	if err := json.Unmarshal(raw, &items); err != nil {
		r.logger.WarnContext(ctx, "redis cache entry corrupt", "key", key, "error", err)
		return nil, false
	}
	return items, true
}

// Put implements Cache.
func (r *Redis) Put(ctx context.Context, key string, items []models.Item) error {
	raw, err := json.Marshal(items)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, redisKeyPrefix+key, raw, r.ttl).Err()
}
