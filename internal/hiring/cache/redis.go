package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gartstein/hiring/internal/hiring/models"
	"github.com/redis/go-redis/v9"
)

const DefaultRedisKey = "hiring:jobs"

type redisEntry struct {
	Version string          `json:"version"`
	Jobs    json.RawMessage `json:"jobs"`
}

// RedisCache shares one cached collection between server instances.
type RedisCache struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func NewRedisClient(addr, pass string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: pass,
		DB:       db,
	})
}

// NewRedisCache stores the collection under key. A zero ttl keeps it until
// cleared.
func NewRedisCache(client *redis.Client, key string, ttl time.Duration) *RedisCache {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisCache{client: client, key: key, ttl: ttl}
}

func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisCache) Load(ctx context.Context) (models.Collection, bool, error) {
	raw, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.Collection{}, false, nil
	}
	if err != nil {
		return models.Collection{}, false, fmt.Errorf("redis get %s: %w", r.key, err)
	}

	var entry redisEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return models.Collection{}, false, fmt.Errorf("redis entry %s is corrupt: %w", r.key, err)
	}
	jobs, err := models.Decode(entry.Jobs)
	if err != nil {
		return models.Collection{}, false, fmt.Errorf("redis entry %s is corrupt: %w", r.key, err)
	}
	return models.Collection{Jobs: jobs, Version: entry.Version}, true, nil
}

func (r *RedisCache) Store(ctx context.Context, col models.Collection) error {
	data, err := models.Encode(col.Jobs)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(redisEntry{Version: col.Version, Jobs: data})
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key, raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", r.key, err)
	}
	return nil
}

func (r *RedisCache) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", r.key, err)
	}
	return nil
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}
