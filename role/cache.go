package role

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "role:"

// RedisCache stores resolved roles under role:<uid> with a TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects using a redis:// URL and verifies it with a ping.
func NewRedisCache(ctx context.Context, url string, ttl time.Duration) (*RedisCache, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	client := redis.NewClient(opt)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return &RedisCache{client: client, ttl: ttl}, nil
}

var _ Cache = (*RedisCache)(nil)

func (c *RedisCache) Get(ctx context.Context, userID string) (Role, bool, error) {
	v, err := c.client.Get(ctx, cacheKeyPrefix+userID).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return Parse(v), true, nil
}

func (c *RedisCache) Set(ctx context.Context, userID string, r Role) error {
	return c.client.Set(ctx, cacheKeyPrefix+userID, string(r), c.ttl).Err()
}

// Invalidate drops the cached role so the next lookup reads the store.
func (c *RedisCache) Invalidate(ctx context.Context, userID string) error {
	return c.client.Del(ctx, cacheKeyPrefix+userID).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
