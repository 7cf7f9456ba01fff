package pagecache

import (
	"context"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/samber/lo"
)

const redisKeyPrefix = "revdel:"

// Redis is a page cache shared between processes.
type Redis struct {
	client      redis.UniversalClient
	expiration  time.Duration
	closeClient func() error
}

// NewRedis wraps client. A zero expiration falls back to 30m. The caller
// keeps ownership of client: Close leaves it open.
func NewRedis(client redis.UniversalClient, expiration time.Duration) *Redis {
	return &Redis{client: client, expiration: defaultIfZero(expiration, 30*time.Minute)}
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, redisKeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, true, nil
}

func (r *Redis) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, redisKeyPrefix+key, value, r.expiration).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r *Redis) Invalidate(ctx context.Context, key string) error {
	return r.Purge(ctx, key)
}

// Purge deletes every key in one round trip.
func (r *Redis) Purge(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	prefixed := lo.Map(keys, func(k string, _ int) string { return redisKeyPrefix + k })
	if err := r.client.Del(ctx, prefixed...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Close closes the client when New opened it.
func (r *Redis) Close() error {
	if r.closeClient == nil {
		return nil
	}
	closeClient := r.closeClient
	r.closeClient = nil
	return closeClient()
}
