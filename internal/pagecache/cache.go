// Package pagecache holds rendered page and file output that a visibility
// change must invalidate.
//
// Two backends are provided: an in-process cache on eko/gocache over
// patrickmn/go-cache, and a shared cache on Redis for deployments where
// several processes render pages.
package pagecache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/roach88/revdel/internal/config"
	"github.com/roach88/revdel/internal/log"
)

// Cache is a page cache backend.
//
// The redaction engine only drops entries (Invalidate, Purge). Get and Set
// belong to the page and file renderer that fills the cache, which lives
// outside this module; they are kept on the interface so every backend
// offers the full read-through surface that renderer needs.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Invalidate(ctx context.Context, key string) error
	Purge(ctx context.Context, keys ...string) error

	// Close releases connections the cache opened itself.
	Close() error
}

// PageKey is the cache key of a page's rendered output.
func PageKey(namespace int, title string) string {
	return "page:" + strconv.Itoa(namespace) + ":" + title
}

// FileKey is the cache key of a file served from the public zone.
func FileKey(path string) string {
	return "file:" + path
}

// New builds the cache selected by cfg.Mode.
func New(ctx context.Context, cfg config.CacheConfig) (Cache, error) {
	switch cfg.Mode {
	case "memory":
		log.Debug(ctx, "using memory page cache")
		return NewMemory(cfg.Expiration, cfg.CleanupInterval), nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to ping redis: %w", err)
		}
		log.Debug(ctx, "using redis page cache", log.String("addr", cfg.Redis.Addr))
		r := NewRedis(client, cfg.Expiration)
		r.closeClient = client.Close
		return r, nil
	case "none", "":
		return Noop{}, nil
	default:
		return nil, fmt.Errorf("unknown cache mode %q", cfg.Mode)
	}
}

func defaultIfZero(d, def time.Duration) time.Duration {
	if d == 0 {
		return def
	}
	return d
}

// Noop caches nothing.
type Noop struct{}

func (Noop) Get(context.Context, string) (string, bool, error) { return "", false, nil }
func (Noop) Set(context.Context, string, string) error          { return nil }
func (Noop) Invalidate(context.Context, string) error           { return nil }
func (Noop) Purge(context.Context, ...string) error             { return nil }
func (Noop) Close() error                                       { return nil }
