package pagecache

import (
	"context"
	"errors"
	"time"

	cachelib "github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	gocache_store "github.com/eko/gocache/store/go_cache/v4"
	"github.com/hashicorp/go-multierror"
	gocache "github.com/patrickmn/go-cache"
)

// Memory is an in-process page cache.
type Memory struct {
	cache cachelib.SetterCacheInterface[string]
}

// NewMemory creates a memory cache. Zero durations fall back to 5m
// expiration and a 10m cleanup interval.
func NewMemory(expiration, cleanupInterval time.Duration) *Memory {
	expiration = defaultIfZero(expiration, 5*time.Minute)
	cleanupInterval = defaultIfZero(cleanupInterval, 10*time.Minute)

	client := gocache.New(expiration, cleanupInterval)
	s := gocache_store.NewGoCache(client, store.WithExpiration(expiration))
	return &Memory{cache: cachelib.New[string](s)}
}

func (m *Memory) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := m.cache.Get(ctx, key)
	if err != nil {
		var nf *store.NotFound
		if errors.As(err, &nf) {
			return "", false, nil
		}
		return "", false, err
	}
	return v, true, nil
}

func (m *Memory) Set(ctx context.Context, key, value string) error {
	return m.cache.Set(ctx, key, value)
}

func (m *Memory) Invalidate(ctx context.Context, key string) error {
	return m.cache.Delete(ctx, key)
}

func (m *Memory) Purge(ctx context.Context, keys ...string) error {
	var merr *multierror.Error
	for _, k := range keys {
		if err := m.cache.Delete(ctx, k); err != nil {
			merr = multierror.Append(merr, err)
		}
	}
	return merr.ErrorOrNil()
}

// Close is a no-op for the in-process cache.
func (m *Memory) Close() error { return nil }
