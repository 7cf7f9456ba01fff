package cli

import (
	"context"
	"errors"
	"fmt"

	redis "github.com/redis/go-redis/v9"

	"github.com/roach88/revdel/internal/config"
	"github.com/roach88/revdel/internal/events"
	"github.com/roach88/revdel/internal/filestore"
	"github.com/roach88/revdel/internal/log"
	"github.com/roach88/revdel/internal/pagecache"
	"github.com/roach88/revdel/internal/revdel"
	"github.com/roach88/revdel/internal/store"
)

// env is what a command needs to reach the wiki: the database, the file
// zones, the page cache and the visibility change notifier.
type env struct {
	cfg      config.Config
	store    *store.Store
	repo     *filestore.Repo
	cache    pagecache.Cache
	notifier events.Notifier[revdel.VisibilityChanged]
	closers  []func() error
}

// openEnv loads the configuration and connects to every backend it names.
// Failures are command errors: nothing was attempted yet.
func openEnv(ctx context.Context, opts *RootOptions) (*env, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if err := log.Setup(cfg.Log); err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to set up logging", err)
	}
	if opts.Verbose {
		_ = log.SetLevel("debug")
	}

	e := &env{cfg: cfg}

	log.Debug(ctx, "opening database", log.String("driver", cfg.Database.Driver))
	st, err := store.OpenDriver(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	e.store = st
	e.closers = append(e.closers, st.Close)

	e.repo = newRepo(cfg.Storage)

	cache, err := pagecache.New(ctx, cfg.Cache)
	if err != nil {
		e.Close()
		return nil, WrapExitError(ExitCommandError, "failed to open page cache", err)
	}
	e.cache = cache
	e.closers = append(e.closers, cache.Close)

	notifier, closeNotifier, err := newNotifier(ctx, cfg.Events)
	if err != nil {
		e.Close()
		return nil, WrapExitError(ExitCommandError, "failed to open event channel", err)
	}
	e.notifier = notifier
	if closeNotifier != nil {
		e.closers = append(e.closers, closeNotifier)
	}

	return e, nil
}

// Close releases every backend, reporting the first failures together.
func (e *env) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	e.closers = nil
	return errors.Join(errs...)
}

func newRepo(cfg config.StorageConfig) *filestore.Repo {
	if cfg.Backend == "memory" {
		return filestore.NewMemory(cfg.PublicDir, cfg.DeletedDir)
	}
	return filestore.NewOS(cfg.Root, cfg.PublicDir, cfg.DeletedDir)
}

func newNotifier(ctx context.Context, cfg config.EventsConfig) (events.Notifier[revdel.VisibilityChanged], func() error, error) {
	if cfg.Mode != "redis" {
		return events.NewMemory[revdel.VisibilityChanged](events.MemoryOptions{}), nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	n, err := events.NewRedis[revdel.VisibilityChanged](client, cfg.Channel, events.MemoryOptions{})
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	log.Debug(ctx, "publishing visibility changes on redis", log.String("channel", cfg.Channel))
	return n, client.Close, nil
}
