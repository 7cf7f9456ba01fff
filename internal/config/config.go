// Package config loads revdel settings from an optional YAML file and
// REVDEL_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/viper"

	"github.com/roach88/revdel/internal/log"
)

// Config is the full runtime configuration.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Events   EventsConfig   `mapstructure:"events"`
	Log      log.Config     `mapstructure:"log"`
}

// DatabaseConfig selects the SQL driver and data source.
type DatabaseConfig struct {
	// Driver is one of sqlite3, sqlite, mysql, pgx.
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// StorageConfig locates the file zones.
type StorageConfig struct {
	// Backend is "os" (files under Root) or "memory".
	Backend    string `mapstructure:"backend"`
	Root       string `mapstructure:"root"`
	PublicDir  string `mapstructure:"public_dir"`
	DeletedDir string `mapstructure:"deleted_dir"`
}

// CacheConfig selects the page cache implementation.
type CacheConfig struct {
	// Mode is "memory", "redis" or "none".
	Mode            string        `mapstructure:"mode"`
	Expiration      time.Duration `mapstructure:"expiration"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	Redis           RedisConfig   `mapstructure:"redis"`
}

// EventsConfig selects where visibility changes are announced.
type EventsConfig struct {
	// Mode is "memory" (this process only) or "redis".
	Mode    string      `mapstructure:"mode"`
	Channel string      `mapstructure:"channel"`
	Redis   RedisConfig `mapstructure:"redis"`
}

// RedisConfig addresses the shared cache.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

var (
	validDrivers  = []string{"sqlite3", "sqlite", "mysql", "pgx"}
	validBackends = []string{"os", "memory"}
	validModes    = []string{"memory", "redis", "none"}
	validEvents   = []string{"memory", "redis"}
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.dsn", "revdel.db")
	v.SetDefault("storage.backend", "os")
	v.SetDefault("storage.root", "files")
	v.SetDefault("storage.public_dir", "public")
	v.SetDefault("storage.deleted_dir", "deleted")
	v.SetDefault("cache.mode", "memory")
	v.SetDefault("cache.expiration", 5*time.Minute)
	v.SetDefault("cache.cleanup_interval", 10*time.Minute)
	v.SetDefault("cache.redis.addr", "127.0.0.1:6379")
	v.SetDefault("events.mode", "memory")
	v.SetDefault("events.channel", "revdel:visibility")
	v.SetDefault("events.redis.addr", "127.0.0.1:6379")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
}

// Load reads path (if non-empty) and the environment, then validates.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("REVDEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects unknown drivers, backends and cache or event modes.
func (c Config) Validate() error {
	var errs []error
	if !lo.Contains(validDrivers, c.Database.Driver) {
		errs = append(errs, fmt.Errorf("database.driver %q: must be one of %v", c.Database.Driver, validDrivers))
	}
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database.dsn is required"))
	}
	if !lo.Contains(validBackends, c.Storage.Backend) {
		errs = append(errs, fmt.Errorf("storage.backend %q: must be one of %v", c.Storage.Backend, validBackends))
	}
	if c.Storage.PublicDir == c.Storage.DeletedDir {
		errs = append(errs, errors.New("storage.public_dir and storage.deleted_dir must differ"))
	}
	if !lo.Contains(validModes, c.Cache.Mode) {
		errs = append(errs, fmt.Errorf("cache.mode %q: must be one of %v", c.Cache.Mode, validModes))
	}
	if c.Cache.Mode == "redis" && c.Cache.Redis.Addr == "" {
		errs = append(errs, errors.New("cache.redis.addr is required for redis mode"))
	}
	if !lo.Contains(validEvents, c.Events.Mode) {
		errs = append(errs, fmt.Errorf("events.mode %q: must be one of %v", c.Events.Mode, validEvents))
	}
	if c.Events.Mode == "redis" && (c.Events.Redis.Addr == "" || c.Events.Channel == "") {
		errs = append(errs, errors.New("events.redis.addr and events.channel are required for redis mode"))
	}
	return errors.Join(errs...)
}
