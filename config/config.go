// Package config loads memoizer settings from the environment or a config
// file and applies them to diskmemo.Options. The diskmemo package itself
// never reads the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/viper"

	"github.com/unkn0wn-root/diskmemo"
	"github.com/unkn0wn-root/diskmemo/codec"
)

// EnvPrefix is prepended to every variable name.
const EnvPrefix = "DISK_MEMOIZER_"

var ErrInvalid = errors.New("config: invalid")

type Config struct {
	// How many decoded values each process keeps in memory.
	MemoryItems int      `env:"MEMORY_CACHE_ITEMS" envDefault:"0"    mapstructure:"memory_cache_items"`
	MemoryTTL   Duration `env:"MEMORY_TTL"                            mapstructure:"memory_ttl"`

	// "" means $TMPDIR/disk-memoizer.
	CacheDir string `env:"CACHE_DIR" mapstructure:"cache_dir"`
	LockDir  string `env:"LOCK_DIR"  mapstructure:"lock_dir"`

	MaxAge     Duration `env:"MAX_AGE"     mapstructure:"max_age"`
	FlushCache bool     `env:"FLUSH_CACHE" mapstructure:"flush_cache"`

	LockStaleMS int `env:"LOCK_STALE_MS" envDefault:"5000" mapstructure:"lock_stale_ms"`

	GC           bool     `env:"GC"             envDefault:"true" mapstructure:"gc"`
	GCInterval   Duration `env:"GC_INTERVAL"    envDefault:"5m"   mapstructure:"gc_interval"`
	GCLastAccess Duration `env:"GC_LAST_ACCESS" envDefault:"1h"   mapstructure:"gc_last_access"`

	// Codec name, see codec.ByName.
	Type string `env:"TYPE" mapstructure:"type"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info" mapstructure:"log_level"`
	LogFile  string `env:"LOG_FILE"                    mapstructure:"log_file"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		LockStaleMS:  5000,
		GC:           true,
		GCInterval:   Duration(diskmemo.DefaultGCInterval),
		GCLastAccess: Duration(diskmemo.DefaultGCLastAccess),
		LogLevel:     "info",
	}
}

// FromEnv reads DISK_MEMOIZER_* variables.
func FromEnv() (Config, error) {
	cfg, err := env.ParseAsWithOptions[Config](env.Options{Prefix: EnvPrefix})
	if err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads path (any format viper understands) with DISK_MEMOIZER_*
// variables taking precedence. An empty path loads defaults and environment
// only.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(strings.TrimSuffix(EnvPrefix, "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("memory_cache_items", d.MemoryItems)
	v.SetDefault("memory_ttl", "0")
	v.SetDefault("cache_dir", "")
	v.SetDefault("lock_dir", "")
	v.SetDefault("max_age", "0")
	v.SetDefault("flush_cache", false)
	v.SetDefault("lock_stale_ms", d.LockStaleMS)
	v.SetDefault("gc", d.GC)
	v.SetDefault("gc_interval", d.GCInterval.String())
	v.SetDefault("gc_last_access", d.GCLastAccess.String())
	v.SetDefault("type", "")
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_file", "")
}

// Validate checks ranges and names.
func (c Config) Validate() error {
	switch {
	case c.MemoryItems < 0:
		return fmt.Errorf("%w: memory_cache_items must be >= 0", ErrInvalid)
	case c.MemoryTTL < 0:
		return fmt.Errorf("%w: memory_ttl must be >= 0", ErrInvalid)
	case c.MaxAge < 0:
		return fmt.Errorf("%w: max_age must be >= 0", ErrInvalid)
	case c.LockStaleMS < 0:
		return fmt.Errorf("%w: lock_stale_ms must be >= 0", ErrInvalid)
	case c.GCInterval < 0 || c.GCLastAccess < 0:
		return fmt.Errorf("%w: gc durations must be >= 0", ErrInvalid)
	}
	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: log_level %q", ErrInvalid, c.LogLevel)
	}
	switch strings.ToLower(strings.TrimSpace(c.Type)) {
	case "", "none", "raw", "json", "cbor", "msgpack":
	default:
		return fmt.Errorf("%w: type %q", ErrInvalid, c.Type)
	}
	return nil
}

// LockStale is LockStaleMS as a duration.
func (c Config) LockStale() time.Duration {
	return time.Duration(c.LockStaleMS) * time.Millisecond
}

// Apply copies c onto opts. Fields of opts that c leaves at zero keep their
// values. The codec is only resolved from Type when opts has none.
func Apply[A, V any](c Config, opts *diskmemo.Options[A, V]) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.MemoryItems > 0 {
		opts.MemoryItems = c.MemoryItems
	}
	if c.MemoryTTL > 0 {
		opts.MemoryTTL = c.MemoryTTL.DurationValue()
	}
	if c.CacheDir != "" {
		opts.CacheDir = c.CacheDir
	}
	if c.LockDir != "" {
		opts.LockDir = c.LockDir
	}
	if c.MaxAge > 0 {
		opts.MaxAge = c.MaxAge.DurationValue()
	}
	if c.FlushCache {
		opts.ForceFlush = true
	}
	if c.LockStaleMS > 0 {
		opts.LockStale = c.LockStale()
	}

	opts.GC.Enabled = c.GC
	if c.GCInterval > 0 {
		opts.GC.Interval = c.GCInterval.DurationValue()
	}
	if c.GCLastAccess > 0 {
		opts.GC.LastAccess = c.GCLastAccess.DurationValue()
	}

	if opts.Codec == nil && strings.TrimSpace(c.Type) != "" {
		cd, err := codec.ByName[V](c.Type)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		opts.Codec = cd
	}
	return nil
}
