// Package config loads statement cache settings from YAML and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/krisalay/statement-cache/expiration"
	"github.com/krisalay/statement-cache/logging"
	"github.com/krisalay/statement-cache/slot"
	"github.com/krisalay/statement-cache/writepolicy"
)

// Environment variables that override file settings.
const (
	EnvDSN         = "STMTCACHE_DSN"
	EnvCapacity    = "STMTCACHE_CAPACITY"
	EnvTTL         = "STMTCACHE_TTL"
	EnvReadThrough = "STMTCACHE_READ_THROUGH"
	EnvLogLevel    = "STMTCACHE_LOG_LEVEL"
)

// Defaults.
const (
	DefaultDriver      = "sqlite"
	DefaultDSN         = "file:stmtcache.db"
	DefaultCapacity    = 100
	DefaultTTL         = 60 * time.Second
	DefaultBuffer      = 1024
	DefaultJournalSize = 1024
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the full configuration file.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Cache     CacheConfig     `yaml:"cache"`
	Mutations MutationsConfig `yaml:"mutations"`
	Logging   logging.Config  `yaml:"logging"`
}

// DatabaseConfig selects the database/sql driver and data source.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// CacheConfig sizes the statement cache.
type CacheConfig struct {
	Capacity      int      `yaml:"capacity"`
	TTL           Duration `yaml:"ttl"`
	Indexer       string   `yaml:"indexer"`
	Expiration    string   `yaml:"expiration"`
	MaxEntryBytes int      `yaml:"max_entry_bytes"`

	// ReadThrough makes FetchAll consult the cache before executing a read.
	ReadThrough bool `yaml:"read_through"`
}

// MutationsConfig selects how executed mutations are remembered.
type MutationsConfig struct {
	Mode        string `yaml:"mode"`
	Buffer      int    `yaml:"buffer"`
	JournalSize int    `yaml:"journal_size"`
}

// Duration accepts either a Go duration string ("90s", "2m") or whole seconds (60).
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := ParseDuration(value.Value)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// ParseDuration parses "60", "60s" or "1m".
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if secs, err := strconv.Atoi(s); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: expected seconds or a duration like 60s", s)
	}
	return d, nil
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Database: DatabaseConfig{
			Driver: DefaultDriver,
			DSN:    DefaultDSN,
		},
		Cache: CacheConfig{
			Capacity:   DefaultCapacity,
			TTL:        Duration(DefaultTTL),
			Indexer:    slot.IndexerDJB2,
			Expiration: string(expiration.ModeFixed),
		},
		Mutations: MutationsConfig{
			Mode:        string(writepolicy.ModeCache),
			Buffer:      DefaultBuffer,
			JournalSize: DefaultJournalSize,
		},
		Logging: logging.Config{
			Level:  "info",
			Format: logging.FormatConsole,
		},
	}
}

/*
Load builds the configuration in three layers:
1. Defaults
2. The YAML file at path, if path is not empty
3. Environment overrides

The result is validated before it is returned.
*/
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvDSN); ok && v != "" {
		c.Database.DSN = v
	}
	if v, ok := lookup(EnvCapacity); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidConfig, EnvCapacity, err)
		}
		c.Cache.Capacity = n
	}
	if v, ok := lookup(EnvTTL); ok && v != "" {
		d, err := ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidConfig, EnvTTL, err)
		}
		c.Cache.TTL = Duration(d)
	}
	if v, ok := lookup(EnvReadThrough); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidConfig, EnvReadThrough, err)
		}
		c.Cache.ReadThrough = b
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Logging.Level = v
	}
	return nil
}

// Validate checks ranges and enum values.
func (c Config) Validate() error {
	if c.Database.Driver == "" {
		return fmt.Errorf("%w: database.driver is empty", ErrInvalidConfig)
	}
	if c.Cache.Capacity <= 0 {
		return fmt.Errorf("%w: cache.capacity must be positive, got %d", ErrInvalidConfig, c.Cache.Capacity)
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("%w: cache.ttl must be positive, got %s", ErrInvalidConfig, time.Duration(c.Cache.TTL))
	}
	if c.Cache.MaxEntryBytes < 0 {
		return fmt.Errorf("%w: cache.max_entry_bytes cannot be negative", ErrInvalidConfig)
	}
	if _, err := slot.NewIndexer(c.Cache.Indexer); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if _, err := expiration.New(expiration.Mode(c.Cache.Expiration), time.Duration(c.Cache.TTL)); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	switch writepolicy.Mode(c.Mutations.Mode) {
	case writepolicy.ModeCache, writepolicy.ModeJournal, writepolicy.ModeNone, "":
	default:
		return fmt.Errorf("%w: unknown mutations.mode %q", ErrInvalidConfig, c.Mutations.Mode)
	}
	return nil
}
