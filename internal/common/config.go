package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration.
type Config struct {
	Environment string        `toml:"environment"` // "development" or "production"
	Storage     StorageConfig `toml:"storage"`
	Queue       QueueConfig   `toml:"queue"`
	Logging     LoggingConfig `toml:"logging"`
}

// StorageConfig groups the storage backends used by the service.
type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration.
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

// QueueConfig holds the [queue] settings. The sweeper reads SweepInterval
// and Prefixes; the other fields are loaded and overridable but nothing in
// this module reads them (the queuecore procedures take their settings from
// Opts and the queue's meta hash).
type QueueConfig struct {
	DefaultAttempts  int      `toml:"default_attempts"`   // default attempt count
	LockDuration     string   `toml:"lock_duration"`      // e.g. "30s" - default job lock TTL
	MetricsRingSlots int      `toml:"metrics_ring_slots"` // number of per-minute buckets kept (spec §4.6)
	SweepInterval    string   `toml:"sweep_interval"`     // cron-equivalent poll period for the delayed-promotion sweep
	EventStreamCap   int64    `toml:"event_stream_cap"`   // default MAXLEN for XADD trim-before-emit (spec §4.5)
	Prefixes         []string `toml:"prefixes"`           // queue prefixes the sweeper promotes delayed jobs for
}

// LoggingConfig controls arbor's writer set.
type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // default: "15:04:05.000"
}

// NewDefaultConfig returns the baseline configuration before any file or
// environment overrides are applied.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path:           "./data/queuecore.db",
				ResetOnStartup: false,
			},
		},
		Queue: QueueConfig{
			DefaultAttempts:  1,
			LockDuration:     "30s",
			MetricsRingSlots: 60,
			SweepInterval:    "5s",
			EventStreamCap:   10000,
			Prefixes:         []string{"default"},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout"},
			TimeFormat: "15:04:05.000",
		},
	}
}

// LoadFromFile loads configuration with priority: default -> file -> env.
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple files, later files
// overriding earlier ones, then applies environment variable overrides.
// Example: LoadFromFiles("base.toml", "override.toml").
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies QUEUECORE_*-prefixed environment variable
// overrides to config, taking priority over file and default values.
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("QUEUECORE_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	if path := os.Getenv("QUEUECORE_STORAGE_BADGER_PATH"); path != "" {
		config.Storage.Badger.Path = path
	}
	if reset := os.Getenv("QUEUECORE_STORAGE_BADGER_RESET_ON_STARTUP"); reset != "" {
		if r, err := strconv.ParseBool(reset); err == nil {
			config.Storage.Badger.ResetOnStartup = r
		}
	}

	if attempts := os.Getenv("QUEUECORE_QUEUE_DEFAULT_ATTEMPTS"); attempts != "" {
		if a, err := strconv.Atoi(attempts); err == nil {
			config.Queue.DefaultAttempts = a
		}
	}
	if lockDuration := os.Getenv("QUEUECORE_QUEUE_LOCK_DURATION"); lockDuration != "" {
		config.Queue.LockDuration = lockDuration
	}
	if slots := os.Getenv("QUEUECORE_QUEUE_METRICS_RING_SLOTS"); slots != "" {
		if s, err := strconv.Atoi(slots); err == nil {
			config.Queue.MetricsRingSlots = s
		}
	}
	if interval := os.Getenv("QUEUECORE_QUEUE_SWEEP_INTERVAL"); interval != "" {
		config.Queue.SweepInterval = interval
	}
	if cap := os.Getenv("QUEUECORE_QUEUE_EVENT_STREAM_CAP"); cap != "" {
		if c, err := strconv.ParseInt(cap, 10, 64); err == nil {
			config.Queue.EventStreamCap = c
		}
	}
	if prefixes := os.Getenv("QUEUECORE_QUEUE_PREFIXES"); prefixes != "" {
		config.Queue.Prefixes = strings.Split(prefixes, ",")
	}

	if level := os.Getenv("QUEUECORE_LOGGING_LEVEL"); level != "" {
		config.Logging.Level = level
	}
}

// LockDurationOrDefault parses Queue.LockDuration, falling back to 30s on a
// malformed value rather than failing a procedure call over a config typo.
func (c *Config) LockDurationOrDefault() time.Duration {
	d, err := time.ParseDuration(c.Queue.LockDuration)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// SweepIntervalOrDefault parses Queue.SweepInterval the same way.
func (c *Config) SweepIntervalOrDefault() time.Duration {
	d, err := time.ParseDuration(c.Queue.SweepInterval)
	if err != nil || d <= 0 {
		return 5 * time.Second
	}
	return d
}

// IsProduction reports whether the service is configured for production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
