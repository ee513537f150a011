// Package config provides configuration loading for the sync service.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds everything the sync service needs. Loaded from the
// environment with an optional YAML overlay; validated before any run
// starts, so bad pool bounds or a missing DSN fail at construction.
type Config struct {
	// Sink settings
	DatabaseURL    string        `yaml:"database_url"`
	PoolMinConns   int           `yaml:"pool_min_conns"`
	PoolMaxConns   int           `yaml:"pool_max_conns"`
	AcquireTimeout time.Duration `yaml:"acquire_timeout"`

	// Sync behavior
	LookbackDays   int           `yaml:"lookback_days"`
	SafetyMargin   time.Duration `yaml:"safety_margin"`
	ChunkSize      int           `yaml:"chunk_size"`
	FetchLimit     int           `yaml:"fetch_limit"`
	MaxRetries     int           `yaml:"max_retries"`
	RetryBaseDelay time.Duration `yaml:"retry_base_delay"`

	// Source settings
	Source SourceConfig `yaml:"source"`
}

// SourceConfig holds the remote export API settings.
type SourceConfig struct {
	BaseURL   string  `yaml:"base_url"`
	APIToken  string  `yaml:"api_token"`
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		DatabaseURL:    getEnv("SYNC_DATABASE_URL", os.Getenv("DATABASE_URL")),
		PoolMinConns:   getEnvInt("SYNC_POOL_MIN_CONNS", 2),
		PoolMaxConns:   getEnvInt("SYNC_POOL_MAX_CONNS", 10),
		AcquireTimeout: getEnvDuration("SYNC_ACQUIRE_TIMEOUT", 10*time.Second),
		LookbackDays:   getEnvInt("SYNC_LOOKBACK_DAYS", 30),
		SafetyMargin:   getEnvDuration("SYNC_SAFETY_MARGIN", time.Hour),
		ChunkSize:      getEnvInt("SYNC_CHUNK_SIZE", 1000),
		FetchLimit:     getEnvInt("SYNC_FETCH_LIMIT", 0),
		MaxRetries:     getEnvInt("SYNC_MAX_RETRIES", 3),
		RetryBaseDelay: getEnvDuration("SYNC_RETRY_BASE_DELAY", 100*time.Millisecond),
		Source: SourceConfig{
			BaseURL:   getEnv("SYNC_SOURCE_URL", ""),
			APIToken:  getEnv("SYNC_SOURCE_TOKEN", ""),
			RateLimit: getEnvFloat("SYNC_SOURCE_RATE_LIMIT", 10.0),
			RateBurst: getEnvInt("SYNC_SOURCE_RATE_BURST", 5),
		},
	}
}

// LoadFile overlays values from a YAML file onto the env-derived config.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// Validate rejects configurations no run should start with.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("SYNC_DATABASE_URL is required")
	}
	if c.PoolMinConns < 1 {
		return fmt.Errorf("pool min conns must be >= 1, got %d", c.PoolMinConns)
	}
	if c.PoolMaxConns < c.PoolMinConns {
		return fmt.Errorf("pool max conns (%d) must be >= min conns (%d)", c.PoolMaxConns, c.PoolMinConns)
	}
	if c.LookbackDays <= 0 {
		return fmt.Errorf("lookback days must be positive, got %d", c.LookbackDays)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.ChunkSize)
	}
	if c.Source.BaseURL == "" {
		return fmt.Errorf("SYNC_SOURCE_URL is required")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
