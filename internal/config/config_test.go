package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		DatabaseURL:    "postgres://localhost/sync",
		PoolMinConns:   2,
		PoolMaxConns:   10,
		AcquireTimeout: 10 * time.Second,
		LookbackDays:   30,
		SafetyMargin:   time.Hour,
		ChunkSize:      1000,
		MaxRetries:     3,
		RetryBaseDelay: 100 * time.Millisecond,
		Source:         SourceConfig{BaseURL: "https://source.example.com"},
	}
}

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"SYNC_DATABASE_URL", "DATABASE_URL", "SYNC_POOL_MIN_CONNS", "SYNC_POOL_MAX_CONNS", "SYNC_CHUNK_SIZE"} {
		t.Setenv(key, "")
	}
	cfg := Load()
	if cfg.PoolMinConns != 2 || cfg.PoolMaxConns != 10 {
		t.Errorf("pool defaults wrong: min=%d max=%d", cfg.PoolMinConns, cfg.PoolMaxConns)
	}
	if cfg.LookbackDays != 30 {
		t.Errorf("lookback default %d, want 30", cfg.LookbackDays)
	}
	if cfg.SafetyMargin != time.Hour {
		t.Errorf("safety margin default %v, want 1h", cfg.SafetyMargin)
	}
	if cfg.ChunkSize != 1000 {
		t.Errorf("chunk size default %d, want 1000", cfg.ChunkSize)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("max retries default %d, want 3", cfg.MaxRetries)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SYNC_POOL_MAX_CONNS", "25")
	t.Setenv("SYNC_SAFETY_MARGIN", "30m")
	t.Setenv("SYNC_SOURCE_RATE_LIMIT", "2.5")

	cfg := Load()
	if cfg.PoolMaxConns != 25 {
		t.Errorf("max conns %d, want 25", cfg.PoolMaxConns)
	}
	if cfg.SafetyMargin != 30*time.Minute {
		t.Errorf("safety margin %v, want 30m", cfg.SafetyMargin)
	}
	if cfg.Source.RateLimit != 2.5 {
		t.Errorf("rate limit %v, want 2.5", cfg.Source.RateLimit)
	}
}

func TestValidate(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing dsn", func(c *Config) { c.DatabaseURL = "" }},
		{"zero min conns", func(c *Config) { c.PoolMinConns = 0 }},
		{"max below min", func(c *Config) { c.PoolMaxConns = 1; c.PoolMinConns = 5 }},
		{"zero lookback", func(c *Config) { c.LookbackDays = 0 }},
		{"zero chunk size", func(c *Config) { c.ChunkSize = 0 }},
		{"missing source url", func(c *Config) { c.Source.BaseURL = "" }},
	}
	for _, tc := range cases {
		cfg := validConfig()
		tc.mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}
}

func TestLoadFile_Overlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync.yaml")
	content := []byte("pool_max_conns: 7\nchunk_size: 500\nsource:\n  base_url: https://override.example.com\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	cfg := validConfig()
	if err := cfg.LoadFile(path); err != nil {
		t.Fatalf("load file: %v", err)
	}
	if cfg.PoolMaxConns != 7 {
		t.Errorf("max conns %d, want 7", cfg.PoolMaxConns)
	}
	if cfg.ChunkSize != 500 {
		t.Errorf("chunk size %d, want 500", cfg.ChunkSize)
	}
	if cfg.Source.BaseURL != "https://override.example.com" {
		t.Errorf("source url %q", cfg.Source.BaseURL)
	}
	// Untouched fields keep their prior values.
	if cfg.DatabaseURL != "postgres://localhost/sync" {
		t.Errorf("database url clobbered: %q", cfg.DatabaseURL)
	}
}

func TestLoadFile_MissingFile(t *testing.T) {
	cfg := validConfig()
	if err := cfg.LoadFile("/nonexistent/sync.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}
