package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("LIFECYCLE_STRICT_TRANSITIONS", "")
	t.Setenv("APP_PORT", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.App.Port != "8080" {
		t.Errorf("App.Port = %q, want 8080", cfg.App.Port)
	}
	if cfg.Postgres.DSN != "" {
		t.Errorf("Postgres.DSN = %q, want empty", cfg.Postgres.DSN)
	}
	if cfg.Lifecycle.StrictTransitions {
		t.Error("Lifecycle.StrictTransitions = true, want false by default")
	}
	if cfg.Auth.MinPasswordLength != 8 {
		t.Errorf("Auth.MinPasswordLength = %d, want 8", cfg.Auth.MinPasswordLength)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_HOST", "127.0.0.1")
	t.Setenv("APP_PORT", "9090")
	t.Setenv("LIFECYCLE_STRICT_TRANSITIONS", "true")
	t.Setenv("ANALYTICS_CACHE_TTL_SECONDS", "15")
	t.Setenv("POSTGRES_MAX_CONNS", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := cfg.App.Addr(); got != "127.0.0.1:9090" {
		t.Errorf("Addr() = %q, want 127.0.0.1:9090", got)
	}
	if !cfg.Lifecycle.StrictTransitions {
		t.Error("Lifecycle.StrictTransitions = false, want true")
	}
	if got := cfg.Analytics.CacheTTL(); got != 15*time.Second {
		t.Errorf("CacheTTL() = %v, want 15s", got)
	}
	if cfg.Postgres.MaxConns != 10 {
		t.Errorf("MaxConns = %d, want fallback 10 for invalid input", cfg.Postgres.MaxConns)
	}
}

func TestLoadRejectsInvalidRedisDB(t *testing.T) {
	t.Setenv("REDIS_DB", "zero")
	if _, err := Load(); err == nil {
		t.Fatal("Load() error = nil, want error for invalid REDIS_DB")
	}
}

func TestLoadSeedAndConnectSettings(t *testing.T) {
	t.Setenv("APP_SEED_FIXTURES", "seed/fixtures.yaml")
	t.Setenv("POSTGRES_CONNECT_ATTEMPTS", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.App.SeedFixtures != "seed/fixtures.yaml" {
		t.Errorf("App.SeedFixtures = %q", cfg.App.SeedFixtures)
	}
	if cfg.Postgres.ConnectAttempts != 5 {
		t.Errorf("Postgres.ConnectAttempts = %d, want default 5", cfg.Postgres.ConnectAttempts)
	}
}
