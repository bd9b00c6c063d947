package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("port=%q, want 8080", cfg.Port)
	}
	if cfg.JournalTimeout != 5*time.Second {
		t.Fatalf("journal timeout=%v, want 5s", cfg.JournalTimeout)
	}
	if cfg.RateLimitPerMinute != 120 || cfg.RateLimitBurst != 30 {
		t.Fatalf("ip limits %d/%d, want 120/30", cfg.RateLimitPerMinute, cfg.RateLimitBurst)
	}
	if cfg.StationRateLimitPerMinute != 600 || cfg.StationRateLimitBurst != 120 {
		t.Fatalf("station limits %d/%d, want 600/120", cfg.StationRateLimitPerMinute, cfg.StationRateLimitBurst)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("STATIONS_PATH", "/etc/stations.json")
	t.Setenv("JOURNAL_TIMEOUT_SECONDS", "2")
	t.Setenv("RATE_LIMIT_PER_MIN", "10")
	t.Setenv("DEFAULT_ACTOR", "kiosk")

	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("port=%q, want 9090", cfg.Port)
	}
	if cfg.StationsPath != "/etc/stations.json" {
		t.Fatalf("stations path=%q", cfg.StationsPath)
	}
	if cfg.JournalTimeout != 2*time.Second {
		t.Fatalf("journal timeout=%v, want 2s", cfg.JournalTimeout)
	}
	if cfg.RateLimitPerMinute != 10 {
		t.Fatalf("rate limit=%d, want 10", cfg.RateLimitPerMinute)
	}
	if cfg.DefaultActor != "kiosk" {
		t.Fatalf("actor=%q, want kiosk", cfg.DefaultActor)
	}
}

func TestReadIntBadValue(t *testing.T) {
	t.Setenv("RATE_LIMIT_PER_MIN", "lots")
	cfg := Load()
	if cfg.RateLimitPerMinute != 120 {
		t.Fatalf("rate limit=%d, want fallback 120", cfg.RateLimitPerMinute)
	}
}

func TestJournalTimeoutDisabled(t *testing.T) {
	t.Setenv("JOURNAL_TIMEOUT_SECONDS", "0")
	cfg := Load()
	if cfg.JournalTimeout != 0 {
		t.Fatalf("journal timeout=%v, want 0", cfg.JournalTimeout)
	}
}
