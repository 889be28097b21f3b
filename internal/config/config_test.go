package config

import (
	"testing"
	"time"
)

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")

	cfg := Load()
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
}

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "STORE", "LOCK_BACKEND", "REPORT_CACHE_TTL_SECONDS", "MAX_IMAGE_BYTES", "UPLOAD_DIR"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.Address() != ":8080" {
		t.Fatalf("expected :8080, got %q", cfg.Address())
	}
	if cfg.LockBackend != "local" {
		t.Fatalf("expected local lock backend, got %q", cfg.LockBackend)
	}
	if cfg.ReportCacheTTL() != time.Minute {
		t.Fatalf("expected 1m report cache ttl, got %s", cfg.ReportCacheTTL())
	}
	if cfg.MaxImageBytes != 2097152 {
		t.Fatalf("expected 2MB image limit, got %d", cfg.MaxImageBytes)
	}
	if cfg.UploadDir != "static/uploads" {
		t.Fatalf("unexpected upload dir %q", cfg.UploadDir)
	}
}

func TestLoadRejectsNonPositiveDurations(t *testing.T) {
	t.Setenv("LOCK_TTL_SECONDS", "-5")
	t.Setenv("ACCESS_TOKEN_TTL_MINUTES", "abc")
	t.Setenv("STORE", " Memory ")

	cfg := Load()
	if cfg.LockTTL() != 10*time.Second {
		t.Fatalf("expected fallback lock ttl, got %s", cfg.LockTTL())
	}
	if cfg.AccessTokenTTL() != 480*time.Minute {
		t.Fatalf("expected fallback token ttl, got %s", cfg.AccessTokenTTL())
	}
	if cfg.Store != "memory" {
		t.Fatalf("expected normalized store name, got %q", cfg.Store)
	}
}
