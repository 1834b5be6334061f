package config

import (
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/memoryreel_test")
	t.Setenv("JWT_SECRET", "test-secret")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.APIPort != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.APIPort)
	}
	if cfg.StorageBackend != "local" {
		t.Errorf("expected local storage default, got %s", cfg.StorageBackend)
	}
	if cfg.MaxConcurrentStyleTransfers != 3 {
		t.Errorf("expected 3 concurrent style transfers, got %d", cfg.MaxConcurrentStyleTransfers)
	}
	if cfg.MaxConcurrentExports != 2 {
		t.Errorf("expected 2 concurrent exports, got %d", cfg.MaxConcurrentExports)
	}
	if cfg.StuckJobTimeout != 30*time.Minute {
		t.Errorf("expected 30m stuck timeout, got %v", cfg.StuckJobTimeout)
	}
	if cfg.StuckExportTimeout != 120*time.Minute {
		t.Errorf("expected 120m export timeout, got %v", cfg.StuckExportTimeout)
	}
	if !cfg.CleanupEnabled {
		t.Error("expected cleanup enabled by default")
	}
}

func TestLoadMissingRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "x")
	if _, err := Load(); err == nil {
		t.Error("expected error when DATABASE_URL missing")
	}

	t.Setenv("DATABASE_URL", "postgres://localhost/db")
	t.Setenv("JWT_SECRET", "")
	if _, err := Load(); err == nil {
		t.Error("expected error when JWT_SECRET missing")
	}
}

func TestLoadRejectsBadEnums(t *testing.T) {
	setRequired(t)

	t.Setenv("STORAGE_BACKEND", "s3")
	if _, err := Load(); err == nil {
		t.Error("expected error for unknown storage backend")
	}
	t.Setenv("STORAGE_BACKEND", "local")

	t.Setenv("PROMPT_PROVIDER", "anthropic")
	if _, err := Load(); err == nil {
		t.Error("expected error for unknown prompt provider")
	}
}

func TestLoadRejectsNonPositiveLimits(t *testing.T) {
	setRequired(t)

	t.Setenv("MAX_CONCURRENT_EXPORTS", "0")
	if _, err := Load(); err == nil {
		t.Error("expected error for zero concurrency limit")
	}
}

func TestSupabaseBackendRequiresCredentials(t *testing.T) {
	setRequired(t)

	t.Setenv("STORAGE_BACKEND", "supabase")
	if _, err := Load(); err == nil {
		t.Error("expected error when supabase credentials missing")
	}

	t.Setenv("SUPABASE_URL", "https://example.supabase.co")
	t.Setenv("SUPABASE_SERVICE_KEY", "service-key")
	if _, err := Load(); err != nil {
		t.Errorf("unexpected error with credentials set: %v", err)
	}
}
