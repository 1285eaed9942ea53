package config

import (
	"os"
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("LICENSEGATE_DATABASE_URL", "postgres://localhost/licensegate")
	t.Setenv("LICENSEGATE_SMTP_HOST", "smtp.example.com")
	t.Setenv("LICENSEGATE_SMTP_SENDER", "licenses@example.com")
	t.Setenv("LICENSEGATE_SMTP_PASSWORD", "secret")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want :8080", cfg.HTTPAddr)
	}
	if cfg.KeyAttempts != 5 {
		t.Errorf("KeyAttempts = %d, want 5", cfg.KeyAttempts)
	}
	if cfg.ShutdownTimeout != 15*time.Second {
		t.Errorf("ShutdownTimeout = %v, want 15s", cfg.ShutdownTimeout)
	}
	if cfg.SMTP.Port != 587 {
		t.Errorf("SMTP.Port = %d, want 587", cfg.SMTP.Port)
	}
	if cfg.Redis.Addr != "" {
		t.Errorf("Redis.Addr = %q, want empty (throttling disabled)", cfg.Redis.Addr)
	}
	if cfg.Redis.IssuanceWindow != time.Hour {
		t.Errorf("Redis.IssuanceWindow = %v, want 1h", cfg.Redis.IssuanceWindow)
	}
}

func TestLoad_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("LICENSEGATE_HTTP_ADDR", ":9090")
	t.Setenv("LICENSEGATE_ALLOWED_ORIGINS", "https://a.example.com,https://b.example.com")
	t.Setenv("LICENSEGATE_REDIS_ADDR", "localhost:6379")
	t.Setenv("LICENSEGATE_REDIS_ISSUANCE_LIMIT", "10")
	t.Setenv("LICENSEGATE_REDIS_ISSUANCE_WINDOW", "30m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.HTTPAddr != ":9090" {
		t.Errorf("HTTPAddr = %q, want :9090", cfg.HTTPAddr)
	}
	if len(cfg.AllowedOrigins) != 2 {
		t.Errorf("AllowedOrigins = %v, want 2 entries", cfg.AllowedOrigins)
	}
	if cfg.Redis.IssuanceLimit != 10 || cfg.Redis.IssuanceWindow != 30*time.Minute {
		t.Errorf("Redis limiter = (%d, %v), want (10, 30m)", cfg.Redis.IssuanceLimit, cfg.Redis.IssuanceWindow)
	}
}

func TestLoad_MissingDatabaseURL(t *testing.T) {
	// t.Setenv registers the restore; Unsetenv makes the variable truly absent.
	t.Setenv("LICENSEGATE_DATABASE_URL", "")
	os.Unsetenv("LICENSEGATE_DATABASE_URL")
	t.Setenv("LICENSEGATE_SMTP_HOST", "smtp.example.com")
	t.Setenv("LICENSEGATE_SMTP_SENDER", "licenses@example.com")
	t.Setenv("LICENSEGATE_SMTP_PASSWORD", "secret")

	if _, err := Load(); err == nil {
		t.Error("expected error for missing database URL")
	}
}

func TestLoad_RejectsBadKeyAttempts(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("LICENSEGATE_KEY_ATTEMPTS", "0")

	if _, err := Load(); err == nil {
		t.Error("expected error for zero key attempts")
	}
}

func TestLoad_RejectsBadIssuanceLimit(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("LICENSEGATE_REDIS_ADDR", "localhost:6379")
	t.Setenv("LICENSEGATE_REDIS_ISSUANCE_LIMIT", "0")

	if _, err := Load(); err == nil {
		t.Error("expected error for zero issuance limit with redis enabled")
	}
}
