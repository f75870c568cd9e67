package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server:\n  port: \"9090\"\nredis:\n  addr: localhost:6379\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9090" || cfg.Redis.Addr != "localhost:6379" {
		t.Fatalf("file values not loaded: %+v", cfg)
	}
	if cfg.Notifications.Provider != "console" || !cfg.Notifications.Retry.Enabled || cfg.Notifications.Retry.MaxAttempts != 3 {
		t.Fatalf("defaults not applied: %+v", cfg.Notifications)
	}
	if cfg.Scanner.Interval != "1m" || cfg.Scanner.Secret != "" {
		t.Fatalf("unexpected scanner defaults: %+v", cfg.Scanner)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CRON_SECRET", "from-cron")
	t.Setenv("PREPCUET_REDIS_ADDR", "redis:6379")
	t.Setenv("PREPCUET_LOG_PRETTY", "true")

	cfg, err := Load(writeConfig(t, "redis:\n  addr: localhost:6379\nscanner:\n  secret: from-file\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Scanner.Secret != "from-cron" {
		t.Fatalf("expected CRON_SECRET to win, got %q", cfg.Scanner.Secret)
	}
	if cfg.Redis.Addr != "redis:6379" || !cfg.Log.Pretty {
		t.Fatalf("env overrides not applied: %+v %+v", cfg.Redis, cfg.Log)
	}
}

func TestLoadValidates(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"sendgrid without key", "notifications:\n  provider: sendgrid\n  fromEmail: noreply@prepcuet.example\n"},
		{"unknown provider", "notifications:\n  provider: carrier-pigeon\n"},
		{"bad log level", "log:\n  level: loud\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.body)); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestTTLDuration(t *testing.T) {
	if d := TTLDuration("", time.Minute); d != time.Minute {
		t.Fatalf("expected fallback, got %s", d)
	}
	if d := TTLDuration("garbage", time.Minute); d != time.Minute {
		t.Fatalf("expected fallback on parse error, got %s", d)
	}
	if d := TTLDuration("90s", time.Minute); d != 90*time.Second {
		t.Fatalf("expected 90s, got %s", d)
	}
}
