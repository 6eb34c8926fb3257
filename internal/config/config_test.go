package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	want := Defaults()
	if diff := cmp.Diff(&want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
database_path: /tmp/nw.db
log_level: debug
telegram_bot_token: tok-123
fetch_interval_minutes: 5
classify_interval_minutes: 10
recency_window_hours: 8
fetch_concurrency: 3
extract_content: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	want := Defaults()
	want.DatabasePath = "/tmp/nw.db"
	want.LogLevel = "debug"
	want.TelegramBotToken = "tok-123"
	want.FetchIntervalMin = 5
	want.ClassifyInterval = 10
	want.RecencyWindowHours = 8
	want.FetchConcurrency = 3
	want.ExtractContent = true
	if diff := cmp.Diff(&want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, "database_path: /tmp/file.db\n")

	t.Setenv("NEWSWATCHER_DB", "/tmp/env.db")
	t.Setenv("NEWSWATCHER_TELEGRAM_TOKEN", "env-token")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if diff := cmp.Diff("/tmp/env.db", cfg.DatabasePath); diff != "" {
		t.Errorf("database path mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff("env-token", cfg.TelegramBotToken); diff != "" {
		t.Errorf("token mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeConfig(t, "database_path: [unclosed\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid yaml")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults are valid", mutate: func(*Config) {}},
		{name: "empty database path", mutate: func(c *Config) { c.DatabasePath = "" }, wantErr: true},
		{name: "zero fetch interval", mutate: func(c *Config) { c.FetchIntervalMin = 0 }, wantErr: true},
		{name: "negative classify interval", mutate: func(c *Config) { c.ClassifyInterval = -1 }, wantErr: true},
		{name: "zero recency window", mutate: func(c *Config) { c.RecencyWindowHours = 0 }, wantErr: true},
		{name: "zero concurrency", mutate: func(c *Config) { c.FetchConcurrency = 0 }, wantErr: true},
		{name: "zero http timeout", mutate: func(c *Config) { c.HTTPTimeoutSec = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Fatal("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
