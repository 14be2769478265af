package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "abc")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DiscordToken != "abc" {
		t.Errorf("DiscordToken = %q, want %q", cfg.DiscordToken, "abc")
	}
	if cfg.Storage.Type != "file" {
		t.Errorf("Storage.Type = %q, want file", cfg.Storage.Type)
	}
	if cfg.Tracker.UpdateInterval != 10*time.Second {
		t.Errorf("UpdateInterval = %v, want 10s", cfg.Tracker.UpdateInterval)
	}
	if cfg.Tracker.SaveInterval != time.Minute {
		t.Errorf("SaveInterval = %v, want 1m", cfg.Tracker.SaveInterval)
	}
	if cfg.Storage.Redis.KeyPrefix != "guildbot:" {
		t.Errorf("KeyPrefix = %q", cfg.Storage.Redis.KeyPrefix)
	}
	if err := cfg.RequireToken(); err != nil {
		t.Errorf("RequireToken: %v", err)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("GUILDBOT_STORAGE_TYPE", "redis")
	t.Setenv("GUILDBOT_TRACKER_UPDATE_INTERVAL", "30s")
	t.Setenv("GUILDBOT_DATABASE_DSN", "postgres://localhost/guild")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Type != "redis" {
		t.Errorf("Storage.Type = %q, want redis", cfg.Storage.Type)
	}
	if cfg.Tracker.UpdateInterval != 30*time.Second {
		t.Errorf("UpdateInterval = %v, want 30s", cfg.Tracker.UpdateInterval)
	}
	if cfg.DatabaseDSN != "postgres://localhost/guild" {
		t.Errorf("DatabaseDSN = %q", cfg.DatabaseDSN)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "data_dir: /srv/guildbot\nlogging:\n  level: debug\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DataDir != "/srv/guildbot" {
		t.Errorf("DataDir = %q", cfg.DataDir)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestLoadRejectsUnknownStorage(t *testing.T) {
	t.Setenv("GUILDBOT_STORAGE_TYPE", "floppy")

	_, err := Load("")
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("Load = %v, want ConfigError", err)
	}
	if cfgErr.Field != "storage.type" {
		t.Errorf("Field = %q, want storage.type", cfgErr.Field)
	}
}

func TestRequireToken(t *testing.T) {
	cfg := &Config{}
	var cfgErr *ConfigError
	if err := cfg.RequireToken(); !errors.As(err, &cfgErr) {
		t.Errorf("RequireToken = %v, want ConfigError", err)
	}
}
