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
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
redis:
  url: localhost:6379
database:
  url: postgres://localhost/bridge
`)
	cfg, err := LoadConfig(path, true)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Queue.Group != "chat-workers" {
		t.Errorf("group default: %q", cfg.Queue.Group)
	}
	if cfg.Queue.Workers != 8 {
		t.Errorf("workers default: %d", cfg.Queue.Workers)
	}
	if cfg.Queue.ClaimTimeout != 2*time.Minute {
		t.Errorf("claim timeout default: %v", cfg.Queue.ClaimTimeout)
	}
	if cfg.Queue.LockTTL <= cfg.Queue.ClaimTimeout {
		t.Error("lock ttl default must exceed claim timeout")
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "json" {
		t.Errorf("log defaults: %+v", cfg.Log)
	}
	if !cfg.Runtime.Dev {
		t.Error("dev flag not carried")
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	path := writeConfig(t, `
redis:
  url: localhost:6379
database:
  url: postgres://localhost/bridge
ai:
  openai_key: from-yaml
`)
	t.Setenv("OPENAI_API_KEY", "from-env")
	cfg, err := LoadConfig(path, false)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.AI.OpenAIKey != "from-env" {
		t.Errorf("env override lost: %q", cfg.AI.OpenAIKey)
	}
}

func TestLoadConfigRejectsLockShorterThanClaim(t *testing.T) {
	path := writeConfig(t, `
redis:
  url: localhost:6379
database:
  url: postgres://localhost/bridge
queue:
  claim_timeout: 5m
  lock_ttl: 1m
`)
	if _, err := LoadConfig(path, false); err == nil {
		t.Fatal("expected error for lock_ttl <= claim_timeout")
	}
}

func TestLoadConfigMissingRedis(t *testing.T) {
	path := writeConfig(t, `
database:
  url: postgres://localhost/bridge
`)
	if _, err := LoadConfig(path, false); err == nil {
		t.Fatal("expected error for missing redis url")
	}
}
