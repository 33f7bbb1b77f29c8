package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_ENV", "does-not-exist")
	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 8080 || cfg.Store.Backend != StoreMemory || cfg.Presence.Backend != PresenceStore {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.PingPeriod != 54*time.Second || cfg.RateLimit.Interval != time.Second {
		t.Fatalf("durations not decoded: %v %v", cfg.PingPeriod, cfg.RateLimit.Interval)
	}
}

func TestLoadFileEnvAndFlags(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "talkroom.yaml")
	body := `
mode: debug
port: 9000
jwt:
  secret: s3cret
store:
  backend: memory
  rooms:
    - id: r1
      name: General
      max_members: 2
      members: ["1"]
mongo:
  operation_timeout: 2s
`
	if err := os.WriteFile(file, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TALKROOM_REDIS_ADDR", "redis:6380")

	cfg, err := Load([]string{"--config", file, "--log-level", "debug"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Mode != "debug" || cfg.Port != 9000 || cfg.JWT.Secret != "s3cret" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("flag not applied: %q", cfg.LogLevel)
	}
	if cfg.Redis.Addr != "redis:6380" {
		t.Fatalf("env not applied: %q", cfg.Redis.Addr)
	}
	if len(cfg.Store.Rooms) != 1 || cfg.Store.Rooms[0].MaxMembers != 2 || cfg.Store.Rooms[0].Members[0] != "1" {
		t.Fatalf("rooms not decoded: %+v", cfg.Store.Rooms)
	}
	if cfg.Mongo.OperationTimeout != 2*time.Second {
		t.Fatalf("mongo timeout: %v", cfg.Mongo.OperationTimeout)
	}
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(file, []byte("store:\n  backend: sqlite\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load([]string{"--config", file}); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}
