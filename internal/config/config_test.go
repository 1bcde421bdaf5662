package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) *Manager {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return NewManager(path)
}

func TestParseYAML(t *testing.T) {
	t.Parallel()
	m := writeConfig(t, "wheeld.yaml", `
logging:
  level: debug
  console: true
wheel:
  slot_num: 32
  tick: 50ms
storage:
  driver: file
  path: ./history
redis:
  addr: 127.0.0.1:6379
  db: 2
expire:
  enabled: true
  grace: 2s
`)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != "debug" || !cfg.Logging.Console {
		t.Fatalf("logging = %+v", cfg.Logging)
	}
	if cfg.Wheel.SlotNum != 32 || cfg.Wheel.Tick != "50ms" {
		t.Fatalf("wheel = %+v", cfg.Wheel)
	}
	if cfg.Storage == nil || cfg.Storage.Driver != "file" {
		t.Fatalf("storage = %+v", cfg.Storage)
	}
	if cfg.Redis == nil || cfg.Redis.DB != 2 {
		t.Fatalf("redis = %+v", cfg.Redis)
	}
	if cfg.Expire == nil || !cfg.Expire.Enabled || cfg.Expire.Grace != "2s" {
		t.Fatalf("expire = %+v", cfg.Expire)
	}

	tick, err := ParseDurationOrDefault("wheel.tick", cfg.Wheel.Tick, 100*time.Millisecond)
	if err != nil || tick != 50*time.Millisecond {
		t.Fatalf("tick = %v, %v", tick, err)
	}
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	t.Parallel()
	m := writeConfig(t, "wheeld.yaml", `
wheel:
  slot_count: 32
`)
	if _, err := m.Load(); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestParseJSON(t *testing.T) {
	t.Parallel()
	m := writeConfig(t, "wheeld.json", `{"logging":{"level":"info","console":true,"file":{"enabled":false}},"wheel":{"tick":"100ms"}}`)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Wheel.Tick != "100ms" {
		t.Fatalf("tick = %q", cfg.Wheel.Tick)
	}
}

func TestParseDurationVariants(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		raw     string
		def     time.Duration
		want    time.Duration
		wantErr bool
	}{
		{name: "empty uses default", raw: "", def: time.Second, want: time.Second},
		{name: "explicit", raw: "250ms", def: time.Second, want: 250 * time.Millisecond},
		{name: "minutes", raw: "2m", def: time.Second, want: 2 * time.Minute},
		{name: "garbage", raw: "soon", def: time.Second, wantErr: true},
		{name: "negative", raw: "-1s", def: time.Second, wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDurationOrDefault("test", tt.raw, tt.def)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseDurationOrDefault(%q) succeeded, want error", tt.raw)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDurationOrDefault(%q): %v", tt.raw, err)
			}
			if got != tt.want {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}
