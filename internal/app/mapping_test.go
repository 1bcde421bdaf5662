package app

import (
	"testing"
	"time"

	"wheeld/internal/config"
)

func TestMapStorageConfig(t *testing.T) {
	t.Parallel()

	if _, enabled, err := mapStorageConfig(&config.Config{}); err != nil || enabled {
		t.Errorf("nil storage: enabled=%v err=%v, want disabled", enabled, err)
	}

	cfg := &config.Config{Storage: &config.StorageConfig{Driver: "file", Path: "./hist"}}
	sc, enabled, err := mapStorageConfig(cfg)
	if err != nil || !enabled || sc.Driver != "file" {
		t.Errorf("file driver: %+v enabled=%v err=%v", sc, enabled, err)
	}

	cfg = &config.Config{Storage: &config.StorageConfig{Driver: "sqlite3", Path: "./hist.db", BusyTimeout: "2s"}}
	sc, enabled, err = mapStorageConfig(cfg)
	if err != nil || !enabled {
		t.Fatalf("sqlite driver: err=%v enabled=%v", err, enabled)
	}
	if sc.Driver != "sqlite" || sc.BusyTimeout != 2*time.Second {
		t.Errorf("sqlite mapping = %+v", sc)
	}

	cfg = &config.Config{Storage: &config.StorageConfig{Driver: "sqlite"}}
	if _, _, err := mapStorageConfig(cfg); err == nil {
		t.Error("sqlite without path: want error")
	}

	cfg = &config.Config{Storage: &config.StorageConfig{Driver: "postgres"}}
	if _, _, err := mapStorageConfig(cfg); err == nil {
		t.Error("unknown driver: want error")
	}
}

func TestMapWheelOptions(t *testing.T) {
	t.Parallel()

	opts, err := mapWheelOptions(&config.Config{})
	if err != nil || len(opts) != 0 {
		t.Errorf("empty wheel config: opts=%d err=%v, want defaults", len(opts), err)
	}

	cfg := &config.Config{Wheel: config.WheelConfig{SlotNum: 128, Tick: "50ms", StopTimeout: "3s"}}
	opts, err = mapWheelOptions(cfg)
	if err != nil || len(opts) != 3 {
		t.Errorf("full wheel config: opts=%d err=%v, want 3", len(opts), err)
	}

	cfg = &config.Config{Wheel: config.WheelConfig{Tick: "fast"}}
	if _, err := mapWheelOptions(cfg); err == nil {
		t.Error("bad tick duration: want error")
	}
}

func TestMapExpireRequiresRedis(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{Expire: &config.ExpireConfig{Enabled: true}}
	if _, _, err := mapExpireConfig(cfg); err == nil {
		t.Error("expire without redis: want error")
	}

	cfg.Redis = &config.RedisConfig{Addr: "localhost:6379", DB: 2}
	ec, enabled, err := mapExpireConfig(cfg)
	if err != nil || !enabled {
		t.Fatalf("expire with redis: err=%v enabled=%v", err, enabled)
	}
	if ec.DB != 2 || ec.Grace != time.Second {
		t.Errorf("expire mapping = %+v", ec)
	}
}

func TestMapZsetRequiresRedis(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{Zset: &config.ZsetConfig{Enabled: true}}
	if _, _, err := mapZsetConfig(cfg); err == nil {
		t.Error("zset without redis: want error")
	}

	cfg.Redis = &config.RedisConfig{Addr: "localhost:6379"}
	zc, enabled, err := mapZsetConfig(cfg)
	if err != nil || !enabled {
		t.Fatalf("zset with redis: err=%v enabled=%v", err, enabled)
	}
	if zc.Key != "" {
		t.Errorf("zset key = %q, want empty (package default applies)", zc.Key)
	}
}
