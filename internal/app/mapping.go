package app

import (
	"fmt"
	"strings"
	"time"

	"wheeld/internal/config"
	"wheeld/internal/expire"
	"wheeld/internal/history"
	"wheeld/internal/storage"
	"wheeld/internal/wheel"
	"wheeld/internal/zset"
)

func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	if cfg == nil || cfg.Storage == nil {
		return storage.Config{}, false, nil
	}
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{}, false, nil
	}
	path := strings.TrimSpace(sc.Path)

	switch driver {
	case "file":
		return storage.Config{Driver: "file", Path: path}, true, nil
	case "sqlite", "sqlite3":
		if path == "" {
			return storage.Config{}, false, fmt.Errorf("storage.path is required when storage.driver=sqlite")
		}
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, false, err
		}
		return storage.Config{Driver: "sqlite", Path: path, BusyTimeout: busy}, true, nil
	default:
		return storage.Config{}, false, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}

func mapWheelOptions(cfg *config.Config) ([]wheel.Option, error) {
	var opts []wheel.Option
	wc := cfg.Wheel
	if wc.SlotNum < 0 {
		return nil, fmt.Errorf("wheel.slot_num must be >= 0")
	}
	if wc.SlotNum > 0 {
		opts = append(opts, wheel.WithSlotNum(wc.SlotNum))
	}
	tick, err := config.ParseDurationOrDefault("wheel.tick", wc.Tick, 0)
	if err != nil {
		return nil, err
	}
	if tick > 0 {
		opts = append(opts, wheel.WithTickDuration(tick))
	}
	stopTimeout, err := config.ParseDurationOrDefault("wheel.stop_timeout", wc.StopTimeout, 0)
	if err != nil {
		return nil, err
	}
	if stopTimeout > 0 {
		opts = append(opts, wheel.WithStopTimeout(stopTimeout))
	}
	return opts, nil
}

func mapHistoryConfig(cfg *config.Config) (history.Config, bool) {
	if cfg == nil || cfg.History == nil || !cfg.History.Enabled {
		return history.Config{}, false
	}
	return history.Config{
		Enabled: true,
		Buffer:  cfg.History.Buffer,
		Keep:    cfg.History.Keep,
	}, true
}

func mapExpireConfig(cfg *config.Config) (expire.Config, bool, error) {
	if cfg == nil || cfg.Expire == nil || !cfg.Expire.Enabled {
		return expire.Config{}, false, nil
	}
	if cfg.Redis == nil || strings.TrimSpace(cfg.Redis.Addr) == "" {
		return expire.Config{}, false, fmt.Errorf("expire.enabled requires redis.addr")
	}
	grace, err := config.ParseDurationOrDefault("expire.grace", cfg.Expire.Grace, time.Second)
	if err != nil {
		return expire.Config{}, false, err
	}
	return expire.Config{
		KeyPrefix: cfg.Expire.KeyPrefix,
		DB:        cfg.Redis.DB,
		Grace:     grace,
	}, true, nil
}

func mapZsetConfig(cfg *config.Config) (zset.Config, bool, error) {
	if cfg == nil || cfg.Zset == nil || !cfg.Zset.Enabled {
		return zset.Config{}, false, nil
	}
	if cfg.Redis == nil || strings.TrimSpace(cfg.Redis.Addr) == "" {
		return zset.Config{}, false, fmt.Errorf("zset.enabled requires redis.addr")
	}
	poll, err := config.ParseDurationOrDefault("zset.poll", cfg.Zset.Poll, 0)
	if err != nil {
		return zset.Config{}, false, err
	}
	return zset.Config{
		Key:          cfg.Zset.Key,
		PollInterval: poll,
	}, true, nil
}

// validateConfig runs the mapping functions against a candidate reload
// so a broken file is rejected instead of half-applied.
func validateConfig(cfg *config.Config) error {
	if _, err := mapWheelOptions(cfg); err != nil {
		return err
	}
	if _, _, err := mapStorageConfig(cfg); err != nil {
		return err
	}
	if _, _, err := mapExpireConfig(cfg); err != nil {
		return err
	}
	if _, _, err := mapZsetConfig(cfg); err != nil {
		return err
	}
	return nil
}
