package config

// Config is wheeld's whole configuration.
//
// All durations are Go duration strings (e.g. "100ms", "5s", "1m").
// Files may be YAML or JSON; both are decoded strictly, so unknown keys
// are rejected instead of silently ignored.
type Config struct {
	Logging LoggingConfig `json:"logging"`
	Wheel   WheelConfig   `json:"wheel"`

	// History controls recording of fired/failed/drained tasks.
	History *HistoryConfig `json:"history,omitempty"`

	// Storage is the optional persistence backend for history records.
	Storage *StorageConfig `json:"storage,omitempty"`

	// Redis is required by the expire and zset timers.
	Redis *RedisConfig `json:"redis,omitempty"`

	Expire *ExpireConfig `json:"expire,omitempty"`
	Zset   *ZsetConfig   `json:"zset,omitempty"`
}

type LoggingConfig struct {
	Level   string            `json:"level,omitempty"`
	Console bool              `json:"console"`
	File    LoggingFileConfig `json:"file"`
}

type LoggingFileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// WheelConfig tunes the core timing wheel. Both knobs are fixed at
// construction; a changed value only applies to a restarted daemon.
//
// Defaults (when fields are omitted/zero):
//   - slot_num: 64
//   - tick: "100ms"
//   - stop_timeout: "5s"
type WheelConfig struct {
	SlotNum     int    `json:"slot_num,omitempty"`
	Tick        string `json:"tick,omitempty"`
	StopTimeout string `json:"stop_timeout,omitempty"`
}

// HistoryConfig controls the in-memory run history ring and whether
// records are forwarded to storage.
type HistoryConfig struct {
	Enabled bool `json:"enabled"`
	Buffer  int  `json:"buffer,omitempty"` // bus subscription buffer
	Keep    int  `json:"keep,omitempty"`   // in-memory ring size
}

// StorageConfig selects the history persistence driver.
//
// Driver values:
//   - "file": JSONL file backend
//   - "sqlite": SQLite database file (requires the sqlite build tag)
//
// Empty or "none" disables persistence; history stays in memory only.
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password,omitempty"`
	DB       int    `json:"db,omitempty"`
}

// ExpireConfig controls the key-expiration timer, which schedules jobs
// as Redis keys with a TTL and runs them on keyspace expiry
// notifications, with the wheel as fallback.
type ExpireConfig struct {
	Enabled   bool   `json:"enabled"`
	KeyPrefix string `json:"key_prefix,omitempty"` // default "wheeld:expire:"
	Grace     string `json:"grace,omitempty"`      // fallback slack, default "1s"
}

// ZsetConfig controls the sorted-set timer, which mirrors due times into
// a Redis sorted set and claims due members via ZREM.
type ZsetConfig struct {
	Enabled bool   `json:"enabled"`
	Key     string `json:"key,omitempty"`  // default "wheeld:zset"
	Poll    string `json:"poll,omitempty"` // claim poll interval, default "100ms"
}
