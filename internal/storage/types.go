package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": dependency-free JSONL backend
//   - "sqlite": SQLite database file (optional build tag)
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// RunRecord is one line of run history. Keep it compact and
// schema-stable.
type RunRecord struct {
	At      time.Time `json:"at"`
	TaskID  uint64    `json:"task_id"`
	Outcome string    `json:"outcome"` // fired | failed | drained
	DelayMS int64     `json:"delay_ms"`
	WaitMS  int64     `json:"wait_ms,omitempty"`
	TookMS  int64     `json:"took_ms,omitempty"`
	Error   string    `json:"error,omitempty"`
}

const (
	OutcomeFired   = "fired"
	OutcomeFailed  = "failed"
	OutcomeDrained = "drained"
)
