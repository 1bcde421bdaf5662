package wheel

import "time"

// Event types published on the bus (when one is configured).
const (
	EventTimerStarted = "timer.started"
	EventTimerStopped = "timer.stopped"
	EventTaskFired    = "task.fired"
	EventTaskFailed   = "task.failed"
)

// TaskEvent is the payload for task.fired / task.failed events.
type TaskEvent struct {
	ID       uint64        `json:"id"`
	Delay    time.Duration `json:"delay"`
	Enqueued time.Time     `json:"enqueued"`
	Wait     time.Duration `json:"wait"`
	Took     time.Duration `json:"took"`
	Error    string        `json:"error,omitempty"`
}

// StopEvent is the payload for timer.stopped.
type StopEvent struct {
	Ticks   uint64 `json:"ticks"`
	Drained int    `json:"drained"`
}
