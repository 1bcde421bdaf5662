package wheel

import "time"

// Task is an immutable delay descriptor wrapping a unit of work.
//
// A task is owned by exactly one place at a time: the inbound queue,
// then a single slot, then the dispatcher. It either runs exactly once
// or comes back out of Stop() exactly once, never both.
type Task struct {
	id         uint64
	job        func()
	delay      time.Duration
	enqueuedAt time.Time

	// rounds is the number of full wheel revolutions left before the
	// task is due. Touched only by the scheduling goroutine.
	rounds uint64
}

// ID is a per-timer sequence number, useful for correlating log lines
// and history records.
func (t *Task) ID() uint64 { return t.id }

// Job returns the unit of work. Callers that get tasks back from Stop()
// may invoke or resubmit it.
func (t *Task) Job() func() { return t.job }

// Delay is the requested delay at submission time.
func (t *Task) Delay() time.Duration { return t.delay }

// EnqueuedAt is the submission timestamp.
func (t *Task) EnqueuedAt() time.Time { return t.enqueuedAt }
