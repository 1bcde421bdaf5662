package wheel

import "errors"

var (
	// ErrNilJob is returned by AddTask when the job is nil.
	ErrNilJob = errors.New("wheel: job is nil")

	// ErrNegativeDelay is returned by AddTask when the delay is negative.
	ErrNegativeDelay = errors.New("wheel: delay must be >= 0")

	// ErrTimerStopped is returned when AddTask (or Start) is called on a
	// timer that has already been stopped. A stopped timer cannot be
	// restarted; construct a new one.
	ErrTimerStopped = errors.New("wheel: timer is stopped")
)

// ErrorHandler receives jobs that panicked during dispatch. The handler
// runs on the dispatcher goroutine; it must not block for long.
//
// The default handler logs the failure and moves on. A failing job never
// terminates the dispatcher or affects other jobs.
type ErrorHandler func(task *Task, recovered any)
