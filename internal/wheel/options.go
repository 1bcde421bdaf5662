package wheel

import (
	"time"

	"wheeld/internal/eventbus"
	logx "wheeld/pkg/logx"
)

const (
	// DefaultSlotNum is the wheel size: one revolution is
	// SlotNum * TickDuration.
	DefaultSlotNum = 64

	// DefaultTickDuration bounds scheduling precision: a task fires in
	// [delay, delay+tick) after submission.
	DefaultTickDuration = 100 * time.Millisecond

	// transferBatch bounds how many inbound tasks one tick moves into
	// the wheel, so a submission burst cannot starve advancement.
	transferBatch = 10000

	defaultStopTimeout = 5 * time.Second
)

// Options holds construction-time tunables. SlotNum and TickDuration are
// fixed for the timer's lifetime.
type Options struct {
	SlotNum      int
	TickDuration time.Duration
	StopTimeout  time.Duration

	Logger       logx.Logger
	Bus          eventbus.Bus
	ErrorHandler ErrorHandler
}

func newOptions(opts ...Option) Options {
	o := Options{
		SlotNum:      DefaultSlotNum,
		TickDuration: DefaultTickDuration,
		StopTimeout:  defaultStopTimeout,
		Logger:       logx.Nop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Option configures a Timer at construction.
type Option func(*Options)

// WithSlotNum sets the wheel size. Non-positive values are ignored.
func WithSlotNum(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.SlotNum = n
		}
	}
}

// WithTickDuration sets the tick. Non-positive values are ignored.
func WithTickDuration(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.TickDuration = d
		}
	}
}

// WithStopTimeout bounds how long Stop waits for the dispatcher
// goroutine to exit before collecting its queue anyway.
func WithStopTimeout(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.StopTimeout = d
		}
	}
}

func WithLogger(log logx.Logger) Option {
	return func(o *Options) { o.Logger = log }
}

// WithBus publishes timer/task lifecycle events to the given bus.
func WithBus(bus eventbus.Bus) Option {
	return func(o *Options) { o.Bus = bus }
}

// WithErrorHandler installs a handler for jobs that panic during
// dispatch.
func WithErrorHandler(h ErrorHandler) Option {
	return func(o *Options) { o.ErrorHandler = h }
}
