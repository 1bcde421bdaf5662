package wheel

import (
	"context"
	"runtime/debug"
	"time"

	"golang.org/x/time/rate"

	"wheeld/internal/eventbus"
	logx "wheeld/pkg/logx"
)

// dispatcher runs due tasks on its own goroutine so that a slow or
// panicking job never delays wheel advancement.
//
// The scheduling goroutine hands tasks over via submit(), which is
// non-blocking. terminate() stops the run loop and returns every task
// that was accepted but not yet run.
type dispatcher struct {
	q    *inqueue
	wake chan struct{}

	stopCh chan struct{}
	done   chan struct{}

	log   logx.Logger
	bus   eventbus.Bus
	onErr ErrorHandler

	// errLim throttles failure logging so a hot broken job cannot
	// flood the sinks. The pluggable handler is always invoked.
	errLim *rate.Limiter
}

func newDispatcher(log logx.Logger, bus eventbus.Bus, onErr ErrorHandler) *dispatcher {
	return &dispatcher{
		q:      newInqueue(),
		wake:   make(chan struct{}, 1),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
		log:    log,
		bus:    bus,
		onErr:  onErr,
		errLim: rate.NewLimiter(rate.Every(time.Second), 5),
	}
}

// submit hands a due task to the dispatcher. Never blocks.
func (d *dispatcher) submit(t *Task) {
	if !d.q.push(t) {
		// Queue already closed by terminate; the task will be part of
		// the drained set.
		return
	}
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *dispatcher) run() {
	defer close(d.done)
	for {
		select {
		case <-d.stopCh:
			return
		default:
		}

		t, ok := d.q.pop()
		if !ok {
			select {
			case <-d.wake:
			case <-d.stopCh:
				return
			}
			continue
		}
		d.runOne(t)
	}
}

func (d *dispatcher) runOne(t *Task) {
	start := time.Now()
	wait := start.Sub(t.enqueuedAt)

	defer func() {
		if r := recover(); r != nil {
			took := time.Since(start)
			if d.errLim.Allow() {
				d.log.Error("task panicked",
					logx.Uint64("task", t.id),
					logx.Duration("delay", t.delay),
					logx.Any("panic", r),
					logx.Stack(string(debug.Stack())),
				)
			}
			if d.onErr != nil {
				d.onErr(t, r)
			}
			if d.bus != nil {
				d.bus.Publish(eventbus.Event{Type: EventTaskFailed, Data: TaskEvent{
					ID: t.id, Delay: t.delay, Enqueued: t.enqueuedAt, Wait: wait, Took: took,
					Error: "panic",
				}})
			}
		}
	}()

	t.job()

	took := time.Since(start)
	d.log.Debug("task fired",
		logx.Uint64("task", t.id),
		logx.Duration("delay", t.delay),
		logx.Duration("wait", wait),
		logx.Duration("took", took),
	)
	if d.bus != nil {
		d.bus.Publish(eventbus.Event{Type: EventTaskFired, Data: TaskEvent{
			ID: t.id, Delay: t.delay, Enqueued: t.enqueuedAt, Wait: wait, Took: took,
		}})
	}
}

// terminate stops the run loop, waits (bounded by ctx) for it to exit,
// and returns the tasks it had accepted but not executed. A task that
// is mid-run when terminate is called finishes and counts as executed.
func (d *dispatcher) terminate(ctx context.Context) []*Task {
	close(d.stopCh)
	select {
	case <-d.done:
	case <-ctx.Done():
		// The goroutine is stuck inside a job. It will exit on the next
		// loop check; we do not wait for the job itself.
		d.log.Warn("dispatcher exit timed out; collecting queued tasks")
	}
	return d.q.drainClose()
}
