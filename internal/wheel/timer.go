package wheel

import (
	"context"
	"sync/atomic"
	"time"

	"wheeld/internal/eventbus"
	logx "wheeld/pkg/logx"
)

// Lifecycle states. Transitions are CAS-only: INIT -> STARTED -> SHUTDOWN,
// SHUTDOWN is terminal.
const (
	stateInit int32 = iota
	stateStarted
	stateShutdown
)

// Timer is a hashed timing-wheel scheduler for fire-once delayed jobs.
//
// Exactly two long-lived goroutines serve a started timer: the
// scheduling goroutine (owns the slots and the tick counter) and the
// dispatcher goroutine (runs due jobs). Any number of producers may call
// AddTask and Stop concurrently.
type Timer struct {
	opts  Options
	slots []*slot

	// inbound buffers new tasks between producers and the scheduling
	// goroutine; it is moved into the wheel at most transferBatch tasks
	// per tick.
	inbound *inqueue

	state atomic.Int32
	ticks atomic.Uint64
	seq   atomic.Uint64

	// ready is closed once the scheduling goroutine has started its
	// dispatcher. Everyone who triggers or observes startup blocks on
	// it, so AddTask can never race an unstarted scheduler.
	ready  chan struct{}
	stopCh chan struct{}
	done   chan struct{}

	// drained is written by the scheduling goroutine before it closes
	// done, and read by Stop after done.
	drained []*Task

	log logx.Logger
	bus eventbus.Bus
}

// New constructs a stopped timer. The scheduling goroutine starts lazily
// on the first AddTask (or an explicit Start).
func New(opts ...Option) *Timer {
	o := newOptions(opts...)
	t := &Timer{
		opts:    o,
		slots:   make([]*slot, o.SlotNum),
		inbound: newInqueue(),
		ready:   make(chan struct{}),
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
		log:     o.Logger,
		bus:     o.Bus,
	}
	for i := range t.slots {
		t.slots[i] = newSlot()
	}
	return t
}

// AddTask schedules job to run once after delay. It returns as soon as
// the task is queued; execution happens later on the dispatcher
// goroutine. The first call starts the timer.
func (t *Timer) AddTask(job func(), delay time.Duration) (*Task, error) {
	if job == nil {
		return nil, ErrNilJob
	}
	if delay < 0 {
		return nil, ErrNegativeDelay
	}
	if err := t.Start(); err != nil {
		return nil, err
	}

	task := &Task{
		id:         t.seq.Add(1),
		job:        job,
		delay:      delay,
		enqueuedAt: time.Now(),
	}
	if !t.inbound.push(task) {
		// Shutdown raced the enqueue and the queue was already drained;
		// the task was never accepted.
		return nil, ErrTimerStopped
	}
	return task, nil
}

// Start transitions INIT -> STARTED and blocks until the scheduling
// goroutine is ready. It is a no-op on a started timer and fails with
// ErrTimerStopped on a stopped one.
func (t *Timer) Start() error {
	switch t.state.Load() {
	case stateInit:
		if t.state.CompareAndSwap(stateInit, stateStarted) {
			go t.run()
		}
	case stateStarted:
	case stateShutdown:
		return ErrTimerStopped
	}
	<-t.ready
	return nil
}

// Stop transitions STARTED -> SHUTDOWN, waits for the scheduling and
// dispatcher goroutines to exit, and returns every task that had not run
// yet: still inbound, resident in a slot, or queued at the dispatcher.
//
// Stopping a timer that was never started, or one that is already
// stopped, returns nil. A stopped timer cannot be reused.
func (t *Timer) Stop() []*Task {
	if !t.state.CompareAndSwap(stateStarted, stateShutdown) {
		return nil
	}
	close(t.stopCh)
	<-t.done
	return t.drained
}

// Ticks reports how many times the wheel has advanced. Diagnostics only.
func (t *Timer) Ticks() uint64 { return t.ticks.Load() }

// Pending reports how many tasks sit in the inbound queue waiting to be
// moved into the wheel. Diagnostics only.
func (t *Timer) Pending() int { return t.inbound.len() }

// run is the scheduling goroutine: one iteration per tick, while the
// state is STARTED.
func (t *Timer) run() {
	d := newDispatcher(t.log, t.bus, t.opts.ErrorHandler)
	go d.run()
	close(t.ready)

	t.log.Info("wheel timer started",
		logx.Int("slots", len(t.slots)),
		logx.Duration("tick", t.opts.TickDuration),
	)
	if t.bus != nil {
		t.bus.Publish(eventbus.Event{Type: EventTimerStarted})
	}

	ticker := time.NewTicker(t.opts.TickDuration)
	defer ticker.Stop()

	size := uint64(len(t.slots))
	var current uint64
	for t.state.Load() == stateStarted {
		t.transfer(current, size)
		t.slots[current%size].fireDue(d)

		select {
		case <-ticker.C:
		case <-t.stopCh:
			// Re-check the state instead of sleeping out the tick.
		}

		current++
		t.ticks.Store(current)
	}

	t.shutdown(d)
}

// transfer moves up to transferBatch inbound tasks into their slots.
// Index and rounds follow from the delay expressed in whole ticks:
// a sub-tick delay lands in the current slot and fires on the next
// visit, i.e. within one tick.
func (t *Timer) transfer(current, size uint64) {
	for i := 0; i < transferBatch; i++ {
		task, ok := t.inbound.pop()
		if !ok {
			return
		}
		ticks := uint64(task.delay / t.opts.TickDuration)
		task.rounds = ticks / size
		t.slots[(current+ticks)%size].add(task)
	}
}

// shutdown terminates the dispatcher and gathers every unprocessed task:
// dispatcher queue first, then the inbound queue (closing it against
// late producers), then slot residents.
func (t *Timer) shutdown(d *dispatcher) {
	ctx, cancel := context.WithTimeout(context.Background(), t.opts.StopTimeout)
	unrun := d.terminate(ctx)
	cancel()

	drained := append(unrun, t.inbound.drainClose()...)
	for _, s := range t.slots {
		drained = append(drained, s.drainAll()...)
	}
	t.drained = drained

	t.log.Info("wheel timer stopped",
		logx.Uint64("ticks", t.ticks.Load()),
		logx.Int("drained", len(drained)),
	)
	if t.bus != nil {
		t.bus.Publish(eventbus.Event{Type: EventTimerStopped, Data: StopEvent{
			Ticks:   t.ticks.Load(),
			Drained: len(drained),
		}})
	}
	close(t.done)
}
