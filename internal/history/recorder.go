// Package history records timer run outcomes from the event bus into an
// in-memory ring and, when configured, a storage backend.
package history

import (
	"context"
	"sync"
	"time"

	"wheeld/internal/eventbus"
	"wheeld/internal/storage"
	"wheeld/internal/wheel"
	logx "wheeld/pkg/logx"
)

type Config struct {
	Enabled bool
	Buffer  int // bus subscription buffer
	Keep    int // in-memory ring size
}

// Recorder consumes task.fired/task.failed/timer.stopped events.
// It never blocks the timer: the bus drops events for slow consumers and
// storage writes happen on the recorder's own goroutine.
type Recorder struct {
	cfg   Config
	log   logx.Logger
	bus   eventbus.Bus
	store storage.Store // may be nil

	mu   sync.Mutex
	ring []storage.RunRecord
}

func New(cfg Config, log logx.Logger, bus eventbus.Bus, store storage.Store) *Recorder {
	if cfg.Buffer <= 0 {
		cfg.Buffer = 256
	}
	if cfg.Keep <= 0 {
		cfg.Keep = 512
	}
	return &Recorder{cfg: cfg, log: log, bus: bus, store: store}
}

// Run blocks until ctx is done, consuming events. Intended to run under
// the supervisor.
func (r *Recorder) Run(ctx context.Context) error {
	ch, unsub := r.bus.Subscribe(r.cfg.Buffer)
	defer unsub()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e := <-ch:
			r.handle(ctx, e)
		}
	}
}

func (r *Recorder) handle(ctx context.Context, e eventbus.Event) {
	switch e.Type {
	case wheel.EventTaskFired, wheel.EventTaskFailed:
		te, ok := e.Data.(wheel.TaskEvent)
		if !ok {
			return
		}
		rec := storage.RunRecord{
			At:      e.Time,
			TaskID:  te.ID,
			Outcome: storage.OutcomeFired,
			DelayMS: te.Delay.Milliseconds(),
			WaitMS:  te.Wait.Milliseconds(),
			TookMS:  te.Took.Milliseconds(),
		}
		if e.Type == wheel.EventTaskFailed {
			rec.Outcome = storage.OutcomeFailed
			rec.Error = te.Error
		}
		r.record(ctx, rec)
	case wheel.EventTimerStopped:
		se, ok := e.Data.(wheel.StopEvent)
		if !ok || se.Drained == 0 {
			return
		}
		r.log.Info("timer drained unexecuted tasks", logx.Int("count", se.Drained))
	}
}

// RecordDrained persists the tasks a Stop() handed back.
func (r *Recorder) RecordDrained(ctx context.Context, tasks []*wheel.Task) {
	now := time.Now()
	for _, t := range tasks {
		r.record(ctx, storage.RunRecord{
			At:      now,
			TaskID:  t.ID(),
			Outcome: storage.OutcomeDrained,
			DelayMS: t.Delay().Milliseconds(),
		})
	}
}

func (r *Recorder) record(ctx context.Context, rec storage.RunRecord) {
	r.mu.Lock()
	r.ring = append(r.ring, rec)
	if len(r.ring) > r.cfg.Keep {
		r.ring = r.ring[len(r.ring)-r.cfg.Keep:]
	}
	r.mu.Unlock()

	if r.store == nil {
		return
	}
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if err := r.store.AppendRun(wctx, rec); err != nil {
		r.log.Warn("history append failed", logx.Err(err), logx.Uint64("task", rec.TaskID))
	}
}

// Recent returns up to limit newest records, oldest first.
func (r *Recorder) Recent(limit int) []storage.RunRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	if limit <= 0 || limit > len(r.ring) {
		limit = len(r.ring)
	}
	out := make([]storage.RunRecord, limit)
	copy(out, r.ring[len(r.ring)-limit:])
	return out
}
