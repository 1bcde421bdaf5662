// Package expire schedules fire-once jobs through Redis key expiry.
//
// Each scheduled job writes a volatile key with a TTL equal to the
// delay; a subscriber on the __keyevent@<db>__:expired channel fires
// the job when Redis reports the expiry. Keyspace notifications are
// best-effort in Redis, so every job also gets a timing-wheel fallback
// at delay plus a grace period. A claim on the local registry makes
// the two paths exactly-once: whichever arrives first runs the job,
// the loser finds nothing.
package expire

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"wheeld/internal/eventbus"
	"wheeld/internal/runtime/supervisor"
	"wheeld/internal/wheel"
	logx "wheeld/pkg/logx"
)

var (
	ErrStopped = errors.New("expire: timer stopped")
	ErrNilJob  = errors.New("expire: nil job")
)

type Config struct {
	KeyPrefix string        // volatile key namespace, e.g. "wheeld:expire:"
	DB        int           // Redis logical DB, selects the keyevent channel
	Grace     time.Duration // fallback slack on top of the delay
}

// Job is a scheduled unit awaiting either the expiry notification or
// the wheel fallback.
type Job struct {
	ID    string
	Delay time.Duration
	Fn    func()

	enqueuedAt time.Time
}

type Timer struct {
	cfg   Config
	rdb   redis.UniversalClient
	wheel *wheel.Timer
	log   logx.Logger
	bus   eventbus.Bus

	mu      sync.Mutex
	pending map[string]*Job
	stopped bool
}

func New(cfg Config, rdb redis.UniversalClient, wt *wheel.Timer, log logx.Logger, bus eventbus.Bus) *Timer {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "wheeld:expire:"
	}
	if cfg.Grace <= 0 {
		cfg.Grace = time.Second
	}
	return &Timer{
		cfg:     cfg,
		rdb:     rdb,
		wheel:   wt,
		log:     log,
		bus:     bus,
		pending: map[string]*Job{},
	}
}

// Schedule registers fn to run once, roughly delay from now. The Redis
// write and the wheel fallback are both armed before Schedule returns.
// Redis expiry has second granularity; sub-second delays still work
// because the wheel fallback fires at delay+grace regardless.
func (t *Timer) Schedule(ctx context.Context, id string, fn func(), delay time.Duration) error {
	if fn == nil {
		return ErrNilJob
	}
	if delay < 0 {
		return wheel.ErrNegativeDelay
	}

	job := &Job{ID: id, Delay: delay, Fn: fn, enqueuedAt: time.Now()}

	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return ErrStopped
	}
	if _, dup := t.pending[id]; dup {
		t.mu.Unlock()
		return fmt.Errorf("expire: job %q already scheduled", id)
	}
	t.pending[id] = job
	t.mu.Unlock()

	ttl := delay
	if ttl == 0 {
		// A zero duration would mean "no expiry" to Redis.
		ttl = time.Millisecond
	}
	if err := t.rdb.Set(ctx, t.cfg.KeyPrefix+id, "1", ttl).Err(); err != nil {
		// The fallback below still covers the job; log and continue.
		t.log.Warn("expire key write failed", logx.String("id", id), logx.Err(err))
	}

	if _, err := t.wheel.AddTask(func() { t.fire(id, "fallback") }, delay+t.cfg.Grace); err != nil {
		t.mu.Lock()
		delete(t.pending, id)
		t.mu.Unlock()
		return fmt.Errorf("expire: arm fallback: %w", err)
	}
	return nil
}

// Run consumes expiry notifications until ctx is canceled. Meant to run
// under supervisor.GoRestart so a dropped Redis connection resubscribes.
func (t *Timer) Run(ctx context.Context) error {
	// Keyspace events are off by default; turning them on is
	// best-effort since CONFIG may be disabled on managed Redis.
	if err := t.rdb.ConfigSet(ctx, "notify-keyspace-events", "Ex").Err(); err != nil {
		t.log.Warn("could not enable keyspace notifications", logx.Err(err))
	}

	channel := fmt.Sprintf("__keyevent@%d__:expired", t.cfg.DB)
	sub := t.rdb.PSubscribe(ctx, channel)
	defer sub.Close()

	// Force the subscribe round-trip so connection errors surface here
	// and trigger a restart instead of a silent dead loop.
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("expire: subscribe %s: %w", channel, err)
	}
	t.log.Info("expiry subscriber ready", logx.String("channel", channel))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return errors.New("expire: subscription channel closed")
			}
			key := msg.Payload
			if !strings.HasPrefix(key, t.cfg.KeyPrefix) {
				continue
			}
			t.fire(strings.TrimPrefix(key, t.cfg.KeyPrefix), "notify")
		}
	}
}

// fire claims and runs the job. Safe to call from both the subscriber
// and the wheel dispatcher; only the first claim wins.
func (t *Timer) fire(id, source string) {
	t.mu.Lock()
	job, ok := t.pending[id]
	if ok {
		delete(t.pending, id)
	}
	t.mu.Unlock()
	if !ok {
		return
	}

	wait := time.Since(job.enqueuedAt)
	started := time.Now()
	job.Fn()

	t.log.Debug("expire job fired",
		logx.String("id", id),
		logx.String("source", source),
		logx.Duration("wait", wait),
	)
	if t.bus != nil {
		t.bus.Publish(eventbus.Event{Type: wheel.EventTaskFired, Data: wheel.TaskEvent{
			Delay:    job.Delay,
			Enqueued: job.enqueuedAt,
			Wait:     wait,
			Took:     time.Since(started),
		}})
	}
}

// Pending reports how many jobs are still unclaimed.
func (t *Timer) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// Stop rejects further scheduling and returns every job that never ran.
// The wheel fallbacks for returned jobs become no-ops.
func (t *Timer) Stop() []*Job {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return nil
	}
	t.stopped = true
	out := make([]*Job, 0, len(t.pending))
	for _, j := range t.pending {
		out = append(out, j)
	}
	t.pending = map[string]*Job{}
	return out
}

// Supervise registers the subscriber loop on sup with resubscribe
// backoff.
func (t *Timer) Supervise(sup *supervisor.Supervisor) {
	sup.GoRestart("expire.subscriber", t.Run,
		supervisor.WithRestartBackoff(500*time.Millisecond, 15*time.Second))
}
