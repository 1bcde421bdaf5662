// Package zset schedules fire-once jobs through a Redis sorted set
// scored by due time in unix milliseconds. A poll driven by the timing
// wheel fetches members whose score has passed and claims each with
// ZREM; a successful removal is the exclusive claim, so several
// processes can poll the same set without double-firing. Only the
// process holding the job function runs it; claims for unknown members
// are counted and dropped.
package zset

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"wheeld/internal/eventbus"
	"wheeld/internal/wheel"
	logx "wheeld/pkg/logx"
)

var (
	ErrStopped = errors.New("zset: timer stopped")
	ErrNilJob  = errors.New("zset: nil job")
)

type Config struct {
	Key          string        // sorted set key, e.g. "wheeld:zset"
	PollInterval time.Duration // how often due members are fetched
	PollBatch    int64         // max members claimed per poll
}

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
	jobs    map[string]*Job
	stopped bool
}

func New(cfg Config, rdb redis.UniversalClient, wt *wheel.Timer, log logx.Logger, bus eventbus.Bus) *Timer {
	if cfg.Key == "" {
		cfg.Key = "wheeld:zset"
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 100 * time.Millisecond
	}
	if cfg.PollBatch <= 0 {
		cfg.PollBatch = 128
	}
	return &Timer{
		cfg:   cfg,
		rdb:   rdb,
		wheel: wt,
		log:   log,
		bus:   bus,
		jobs:  map[string]*Job{},
	}
}

// Schedule adds the member to the sorted set with its due time as the
// score and keeps fn locally until a poll claims it.
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
	if _, dup := t.jobs[id]; dup {
		t.mu.Unlock()
		return fmt.Errorf("zset: job %q already scheduled", id)
	}
	t.jobs[id] = job
	t.mu.Unlock()

	due := float64(job.enqueuedAt.Add(delay).UnixMilli())
	if err := t.rdb.ZAdd(ctx, t.cfg.Key, redis.Z{Score: due, Member: id}).Err(); err != nil {
		t.mu.Lock()
		delete(t.jobs, id)
		t.mu.Unlock()
		return fmt.Errorf("zset: add %q: %w", id, err)
	}
	return nil
}

// Start arms the first poll on the wheel. Each poll re-arms the next
// one, so polling stops with the wheel.
func (t *Timer) Start(ctx context.Context) error {
	return t.armPoll(ctx)
}

func (t *Timer) armPoll(ctx context.Context) error {
	_, err := t.wheel.AddTask(func() {
		t.poll(ctx)
		t.mu.Lock()
		stopped := t.stopped
		t.mu.Unlock()
		if stopped || ctx.Err() != nil {
			return
		}
		if err := t.armPoll(ctx); err != nil && !errors.Is(err, wheel.ErrTimerStopped) {
			t.log.Warn("zset poll rearm failed", logx.Err(err))
		}
	}, t.cfg.PollInterval)
	if err != nil {
		return fmt.Errorf("zset: arm poll: %w", err)
	}
	return nil
}

// poll fetches due members and claims each with ZREM. Runs on the
// wheel dispatcher goroutine.
func (t *Timer) poll(ctx context.Context) {
	now := time.Now().UnixMilli()
	members, err := t.rdb.ZRangeByScore(ctx, t.cfg.Key, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now, 10),
		Count: t.cfg.PollBatch,
	}).Result()
	if err != nil {
		t.log.Warn("zset poll failed", logx.Err(err))
		return
	}

	for _, id := range members {
		removed, err := t.rdb.ZRem(ctx, t.cfg.Key, id).Result()
		if err != nil {
			t.log.Warn("zset claim failed", logx.String("id", id), logx.Err(err))
			continue
		}
		if removed == 0 {
			// Another poller claimed it first.
			continue
		}
		t.runClaimed(id)
	}
}

// runClaimed executes the job for a member this process just removed
// from the set. Members scheduled by another process have no local
// function and are dropped.
func (t *Timer) runClaimed(id string) {
	t.mu.Lock()
	job, ok := t.jobs[id]
	if ok {
		delete(t.jobs, id)
	}
	t.mu.Unlock()
	if !ok {
		t.log.Debug("claimed member without local job", logx.String("id", id))
		return
	}

	wait := time.Since(job.enqueuedAt)
	started := time.Now()
	job.Fn()

	t.log.Debug("zset job fired", logx.String("id", id), logx.Duration("wait", wait))
	if t.bus != nil {
		t.bus.Publish(eventbus.Event{Type: wheel.EventTaskFired, Data: wheel.TaskEvent{
			Delay:    job.Delay,
			Enqueued: job.enqueuedAt,
			Wait:     wait,
			Took:     time.Since(started),
		}})
	}
}

// Pending reports how many locally scheduled jobs remain unclaimed.
func (t *Timer) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.jobs)
}

// Stop rejects further scheduling and returns every local job that was
// never claimed. Members left in Redis stay there for other pollers.
func (t *Timer) Stop() []*Job {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return nil
	}
	t.stopped = true
	out := make([]*Job, 0, len(t.jobs))
	for _, j := range t.jobs {
		out = append(out, j)
	}
	t.jobs = map[string]*Job{}
	return out
}
