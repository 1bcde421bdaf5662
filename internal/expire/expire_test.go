package expire

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	logx "wheeld/pkg/logx"
)

func newBareTimer() *Timer {
	return New(Config{}, nil, nil, logx.Nop(), nil)
}

func TestFireClaimIsExactlyOnce(t *testing.T) {
	tm := newBareTimer()
	var runs atomic.Int32
	tm.pending["a"] = &Job{ID: "a", Fn: func() { runs.Add(1) }, enqueuedAt: time.Now()}

	// Notification and fallback race for the same job.
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		src := "notify"
		if i == 1 {
			src = "fallback"
		}
		wg.Add(1)
		go func(src string) {
			defer wg.Done()
			tm.fire("a", src)
		}(src)
	}
	wg.Wait()

	if got := runs.Load(); got != 1 {
		t.Fatalf("job ran %d times, want exactly 1", got)
	}
	if tm.Pending() != 0 {
		t.Errorf("Pending = %d, want 0", tm.Pending())
	}
}

func TestFireUnknownIDIsNoop(t *testing.T) {
	tm := newBareTimer()
	tm.fire("missing", "notify")
}

func TestStopReturnsUnclaimedJobs(t *testing.T) {
	tm := newBareTimer()
	ran := false
	tm.pending["x"] = &Job{ID: "x", Fn: func() { ran = true }, Delay: time.Hour, enqueuedAt: time.Now()}
	tm.pending["y"] = &Job{ID: "y", Fn: func() { ran = true }, Delay: time.Hour, enqueuedAt: time.Now()}

	drained := tm.Stop()
	if len(drained) != 2 {
		t.Fatalf("Stop returned %d jobs, want 2", len(drained))
	}
	if ran {
		t.Error("drained job was executed")
	}

	// A late fallback firing after Stop finds nothing.
	tm.fire("x", "fallback")
	if ran {
		t.Error("fire after Stop executed a drained job")
	}

	if again := tm.Stop(); again != nil {
		t.Errorf("second Stop = %v, want nil", again)
	}
}
