package history

import (
	"context"
	"sync"
	"testing"
	"time"

	"wheeld/internal/eventbus"
	"wheeld/internal/storage"
	"wheeld/internal/wheel"
	logx "wheeld/pkg/logx"
)

type memStore struct {
	mu   sync.Mutex
	recs []storage.RunRecord
}

func (m *memStore) AppendRun(_ context.Context, rec storage.RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs = append(m.recs, rec)
	return nil
}

func (m *memStore) RecentRuns(_ context.Context, limit int) ([]storage.RunRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit > len(m.recs) {
		limit = len(m.recs)
	}
	out := make([]storage.RunRecord, limit)
	copy(out, m.recs[len(m.recs)-limit:])
	return out, nil
}

func (m *memStore) Close() error { return nil }

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.recs)
}

func TestRecorderCapturesFiredAndFailed(t *testing.T) {
	bus := eventbus.New()
	store := &memStore{}
	rec := New(Config{Enabled: true, Keep: 8}, logx.Nop(), bus, store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = rec.Run(ctx)
	}()

	bus.Publish(eventbus.Event{Type: wheel.EventTaskFired, Data: wheel.TaskEvent{
		ID: 1, Delay: 100 * time.Millisecond, Wait: 110 * time.Millisecond, Took: time.Millisecond,
	}})
	bus.Publish(eventbus.Event{Type: wheel.EventTaskFailed, Data: wheel.TaskEvent{
		ID: 2, Delay: 50 * time.Millisecond, Error: "boom",
	}})

	deadline := time.Now().Add(2 * time.Second)
	for store.count() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("expected 2 stored records, got %d", store.count())
		}
		time.Sleep(5 * time.Millisecond)
	}

	got := rec.Recent(0)
	if len(got) != 2 {
		t.Fatalf("Recent: got %d records, want 2", len(got))
	}
	if got[0].Outcome != storage.OutcomeFired || got[0].TaskID != 1 {
		t.Errorf("first record = %+v, want fired task 1", got[0])
	}
	if got[1].Outcome != storage.OutcomeFailed || got[1].Error != "boom" {
		t.Errorf("second record = %+v, want failed with error", got[1])
	}

	cancel()
	<-done
}

func TestRecorderRingBounded(t *testing.T) {
	rec := New(Config{Keep: 3}, logx.Nop(), eventbus.New(), nil)
	for i := 1; i <= 5; i++ {
		rec.record(context.Background(), storage.RunRecord{TaskID: uint64(i), Outcome: storage.OutcomeFired})
	}
	got := rec.Recent(0)
	if len(got) != 3 {
		t.Fatalf("ring size = %d, want 3", len(got))
	}
	if got[0].TaskID != 3 || got[2].TaskID != 5 {
		t.Errorf("ring keeps %d..%d, want 3..5", got[0].TaskID, got[2].TaskID)
	}
}

func TestRecordDrained(t *testing.T) {
	store := &memStore{}
	rec := New(Config{}, logx.Nop(), eventbus.New(), store)

	tm := wheel.New()
	task, err := tm.AddTask(func() {}, time.Hour)
	if err != nil {
		t.Fatalf("AddTask: %v", err)
	}
	drained := tm.Stop()
	if len(drained) != 1 || drained[0].ID() != task.ID() {
		t.Fatalf("expected the pending task back from Stop, got %v", drained)
	}

	rec.RecordDrained(context.Background(), drained)
	if store.count() != 1 {
		t.Fatalf("stored %d records, want 1", store.count())
	}
	if got := store.recs[0]; got.Outcome != storage.OutcomeDrained || got.TaskID != task.ID() {
		t.Errorf("record = %+v, want drained task %d", got, task.ID())
	}
}
