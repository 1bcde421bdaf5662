package wheel

import (
	"sync"
	"testing"
)

func TestInqueueFIFO(t *testing.T) {
	t.Parallel()
	q := newInqueue()
	for i := uint64(1); i <= 3; i++ {
		if !q.push(&Task{id: i}) {
			t.Fatalf("push %d rejected", i)
		}
	}
	for want := uint64(1); want <= 3; want++ {
		got, ok := q.pop()
		if !ok || got.id != want {
			t.Fatalf("pop = (%v, %v), want id %d", got, ok, want)
		}
	}
	if _, ok := q.pop(); ok {
		t.Fatal("pop on empty queue reported ok")
	}
}

func TestInqueueDrainCloseRejectsLatePush(t *testing.T) {
	t.Parallel()
	q := newInqueue()
	q.push(&Task{id: 1})
	q.push(&Task{id: 2})

	out := q.drainClose()
	if len(out) != 2 {
		t.Fatalf("drainClose returned %d tasks, want 2", len(out))
	}
	if q.push(&Task{id: 3}) {
		t.Fatal("push after drainClose was accepted")
	}
	if got := q.drainClose(); len(got) != 0 {
		t.Fatalf("second drainClose returned %d tasks, want 0", len(got))
	}
}

func TestInqueueConcurrentPushLosesNothing(t *testing.T) {
	t.Parallel()
	const producers, per = 8, 500

	q := newInqueue()
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < per; i++ {
				if !q.push(&Task{}) {
					t.Error("push rejected on open queue")
					return
				}
			}
		}()
	}
	wg.Wait()

	if got := q.len(); got != producers*per {
		t.Fatalf("len = %d, want %d", got, producers*per)
	}
	if got := len(q.drainClose()); got != producers*per {
		t.Fatalf("drained %d, want %d", got, producers*per)
	}
}
