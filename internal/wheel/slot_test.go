package wheel

import (
	"testing"

	logx "wheeld/pkg/logx"
)

// idleDispatcher returns a dispatcher whose run loop is not running, so
// submitted tasks stay observable in its queue.
func idleDispatcher() *dispatcher {
	return newDispatcher(logx.Nop(), nil, nil)
}

func TestSlotFireDueRounds(t *testing.T) {
	t.Parallel()
	s := newSlot()
	due := &Task{id: 1, rounds: 0}
	later := &Task{id: 2, rounds: 2}
	s.add(due)
	s.add(later)

	d := idleDispatcher()
	if fired := s.fireDue(d); fired != 1 {
		t.Fatalf("first pass fired %d, want 1", fired)
	}
	if got, ok := d.q.pop(); !ok || got.id != 1 {
		t.Fatalf("dispatcher got %v, want task 1", got)
	}
	if later.rounds != 1 {
		t.Fatalf("resident task rounds = %d, want 1", later.rounds)
	}

	// Two more passes: decrement to zero, then fire.
	if fired := s.fireDue(d); fired != 0 {
		t.Fatalf("second pass fired %d, want 0", fired)
	}
	if fired := s.fireDue(d); fired != 1 {
		t.Fatalf("third pass fired %d, want 1", fired)
	}
	if s.len() != 0 {
		t.Fatalf("slot still holds %d tasks", s.len())
	}
}

func TestSlotDrainAll(t *testing.T) {
	t.Parallel()
	s := newSlot()
	s.add(&Task{id: 1, rounds: 3})
	s.add(&Task{id: 2})

	out := s.drainAll()
	if len(out) != 2 {
		t.Fatalf("drainAll returned %d, want 2", len(out))
	}
	if s.len() != 0 {
		t.Fatalf("slot not empty after drainAll: %d", s.len())
	}
}
