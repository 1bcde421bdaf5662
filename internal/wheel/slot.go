package wheel

import clist "container/list"

// slot is one bucket of the wheel. Slots are allocated once at
// construction and mutated only by the scheduling goroutine, so they
// need no locking.
type slot struct {
	tasks *clist.List
}

func newSlot() *slot {
	return &slot{tasks: clist.New()}
}

func (s *slot) add(t *Task) {
	s.tasks.PushBack(t)
}

// fireDue visits every resident task exactly once: tasks whose round
// counter reached zero are removed and handed to the dispatcher, the
// rest get their counter decremented and stay for a later revolution.
// It returns the number of tasks fired.
func (s *slot) fireDue(d *dispatcher) int {
	fired := 0
	for e := s.tasks.Front(); e != nil; {
		t := e.Value.(*Task)
		if t.rounds > 0 {
			t.rounds--
			e = e.Next()
			continue
		}
		next := e.Next()
		s.tasks.Remove(e)
		d.submit(t)
		fired++
		e = next
	}
	return fired
}

// drainAll removes and returns every resident task. Shutdown only.
func (s *slot) drainAll() []*Task {
	out := make([]*Task, 0, s.tasks.Len())
	for e := s.tasks.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(*Task))
	}
	s.tasks.Init()
	return out
}

func (s *slot) len() int { return s.tasks.Len() }
