package wheel

import (
	clist "container/list"
	"sync"
)

// inqueue is the hand-off structure between producer goroutines and the
// single consumer that owns it (the scheduling goroutine for the inbound
// queue, the dispatcher goroutine for its run queue).
//
// It is closeable: drainClose atomically takes every queued task and
// rejects all later pushes. That closes the shutdown race: a producer
// that raced Stop() gets a false return and can surface ErrTimerStopped
// instead of silently losing the task.
type inqueue struct {
	mu     sync.Mutex
	tasks  *clist.List
	closed bool
}

func newInqueue() *inqueue {
	return &inqueue{tasks: clist.New()}
}

// push appends a task. It returns false once the queue has been closed;
// the task was not enqueued.
func (q *inqueue) push(t *Task) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.tasks.PushBack(t)
	q.mu.Unlock()
	return true
}

// pop removes the oldest task. ok is false when the queue is empty.
func (q *inqueue) pop() (t *Task, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	front := q.tasks.Front()
	if front == nil {
		return nil, false
	}
	q.tasks.Remove(front)
	return front.Value.(*Task), true
}

func (q *inqueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.tasks.Len()
}

// drainClose removes and returns every queued task and permanently
// closes the queue. Used only during shutdown.
func (q *inqueue) drainClose() []*Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	out := make([]*Task, 0, q.tasks.Len())
	for e := q.tasks.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(*Task))
	}
	q.tasks.Init()
	return out
}
