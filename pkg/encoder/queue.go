package encoder

import "sync"

var _ Source = (*Queue)(nil)

// Queue is a Source fed with events that were already decoded elsewhere,
// such as by firmware on the other end of a serial link.
type Queue struct {
	mu     sync.Mutex
	events []Event
	limit  int
}

// NewQueue returns a Queue holding at most limit events. Older events are
// dropped when it is full.
func NewQueue(limit int) *Queue {
	if limit <= 0 {
		limit = 32
	}
	return &Queue{limit: limit}
}

// Push enqueues an event. Consecutive rotations are merged.
func (q *Queue) Push(ev Event) {
	if ev.Kind == None || (ev.Kind == Rotated && ev.Delta == 0) {
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if n := len(q.events); n > 0 && ev.Kind == Rotated && q.events[n-1].Kind == Rotated {
		q.events[n-1].Delta += ev.Delta
		return
	}
	if len(q.events) >= q.limit {
		q.events = q.events[1:]
	}
	q.events = append(q.events, ev)
}

func (q *Queue) Poll() Event {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return Event{}
	}
	ev := q.events[0]
	q.events = q.events[1:]
	return ev
}

// Len returns the number of pending events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}
