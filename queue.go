package recipeauth

import "sync"

// event is one entry on the coordinator's queue: either a provider state
// change or a flush marker
type event struct {
	user    *User
	flushed chan struct{}
}

// eventQueue is an unbounded FIFO with a single consumer. push never blocks,
// so identity clients can deliver from inside their own locks.
type eventQueue struct {
	mu     sync.Mutex
	items  []event
	signal chan struct{}
	closed bool
}

func newEventQueue() *eventQueue {
	return &eventQueue{signal: make(chan struct{}, 1)}
}

// push returns false once the queue is closed
func (q *eventQueue) push(e event) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, e)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// next blocks until an event is available. Events queued before close are
// still returned; after that it reports false.
func (q *eventQueue) next() (event, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			e := q.items[0]
			q.items[0] = event{}
			q.items = q.items[1:]
			q.mu.Unlock()
			return e, true
		}
		if q.closed {
			q.mu.Unlock()
			return event{}, false
		}
		q.mu.Unlock()
		<-q.signal
	}
}

func (q *eventQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}
