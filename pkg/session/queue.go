package session

import (
	"sync"

	"github.com/umputun/livedash/pkg/domain"
)

type eventKind int

const (
	eventIdentity eventKind = iota + 1
	eventSnapshot
	eventFollow
)

// event is a unit of work for the manager loop
type event struct {
	kind     eventKind
	identity *domain.Identity // eventIdentity, nil clears
	source   IdentitySource   // eventFollow, read when the event is processed
	token    string           // eventSnapshot, token of the delivering subscription
	snap     domain.Snapshot
}

// eventQueue is an unbounded FIFO of events. Producers never block, so store callbacks
// can enqueue from any goroutine while the manager loop dequeues.
type eventQueue struct {
	mu     sync.Mutex
	events []event
	closed bool
	signal chan struct{} // buffered, size 1, closed on Close
}

func newEventQueue() *eventQueue {
	return &eventQueue{events: make([]event, 0, 64), signal: make(chan struct{}, 1)}
}

// Enqueue adds event to the back of the queue, returns false if the queue is closed
func (q *eventQueue) Enqueue(e event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.events = append(q.events, e)
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes the front event without blocking
func (q *eventQueue) TryDequeue() (event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.events) == 0 {
		return event{}, false
	}
	e := q.events[0]
	q.events[0] = event{} // release records of delivered snapshot
	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}
	return e, true
}

// Wait returns a channel signaling that events may be available
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns number of queued events
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Close rejects further events and wakes the waiter, queued events stay available
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}

// Closed reports whether Close was called
func (q *eventQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
