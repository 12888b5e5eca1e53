package link

import "sync/atomic"

const queueSize = 16 // power of two

// Queue carries events from the BLE stack interrupt to the main loop. It is
// safe for exactly one producer and one consumer running concurrently,
// which on a microcontroller means an interrupt handler and the main loop.
type Queue struct {
	buf     [queueSize]Event
	head    atomic.Uint32 // next slot to read, written by the consumer
	tail    atomic.Uint32 // next slot to write, written by the producer
	dropped atomic.Uint32
}

// Push adds an event. It returns false and counts the event as dropped if
// the queue is full.
func (q *Queue) Push(ev Event) bool {
	tail := q.tail.Load()
	if tail-q.head.Load() == queueSize {
		q.dropped.Add(1)
		return false
	}
	q.buf[tail%queueSize] = ev
	q.tail.Store(tail + 1)
	return true
}

// Pop removes the oldest event.
func (q *Queue) Pop() (Event, bool) {
	head := q.head.Load()
	if head == q.tail.Load() {
		return EventIgnored, false
	}
	ev := q.buf[head%queueSize]
	q.head.Store(head + 1)
	return ev, true
}

// Len returns the number of queued events.
func (q *Queue) Len() int {
	return int(q.tail.Load() - q.head.Load())
}

// Dropped returns the number of events lost to a full queue.
func (q *Queue) Dropped() uint32 {
	return q.dropped.Load()
}

// Drain pops every queued event and passes it to handler. Events pushed
// while draining are handled in the same call.
func (q *Queue) Drain(handler func(Event)) int {
	n := 0
	for {
		ev, ok := q.Pop()
		if !ok {
			return n
		}
		handler(ev)
		n++
	}
}
