package link

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestQueueOrderAndCapacity(t *testing.T) {
	c := qt.New(t)
	var q Queue

	_, ok := q.Pop()
	c.Assert(ok, qt.IsFalse)

	for i := 0; i < queueSize; i++ {
		c.Assert(q.Push(Event(i%int(numEvents))), qt.IsTrue)
	}
	c.Assert(q.Push(EventStackReady), qt.IsFalse)
	c.Assert(q.Dropped(), qt.Equals, uint32(1))
	c.Assert(q.Len(), qt.Equals, queueSize)

	for i := 0; i < queueSize; i++ {
		ev, ok := q.Pop()
		c.Assert(ok, qt.IsTrue)
		c.Assert(ev, qt.Equals, Event(i%int(numEvents)))
	}
	c.Assert(q.Len(), qt.Equals, 0)
}

func TestQueueWrapsAround(t *testing.T) {
	c := qt.New(t)
	var q Queue
	for round := 0; round < 5*queueSize; round++ {
		c.Assert(q.Push(EventDisconnected), qt.IsTrue)
		c.Assert(q.Push(EventConnectRequested), qt.IsTrue)
		ev, _ := q.Pop()
		c.Assert(ev, qt.Equals, EventDisconnected)
		ev, _ = q.Pop()
		c.Assert(ev, qt.Equals, EventConnectRequested)
	}
	c.Assert(q.Dropped(), qt.Equals, uint32(0))
}

func TestQueueDrainSeesEventsPushedByHandler(t *testing.T) {
	c := qt.New(t)
	var q Queue
	q.Push(EventStackReady)
	var got []Event
	n := q.Drain(func(ev Event) {
		got = append(got, ev)
		if ev == EventStackReady {
			q.Push(EventConnectRequested)
		}
	})
	c.Assert(n, qt.Equals, 2)
	c.Assert(got, qt.DeepEquals, []Event{EventStackReady, EventConnectRequested})
}

func TestQueueConcurrentProducer(t *testing.T) {
	c := qt.New(t)
	var q Queue
	const total = 10000
	go func() {
		for i := 0; i < total; {
			if q.Push(Event(i % 3)) {
				i++
			}
		}
	}()
	for i := 0; i < total; {
		ev, ok := q.Pop()
		if !ok {
			continue
		}
		c.Assert(ev, qt.Equals, Event(i%3))
		i++
	}
}
