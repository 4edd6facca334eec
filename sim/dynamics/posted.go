package dynamics

import (
	"cmp"

	"github.com/addrummond/heap"

	"github.com/episim/episim/sim"
)

// postedEvent is a fixed-time event waiting in the queue.
type postedEvent struct {
	time       float64
	seq        uint64
	name       string
	fn         sim.PostedEventFunc
	interval   float64 // > 0 re-posts the event after it fires
	background bool    // does not keep the run alive
}

// Cmp orders by time, then by posting order.
func (a *postedEvent) Cmp(b *postedEvent) int {
	if c := cmp.Compare(a.time, b.time); c != 0 {
		return c
	}
	return cmp.Compare(a.seq, b.seq)
}

// postedQueue is a min-heap of posted events with a count of the ones that keep a
// run going.
type postedQueue struct {
	h          heap.Heap[postedEvent, heap.Min]
	seq        uint64
	size       int
	foreground int
}

func (q *postedQueue) push(ev postedEvent) {
	ev.seq = q.seq
	q.seq++
	heap.PushOrderable(&q.h, ev)
	q.size++
	if !ev.background {
		q.foreground++
	}
}

// nextTime returns the time of the earliest queued event.
func (q *postedQueue) nextTime() (float64, bool) {
	ev, ok := heap.Peek(&q.h)
	if !ok {
		return 0, false
	}
	return ev.time, true
}

// popDue removes and returns the earliest event if it is due by t.
func (q *postedQueue) popDue(t float64) (postedEvent, bool) {
	next, ok := q.nextTime()
	if !ok || next > t {
		return postedEvent{}, false
	}
	ev, _ := heap.PopOrderable(&q.h)
	q.size--
	if !ev.background {
		q.foreground--
	}
	return ev, true
}

// pending reports whether any event that keeps the run alive is queued.
func (q *postedQueue) pending() bool {
	return q.foreground > 0
}

func (q *postedQueue) len() int {
	return q.size
}
