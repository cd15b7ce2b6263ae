// Package queue hands events from the producer goroutine to the broadcaster.
//
// The queue is bounded and never blocks either side. When it is full the
// incoming event is dropped and everything already queued is left alone:
// fresh frames matter more than a complete history.
package queue

import (
	"sync/atomic"

	"leap-relay-go/internal/metrics"
	"leap-relay-go/internal/types"
)

// DefaultCapacity bounds memory when no explicit size is configured.
const DefaultCapacity = 1024

type Stats struct {
	Enqueued uint64 `json:"enqueued"`
	Dequeued uint64 `json:"dequeued"`
	Dropped  uint64 `json:"dropped"`
	Pending  int    `json:"pending"`
	Capacity int    `json:"capacity"`
}

type Queue struct {
	ch       chan types.Event
	enqueued atomic.Uint64
	dequeued atomic.Uint64
	dropped  atomic.Uint64
}

func New(capacity int) *Queue {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Queue{ch: make(chan types.Event, capacity)}
}

// Enqueue offers event without blocking. It returns false when the queue is
// full, in which case event is discarded.
func (q *Queue) Enqueue(event types.Event) bool {
	select {
	case q.ch <- event:
		q.enqueued.Add(1)
		metrics.QueueEnqueuedTotal.Inc()
		return true
	default:
		q.dropped.Add(1)
		metrics.QueueDroppedTotal.Inc()
		return false
	}
}

// TryDequeue returns the oldest pending event, or ok=false when empty.
func (q *Queue) TryDequeue() (types.Event, bool) {
	select {
	case event := <-q.ch:
		q.dequeued.Add(1)
		return event, true
	default:
		return types.Event{}, false
	}
}

func (q *Queue) Len() int {
	return len(q.ch)
}

func (q *Queue) Cap() int {
	return cap(q.ch)
}

func (q *Queue) Stats() Stats {
	return Stats{
		Enqueued: q.enqueued.Load(),
		Dequeued: q.dequeued.Load(),
		Dropped:  q.dropped.Load(),
		Pending:  len(q.ch),
		Capacity: cap(q.ch),
	}
}
