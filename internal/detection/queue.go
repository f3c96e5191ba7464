package detection

import (
	"sync"
	"sync/atomic"
)

// DefaultCapacity bounds how many batches may wait for the consumer.
const DefaultCapacity = 2

// QueueStats is a snapshot of queue counters.
type QueueStats struct {
	// Pushed counts every batch handed to Push.
	Pushed uint64 `json:"pushed"`

	// Evicted counts batches discarded because a newer one arrived before
	// the consumer looked (on Push when full, or on Latest).
	Evicted uint64 `json:"evicted"`

	// Dropped counts batches removed by DropIf (stale for the current frame).
	Dropped uint64 `json:"dropped"`

	// Pending is the queue length at snapshot time.
	Pending int `json:"pending"`
}

// Queue is a small mutex-guarded FIFO of batches, oldest first.
//
// Producers never block beyond the lock. The consumer is driven by frame
// arrival and never waits for a batch: an empty queue means nothing to draw.
type Queue struct {
	mu       sync.Mutex
	batches  []Batch
	capacity int

	pushed  atomic.Uint64
	evicted atomic.Uint64
	dropped atomic.Uint64
}

// NewQueue creates a queue holding at most capacity batches.
func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Queue{
		batches:  make([]Batch, 0, capacity),
		capacity: capacity,
	}
}

// Push appends b, evicting the oldest batch when full.
func (q *Queue) Push(b Batch) {
	q.mu.Lock()
	for len(q.batches) >= q.capacity {
		q.popLocked()
		q.evicted.Add(1)
	}
	q.batches = append(q.batches, b)
	q.mu.Unlock()

	q.pushed.Add(1)
}

// Len returns the number of pending batches.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.batches)
}

// Front returns the oldest pending batch without removing it.
func (q *Queue) Front() (Batch, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.batches) == 0 {
		return Batch{}, false
	}
	return q.batches[0], true
}

// Pop removes and returns the oldest pending batch.
func (q *Queue) Pop() (Batch, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.batches) == 0 {
		return Batch{}, false
	}
	return q.popLocked(), true
}

// Latest collapses the queue to its newest batch and returns it together
// with the number of batches discarded on the way.
func (q *Queue) Latest() (Batch, int, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	evicted := 0
	for len(q.batches) >= 2 {
		q.popLocked()
		evicted++
	}
	if evicted > 0 {
		q.evicted.Add(uint64(evicted))
	}
	if len(q.batches) == 0 {
		return Batch{}, evicted, false
	}
	return q.batches[0], evicted, true
}

// DropIf removes the front batch only if it is still batch id. A batch
// pushed after the caller's decision stays queued.
func (q *Queue) DropIf(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.batches) == 0 || q.batches[0].ID != id {
		return false
	}
	q.popLocked()
	q.dropped.Add(1)
	return true
}

// Stats returns a counter snapshot.
func (q *Queue) Stats() QueueStats {
	return QueueStats{
		Pushed:  q.pushed.Load(),
		Evicted: q.evicted.Load(),
		Dropped: q.dropped.Load(),
		Pending: q.Len(),
	}
}

func (q *Queue) popLocked() Batch {
	b := q.batches[0]
	q.batches[0] = Batch{}
	q.batches = q.batches[1:]
	return b
}
