// Package queue provides an unbounded FIFO used between the socket read loops,
// the dispatcher and the event archive. Producers never block: the ring
// doubles once it is 70% full.
package queue

import (
	"context"
	"sync"
)

// growThresholdPct is the fill level that triggers a doubling.
const growThresholdPct = 70

// Growable is a thread-safe FIFO ring buffer that grows on demand.
type Growable[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	ring   []T
	head   int // next read
	tail   int // next write
	count  int
	closed bool

	// Stats
	pushed    int64
	popped    int64
	resizes   int
	highWater int
}

// NewGrowable creates a queue with the given initial capacity.
func NewGrowable[T any](initialCapacity int) *Growable[T] {
	if initialCapacity < 1 {
		initialCapacity = 1
	}
	q := &Growable[T]{ring: make([]T, initialCapacity)}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends an item. It returns false once the queue is closed.
func (q *Growable[T]) Push(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	threshold := max(len(q.ring)*growThresholdPct/100, 1)
	if q.count+1 >= threshold {
		q.growLocked()
	}

	q.ring[q.tail] = item
	q.tail = (q.tail + 1) % len(q.ring)
	q.count++
	q.pushed++
	q.highWater = max(q.highWater, q.count)

	q.cond.Signal()
	return true
}

// Pop blocks until an item is available. It returns false when the queue is
// closed and drained.
func (q *Growable[T]) Pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.count == 0 && !q.closed {
		q.cond.Wait()
	}
	if q.count == 0 {
		var zero T
		return zero, false
	}
	return q.popLocked(), true
}

// PopContext is Pop that also gives up when ctx ends.
func (q *Growable[T]) PopContext(ctx context.Context) (T, bool) {
	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		q.cond.Broadcast()
		q.mu.Unlock()
	})
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()

	for q.count == 0 && !q.closed && ctx.Err() == nil {
		q.cond.Wait()
	}
	if q.count == 0 || ctx.Err() != nil {
		var zero T
		return zero, false
	}
	return q.popLocked(), true
}

// TryPop returns an item without blocking.
func (q *Growable[T]) TryPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == 0 {
		var zero T
		return zero, false
	}
	return q.popLocked(), true
}

// Drain removes up to limit items (all if limit <= 0).
func (q *Growable[T]) Drain(limit int) []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := q.count
	if limit > 0 && limit < n {
		n = limit
	}
	if n == 0 {
		return nil
	}
	out := make([]T, n)
	for i := range out {
		out[i] = q.popLocked()
	}
	return out
}

// Close stops accepting items. Consumers still receive what is queued.
func (q *Growable[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.cond.Broadcast()
}

// Len returns the number of queued items.
func (q *Growable[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Stats is a queue snapshot.
type Stats struct {
	Queued    int   `json:"queued"`
	Capacity  int   `json:"capacity"`
	Pushed    int64 `json:"pushed"`
	Popped    int64 `json:"popped"`
	Resizes   int   `json:"resizes"`
	HighWater int   `json:"high_water"`
}

// Stats returns queue statistics.
func (q *Growable[T]) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		Queued:    q.count,
		Capacity:  len(q.ring),
		Pushed:    q.pushed,
		Popped:    q.popped,
		Resizes:   q.resizes,
		HighWater: q.highWater,
	}
}

// popLocked removes the head item (caller must hold lock, count > 0).
func (q *Growable[T]) popLocked() T {
	item := q.ring[q.head]
	var zero T
	q.ring[q.head] = zero
	q.head = (q.head + 1) % len(q.ring)
	q.count--
	q.popped++
	return item
}

// growLocked doubles the ring, unwrapping it to start at index 0
// (caller must hold lock).
func (q *Growable[T]) growLocked() {
	next := make([]T, len(q.ring)*2)
	if q.count > 0 {
		if q.head < q.tail {
			copy(next, q.ring[q.head:q.tail])
		} else {
			n := copy(next, q.ring[q.head:])
			copy(next[n:], q.ring[:q.tail])
		}
	}
	q.ring = next
	q.head = 0
	q.tail = q.count
	q.resizes++
}
