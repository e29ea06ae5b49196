// internal/ring/queue.go
package ring

import (
	"sync/atomic"
)

// Queue is a lock-free single-producer/single-consumer ring buffer.
// Thread-Safety:
//   - TryPush: producer goroutine only
//   - TryPop: consumer goroutine only
//   - Len, Cap: any goroutine (approximate while both sides run)
//
// Overflow: TryPush refuses new items when full, the producer never waits.
type Queue[T any] struct {
	items []T
	mask  uint64
	head  atomic.Uint64 // next slot to read
	tail  atomic.Uint64 // next slot to write
}

// New creates a queue holding at least capacity items.
// Capacity is rounded up to a power of two, minimum 2.
func New[T any](capacity int) *Queue[T] {
	size := uint64(2)
	for size < uint64(max(capacity, 0)) {
		size <<= 1
	}
	return &Queue[T]{
		items: make([]T, size),
		mask:  size - 1,
	}
}

// TryPush appends v. Returns false (and drops v) when the queue is full.
func (q *Queue[T]) TryPush(v T) bool {
	tail := q.tail.Load()
	if tail-q.head.Load() >= uint64(len(q.items)) {
		return false
	}
	q.items[tail&q.mask] = v
	q.tail.Store(tail + 1) // publish after the slot is written
	return true
}

// TryPop removes the oldest item. Returns false when the queue is empty.
func (q *Queue[T]) TryPop() (T, bool) {
	var zero T
	head := q.head.Load()
	if head == q.tail.Load() {
		return zero, false
	}
	idx := head & q.mask
	v := q.items[idx]
	q.items[idx] = zero
	q.head.Store(head + 1)
	return v, true
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	head := q.head.Load()
	tail := q.tail.Load()
	if tail <= head {
		return 0
	}
	return int(tail - head)
}

// Cap returns the fixed capacity.
func (q *Queue[T]) Cap() int {
	return len(q.items)
}
