// Package queue implements the bounded producer/consumer FIFO that sits
// between the I/O reactor and the worker/sender stages: non-blocking
// enqueue at the producer side, blocking dequeue at the consumer side,
// strict FIFO order.
package queue

import "sync"

// Queue is a fixed-capacity FIFO. Enqueue never blocks: it fails (returns
// false) when the queue is full. Dequeue blocks until an item is available
// or the queue is destroyed. A buffered Go channel already provides exactly these
// semantics (bounded capacity, FIFO order, a non-blocking send via
// select/default, a blocking receive with no lost wakeups), so Queue is a
// thin, typed wrapper rather than a hand-rolled mutex+condition-variable
// implementation.
type Queue[T any] struct {
	ch        chan T
	closeOnce sync.Once
}

// New creates a Queue with the given capacity, which must be > 0.
func New[T any](capacity int) *Queue[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue[T]{ch: make(chan T, capacity)}
}

// Enqueue appends item at the tail. It returns false without blocking if the
// queue is already at capacity.
func (q *Queue[T]) Enqueue(item T) bool {
	select {
	case q.ch <- item:
		return true
	default:
		return false
	}
}

// Dequeue removes and returns the head item, blocking while the queue is
// empty. It returns only once an item has actually been enqueued, or, after
// Destroy has closed the queue and it is empty, with the zero value.
func (q *Queue[T]) Dequeue() T {
	return <-q.ch
}

// IsEmpty reports whether the queue currently holds no items.
func (q *Queue[T]) IsEmpty() bool { return len(q.ch) == 0 }

// IsFull reports whether the queue is at capacity.
func (q *Queue[T]) IsFull() bool { return len(q.ch) == cap(q.ch) }

// Len returns the current item count.
func (q *Queue[T]) Len() int { return len(q.ch) }

// Cap returns the fixed capacity.
func (q *Queue[T]) Cap() int { return cap(q.ch) }

// Destroy closes the queue and drains any remaining items, invoking free on
// each (if non-nil). Call it exactly once. A Dequeue blocked concurrently in
// another goroutine is safe: it either wins a remaining item or returns the
// zero value once the channel is closed and empty, which callers use as the
// shutdown signal. Enqueue must not be called after Destroy.
func (q *Queue[T]) Destroy(free func(T)) {
	q.closeOnce.Do(func() { close(q.ch) })
	for item := range q.ch {
		if free != nil {
			free(item)
		}
	}
}
