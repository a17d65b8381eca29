// Package queue provides the thread-safe FIFO used to batch storage writes.
package queue

import "sync"

// Queue is a generic thread-safe FIFO. A bounded queue drops its oldest
// items when a push would exceed the limit.
type Queue[T any] struct {
	mu      sync.Mutex
	items   []T
	limit   int
	dropped uint64
}

// New creates an unbounded queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{}
}

// NewBounded creates a queue holding at most limit items. A limit <= 0 means unbounded.
func NewBounded[T any](limit int) *Queue[T] {
	return &Queue[T]{limit: max(limit, 0)}
}

// Push appends items and returns how many old items were dropped to make room.
func (q *Queue[T]) Push(items ...T) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, items...)
	over := len(q.items) - q.limit
	if q.limit == 0 || over <= 0 {
		return 0
	}
	q.items = q.items[over:]
	q.dropped += uint64(over)
	return over
}

// Requeue puts items back at the front, ahead of anything pushed since they
// were taken. When a bounded queue has no room for all of them the oldest
// requeued items are dropped.
func (q *Queue[T]) Requeue(items ...T) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.limit > 0 {
		room := max(q.limit-len(q.items), 0)
		if excess := len(items) - room; excess > 0 {
			q.dropped += uint64(excess)
			items = items[excess:]
		}
	}
	q.items = append(append(make([]T, 0, len(items)+len(q.items)), items...), q.items...)
}

// Take removes up to n items from the front. n <= 0 takes everything.
// The returned slice is never shared with the queue.
func (q *Queue[T]) Take(n int) []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	if n <= 0 || n >= len(q.items) {
		out := q.items
		q.items = nil
		return out
	}
	out := append([]T(nil), q.items[:n]...)
	q.items = q.items[n:]
	return out
}

// Drain takes every queued item.
func (q *Queue[T]) Drain() []T {
	return q.Take(0)
}

func (q *Queue[T]) Empty() bool {
	return q.Len() == 0
}

func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Dropped counts items a bounded queue has discarded since creation.
func (q *Queue[T]) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
