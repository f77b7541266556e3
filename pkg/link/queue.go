// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import "sync"

// Queue is an unbounded FIFO for one producer and one consumer
type Queue[T any] struct {
	mu        sync.Mutex
	items     []T
	ready     chan struct{}
	done      chan struct{}
	closed    bool
	closeOnce sync.Once
}

// NewQueue creates an empty queue
func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// Put appends an item. It returns false once the queue is closed.
func (q *Queue[T]) Put(item T) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, item)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
	return true
}

// TryGet removes the oldest item without blocking
func (q *Queue[T]) TryGet() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pop()
}

// Get blocks until an item is available. It returns false when the queue
// is closed; items still queued at that point are abandoned.
func (q *Queue[T]) Get() (T, bool) {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			var zero T
			return zero, false
		}
		item, ok := q.pop()
		q.mu.Unlock()
		if ok {
			return item, true
		}

		select {
		case <-q.ready:
		case <-q.done:
		}
	}
}

// pop must be called with mu held
func (q *Queue[T]) pop() (T, bool) {
	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	item := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	return item, true
}

// Len returns the number of queued items
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close wakes a blocked Get and rejects further Puts
func (q *Queue[T]) Close() {
	q.closeOnce.Do(func() {
		q.mu.Lock()
		q.closed = true
		q.mu.Unlock()
		close(q.done)
	})
}
