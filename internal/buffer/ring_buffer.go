// Package buffer provides a bounded, thread-safe ring of recent items.
package buffer

import (
	"sync"
)

// Ring is a thread-safe circular buffer that keeps the most recent items up
// to a fixed capacity. When the ring is full, the oldest item is discarded to
// make room for a new one.
type Ring[T any] struct {
	items    []T
	start    int
	size     int
	capacity int
	mu       sync.RWMutex
}

// NewRing creates a new Ring with the specified capacity.
// The capacity must be greater than 0; if not, it defaults to 1.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Ring[T]{
		items:    make([]T, capacity),
		capacity: capacity,
	}
}

// Push appends an item, discarding the oldest one when the ring is full.
func (r *Ring[T]) Push(item T) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.size < r.capacity {
		r.items[(r.start+r.size)%r.capacity] = item
		r.size++
		return
	}

	r.items[r.start] = item
	r.start = (r.start + 1) % r.capacity
}

// Newest returns up to n items, most recent first. n <= 0 returns every item.
func (r *Ring[T]) Newest(n int) []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if n <= 0 || n > r.size {
		n = r.size
	}
	out := make([]T, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, r.items[(r.start+r.size-1-i)%r.capacity])
	}
	return out
}

// Find returns the most recent item matching pred.
func (r *Ring[T]) Find(pred func(T) bool) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := r.size - 1; i >= 0; i-- {
		item := r.items[(r.start+i)%r.capacity]
		if pred(item) {
			return item, true
		}
	}
	var zero T
	return zero, false
}

// RemoveFunc deletes every item matching pred, keeping the order of the rest,
// and returns how many were removed.
func (r *Ring[T]) RemoveFunc(pred func(T) bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := make([]T, r.capacity)
	n := 0
	for i := 0; i < r.size; i++ {
		item := r.items[(r.start+i)%r.capacity]
		if !pred(item) {
			kept[n] = item
			n++
		}
	}

	removed := r.size - n
	r.items = kept
	r.start = 0
	r.size = n
	return removed
}

// Clear removes every item from the ring.
func (r *Ring[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items = make([]T, r.capacity)
	r.start = 0
	r.size = 0
}

// Len returns the current number of items in the ring.
func (r *Ring[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.size
}

// Cap returns the capacity of the ring.
func (r *Ring[T]) Cap() int {
	return r.capacity
}
