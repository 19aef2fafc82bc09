// Package buffer provides a small thread-safe circular buffer with
// configurable overflow policies.
//
// Two PlotStream components are built on it: the reactive binding's pending
// rebuild slot (capacity 1, DropOldest — which is exactly "coalesce to the
// most recent snapshot") and the gateway's per-session outbound artifact
// queue (DropOldest, so slow clients always receive the newest frame).
package buffer

import (
	"sync"

	"github.com/c360/plotstream/errors"
)

// OverflowPolicy selects the behavior when writing to a full buffer
type OverflowPolicy int

const (
	// DropOldest evicts the oldest item to make room for the new one
	DropOldest OverflowPolicy = iota
	// DropNewest discards the incoming item
	DropNewest
)

// Stats counts buffer activity since creation
type Stats struct {
	Writes  uint64
	Reads   uint64
	Dropped uint64
}

// Option configures a Ring
type Option[T any] func(*Ring[T])

// WithOverflowPolicy sets the policy applied when the buffer is full
// (default DropOldest)
func WithOverflowPolicy[T any](p OverflowPolicy) Option[T] {
	return func(r *Ring[T]) { r.policy = p }
}

// WithDropCallback registers a callback invoked with each dropped item
func WithDropCallback[T any](cb func(T)) Option[T] {
	return func(r *Ring[T]) { r.dropCallback = cb }
}

// Ring is a fixed-capacity circular buffer
type Ring[T any] struct {
	mu           sync.Mutex
	items        []T
	capacity     int
	size         int
	head         int // next write position
	tail         int // next read position
	policy       OverflowPolicy
	dropCallback func(T)
	stats        Stats
	closed       bool
}

// NewRing creates a circular buffer with the given capacity (minimum 1)
func NewRing[T any](capacity int, opts ...Option[T]) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	r := &Ring[T]{
		items:    make([]T, capacity),
		capacity: capacity,
		policy:   DropOldest,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Write adds an item according to the overflow policy
func (r *Ring[T]) Write(item T) error {
	r.mu.Lock()

	if r.closed {
		r.mu.Unlock()
		return errors.WrapInvalid(errors.ErrAlreadyStopped, "Ring", "Write", "buffer closed")
	}

	var dropped T
	var didDrop bool

	if r.size == r.capacity {
		r.stats.Dropped++
		switch r.policy {
		case DropOldest:
			dropped = r.items[r.tail]
			didDrop = true
			r.tail = (r.tail + 1) % r.capacity
			r.size--
		case DropNewest:
			cb := r.dropCallback
			r.mu.Unlock()
			if cb != nil {
				cb(item)
			}
			return nil
		}
	}

	r.items[r.head] = item
	r.head = (r.head + 1) % r.capacity
	r.size++
	r.stats.Writes++
	cb := r.dropCallback
	r.mu.Unlock()

	if didDrop && cb != nil {
		cb(dropped)
	}
	return nil
}

// Read retrieves and removes the oldest item
func (r *Ring[T]) Read() (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var zero T
	if r.size == 0 {
		return zero, false
	}

	item := r.items[r.tail]
	r.items[r.tail] = zero // clear for GC
	r.tail = (r.tail + 1) % r.capacity
	r.size--
	r.stats.Reads++
	return item, true
}

// Peek returns the oldest item without removing it
func (r *Ring[T]) Peek() (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var zero T
	if r.size == 0 {
		return zero, false
	}
	return r.items[r.tail], true
}

// Size returns the current number of buffered items
func (r *Ring[T]) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}

// Capacity returns the fixed buffer capacity
func (r *Ring[T]) Capacity() int {
	return r.capacity
}

// Stats returns a copy of the activity counters
func (r *Ring[T]) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// Clear removes all buffered items
func (r *Ring[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	var zero T
	for i := range r.items {
		r.items[i] = zero
	}
	r.head, r.tail, r.size = 0, 0, 0
}

// Close marks the buffer closed; subsequent writes fail
func (r *Ring[T]) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
}
