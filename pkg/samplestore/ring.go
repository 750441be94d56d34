// Package samplestore models the mod's per-recipe sample storage: a
// fixed-capacity ring buffer per recipe, plus the structural checks and
// serialized-size estimates run over a snapshot of it.
package samplestore

import (
	perrors "github.com/logflow/perfkit/pkg/errors"
)

// RingBuffer is a fixed-capacity circular buffer. Once full, each Push
// overwrites the oldest element.
type RingBuffer[T any] struct {
	buf   []T
	head  int // index of the oldest element
	count int

	// total is monotonic and never reset by eviction.
	total int64
}

// NewRingBuffer creates a ring buffer holding at most capacity elements.
func NewRingBuffer[T any](capacity int) (*RingBuffer[T], error) {
	if capacity <= 0 {
		return nil, perrors.InvalidArgument("capacity", capacity, "must be positive")
	}
	return &RingBuffer[T]{buf: make([]T, capacity)}, nil
}

// Push appends v and reports whether an older element was evicted.
func (r *RingBuffer[T]) Push(v T) bool {
	r.total++
	if r.count < len(r.buf) {
		r.buf[(r.head+r.count)%len(r.buf)] = v
		r.count++
		return false
	}
	r.buf[r.head] = v
	r.head = (r.head + 1) % len(r.buf)
	return true
}

// Len returns the number of stored elements. Never exceeds Cap.
func (r *RingBuffer[T]) Len() int { return r.count }

// Cap returns the buffer capacity.
func (r *RingBuffer[T]) Cap() int { return len(r.buf) }

// TotalAdded returns how many elements were ever pushed.
func (r *RingBuffer[T]) TotalAdded() int64 { return r.total }

// Evicted returns how many elements were overwritten.
func (r *RingBuffer[T]) Evicted() int64 { return r.total - int64(r.count) }

// At returns the i-th element in logical order, 0 being the oldest.
func (r *RingBuffer[T]) At(i int) (T, bool) {
	var zero T
	if i < 0 || i >= r.count {
		return zero, false
	}
	return r.buf[(r.head+i)%len(r.buf)], true
}

// Items returns the stored elements oldest first.
func (r *RingBuffer[T]) Items() []T {
	out := make([]T, 0, r.count)
	for i := 0; i < r.count; i++ {
		out = append(out, r.buf[(r.head+i)%len(r.buf)])
	}
	return out
}
