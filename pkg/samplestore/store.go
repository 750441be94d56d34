package samplestore

import (
	"sort"

	"github.com/logflow/perfkit/internal/model"
)

// DefaultCapacity is the mod's MAX_BUFFER.
const DefaultCapacity = 100

// Store holds one ring buffer per recipe. Buffers are allocated on the
// first sample, so a recipe known only by name owns no buffer.
type Store struct {
	capacity int
	names    []string
	known    map[string]struct{}
	buffers  map[string]*RingBuffer[model.Sample]
	evicted  int64
}

// NewStore creates an empty store with the given ring-buffer capacity.
func NewStore(capacity int) (*Store, error) {
	// Validate once here so Record never fails.
	if _, err := NewRingBuffer[model.Sample](capacity); err != nil {
		return nil, err
	}
	return &Store{
		capacity: capacity,
		known:    make(map[string]struct{}),
		buffers:  make(map[string]*RingBuffer[model.Sample]),
	}, nil
}

// Load builds a store from a snapshot, replaying each recipe's samples in
// order. Samples beyond capacity evict the oldest ones.
func Load(recipes []model.SampleRecipe, capacity int) (*Store, error) {
	s, err := NewStore(capacity)
	if err != nil {
		return nil, err
	}
	for _, r := range recipes {
		s.Declare(r.Name)
		for _, sample := range r.Samples {
			s.Record(r.Name, sample)
		}
	}
	return s, nil
}

// Declare registers a recipe name without allocating a buffer.
func (s *Store) Declare(name string) {
	if _, ok := s.known[name]; ok {
		return
	}
	s.known[name] = struct{}{}
	i := sort.SearchStrings(s.names, name)
	s.names = append(s.names, "")
	copy(s.names[i+1:], s.names[i:])
	s.names[i] = name
}

// Record appends a sample to the recipe's ring buffer.
func (s *Store) Record(name string, sample model.Sample) {
	rb, ok := s.buffers[name]
	if !ok {
		s.Declare(name)
		rb, _ = NewRingBuffer[model.Sample](s.capacity)
		s.buffers[name] = rb
	}
	if rb.Push(sample) {
		s.evicted++
	}
}

// Capacity returns the ring-buffer capacity.
func (s *Store) Capacity() int { return s.capacity }

// Names returns every declared recipe name in sorted order.
func (s *Store) Names() []string {
	return append([]string(nil), s.names...)
}

// Buffer returns the recipe's ring buffer, or nil if it has no samples.
func (s *Store) Buffer(name string) *RingBuffer[model.Sample] {
	return s.buffers[name]
}

// Samples returns the recipe's stored samples oldest first.
func (s *Store) Samples(name string) []model.Sample {
	rb := s.buffers[name]
	if rb == nil {
		return nil
	}
	return rb.Items()
}

// SampleCount returns the number of samples currently stored.
func (s *Store) SampleCount() int {
	var n int
	for _, rb := range s.buffers {
		n += rb.Len()
	}
	return n
}

// TotalAdded returns the number of samples recorded, evicted ones included.
func (s *Store) TotalAdded() int64 {
	var n int64
	for _, rb := range s.buffers {
		n += rb.TotalAdded()
	}
	return n
}

// Evicted returns the number of samples overwritten while loading.
func (s *Store) Evicted() int64 { return s.evicted }

// Recipes returns the snapshot view of the store.
func (s *Store) Recipes() []model.SampleRecipe {
	out := make([]model.SampleRecipe, 0, len(s.names))
	for _, name := range s.names {
		out = append(out, model.SampleRecipe{
			Name:     name,
			Samples:  s.Samples(name),
			Capacity: s.capacity,
		})
	}
	return out
}
