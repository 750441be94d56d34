package samplestore

import (
	perrors "github.com/logflow/perfkit/pkg/errors"
)

// DefaultEntityCount is the tracked-entity count of the reference save.
const DefaultEntityCount = 14831

// Field names as they appear in the mod's storage tables.
const (
	fieldBuffer        = "buffer"
	fieldTick          = "tick"
	fieldTotalMachines = "total_machines"
	fieldWaiting       = "waiting"
)

// Estimator computes serialized-size estimates of the mod's storage.
type Estimator struct {
	// Model prices individual fields. Nil selects LuaCostModel.
	Model CostModel

	// EntityCount drives the fixed-size entity index structures.
	EntityCount int
}

// NewEstimator creates an estimator with the default cost model.
func NewEstimator(entityCount int) *Estimator {
	return &Estimator{Model: LuaCostModel(), EntityCount: entityCount}
}

// RecipeCost is the sample-store cost attributed to one recipe.
type RecipeCost struct {
	Recipe         string `json:"recipe"`
	Samples        int    `json:"samples"`
	WaitingEntries int    `json:"waiting_entries"`
	Key            int64  `json:"key"`
	RingOverhead   int64  `json:"ring_overhead"`
	SampleFixed    int64  `json:"sample_fixed"`
	Waiting        int64  `json:"waiting"`
}

// Total returns the recipe's bytes across all components.
func (c RecipeCost) Total() int64 {
	return c.Key + c.RingOverhead + c.SampleFixed + c.Waiting
}

// SampleBreakdown splits the sample store by component.
type SampleBreakdown struct {
	Outer          int64 `json:"outer"`
	RecipeKeys     int64 `json:"recipe_keys"`
	RingOverhead   int64 `json:"ring_overhead"`
	SampleFixed    int64 `json:"sample_fixed"`
	Waiting        int64 `json:"waiting"`
	Recipes        int   `json:"recipes"`
	Samples        int   `json:"samples"`
	WaitingEntries int   `json:"waiting_entries"`

	PerRecipe []RecipeCost `json:"per_recipe"`
}

// Total returns the sample store size.
func (b SampleBreakdown) Total() int64 {
	return b.Outer + b.RecipeKeys + b.RingOverhead + b.SampleFixed + b.Waiting
}

// Estimate is the cost breakdown per logical store, in bytes.
type Estimate struct {
	EntityCount int `json:"entity_count"`
	Capacity    int `json:"capacity"`

	TrackedEntities int64 `json:"tracked_entities"`
	EntityList      int64 `json:"entity_list"`
	EntityListIndex int64 `json:"entity_list_index"`
	RecipeCache     int64 `json:"recipe_cache"`
	SampleCursor    int64 `json:"sample_cursor"`

	// AvgNameLen is the mean recipe-name length feeding RecipeCache.
	AvgNameLen float64 `json:"avg_name_len"`

	Samples SampleBreakdown `json:"samples"`
}

// Total returns the sum over all stores.
func (e Estimate) Total() int64 {
	return e.TrackedEntities + e.EntityList + e.EntityListIndex +
		e.RecipeCache + e.Samples.Total() + e.SampleCursor
}

// Estimate prices the store. The result depends on the samples actually
// stored, not on the store's capacity.
func (est *Estimator) Estimate(s *Store) (*Estimate, error) {
	if est.EntityCount < 0 {
		return nil, perrors.InvalidArgument("entity count", est.EntityCount, "must not be negative")
	}
	model := est.Model
	if model == nil {
		model = LuaCostModel()
	}
	p := pricer{m: model}
	n := int64(est.EntityCount)

	e := &Estimate{
		EntityCount: est.EntityCount,
		Capacity:    s.Capacity(),
		// { [unit_number] = entity_ref }
		TrackedEntities: p.table() + n*(p.num()+p.entityRef()+p.entry()),
		// { unit_number, ... }
		EntityList: p.table() + n*(p.num()+p.entry()),
		// { [unit_number] = index }
		EntityListIndex: p.table() + n*(p.num()+p.num()+p.entry()),
		SampleCursor:    p.num(),
	}

	// { [unit_number] = recipe_name | false }, priced at the mean name
	// length truncated to whole bytes.
	names := s.Names()
	if len(names) > 0 {
		var total int
		for _, name := range names {
			total += len(name)
		}
		e.AvgNameLen = float64(total) / float64(len(names))
	}
	e.RecipeCache = p.table() + n*(p.num()+p.strLen(int(e.AvgNameLen))+p.entry())

	e.Samples = est.sampleBreakdown(p, s, names)
	return e, nil
}

// { [recipe_name] = { buffer = {...}, head = N, count = N } }
func (est *Estimator) sampleBreakdown(p pricer, s *Store, names []string) SampleBreakdown {
	b := SampleBreakdown{Outer: p.table()}

	ringOverhead := p.table() + 3*(p.str(fieldBuffer)+p.entry()) + 2*p.num()
	sampleFixed := p.table() + p.entry() +
		p.str(fieldTick) + p.num() + p.entry() +
		p.str(fieldTotalMachines) + p.num() + p.entry()

	for _, name := range names {
		rb := s.Buffer(name)
		if rb == nil || rb.Len() == 0 {
			continue
		}

		rc := RecipeCost{
			Recipe:       name,
			Samples:      rb.Len(),
			Key:          p.str(name) + p.entry(),
			RingOverhead: ringOverhead,
			SampleFixed:  int64(rb.Len()) * sampleFixed,
		}
		for _, sample := range rb.Items() {
			if !sample.HasWaiting() {
				continue
			}
			rc.Waiting += p.str(fieldWaiting) + p.table() + p.entry()
			for ingredient := range sample.Waiting {
				rc.Waiting += p.str(ingredient) + p.num() + p.entry()
				rc.WaitingEntries++
			}
		}

		b.Recipes++
		b.Samples += rc.Samples
		b.WaitingEntries += rc.WaitingEntries
		b.RecipeKeys += rc.Key
		b.RingOverhead += rc.RingOverhead
		b.SampleFixed += rc.SampleFixed
		b.Waiting += rc.Waiting
		b.PerRecipe = append(b.PerRecipe, rc)
	}
	return b
}

// Projection is a what-if estimate at a different ring-buffer capacity.
//
// It scales the sample store by ToCapacity/FromCapacity, assuming every
// sample costs the same. Samples with and without waiting tables differ
// in size, so this is an approximation for capacity planning only.
type Projection struct {
	FromCapacity int     `json:"from_capacity"`
	ToCapacity   int     `json:"to_capacity"`
	Ratio        float64 `json:"ratio"`
	Samples      float64 `json:"samples"`
	Total        float64 `json:"total"`
}

// WhatIf projects e to capacity.
func WhatIf(e *Estimate, capacity int) (Projection, error) {
	if capacity <= 0 {
		return Projection{}, perrors.InvalidArgument("what-if capacity", capacity, "must be positive")
	}
	if e.Capacity <= 0 {
		return Projection{}, perrors.InvalidArgument("capacity", e.Capacity, "must be positive")
	}

	ratio := float64(capacity) / float64(e.Capacity)
	samples := float64(e.Samples.Total())
	return Projection{
		FromCapacity: e.Capacity,
		ToCapacity:   capacity,
		Ratio:        ratio,
		Samples:      samples * ratio,
		Total:        float64(e.Total()) - samples + samples*ratio,
	}, nil
}
