package analysis

import (
	"context"
	"io"

	"go.opentelemetry.io/otel/attribute"

	"github.com/logflow/perfkit/pkg/samplestore"
	"github.com/logflow/perfkit/pkg/snapshot"
)

// DumpReport is the structural check of a sample snapshot.
type DumpReport struct {
	samplestore.Diagnostics

	Capacity int `json:"capacity"`
}

// SaveSizeReport is the storage-size estimate of a sample snapshot.
type SaveSizeReport struct {
	Estimate *samplestore.Estimate  `json:"estimate"`
	WhatIf   samplestore.Projection `json:"what_if"`

	// Diagnostics travel with the estimate; anomalies never stop it.
	Diagnostics samplestore.Diagnostics `json:"diagnostics"`
}

// LoadSamples decodes a sample snapshot into a store at the configured
// capacity.
func (a *Analyzer) LoadSamples(ctx context.Context, r io.Reader) (*samplestore.Store, error) {
	var store *samplestore.Store
	err := a.stage(ctx, "load_samples", func(ctx context.Context) ([]attribute.KeyValue, error) {
		snap, err := snapshot.DecodeSamples(r)
		if err != nil {
			return nil, err
		}
		store, err = samplestore.Load(snap.Recipes, a.cfg.MaxBufferCapacity)
		if err != nil {
			return nil, err
		}
		return []attribute.KeyValue{
			attribute.Int("recipes", len(store.Names())),
			attribute.Int("samples", store.SampleCount()),
			attribute.Int64("evicted", store.Evicted()),
		}, nil
	})
	return store, err
}

// Dump validates a sample snapshot.
func (a *Analyzer) Dump(ctx context.Context, r io.Reader) (*DumpReport, error) {
	store, err := a.LoadSamples(ctx, r)
	if err != nil {
		return nil, err
	}
	d := a.diagnose(ctx, store)
	return &DumpReport{Diagnostics: d, Capacity: store.Capacity()}, nil
}

// SaveSize estimates the serialized size of a sample snapshot and
// projects it to the configured what-if capacity.
func (a *Analyzer) SaveSize(ctx context.Context, r io.Reader) (*SaveSizeReport, error) {
	store, err := a.LoadSamples(ctx, r)
	if err != nil {
		return nil, err
	}
	return a.BuildSaveSize(ctx, store)
}

// BuildSaveSize estimates an already loaded store.
func (a *Analyzer) BuildSaveSize(ctx context.Context, store *samplestore.Store) (*SaveSizeReport, error) {
	rep := &SaveSizeReport{Diagnostics: a.diagnose(ctx, store)}
	err := a.stage(ctx, "estimate", func(ctx context.Context) ([]attribute.KeyValue, error) {
		est, err := samplestore.NewEstimator(a.cfg.EntityCount).Estimate(store)
		if err != nil {
			return nil, err
		}
		proj, err := samplestore.WhatIf(est, a.cfg.WhatIfCapacity)
		if err != nil {
			return nil, err
		}
		rep.Estimate, rep.WhatIf = est, proj
		return []attribute.KeyValue{attribute.Int64("total_bytes", est.Total())}, nil
	})
	if err != nil {
		return nil, err
	}
	return rep, nil
}

func (a *Analyzer) diagnose(ctx context.Context, store *samplestore.Store) samplestore.Diagnostics {
	d := samplestore.Validate(store)
	for _, an := range d.Anomalies {
		a.log.WarnContext(ctx, "recipe name has special characters", "recipe", an.Recipe, "chars", an.Chars)
	}
	if len(d.Empty) > 0 {
		a.log.WarnContext(ctx, "recipes without samples", "count", len(d.Empty))
	}
	if d.Evicted > 0 {
		a.log.WarnContext(ctx, "samples evicted at capacity", "evicted", d.Evicted, "capacity", store.Capacity())
	}
	return d
}
