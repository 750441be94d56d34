package analysis

import (
	"context"
	"io"

	"go.opentelemetry.io/otel/attribute"

	"github.com/logflow/perfkit/pkg/graph"
	"github.com/logflow/perfkit/pkg/snapshot"
)

// GraphReport is the structural analysis of a recipe graph snapshot.
type GraphReport struct {
	*graph.Metrics

	// Degrees lists every recipe, highest fan-out first.
	Degrees []graph.Degree `json:"degrees"`
}

// Graph decodes a recipe graph snapshot and computes its metrics.
func (a *Analyzer) Graph(ctx context.Context, r io.Reader) (*GraphReport, error) {
	var rep *GraphReport
	err := a.stage(ctx, "graph", func(ctx context.Context) ([]attribute.KeyValue, error) {
		snap, err := snapshot.DecodeGraph(r)
		if err != nil {
			return nil, err
		}
		g := graph.Build(snap.Recipes)
		m, err := g.Metrics(graph.Options{
			HotThreshold: a.cfg.HotProducerThreshold,
			HotTopK:      a.cfg.HotTopK,
			TopK:         a.cfg.TopK,
		})
		if err != nil {
			return nil, err
		}
		rep = &GraphReport{Metrics: m, Degrees: g.Degrees()}
		return []attribute.KeyValue{
			attribute.Int("recipes", m.Recipes),
			attribute.Int("edges", m.Edges),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return rep, nil
}
