// Package analysis runs one analysis invocation end to end: it wires the
// parser, reconstructor, summarizer, sample-store model and graph builder
// together and returns structured reports. Rendering is left to callers.
package analysis

import (
	"context"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/logflow/perfkit/pkg/config"
	"github.com/logflow/perfkit/pkg/sweep"
	"github.com/logflow/perfkit/pkg/telemetry"
)

// Analyzer holds the configuration of one analysis run. It keeps no
// state between calls and is safe for concurrent use.
type Analyzer struct {
	cfg      config.AnalysisConfig
	log      *slog.Logger
	tracer   trace.Tracer
	boundary sweep.BoundaryPredicate
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithLogger sets the logger for stage events.
func WithLogger(l *slog.Logger) Option {
	return func(a *Analyzer) { a.log = l }
}

// WithTracer sets the tracer used for stage spans.
func WithTracer(t trace.Tracer) Option {
	return func(a *Analyzer) { a.tracer = t }
}

// WithBoundary replaces the sweep boundary predicate.
func WithBoundary(pred sweep.BoundaryPredicate) Option {
	return func(a *Analyzer) { a.boundary = pred }
}

// New creates an analyzer. cfg should have passed config.Validate.
func New(cfg config.AnalysisConfig, opts ...Option) *Analyzer {
	a := &Analyzer{
		cfg:      cfg,
		log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		tracer:   telemetry.Tracer(),
		boundary: sweep.CursorReset,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Config returns the analysis parameters.
func (a *Analyzer) Config() config.AnalysisConfig { return a.cfg }

// stage runs fn inside a span named name and logs its completion.
func (a *Analyzer) stage(ctx context.Context, name string, fn func(ctx context.Context) ([]attribute.KeyValue, error)) error {
	start := time.Now()
	ctx, span := a.tracer.Start(ctx, name)

	attrs, err := fn(ctx)
	span.SetAttributes(attrs...)
	telemetry.End(span, err)

	if err != nil {
		a.log.DebugContext(ctx, "stage failed", "stage", name, "error", err)
		return err
	}

	args := []any{"stage", name, "duration", time.Since(start)}
	for _, kv := range attrs {
		args = append(args, string(kv.Key), kv.Value.Emit())
	}
	a.log.DebugContext(ctx, "stage done", args...)
	return nil
}
