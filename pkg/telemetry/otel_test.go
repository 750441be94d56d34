package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/logflow/perfkit/pkg/config"
)

func TestProvider_RecordsSpans(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	p, err := NewProvider(OTLPConfig{ServiceName: "perfkit-test", SamplingRatio: 1}, sdktrace.WithSyncer(exp))
	require.NoError(t, err)

	ctx, span := p.Tracer().Start(context.Background(), "parse")
	_, child := p.Tracer().Start(ctx, "reconstruct")
	End(child, nil)
	End(span, errors.New("boom"))

	spans := exp.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "reconstruct", spans[0].Name)
	assert.Equal(t, "parse", spans[1].Name)
	assert.Equal(t, codes.Error, spans[1].Status.Code)
	assert.Equal(t, spans[1].SpanContext.SpanID(), spans[0].Parent.SpanID())

	require.NoError(t, p.Shutdown(context.Background()))
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestProvider_NeverSample(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	p, err := NewProvider(OTLPConfig{ServiceName: "perfkit-test"}, sdktrace.WithSyncer(exp))
	require.NoError(t, err)

	_, span := p.Tracer().Start(context.Background(), "dropped")
	End(span, nil)
	assert.Empty(t, exp.GetSpans())
}

func TestSetup_Disabled(t *testing.T) {
	p, err := Setup(context.Background(), FromConfig(config.Default().Telemetry, "test"))
	require.NoError(t, err)

	_, span := Tracer().Start(context.Background(), "noop")
	assert.False(t, span.SpanContext().IsValid())
	End(span, nil)
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestAttr(t *testing.T) {
	assert.Equal(t, attribute.String("k", "v"), Attr("k", "v"))
	assert.Equal(t, attribute.Int("k", 3), Attr("k", 3))
	assert.Equal(t, attribute.Int64("k", 3), Attr("k", int64(3)))
	assert.Equal(t, attribute.Bool("k", true), Attr("k", true))
	assert.Equal(t, attribute.String("k", "[1 2]"), Attr("k", []int{1, 2}))
}
