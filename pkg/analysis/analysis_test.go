package analysis

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/logflow/perfkit/internal/model"
	"github.com/logflow/perfkit/pkg/config"
	perrors "github.com/logflow/perfkit/pkg/errors"
	"github.com/logflow/perfkit/pkg/stats"
	"github.com/logflow/perfkit/pkg/sweep"
	"github.com/logflow/perfkit/pkg/telemetry"
)

const perfLog = `{"t":"sw","tick":0}
{"t":"tk","tick":1,"wait":5,"proc":2,"cur":1}
{"t":"tk","tick":2,"wait":12,"proc":3,"cur":2}
{"t":"tk","tick":3,"wait":19,"proc":1,"cur":1}
{"t":"sw","tick":3}
{"t":"tk","tick":2000,"wait":22,"proc":0,"cur":2}
{"t":"xx"}
`

func TestPerf(t *testing.T) {
	cfg := config.Default().Analysis
	cfg.Window = 2

	exp := tracetest.NewInMemoryExporter()
	p, err := telemetry.NewProvider(telemetry.OTLPConfig{ServiceName: "test", SamplingRatio: 1}, sdktrace.WithSyncer(exp))
	require.NoError(t, err)

	rep, err := New(cfg, WithTracer(p.Tracer())).Perf(context.Background(), strings.NewReader(perfLog))
	require.NoError(t, err)

	assert.Equal(t, 7, rep.Lines)
	assert.Equal(t, 4, rep.Ticks)
	assert.Equal(t, 2, rep.Sweeps)
	assert.Equal(t, 1, rep.Unknown)

	require.NotNil(t, rep.Wait)
	assert.Equal(t, 5.0, rep.Wait.Min)
	assert.Equal(t, 22.0, rep.Wait.Max)
	assert.InDelta(t, 14.5, rep.Wait.Mean, 1e-12)
	assert.Equal(t, 0.0, rep.Proc.Min)

	assert.Equal(t, []int64{5, 12}, rep.Head)
	assert.Equal(t, []int64{19, 22}, rep.Tail)
	assert.Equal(t, int64(1), *rep.FirstTick)
	assert.Equal(t, int64(2000), *rep.LastTick)
	assert.Equal(t, int64(0), *rep.FirstSweepTick)
	assert.Equal(t, int64(3), *rep.LastSweepTick)

	assert.Equal(t, []stats.Bucket{
		{Lower: 0, Upper: 9, Count: 1},
		{Lower: 10, Upper: 19, Count: 2},
		{Lower: 20, Upper: 29, Count: 1},
	}, rep.Histogram)

	require.Len(t, rep.SweepGroups, 2)
	assert.Equal(t, 2, rep.SweepGroups[0].Ticks)
	assert.Equal(t, int64(1), rep.SweepGroups[0].StartTick)
	assert.InDelta(t, 8.5, rep.SweepGroups[0].Wait.Mean, 1e-12)
	assert.Equal(t, int64(3), rep.SweepGroups[1].StartTick)
	assert.InDelta(t, 20.5, rep.SweepGroups[1].Wait.Mean, 1e-12)

	assert.Equal(t, []sweep.Gap{{Index: 3, From: 3, To: 2000, Delta: 1997}}, rep.Gaps)
	assert.Empty(t, rep.Autocorrelation)

	var names []string
	for _, s := range exp.GetSpans() {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"parse", "stats", "sweeps"}, names)
}

func TestPerf_Autocorrelation(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 12; i++ {
		fmt.Fprintf(&b, `{"t":"tk","tick":%d,"wait":%d,"proc":0,"cur":%d}`+"\n", i, (i%2)*10, i+1)
	}

	rep, err := New(config.Default().Analysis).Perf(context.Background(), strings.NewReader(b.String()))
	require.NoError(t, err)

	require.Len(t, rep.Autocorrelation, 2)
	assert.Equal(t, 1, rep.Autocorrelation[0].Lag)
	assert.InDelta(t, -1.0, rep.Autocorrelation[0].Value, 1e-12)
	assert.Equal(t, 2, rep.Autocorrelation[1].Lag)
	assert.InDelta(t, 1.0, rep.Autocorrelation[1].Value, 1e-12)
	assert.Len(t, rep.SweepGroups, 1)
}

func TestPerf_Malformed(t *testing.T) {
	log := "{\"t\":\"tk\",\"tick\":1,\"wait\":1,\"proc\":1,\"cur\":1}\n{not json}\n"

	_, err := New(config.Default().Analysis).Perf(context.Background(), strings.NewReader(log))
	require.Error(t, err)
	assert.ErrorIs(t, err, perrors.ErrMalformedRecord)
	line, ok := perrors.LineOf(err)
	assert.True(t, ok)
	assert.Equal(t, 2, line)

	cfg := config.Default().Analysis
	cfg.SkipMalformed = true
	rep, err := New(cfg).Perf(context.Background(), strings.NewReader(log))
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Ticks)
	require.Len(t, rep.Skipped, 1)
	assert.Equal(t, 2, rep.Skipped[0].Line)
}

func TestPerf_NoTicks(t *testing.T) {
	rep, err := New(config.Default().Analysis).Perf(context.Background(), strings.NewReader(`{"t":"sw","tick":9}`))
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Ticks)
	assert.Nil(t, rep.Wait)
	assert.Nil(t, rep.FirstTick)
	assert.Equal(t, int64(9), *rep.LastSweepTick)
	assert.Empty(t, rep.SweepGroups)
}

func TestPerf_CustomBoundary(t *testing.T) {
	log := `{"t":"tk","tick":1,"wait":1,"proc":0,"cur":3}
{"t":"tk","tick":2,"wait":1,"proc":0,"cur":4}
{"t":"tk","tick":3,"wait":1,"proc":0,"cur":3}
`
	everyThird := func(ev model.TickEvent) bool { return ev.Cur == 3 }
	rep, err := New(config.Default().Analysis, WithBoundary(everyThird)).Perf(context.Background(), strings.NewReader(log))
	require.NoError(t, err)
	assert.Len(t, rep.SweepGroups, 2)
}

const sampleDoc = `{"recipes": {
	"gear": [
		{"tick": 60, "total_machines": 4},
		{"tick": 120, "total_machines": 4, "w": {"iron-plate": 3}}
	],
	"empty'one": []
}}`

func TestDump(t *testing.T) {
	rep, err := New(config.Default().Analysis).Dump(context.Background(), strings.NewReader(sampleDoc))
	require.NoError(t, err)

	assert.Equal(t, 2, rep.Recipes)
	assert.Equal(t, int64(2), rep.Samples)
	assert.Equal(t, []string{"empty'one"}, rep.Empty)
	require.Len(t, rep.Anomalies, 1)
	assert.Equal(t, "empty'one", rep.Anomalies[0].Recipe)
	assert.Equal(t, 100, rep.Capacity)
	assert.Zero(t, rep.Evicted)
}

func TestSaveSize(t *testing.T) {
	cfg := config.Default().Analysis
	cfg.EntityCount = 10

	rep, err := New(cfg).SaveSize(context.Background(), strings.NewReader(sampleDoc))
	require.NoError(t, err)

	assert.Equal(t, int64(1125), rep.Estimate.Total())
	assert.Equal(t, int64(292), rep.Estimate.Samples.Total())
	assert.Equal(t, 30, rep.WhatIf.ToCapacity)
	assert.InDelta(t, 920.6, rep.WhatIf.Total, 1e-9)
	assert.False(t, rep.Diagnostics.OK())
}

func TestSaveSize_MissingField(t *testing.T) {
	_, err := New(config.Default().Analysis).SaveSize(context.Background(),
		strings.NewReader(`{"recipes": {"gear": [{"tick": 1}]}}`))
	assert.ErrorIs(t, err, perrors.ErrMissingRequiredField)
}

func TestGraph(t *testing.T) {
	doc := `{"recipes": {
		"A": {"ingredients": [], "products": [{"type": "item", "name": "X"}]},
		"B": {"ingredients": [{"type": "item", "name": "X"}], "products": [{"type": "item", "name": "Y"}], "waiting_pct": 12.5},
		"C": {"ingredients": [{"type": "item", "name": "X"}], "products": [{"type": "item", "name": "Z"}]}
	}}`

	rep, err := New(config.Default().Analysis).Graph(context.Background(), strings.NewReader(doc))
	require.NoError(t, err)

	assert.Equal(t, 3, rep.Recipes)
	assert.Equal(t, 2, rep.Edges)
	assert.InDelta(t, 2.0/3.0, rep.AvgEdges, 1e-12)
	require.Len(t, rep.Bottlenecks, 1)
	assert.Equal(t, "B", rep.Bottlenecks[0].Recipe)
	require.Len(t, rep.Degrees, 3)
	assert.Equal(t, "A", rep.Degrees[0].Recipe)
}

func TestGraph_Empty(t *testing.T) {
	_, err := New(config.Default().Analysis).Graph(context.Background(), strings.NewReader(`{"recipes": {}}`))
	assert.ErrorIs(t, err, perrors.ErrEmptySeries)
}
