package tui

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logflow/perfkit/internal/model"
	"github.com/logflow/perfkit/pkg/analysis"
	"github.com/logflow/perfkit/pkg/graph"
	"github.com/logflow/perfkit/pkg/query/engine"
	"github.com/logflow/perfkit/pkg/samplestore"
	"github.com/logflow/perfkit/pkg/stats"
	"github.com/logflow/perfkit/pkg/sweep"
)

func ptr(v int64) *int64 { return &v }

func TestRenderer_Perf(t *testing.T) {
	var buf bytes.Buffer
	NewRenderer(&buf).Perf(&analysis.PerfReport{
		Ticks:          4,
		Sweeps:         2,
		Wait:           &stats.Summary{Count: 4, Min: 5, Max: 22, Mean: 14.5, StdDev: 6.5},
		Proc:           &stats.Summary{Count: 4, Min: 0, Max: 3, Mean: 1.5},
		Head:           []int64{5, 12},
		Tail:           []int64{19, 22},
		FirstTick:      ptr(1),
		LastTick:       ptr(2000),
		FirstSweepTick: ptr(0),
		LastSweepTick:  ptr(3),
		Histogram:      []stats.Bucket{{Lower: 10, Upper: 19, Count: 10}},
		SweepGroups:    []analysis.SweepRow{{Index: 0, Ticks: 2, StartTick: 1, Wait: stats.Summary{Min: 5, Max: 12, Mean: 8.5, StdDev: 3.5}}},
		GapThreshold:   1000,
		Gaps:           []sweep.Gap{{Index: 3, From: 3, To: 2000, Delta: 1997}},
		Autocorrelation: []analysis.Lag{{Lag: 1, Value: -0.25}},
	})

	out := buf.String()
	assert.Contains(t, out, "min=5, max=22, avg=14.5")
	assert.Contains(t, out, "[5 12]")
	assert.Contains(t, out, "First sweep at tick 0, last at 3")
	assert.Contains(t, out, " 10- 19:   10 ##")
	assert.Contains(t, out, "Gap of 1997 ticks between tick 3 and 2000")
	assert.Contains(t, out, "lag-1: -0.250")
	assert.NotContains(t, out, "\x1b[")
}

func TestRenderer_PerfEmpty(t *testing.T) {
	var buf bytes.Buffer
	NewRenderer(&buf).Perf(&analysis.PerfReport{})
	assert.Contains(t, buf.String(), "no tick records")
}

func TestRenderer_Dump(t *testing.T) {
	var buf bytes.Buffer
	NewRenderer(&buf).Dump(&analysis.DumpReport{
		Diagnostics: samplestore.Diagnostics{
			Recipes:   2,
			Samples:   5,
			Retained:  2,
			Anomalies: []samplestore.Anomaly{{Recipe: "bad'name", Chars: []string{"'"}}},
			Evicted:   3,
		},
		Capacity: 100,
	})

	out := buf.String()
	assert.Contains(t, out, "special char in name: bad'name")
	assert.Contains(t, out, "No empty recipes")
	assert.Contains(t, out, "3 samples exceed capacity 100 and were evicted (2 retained)")
}

func TestRenderer_SaveSize(t *testing.T) {
	var buf bytes.Buffer
	NewRenderer(&buf).SaveSize(&analysis.SaveSizeReport{
		Estimate: &samplestore.Estimate{
			EntityCount:     10,
			Capacity:        100,
			TrackedEntities: 2048,
			Samples:         samplestore.SampleBreakdown{Outer: 1024, Recipes: 1, Samples: 2},
		},
		WhatIf: samplestore.Projection{ToCapacity: 30, Samples: 307.2, Total: 2355.2},
	})

	out := buf.String()
	assert.Contains(t, out, "tracked_entities:      2.0 KB")
	assert.Contains(t, out, "(1 recipes, 2 samples, 0 waiting entries)")
	assert.Contains(t, out, "WITH CAPACITY 30")
	assert.Contains(t, out, "samples would be ~0.3 KB (vs 1.0 KB)")
}

func TestRenderer_Graph(t *testing.T) {
	var buf bytes.Buffer
	NewRenderer(&buf).Graph(&analysis.GraphReport{
		Metrics: &graph.Metrics{
			Recipes:     3,
			Edges:       2,
			AvgEdges:    2.0 / 3.0,
			HotCount:    1,
			Hot:         []graph.HotResource{{Resource: model.Resource{Type: "item", Name: "plate"}, Producers: 7}},
			Ingredients: []graph.IngredientEdges{{Ingredient: "X", Edges: 2}},
			Bottlenecks: []graph.Bottleneck{{Recipe: "B", WaitingPct: 40}},
			TopFanOut:   []graph.Degree{{Recipe: "A", FanOut: 2}},
		},
	})

	out := buf.String()
	assert.Contains(t, out, "0.7")
	assert.Contains(t, out, "item:plate: 7 producers")
	assert.Contains(t, out, "B: 40.0% waiting")
	assert.Contains(t, out, "X: 2 edges")
}

func TestRenderer_Query(t *testing.T) {
	var buf bytes.Buffer
	NewRenderer(&buf).Query(&engine.Result{
		Columns:   []string{"sweep", "n"},
		Rows:      [][]interface{}{{int64(0), int64(2)}},
		Duration:  3 * time.Millisecond,
		Truncated: true,
	})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "sweep\tn", lines[0])
	assert.Equal(t, "0\t2", lines[1])
	assert.Equal(t, "(1 rows, 3ms, truncated)", lines[2])
}

func TestProgressReader(t *testing.T) {
	var bar bytes.Buffer
	r, done := ProgressReader(strings.NewReader("abcdef"), 6, "reading", &bar)

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	done()
	assert.Equal(t, "abcdef", string(data))
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.5 KB", formatBytes(1536))
	assert.Equal(t, "14.8K", formatNumber(14831))
	assert.Equal(t, "1.5s", formatDuration(1500*time.Millisecond))
}
