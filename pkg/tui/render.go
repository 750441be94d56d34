package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/logflow/perfkit/pkg/analysis"
	"github.com/logflow/perfkit/pkg/query/engine"
)

// histogramScale is the number of values per '#' in histogram bars.
const histogramScale = 5

// Renderer writes reports as aligned text.
type Renderer struct {
	w io.Writer
	s styles
}

// NewRenderer creates a renderer writing to w.
func NewRenderer(w io.Writer) *Renderer {
	return &Renderer{w: w, s: newStyles(w)}
}

func (r *Renderer) heading(title string) {
	fmt.Fprintln(r.w)
	fmt.Fprintln(r.w, r.s.accent.Render("▸ "+strings.ToUpper(title)))
}

func (r *Renderer) field(label string, value interface{}) {
	fmt.Fprintf(r.w, "  %s %v\n", r.s.muted.Render(fmt.Sprintf("%-19s", label+":")), value)
}

// Perf renders the full perf log report.
func (r *Renderer) Perf(rep *analysis.PerfReport) {
	r.heading("perf log")
	r.field("Ticks", rep.Ticks)
	r.field("Sweeps", rep.Sweeps)
	if rep.Unknown > 0 {
		r.field("Unknown records", rep.Unknown)
	}
	for _, s := range rep.Skipped {
		fmt.Fprintf(r.w, "  %s line %d: %s\n", r.s.accent.Render("✗"), s.Line, s.Reason)
	}

	if rep.Wait == nil {
		fmt.Fprintln(r.w, r.s.muted.Render("  no tick records"))
		return
	}
	w, p := rep.Wait, rep.Proc
	r.field("Wait", fmt.Sprintf("min=%.0f, max=%.0f, avg=%.1f", w.Min, w.Max, w.Mean))
	r.field("Wait std dev", fmt.Sprintf("%.1f", w.StdDev))
	r.field("Proc", fmt.Sprintf("min=%.0f, max=%.0f, avg=%.1f", p.Min, p.Max, p.Mean))

	r.heading(fmt.Sprintf("first %d tick waits", len(rep.Head)))
	fmt.Fprintf(r.w, "  %v\n", rep.Head)
	r.heading(fmt.Sprintf("last %d tick waits", len(rep.Tail)))
	fmt.Fprintf(r.w, "  %v\n", rep.Tail)

	if rep.FirstSweepTick != nil {
		fmt.Fprintln(r.w)
		fmt.Fprintf(r.w, "  First sweep at tick %d, last at %d\n", *rep.FirstSweepTick, *rep.LastSweepTick)
		fmt.Fprintf(r.w, "  First tick data at %d, last at %d\n", *rep.FirstTick, *rep.LastTick)
	}

	r.heading("wait distribution")
	for _, b := range rep.Histogram {
		fmt.Fprintf(r.w, "  %3d-%3d: %4d %s\n", b.Lower, b.Upper, b.Count, strings.Repeat("#", b.Count/histogramScale))
	}

	r.Sweeps(rep)
}

// Sweeps renders the per-sweep table, session gaps and autocorrelation.
func (r *Renderer) Sweeps(rep *analysis.PerfReport) {
	r.heading("sweeps")
	fmt.Fprintf(r.w, "  Total ticks: %d, Sweeps: %d\n\n", rep.Ticks, len(rep.SweepGroups))
	fmt.Fprintln(r.w, r.s.title.Render(fmt.Sprintf("  %5s %5s %8s %8s %5s %5s %12s",
		"Sweep", "Ticks", "AvgWait", "StdDev", "Min", "Max", "StartTick")))
	fmt.Fprintln(r.w, "  "+strings.Repeat("-", 60))
	for _, g := range rep.SweepGroups {
		fmt.Fprintf(r.w, "  %5d %5d %8.1f %8.1f %5.0f %5.0f %12d\n",
			g.Index+1, g.Ticks, g.Wait.Mean, g.Wait.StdDev, g.Wait.Min, g.Wait.Max, g.StartTick)
	}

	r.heading(fmt.Sprintf("session boundaries (tick gaps > %d)", rep.GapThreshold))
	if len(rep.Gaps) == 0 {
		fmt.Fprintln(r.w, r.s.muted.Render("  none"))
	}
	for _, g := range rep.Gaps {
		fmt.Fprintf(r.w, "  Gap of %d ticks between tick %d and %d\n", g.Delta, g.From, g.To)
	}

	if len(rep.Autocorrelation) > 0 {
		fmt.Fprintln(r.w)
		for _, l := range rep.Autocorrelation {
			fmt.Fprintf(r.w, "  Wait autocorrelation lag-%d: %.3f\n", l.Lag, l.Value)
		}
		fmt.Fprintln(r.w, r.s.muted.Render("  (0 = random, 1 = perfectly correlated)"))
	}
}

// Dump renders the snapshot validation report.
func (r *Renderer) Dump(rep *analysis.DumpReport) {
	r.heading("dump validation")
	r.field("Recipes", rep.Recipes)
	r.field("Total samples", rep.Samples)

	if len(rep.Anomalies) == 0 {
		fmt.Fprintln(r.w, r.s.success.Render("  ✓ No special chars in names"))
	}
	for _, a := range rep.Anomalies {
		fmt.Fprintf(r.w, "  %s special char in name: %s %v\n", r.s.accent.Render("✗"), a.Recipe, a.Chars)
	}

	if len(rep.Empty) == 0 {
		fmt.Fprintln(r.w, r.s.success.Render("  ✓ No empty recipes"))
	} else {
		fmt.Fprintf(r.w, "  %s Empty recipes: %v\n", r.s.accent.Render("!"), rep.Empty)
	}
	if rep.Evicted > 0 {
		fmt.Fprintf(r.w, "  %s %d samples exceed capacity %d and were evicted (%d retained)\n",
			r.s.accent.Render("!"), rep.Evicted, rep.Capacity, rep.Retained)
	}
}

// SaveSize renders the storage-size estimate.
func (r *Renderer) SaveSize(rep *analysis.SaveSizeReport) {
	e := rep.Estimate
	b := e.Samples

	r.heading(fmt.Sprintf("estimated storage (%s entities, capacity %d)", formatNumber(int64(e.EntityCount)), e.Capacity))
	fmt.Fprintf(r.w, "  tracked_entities:  %s\n", formatKB(float64(e.TrackedEntities)))
	fmt.Fprintf(r.w, "  entity_list:       %s\n", formatKB(float64(e.EntityList)))
	fmt.Fprintf(r.w, "  entity_list_index: %s\n", formatKB(float64(e.EntityListIndex)))
	fmt.Fprintf(r.w, "  recipe_cache:      %s  (avg name len %.0f)\n", formatKB(float64(e.RecipeCache)), e.AvgNameLen)
	fmt.Fprintf(r.w, "  samples:           %s  (%d recipes, %d samples, %d waiting entries)\n",
		formatKB(float64(b.Total())), b.Recipes, b.Samples, b.WaitingEntries)
	fmt.Fprintf(r.w, "  sample_cursor:     %s\n", formatKB(float64(e.SampleCursor)))
	fmt.Fprintf(r.w, "  %19s-------\n", "")
	fmt.Fprintf(r.w, "  %s %s  (%s)\n", r.s.title.Render("TOTAL:            "), formatKB(float64(e.Total())), formatBytes(e.Total()))

	r.heading("samples breakdown")
	fmt.Fprintf(r.w, "  recipe keys:       %s\n", formatKB(float64(b.RecipeKeys)))
	fmt.Fprintf(r.w, "  ring buf overhead: %s\n", formatKB(float64(b.RingOverhead)))
	fmt.Fprintf(r.w, "  sample fixed:      %s  (tick + total_machines per sample)\n", formatKB(float64(b.SampleFixed)))
	fmt.Fprintf(r.w, "  waiting tables:    %s  (%d ingredient entries)\n", formatKB(float64(b.Waiting)), b.WaitingEntries)

	p := rep.WhatIf
	r.heading(fmt.Sprintf("with capacity %d", p.ToCapacity))
	fmt.Fprintf(r.w, "  samples would be ~%.1f KB (vs %.1f KB)\n", p.Samples/1024, float64(b.Total())/1024)
	fmt.Fprintf(r.w, "  total would be   ~%.1f KB (vs %.1f KB)\n", p.Total/1024, float64(e.Total())/1024)
	fmt.Fprintln(r.w, r.s.muted.Render("  assumes uniformly sized samples; approximate"))
}

// Graph renders the recipe graph report.
func (r *Renderer) Graph(rep *analysis.GraphReport) {
	r.heading("recipe graph")
	r.field("Recipes", rep.Recipes)
	r.field("Total edges", rep.Edges)
	r.field("Avg edges/recipe", fmt.Sprintf("%.1f", rep.AvgEdges))
	r.field("Hot resources", rep.HotCount)
	for _, h := range rep.Hot {
		fmt.Fprintf(r.w, "    %s: %d producers\n", h.Resource.Key(), h.Producers)
	}

	r.heading("bottlenecks")
	if len(rep.Bottlenecks) == 0 {
		fmt.Fprintln(r.w, r.s.muted.Render("  none"))
	}
	for _, b := range rep.Bottlenecks {
		fmt.Fprintf(r.w, "  %s: %.1f%% waiting\n", b.Recipe, b.WaitingPct)
	}

	r.heading(fmt.Sprintf("top %d ingredients by edge count", len(rep.Ingredients)))
	for _, ing := range rep.Ingredients {
		fmt.Fprintf(r.w, "  %s: %d edges\n", ing.Ingredient, ing.Edges)
	}

	r.heading("top fan-out")
	for _, d := range rep.TopFanOut {
		fmt.Fprintf(r.w, "  %-30s out=%d in=%d\n", d.Recipe, d.FanOut, d.FanIn)
	}
}

// Query renders a query result as a tab-separated table.
func (r *Renderer) Query(res *engine.Result) {
	header := make([]string, len(res.Columns))
	for i, c := range res.Columns {
		header[i] = r.s.title.Render(c)
	}
	fmt.Fprintln(r.w, strings.Join(header, "\t"))
	for _, row := range res.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = fmt.Sprint(v)
		}
		fmt.Fprintln(r.w, strings.Join(cells, "\t"))
	}
	suffix := ""
	if res.Truncated {
		suffix = ", truncated"
	}
	fmt.Fprintln(r.w, r.s.muted.Render(fmt.Sprintf("(%d rows, %s%s)", len(res.Rows), formatDuration(res.Duration), suffix)))
}
