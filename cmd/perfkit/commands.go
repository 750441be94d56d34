package main

import (
	"context"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/logflow/perfkit/pkg/analysis"
	perrors "github.com/logflow/perfkit/pkg/errors"
	"github.com/logflow/perfkit/pkg/export"
	"github.com/logflow/perfkit/pkg/query/engine"
	"github.com/logflow/perfkit/pkg/sweep"
	"github.com/logflow/perfkit/pkg/tui"
)

// Analysis flags. They override the config only when set.
var (
	window         int
	bucketWidth    int64
	gapThreshold   int64
	entityCount    int
	capacity       int
	whatIfCapacity int
	hotThreshold   int
	topK           int

	// All flags
	perfInput    string
	samplesInput string
	graphInput   string
	allWorkers   int

	// Query flags
	queryLimit int
)

var perfCmd = &cobra.Command{
	Use:   "perf <perf-log>",
	Short: "Summarize a perf log",
	Long: `Summarize the wait and proc columns of a perf log, the wait histogram,
reconstructed sweeps, session gaps and wait autocorrelation.

Examples:
  perfkit perf perf.jsonl
  perfkit perf --bucket-width 25 --json perf.jsonl
  cat perf.jsonl | perfkit perf -`,
	Args: cobra.ExactArgs(1),
	RunE: run(runPerf),
}

var sweepsCmd = &cobra.Command{
	Use:   "sweeps <perf-log>",
	Short: "Show per-sweep statistics and session gaps",
	Long: `Group tick records into sweeps (a sweep ends when the cursor resets to 1)
and report each sweep's wait statistics, plus gaps between ticks larger
than the gap threshold.

Examples:
  perfkit sweeps perf.jsonl
  perfkit sweeps --gap-threshold 300 s3://dumps/perf.jsonl`,
	Args: cobra.ExactArgs(1),
	RunE: run(runSweeps),
}

var saveSizeCmd = &cobra.Command{
	Use:   "savesize <samples-snapshot>",
	Short: "Estimate the serialized size of a sample snapshot",
	Long: `Estimate how many bytes the mod's persistent stores take when
serialized, per store, with a what-if projection at another ring-buffer
capacity.

Examples:
  perfkit savesize samples.json
  perfkit savesize --entities 20000 --what-if 50 samples.json`,
	Args: cobra.ExactArgs(1),
	RunE: run(runSaveSize),
}

var validateCmd = &cobra.Command{
	Use:   "validate <samples-snapshot>",
	Short: "Check a sample snapshot for anomalies",
	Long: `Check a sample snapshot's structure and report recipe names with
special characters, recipes without samples, and samples evicted at the
configured capacity.`,
	Args: cobra.ExactArgs(1),
	RunE: run(runValidate),
}

var graphCmd = &cobra.Command{
	Use:   "graph <graph-snapshot>",
	Short: "Analyze a recipe dependency graph",
	Long: `Build the producer/consumer graph of a recipe snapshot and report
edge counts, hot resources, bottlenecks, ingredient concentration and
fan-out.

Examples:
  perfkit graph graph.json
  perfkit graph --top-k 5 --xlsx graph.xlsx graph.json`,
	Args: cobra.ExactArgs(1),
	RunE: run(runGraph),
}

var allCmd = &cobra.Command{
	Use:   "all",
	Short: "Run every analysis whose input is given",
	Long: `Run the perf, sample and graph analyses concurrently, one pipeline per
input, and print the reports in that order.

Examples:
  perfkit all --perf perf.jsonl --samples samples.json --graph graph.json
  perfkit all --perf perf.jsonl --samples samples.json --xlsx report.xlsx`,
	Args: cobra.NoArgs,
	RunE: run(runAll),
}

var queryCmd = &cobra.Command{
	Use:   "query <perf-log> <sql>",
	Short: "Run SQL over a perf log",
	Long: `Load the ticks and sweeps of a perf log into an in-memory DuckDB and run
a SQL statement over them.

Tables:
  ticks(seq, tick, wait, proc, cur, sweep)
  sweeps(seq, tick)

Examples:
  perfkit query perf.jsonl "SELECT sweep, avg(wait) FROM ticks GROUP BY sweep ORDER BY sweep"
  perfkit query --limit 10 perf.jsonl "SELECT * FROM ticks ORDER BY wait DESC"`,
	Args: cobra.ExactArgs(2),
	RunE: run(runQuery),
}

func init() {
	for _, cmd := range []*cobra.Command{perfCmd, sweepsCmd, allCmd} {
		cmd.Flags().IntVar(&window, "window", 60, "Leading/trailing wait values to show")
		cmd.Flags().Int64Var(&bucketWidth, "bucket-width", 10, "Wait histogram bucket width")
		cmd.Flags().Int64Var(&gapThreshold, "gap-threshold", 1000, "Session gap threshold in ticks")
	}
	for _, cmd := range []*cobra.Command{saveSizeCmd, validateCmd, allCmd} {
		cmd.Flags().IntVar(&capacity, "capacity", 100, "Declared ring-buffer capacity")
	}
	for _, cmd := range []*cobra.Command{saveSizeCmd, allCmd} {
		cmd.Flags().IntVar(&entityCount, "entities", 14831, "Tracked entity count")
		cmd.Flags().IntVar(&whatIfCapacity, "what-if", 30, "Capacity for the what-if projection")
	}
	for _, cmd := range []*cobra.Command{graphCmd, allCmd} {
		cmd.Flags().IntVar(&hotThreshold, "hot-threshold", 5, "Producer count above which a resource is hot")
		cmd.Flags().IntVar(&topK, "top-k", 15, "Ingredients to list by edge count")
	}

	allCmd.Flags().StringVar(&perfInput, "perf", "", "Perf log input")
	allCmd.Flags().StringVar(&samplesInput, "samples", "", "Sample snapshot input")
	allCmd.Flags().StringVar(&graphInput, "graph", "", "Graph snapshot input")
	allCmd.Flags().IntVar(&allWorkers, "workers", 3, "Pipelines to run at once")

	queryCmd.Flags().IntVar(&queryLimit, "limit", 1000, "Maximum rows to return (0 for no limit)")
}

func (a *app) perfReport(ctx context.Context, uri string) (*analysis.PerfReport, error) {
	r, done, err := a.open(ctx, uri)
	if err != nil {
		return nil, err
	}
	defer done()
	return a.analyzer.Perf(ctx, r)
}

func runPerf(ctx context.Context, a *app, args []string) error {
	rep, err := a.perfReport(ctx, args[0])
	if err != nil {
		return err
	}
	return a.emit(rep, func(r *tui.Renderer) { r.Perf(rep) }, export.Reports{Perf: rep})
}

// sweepsView is the JSON shape of the sweeps command.
type sweepsView struct {
	Ticks           int                 `json:"ticks"`
	SweepGroups     []analysis.SweepRow `json:"sweep_groups"`
	GapThreshold    int64               `json:"gap_threshold"`
	Gaps            []sweep.Gap         `json:"gaps"`
	Autocorrelation []analysis.Lag      `json:"autocorrelation,omitempty"`
}

func runSweeps(ctx context.Context, a *app, args []string) error {
	rep, err := a.perfReport(ctx, args[0])
	if err != nil {
		return err
	}
	view := sweepsView{
		Ticks:           rep.Ticks,
		SweepGroups:     rep.SweepGroups,
		GapThreshold:    rep.GapThreshold,
		Gaps:            rep.Gaps,
		Autocorrelation: rep.Autocorrelation,
	}
	return a.emit(view, func(r *tui.Renderer) { r.Sweeps(rep) }, export.Reports{Perf: rep})
}

func (a *app) saveSizeReport(ctx context.Context, uri string) (*analysis.SaveSizeReport, *analysis.DumpReport, error) {
	r, done, err := a.open(ctx, uri)
	if err != nil {
		return nil, nil, err
	}
	defer done()

	store, err := a.analyzer.LoadSamples(ctx, r)
	if err != nil {
		return nil, nil, err
	}
	rep, err := a.analyzer.BuildSaveSize(ctx, store)
	if err != nil {
		return nil, nil, err
	}
	return rep, &analysis.DumpReport{Diagnostics: rep.Diagnostics, Capacity: store.Capacity()}, nil
}

func runSaveSize(ctx context.Context, a *app, args []string) error {
	rep, dump, err := a.saveSizeReport(ctx, args[0])
	if err != nil {
		return err
	}
	return a.emit(rep, func(r *tui.Renderer) { r.SaveSize(rep) }, export.Reports{SaveSize: rep, Dump: dump})
}

func runValidate(ctx context.Context, a *app, args []string) error {
	r, done, err := a.open(ctx, args[0])
	if err != nil {
		return err
	}
	defer done()

	rep, err := a.analyzer.Dump(ctx, r)
	if err != nil {
		return err
	}
	return a.emit(rep, func(r *tui.Renderer) { r.Dump(rep) }, export.Reports{Dump: rep})
}

func (a *app) graphReport(ctx context.Context, uri string) (*analysis.GraphReport, error) {
	r, done, err := a.open(ctx, uri)
	if err != nil {
		return nil, err
	}
	defer done()
	return a.analyzer.Graph(ctx, r)
}

func runGraph(ctx context.Context, a *app, args []string) error {
	rep, err := a.graphReport(ctx, args[0])
	if err != nil {
		return err
	}
	return a.emit(rep, func(r *tui.Renderer) { r.Graph(rep) }, export.Reports{Graph: rep})
}

// allView is the JSON shape of the all command.
type allView struct {
	Perf     *analysis.PerfReport     `json:"perf,omitempty"`
	Dump     *analysis.DumpReport     `json:"dump,omitempty"`
	SaveSize *analysis.SaveSizeReport `json:"save_size,omitempty"`
	Graph    *analysis.GraphReport    `json:"graph,omitempty"`
}

func runAll(ctx context.Context, a *app, _ []string) error {
	if perfInput == "" && samplesInput == "" && graphInput == "" {
		return perrors.InvalidArgument("inputs", "none", "give at least one of --perf, --samples, --graph")
	}
	if allWorkers < 1 {
		return perrors.InvalidArgument("workers", allWorkers, "must be at least 1")
	}

	var view allView
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(allWorkers)

	if perfInput != "" {
		g.Go(func() error {
			rep, err := a.perfReport(ctx, perfInput)
			view.Perf = rep
			return err
		})
	}
	if samplesInput != "" {
		g.Go(func() error {
			rep, dump, err := a.saveSizeReport(ctx, samplesInput)
			view.SaveSize, view.Dump = rep, dump
			return err
		})
	}
	if graphInput != "" {
		g.Go(func() error {
			rep, err := a.graphReport(ctx, graphInput)
			view.Graph = rep
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	render := func(r *tui.Renderer) {
		if view.Perf != nil {
			r.Perf(view.Perf)
		}
		if view.Dump != nil {
			r.Dump(view.Dump)
		}
		if view.SaveSize != nil {
			r.SaveSize(view.SaveSize)
		}
		if view.Graph != nil {
			r.Graph(view.Graph)
		}
	}
	return a.emit(view, render, export.Reports{
		Perf:     view.Perf,
		Dump:     view.Dump,
		SaveSize: view.SaveSize,
		Graph:    view.Graph,
	})
}

func runQuery(ctx context.Context, a *app, args []string) error {
	r, done, err := a.open(ctx, args[0])
	if err != nil {
		return err
	}
	res, err := a.analyzer.ParsePerf(ctx, r)
	done()
	if err != nil {
		return err
	}

	eng, err := engine.NewEngine(ctx)
	if err != nil {
		return err
	}
	defer eng.Close()

	if err := eng.Load(ctx, res.Stream, sweep.CursorReset); err != nil {
		return err
	}
	out, err := eng.Query(ctx, args[1], queryLimit)
	if err != nil {
		return err
	}
	a.log.Debug("query done", "rows", len(out.Rows), "duration", out.Duration, "truncated", out.Truncated)

	if jsonOutput {
		return a.writeJSON(out)
	}
	tui.NewRenderer(a.out).Query(out)
	return nil
}
