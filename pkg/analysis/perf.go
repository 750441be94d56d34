package analysis

import (
	"context"
	"io"

	"go.opentelemetry.io/otel/attribute"

	"github.com/logflow/perfkit/internal/model"
	perrors "github.com/logflow/perfkit/pkg/errors"
	"github.com/logflow/perfkit/pkg/parser"
	"github.com/logflow/perfkit/pkg/stats"
	"github.com/logflow/perfkit/pkg/sweep"
)

// SkippedLine is a malformed line dropped in skip mode.
type SkippedLine struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// SweepRow summarises the waits of one reconstructed sweep.
type SweepRow struct {
	Index     int           `json:"index"`
	Ticks     int           `json:"ticks"`
	StartTick int64         `json:"start_tick"`
	Wait      stats.Summary `json:"wait"`
}

// Lag is the wait autocorrelation at one lag.
type Lag struct {
	Lag   int     `json:"lag"`
	Value float64 `json:"value"`
}

// PerfReport is the analysis of one perf log.
type PerfReport struct {
	Lines   int           `json:"lines"`
	Ticks   int           `json:"ticks"`
	Sweeps  int           `json:"sweeps"`
	Unknown int           `json:"unknown"`
	Skipped []SkippedLine `json:"skipped,omitempty"`

	// Wait and Proc are nil when the log holds no tick records.
	Wait *stats.Summary `json:"wait,omitempty"`
	Proc *stats.Summary `json:"proc,omitempty"`

	Head []int64 `json:"head"`
	Tail []int64 `json:"tail"`

	FirstTick      *int64 `json:"first_tick,omitempty"`
	LastTick       *int64 `json:"last_tick,omitempty"`
	FirstSweepTick *int64 `json:"first_sweep_tick,omitempty"`
	LastSweepTick  *int64 `json:"last_sweep_tick,omitempty"`

	BucketWidth int64          `json:"bucket_width"`
	Histogram   []stats.Bucket `json:"histogram"`

	SweepGroups  []SweepRow  `json:"sweep_groups"`
	GapThreshold int64       `json:"gap_threshold"`
	Gaps         []sweep.Gap `json:"gaps"`

	// Autocorrelation is empty unless the wait series is longer than
	// the configured minimum.
	Autocorrelation []Lag `json:"autocorrelation,omitempty"`
}

// ParsePerf decodes a perf log with the configured skip mode.
func (a *Analyzer) ParsePerf(ctx context.Context, r io.Reader) (*parser.Result, error) {
	var res *parser.Result
	err := a.stage(ctx, "parse", func(ctx context.Context) ([]attribute.KeyValue, error) {
		cfg := parser.DefaultConfig()
		cfg.SkipMalformed = a.cfg.SkipMalformed

		var err error
		res, err = parser.ParseStream(ctx, r, cfg)
		if err != nil {
			return nil, err
		}
		return []attribute.KeyValue{
			attribute.Int("lines", res.Lines),
			attribute.Int("ticks", len(res.Ticks)),
			attribute.Int("sweeps", len(res.Sweeps)),
			attribute.Int("skipped", res.Skipped.Len()),
		}, nil
	})
	if err != nil {
		return nil, err
	}

	for _, e := range res.Skipped.Errors {
		line, _ := perrors.LineOf(e)
		a.log.WarnContext(ctx, "skipped malformed record", "line", line, "error", e)
	}
	return res, nil
}

// Perf parses r and builds its report.
func (a *Analyzer) Perf(ctx context.Context, r io.Reader) (*PerfReport, error) {
	res, err := a.ParsePerf(ctx, r)
	if err != nil {
		return nil, err
	}
	return a.BuildPerf(ctx, res)
}

// BuildPerf analyses an already parsed perf log.
func (a *Analyzer) BuildPerf(ctx context.Context, res *parser.Result) (*PerfReport, error) {
	rep := &PerfReport{
		Lines:        res.Lines,
		Ticks:        len(res.Ticks),
		Sweeps:       len(res.Sweeps),
		Unknown:      res.Unknown,
		BucketWidth:  a.cfg.BucketWidth,
		GapThreshold: a.cfg.GapThreshold,
	}
	for _, e := range res.Skipped.Errors {
		line, _ := perrors.LineOf(e)
		rep.Skipped = append(rep.Skipped, SkippedLine{Line: line, Reason: e.Error()})
	}
	if n := len(res.Sweeps); n > 0 {
		rep.FirstSweepTick = int64Ptr(res.Sweeps[0].Tick)
		rep.LastSweepTick = int64Ptr(res.Sweeps[n-1].Tick)
	}

	ticks := res.Ticks
	if len(ticks) == 0 {
		return rep, nil
	}
	rep.FirstTick = int64Ptr(ticks[0].Tick)
	rep.LastTick = int64Ptr(ticks[len(ticks)-1].Tick)

	waits := model.Waits(ticks)
	rep.Head = headOf(waits, a.cfg.Window)
	rep.Tail = tailOf(waits, a.cfg.Window)

	err := a.stage(ctx, "stats", func(ctx context.Context) ([]attribute.KeyValue, error) {
		wait, err := stats.Summarize(waits)
		if err != nil {
			return nil, err
		}
		proc, err := stats.Summarize(model.Procs(ticks))
		if err != nil {
			return nil, err
		}
		rep.Wait, rep.Proc = &wait, &proc

		hist, err := stats.BuildHistogram(waits, a.cfg.BucketWidth)
		if err != nil {
			return nil, err
		}
		rep.Histogram = hist.Sorted()

		if len(waits) > a.cfg.AutocorrelationMinSamples {
			for _, lag := range a.cfg.AutocorrelationLags {
				if lag >= len(waits) {
					continue
				}
				v, err := stats.Autocorrelation(waits, lag)
				if err != nil {
					return nil, err
				}
				rep.Autocorrelation = append(rep.Autocorrelation, Lag{Lag: lag, Value: v})
			}
		}
		return []attribute.KeyValue{attribute.Int("buckets", len(rep.Histogram))}, nil
	})
	if err != nil {
		return nil, err
	}

	err = a.stage(ctx, "sweeps", func(ctx context.Context) ([]attribute.KeyValue, error) {
		groups := sweep.Reconstruct(ticks, a.boundary)
		rep.SweepGroups = make([]SweepRow, 0, len(groups))
		for _, g := range groups {
			s, err := stats.Summarize(g.Waits())
			if err != nil {
				return nil, err
			}
			rep.SweepGroups = append(rep.SweepGroups, SweepRow{
				Index:     g.Index,
				Ticks:     len(g.Events),
				StartTick: g.StartTick(),
				Wait:      s,
			})
		}
		rep.Gaps = sweep.SessionGaps(ticks, a.cfg.GapThreshold)
		return []attribute.KeyValue{
			attribute.Int("groups", len(rep.SweepGroups)),
			attribute.Int("gaps", len(rep.Gaps)),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return rep, nil
}

func int64Ptr(v int64) *int64 { return &v }

func headOf(xs []int64, n int) []int64 {
	if n >= len(xs) {
		return append([]int64(nil), xs...)
	}
	return append([]int64(nil), xs[:n]...)
}

func tailOf(xs []int64, n int) []int64 {
	if n >= len(xs) {
		return append([]int64(nil), xs...)
	}
	return append([]int64(nil), xs[len(xs)-n:]...)
}
