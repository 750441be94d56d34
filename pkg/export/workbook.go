// Package export writes analysis reports as an Excel workbook, one sheet
// per report section.
package export

import (
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/logflow/perfkit/pkg/analysis"
	perrors "github.com/logflow/perfkit/pkg/errors"
)

// Sheet names.
const (
	SheetPerf      = "Perf"
	SheetHistogram = "Histogram"
	SheetSweeps    = "Sweeps"
	SheetGaps      = "Gaps"
	SheetDump      = "Dump"
	SheetSaveSize  = "SaveSize"
	SheetGraph     = "Graph"
)

// Reports is the set of reports to export. Nil reports are skipped.
type Reports struct {
	Perf     *analysis.PerfReport
	Dump     *analysis.DumpReport
	SaveSize *analysis.SaveSizeReport
	Graph    *analysis.GraphReport
}

// sheet accumulates rows for one worksheet.
type sheet struct {
	name string
	rows [][]interface{}
}

func (s *sheet) row(cells ...interface{}) { s.rows = append(s.rows, cells) }

// WriteWorkbook writes reports to w as xlsx.
func WriteWorkbook(w io.Writer, reports Reports) error {
	sheets := buildSheets(reports)
	if len(sheets) == 0 {
		return perrors.InvalidArgument("reports", "none", "nothing to export")
	}

	f := excelize.NewFile()
	defer f.Close()

	for i, s := range sheets {
		idx, err := f.NewSheet(s.name)
		if err != nil {
			return perrors.Wrapf(err, perrors.CodeWriteFailed, "create sheet %s", s.name)
		}
		if i == 0 {
			f.SetActiveSheet(idx)
		}
		for r, cells := range s.rows {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			if err != nil {
				return perrors.Wrap(err, perrors.CodeWriteFailed, "cell name")
			}
			if err := f.SetSheetRow(s.name, cell, &cells); err != nil {
				return perrors.Wrapf(err, perrors.CodeWriteFailed, "write sheet %s", s.name)
			}
		}
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return perrors.Wrap(err, perrors.CodeWriteFailed, "remove default sheet")
	}

	if err := f.Write(w); err != nil {
		return perrors.Wrap(err, perrors.CodeWriteFailed, "write workbook")
	}
	return nil
}

func buildSheets(r Reports) []*sheet {
	var out []*sheet
	if r.Perf != nil {
		out = append(out, perfSheets(r.Perf)...)
	}
	if r.Dump != nil {
		out = append(out, dumpSheet(r.Dump))
	}
	if r.SaveSize != nil {
		out = append(out, saveSizeSheet(r.SaveSize))
	}
	if r.Graph != nil {
		out = append(out, graphSheet(r.Graph))
	}
	return out
}

func perfSheets(p *analysis.PerfReport) []*sheet {
	summary := &sheet{name: SheetPerf}
	summary.row("metric", "value")
	summary.row("lines", p.Lines)
	summary.row("ticks", p.Ticks)
	summary.row("sweeps", p.Sweeps)
	summary.row("unknown", p.Unknown)
	summary.row("skipped", len(p.Skipped))
	if p.Wait != nil {
		summary.row("wait_min", p.Wait.Min)
		summary.row("wait_max", p.Wait.Max)
		summary.row("wait_mean", p.Wait.Mean)
		summary.row("wait_stddev", p.Wait.StdDev)
		summary.row("proc_min", p.Proc.Min)
		summary.row("proc_max", p.Proc.Max)
		summary.row("proc_mean", p.Proc.Mean)
	}
	for _, l := range p.Autocorrelation {
		summary.row("wait_autocorr_lag_"+strconv.Itoa(l.Lag), l.Value)
	}

	hist := &sheet{name: SheetHistogram}
	hist.row("lower", "upper", "count")
	for _, b := range p.Histogram {
		hist.row(b.Lower, b.Upper, b.Count)
	}

	sweeps := &sheet{name: SheetSweeps}
	sweeps.row("sweep", "ticks", "start_tick", "avg_wait", "stddev", "min", "max")
	for _, g := range p.SweepGroups {
		sweeps.row(g.Index+1, g.Ticks, g.StartTick, g.Wait.Mean, g.Wait.StdDev, g.Wait.Min, g.Wait.Max)
	}

	gaps := &sheet{name: SheetGaps}
	gaps.row("index", "from", "to", "delta")
	for _, g := range p.Gaps {
		gaps.row(g.Index, g.From, g.To, g.Delta)
	}
	return []*sheet{summary, hist, sweeps, gaps}
}

func dumpSheet(d *analysis.DumpReport) *sheet {
	s := &sheet{name: SheetDump}
	s.row("metric", "value")
	s.row("recipes", d.Recipes)
	s.row("samples", d.Samples)
	s.row("retained", d.Retained)
	s.row("capacity", d.Capacity)
	s.row("evicted", d.Evicted)
	for _, a := range d.Anomalies {
		s.row("anomaly", a.Recipe)
	}
	for _, name := range d.Empty {
		s.row("empty", name)
	}
	return s
}

func saveSizeSheet(r *analysis.SaveSizeReport) *sheet {
	e := r.Estimate
	s := &sheet{name: SheetSaveSize}
	s.row("component", "bytes")
	s.row("tracked_entities", e.TrackedEntities)
	s.row("entity_list", e.EntityList)
	s.row("entity_list_index", e.EntityListIndex)
	s.row("recipe_cache", e.RecipeCache)
	s.row("samples", e.Samples.Total())
	s.row("sample_cursor", e.SampleCursor)
	s.row("total", e.Total())
	s.row()
	s.row("recipe", "samples", "waiting_entries", "bytes")
	for _, c := range e.Samples.PerRecipe {
		s.row(c.Recipe, c.Samples, c.WaitingEntries, c.Total())
	}
	s.row()
	s.row("what_if_capacity", r.WhatIf.ToCapacity)
	s.row("what_if_samples", r.WhatIf.Samples)
	s.row("what_if_total", r.WhatIf.Total)
	return s
}

func graphSheet(g *analysis.GraphReport) *sheet {
	s := &sheet{name: SheetGraph}
	s.row("recipe", "fan_in", "fan_out", "waiting_pct")
	waiting := make(map[string]float64, len(g.Bottlenecks))
	for _, b := range g.Bottlenecks {
		waiting[b.Recipe] = b.WaitingPct
	}
	for _, d := range g.Degrees {
		if pct, ok := waiting[d.Recipe]; ok {
			s.row(d.Recipe, d.FanIn, d.FanOut, pct)
		} else {
			s.row(d.Recipe, d.FanIn, d.FanOut)
		}
	}
	return s
}
