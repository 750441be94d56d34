package main

import (
	"context"
	"io"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/logflow/perfkit/pkg/analysis"
	"github.com/logflow/perfkit/pkg/config"
	perrors "github.com/logflow/perfkit/pkg/errors"
	"github.com/logflow/perfkit/pkg/export"
	"github.com/logflow/perfkit/pkg/logging"
	"github.com/logflow/perfkit/pkg/storage"
	"github.com/logflow/perfkit/pkg/storage/s3"
	"github.com/logflow/perfkit/pkg/telemetry"
	"github.com/logflow/perfkit/pkg/tui"
)

// app is the wiring of one invocation.
type app struct {
	cfg      *config.Config
	log      *logging.Logger
	tel      *telemetry.Provider
	opener   *storage.Opener
	analyzer *analysis.Analyzer

	out    io.Writer
	errOut io.Writer
	start  time.Time
}

// newApp loads configuration, applies flag overrides and builds the
// logger, tracer and analyzer.
func newApp(cmd *cobra.Command) (*app, error) {
	m := config.NewManager()
	if err := m.Load(configPath); err != nil {
		return nil, err
	}
	cfg := m.Get()
	applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log, err := logging.New(cmd.ErrOrStderr(), cfg.Logging)
	if err != nil {
		return nil, err
	}

	tel, err := telemetry.Setup(cmd.Context(), telemetry.FromConfig(cfg.Telemetry, version))
	if err != nil {
		log.Close()
		return nil, err
	}

	log.Debug("config loaded", "paths", m.GetPaths(), "command", cmd.Name())

	return &app{
		cfg:    cfg,
		log:    log,
		tel:    tel,
		opener: storage.NewOpener(s3.FromConfig(cfg.Storage.S3)),
		analyzer: analysis.New(cfg.Analysis,
			analysis.WithLogger(log.Logger),
			analysis.WithTracer(tel.Tracer()),
		),
		out:    cmd.OutOrStdout(),
		errOut: cmd.ErrOrStderr(),
		start:  time.Now(),
	}, nil
}

// applyFlags copies explicitly set flags over the loaded config.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	fs := cmd.Flags()
	if fs.Changed("log-level") {
		cfg.Logging.Level = logLevel
	}
	if fs.Changed("log-format") {
		cfg.Logging.Format = logFormat
	}
	if fs.Changed("skip-malformed") {
		cfg.Analysis.SkipMalformed = skipMalformed
	}

	a := &cfg.Analysis
	if fs.Changed("window") {
		a.Window = window
	}
	if fs.Changed("bucket-width") {
		a.BucketWidth = bucketWidth
	}
	if fs.Changed("gap-threshold") {
		a.GapThreshold = gapThreshold
	}
	if fs.Changed("entities") {
		a.EntityCount = entityCount
	}
	if fs.Changed("capacity") {
		a.MaxBufferCapacity = capacity
	}
	if fs.Changed("what-if") {
		a.WhatIfCapacity = whatIfCapacity
	}
	if fs.Changed("hot-threshold") {
		a.HotProducerThreshold = hotThreshold
	}
	if fs.Changed("top-k") {
		a.TopK = topK
	}
}

// close flushes traces and the log file.
func (a *app) close(cmd string, err error) {
	if err != nil {
		a.log.Error("command failed", "command", cmd, "error", err)
	} else {
		a.log.Info("command complete", "command", cmd, "duration", time.Since(a.start))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.tel.Shutdown(ctx); err != nil {
		a.log.Warn("trace shutdown failed", "error", err)
	}
	a.log.Close()
}

// open returns the input at uri, wrapped in a progress bar when asked.
// The returned func releases it.
func (a *app) open(ctx context.Context, uri string) (io.Reader, func(), error) {
	rc, size, err := a.opener.Open(ctx, uri)
	if err != nil {
		return nil, nil, err
	}
	if !showProgress {
		return rc, func() { rc.Close() }, nil
	}
	if size <= 0 {
		size = -1
	}
	r, done := tui.ProgressReader(rc, size, "reading "+filepath.Base(uri), a.errOut)
	return r, func() {
		done()
		rc.Close()
	}, nil
}

// emit prints v as JSON or through render, then writes the workbook if
// one was requested.
func (a *app) emit(v interface{}, render func(*tui.Renderer), reports export.Reports) error {
	if jsonOutput {
		if err := a.writeJSON(v); err != nil {
			return err
		}
	} else {
		render(tui.NewRenderer(a.out))
	}

	if xlsxPath == "" {
		return nil
	}
	w, err := a.opener.Create(xlsxPath)
	if err != nil {
		return err
	}
	if err := export.WriteWorkbook(w, reports); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	a.log.Info("workbook written", "path", xlsxPath)
	return nil
}

func (a *app) writeJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return perrors.Wrap(err, perrors.CodeWriteFailed, "encode report")
	}
	data = append(data, '\n')
	if _, err := a.out.Write(data); err != nil {
		return perrors.Wrap(err, perrors.CodeWriteFailed, "write report")
	}
	return nil
}

// run wraps a command body with app setup and teardown.
func run(body func(ctx context.Context, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		err = body(cmd.Context(), a, args)
		a.close(cmd.Name(), err)
		return err
	}
}
