// perfkit - offline analyzer for factory telemetry: perf logs, sample
// snapshots and recipe graphs.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	perrors "github.com/logflow/perfkit/pkg/errors"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

// Global flags
var (
	configPath    string
	logLevel      string
	logFormat     string
	jsonOutput    bool
	xlsxPath      string
	showProgress  bool
	skipMalformed bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps input problems to 2 and everything else to 1.
func exitCode(err error) int {
	switch perrors.GetCode(err) {
	case perrors.CodeSourceUnavailable, perrors.CodeInvalidFormat,
		perrors.CodeMissingRequiredField, perrors.CodeMalformedRecord:
		return 2
	default:
		return 1
	}
}

var rootCmd = &cobra.Command{
	Use:   "perfkit",
	Short: "perfkit - analyze factory telemetry dumps",
	Long: `perfkit analyzes the telemetry a factory-analytics mod writes: the
newline-delimited perf log of tick and sweep records, the sample snapshot
of per-recipe ring buffers and the recipe graph snapshot.

Inputs may be local paths, "-" for stdin, or s3://bucket/key.`,
	Version:       fmt.Sprintf("%s (%s)", version, commit),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "Config file (overrides the search path)")
	pf.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	pf.StringVar(&logFormat, "log-format", "text", "Log format (text, json)")
	pf.BoolVar(&jsonOutput, "json", false, "Print reports as JSON")
	pf.StringVar(&xlsxPath, "xlsx", "", "Also write reports to an Excel workbook")
	pf.BoolVar(&showProgress, "progress", false, "Show read progress on stderr")
	pf.BoolVar(&skipMalformed, "skip-malformed", false, "Skip malformed perf log lines instead of failing")

	rootCmd.AddCommand(perfCmd)
	rootCmd.AddCommand(sweepsCmd)
	rootCmd.AddCommand(saveSizeCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(allCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(configCmd)
}
