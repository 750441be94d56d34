// Package parser decodes the newline-delimited perf log written by the
// monitored mod into typed tick and sweep events.
package parser

import (
	"context"
	"io"
)

// Parser defines the interface for decoding a perf log stream.
type Parser interface {
	// Parse consumes r completely and returns the decoded stream.
	Parse(ctx context.Context, r io.Reader) (*Result, error)
}

// Config holds parser configuration.
type Config struct {
	// BufferSize is the size of the read buffer in bytes.
	BufferSize int

	// SkipMalformed switches from abort-on-first-error to collecting
	// malformed lines in Result.Skipped and continuing.
	SkipMalformed bool

	// OnRecord, if set, is called after every non-blank line with the
	// 1-based line number. Used for progress reporting.
	OnRecord func(line int)
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BufferSize: 64 * 1024,
	}
}
