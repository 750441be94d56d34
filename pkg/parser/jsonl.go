package parser

import (
	"bufio"
	"bytes"
	"context"
	"io"

	"github.com/goccy/go-json"

	"github.com/logflow/perfkit/internal/model"
	perrors "github.com/logflow/perfkit/pkg/errors"
)

// Result is the outcome of parsing one perf log.
type Result struct {
	model.Stream

	// Lines is the number of physical lines read, blank ones included.
	Lines int

	// Unknown counts records whose discriminant was not recognised.
	Unknown int

	// Skipped holds the malformed-record errors collected in skip mode.
	Skipped perrors.MultiError
}

// JSONLParser decodes a perf log: one JSON object per line, discriminated
// by the "t" field.
type JSONLParser struct {
	cfg Config
}

// NewJSONLParser creates a new perf log parser.
func NewJSONLParser(cfg Config) *JSONLParser {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultConfig().BufferSize
	}
	return &JSONLParser{cfg: cfg}
}

// envelope holds the undecoded discriminant. Any JSON value is accepted
// so that non-string kinds count as unknown rather than malformed.
type envelope struct {
	T json.RawMessage `json:"t"`
}

// kind returns the discriminant when it is a JSON string.
func (e envelope) kind() (model.RecordKind, bool) {
	var s string
	if err := json.Unmarshal(e.T, &s); err != nil {
		return "", false
	}
	return model.RecordKind(s), true
}

// rawRecord uses pointers so absent fields can be told apart from zeros.
type rawRecord struct {
	Tick *int64  `json:"tick"`
	Wait *int64  `json:"wait"`
	Proc *int64  `json:"proc"`
	Cur  *int64  `json:"cur"`
}

// Parse implements the Parser interface.
// In strict mode the first malformed line aborts the parse and the
// returned error carries its line number (see errors.LineOf).
func (p *JSONLParser) Parse(ctx context.Context, r io.Reader) (*Result, error) {
	reader := bufio.NewReaderSize(r, p.cfg.BufferSize)
	res := &Result{}

	for {
		select {
		case <-ctx.Done():
			return nil, perrors.ContextCanceled("parse perf log")
		default:
		}

		line, readErr := reader.ReadBytes('\n')
		if readErr != nil && readErr != io.EOF {
			return nil, perrors.Wrap(readErr, perrors.CodeSourceUnavailable, "read perf log")
		}
		if len(line) == 0 && readErr == io.EOF {
			break
		}
		res.Lines++

		line = bytes.TrimSpace(line)
		if len(line) > 0 {
			if err := p.decodeLine(line, res.Lines, res); err != nil {
				if !p.cfg.SkipMalformed {
					return nil, err
				}
				res.Skipped.Add(err)
			}
			if p.cfg.OnRecord != nil {
				p.cfg.OnRecord(res.Lines)
			}
		}

		if readErr == io.EOF {
			break
		}
	}

	return res, nil
}

func (p *JSONLParser) decodeLine(line []byte, lineNo int, res *Result) error {
	var env envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return perrors.MalformedRecord(lineNo, "invalid json", err)
	}
	if len(env.T) == 0 || bytes.Equal(env.T, []byte("null")) {
		return perrors.MalformedRecord(lineNo, "missing field t", nil)
	}

	kind, ok := env.kind()
	if !ok || (kind != model.KindTick && kind != model.KindSweep) {
		// Forward-compatible: record kinds added later are ignored.
		res.Unknown++
		return nil
	}

	var rec rawRecord
	if err := json.Unmarshal(line, &rec); err != nil {
		return perrors.MalformedRecord(lineNo, "invalid "+string(kind)+" record", err)
	}

	switch kind {
	case model.KindTick:
		ev, err := rec.tick(lineNo)
		if err != nil {
			return err
		}
		res.Ticks = append(res.Ticks, ev)
	case model.KindSweep:
		if rec.Tick == nil {
			return perrors.MalformedRecord(lineNo, "missing field tick", nil)
		}
		if *rec.Tick < 0 {
			return perrors.MalformedRecord(lineNo, "negative tick", nil)
		}
		res.Sweeps = append(res.Sweeps, model.SweepEvent{Tick: *rec.Tick})
	}
	return nil
}

func (rec rawRecord) tick(lineNo int) (model.TickEvent, error) {
	fields := []struct {
		name string
		v    *int64
		min  int64
	}{
		{"tick", rec.Tick, 0},
		{"wait", rec.Wait, 0},
		{"proc", rec.Proc, 0},
		{"cur", rec.Cur, 1},
	}
	for _, f := range fields {
		if f.v == nil {
			return model.TickEvent{}, perrors.MalformedRecord(lineNo, "missing field "+f.name, nil)
		}
		if *f.v < f.min {
			return model.TickEvent{}, perrors.MalformedRecord(lineNo, "field "+f.name+" out of range", nil).
				WithContext("value", *f.v)
		}
	}
	return model.TickEvent{Tick: *rec.Tick, Wait: *rec.Wait, Proc: *rec.Proc, Cur: *rec.Cur}, nil
}

// ParseStream is a convenience wrapper around JSONLParser.
func ParseStream(ctx context.Context, r io.Reader, cfg Config) (*Result, error) {
	return NewJSONLParser(cfg).Parse(ctx, r)
}
