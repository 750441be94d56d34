package parser

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/logflow/perfkit/internal/model"
	perrors "github.com/logflow/perfkit/pkg/errors"
)

func TestJSONLParser_Parse(t *testing.T) {
	input := `{"t":"tk","tick":100,"wait":3,"proc":20,"cur":1}
{"t":"tk","tick":101,"wait":5,"proc":20,"cur":21}

{"t":"sw","tick":102}
   {"t":"tk","tick":102,"wait":0,"proc":20,"cur":1}
`
	res, err := ParseStream(context.Background(), strings.NewReader(input), DefaultConfig())
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if len(res.Ticks) != 3 {
		t.Fatalf("Expected 3 ticks, got %d", len(res.Ticks))
	}
	if len(res.Sweeps) != 1 {
		t.Fatalf("Expected 1 sweep, got %d", len(res.Sweeps))
	}

	want := model.TickEvent{Tick: 101, Wait: 5, Proc: 20, Cur: 21}
	if res.Ticks[1] != want {
		t.Errorf("Ticks[1] = %+v, want %+v", res.Ticks[1], want)
	}
	if res.Sweeps[0].Tick != 102 {
		t.Errorf("Sweeps[0].Tick = %d, want 102", res.Sweeps[0].Tick)
	}
	if res.Lines != 5 {
		t.Errorf("Lines = %d, want 5", res.Lines)
	}
}

func TestJSONLParser_NoTrailingNewline(t *testing.T) {
	input := `{"t":"sw","tick":1}` + "\n" + `{"t":"sw","tick":2}`
	res, err := ParseStream(context.Background(), strings.NewReader(input), DefaultConfig())
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(res.Sweeps) != 2 {
		t.Errorf("Expected 2 sweeps, got %d", len(res.Sweeps))
	}
}

func TestJSONLParser_UnknownKindIgnored(t *testing.T) {
	input := `{"t":"tk","tick":1,"wait":0,"proc":1,"cur":1}
{"t":"gc","tick":2,"heap":12345}
{"t":"sw","tick":3}
`
	res, err := ParseStream(context.Background(), strings.NewReader(input), DefaultConfig())
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if res.Unknown != 1 {
		t.Errorf("Unknown = %d, want 1", res.Unknown)
	}
	if len(res.Ticks) != 1 || len(res.Sweeps) != 1 {
		t.Errorf("got %d ticks, %d sweeps; want 1, 1", len(res.Ticks), len(res.Sweeps))
	}
}

func TestJSONLParser_NonStringKindIgnored(t *testing.T) {
	input := `{"t":"sw","tick":0}
{"t":7,"tick":2}
{"t":["tk"],"tick":3}
{"t":{"k":"sw"}}
{"t":"xx","tick":"not a number"}
{"t":"tk","tick":4,"wait":1,"proc":1,"cur":1}
`
	res, err := ParseStream(context.Background(), strings.NewReader(input), DefaultConfig())
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if res.Unknown != 4 {
		t.Errorf("Unknown = %d, want 4", res.Unknown)
	}
	if len(res.Ticks) != 1 || len(res.Sweeps) != 1 {
		t.Errorf("got %d ticks, %d sweeps; want 1, 1", len(res.Ticks), len(res.Sweeps))
	}
}

func TestJSONLParser_MalformedStrict(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"invalid json", `{"t":"tk","tick":`},
		{"missing discriminant", `{"tick":1}`},
		{"null discriminant", `{"t":null,"tick":1}`},
		{"not an object", `7`},
		{"string tick", `{"t":"sw","tick":"3"}`},
		{"missing cur", `{"t":"tk","tick":1,"wait":0,"proc":1}`},
		{"missing sweep tick", `{"t":"sw"}`},
		{"zero cursor", `{"t":"tk","tick":1,"wait":0,"proc":1,"cur":0}`},
		{"negative wait", `{"t":"tk","tick":1,"wait":-2,"proc":1,"cur":1}`},
		{"fractional tick", `{"t":"tk","tick":1.5,"wait":0,"proc":1,"cur":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := `{"t":"sw","tick":0}` + "\n\n" + tt.line + "\n"
			_, err := ParseStream(context.Background(), strings.NewReader(input), DefaultConfig())
			if !errors.Is(err, perrors.ErrMalformedRecord) {
				t.Fatalf("expected malformed record error, got %v", err)
			}
			line, ok := perrors.LineOf(err)
			if !ok || line != 3 {
				t.Errorf("LineOf = %d, %v; want 3, true", line, ok)
			}
		})
	}
}

func TestJSONLParser_SkipMalformed(t *testing.T) {
	input := `{"t":"tk","tick":1,"wait":0,"proc":1,"cur":1}
not json
{"t":"tk","tick":2,"wait":1,"proc":1,"cur":2}
{"t":"tk","tick":3}
`
	cfg := DefaultConfig()
	cfg.SkipMalformed = true

	res, err := ParseStream(context.Background(), strings.NewReader(input), cfg)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(res.Ticks) != 2 {
		t.Errorf("Expected 2 ticks, got %d", len(res.Ticks))
	}
	if res.Skipped.Len() != 2 {
		t.Fatalf("Expected 2 skipped lines, got %d", res.Skipped.Len())
	}
	if line, _ := perrors.LineOf(res.Skipped.Errors[0]); line != 2 {
		t.Errorf("first skipped line = %d, want 2", line)
	}
	if line, _ := perrors.LineOf(res.Skipped.Errors[1]); line != 4 {
		t.Errorf("second skipped line = %d, want 4", line)
	}
}

func TestJSONLParser_OnRecord(t *testing.T) {
	var seen []int
	cfg := DefaultConfig()
	cfg.OnRecord = func(line int) { seen = append(seen, line) }

	input := "{\"t\":\"sw\",\"tick\":1}\n\n{\"t\":\"sw\",\"tick\":2}\n"
	if _, err := ParseStream(context.Background(), strings.NewReader(input), cfg); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(seen) != 2 || seen[0] != 1 || seen[1] != 3 {
		t.Errorf("OnRecord lines = %v, want [1 3]", seen)
	}
}

func TestJSONLParser_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ParseStream(ctx, strings.NewReader(`{"t":"sw","tick":1}`), DefaultConfig())
	if !perrors.IsCode(err, perrors.CodeContextCanceled) {
		t.Errorf("expected cancellation error, got %v", err)
	}
}
