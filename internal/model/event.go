// Package model defines core data structures for perfkit.
package model

// RecordKind is the discriminant carried in the "t" field of a perf log line.
type RecordKind string

const (
	// KindTick marks a per-tick scheduler record.
	KindTick RecordKind = "tk"
	// KindSweep marks the completion of a full pass over the entity list.
	KindSweep RecordKind = "sw"
)

// TickEvent is one scheduler tick as emitted by the monitored mod.
// Ordering is by arrival in the stream, not by Tick.
type TickEvent struct {
	// Tick is the simulation tick the record was written on.
	Tick int64 `json:"tick"`

	// Wait is the number of entities found waiting.
	Wait int64 `json:"wait"`

	// Proc is the number of entities processed during the tick.
	Proc int64 `json:"proc"`

	// Cur is the 1-based cursor into the tracked-entity list.
	Cur int64 `json:"cur"`
}

// SweepEvent marks completion of one pass over the tracked-entity list.
type SweepEvent struct {
	Tick int64 `json:"tick"`
}

// Stream holds the two ordered sequences decoded from a perf log.
type Stream struct {
	Ticks  []TickEvent
	Sweeps []SweepEvent
}

// Waits returns the wait column of ticks in arrival order.
func Waits(ticks []TickEvent) []int64 {
	out := make([]int64, len(ticks))
	for i, t := range ticks {
		out[i] = t.Wait
	}
	return out
}

// Procs returns the proc column of ticks in arrival order.
func Procs(ticks []TickEvent) []int64 {
	out := make([]int64, len(ticks))
	for i, t := range ticks {
		out[i] = t.Proc
	}
	return out
}
