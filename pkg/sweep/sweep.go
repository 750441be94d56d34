// Package sweep reconstructs sweeps from the flat tick stream.
//
// The perf log carries no explicit "sweep start" record; a sweep is
// inferred to begin whenever the cursor returns to the head of the
// tracked-entity list. The rule is injected as a BoundaryPredicate so it
// can be swapped without touching the grouping state machine.
package sweep

import (
	"github.com/logflow/perfkit/internal/model"
)

// DefaultGapThreshold is the tick delta above which two adjacent ticks are
// reported as a candidate session boundary.
const DefaultGapThreshold = 1000

// BoundaryPredicate reports whether ev starts a new sweep.
type BoundaryPredicate func(ev model.TickEvent) bool

// CursorReset is the default predicate: a sweep starts at cur == 1.
func CursorReset(ev model.TickEvent) bool {
	return ev.Cur == 1
}

// Group is a run of consecutive ticks belonging to one sweep.
type Group struct {
	// Index is the 0-based position of the group in the output.
	Index int

	Events []model.TickEvent
}

// StartTick returns the tick of the first event in the group.
func (g Group) StartTick() int64 {
	if len(g.Events) == 0 {
		return 0
	}
	return g.Events[0].Tick
}

// Waits returns the wait values of the group's events.
func (g Group) Waits() []int64 {
	return model.Waits(g.Events)
}

// State is the reconstructor's position in the grouping state machine.
type State uint8

const (
	// Accumulating appends events to the open group.
	Accumulating State = iota
	// BoundaryPending holds a boundary tick back. The open group is closed
	// and the held tick starts the next one on the following Push or Flush.
	BoundaryPending
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Accumulating:
		return "accumulating"
	case BoundaryPending:
		return "boundary_pending"
	default:
		return "unknown"
	}
}

// Reconstructor partitions an ordered tick stream into sweep groups.
// It is not safe for concurrent use; build one per analysis.
type Reconstructor struct {
	isBoundary BoundaryPredicate
	state      State
	held       model.TickEvent
	open       []model.TickEvent
	groups     []Group
}

// NewReconstructor creates a reconstructor. A nil predicate selects
// CursorReset.
func NewReconstructor(pred BoundaryPredicate) *Reconstructor {
	if pred == nil {
		pred = CursorReset
	}
	return &Reconstructor{isBoundary: pred}
}

// State returns the current machine state.
func (r *Reconstructor) State() State {
	return r.state
}

// Push feeds the next event in arrival order.
// The first event never closes a group since none is open yet.
func (r *Reconstructor) Push(ev model.TickEvent) {
	r.release()
	if r.isBoundary(ev) && len(r.open) > 0 {
		r.held = ev
		r.state = BoundaryPending
		return
	}
	r.open = append(r.open, ev)
}

// Flush closes the trailing group, if any, and returns all groups built
// so far. The reconstructor is reset afterwards.
func (r *Reconstructor) Flush() []Group {
	r.release()
	if len(r.open) > 0 {
		r.closeOpen()
	}
	out := r.groups
	r.groups = nil
	r.state = Accumulating
	return out
}

// release consumes a held boundary tick: the open group is closed and the
// tick opens its successor.
func (r *Reconstructor) release() {
	if r.state != BoundaryPending {
		return
	}
	r.closeOpen()
	r.open = append(r.open, r.held)
	r.held = model.TickEvent{}
	r.state = Accumulating
}

func (r *Reconstructor) closeOpen() {
	r.groups = append(r.groups, Group{Index: len(r.groups), Events: r.open})
	r.open = nil
}

// Reconstruct groups ticks with pred (CursorReset when nil).
// Concatenating the groups' events reproduces ticks exactly.
func Reconstruct(ticks []model.TickEvent, pred BoundaryPredicate) []Group {
	r := NewReconstructor(pred)
	for _, ev := range ticks {
		r.Push(ev)
	}
	return r.Flush()
}

// Gap is a pair of adjacent ticks whose tick delta exceeds the threshold.
type Gap struct {
	// Index is the arrival position of the later tick.
	Index int   `json:"index"`
	From  int64 `json:"from"`
	To    int64 `json:"to"`
	Delta int64 `json:"delta"`
}

// SessionGaps scans ticks in arrival order and reports every adjacent pair
// with To-From > threshold. The result is advisory; it does not affect
// grouping.
func SessionGaps(ticks []model.TickEvent, threshold int64) []Gap {
	var gaps []Gap
	for i := 1; i < len(ticks); i++ {
		delta := ticks[i].Tick - ticks[i-1].Tick
		if delta > threshold {
			gaps = append(gaps, Gap{
				Index: i,
				From:  ticks[i-1].Tick,
				To:    ticks[i].Tick,
				Delta: delta,
			})
		}
	}
	return gaps
}
