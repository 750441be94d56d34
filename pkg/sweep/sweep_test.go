package sweep

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logflow/perfkit/internal/model"
)

func ticksWithCursors(curs ...int64) []model.TickEvent {
	out := make([]model.TickEvent, len(curs))
	for i, c := range curs {
		out[i] = model.TickEvent{Tick: int64(i), Cur: c}
	}
	return out
}

func flatten(groups []Group) []model.TickEvent {
	var out []model.TickEvent
	for _, g := range groups {
		out = append(out, g.Events...)
	}
	return out
}

func TestReconstruct_TwoSweeps(t *testing.T) {
	ticks := ticksWithCursors(1, 2, 1, 2, 3)

	groups := Reconstruct(ticks, nil)
	require.Len(t, groups, 2)

	assert.Equal(t, ticks[0:2], groups[0].Events)
	assert.Equal(t, ticks[2:5], groups[1].Events)
	assert.Equal(t, 0, groups[0].Index)
	assert.Equal(t, 1, groups[1].Index)
	assert.Equal(t, int64(2), groups[1].StartTick())
}

func TestReconstruct_Total(t *testing.T) {
	cases := [][]int64{
		{},
		{1},
		{3, 4, 5},
		{5, 1, 2, 1, 1, 1},
		{1, 1, 1},
		{2, 3, 1, 2, 3, 1},
	}
	for _, curs := range cases {
		ticks := ticksWithCursors(curs...)
		groups := Reconstruct(ticks, nil)

		got := flatten(groups)
		if len(ticks) == 0 {
			assert.Empty(t, groups)
			continue
		}
		assert.Equal(t, ticks, got, "cursors %v", curs)
		for _, g := range groups {
			assert.NotEmpty(t, g.Events, "cursors %v", curs)
		}
	}
}

func TestReconstruct_LeadingPartialSweep(t *testing.T) {
	groups := Reconstruct(ticksWithCursors(7, 8, 1, 2), nil)
	require.Len(t, groups, 2)
	assert.Len(t, groups[0].Events, 2)
	assert.Len(t, groups[1].Events, 2)
}

func TestReconstruct_CustomPredicate(t *testing.T) {
	ticks := []model.TickEvent{
		{Tick: 10, Cur: 1},
		{Tick: 11, Cur: 2},
		{Tick: 50, Cur: 3},
		{Tick: 51, Cur: 4},
	}
	byTick := func(ev model.TickEvent) bool { return ev.Tick%50 == 0 }

	groups := Reconstruct(ticks, byTick)
	require.Len(t, groups, 2)
	assert.Equal(t, int64(50), groups[1].StartTick())
}

func TestReconstructor_States(t *testing.T) {
	var calls int
	pred := func(ev model.TickEvent) bool {
		calls++
		return ev.Cur == 1
	}
	r := NewReconstructor(pred)
	assert.Equal(t, Accumulating, r.State())

	r.Push(model.TickEvent{Tick: 1, Cur: 1})
	assert.Equal(t, Accumulating, r.State(), "first event opens a group")
	r.Push(model.TickEvent{Tick: 2, Cur: 2})
	r.Push(model.TickEvent{Tick: 3, Cur: 1})
	assert.Equal(t, BoundaryPending, r.State())
	assert.Equal(t, 3, calls)

	groups := r.Flush()
	assert.Equal(t, Accumulating, r.State(), "flush consumes the held boundary")
	require.Len(t, groups, 2)
	assert.Equal(t, int64(1), groups[0].StartTick())
	assert.Len(t, groups[0].Events, 2)
	assert.Equal(t, []model.TickEvent{{Tick: 3, Cur: 1}}, groups[1].Events)
	assert.Empty(t, r.Flush(), "flush resets the reconstructor")
	assert.Equal(t, "boundary_pending", BoundaryPending.String())
}

func TestReconstructor_BoundaryPendingUntilNextPush(t *testing.T) {
	r := NewReconstructor(nil)
	r.Push(model.TickEvent{Tick: 1, Cur: 1})
	r.Push(model.TickEvent{Tick: 2, Cur: 1})
	require.Equal(t, BoundaryPending, r.State())

	// Back-to-back boundaries: each one closes a single-tick group.
	r.Push(model.TickEvent{Tick: 3, Cur: 1})
	assert.Equal(t, BoundaryPending, r.State())

	r.Push(model.TickEvent{Tick: 4, Cur: 2})
	assert.Equal(t, Accumulating, r.State())

	groups := r.Flush()
	require.Len(t, groups, 3)
	assert.Equal(t, []int64{1, 2, 3}, []int64{groups[0].StartTick(), groups[1].StartTick(), groups[2].StartTick()})
	assert.Len(t, groups[2].Events, 2)
	for i, g := range groups {
		assert.Equal(t, i, g.Index)
	}
}

func TestGroup_Waits(t *testing.T) {
	g := Group{Events: []model.TickEvent{{Wait: 3}, {Wait: 9}}}
	assert.Equal(t, []int64{3, 9}, g.Waits())
	assert.Equal(t, int64(0), Group{}.StartTick())
}

func TestSessionGaps(t *testing.T) {
	ticks := []model.TickEvent{
		{Tick: 100}, {Tick: 101}, {Tick: 1101}, {Tick: 2102}, {Tick: 50}, {Tick: 60},
	}

	gaps := SessionGaps(ticks, DefaultGapThreshold)
	require.Len(t, gaps, 1)
	assert.Equal(t, Gap{Index: 3, From: 1101, To: 2102, Delta: 1001}, gaps[0])

	assert.Len(t, SessionGaps(ticks, 999), 2)
	assert.Empty(t, SessionGaps(nil, 0))
	assert.Empty(t, SessionGaps(ticks[:1], 0))
}
