package cpsat

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildBlock wires one optional fixed-size interval with a single admissible
// start window, the way the schedule builder does.
type blockVars struct {
	start    IntVar
	present  Literal
	interval IntervalVar
}

func addBlock(m *Model, name string, horizon, size, winLB, winUB int64) blockVars {
	start := m.NewIntVar(0, horizon-size, name+"_start")
	present := m.NewBoolVar(name + "_present")
	interval := m.NewOptionalFixedSizeIntervalVar(start, size, present, name+"_iv")

	win := m.NewBoolVar(name + "_win0")
	m.AddGreaterOrEqual(start, winLB).OnlyEnforceIf(win)
	m.AddLessOrEqual(start, winUB-size).OnlyEnforceIf(win)
	m.AddImplication(win, present)
	m.AddExactlyOne(win, present.Not())

	return blockVars{start: start, present: present, interval: interval}
}

func TestSolveSingleIntervalPlaced(t *testing.T) {
	m := NewModel()
	b := addBlock(m, "r1", 8, 2, 0, 8)
	m.AddNoOverlap(b.interval)
	m.Maximize(b.present)

	solver := &Solver{MaxTime: time.Second}
	res := solver.Solve(m)

	require.Equal(t, Optimal, res.Status())
	assert.True(t, res.BooleanValue(b.present))
	assert.EqualValues(t, 1, res.ObjectiveValue())
	start := res.Value(b.start)
	assert.GreaterOrEqual(t, start, int64(0))
	assert.LessOrEqual(t, start, int64(6))
}

func TestSolveCapacityOne(t *testing.T) {
	// Two 5-slot blocks in an 8-slot day sharing one no-overlap group: only
	// one fits.
	m := NewModel()
	b1 := addBlock(m, "r1", 8, 5, 0, 8)
	b2 := addBlock(m, "r2", 8, 5, 0, 8)
	m.AddNoOverlap(b1.interval, b2.interval)
	m.Maximize(b1.present, b2.present)

	solver := &Solver{MaxTime: time.Second}
	res := solver.Solve(m)

	require.Equal(t, Optimal, res.Status())
	assert.EqualValues(t, 1, res.ObjectiveValue())
	assert.NotEqual(t, res.BooleanValue(b1.present), res.BooleanValue(b2.present))
}

func TestSolveTwoGroupsBothPlaced(t *testing.T) {
	// Two 4-slot blocks, separate no-overlap groups: both fit in an 8-slot
	// horizon even though they would clash in a shared group.
	m := NewModel()
	b1 := addBlock(m, "r1", 8, 4, 0, 8)
	b2 := addBlock(m, "r2", 8, 4, 0, 8)
	m.AddNoOverlap(b1.interval)
	m.AddNoOverlap(b2.interval)
	m.Maximize(b1.present, b2.present)

	solver := &Solver{MaxTime: time.Second}
	res := solver.Solve(m)

	require.Equal(t, Optimal, res.Status())
	assert.EqualValues(t, 2, res.ObjectiveValue())
}

func TestSolveSharedResourcePacking(t *testing.T) {
	// Three 2-slot blocks packed into a 6-slot shared resource: all three
	// must be placed, back to back, pairwise disjoint.
	m := NewModel()
	blocks := make([]blockVars, 3)
	for i := range blocks {
		blocks[i] = addBlock(m, fmt.Sprintf("r%d", i+1), 6, 2, 0, 6)
	}
	m.AddNoOverlap(blocks[0].interval, blocks[1].interval, blocks[2].interval)
	m.Maximize(blocks[0].present, blocks[1].present, blocks[2].present)

	solver := &Solver{MaxTime: time.Second}
	res := solver.Solve(m)

	require.Equal(t, Optimal, res.Status())
	require.EqualValues(t, 3, res.ObjectiveValue())

	type iv struct{ start, end int64 }
	placed := make([]iv, 0, 3)
	for _, b := range blocks {
		require.True(t, res.BooleanValue(b.present))
		s := res.Value(b.start)
		placed = append(placed, iv{start: s, end: s + 2})
	}
	for i := 0; i < len(placed); i++ {
		for j := i + 1; j < len(placed); j++ {
			overlap := placed[i].start < placed[j].end && placed[j].start < placed[i].end
			assert.False(t, overlap, "blocks %d and %d overlap", i, j)
		}
	}
}

func TestSolvePinnedBlockAfterWideBlock(t *testing.T) {
	// b1 can sit anywhere in [0,8) and is branched on first; b2 only fits at
	// the very front. Both must be placed, with b1 yielding the front slots.
	m := NewModel()
	b1 := addBlock(m, "r1", 8, 2, 0, 8)
	b2 := addBlock(m, "r2", 8, 2, 0, 2)
	m.AddNoOverlap(b1.interval, b2.interval)
	m.Maximize(b1.present, b2.present)

	solver := &Solver{MaxTime: time.Second}
	res := solver.Solve(m)

	require.Equal(t, Optimal, res.Status())
	require.EqualValues(t, 2, res.ObjectiveValue())
	assert.EqualValues(t, 0, res.Value(b2.start))
	assert.GreaterOrEqual(t, res.Value(b1.start), int64(2))
}

func TestSolveForcedAbsent(t *testing.T) {
	m := NewModel()
	start := m.NewIntVar(0, 6, "r1_start")
	present := m.NewBoolVar("r1_present")
	interval := m.NewOptionalFixedSizeIntervalVar(start, 2, present, "r1_iv")
	m.AddImplication(present, m.FalseLiteral())
	m.AddNoOverlap(interval)
	m.Maximize(present)

	solver := &Solver{MaxTime: time.Second}
	res := solver.Solve(m)

	require.Equal(t, Optimal, res.Status())
	assert.False(t, res.BooleanValue(present))
	assert.EqualValues(t, 0, res.ObjectiveValue())
}

func TestSolveWindowTooSmall(t *testing.T) {
	// The window's admissible start range is empty (ub < lb), so the block
	// can never be selected and stays absent.
	m := NewModel()
	start := m.NewIntVar(0, 6, "r1_start")
	present := m.NewBoolVar("r1_present")
	interval := m.NewOptionalFixedSizeIntervalVar(start, 2, present, "r1_iv")

	win := m.NewBoolVar("r1_win0")
	m.AddGreaterOrEqual(start, 0).OnlyEnforceIf(win)
	m.AddLessOrEqual(start, -1).OnlyEnforceIf(win)
	m.AddImplication(win, present)
	m.AddExactlyOne(win, present.Not())

	m.AddNoOverlap(interval)
	m.Maximize(present)

	solver := &Solver{MaxTime: time.Second}
	res := solver.Solve(m)

	require.Equal(t, Optimal, res.Status())
	assert.False(t, res.BooleanValue(present))
}

func TestSolveEndEquality(t *testing.T) {
	m := NewModel()
	b := addBlock(m, "r1", 8, 3, 2, 8)
	end := m.NewIntVar(0, 8, "r1_end")
	m.AddEqualityOffset(end, b.start, 3).OnlyEnforceIf(b.present)
	m.AddNoOverlap(b.interval)
	m.Maximize(b.present)

	solver := &Solver{MaxTime: time.Second}
	res := solver.Solve(m)

	require.Equal(t, Optimal, res.Status())
	require.True(t, res.BooleanValue(b.present))
	assert.Equal(t, res.Value(b.start)+3, res.Value(end))
}

func TestSolveModelInvalid(t *testing.T) {
	m := NewModel()
	start := m.NewIntVar(5, 2, "bad_start")
	present := m.NewBoolVar("bad_present")
	m.NewOptionalFixedSizeIntervalVar(start, 2, present, "bad_iv")

	solver := &Solver{MaxTime: time.Second}
	res := solver.Solve(m)
	assert.Equal(t, ModelInvalid, res.Status())
}

func TestSolveTimeoutReturnsFeasible(t *testing.T) {
	m := NewModel()
	blocks := make([]Literal, 0, 14)
	ivs := make([]IntervalVar, 0, 14)
	for i := 0; i < 14; i++ {
		b := addBlock(m, fmt.Sprintf("r%d", i), 40, 3, 0, 40)
		blocks = append(blocks, b.present)
		ivs = append(ivs, b.interval)
	}
	m.AddNoOverlap(ivs...)
	m.Maximize(blocks...)

	solver := &Solver{MaxTime: time.Nanosecond}
	res := solver.Solve(m)

	assert.Equal(t, Feasible, res.Status())
	assert.GreaterOrEqual(t, res.ObjectiveValue(), int64(0))
}
