package cpsat

import "time"

// Status classifies a solve outcome.
type Status int

const (
	Unknown Status = iota
	ModelInvalid
	Infeasible
	Feasible
	Optimal
)

func (s Status) String() string {
	switch s {
	case ModelInvalid:
		return "MODEL_INVALID"
	case Infeasible:
		return "INFEASIBLE"
	case Feasible:
		return "FEASIBLE"
	case Optimal:
		return "OPTIMAL"
	default:
		return "UNKNOWN"
	}
}

// Solver runs a bounded branch-and-bound search over a Model.
type Solver struct {
	// MaxTime caps the wall-clock search time. Zero means one minute.
	MaxTime time.Duration
}

// Result carries the terminal status and variable values of one solve.
type Result struct {
	status     Status
	intValues  []int64
	boolValues []bool
	objective  int64
	wallTime   time.Duration
}

// Status returns the terminal solve status.
func (r *Result) Status() Status { return r.status }

// Value returns the solved value of an integer variable.
func (r *Result) Value(v IntVar) int64 {
	if v.index < 0 || v.index >= len(r.intValues) {
		return 0
	}
	return r.intValues[v.index]
}

// BooleanValue returns the solved truth value of a literal.
func (r *Result) BooleanValue(l Literal) bool {
	if l.index < 0 || l.index >= len(r.boolValues) {
		return false
	}
	if l.negated {
		return !r.boolValues[l.index]
	}
	return r.boolValues[l.index]
}

// ObjectiveValue returns the achieved objective.
func (r *Result) ObjectiveValue() int64 { return r.objective }

// WallTime returns the elapsed search time.
func (r *Result) WallTime() time.Duration { return r.wallTime }

// window is a contiguous admissible start range for one interval, tied to the
// selector literal that picks it.
type window struct {
	lb, ub   int64
	selector Literal
	hasSel   bool
}

// searchInterval is the solver-side view of one optional interval.
type searchInterval struct {
	index    int
	startVar IntVar
	size     int64
	presence Literal
	windows  []window
	groups   []int
}

type searchState struct {
	intervals []searchInterval
	occupied  [][]span // per no-overlap group
	deadline  time.Time
	timedOut  bool

	present   []bool
	starts    []int64
	winChoice []int

	bestCount   int
	bestPresent []bool
	bestStarts  []int64
	bestWins    []int
}

type span struct {
	start, end int64
}

// Solve searches for an assignment maximizing the objective.
func (s *Solver) Solve(m *Model) *Result {
	started := time.Now()
	res := &Result{
		intValues:  make([]int64, len(m.intVars)),
		boolValues: make([]bool, len(m.boolVars)),
	}
	for i, v := range m.intVars {
		res.intValues[i] = v.lb
	}

	if err := m.validate(); err != nil {
		res.status = ModelInvalid
		res.wallTime = time.Since(started)
		return res
	}

	maxTime := s.MaxTime
	if maxTime <= 0 {
		maxTime = time.Minute
	}

	state := buildSearchState(m, started.Add(maxTime))
	n := len(state.intervals)

	// All-absent is always admissible for optional intervals, so the search
	// starts with an incumbent of zero placements.
	state.bestCount = 0
	state.bestPresent = make([]bool, n)
	state.bestStarts = make([]int64, n)
	state.bestWins = make([]int, n)
	for i := range state.bestWins {
		state.bestWins[i] = -1
	}

	state.dfs(0, 0)

	applyBest(m, state, res)
	res.wallTime = time.Since(started)
	if state.timedOut {
		res.status = Feasible
	} else {
		res.status = Optimal
	}
	return res
}

func buildSearchState(m *Model, deadline time.Time) *searchState {
	state := &searchState{
		deadline: deadline,
		occupied: make([][]span, len(m.noOverlaps)),
	}

	intervalGroups := make([][]int, len(m.intervals))
	for g, group := range m.noOverlaps {
		for _, iv := range group {
			intervalGroups[iv.index] = append(intervalGroups[iv.index], g)
		}
	}

	for i, iv := range m.intervals {
		si := searchInterval{
			index:    i,
			startVar: iv.start,
			size:     iv.size,
			presence: iv.presence,
			groups:   intervalGroups[i],
		}
		if !presenceForcedOff(m, iv.presence) {
			si.windows = deriveWindows(m, iv)
		}
		state.intervals = append(state.intervals, si)
	}

	n := len(state.intervals)
	state.present = make([]bool, n)
	state.starts = make([]int64, n)
	state.winChoice = make([]int, n)
	return state
}

// presenceForcedOff reports whether the presence literal is pinned false,
// either directly or through an implication to a false literal.
func presenceForcedOff(m *Model, p Literal) bool {
	if !p.negated && m.boolVars[p.index].fixedFalse {
		return true
	}
	for _, imp := range m.implications {
		if imp.a == p && !imp.b.negated && m.boolVars[imp.b.index].fixedFalse {
			return true
		}
	}
	return false
}

// deriveWindows recovers the admissible start ranges for an interval from the
// exactly-one group referencing its negated presence literal. Each other
// member of that group selects one range, bounded by the half-reified linear
// constraints it enforces. Without such a group the whole start domain is one
// window.
func deriveWindows(m *Model, iv intervalData) []window {
	domain := m.intVars[iv.start.index]
	notPresent := iv.presence.Not()

	for _, group := range m.exactlyOnes {
		if !containsLiteral(group, notPresent) {
			continue
		}
		windows := make([]window, 0, len(group)-1)
		for _, sel := range group {
			if sel == notPresent {
				continue
			}
			w := window{lb: domain.lb, ub: domain.ub, selector: sel, hasSel: true}
			for _, lc := range m.linears {
				if lc.v != iv.start || !enforcedOnlyBy(lc.enforce, sel) {
					continue
				}
				switch lc.op {
				case opGE:
					if lc.bound > w.lb {
						w.lb = lc.bound
					}
				case opLE:
					if lc.bound < w.ub {
						w.ub = lc.bound
					}
				}
			}
			if w.lb <= w.ub {
				windows = append(windows, w)
			}
		}
		return windows
	}

	return []window{{lb: domain.lb, ub: domain.ub}}
}

func containsLiteral(group []Literal, l Literal) bool {
	for _, member := range group {
		if member == l {
			return true
		}
	}
	return false
}

func enforcedOnlyBy(enforce []Literal, sel Literal) bool {
	return len(enforce) == 1 && enforce[0] == sel
}

func (st *searchState) dfs(i, placed int) {
	if st.timedOut {
		return
	}
	if time.Now().After(st.deadline) {
		st.timedOut = true
		return
	}

	n := len(st.intervals)
	if i == n {
		if placed > st.bestCount {
			st.record(placed)
		}
		return
	}
	// Even placing every remaining interval cannot beat the incumbent.
	if placed+(n-i) <= st.bestCount {
		return
	}

	// Every start in the window is tried. Restricting candidates to left
	// edges of already-placed intervals is not sound here: the search fixes
	// intervals in index order, and an optimal packing may need an earlier
	// interval to sit after a later one. Domains are small (a week of slots)
	// and the bound prune plus the deadline keep the walk in check.
	iv := &st.intervals[i]
	for w := range iv.windows {
		win := iv.windows[w]
		for start := win.lb; start <= win.ub; start++ {
			if !st.fits(iv, start) {
				continue
			}
			st.place(iv, start)
			st.present[i] = true
			st.starts[i] = start
			st.winChoice[i] = w
			st.dfs(i+1, placed+1)
			st.unplace(iv)
			if st.timedOut {
				return
			}
		}
	}

	st.present[i] = false
	st.winChoice[i] = -1
	st.dfs(i+1, placed)
}

func (st *searchState) record(placed int) {
	st.bestCount = placed
	copy(st.bestPresent, st.present)
	copy(st.bestStarts, st.starts)
	copy(st.bestWins, st.winChoice)
}

func (st *searchState) fits(iv *searchInterval, start int64) bool {
	end := start + iv.size
	for _, g := range iv.groups {
		for _, occ := range st.occupied[g] {
			if start < occ.end && occ.start < end {
				return false
			}
		}
	}
	return true
}

func (st *searchState) place(iv *searchInterval, start int64) {
	sp := span{start: start, end: start + iv.size}
	for _, g := range iv.groups {
		st.occupied[g] = append(st.occupied[g], sp)
	}
}

func (st *searchState) unplace(iv *searchInterval) {
	for _, g := range iv.groups {
		st.occupied[g] = st.occupied[g][:len(st.occupied[g])-1]
	}
}

// applyBest writes the incumbent assignment into the result's variable values.
func applyBest(m *Model, st *searchState, res *Result) {
	for i := range st.intervals {
		iv := &st.intervals[i]
		if !st.bestPresent[i] {
			continue
		}
		res.intValues[iv.startVar.index] = st.bestStarts[i]
		setLiteral(res, iv.presence, true)
		if w := st.bestWins[i]; w >= 0 && iv.windows[w].hasSel {
			setLiteral(res, iv.windows[w].selector, true)
		}
	}

	for _, eq := range m.equalities {
		holds := true
		for _, lit := range eq.enforce {
			if !res.BooleanValue(lit) {
				holds = false
				break
			}
		}
		if holds {
			res.intValues[eq.target.index] = res.intValues[eq.base.index] + eq.offset
		}
	}

	var objective int64
	for _, lit := range m.objective {
		if res.BooleanValue(lit) {
			objective++
		}
	}
	res.objective = objective
}

func setLiteral(res *Result, l Literal, value bool) {
	if l.negated {
		res.boolValues[l.index] = !value
		return
	}
	res.boolValues[l.index] = value
}
