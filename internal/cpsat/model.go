// Package cpsat provides a small constraint model and solver for optional
// fixed-size interval scheduling. The model API mirrors the CP-SAT shape:
// integer variables, boolean literals, optional intervals, half-reified
// linear bounds, implications, exactly-one groups, no-overlap groups, and a
// maximize-sum-of-literals objective.
package cpsat

import "fmt"

// IntVar is a handle to an integer decision variable.
type IntVar struct {
	index int
}

// Literal is a possibly-negated reference to a boolean variable.
type Literal struct {
	index   int
	negated bool
}

// Not returns the negation of the literal.
func (l Literal) Not() Literal {
	return Literal{index: l.index, negated: !l.negated}
}

// IntervalVar is a handle to an optional fixed-size interval.
type IntervalVar struct {
	index int
}

type intVarData struct {
	name   string
	lb, ub int64
}

type boolVarData struct {
	name       string
	fixedFalse bool
}

type intervalData struct {
	name     string
	start    IntVar
	size     int64
	presence Literal
}

type linearOp int

const (
	opGE linearOp = iota
	opLE
)

type linearConstraint struct {
	v       IntVar
	op      linearOp
	bound   int64
	enforce []Literal
}

// equality constrains target = base + offset under its enforcement literals.
type equalityConstraint struct {
	target  IntVar
	base    IntVar
	offset  int64
	enforce []Literal
}

type implication struct {
	a, b Literal
}

// Constraint allows half-reification of the constraint it was returned for.
type Constraint struct {
	addEnforce func(lits []Literal)
}

// OnlyEnforceIf restricts the constraint to hold only when all literals are true.
func (c *Constraint) OnlyEnforceIf(lits ...Literal) *Constraint {
	c.addEnforce(lits)
	return c
}

// Model accumulates variables and constraints for one solve.
type Model struct {
	intVars      []intVarData
	boolVars     []boolVarData
	intervals    []intervalData
	linears      []*linearConstraint
	equalities   []*equalityConstraint
	implications []implication
	exactlyOnes  [][]Literal
	noOverlaps   [][]IntervalVar
	objective    []Literal

	falseLit    Literal
	hasFalseLit bool
}

// NewModel returns an empty model.
func NewModel() *Model {
	return &Model{}
}

// NewIntVar declares an integer variable with inclusive bounds.
func (m *Model) NewIntVar(lb, ub int64, name string) IntVar {
	m.intVars = append(m.intVars, intVarData{name: name, lb: lb, ub: ub})
	return IntVar{index: len(m.intVars) - 1}
}

// NewBoolVar declares a boolean variable and returns its positive literal.
func (m *Model) NewBoolVar(name string) Literal {
	m.boolVars = append(m.boolVars, boolVarData{name: name})
	return Literal{index: len(m.boolVars) - 1}
}

// FalseLiteral returns a literal that is always false.
func (m *Model) FalseLiteral() Literal {
	if !m.hasFalseLit {
		m.boolVars = append(m.boolVars, boolVarData{name: "false", fixedFalse: true})
		m.falseLit = Literal{index: len(m.boolVars) - 1}
		m.hasFalseLit = true
	}
	return m.falseLit
}

// NewOptionalFixedSizeIntervalVar declares an interval of fixed size whose
// presence is controlled by the given literal. Absent intervals occupy no time.
func (m *Model) NewOptionalFixedSizeIntervalVar(start IntVar, size int64, presence Literal, name string) IntervalVar {
	m.intervals = append(m.intervals, intervalData{name: name, start: start, size: size, presence: presence})
	return IntervalVar{index: len(m.intervals) - 1}
}

// AddGreaterOrEqual constrains v >= bound.
func (m *Model) AddGreaterOrEqual(v IntVar, bound int64) *Constraint {
	lc := &linearConstraint{v: v, op: opGE, bound: bound}
	m.linears = append(m.linears, lc)
	return &Constraint{addEnforce: func(lits []Literal) { lc.enforce = append(lc.enforce, lits...) }}
}

// AddLessOrEqual constrains v <= bound.
func (m *Model) AddLessOrEqual(v IntVar, bound int64) *Constraint {
	lc := &linearConstraint{v: v, op: opLE, bound: bound}
	m.linears = append(m.linears, lc)
	return &Constraint{addEnforce: func(lits []Literal) { lc.enforce = append(lc.enforce, lits...) }}
}

// AddEqualityOffset constrains target = base + offset.
func (m *Model) AddEqualityOffset(target, base IntVar, offset int64) *Constraint {
	eq := &equalityConstraint{target: target, base: base, offset: offset}
	m.equalities = append(m.equalities, eq)
	return &Constraint{addEnforce: func(lits []Literal) { eq.enforce = append(eq.enforce, lits...) }}
}

// AddImplication adds a => b.
func (m *Model) AddImplication(a, b Literal) {
	m.implications = append(m.implications, implication{a: a, b: b})
}

// AddExactlyOne requires exactly one of the literals to be true.
func (m *Model) AddExactlyOne(lits ...Literal) {
	group := make([]Literal, len(lits))
	copy(group, lits)
	m.exactlyOnes = append(m.exactlyOnes, group)
}

// AddNoOverlap requires the present intervals in the group to be pairwise disjoint.
func (m *Model) AddNoOverlap(intervals ...IntervalVar) {
	group := make([]IntervalVar, len(intervals))
	copy(group, intervals)
	m.noOverlaps = append(m.noOverlaps, group)
}

// Maximize sets the objective to the count of true literals in the list.
func (m *Model) Maximize(lits ...Literal) {
	m.objective = append([]Literal(nil), lits...)
}

// validate checks structural well-formedness before a solve.
func (m *Model) validate() error {
	for _, v := range m.intVars {
		if v.lb > v.ub {
			return fmt.Errorf("variable %q has empty domain [%d,%d]", v.name, v.lb, v.ub)
		}
	}
	for _, iv := range m.intervals {
		if iv.size <= 0 {
			return fmt.Errorf("interval %q has non-positive size %d", iv.name, iv.size)
		}
		if iv.start.index < 0 || iv.start.index >= len(m.intVars) {
			return fmt.Errorf("interval %q references unknown start variable", iv.name)
		}
	}
	for _, group := range m.noOverlaps {
		for _, iv := range group {
			if iv.index < 0 || iv.index >= len(m.intervals) {
				return fmt.Errorf("no-overlap group references unknown interval %d", iv.index)
			}
		}
	}
	return nil
}
