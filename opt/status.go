package opt

import (
	"github.com/crillab/gopt/expr"
	"github.com/crillab/gopt/inf"
)

// Status is the outcome of a satisfiability check or of an
// optimization run.
type Status byte

const (
	// Indet means the outcome could not be determined, because of
	// cancellation or a solver failure.
	Indet = Status(iota)
	// Sat means a (best) model was found.
	Sat
	// Unsat means the hard constraints are unsatisfiable.
	Unsat
)

func (s Status) String() string {
	switch s {
	case Indet:
		return "INDETERMINATE"
	case Sat:
		return "SAT"
	case Unsat:
		return "UNSAT"
	default:
		panic("invalid status")
	}
}

// A BaseSolver is the incremental satisfiability oracle the
// optimization engine drives. The engine only ever uses a solver
// through this interface, strictly serially.
type BaseSolver interface {
	// Push opens a new assertion scope.
	Push()
	// Pop discards the n innermost assertion scopes.
	Pop(n int)
	// Assert permanently adds a formula to the current scope.
	Assert(f *expr.Term)
	// CheckAssuming decides satisfiability of the asserted
	// formulas together with the given assumptions.
	CheckAssuming(assumptions []*expr.Term) Status
	// Model returns the satisfying model found by the last check.
	// It is only valid after a Sat answer.
	Model() expr.Model
	// UnsatCore returns a subset of the last check's assumptions
	// that is unsatisfiable together with the asserted formulas.
	// It is only valid after an Unsat answer and is not
	// necessarily minimal.
	UnsatCore() []*expr.Term
	// Cancel sets or clears the cancellation flag. An ongoing
	// check observes it and returns Indet.
	Cancel(on bool)
	// ReasonUnknown describes the last Indet answer.
	ReasonUnknown() string
}

// A Tightener is a base solver that can strengthen the bound obtained
// from a satisfying assignment, typically from a Farkas combination of
// the explanation in linear real arithmetic. The single-term optimizer
// consults it, when available, to progress faster than the plain
// bound chase.
type Tightener interface {
	// Tighten returns a sound lower bound for the maximum of t,
	// at least as strong as the value of t under m. The boolean
	// result reports whether a bound could be derived.
	Tighten(t *expr.Term, m expr.Model) (inf.Num, bool)
}
