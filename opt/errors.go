package opt

import (
	"errors"
	"fmt"

	"github.com/crillab/gopt/expr"
)

// ErrBadWeight is returned when a soft constraint is declared with a
// non-positive weight.
var ErrBadWeight = errors.New("weight of a soft constraint must be positive")

// ErrUnsupported is returned when an objective term is neither
// arithmetic nor a bit-vector.
var ErrUnsupported = errors.New("objective must be an arithmetic or bit-vector term")

// ErrNoValue is returned by bound, assignment and model queries when
// no value is available, typically because the hard constraints were
// unsatisfiable or Optimize was not called.
var ErrNoValue = errors.New("no value available")

// A TypeError reports a term of the wrong sort passed to a
// declaration.
type TypeError struct {
	Term *expr.Term
	Want string
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("%s has sort %s, want %s", e.Term, e.Term.Sort(), e.Want)
}

// An IndexError reports a bound or assignment query for an unknown
// objective.
type IndexError struct {
	Index int
	ID    string
}

func (e *IndexError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("no weighted objective with id %q", e.ID)
	}
	return fmt.Sprintf("objective index %d out of bounds", e.Index)
}
