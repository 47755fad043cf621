package opt

import (
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/crillab/gopt/expr"
)

// fuMalikEngine maximizes the number of satisfied soft constraints
// with the Fu & Malik procedure: every unsat core relaxes the involved
// soft constraints with fresh blocking variables, of which at most one
// may be true. Each round proves one more soft constraint
// unsatisfiable as a group and decrements the upper bound; the first
// satisfiable check is optimal.
//
// See Z. Fu and S. Malik, On solving the partial MAX-SAT problem,
// SAT 2006.
type fuMalikEngine struct {
	b      *expr.Builder
	s      BaseSolver
	log    *logrus.Logger
	cancel *atomic.Bool

	orig   []*expr.Term
	soft   []*expr.Term // working copies, grown with blocking variables
	aux    []*expr.Term // current answer literal per soft constraint
	lower  int
	upper  int
	answer []bool
	model  expr.Model
}

func (e *fuMalikEngine) run() (Status, error) {
	n := len(e.orig)
	e.lower, e.upper = 0, n
	e.answer = make([]bool, n)
	if n == 0 {
		return Sat, nil
	}
	e.s.Push()
	defer e.s.Pop(1)

	e.soft = append([]*expr.Term(nil), e.orig...)
	e.aux = make([]*expr.Term, n)
	for i := range e.soft {
		e.aux[i] = e.b.FreshBool("aux")
		e.s.Assert(e.b.Or(e.soft[i], e.aux[i]))
	}

	for round := 1; ; round++ {
		if e.cancel.Load() {
			return Indet, nil
		}
		e.log.WithFields(logrus.Fields{"engine": "fu-malik", "step": round}).Debug("step")
		st, err := e.step()
		if st != Unsat || err != nil {
			return st, err
		}
	}
}

// step runs one round: check under the negated answer literals; on
// unsat, relax every soft constraint of the core with a fresh blocking
// variable and a fresh answer literal, then constrain the blocking
// variables to at most one true. Exactly one soft constraint per core
// pays the cost.
func (e *fuMalikEngine) step() (Status, error) {
	assumptions := make([]*expr.Term, len(e.aux))
	byAssumption := make(map[*expr.Term]int, len(e.aux))
	for i, a := range e.aux {
		assumptions[i] = e.b.Not(a)
		byAssumption[assumptions[i]] = i
	}
	switch st := e.s.CheckAssuming(assumptions); st {
	case Indet:
		return Indet, nil
	case Sat:
		m := e.s.Model()
		for i, sc := range e.orig {
			v, err := m.EvalBool(sc)
			if err != nil {
				return Indet, errors.Wrap(err, "evaluating soft constraint")
			}
			e.answer[i] = v
		}
		e.model = m
		e.lower = e.upper
		return Sat, nil
	default:
		core := e.s.UnsatCore()
		var blockers []*expr.Term
		for _, a := range core {
			i, ok := byAssumption[a]
			if !ok {
				continue
			}
			delete(byAssumption, a)
			blocker := e.b.FreshBool("block")
			e.aux[i] = e.b.FreshBool("aux")
			e.soft[i] = e.b.Or(e.soft[i], blocker)
			e.s.Assert(e.b.Or(e.soft[i], e.aux[i]))
			blockers = append(blockers, blocker)
		}
		if len(blockers) == 0 {
			return Indet, errors.New("unsat core contains no answer literal")
		}
		e.s.Assert(AtMostOne(e.b, blockers))
		e.upper--
		return Unsat, nil
	}
}
