package opt

import (
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/crillab/gopt/expr"
)

// coreEngine maximizes the number of satisfied soft constraints by
// unsat-core refinement. Every soft constraint is relaxed with a fresh
// atom p and asserted as p ∨ soft; the negations ¬p are assumed.
// Each unsat core moves its relaxation atoms into a single growing set
// of core variables, over which the engine asserts global at-most-k
// lemmas: an assignment satisfying more than the best known count must
// falsify enough core variables to make a stronger bound hold.
type coreEngine struct {
	b      *expr.Builder
	s      BaseSolver
	log    *logrus.Logger
	cancel *atomic.Bool

	soft   []*expr.Term
	lower  int
	upper  int
	answer []bool
	model  expr.Model
}

// termSet is an insertion-ordered set of terms supporting removal.
type termSet struct {
	indices map[*expr.Term]int
	terms   []*expr.Term
}

func newTermSet() *termSet {
	return &termSet{indices: make(map[*expr.Term]int)}
}

func (set *termSet) add(t *expr.Term) {
	if _, ok := set.indices[t]; ok {
		return
	}
	set.indices[t] = len(set.terms)
	set.terms = append(set.terms, t)
}

func (set *termSet) remove(t *expr.Term) {
	if idx, ok := set.indices[t]; ok {
		set.terms = append(set.terms[:idx], set.terms[idx+1:]...)
		for i := idx; i < len(set.terms); i++ {
			set.indices[set.terms[i]] = i
		}
		delete(set.indices, t)
	}
}

func (set *termSet) slice() []*expr.Term { return set.terms }

func (e *coreEngine) run() (Status, error) {
	n := len(e.soft)
	e.lower, e.upper = 0, n
	e.answer = make([]bool, n)
	if n == 0 {
		return Sat, nil
	}
	e.s.Push()
	defer e.s.Pop(1)

	block := newTermSet()
	relaxed := make(map[*expr.Term]int, n) // ¬p -> soft index
	var coreVars []*expr.Term
	for i, sc := range e.soft {
		p := e.b.FreshBool("p")
		e.s.Assert(e.b.Or(p, sc))
		np := e.b.Not(p)
		block.add(np)
		relaxed[np] = i
	}

	for e.lower < e.upper {
		if e.cancel.Load() {
			return Indet, nil
		}
		switch st := e.s.CheckAssuming(block.slice()); st {
		case Indet:
			return Indet, nil
		case Sat:
			m := e.s.Model()
			ans := make([]bool, n)
			newLower := 0
			for i, sc := range e.soft {
				v, err := m.EvalBool(sc)
				if err != nil {
					return Indet, errors.Wrap(err, "evaluating soft constraint")
				}
				ans[i] = v
				if v {
					newLower++
				}
			}
			e.log.WithFields(logrus.Fields{"engine": "core-guided", "lower": newLower}).Debug("sat")
			if newLower > e.lower {
				e.lower = newLower
				e.answer = ans
				e.model = m
			}
			if e.lower == e.upper {
				return Sat, nil
			}
			// Any assignment improving on newLower satisfies at
			// most n-newLower-1 of the core variables.
			e.s.Assert(AtMostK(e.b, coreVars, int64(n-newLower-1)))
		case Unsat:
			core := e.s.UnsatCore()
			for _, np := range core {
				if _, ok := relaxed[np]; !ok {
					continue
				}
				delete(relaxed, np)
				block.remove(np)
				coreVars = append(coreVars, e.b.Not(np))
			}
			e.log.WithFields(logrus.Fields{"engine": "core-guided", "core": len(core)}).Debug("unsat")
			if len(core) == 0 {
				e.upper = e.lower
				return Sat, nil
			}
			// At least one core variable is true.
			e.s.Assert(e.b.Not(AtMostK(e.b, coreVars, 0)))
			e.upper--
		}
	}
	return Sat, nil
}
