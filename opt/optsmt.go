package opt

import (
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/crillab/gopt/expr"
	"github.com/crillab/gopt/inf"
)

// optsmt maximizes arithmetic terms against the base solver with a
// monotone bound chase: check, evaluate the term in the model, assert
// that the term must exceed that value, repeat until unsat. Minimized
// terms are registered negated, so maximization is the only direction.
type optsmt struct {
	b      *expr.Builder
	log    *logrus.Logger
	cancel *atomic.Bool

	objs   []*expr.Term
	lower  []inf.Num
	upper  []inf.Num
	models []expr.Model
	model  expr.Model
}

func (o *optsmt) reset() {
	o.objs = nil
	o.lower = nil
	o.upper = nil
	o.models = nil
	o.model = nil
}

func (o *optsmt) add(t *expr.Term) int {
	o.objs = append(o.objs, t)
	o.lower = append(o.lower, inf.NegInf())
	o.upper = append(o.upper, inf.Inf())
	o.models = append(o.models, nil)
	return len(o.objs) - 1
}

// lex optimizes the objective at idx under the solver's current
// constraints, which include the commitments of any previously
// optimized objectives. The chase runs in its own solver scope, so its
// strict bound lemmas do not outlive it.
func (o *optsmt) lex(s BaseSolver, idx int) (Status, error) {
	s.Push()
	defer s.Pop(1)
	return o.chase(s, idx)
}

// box optimizes every objective independently from the same
// hard-constraint scope. Each objective keeps its own witness model.
func (o *optsmt) box(s BaseSolver) (Status, error) {
	for i := range o.objs {
		s.Push()
		st, err := o.chase(s, i)
		s.Pop(1)
		if st != Sat || err != nil {
			return st, err
		}
	}
	return Sat, nil
}

func (o *optsmt) chase(s BaseSolver, idx int) (Status, error) {
	t := o.objs[idx]
	hasModel := false
	for {
		if o.cancel.Load() {
			return Indet, nil
		}
		switch st := s.CheckAssuming(nil); st {
		case Indet:
			return Indet, nil
		case Unsat:
			if !hasModel {
				return Unsat, nil
			}
			o.upper[idx] = o.lower[idx]
			return Sat, nil
		default:
			m := s.Model()
			r, err := m.EvalRat(t)
			if err != nil {
				return Indet, errors.Wrap(err, "evaluating objective")
			}
			val := inf.Rat(r)
			if !hasModel || val.Cmp(o.lower[idx]) >= 0 {
				o.lower[idx] = val
				o.models[idx] = m
				o.model = m
			}
			hasModel = true
			o.log.WithFields(logrus.Fields{"objective": idx, "lower": val.String()}).Debug("optsmt bound")
			if w, ok := o.tighten(s, t, m, val); ok {
				if w.IsInfinite() {
					o.lower[idx] = inf.Inf()
					o.upper[idx] = inf.Inf()
					return Sat, nil
				}
				o.lower[idx] = w
				if w.Infinitesimal().Sign() > 0 {
					s.Assert(o.b.Gt(t, o.b.Rat(w.Rational())))
				} else {
					s.Assert(o.b.Ge(t, o.b.Rat(w.Rational())))
				}
				continue
			}
			s.Assert(o.b.Gt(t, o.b.Rat(r)))
		}
	}
}

// tighten consults the solver's Farkas bound strengthening, when
// available. The result is only used when it improves on the model
// value, so the chase always progresses.
func (o *optsmt) tighten(s BaseSolver, t *expr.Term, m expr.Model, val inf.Num) (inf.Num, bool) {
	tt, ok := s.(Tightener)
	if !ok {
		return inf.Num{}, false
	}
	w, ok := tt.Tighten(t, m)
	if !ok || w.Cmp(val) <= 0 {
		return inf.Num{}, false
	}
	return w, true
}

// commit permanently asserts that the objective at idx keeps at least
// the value reached by the chase.
func (o *optsmt) commit(s BaseSolver, idx int) {
	lo := o.lower[idx]
	if lo.IsInfinite() {
		return
	}
	if lo.Infinitesimal().Sign() > 0 {
		s.Assert(o.b.Gt(o.objs[idx], o.b.Rat(lo.Rational())))
		return
	}
	s.Assert(o.b.Ge(o.objs[idx], o.b.Rat(lo.Rational())))
}
