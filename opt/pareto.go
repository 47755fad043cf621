package opt

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/crillab/gopt/expr"
	"github.com/crillab/gopt/inf"
)

// paretoState marks a Pareto enumeration in progress. The solver scope
// opened by the first Optimize call stays open while the state is
// live; it accumulates, per yielded frontier point, a constraint
// requiring strict improvement on at least one objective, so that no
// point is yielded twice.
type paretoState struct {
	yielded int
}

// executePareto runs one round of guided improvement: find a feasible
// model, then repeatedly require every objective to be at least as
// good and some objective strictly better, until unsat proves the
// current model Pareto-optimal. The point is yielded through the
// context bounds and model, and excluded from future rounds.
func (c *Context) executePareto() (Status, error) {
	switch st := c.s.CheckAssuming(nil); st {
	case Unsat:
		// Frontier exhausted.
		c.finishPareto()
		return Unsat, nil
	case Indet:
		c.noteIndet(nil)
		return Indet, nil
	}
	m := c.s.Model()

	c.s.Push()
	for {
		if c.cancelled.Load() {
			c.s.Pop(1)
			c.noteIndet(nil)
			return Indet, nil
		}
		dominates, err := c.mkDominates(m)
		if err != nil {
			c.s.Pop(1)
			c.noteIndet(err)
			return Indet, err
		}
		c.s.Assert(dominates)
		switch st := c.s.CheckAssuming(nil); st {
		case Sat:
			m = c.s.Model()
			continue
		case Indet:
			c.s.Pop(1)
			c.noteIndet(nil)
			return Indet, nil
		}
		break // Unsat: m is Pareto-optimal.
	}
	c.s.Pop(1)

	if err := c.yield(m); err != nil {
		c.noteIndet(err)
		return Indet, err
	}
	improves, err := c.mkImproves(m)
	if err != nil {
		c.noteIndet(err)
		return Indet, err
	}
	c.s.Assert(improves)
	c.pareto.yielded++
	c.log.WithField("yielded", c.pareto.yielded).Debug("pareto point")
	return Sat, nil
}

func (c *Context) finishPareto() {
	c.pareto = nil
	c.s.Pop(1)
}

// mkDominates states that every objective is at least as good as under
// m and at least one is strictly better.
func (c *Context) mkDominates(m expr.Model) (*expr.Term, error) {
	conj := make([]*expr.Term, 0, len(c.objectives)+1)
	disj := make([]*expr.Term, 0, len(c.objectives))
	for i := range c.objectives {
		ge, err := c.mkGe(i, m)
		if err != nil {
			return nil, err
		}
		gt, err := c.mkGt(i, m)
		if err != nil {
			return nil, err
		}
		conj = append(conj, ge)
		disj = append(disj, gt)
	}
	conj = append(conj, c.b.Or(disj...))
	return c.b.And(conj...), nil
}

// mkImproves states that at least one objective is strictly better
// than under m.
func (c *Context) mkImproves(m expr.Model) (*expr.Term, error) {
	disj := make([]*expr.Term, 0, len(c.objectives))
	for i := range c.objectives {
		gt, err := c.mkGt(i, m)
		if err != nil {
			return nil, err
		}
		disj = append(disj, gt)
	}
	return c.b.Or(disj...), nil
}

// yield records the frontier point: per objective, lower and upper
// bounds collapse to its value under m.
func (c *Context) yield(m expr.Model) error {
	for i := range c.objectives {
		obj := &c.objectives[i]
		switch obj.kind {
		case oMaxsat:
			ms := c.maxsmts[obj.id]
			sum, ans, err := satisfiedWeight(m, ms.softs, ms.weights)
			if err != nil {
				return err
			}
			ms.lower = sum
			ms.upper = new(big.Rat).Set(sum)
			ms.assignment = ans
			ms.model = m
		default:
			v, err := m.EvalRat(c.osmt.objs[obj.index])
			if err != nil {
				return err
			}
			c.osmt.lower[obj.index] = inf.Rat(v)
			c.osmt.upper[obj.index] = inf.Rat(v)
			c.osmt.models[obj.index] = m
		}
	}
	c.model = m
	return nil
}

// objTerm is the arithmetic value of an objective: the declared term,
// or the weighted sum of satisfied softs for a weighted objective.
func (c *Context) objTerm(obj *objective) *expr.Term {
	if obj.kind == oMaxsat {
		return c.maxsmts[obj.id].valueTerm()
	}
	return obj.term
}

// maximizeLike indicates whether larger raw values of objTerm mean a
// better objective.
func maximizeLike(obj *objective) bool {
	switch obj.kind {
	case oMaximize:
		return true
	case oMaxsat:
		return !obj.neg
	default:
		return false
	}
}

// mkGe returns a formula stating that objective i is at least as good
// as under model m. The comparison runs over the raw objective term,
// with the direction flipped for minimization.
func (c *Context) mkGe(i int, m expr.Model) (*expr.Term, error) {
	obj := &c.objectives[i]
	term, val, err := c.termVal(obj, m)
	if err != nil {
		return nil, err
	}
	if maximizeLike(obj) {
		return c.ge(term, val), nil
	}
	return c.ge(val, term), nil
}

// mkLe returns a formula stating that objective i is at most as good
// as under model m.
func (c *Context) mkLe(i int, m expr.Model) (*expr.Term, error) {
	obj := &c.objectives[i]
	term, val, err := c.termVal(obj, m)
	if err != nil {
		return nil, err
	}
	if maximizeLike(obj) {
		return c.ge(val, term), nil
	}
	return c.ge(term, val), nil
}

// mkGt returns a formula stating that objective i is strictly better
// than under model m.
func (c *Context) mkGt(i int, m expr.Model) (*expr.Term, error) {
	le, err := c.mkLe(i, m)
	if err != nil {
		return nil, err
	}
	return c.b.Not(le), nil
}

func (c *Context) termVal(obj *objective, m expr.Model) (term, val *expr.Term, err error) {
	term = c.objTerm(obj)
	v, err := m.Eval(term)
	if err != nil {
		return nil, nil, errors.Wrap(err, "evaluating objective")
	}
	if v.Sort.IsBV() {
		return term, c.b.BVNum(v.BV, v.Sort.Width), nil
	}
	return term, c.b.Rat(v.Rat), nil
}

func (c *Context) ge(l, r *expr.Term) *expr.Term {
	if l.Sort().IsBV() {
		return c.b.Ule(r, l)
	}
	return c.b.Ge(l, r)
}

// satisfiedWeight sums the weights of the softs true under m and
// records each truth value.
func satisfiedWeight(m expr.Model, softs []*expr.Term, weights []*big.Rat) (*big.Rat, []bool, error) {
	sum := new(big.Rat)
	ans := make([]bool, len(softs))
	for i, sc := range softs {
		v, err := m.EvalBool(sc)
		if err != nil {
			return nil, nil, errors.Wrap(err, "evaluating soft constraint")
		}
		ans[i] = v
		if v {
			sum.Add(sum, weights[i])
		}
	}
	return sum, ans, nil
}
