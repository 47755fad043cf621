package opt

import (
	"math/big"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/crillab/gopt/expr"
)

// An Engine selects the MaxSAT algorithm used for weighted objectives.
type Engine string

// The available MaxSAT engines.
const (
	CoreGuided Engine = "core-guided"
	FuMalik    Engine = "fu-malik"
)

// maxsmt owns the MaxSAT state of one weighted objective: the engine
// choice, the soft constraints with their weights, the bounds on the
// satisfied weight and the best assignment found so far. It is rebuilt
// from the scoped state on every optimization run.
type maxsmt struct {
	b      *expr.Builder
	log    *logrus.Logger
	cancel *atomic.Bool
	engine Engine

	id      string
	softs   []*expr.Term
	weights []*big.Rat

	// Bounds on the weight of satisfiable soft constraints.
	// lower is witnessed by model; nil until run was called.
	lower      *big.Rat
	upper      *big.Rat
	assignment []bool
	model      expr.Model
}

// run executes the configured engine once. Non-unit weights are
// reduced to the unit-weight engines by normalizing them to the
// smallest integer multiples and expanding each soft constraint into
// that many unit copies.
func (ms *maxsmt) run(s BaseSolver) (Status, error) {
	n := len(ms.softs)
	ms.assignment = make([]bool, n)
	ms.lower = new(big.Rat)
	ms.upper = new(big.Rat)
	if n == 0 {
		return Sat, nil
	}
	units, origin, unitWeight := expandWeights(ms.softs, ms.weights)
	var (
		st         Status
		err        error
		lower      int
		upper      int
		unitAnswer []bool
		model      expr.Model
	)
	switch ms.engine {
	case FuMalik:
		e := &fuMalikEngine{b: ms.b, s: s, log: ms.log, cancel: ms.cancel, orig: units}
		st, err = e.run()
		lower, upper, unitAnswer, model = e.lower, e.upper, e.answer, e.model
	default:
		e := &coreEngine{b: ms.b, s: s, log: ms.log, cancel: ms.cancel, soft: units}
		st, err = e.run()
		lower, upper, unitAnswer, model = e.lower, e.upper, e.answer, e.model
	}
	if st == Unsat {
		ms.lower, ms.upper = nil, nil
		return Unsat, err
	}

	ms.lower.Mul(new(big.Rat).SetInt64(int64(lower)), unitWeight)
	ms.upper.Mul(new(big.Rat).SetInt64(int64(upper)), unitWeight)
	for u, i := range origin {
		ms.assignment[i] = unitAnswer[u]
	}
	if model != nil {
		ms.model = model
	}
	ms.log.WithFields(logrus.Fields{
		"id":    ms.id,
		"lower": ms.lower.RatString(),
		"upper": ms.upper.RatString(),
	}).Debug("maxsat bounds")
	return st, err
}

// commitAssignment permanently asserts that future searches match or
// improve the satisfied weight reached by the engine. The constraint
// is pseudo-boolean, bounding the violated weight by total-lower, so
// that purely propositional base solvers can express it.
func (ms *maxsmt) commitAssignment(s BaseSolver) {
	if len(ms.softs) == 0 {
		return
	}
	scaled, lcm := scaledWeights(ms.weights)
	total := new(big.Int)
	lits := make([]*expr.Term, len(ms.softs))
	coeffs := make([]int64, len(ms.softs))
	for i, sc := range ms.softs {
		total.Add(total, scaled[i])
		lits[i] = ms.b.Not(sc)
		coeffs[i] = scaled[i].Int64()
	}
	lowerScaled := new(big.Rat).Mul(ms.lower, new(big.Rat).SetInt(lcm))
	k := new(big.Int).Sub(total, lowerScaled.Num())
	s.Assert(ms.b.AtMostKWeighted(lits, coeffs, k.Int64()))
}

// valueTerm is the arithmetic rendering of the satisfied weight:
// the sum of ite(soft, weight, 0) over the soft constraints.
func (ms *maxsmt) valueTerm() *expr.Term {
	zero := ms.b.Int64(0)
	terms := make([]*expr.Term, 0, len(ms.softs))
	for i, sc := range ms.softs {
		terms = append(terms, ms.b.Ite(sc, ms.b.Rat(ms.weights[i]), zero))
	}
	return ms.b.Add(terms...)
}

// expandWeights normalizes rational weights to their smallest integer
// multiples and expands each soft constraint into that many unit
// copies. It returns the unit copies, the original index of each copy,
// and the weight one copy stands for.
func expandWeights(softs []*expr.Term, weights []*big.Rat) (units []*expr.Term, origin []int, unitWeight *big.Rat) {
	scaled, lcm := scaledWeights(weights)
	gcd := new(big.Int)
	for _, w := range scaled {
		gcd.GCD(nil, nil, gcd, w)
	}
	for i, sc := range softs {
		copies := new(big.Int).Div(scaled[i], gcd).Int64()
		for c := int64(0); c < copies; c++ {
			units = append(units, sc)
			origin = append(origin, i)
		}
	}
	unitWeight = new(big.Rat).SetFrac(gcd, lcm)
	return units, origin, unitWeight
}

// scaledWeights multiplies the weights by the least common multiple of
// their denominators, yielding integer weights.
func scaledWeights(weights []*big.Rat) (scaled []*big.Int, lcm *big.Int) {
	lcm = big.NewInt(1)
	for _, w := range weights {
		lcm.Div(new(big.Int).Mul(lcm, w.Denom()), new(big.Int).GCD(nil, nil, lcm, w.Denom()))
	}
	scaled = make([]*big.Int, len(weights))
	for i, w := range weights {
		scaled[i] = new(big.Int).Div(new(big.Int).Mul(w.Num(), lcm), w.Denom())
	}
	return scaled, lcm
}
