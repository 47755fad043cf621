package opt_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crillab/gopt/expr"
	"github.com/crillab/gopt/inf"
	"github.com/crillab/gopt/opt"
	"github.com/crillab/gopt/sat"
)

// Hard a∨b with softs ¬a and ¬b: exactly one soft can be satisfied.
func TestMaxSATOneOfTwo(t *testing.T) {
	for _, engine := range []opt.Engine{opt.CoreGuided, opt.FuMalik} {
		t.Run(string(engine), func(t *testing.T) {
			b := expr.NewBuilder()
			s := sat.New(b)
			a, bb := b.BoolVar("a"), b.BoolVar("b")
			c := opt.New(b, s, opt.WithMaxSATEngine(engine))
			require.NoError(t, c.AddHard(b.Or(a, bb)))
			idx := addUnitSofts(t, c, "m", b.Not(a), b.Not(bb))

			st, err := c.Optimize(opt.Lex)
			require.NoError(t, err)
			require.Equal(t, opt.Sat, st)
			requireBounds(t, c, idx, inf.Int64(1))

			first, err := c.Assignment("m", 0)
			require.NoError(t, err)
			second, err := c.Assignment("m", 1)
			require.NoError(t, err)
			assert.True(t, first != second, "exactly one soft must be satisfied, got %t/%t", first, second)
		})
	}
}

// Softs a and ¬a under no hard constraints: value 1, one entry true.
func TestMaxSATComplementarySofts(t *testing.T) {
	for _, engine := range []opt.Engine{opt.CoreGuided, opt.FuMalik} {
		t.Run(string(engine), func(t *testing.T) {
			b := expr.NewBuilder()
			s := sat.New(b)
			a := b.BoolVar("a")
			c := opt.New(b, s, opt.WithMaxSATEngine(engine))
			idx := addUnitSofts(t, c, "m", a, b.Not(a))

			st, err := c.Optimize(opt.Lex)
			require.NoError(t, err)
			require.Equal(t, opt.Sat, st)
			requireBounds(t, c, idx, inf.Int64(1))

			first, err := c.Assignment("m", 0)
			require.NoError(t, err)
			second, err := c.Assignment("m", 1)
			require.NoError(t, err)
			assert.True(t, first != second)
		})
	}
}

// All softs satisfiable at once: the optimum is the total weight.
func TestMaxSATAllTrue(t *testing.T) {
	b := expr.NewBuilder()
	s := sat.New(b)
	c := opt.New(b, s)
	idx := addUnitSofts(t, c, "m", b.BoolVar("a"), b.BoolVar("b"), b.BoolVar("c"))

	st, err := c.Optimize(opt.Lex)
	require.NoError(t, err)
	require.Equal(t, opt.Sat, st)
	requireBounds(t, c, idx, inf.Int64(3))
	for i := 0; i < 3; i++ {
		got, err := c.Assignment("m", i)
		require.NoError(t, err)
		assert.True(t, got)
	}
}

// Weighted softs: satisfying the weight-2 soft beats the weight-1 one.
func TestMaxSATWeighted(t *testing.T) {
	for _, engine := range []opt.Engine{opt.CoreGuided, opt.FuMalik} {
		t.Run(string(engine), func(t *testing.T) {
			b := expr.NewBuilder()
			s := sat.New(b)
			a, bb := b.BoolVar("a"), b.BoolVar("b")
			c := opt.New(b, s, opt.WithMaxSATEngine(engine))
			require.NoError(t, c.AddHard(b.Or(a, bb)))
			_, err := c.AddSoft(b.Not(a), big.NewRat(2, 1), "m")
			require.NoError(t, err)
			idx, err := c.AddSoft(b.Not(bb), big.NewRat(1, 1), "m")
			require.NoError(t, err)

			st, err := c.Optimize(opt.Lex)
			require.NoError(t, err)
			require.Equal(t, opt.Sat, st)
			requireBounds(t, c, idx, inf.Int64(2))

			notA, err := c.Assignment("m", 0)
			require.NoError(t, err)
			notB, err := c.Assignment("m", 1)
			require.NoError(t, err)
			assert.True(t, notA)
			assert.False(t, notB)
		})
	}
}

// Unsatisfiable hard constraints surface as Unsat with no values.
func TestUnsatHard(t *testing.T) {
	b := expr.NewBuilder()
	s := sat.New(b)
	a := b.BoolVar("a")
	c := opt.New(b, s)
	require.NoError(t, c.AddHard(a))
	require.NoError(t, c.AddHard(b.Not(a)))
	idx := addUnitSofts(t, c, "m", b.BoolVar("x"))

	st, err := c.Optimize(opt.Lex)
	require.NoError(t, err)
	require.Equal(t, opt.Unsat, st)
	_, err = c.LowerValue(idx)
	assert.ErrorIs(t, err, opt.ErrNoValue)
}

// Push/pop across optimization runs: the popped scope's constraints
// and softs are gone, and the solver answers from the outer scope.
func TestPushPopAcrossRuns(t *testing.T) {
	b := expr.NewBuilder()
	s := sat.New(b)
	a := b.BoolVar("a")
	c := opt.New(b, s)
	require.NoError(t, c.AddHard(a))

	c.Push()
	require.NoError(t, c.AddHard(b.Not(a)))
	st, err := c.Optimize(opt.Lex)
	require.NoError(t, err)
	require.Equal(t, opt.Unsat, st)
	c.Pop(1)

	idx := addUnitSofts(t, c, "m", b.Not(a))
	st, err = c.Optimize(opt.Lex)
	require.NoError(t, err)
	require.Equal(t, opt.Sat, st)
	// a is forced true, so the soft ¬a stays unsatisfied.
	requireBounds(t, c, idx, inf.Int64(0))
}

// A weighted group optimized per lexicographic order constrains the
// following group.
func TestLexChainsWeightedGroups(t *testing.T) {
	b := expr.NewBuilder()
	s := sat.New(b)
	a, bb := b.BoolVar("a"), b.BoolVar("b")
	c := opt.New(b, s)
	require.NoError(t, c.AddHard(b.Or(b.Not(a), b.Not(bb))))
	first := addUnitSofts(t, c, "one", a)
	second := addUnitSofts(t, c, "two", bb)

	st, err := c.Optimize(opt.Lex)
	require.NoError(t, err)
	require.Equal(t, opt.Sat, st)
	requireBounds(t, c, first, inf.Int64(1))
	requireBounds(t, c, second, inf.Int64(0))
}

func TestSolverAtMostK(t *testing.T) {
	b := expr.NewBuilder()
	s := sat.New(b)
	vars := []*expr.Term{b.BoolVar("a"), b.BoolVar("b"), b.BoolVar("c")}
	s.Assert(b.AtMostK(vars, 1))
	s.Assert(b.Or(vars...))
	require.Equal(t, opt.Sat, s.CheckAssuming(nil))

	s.Assert(b.And(vars[0], vars[1]))
	require.Equal(t, opt.Unsat, s.CheckAssuming(nil))
}
