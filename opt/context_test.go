package opt_test

import (
	"math/big"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crillab/gopt/expr"
	"github.com/crillab/gopt/inf"
	"github.com/crillab/gopt/opt"
)

func requireBounds(t *testing.T, c *opt.Context, idx int, want inf.Num) {
	t.Helper()
	lo, err := c.LowerValue(idx)
	require.NoError(t, err)
	up, err := c.UpperValue(idx)
	require.NoError(t, err)
	assert.Zero(t, lo.Cmp(want), "lower bound: got %s, want %s", lo, want)
	assert.Zero(t, up.Cmp(want), "upper bound: got %s, want %s", up, want)
}

func TestMaximizeSum(t *testing.T) {
	b := expr.NewBuilder()
	s := newFDSolver()
	x, y := b.IntVar("x"), b.IntVar("y")
	s.declareInt(x, 0, 10)
	s.declareInt(y, 0, 10)
	c := opt.New(b, s)
	require.NoError(t, c.AddHard(b.Le(b.Add(x, y), b.Int64(10))))
	idx, err := c.AddObjective(b.Add(x, y), true)
	require.NoError(t, err)

	st, err := c.Optimize(opt.Lex)
	require.NoError(t, err)
	require.Equal(t, opt.Sat, st)
	requireBounds(t, c, idx, inf.Int64(10))

	lo, err := c.Lower(idx)
	require.NoError(t, err)
	assert.Equal(t, b.Int64(10), lo)

	m, err := c.Model()
	require.NoError(t, err)
	v, err := m.EvalRat(b.Add(x, y))
	require.NoError(t, err)
	assert.Zero(t, v.Cmp(big.NewRat(10, 1)))
}

func TestMinimize(t *testing.T) {
	b := expr.NewBuilder()
	s := newFDSolver()
	x := b.IntVar("x")
	s.declareInt(x, 1, 5)
	c := opt.New(b, s)
	idx, err := c.AddObjective(x, false)
	require.NoError(t, err)

	st, err := c.Optimize(opt.Lex)
	require.NoError(t, err)
	require.Equal(t, opt.Sat, st)
	requireBounds(t, c, idx, inf.Int64(1))
}

func TestLexTwoObjectives(t *testing.T) {
	b := expr.NewBuilder()
	s := newFDSolver()
	x, y := b.IntVar("x"), b.IntVar("y")
	s.declareInt(x, 0, 3)
	s.declareInt(y, 0, 3)
	c := opt.New(b, s)
	require.NoError(t, c.AddHard(b.Le(b.Add(x, y), b.Int64(4))))
	ix, err := c.AddObjective(x, true)
	require.NoError(t, err)
	iy, err := c.AddObjective(y, true)
	require.NoError(t, err)

	st, err := c.Optimize(opt.Lex)
	require.NoError(t, err)
	require.Equal(t, opt.Sat, st)
	requireBounds(t, c, ix, inf.Int64(3))
	requireBounds(t, c, iy, inf.Int64(1))

	m, err := c.Model()
	require.NoError(t, err)
	vx, err := m.EvalRat(x)
	require.NoError(t, err)
	vy, err := m.EvalRat(y)
	require.NoError(t, err)
	assert.Zero(t, vx.Cmp(big.NewRat(3, 1)))
	assert.Zero(t, vy.Cmp(big.NewRat(1, 1)))
}

func TestBox(t *testing.T) {
	b := expr.NewBuilder()
	s := newFDSolver()
	x, y := b.IntVar("x"), b.IntVar("y")
	s.declareInt(x, 1, 5)
	s.declareInt(y, 2, 7)
	c := opt.New(b, s)
	require.NoError(t, c.AddHard(b.Le(b.Add(x, y), b.Int64(9))))
	ix, err := c.AddObjective(x, true)
	require.NoError(t, err)
	iy, err := c.AddObjective(y, true)
	require.NoError(t, err)

	st, err := c.Optimize(opt.Box)
	require.NoError(t, err)
	require.Equal(t, opt.Sat, st)
	// Stand-alone optima, not jointly achievable under x+y <= 9.
	requireBounds(t, c, ix, inf.Int64(5))
	requireBounds(t, c, iy, inf.Int64(7))
}

func TestParetoFrontier(t *testing.T) {
	b := expr.NewBuilder()
	s := newFDSolver()
	x, y := b.IntVar("x"), b.IntVar("y")
	s.declareInt(x, 0, 3)
	s.declareInt(y, 0, 3)
	c := opt.New(b, s)
	require.NoError(t, c.AddHard(b.Le(b.Add(x, y), b.Int64(3))))
	ix, err := c.AddObjective(x, true)
	require.NoError(t, err)
	iy, err := c.AddObjective(y, true)
	require.NoError(t, err)

	var frontier [][2]int64
	for {
		st, err := c.Optimize(opt.Pareto)
		require.NoError(t, err)
		if st == opt.Unsat {
			break
		}
		require.Equal(t, opt.Sat, st)
		lx, err := c.LowerValue(ix)
		require.NoError(t, err)
		ly, err := c.LowerValue(iy)
		require.NoError(t, err)
		frontier = append(frontier, [2]int64{
			lx.Rational().Num().Int64(),
			ly.Rational().Num().Int64(),
		})
		require.Less(t, len(frontier), 10, "pareto enumeration does not terminate")
	}
	sort.Slice(frontier, func(i, j int) bool { return frontier[i][0] < frontier[j][0] })
	want := [][2]int64{{0, 3}, {1, 2}, {2, 1}, {3, 0}}
	if diff := cmp.Diff(want, frontier); diff != "" {
		t.Errorf("pareto frontier mismatch (-want +got):\n%s", diff)
	}
}

func TestMaximizeBV(t *testing.T) {
	for _, engine := range []opt.Engine{opt.CoreGuided, opt.FuMalik} {
		t.Run(string(engine), func(t *testing.T) {
			b := expr.NewBuilder()
			s := newFDSolver()
			v := b.BVVar("v", 3)
			s.declareBV(v)
			c := opt.New(b, s, opt.WithMaxSATEngine(engine))
			require.NoError(t, c.AddHard(b.Ule(v, b.BVNum(5, 3))))
			idx, err := c.AddObjective(v, true)
			require.NoError(t, err)

			st, err := c.Optimize(opt.Lex)
			require.NoError(t, err)
			require.Equal(t, opt.Sat, st)
			requireBounds(t, c, idx, inf.Int64(5))
		})
	}
}

func TestMinimizeBV(t *testing.T) {
	b := expr.NewBuilder()
	s := newFDSolver()
	v := b.BVVar("v", 3)
	s.declareBV(v)
	c := opt.New(b, s)
	require.NoError(t, c.AddHard(b.Ule(b.BVNum(2, 3), v)))
	idx, err := c.AddObjective(v, false)
	require.NoError(t, err)

	st, err := c.Optimize(opt.Lex)
	require.NoError(t, err)
	require.Equal(t, opt.Sat, st)
	requireBounds(t, c, idx, inf.Int64(2))
}

func TestMaximizePseudoBooleanSum(t *testing.T) {
	for _, engine := range []opt.Engine{opt.CoreGuided, opt.FuMalik} {
		t.Run(string(engine), func(t *testing.T) {
			b := expr.NewBuilder()
			s := newFDSolver()
			a, bb, cc := b.BoolVar("a"), b.BoolVar("b"), b.BoolVar("c")
			c := opt.New(b, s, opt.WithMaxSATEngine(engine))
			zero := b.Int64(0)
			sum := b.Add(
				b.Ite(a, b.Int64(2), zero),
				b.Ite(bb, b.Int64(3), zero),
				b.Neg(b.Ite(cc, b.Int64(1), zero)),
			)
			idx, err := c.AddObjective(sum, true)
			require.NoError(t, err)

			st, err := c.Optimize(opt.Lex)
			require.NoError(t, err)
			require.Equal(t, opt.Sat, st)
			requireBounds(t, c, idx, inf.Int64(5))
		})
	}
}

func TestUnsatHardConstraints(t *testing.T) {
	b := expr.NewBuilder()
	s := newFDSolver()
	x := b.IntVar("x")
	s.declareInt(x, 0, 1)
	c := opt.New(b, s)
	require.NoError(t, c.AddHard(b.Le(x, b.Int64(-1))))
	idx, err := c.AddObjective(x, true)
	require.NoError(t, err)

	st, err := c.Optimize(opt.Lex)
	require.NoError(t, err)
	require.Equal(t, opt.Unsat, st)
	_, err = c.LowerValue(idx)
	assert.ErrorIs(t, err, opt.ErrNoValue)
	_, err = c.Model()
	assert.ErrorIs(t, err, opt.ErrNoValue)
}

func TestNoObjectives(t *testing.T) {
	b := expr.NewBuilder()
	s := newFDSolver()
	x := b.IntVar("x")
	s.declareInt(x, 0, 1)
	c := opt.New(b, s)
	require.NoError(t, c.AddHard(b.Ge(x, b.Int64(0))))

	st, err := c.Optimize(opt.Lex)
	require.NoError(t, err)
	require.Equal(t, opt.Sat, st)
	_, err = c.LowerValue(0)
	var ierr *opt.IndexError
	assert.ErrorAs(t, err, &ierr)
}

func TestPushPopRemovesDeclarations(t *testing.T) {
	b := expr.NewBuilder()
	s := newFDSolver()
	x := b.IntVar("x")
	s.declareInt(x, 0, 5)
	c := opt.New(b, s)

	c.Push()
	require.NoError(t, c.AddHard(b.Le(x, b.Int64(1))))
	_, err := c.AddObjective(x, true)
	require.NoError(t, err)
	_, err = c.AddSoft(b.BoolVar("soft"), big.NewRat(1, 1), "g")
	require.NoError(t, err)
	c.Pop(1)

	st, err := c.Optimize(opt.Lex)
	require.NoError(t, err)
	require.Equal(t, opt.Sat, st)
	_, err = c.LowerValue(0)
	var ierr *opt.IndexError
	assert.ErrorAs(t, err, &ierr, "popped objective should be gone")
	_, err = c.Assignment("g", 0)
	assert.ErrorAs(t, err, &ierr, "popped weighted objective should be gone")
}

func TestFarkasTightening(t *testing.T) {
	b := expr.NewBuilder()
	fd := newFDSolver()
	x := b.IntVar("x")
	fd.declareInt(x, 0, 100)
	s := &tighteningSolver{fdSolver: fd, bound: func(t *expr.Term, m expr.Model) (inf.Num, bool) {
		return inf.Int64(100), true
	}}
	c := opt.New(b, s)
	idx, err := c.AddObjective(x, true)
	require.NoError(t, err)

	st, err := c.Optimize(opt.Lex)
	require.NoError(t, err)
	require.Equal(t, opt.Sat, st)
	requireBounds(t, c, idx, inf.Int64(100))
	assert.LessOrEqual(t, fd.checks, 4, "tightened chase should converge in a few checks")
}

func TestIndetRendersInfiniteBounds(t *testing.T) {
	b := expr.NewBuilder()
	x := b.IntVar("x")
	s := &scriptSolver{steps: []scriptStep{
		{status: opt.Sat, model: expr.Model{x: expr.IntValue(0)}},
		{status: opt.Indet},
	}}
	c := opt.New(b, s)
	idx, err := c.AddObjective(x, true)
	require.NoError(t, err)

	st, err := c.Optimize(opt.Lex)
	require.NoError(t, err)
	require.Equal(t, opt.Indet, st)
	assert.Equal(t, "incomplete", c.ReasonUnknown())

	up, err := c.Upper(idx)
	require.NoError(t, err)
	assert.Equal(t, b.IntVar("oo"), up)
	lo, err := c.Lower(idx)
	require.NoError(t, err)
	assert.Equal(t, b.Mul(big.NewRat(-1, 1), b.IntVar("oo")), lo)
}
