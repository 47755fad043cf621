package opt

import (
	"io"
	"math/big"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/crillab/gopt/expr"
	"github.com/crillab/gopt/inf"
)

// A Discipline selects how multiple objectives are composed.
type Discipline byte

// The multi-objective disciplines.
const (
	// Lex optimizes objectives in declaration order, committing
	// each optimum before the next objective.
	Lex = Discipline(iota)
	// Box optimizes each objective independently from the same
	// hard-constraint scope.
	Box
	// Pareto yields one Pareto-optimal model per Optimize call.
	Pareto
)

func (d Discipline) String() string {
	switch d {
	case Lex:
		return "lex"
	case Box:
		return "box"
	case Pareto:
		return "pareto"
	default:
		panic("invalid discipline")
	}
}

// An Option configures a Context.
type Option func(*Context)

// WithLogger sets the logger used for engine progress.
func WithLogger(log *logrus.Logger) Option {
	return func(c *Context) { c.log = log }
}

// WithMaxSATEngine selects the engine used for weighted objectives.
func WithMaxSATEngine(e Engine) Option {
	return func(c *Context) { c.engine = e }
}

// A Context organizes optimization over a base solver. Declarations
// go through AddHard, AddSoft and AddObjective inside Push/Pop scopes;
// Optimize runs the search. The search state is rebuilt from the
// declarations on every Optimize call, because a run may permanently
// assert lemmas into its solver scope.
type Context struct {
	b      *expr.Builder
	s      BaseSolver
	log    *logrus.Logger
	engine Engine

	scoped     scopedState
	objectives []objective
	maxsmts    map[string]*maxsmt
	osmt       optsmt

	model      expr.Model
	haveBounds bool
	cancelled  atomic.Bool
	reason     string
	pareto     *paretoState
}

// New returns a Context optimizing against the given solver, building
// formulas with the given builder.
func New(b *expr.Builder, s BaseSolver, opts ...Option) *Context {
	c := &Context{
		b:       b,
		s:       s,
		engine:  CoreGuided,
		scoped:  newScopedState(),
		maxsmts: make(map[string]*maxsmt),
	}
	c.log = logrus.New()
	c.log.SetOutput(io.Discard)
	for _, opt := range opts {
		opt(c)
	}
	c.osmt = optsmt{b: b, log: c.log, cancel: &c.cancelled}
	return c
}

// Push opens a new declaration scope.
func (c *Context) Push() {
	c.scoped.push()
	c.s.Push()
}

// Pop discards the n innermost declaration scopes, removing the hard
// constraints, objectives and soft constraints declared in them.
func (c *Context) Pop(n int) {
	for i := 0; i < n && len(c.scoped.hardLim) > 0; i++ {
		c.scoped.pop()
		c.s.Pop(1)
	}
}

// AddHard adds a hard constraint to the current scope.
func (c *Context) AddHard(f *expr.Term) error {
	if f.Sort() != expr.Bool {
		return &TypeError{Term: f, Want: "Bool"}
	}
	c.scoped.addHard(f)
	return nil
}

// AddSoft adds a soft constraint with a positive weight to the
// weighted objective named by id, creating the objective if needed.
// It returns the index of that objective.
func (c *Context) AddSoft(f *expr.Term, w *big.Rat, id string) (int, error) {
	return c.scoped.addSoft(f, w, id)
}

// AddObjective declares an arithmetic or bit-vector term to maximize
// or minimize, and returns its objective index.
func (c *Context) AddObjective(t *expr.Term, isMax bool) (int, error) {
	return c.scoped.addObjective(t, isMax)
}

// Cancel sets or clears cancellation. A running Optimize observes it
// between solver calls and returns Indet with the bounds reached so
// far. Lemmas asserted before the cancellation are not rolled back;
// Pop restores the state.
func (c *Context) Cancel(on bool) {
	c.cancelled.Store(on)
	c.s.Cancel(on)
}

// ReasonUnknown describes the last Indet outcome.
func (c *Context) ReasonUnknown() string { return c.reason }

// Model returns the best model found by the last Optimize call.
func (c *Context) Model() (expr.Model, error) {
	if c.model == nil {
		return nil, ErrNoValue
	}
	return c.model, nil
}

// Assignment returns the truth value of the i-th soft constraint of
// the weighted objective named by id, under the best model found.
func (c *Context) Assignment(id string, i int) (bool, error) {
	ms, ok := c.maxsmts[id]
	if !ok {
		return false, &IndexError{ID: id}
	}
	if ms.assignment == nil {
		return false, ErrNoValue
	}
	if i < 0 || i >= len(ms.assignment) {
		return false, &IndexError{Index: i}
	}
	return ms.assignment[i], nil
}

// Optimize runs the search under the given discipline and reports
// whether an optimum was found, the hard constraints are
// unsatisfiable, or the outcome is unknown. While a Pareto
// enumeration is in progress, subsequent calls continue it.
func (c *Context) Optimize(d Discipline) (Status, error) {
	if c.pareto != nil {
		return c.executePareto()
	}
	c.reason = ""
	c.model = nil
	c.importScopedState()

	c.s.Push()
	keep := false
	defer func() {
		if !keep {
			c.s.Pop(1)
		}
	}()
	for _, h := range c.scoped.hard {
		c.s.Assert(h)
	}
	c.log.WithField("discipline", d).Debug("optimize: check-sat")
	switch st := c.s.CheckAssuming(nil); st {
	case Unsat:
		return Unsat, nil
	case Indet:
		c.noteIndet(nil)
		return Indet, nil
	}
	c.model = c.s.Model()
	c.haveBounds = true
	if len(c.objectives) == 0 {
		return Sat, nil
	}
	switch d {
	case Pareto:
		keep = true
		c.pareto = &paretoState{}
		return c.executePareto()
	case Box:
		return c.executeBox()
	default:
		return c.executeLex()
	}
}

// importScopedState rebuilds the per-run optimization state from the
// declarations, normalizing objectives on the way: minimized or
// maximized pseudo-boolean sums and bit-vector terms become weighted
// objectives, every other arithmetic term goes to the single-term
// optimizer.
func (c *Context) importScopedState() {
	c.osmt.reset()
	c.maxsmts = make(map[string]*maxsmt)
	c.objectives = make([]objective, 0, len(c.scoped.objectives))
	c.haveBounds = false
	for _, src := range c.scoped.objectives {
		obj := c.normalize(src)
		if obj.kind == oMaxsat {
			c.maxsmts[obj.id] = &maxsmt{
				b:       c.b,
				log:     c.log,
				cancel:  &c.cancelled,
				engine:  c.engine,
				id:      obj.id,
				softs:   obj.softs,
				weights: obj.weights,
			}
		} else {
			t := obj.term
			if obj.kind == oMinimize {
				t = c.b.Neg(t)
			}
			obj.index = c.osmt.add(t)
		}
		c.objectives = append(c.objectives, obj)
	}
}

func (c *Context) normalize(obj objective) objective {
	if obj.kind == oMaxsat {
		return obj
	}
	if obj.term.Sort().IsBV() {
		return c.bvToMaxsat(obj)
	}
	if lits, coeffs, cst, ok := pbSum(obj.term); ok && len(lits) > 0 {
		return c.pbToMaxsat(obj, lits, coeffs, cst)
	}
	return obj
}

// pbSum recognizes pseudo-boolean sums: additions of numerals and of
// (scaled) if-then-else terms over numerals. It returns the boolean
// conditions, their coefficients and the constant part.
func pbSum(t *expr.Term) (lits []*expr.Term, coeffs []*big.Rat, cst *big.Rat, ok bool) {
	cst = new(big.Rat)
	args := []*expr.Term{t}
	if t.Op() == expr.OpAdd {
		args = t.Args()
	}
	for _, a := range args {
		coeff := big.NewRat(1, 1)
		if a.Op() == expr.OpMul {
			coeff = a.Rat()
			a = a.Args()[0]
		}
		switch a.Op() {
		case expr.OpNum:
			cst.Add(cst, new(big.Rat).Mul(coeff, a.Rat()))
		case expr.OpIte:
			tt, ff := a.Args()[1], a.Args()[2]
			if tt.Op() != expr.OpNum || ff.Op() != expr.OpNum {
				return nil, nil, nil, false
			}
			// coeff*ite(c, x, y) = coeff*(x-y)*[c] + coeff*y
			w := new(big.Rat).Mul(coeff, new(big.Rat).Sub(tt.Rat(), ff.Rat()))
			cst.Add(cst, new(big.Rat).Mul(coeff, ff.Rat()))
			if w.Sign() != 0 {
				lits = append(lits, a.Args()[0])
				coeffs = append(coeffs, w)
			}
		default:
			return nil, nil, nil, false
		}
	}
	return lits, coeffs, cst, true
}

// pbToMaxsat converts maximize/minimize of a pseudo-boolean sum into a
// weighted objective: positive coefficients become softs on the
// condition, negative ones on its negation, and the constant parts
// move into the offset. Minimization maximizes the negated sum and
// flips the reported sign.
func (c *Context) pbToMaxsat(obj objective, lits []*expr.Term, coeffs []*big.Rat, cst *big.Rat) objective {
	neg := obj.kind == oMinimize
	offset := new(big.Rat).Set(cst)
	if neg {
		offset.Neg(offset)
	}
	out := objective{
		kind:   oMaxsat,
		term:   obj.term,
		id:     obj.term.String(),
		offset: offset,
		neg:    neg,
	}
	for i, lit := range lits {
		w := new(big.Rat).Set(coeffs[i])
		if neg {
			w.Neg(w)
		}
		if w.Sign() > 0 {
			out.softs = append(out.softs, lit)
			out.weights = append(out.weights, w)
		} else {
			out.softs = append(out.softs, c.b.Not(lit))
			out.weights = append(out.weights, new(big.Rat).Neg(w))
			out.offset.Add(out.offset, w)
		}
	}
	return out
}

// bvToMaxsat converts maximize/minimize of a bit-vector term into a
// weighted objective over its bits, with weight 2^i on bit i.
func (c *Context) bvToMaxsat(obj objective) objective {
	width := obj.term.Sort().Width
	neg := obj.kind == oMinimize
	bit := uint64(1)
	if neg {
		bit = 0
	}
	out := objective{
		kind:   oMaxsat,
		term:   obj.term,
		id:     obj.term.String(),
		offset: new(big.Rat),
		neg:    neg,
	}
	total := new(big.Rat)
	for i := 0; i < width; i++ {
		w := new(big.Rat).SetInt(new(big.Int).Lsh(big.NewInt(1), uint(i)))
		out.softs = append(out.softs, c.b.Eq(c.b.Extract(i, obj.term), c.b.BVNum(bit, 1)))
		out.weights = append(out.weights, w)
		total.Add(total, w)
	}
	if neg {
		out.offset.Neg(total)
	}
	return out
}

func (c *Context) executeLex() (Status, error) {
	for i := range c.objectives {
		committed := i+1 < len(c.objectives)
		st, err := c.execute(&c.objectives[i], committed)
		if st != Sat || err != nil {
			return st, err
		}
		lo, err := c.LowerValue(i)
		if err == nil && lo.IsInfinite() {
			return Sat, nil
		}
	}
	return Sat, nil
}

func (c *Context) executeBox() (Status, error) {
	st, err := c.osmt.box(c.s)
	if st != Sat || err != nil {
		if st == Indet {
			c.noteIndet(err)
		}
		return st, err
	}
	if c.osmt.model != nil {
		c.model = c.osmt.model
	}
	for i := range c.objectives {
		if c.objectives[i].kind != oMaxsat {
			continue
		}
		c.s.Push()
		st, err = c.execute(&c.objectives[i], false)
		c.s.Pop(1)
		if st != Sat || err != nil {
			return st, err
		}
	}
	return Sat, nil
}

func (c *Context) execute(obj *objective, committed bool) (Status, error) {
	switch obj.kind {
	case oMaxsat:
		ms := c.maxsmts[obj.id]
		st, err := ms.run(c.s)
		if st == Sat {
			if committed {
				ms.commitAssignment(c.s)
			}
			if ms.model != nil {
				c.model = ms.model
			}
		} else if st == Indet {
			c.noteIndet(err)
		}
		return st, err
	default:
		st, err := c.osmt.lex(c.s, obj.index)
		if st == Sat {
			if committed {
				c.osmt.commit(c.s, obj.index)
			}
			c.model = c.osmt.model
		} else if st == Indet {
			c.noteIndet(err)
		}
		return st, err
	}
}

func (c *Context) noteIndet(err error) {
	switch {
	case err != nil:
		c.reason = err.Error()
	case c.cancelled.Load():
		c.reason = "cancelled"
	default:
		c.reason = c.s.ReasonUnknown()
	}
}

// LowerValue returns the lower bound of objective idx as an extended
// rational, in the caller's value domain.
func (c *Context) LowerValue(idx int) (inf.Num, error) {
	return c.bound(idx, true)
}

// UpperValue returns the upper bound of objective idx as an extended
// rational, in the caller's value domain.
func (c *Context) UpperValue(idx int) (inf.Num, error) {
	return c.bound(idx, false)
}

// Lower returns the lower bound of objective idx as a term, using the
// reserved constants oo and epsilon for the infinite parts.
func (c *Context) Lower(idx int) (*expr.Term, error) {
	n, err := c.bound(idx, true)
	if err != nil {
		return nil, err
	}
	return c.boundTerm(n), nil
}

// Upper returns the upper bound of objective idx as a term, using the
// reserved constants oo and epsilon for the infinite parts.
func (c *Context) Upper(idx int) (*expr.Term, error) {
	n, err := c.bound(idx, false)
	if err != nil {
		return nil, err
	}
	return c.boundTerm(n), nil
}

func (c *Context) bound(idx int, isLower bool) (inf.Num, error) {
	if idx < 0 || idx >= len(c.objectives) {
		return inf.Num{}, &IndexError{Index: idx}
	}
	if !c.haveBounds {
		return inf.Num{}, ErrNoValue
	}
	obj := &c.objectives[idx]
	switch obj.kind {
	case oMaxsat:
		ms := c.maxsmts[obj.id]
		if ms.lower == nil {
			return inf.Num{}, ErrNoValue
		}
		v := ms.lower
		if isLower == obj.neg {
			v = ms.upper
		}
		r := new(big.Rat).Add(v, obj.offset)
		if obj.neg {
			r.Neg(r)
		}
		return inf.Rat(r), nil
	case oMinimize:
		// The optimizer holds the negated term.
		if isLower {
			return c.osmt.upper[obj.index].Neg(), nil
		}
		return c.osmt.lower[obj.index].Neg(), nil
	default:
		if isLower {
			return c.osmt.lower[obj.index], nil
		}
		return c.osmt.upper[obj.index], nil
	}
}

// boundTerm renders an extended rational as the symbolic expression
// a*oo + r + b*epsilon over the reserved constants oo and epsilon.
func (c *Context) boundTerm(n inf.Num) *expr.Term {
	var args []*expr.Term
	if a := n.Infinity(); a.Sign() != 0 {
		args = append(args, c.b.Mul(a, c.b.IntVar("oo")))
	}
	if r := n.Rational(); r.Sign() != 0 {
		args = append(args, c.b.Rat(r))
	}
	if e := n.Infinitesimal(); e.Sign() != 0 {
		args = append(args, c.b.Mul(e, c.b.IntVar("epsilon")))
	}
	if len(args) == 0 {
		return c.b.Int64(0)
	}
	return c.b.Add(args...)
}
