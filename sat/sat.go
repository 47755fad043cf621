// Package sat implements the optimization engine's base-solver
// contract for the propositional fragment, on top of the gini SAT
// solver.
//
// Formulas are compiled into a hash-consed circuit (logic.C) whose
// Tseitin clauses are taught incrementally to the solver.
// Pseudo-boolean at-most-k terms become sorting networks. Scopes are
// realized with activation literals: a formula asserted inside a scope
// is guarded by the scope's literal, and popping the scope permanently
// falsifies it.
package sat

import (
	"io"
	"sync/atomic"
	"time"

	"github.com/go-air/gini"
	"github.com/go-air/gini/logic"
	"github.com/go-air/gini/z"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/crillab/gopt/expr"
	"github.com/crillab/gopt/opt"
)

// pollInterval is the slice after which a running check looks at the
// cancellation flag.
const pollInterval = 10 * time.Millisecond

// An Option configures a Solver.
type Option func(*Solver)

// WithLogger sets the logger used for per-check progress.
func WithLogger(log *logrus.Logger) Option {
	return func(s *Solver) { s.log = log }
}

// A Solver is an incremental propositional solver implementing
// opt.BaseSolver. It is not safe for concurrent use, except for
// Cancel.
type Solver struct {
	b   *expr.Builder
	g   *gini.Gini
	c   *logic.C
	log *logrus.Logger

	lits  map[*expr.Term]z.Lit
	atoms []*expr.Term // boolean variables, in registration order
	marks []int8       // circuit nodes already taught to the solver

	acts    []z.Lit             // activation literal per open scope
	assumed map[z.Lit]*expr.Term // last check's assumptions

	cancel atomic.Bool
	reason string
	err    error
}

// New returns an empty solver compiling terms built by b.
func New(b *expr.Builder, opts ...Option) *Solver {
	s := &Solver{
		b:    b,
		g:    gini.New(),
		c:    logic.NewC(),
		lits: make(map[*expr.Term]z.Lit),
	}
	s.log = logrus.New()
	s.log.SetOutput(io.Discard)
	for _, o := range opts {
		o(s)
	}
	// Pin the circuit's constant-true literal.
	s.g.Add(s.c.T)
	s.g.Add(z.LitNull)
	return s
}

// Push opens a new assertion scope.
func (s *Solver) Push() {
	s.acts = append(s.acts, s.c.Lit())
}

// Pop discards the n innermost scopes. The formulas asserted in them
// are permanently disabled.
func (s *Solver) Pop(n int) {
	for i := 0; i < n && len(s.acts) > 0; i++ {
		act := s.acts[len(s.acts)-1]
		s.acts = s.acts[:len(s.acts)-1]
		s.g.Add(act.Not())
		s.g.Add(z.LitNull)
	}
}

// Assert permanently adds a formula to the current scope.
func (s *Solver) Assert(f *expr.Term) {
	if s.err != nil {
		return
	}
	m, err := s.compile(f)
	if err != nil {
		s.fail(err)
		return
	}
	s.flush(m)
	if len(s.acts) > 0 {
		s.g.Add(s.acts[len(s.acts)-1].Not())
	}
	s.g.Add(m)
	s.g.Add(z.LitNull)
}

// CheckAssuming decides the asserted formulas together with the given
// assumptions. A cancellation observed while the solver runs yields
// Indet.
func (s *Solver) CheckAssuming(assumptions []*expr.Term) opt.Status {
	if s.err != nil {
		return opt.Indet
	}
	s.assumed = make(map[z.Lit]*expr.Term, len(assumptions))
	for _, a := range assumptions {
		m, err := s.compile(a)
		if err != nil {
			s.fail(err)
			return opt.Indet
		}
		s.flush(m)
		s.assumed[m] = a
	}
	s.g.Assume(s.acts...)
	for m := range s.assumed {
		s.g.Assume(m)
	}
	res := s.solve()
	s.log.WithFields(logrus.Fields{"assumptions": len(assumptions), "result": res}).Debug("check")
	switch res {
	case 1:
		return opt.Sat
	case -1:
		return opt.Unsat
	default:
		if s.cancel.Load() {
			s.reason = "cancelled"
		} else {
			s.reason = "solver returned unknown"
		}
		return opt.Indet
	}
}

func (s *Solver) solve() int {
	if s.cancel.Load() {
		// Consume the assumptions so the next check starts clean.
		return s.g.GoSolve().Stop()
	}
	sv := s.g.GoSolve()
	for {
		if res := sv.Try(pollInterval); res != 0 {
			return res
		}
		if s.cancel.Load() {
			return sv.Stop()
		}
	}
}

// Model returns the values of all boolean variables seen so far. It is
// valid after a Sat answer.
func (s *Solver) Model() expr.Model {
	model := make(expr.Model, len(s.atoms))
	for _, a := range s.atoms {
		model[a] = expr.BoolValue(s.g.Value(s.lits[a]))
	}
	return model
}

// UnsatCore returns the subset of the last check's assumptions the
// solver used to derive unsatisfiability. It is valid after an Unsat
// answer and not necessarily minimal.
func (s *Solver) UnsatCore() []*expr.Term {
	var core []*expr.Term
	for _, why := range s.g.Why(nil) {
		if t, ok := s.assumed[why]; ok {
			core = append(core, t)
		}
	}
	return core
}

// Cancel sets or clears the cancellation flag.
func (s *Solver) Cancel(on bool) {
	s.cancel.Store(on)
}

// ReasonUnknown describes the last Indet answer.
func (s *Solver) ReasonUnknown() string {
	if s.err != nil {
		return s.err.Error()
	}
	return s.reason
}

func (s *Solver) fail(err error) {
	s.err = err
	s.log.WithError(err).Debug("solver failure")
}

// flush teaches the solver the Tseitin clauses of every circuit node
// reachable from root that was not taught before.
func (s *Solver) flush(root z.Lit) {
	s.marks, _ = s.c.CnfSince(s.g, s.marks, root)
}

// compile translates a boolean term into a circuit literal, memoized
// per term.
func (s *Solver) compile(t *expr.Term) (z.Lit, error) {
	if m, ok := s.lits[t]; ok {
		return m, nil
	}
	if t.Sort() != expr.Bool {
		return z.LitNull, errors.Errorf("%s has sort %s, want Bool", t, t.Sort())
	}
	var m z.Lit
	switch t.Op() {
	case expr.OpTrue:
		m = s.c.T
	case expr.OpFalse:
		m = s.c.F
	case expr.OpVar:
		m = s.c.Lit()
		s.atoms = append(s.atoms, t)
	case expr.OpNot:
		a, err := s.compile(t.Args()[0])
		if err != nil {
			return z.LitNull, err
		}
		m = a.Not()
	case expr.OpAnd, expr.OpOr:
		ms := make([]z.Lit, len(t.Args()))
		for i, a := range t.Args() {
			am, err := s.compile(a)
			if err != nil {
				return z.LitNull, err
			}
			ms[i] = am
		}
		if t.Op() == expr.OpAnd {
			m = s.c.Ands(ms...)
		} else {
			m = s.c.Ors(ms...)
		}
	case expr.OpImplies:
		a, err := s.compile(t.Args()[0])
		if err != nil {
			return z.LitNull, err
		}
		c, err := s.compile(t.Args()[1])
		if err != nil {
			return z.LitNull, err
		}
		m = s.c.Implies(a, c)
	case expr.OpEq:
		if t.Args()[0].Sort() != expr.Bool {
			return z.LitNull, errors.Errorf("cannot compile %s: non-boolean equality", t)
		}
		a, err := s.compile(t.Args()[0])
		if err != nil {
			return z.LitNull, err
		}
		c, err := s.compile(t.Args()[1])
		if err != nil {
			return z.LitNull, err
		}
		m = s.c.Xor(a, c).Not()
	case expr.OpIte:
		i, err := s.compile(t.Args()[0])
		if err != nil {
			return z.LitNull, err
		}
		tt, err := s.compile(t.Args()[1])
		if err != nil {
			return z.LitNull, err
		}
		ff, err := s.compile(t.Args()[2])
		if err != nil {
			return z.LitNull, err
		}
		m = s.c.Choice(i, tt, ff)
	case expr.OpAtMostK:
		var err error
		m, err = s.compileAtMostK(t)
		if err != nil {
			return z.LitNull, err
		}
	default:
		return z.LitNull, errors.Errorf("cannot compile %s: unsupported boolean term", t)
	}
	s.lits[t] = m
	return m, nil
}

// compileAtMostK realizes a pseudo-boolean at-most-k node as a sorting
// network over the literals, each repeated as many times as its
// coefficient.
func (s *Solver) compileAtMostK(t *expr.Term) (z.Lit, error) {
	coeffs, k := t.AtMost()
	var ms []z.Lit
	for i, a := range t.Args() {
		am, err := s.compile(a)
		if err != nil {
			return z.LitNull, err
		}
		for c := int64(0); c < coeffs[i]; c++ {
			ms = append(ms, am)
		}
	}
	cs := s.c.CardSort(ms)
	return cs.Leq(int(k)), nil
}
