package opt_test

import (
	"fmt"

	"github.com/crillab/gopt/expr"
	"github.com/crillab/gopt/inf"
	"github.com/crillab/gopt/opt"
)

// fdSolver is a finite-domain base solver for tests: every variable
// ranges over an explicit domain and a check enumerates all
// assignments. Unsat cores are the full assumption list, which is a
// valid (non-minimal) core.
type fdSolver struct {
	vars      []*expr.Term
	doms      map[*expr.Term][]expr.Value
	frames    [][]*expr.Term
	assumed   []*expr.Term
	model     expr.Model
	cancelled bool
	reason    string
	checks    int
}

func newFDSolver() *fdSolver {
	return &fdSolver{
		doms:   make(map[*expr.Term][]expr.Value),
		frames: [][]*expr.Term{nil},
	}
}

func (s *fdSolver) declareInt(v *expr.Term, lo, hi int64) {
	var dom []expr.Value
	for i := lo; i <= hi; i++ {
		dom = append(dom, expr.IntValue(i))
	}
	s.vars = append(s.vars, v)
	s.doms[v] = dom
}

func (s *fdSolver) declareBV(v *expr.Term) {
	width := v.Sort().Width
	var dom []expr.Value
	for i := uint64(0); i < 1<<uint(width); i++ {
		dom = append(dom, expr.BVValue(i, width))
	}
	s.vars = append(s.vars, v)
	s.doms[v] = dom
}

// register walks a term and gives any new boolean variable the domain
// {false, true}. Other sorts must be declared explicitly.
func (s *fdSolver) register(t *expr.Term) {
	if t.Op() == expr.OpVar {
		if _, ok := s.doms[t]; !ok {
			if t.Sort() != expr.Bool {
				panic(fmt.Sprintf("undeclared non-boolean variable %s", t))
			}
			s.vars = append(s.vars, t)
			s.doms[t] = []expr.Value{expr.BoolValue(false), expr.BoolValue(true)}
		}
		return
	}
	for _, a := range t.Args() {
		s.register(a)
	}
}

func (s *fdSolver) Push() { s.frames = append(s.frames, nil) }

func (s *fdSolver) Pop(n int) {
	for i := 0; i < n && len(s.frames) > 1; i++ {
		s.frames = s.frames[:len(s.frames)-1]
	}
}

func (s *fdSolver) Assert(f *expr.Term) {
	s.register(f)
	s.frames[len(s.frames)-1] = append(s.frames[len(s.frames)-1], f)
}

func (s *fdSolver) CheckAssuming(assumptions []*expr.Term) opt.Status {
	s.checks++
	if s.cancelled {
		s.reason = "cancelled"
		return opt.Indet
	}
	s.assumed = append([]*expr.Term(nil), assumptions...)
	var formulas []*expr.Term
	for _, frame := range s.frames {
		formulas = append(formulas, frame...)
	}
	for _, a := range assumptions {
		s.register(a)
	}
	formulas = append(formulas, assumptions...)

	idx := make([]int, len(s.vars))
	for {
		m := make(expr.Model, len(s.vars))
		for i, v := range s.vars {
			m[v] = s.doms[v][idx[i]]
		}
		ok := true
		for _, f := range formulas {
			v, err := m.EvalBool(f)
			if err != nil {
				s.reason = err.Error()
				return opt.Indet
			}
			if !v {
				ok = false
				break
			}
		}
		if ok {
			s.model = m
			return opt.Sat
		}
		i := 0
		for ; i < len(idx); i++ {
			idx[i]++
			if idx[i] < len(s.doms[s.vars[i]]) {
				break
			}
			idx[i] = 0
		}
		if i == len(idx) {
			return opt.Unsat
		}
	}
}

func (s *fdSolver) Model() expr.Model { return s.model }

func (s *fdSolver) UnsatCore() []*expr.Term {
	return append([]*expr.Term(nil), s.assumed...)
}

func (s *fdSolver) Cancel(on bool) { s.cancelled = on }

func (s *fdSolver) ReasonUnknown() string { return s.reason }

// tighteningSolver wraps fdSolver with a Farkas-style bound callback.
type tighteningSolver struct {
	*fdSolver
	bound func(t *expr.Term, m expr.Model) (inf.Num, bool)
}

func (s *tighteningSolver) Tighten(t *expr.Term, m expr.Model) (inf.Num, bool) {
	return s.bound(t, m)
}

// scriptStep is one scripted answer of a scriptSolver.
type scriptStep struct {
	status  opt.Status
	model   expr.Model
	core    func(assumptions []*expr.Term) []*expr.Term
	onCheck func()
}

// scriptSolver replays a fixed sequence of check answers. It lets
// tests drive the engines through specific core sequences.
type scriptSolver struct {
	steps   []scriptStep
	pos     int
	assumed []*expr.Term
	model   expr.Model
	core    []*expr.Term
}

func (s *scriptSolver) Push()               {}
func (s *scriptSolver) Pop(n int)           {}
func (s *scriptSolver) Assert(f *expr.Term) {}

func (s *scriptSolver) CheckAssuming(assumptions []*expr.Term) opt.Status {
	if s.pos >= len(s.steps) {
		panic("script exhausted")
	}
	step := s.steps[s.pos]
	s.pos++
	if step.onCheck != nil {
		step.onCheck()
	}
	s.assumed = assumptions
	s.model = step.model
	if step.core != nil {
		s.core = step.core(assumptions)
	} else {
		s.core = nil
	}
	return step.status
}

func (s *scriptSolver) Model() expr.Model        { return s.model }
func (s *scriptSolver) UnsatCore() []*expr.Term  { return s.core }
func (s *scriptSolver) Cancel(on bool)           {}
func (s *scriptSolver) ReasonUnknown() string    { return "incomplete" }
