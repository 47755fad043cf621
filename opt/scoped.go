package opt

import (
	"math/big"

	"github.com/crillab/gopt/expr"
)

type objKind byte

const (
	oMaximize objKind = iota
	oMinimize
	oMaxsat
)

// An objective is one entry of the optimization agenda: a term to
// maximize or minimize, or a group of weighted soft constraints.
type objective struct {
	kind    objKind
	term    *expr.Term  // maximize, minimize
	softs   []*expr.Term // maxsat
	weights []*big.Rat
	offset  *big.Rat // constant added to the reported maxsat value
	neg     bool     // flip the sign after the offset
	id      string
	index   int // slot in the single-term optimizer
}

// scopedState is the stack of declarations the user has made. A push
// snapshots the sizes of the hard-constraint list, the objective list
// and the soft-append trail; a pop truncates each to its snapshot.
type scopedState struct {
	hard       []*expr.Term
	objectives []objective
	indices    map[string]int // weighted objective id -> index in objectives
	trail      []int          // objective index per appended soft
	hardLim    []int
	objLim     []int
	trailLim   []int
}

func newScopedState() scopedState {
	return scopedState{indices: make(map[string]int)}
}

func (s *scopedState) push() {
	s.hardLim = append(s.hardLim, len(s.hard))
	s.objLim = append(s.objLim, len(s.objectives))
	s.trailLim = append(s.trailLim, len(s.trail))
}

func (s *scopedState) pop() {
	n := len(s.hardLim) - 1
	s.hard = s.hard[:s.hardLim[n]]
	k := s.trailLim[n]
	for len(s.trail) > k {
		idx := s.trail[len(s.trail)-1]
		obj := &s.objectives[idx]
		obj.softs = obj.softs[:len(obj.softs)-1]
		obj.weights = obj.weights[:len(obj.weights)-1]
		s.trail = s.trail[:len(s.trail)-1]
	}
	k = s.objLim[n]
	for len(s.objectives) > k {
		obj := s.objectives[len(s.objectives)-1]
		if obj.kind == oMaxsat {
			delete(s.indices, obj.id)
		}
		s.objectives = s.objectives[:len(s.objectives)-1]
	}
	s.hardLim = s.hardLim[:n]
	s.objLim = s.objLim[:n]
	s.trailLim = s.trailLim[:n]
}

func (s *scopedState) addHard(f *expr.Term) {
	s.hard = append(s.hard, f)
}

func (s *scopedState) addSoft(f *expr.Term, w *big.Rat, id string) (int, error) {
	if w.Sign() <= 0 {
		return 0, ErrBadWeight
	}
	if f.Sort() != expr.Bool {
		return 0, &TypeError{Term: f, Want: "Bool"}
	}
	idx, ok := s.indices[id]
	if !ok {
		idx = len(s.objectives)
		s.objectives = append(s.objectives, objective{
			kind:   oMaxsat,
			id:     id,
			offset: new(big.Rat),
		})
		s.indices[id] = idx
	}
	obj := &s.objectives[idx]
	obj.softs = append(obj.softs, f)
	obj.weights = append(obj.weights, new(big.Rat).Set(w))
	s.trail = append(s.trail, idx)
	return idx, nil
}

func (s *scopedState) addObjective(t *expr.Term, isMax bool) (int, error) {
	if !t.Sort().IsArith() && !t.Sort().IsBV() {
		return 0, ErrUnsupported
	}
	kind := oMinimize
	if isMax {
		kind = oMaximize
	}
	idx := len(s.objectives)
	s.objectives = append(s.objectives, objective{kind: kind, term: t, offset: new(big.Rat)})
	return idx, nil
}
