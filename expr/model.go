package expr

import (
	"fmt"
	"math/big"
)

// A Value is the result of evaluating a term.
type Value struct {
	Sort Sort
	Bool bool
	Rat  *big.Rat
	BV   uint64
}

// BoolValue returns the boolean value v.
func BoolValue(v bool) Value { return Value{Sort: Bool, Bool: v} }

// IntValue returns the integer value v.
func IntValue(v int64) Value { return Value{Sort: Int, Rat: new(big.Rat).SetInt64(v)} }

// RatValue returns the rational value r.
func RatValue(r *big.Rat) Value {
	sort := Real
	if r.IsInt() {
		sort = Int
	}
	return Value{Sort: sort, Rat: new(big.Rat).Set(r)}
}

// BVValue returns the bit-vector value v of the given width.
func BVValue(v uint64, width int) Value {
	s := BV(width)
	if width < 64 {
		v &= (1 << uint(width)) - 1
	}
	return Value{Sort: s, BV: v}
}

func (v Value) String() string {
	switch v.Sort.Kind {
	case SortBool:
		return fmt.Sprintf("%t", v.Bool)
	case SortInt, SortReal:
		return v.Rat.RatString()
	case SortBV:
		return fmt.Sprintf("bv%d[%d]", v.BV, v.Sort.Width)
	default:
		panic("invalid value")
	}
}

// A Model binds variables to values. It can evaluate any term whose
// variables it binds.
type Model map[*Term]Value

// Eval evaluates t under the model. It returns an error if the model
// lacks a binding for one of the variables of t.
func (m Model) Eval(t *Term) (Value, error) {
	switch t.op {
	case OpTrue:
		return BoolValue(true), nil
	case OpFalse:
		return BoolValue(false), nil
	case OpVar:
		v, ok := m[t]
		if !ok {
			return Value{}, fmt.Errorf("model has no binding for %s", t)
		}
		return v, nil
	case OpNum:
		return RatValue(t.num), nil
	case OpBVNum:
		return BVValue(t.bv, t.sort.Width), nil
	case OpNot:
		v, err := m.EvalBool(t.args[0])
		if err != nil {
			return Value{}, err
		}
		return BoolValue(!v), nil
	case OpAnd:
		for _, a := range t.args {
			v, err := m.EvalBool(a)
			if err != nil {
				return Value{}, err
			}
			if !v {
				return BoolValue(false), nil
			}
		}
		return BoolValue(true), nil
	case OpOr:
		for _, a := range t.args {
			v, err := m.EvalBool(a)
			if err != nil {
				return Value{}, err
			}
			if v {
				return BoolValue(true), nil
			}
		}
		return BoolValue(false), nil
	case OpImplies:
		a, err := m.EvalBool(t.args[0])
		if err != nil {
			return Value{}, err
		}
		c, err := m.EvalBool(t.args[1])
		if err != nil {
			return Value{}, err
		}
		return BoolValue(!a || c), nil
	case OpEq:
		l, err := m.Eval(t.args[0])
		if err != nil {
			return Value{}, err
		}
		r, err := m.Eval(t.args[1])
		if err != nil {
			return Value{}, err
		}
		return BoolValue(valueEq(l, r)), nil
	case OpIte:
		c, err := m.EvalBool(t.args[0])
		if err != nil {
			return Value{}, err
		}
		if c {
			return m.Eval(t.args[1])
		}
		return m.Eval(t.args[2])
	case OpAdd:
		sum := new(big.Rat)
		for _, a := range t.args {
			v, err := m.EvalRat(a)
			if err != nil {
				return Value{}, err
			}
			sum.Add(sum, v)
		}
		return RatValue(sum), nil
	case OpMul:
		v, err := m.EvalRat(t.args[0])
		if err != nil {
			return Value{}, err
		}
		return RatValue(new(big.Rat).Mul(t.num, v)), nil
	case OpLe, OpLt:
		l, err := m.EvalRat(t.args[0])
		if err != nil {
			return Value{}, err
		}
		r, err := m.EvalRat(t.args[1])
		if err != nil {
			return Value{}, err
		}
		if t.op == OpLe {
			return BoolValue(l.Cmp(r) <= 0), nil
		}
		return BoolValue(l.Cmp(r) < 0), nil
	case OpUle:
		l, err := m.Eval(t.args[0])
		if err != nil {
			return Value{}, err
		}
		r, err := m.Eval(t.args[1])
		if err != nil {
			return Value{}, err
		}
		return BoolValue(l.BV <= r.BV), nil
	case OpExtract:
		v, err := m.Eval(t.args[0])
		if err != nil {
			return Value{}, err
		}
		return BVValue((v.BV>>uint(t.idx))&1, 1), nil
	case OpAtMostK:
		var sum int64
		for i, a := range t.args {
			v, err := m.EvalBool(a)
			if err != nil {
				return Value{}, err
			}
			if v {
				sum += t.coeffs[i]
			}
		}
		return BoolValue(sum <= t.k), nil
	default:
		panic("invalid term")
	}
}

// EvalBool evaluates a boolean term under the model.
func (m Model) EvalBool(t *Term) (bool, error) {
	v, err := m.Eval(t)
	if err != nil {
		return false, err
	}
	if v.Sort != Bool {
		return false, fmt.Errorf("%s does not evaluate to a boolean", t)
	}
	return v.Bool, nil
}

// EvalRat evaluates an arithmetic term under the model.
func (m Model) EvalRat(t *Term) (*big.Rat, error) {
	v, err := m.Eval(t)
	if err != nil {
		return nil, err
	}
	if !v.Sort.IsArith() {
		return nil, fmt.Errorf("%s does not evaluate to a number", t)
	}
	return v.Rat, nil
}

func valueEq(l, r Value) bool {
	switch l.Sort.Kind {
	case SortBool:
		return l.Bool == r.Bool
	case SortInt, SortReal:
		return l.Rat.Cmp(r.Rat) == 0
	case SortBV:
		return l.BV == r.BV
	default:
		panic("invalid value")
	}
}
