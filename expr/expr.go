package expr

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// An Op identifies the head symbol of a term.
type Op byte

// The set of term head symbols.
const (
	OpTrue Op = iota
	OpFalse
	OpVar
	OpNum  // rational numeral
	OpBVNum
	OpNot
	OpAnd
	OpOr
	OpImplies
	OpEq
	OpIte
	OpAdd
	OpMul // multiplication of a term by a rational constant
	OpLe
	OpLt
	OpUle
	OpExtract // single-bit extraction
	OpAtMostK // pseudo-boolean "sum of coefficients of true literals is at most k"
)

// A SortKind discriminates the supported sorts.
type SortKind byte

// The supported sort kinds.
const (
	SortBool SortKind = iota
	SortInt
	SortReal
	SortBV
)

// A Sort is the type of a term. Width is only meaningful for bit-vectors.
type Sort struct {
	Kind  SortKind
	Width int
}

// The scalar sorts.
var (
	Bool = Sort{Kind: SortBool}
	Int  = Sort{Kind: SortInt}
	Real = Sort{Kind: SortReal}
)

// BV returns the bit-vector sort of the given width.
func BV(width int) Sort {
	if width <= 0 || width > 64 {
		panic(fmt.Sprintf("invalid bit-vector width %d", width))
	}
	return Sort{Kind: SortBV, Width: width}
}

// IsArith indicates whether the sort is integer or real.
func (s Sort) IsArith() bool { return s.Kind == SortInt || s.Kind == SortReal }

// IsBV indicates whether the sort is a bit-vector sort.
func (s Sort) IsBV() bool { return s.Kind == SortBV }

func (s Sort) String() string {
	switch s.Kind {
	case SortBool:
		return "Bool"
	case SortInt:
		return "Int"
	case SortReal:
		return "Real"
	case SortBV:
		return fmt.Sprintf("BV%d", s.Width)
	default:
		panic("invalid sort")
	}
}

// A Term is an immutable, hash-consed expression node.
// Terms built by the same Builder are pointer-equal iff they are
// structurally equal.
type Term struct {
	op     Op
	sort   Sort
	args   []*Term
	name   string   // OpVar
	num    *big.Rat // OpNum numeral, OpMul coefficient
	bv     uint64   // OpBVNum value
	idx    int      // OpExtract bit index
	coeffs []int64  // OpAtMostK
	k      int64    // OpAtMostK bound
	id     uint32
}

// Op returns the head symbol of the term.
func (t *Term) Op() Op { return t.op }

// Sort returns the sort of the term.
func (t *Term) Sort() Sort { return t.sort }

// Args returns the subterms. The returned slice must not be modified.
func (t *Term) Args() []*Term { return t.args }

// Name returns the name of a variable term.
func (t *Term) Name() string { return t.name }

// Rat returns the rational payload of a numeral or the coefficient of
// a multiplication. The returned value must not be modified.
func (t *Term) Rat() *big.Rat { return t.num }

// BVVal returns the value of a bit-vector numeral.
func (t *Term) BVVal() uint64 { return t.bv }

// Bit returns the extracted bit index of an extraction term.
func (t *Term) Bit() int { return t.idx }

// AtMost returns the coefficients and the bound of a pseudo-boolean
// at-most-k term. The coefficient slice must not be modified.
func (t *Term) AtMost() ([]int64, int64) { return t.coeffs, t.k }

func (t *Term) String() string {
	switch t.op {
	case OpTrue:
		return "true"
	case OpFalse:
		return "false"
	case OpVar:
		return t.name
	case OpNum:
		return t.num.RatString()
	case OpBVNum:
		return fmt.Sprintf("bv%d[%d]", t.bv, t.sort.Width)
	case OpNot:
		return "not(" + t.args[0].String() + ")"
	case OpAnd:
		return "and(" + joinArgs(t.args) + ")"
	case OpOr:
		return "or(" + joinArgs(t.args) + ")"
	case OpImplies:
		return "implies(" + joinArgs(t.args) + ")"
	case OpEq:
		return "eq(" + joinArgs(t.args) + ")"
	case OpIte:
		return "ite(" + joinArgs(t.args) + ")"
	case OpAdd:
		return "add(" + joinArgs(t.args) + ")"
	case OpMul:
		return "mul(" + t.num.RatString() + ", " + t.args[0].String() + ")"
	case OpLe:
		return "le(" + joinArgs(t.args) + ")"
	case OpLt:
		return "lt(" + joinArgs(t.args) + ")"
	case OpUle:
		return "ule(" + joinArgs(t.args) + ")"
	case OpExtract:
		return fmt.Sprintf("extract(%d, %s)", t.idx, t.args[0])
	case OpAtMostK:
		var sb strings.Builder
		fmt.Fprintf(&sb, "atmost(%d;", t.k)
		for i, a := range t.args {
			if i > 0 {
				sb.WriteString(",")
			}
			fmt.Fprintf(&sb, " %d*%s", t.coeffs[i], a)
		}
		sb.WriteString(")")
		return sb.String()
	default:
		panic("invalid term")
	}
}

func joinArgs(args []*Term) string {
	strs := make([]string, len(args))
	for i, a := range args {
		strs[i] = a.String()
	}
	return strings.Join(strs, ", ")
}

// A Builder mints terms and owns their intern table.
// It is not safe for concurrent use.
type Builder struct {
	terms map[string]*Term
	vars  map[string]*Term
	next  uint32
	fresh uint64
	t, f  *Term
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	b := &Builder{
		terms: make(map[string]*Term),
		vars:  make(map[string]*Term),
	}
	b.t = b.intern(&Term{op: OpTrue, sort: Bool}, "true")
	b.f = b.intern(&Term{op: OpFalse, sort: Bool}, "false")
	return b
}

func (b *Builder) intern(t *Term, key string) *Term {
	if found, ok := b.terms[key]; ok {
		return found
	}
	t.id = b.next
	b.next++
	b.terms[key] = t
	return t
}

func key(op Op, payload string, args []*Term) string {
	var sb strings.Builder
	sb.WriteString(strconv.Itoa(int(op)))
	sb.WriteByte(':')
	sb.WriteString(payload)
	for _, a := range args {
		sb.WriteByte(',')
		sb.WriteString(strconv.FormatUint(uint64(a.id), 10))
	}
	return sb.String()
}

// True returns the true constant.
func (b *Builder) True() *Term { return b.t }

// False returns the false constant.
func (b *Builder) False() *Term { return b.f }

func (b *Builder) mkVar(name string, sort Sort) *Term {
	if v, ok := b.vars[name]; ok {
		if v.sort != sort {
			panic(fmt.Sprintf("variable %s redeclared with sort %s (was %s)", name, sort, v.sort))
		}
		return v
	}
	v := b.intern(&Term{op: OpVar, sort: sort, name: name}, key(OpVar, name+"/"+sort.String(), nil))
	b.vars[name] = v
	return v
}

// BoolVar returns the boolean variable with the given name.
func (b *Builder) BoolVar(name string) *Term { return b.mkVar(name, Bool) }

// IntVar returns the integer variable with the given name.
func (b *Builder) IntVar(name string) *Term { return b.mkVar(name, Int) }

// RealVar returns the real variable with the given name.
func (b *Builder) RealVar(name string) *Term { return b.mkVar(name, Real) }

// BVVar returns the bit-vector variable with the given name and width.
func (b *Builder) BVVar(name string, width int) *Term { return b.mkVar(name, BV(width)) }

// FreshBool returns a boolean variable whose name starts with prefix
// and that was never returned before by this builder.
func (b *Builder) FreshBool(prefix string) *Term {
	for {
		name := fmt.Sprintf("%s!%d", prefix, b.fresh)
		b.fresh++
		if _, ok := b.vars[name]; !ok {
			return b.mkVar(name, Bool)
		}
	}
}

// Int64 returns the integer numeral v.
func (b *Builder) Int64(v int64) *Term {
	return b.Rat(new(big.Rat).SetInt64(v))
}

// Rat returns the numeral r. The sort is Int when r is an integer,
// Real otherwise.
func (b *Builder) Rat(r *big.Rat) *Term {
	sort := Real
	if r.IsInt() {
		sort = Int
	}
	cp := new(big.Rat).Set(r)
	return b.intern(&Term{op: OpNum, sort: sort, num: cp}, key(OpNum, cp.RatString(), nil))
}

// BVNum returns the bit-vector numeral of the given value and width.
func (b *Builder) BVNum(v uint64, width int) *Term {
	s := BV(width)
	if width < 64 {
		v &= (1 << uint(width)) - 1
	}
	return b.intern(&Term{op: OpBVNum, sort: s, bv: v}, key(OpBVNum, fmt.Sprintf("%d/%d", v, width), nil))
}

func assertBool(t *Term) {
	if t.sort != Bool {
		panic(fmt.Sprintf("expected a boolean term, got %s of sort %s", t, t.sort))
	}
}

func assertArith(t *Term) {
	if !t.sort.IsArith() {
		panic(fmt.Sprintf("expected an arithmetic term, got %s of sort %s", t, t.sort))
	}
}

// Not returns the negation of f.
func (b *Builder) Not(f *Term) *Term {
	assertBool(f)
	switch f.op {
	case OpTrue:
		return b.f
	case OpFalse:
		return b.t
	case OpNot:
		return f.args[0]
	}
	return b.intern(&Term{op: OpNot, sort: Bool, args: []*Term{f}}, key(OpNot, "", []*Term{f}))
}

// And returns the conjunction of the given formulas. Nested
// conjunctions are flattened and constants are simplified away.
func (b *Builder) And(fs ...*Term) *Term {
	args := make([]*Term, 0, len(fs))
	for _, f := range fs {
		assertBool(f)
		switch f.op {
		case OpTrue:
		case OpFalse:
			return b.f
		case OpAnd:
			args = append(args, f.args...)
		default:
			args = append(args, f)
		}
	}
	switch len(args) {
	case 0:
		return b.t
	case 1:
		return args[0]
	}
	return b.intern(&Term{op: OpAnd, sort: Bool, args: args}, key(OpAnd, "", args))
}

// Or returns the disjunction of the given formulas. Nested
// disjunctions are flattened and constants are simplified away.
func (b *Builder) Or(fs ...*Term) *Term {
	args := make([]*Term, 0, len(fs))
	for _, f := range fs {
		assertBool(f)
		switch f.op {
		case OpFalse:
		case OpTrue:
			return b.t
		case OpOr:
			args = append(args, f.args...)
		default:
			args = append(args, f)
		}
	}
	switch len(args) {
	case 0:
		return b.f
	case 1:
		return args[0]
	}
	return b.intern(&Term{op: OpOr, sort: Bool, args: args}, key(OpOr, "", args))
}

// Implies returns the implication from a to c.
func (b *Builder) Implies(a, c *Term) *Term {
	assertBool(a)
	assertBool(c)
	args := []*Term{a, c}
	return b.intern(&Term{op: OpImplies, sort: Bool, args: args}, key(OpImplies, "", args))
}

// Eq returns the equality of two terms of compatible sorts.
func (b *Builder) Eq(l, r *Term) *Term {
	if l.sort != r.sort && !(l.sort.IsArith() && r.sort.IsArith()) {
		panic(fmt.Sprintf("equality between incompatible sorts %s and %s", l.sort, r.sort))
	}
	if l == r {
		return b.t
	}
	if r.id < l.id {
		l, r = r, l
	}
	args := []*Term{l, r}
	return b.intern(&Term{op: OpEq, sort: Bool, args: args}, key(OpEq, "", args))
}

// Ite returns the term "if cond then tt else ff".
func (b *Builder) Ite(cond, tt, ff *Term) *Term {
	assertBool(cond)
	if tt.sort != ff.sort && !(tt.sort.IsArith() && ff.sort.IsArith()) {
		panic(fmt.Sprintf("ite between incompatible sorts %s and %s", tt.sort, ff.sort))
	}
	switch cond.op {
	case OpTrue:
		return tt
	case OpFalse:
		return ff
	}
	sort := tt.sort
	if ff.sort.Kind == SortReal {
		sort = Real
	}
	args := []*Term{cond, tt, ff}
	return b.intern(&Term{op: OpIte, sort: sort, args: args}, key(OpIte, "", args))
}

// Add returns the sum of the given arithmetic terms. Nested sums are
// flattened.
func (b *Builder) Add(ts ...*Term) *Term {
	args := make([]*Term, 0, len(ts))
	sort := Int
	for _, t := range ts {
		assertArith(t)
		if t.sort.Kind == SortReal {
			sort = Real
		}
		if t.op == OpAdd {
			args = append(args, t.args...)
		} else {
			args = append(args, t)
		}
	}
	switch len(args) {
	case 0:
		return b.Int64(0)
	case 1:
		return args[0]
	}
	return b.intern(&Term{op: OpAdd, sort: sort, args: args}, key(OpAdd, "", args))
}

// Mul returns the product of a rational constant and an arithmetic term.
func (b *Builder) Mul(c *big.Rat, t *Term) *Term {
	assertArith(t)
	if t.op == OpNum {
		return b.Rat(new(big.Rat).Mul(c, t.num))
	}
	if t.op == OpMul {
		c = new(big.Rat).Mul(c, t.num)
		t = t.args[0]
	}
	if c.Sign() == 0 {
		return b.Int64(0)
	}
	if c.Cmp(ratOne) == 0 {
		return t
	}
	cp := new(big.Rat).Set(c)
	sort := t.sort
	if !cp.IsInt() {
		sort = Real
	}
	return b.intern(&Term{op: OpMul, sort: sort, num: cp, args: []*Term{t}}, key(OpMul, cp.RatString(), []*Term{t}))
}

var ratOne = big.NewRat(1, 1)

// Neg returns the arithmetic negation of t.
func (b *Builder) Neg(t *Term) *Term {
	return b.Mul(big.NewRat(-1, 1), t)
}

// Le returns the comparison l <= r over arithmetic terms.
func (b *Builder) Le(l, r *Term) *Term {
	assertArith(l)
	assertArith(r)
	args := []*Term{l, r}
	return b.intern(&Term{op: OpLe, sort: Bool, args: args}, key(OpLe, "", args))
}

// Lt returns the comparison l < r over arithmetic terms.
func (b *Builder) Lt(l, r *Term) *Term {
	assertArith(l)
	assertArith(r)
	args := []*Term{l, r}
	return b.intern(&Term{op: OpLt, sort: Bool, args: args}, key(OpLt, "", args))
}

// Ge returns the comparison l >= r over arithmetic terms.
func (b *Builder) Ge(l, r *Term) *Term { return b.Le(r, l) }

// Gt returns the comparison l > r over arithmetic terms.
func (b *Builder) Gt(l, r *Term) *Term { return b.Lt(r, l) }

// Ule returns the unsigned comparison l <= r over bit-vector terms of
// the same width.
func (b *Builder) Ule(l, r *Term) *Term {
	if !l.sort.IsBV() || l.sort != r.sort {
		panic(fmt.Sprintf("ule between incompatible sorts %s and %s", l.sort, r.sort))
	}
	args := []*Term{l, r}
	return b.intern(&Term{op: OpUle, sort: Bool, args: args}, key(OpUle, "", args))
}

// Extract returns bit i of the bit-vector term t, as a bit-vector of
// width 1.
func (b *Builder) Extract(i int, t *Term) *Term {
	if !t.sort.IsBV() {
		panic(fmt.Sprintf("extraction from non-bit-vector term %s", t))
	}
	if i < 0 || i >= t.sort.Width {
		panic(fmt.Sprintf("bit %d out of range for width %d", i, t.sort.Width))
	}
	if t.op == OpBVNum {
		return b.BVNum((t.bv>>uint(i))&1, 1)
	}
	return b.intern(&Term{op: OpExtract, sort: BV(1), idx: i, args: []*Term{t}},
		key(OpExtract, strconv.Itoa(i), []*Term{t}))
}

// AtMostK returns the pseudo-boolean constraint stating that at most k
// of the given boolean terms are true.
func (b *Builder) AtMostK(lits []*Term, k int64) *Term {
	return b.AtMostKWeighted(lits, nil, k)
}

// AtMostKWeighted returns the pseudo-boolean constraint stating that
// the sum of the coefficients of the true literals is at most k.
// A nil coeffs slice means all coefficients are 1.
func (b *Builder) AtMostKWeighted(lits []*Term, coeffs []int64, k int64) *Term {
	if coeffs != nil && len(coeffs) != len(lits) {
		panic("coefficient and literal counts differ")
	}
	var total int64
	cs := make([]int64, len(lits))
	for i, l := range lits {
		assertBool(l)
		c := int64(1)
		if coeffs != nil {
			c = coeffs[i]
		}
		if c <= 0 {
			panic(fmt.Sprintf("non-positive pseudo-boolean coefficient %d", c))
		}
		cs[i] = c
		total += c
	}
	if k < 0 {
		return b.f
	}
	if k >= total {
		return b.t
	}
	payload := strconv.FormatInt(k, 10)
	for _, c := range cs {
		payload += "." + strconv.FormatInt(c, 10)
	}
	args := make([]*Term, len(lits))
	copy(args, lits)
	return b.intern(&Term{op: OpAtMostK, sort: Bool, args: args, coeffs: cs, k: k},
		key(OpAtMostK, payload, args))
}
