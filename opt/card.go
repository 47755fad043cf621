package opt

import "github.com/crillab/gopt/expr"

// AtMostOne returns a formula stating that at most one of the given
// boolean terms is true. The encoding is a recursive divide and
// conquer producing O(n) subformulas and no fresh variables: each half
// yields a pair (hasOne, hasZero) and the constraint is their
// disjunction at the root.
func AtMostOne(b *expr.Builder, xs []*expr.Term) *expr.Term {
	if len(xs) == 0 {
		return b.True()
	}
	hasOne, hasZero := atMostOne(b, xs)
	return b.Or(hasOne, hasZero)
}

func atMostOne(b *expr.Builder, xs []*expr.Term) (hasOne, hasZero *expr.Term) {
	if len(xs) == 1 {
		return xs[0], b.Not(xs[0])
	}
	mid := len(xs) / 2
	one1, zero1 := atMostOne(b, xs[:mid])
	one2, zero2 := atMostOne(b, xs[mid:])
	hasOne = b.Or(b.And(one1, zero2), b.And(one2, zero1))
	hasZero = b.And(zero1, zero2)
	return hasOne, hasZero
}

// AtMostK returns a formula stating that at most k of the given
// boolean terms are true.
func AtMostK(b *expr.Builder, xs []*expr.Term, k int64) *expr.Term {
	return b.AtMostK(xs, k)
}

// AtMostKWeighted returns a formula stating that the sum of the
// coefficients of the true terms is at most k.
func AtMostKWeighted(b *expr.Builder, xs []*expr.Term, coeffs []int64, k int64) *expr.Term {
	return b.AtMostKWeighted(xs, coeffs, k)
}
