// Package inf implements extended rationals of the form
// a*oo + r + b*epsilon, where a, r and b are rationals.
//
// Extended rationals represent optimization bounds: "strictly greater
// than r" is r + epsilon, and unbounded optima are +oo or -oo. The
// order is lexicographic on (a, r, b) and the arithmetic operations
// are componentwise. Values are immutable.
package inf

import (
	"math/big"
	"strings"
)

// A Num is an extended rational a*oo + r + b*epsilon.
type Num struct {
	inf *big.Rat
	rat *big.Rat
	eps *big.Rat
}

var zero = new(big.Rat)

func ratOrZero(r *big.Rat) *big.Rat {
	if r == nil {
		return zero
	}
	return r
}

// Rat returns the finite extended rational r.
func Rat(r *big.Rat) Num {
	return Num{rat: new(big.Rat).Set(r)}
}

// Int64 returns the finite extended rational v.
func Int64(v int64) Num {
	return Num{rat: new(big.Rat).SetInt64(v)}
}

// Inf returns +oo.
func Inf() Num {
	return Num{inf: new(big.Rat).SetInt64(1)}
}

// NegInf returns -oo.
func NegInf() Num {
	return Num{inf: new(big.Rat).SetInt64(-1)}
}

// Eps returns the infinitesimal epsilon.
func Eps() Num {
	return Num{eps: new(big.Rat).SetInt64(1)}
}

// Infinity returns the infinity coefficient a.
func (n Num) Infinity() *big.Rat { return new(big.Rat).Set(ratOrZero(n.inf)) }

// Rational returns the rational part r.
func (n Num) Rational() *big.Rat { return new(big.Rat).Set(ratOrZero(n.rat)) }

// Infinitesimal returns the infinitesimal coefficient b.
func (n Num) Infinitesimal() *big.Rat { return new(big.Rat).Set(ratOrZero(n.eps)) }

// IsFinite indicates whether both the infinity and the infinitesimal
// coefficients are zero.
func (n Num) IsFinite() bool {
	return ratOrZero(n.inf).Sign() == 0 && ratOrZero(n.eps).Sign() == 0
}

// IsInfinite indicates whether the infinity coefficient is non-zero.
func (n Num) IsInfinite() bool { return ratOrZero(n.inf).Sign() != 0 }

// Add returns n + m.
func (n Num) Add(m Num) Num {
	return Num{
		inf: new(big.Rat).Add(ratOrZero(n.inf), ratOrZero(m.inf)),
		rat: new(big.Rat).Add(ratOrZero(n.rat), ratOrZero(m.rat)),
		eps: new(big.Rat).Add(ratOrZero(n.eps), ratOrZero(m.eps)),
	}
}

// Sub returns n - m.
func (n Num) Sub(m Num) Num { return n.Add(m.Neg()) }

// Neg returns -n.
func (n Num) Neg() Num {
	return Num{
		inf: new(big.Rat).Neg(ratOrZero(n.inf)),
		rat: new(big.Rat).Neg(ratOrZero(n.rat)),
		eps: new(big.Rat).Neg(ratOrZero(n.eps)),
	}
}

// Cmp compares n and m lexicographically on (a, r, b). It returns -1,
// 0 or 1.
func (n Num) Cmp(m Num) int {
	if c := ratOrZero(n.inf).Cmp(ratOrZero(m.inf)); c != 0 {
		return c
	}
	if c := ratOrZero(n.rat).Cmp(ratOrZero(m.rat)); c != 0 {
		return c
	}
	return ratOrZero(n.eps).Cmp(ratOrZero(m.eps))
}

func (n Num) String() string {
	var parts []string
	inf, rat, eps := ratOrZero(n.inf), ratOrZero(n.rat), ratOrZero(n.eps)
	switch {
	case inf.Sign() == 0:
	case inf.Cmp(big.NewRat(1, 1)) == 0:
		parts = append(parts, "oo")
	case inf.Cmp(big.NewRat(-1, 1)) == 0:
		parts = append(parts, "-oo")
	default:
		parts = append(parts, inf.RatString()+"*oo")
	}
	if rat.Sign() != 0 || len(parts) == 0 && eps.Sign() == 0 {
		parts = append(parts, rat.RatString())
	}
	switch {
	case eps.Sign() == 0:
	case eps.Cmp(big.NewRat(1, 1)) == 0:
		parts = append(parts, "epsilon")
	case eps.Cmp(big.NewRat(-1, 1)) == 0:
		parts = append(parts, "-epsilon")
	default:
		parts = append(parts, eps.RatString()+"*epsilon")
	}
	return strings.Join(parts, " + ")
}
