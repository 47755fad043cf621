// Package expr provides the terms the optimization engine works on.
//
// Terms cover the propositional connectives, linear integer and real
// arithmetic, a small bit-vector fragment (unsigned comparison and
// single-bit extraction) and pseudo-boolean "at most k" counting nodes.
// All terms are created through a Builder, which hash-conses them:
// two structurally identical terms built by the same Builder are the
// same pointer. Terms can therefore be compared with == and used as
// map keys, which the engine relies on for core bookkeeping.
//
// A Model binds variables to values and can evaluate any term of the
// supported fragment. Models are how solver witnesses are handed back
// to callers.
package expr
