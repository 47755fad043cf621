// Package opt implements optimization over an incremental
// satisfiability solver.
//
// The entry point is the Context. Hard constraints, weighted soft
// constraints and arithmetic or bit-vector objectives are declared
// inside push/pop scopes, then Optimize runs a bounded search under
// one of three disciplines:
//
//   - Lex: objectives are optimized in declaration order, each one
//     committed at its optimum before the next is considered.
//   - Box: each objective is optimized independently from the same
//     hard-constraint scope; different objectives may be witnessed by
//     different models.
//   - Pareto: each call to Optimize yields one Pareto-optimal model,
//     until the frontier is exhausted and Unsat is returned.
//
// Weighted soft constraint groups are solved by MaxSAT. Two engines
// are provided: a core-guided engine that refines a single growing set
// of core variables with global at-most-k lemmas, and the Fu & Malik
// engine, which relaxes each core with fresh blocking variables under
// an at-most-one constraint. Bit-vector terms and pseudo-boolean sums
// are rewritten into weighted groups and solved the same way; other
// arithmetic terms are maximized by a monotone bound chase.
//
// Throughout the search the context maintains a lower and an upper
// bound per objective. Lower bounds never decrease, upper bounds never
// increase, and on successful termination the two coincide.
// Cancellation is observed between solver calls and returns Indet with
// the bounds reached so far.
//
// The underlying solver is abstracted by the BaseSolver interface; the
// sat package provides an implementation for the propositional
// fragment.
package opt
