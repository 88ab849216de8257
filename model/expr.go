package model

import "sort"

// Term is one coefficient on one variable.
type Term struct {
	Var   VarID
	Coeff float64
}

// Expr is a linear expression: sum of terms plus a constant offset.
type Expr struct {
	Terms  []Term
	Offset float64
}

// Add appends coeff*v to the expression.
func (e *Expr) Add(v VarID, coeff float64) {
	e.Terms = append(e.Terms, Term{Var: v, Coeff: coeff})
}

// AddExpr appends another expression scaled by factor.
func (e *Expr) AddExpr(other Expr, factor float64) {
	for _, t := range other.Terms {
		e.Terms = append(e.Terms, Term{Var: t.Var, Coeff: t.Coeff * factor})
	}
	e.Offset += other.Offset * factor
}

// Normalize merges duplicate variables, drops zero coefficients and sorts
// terms by variable handle, so that mathematically equal expressions have
// identical representations.
func (e *Expr) Normalize() {
	if len(e.Terms) == 0 {
		return
	}
	sort.Slice(e.Terms, func(i, j int) bool { return e.Terms[i].Var < e.Terms[j].Var })
	out := e.Terms[:0]
	for _, t := range e.Terms {
		if n := len(out); n > 0 && out[n-1].Var == t.Var {
			out[n-1].Coeff += t.Coeff
			continue
		}
		out = append(out, t)
	}
	n := 0
	for _, t := range out {
		if t.Coeff != 0 {
			out[n] = t
			n++
		}
	}
	e.Terms = out[:n]
}

// Sense is the relation between a constraint's expression and its RHS.
type Sense string

const (
	LE Sense = "<="
	GE Sense = ">="
	EQ Sense = "=="
)

// Constraint is Expr (Sense) RHS. Name identifies the constraint for
// diagnostics and for dual-value retrieval; the builder guarantees names are
// unique within a model.
type Constraint struct {
	Name  string
	Expr  Expr
	Sense Sense
	RHS   float64
}
