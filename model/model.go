// Package model holds the mathematical pieces of one optimization problem:
// the variable registry, linear expressions and constraints, and the
// composed model itself. It knows nothing about power systems; the planner
// package gives the variables their meaning.
package model

import (
	"crypto/sha256"
	"fmt"
	"io"
)

// Model is one composed minimization problem, ready for a solver backend.
type Model struct {
	Registry    *Registry
	Objective   Expr // minimized
	Constraints []Constraint
}

// AddConstraint normalizes and appends a constraint.
func (m *Model) AddConstraint(c Constraint) {
	c.Expr.Normalize()
	m.Constraints = append(m.Constraints, c)
}

// HasBinaries reports whether the model needs integer handling.
func (m *Model) HasBinaries() bool {
	for _, v := range m.Registry.Variables() {
		if v.Binary {
			return true
		}
	}
	return false
}

// WriteCanonical writes a deterministic textual encoding of the model:
// every variable with its bounds, the normalized objective, and every
// constraint with normalized terms. Two models with the same mathematical
// content produce byte-identical encodings regardless of the order the
// input data was presented in.
func (m *Model) WriteCanonical(w io.Writer) error {
	vars := m.Registry.Variables()
	if _, err := fmt.Fprintf(w, "vars %d\n", len(vars)); err != nil {
		return err
	}
	for i, v := range vars {
		bin := 0
		if v.Binary {
			bin = 1
		}
		if _, err := fmt.Fprintf(w, "v%d %s %s %s [%g,%g] b%d\n", i, v.Kind, v.Entity, v.Index, v.Lower, v.Upper, bin); err != nil {
			return err
		}
	}
	obj := m.Objective
	obj.Normalize()
	if err := writeExpr(w, "min", obj); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "cons %d\n", len(m.Constraints)); err != nil {
		return err
	}
	for _, c := range m.Constraints {
		if _, err := fmt.Fprintf(w, "%s ", c.Name); err != nil {
			return err
		}
		if err := writeExpr(w, "", c.Expr); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, " %s %g\n", c.Sense, c.RHS); err != nil {
			return err
		}
	}
	return nil
}

func writeExpr(w io.Writer, prefix string, e Expr) error {
	if prefix != "" {
		if _, err := fmt.Fprintf(w, "%s:", prefix); err != nil {
			return err
		}
	}
	for _, t := range e.Terms {
		if _, err := fmt.Fprintf(w, " %+g*v%d", t.Coeff, t.Var); err != nil {
			return err
		}
	}
	if e.Offset != 0 {
		if _, err := fmt.Fprintf(w, " %+g", e.Offset); err != nil {
			return err
		}
	}
	if prefix != "" {
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	return nil
}

// Fingerprint hashes the canonical encoding. Equal fingerprints mean equal
// composed models.
func (m *Model) Fingerprint() [32]byte {
	h := sha256.New()
	// hash.Hash writes never fail
	_ = m.WriteCanonical(h)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
