// Package solver defines the backend-agnostic contract between the composed
// optimization model and a numerical solver. The core treats a backend as a
// pure function from model to result and must handle every status value
// without crashing; solver internals live behind this interface.
package solver

import (
	"context"
	"time"

	"github.com/gridwise/capex/model"
)

// Status classifies the outcome of a solve. There is no sixth value: every
// backend failure must map onto one of these so callers can branch.
type Status string

const (
	StatusOptimal     Status = "optimal"
	StatusInfeasible  Status = "infeasible"
	StatusUnbounded   Status = "unbounded"
	StatusTimedOut    Status = "timed_out"
	StatusSolverError Status = "solver_error"
)

// Options configure one solve call. Flags carries backend-specific knobs as
// a loose map; each backend decodes the keys it understands.
type Options struct {
	Backend   string         `json:"backend" yaml:"backend"`
	Timeout   time.Duration  `json:"timeout" yaml:"timeout"`
	WantDuals bool           `json:"wantDuals" yaml:"wantDuals"`
	Verbose   bool           `json:"verbose" yaml:"verbose"`
	Flags     map[string]any `json:"flags" yaml:"flags"`
}

// Result is the raw solver output. Values is indexed by model.VarID. Duals
// is keyed by constraint name and only populated for LP relaxations when
// Options.WantDuals is set and the backend could recover them.
type Result struct {
	Status    Status
	Objective float64
	Values    []float64
	Duals     map[string]float64
	Message   string
}

// Solver is one numerical backend. Solve blocks until done, the context is
// cancelled, or the configured timeout elapses; cancellation is
// all-or-nothing and yields no partial result.
type Solver interface {
	Solve(ctx context.Context, m *model.Model, opts Options) (Result, error)
}
