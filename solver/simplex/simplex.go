// Package simplex is the reference solver backend, built on gonum's dense
// linear algebra and LP simplex routine. Pure LPs are solved directly;
// models with binary variables go through a depth-first branch-and-bound
// over the LP relaxation.
//
// On degenerate optima the simplex can return any one of the tied vertices;
// which one is an implementation detail of gonum's pivoting and is NOT a
// reproducibility guarantee across gonum versions. The composed model
// itself is always byte-identical for identical inputs.
package simplex

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/mitchellh/mapstructure"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"github.com/gridwise/capex/model"
	"github.com/gridwise/capex/solver"
)

// Name is the backend identifier used in scenario configuration.
const Name = "simplex"

// Flags are the backend-specific knobs, decoded from Options.Flags.
type Flags struct {
	Tol      float64 `mapstructure:"tol"`      // simplex pivot tolerance
	IntTol   float64 `mapstructure:"intTol"`   // integrality tolerance for branch and bound
	MaxNodes int     `mapstructure:"maxNodes"` // branch-and-bound node budget, 0 = unlimited
}

func defaultFlags() Flags {
	return Flags{Tol: 1e-9, IntTol: 1e-6, MaxNodes: 0}
}

// Solver implements solver.Solver.
type Solver struct{}

func New() *Solver { return &Solver{} }

func (s *Solver) Solve(ctx context.Context, m *model.Model, opts solver.Options) (solver.Result, error) {
	flags := defaultFlags()
	if opts.Flags != nil {
		if err := mapstructure.Decode(opts.Flags, &flags); err != nil {
			return solver.Result{Status: solver.StatusSolverError, Message: err.Error()}, fmt.Errorf("decode solver flags: %w", err)
		}
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	if !m.HasBinaries() {
		res := s.solveLP(m, nil, flags, opts.WantDuals)
		if err := ctx.Err(); err != nil {
			return solver.Result{Status: solver.StatusTimedOut, Message: err.Error()}, nil
		}
		return res, nil
	}
	return s.branchAndBound(ctx, m, flags), nil
}

// fixings pins binary variables to a value during branch and bound.
type fixings map[model.VarID]float64

// solveLP standardizes the model (with any binary fixings applied) and runs
// gonum's simplex.
func (s *Solver) solveLP(m *model.Model, fixed fixings, flags Flags, wantDuals bool) solver.Result {
	sf, err := standardize(m, fixed)
	if err != nil {
		return solver.Result{Status: solver.StatusSolverError, Message: err.Error()}
	}
	if sf.a == nil {
		// no constraints and no finite upper bounds: every variable sits at
		// its lower bound unless its cost is negative, which is unbounded
		for _, cj := range sf.c {
			if cj < 0 {
				return solver.Result{Status: solver.StatusUnbounded, Message: "costed variable with no binding constraint"}
			}
		}
		return solver.Result{
			Status:    solver.StatusOptimal,
			Objective: sf.objOffset,
			Values:    sf.originalValues(make([]float64, sf.nVars)),
		}
	}

	opt, x, lpErr := lp.Simplex(sf.c, sf.a, sf.b, flags.Tol, nil)
	switch {
	case lpErr == nil:
	case errors.Is(lpErr, lp.ErrInfeasible):
		return solver.Result{Status: solver.StatusInfeasible, Message: lpErr.Error()}
	case errors.Is(lpErr, lp.ErrUnbounded):
		return solver.Result{Status: solver.StatusUnbounded, Message: lpErr.Error()}
	default:
		return solver.Result{Status: solver.StatusSolverError, Message: lpErr.Error()}
	}

	res := solver.Result{
		Status:    solver.StatusOptimal,
		Objective: opt + sf.objOffset,
		Values:    sf.originalValues(x),
	}
	if wantDuals {
		res.Duals = sf.recoverDuals(m, x, flags.Tol)
	}
	return res
}

// standardForm is min c'y s.t. Ay = b, y >= 0, plus the bookkeeping needed
// to translate solutions back to the model's variables.
type standardForm struct {
	a         *mat.Dense
	b         []float64
	c         []float64
	nVars     int       // model variables (before slacks)
	lower     []float64 // per model variable, the shift applied
	objOffset float64
	rowNames  []string // constraint name per row, "" for bound rows
}

// standardize shifts every variable by its (finite) lower bound, turns
// finite upper bounds and inequality senses into slack rows, and flips rows
// as needed. Binary fixings narrow the variable's bounds to a point.
func standardize(m *model.Model, fixed fixings) (*standardForm, error) {
	vars := m.Registry.Variables()
	n := len(vars)

	lower := make([]float64, n)
	upper := make([]float64, n)
	for i, v := range vars {
		lo, up := v.Lower, v.Upper
		if fv, ok := fixed[model.VarID(i)]; ok {
			lo, up = fv, fv
		}
		if math.IsInf(lo, -1) {
			return nil, fmt.Errorf("variable %s/%s/%s has no finite lower bound", v.Kind, v.Entity, v.Index)
		}
		if up < lo {
			return nil, fmt.Errorf("variable %s/%s/%s has empty bound interval [%g,%g]", v.Kind, v.Entity, v.Index, lo, up)
		}
		lower[i] = lo
		upper[i] = up
	}

	type row struct {
		name  string
		terms []model.Term
		sense model.Sense
		rhs   float64
	}
	var rows []row
	for _, con := range m.Constraints {
		rhs := con.RHS - con.Expr.Offset
		for _, t := range con.Expr.Terms {
			rhs -= t.Coeff * lower[t.Var]
		}
		rows = append(rows, row{name: con.Name, terms: con.Expr.Terms, sense: con.Sense, rhs: rhs})
	}
	for i := range vars {
		if !math.IsInf(upper[i], 1) {
			rows = append(rows, row{
				terms: []model.Term{{Var: model.VarID(i), Coeff: 1}},
				sense: model.LE,
				rhs:   upper[i] - lower[i],
			})
		}
	}

	nSlack := 0
	for _, r := range rows {
		if r.sense != model.EQ {
			nSlack++
		}
	}
	total := n + nSlack
	mRows := len(rows)

	c := make([]float64, total)
	objOffset := m.Objective.Offset
	for _, t := range m.Objective.Terms {
		c[t.Var] += t.Coeff
		objOffset += t.Coeff * lower[t.Var]
	}
	if mRows == 0 {
		return &standardForm{c: c, nVars: n, lower: lower, objOffset: objOffset}, nil
	}

	a := mat.NewDense(mRows, total, nil)
	b := make([]float64, mRows)
	names := make([]string, mRows)

	slack := n
	for ri, r := range rows {
		for _, t := range r.terms {
			a.Set(ri, int(t.Var), a.At(ri, int(t.Var))+t.Coeff)
		}
		switch r.sense {
		case model.LE:
			a.Set(ri, slack, 1)
			slack++
		case model.GE:
			a.Set(ri, slack, -1)
			slack++
		}
		b[ri] = r.rhs
		names[ri] = r.name
	}

	return &standardForm{
		a:         a,
		b:         b,
		c:         c,
		nVars:     n,
		lower:     lower,
		objOffset: objOffset,
		rowNames:  names,
	}, nil
}

// originalValues undoes the lower-bound shift and drops slack columns.
func (sf *standardForm) originalValues(y []float64) []float64 {
	out := make([]float64, sf.nVars)
	for i := range out {
		out[i] = y[i] + sf.lower[i]
	}
	return out
}

// recoverDuals reconstructs the dual vector from the optimal basis
// (solving Bᵀy = c_B) and maps it back onto constraint names. On degenerate
// optima the basis cannot always be identified from the solution alone; in
// that case no duals are returned rather than wrong ones.
func (sf *standardForm) recoverDuals(m *model.Model, y []float64, tol float64) map[string]float64 {
	nRows, _ := sf.a.Dims()
	var basic []int
	for j, v := range y {
		if v > math.Sqrt(tol) {
			basic = append(basic, j)
		}
	}
	if len(basic) != nRows {
		return nil
	}

	bMat := mat.NewDense(nRows, nRows, nil)
	cb := mat.NewVecDense(nRows, nil)
	for k, j := range basic {
		for i := 0; i < nRows; i++ {
			bMat.Set(i, k, sf.a.At(i, j))
		}
		cb.SetVec(k, sf.c[j])
	}

	var duals mat.VecDense
	if err := duals.SolveVec(bMat.T(), cb); err != nil {
		return nil
	}

	out := make(map[string]float64, len(m.Constraints))
	for i := 0; i < nRows; i++ {
		if sf.rowNames[i] != "" {
			out[sf.rowNames[i]] = duals.AtVec(i)
		}
	}
	return out
}

// branchAndBound runs a depth-first search over the binary variables,
// solving the LP relaxation at every node. Branching is deterministic: the
// lowest-handle most-fractional binary, rounded-direction child first.
func (s *Solver) branchAndBound(ctx context.Context, m *model.Model, flags Flags) solver.Result {
	binaries := binaryVars(m)

	type node struct {
		fixed fixings
	}
	stack := []node{{fixed: fixings{}}}

	incumbent := solver.Result{Status: solver.StatusInfeasible}
	haveIncumbent := false
	nodes := 0

	for len(stack) > 0 {
		if ctx.Err() != nil {
			res := incumbent
			res.Status = solver.StatusTimedOut
			res.Message = ctx.Err().Error()
			return res
		}
		if flags.MaxNodes > 0 && nodes >= flags.MaxNodes {
			res := incumbent
			res.Status = solver.StatusTimedOut
			res.Message = "branch-and-bound node budget exhausted"
			return res
		}
		nodes++

		nd := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		rel := s.solveLP(m, nd.fixed, flags, false)
		switch rel.Status {
		case solver.StatusInfeasible:
			continue
		case solver.StatusUnbounded:
			// an unbounded relaxation at the root means a missing build
			// bound; report it rather than search forever
			if len(nd.fixed) == 0 {
				return rel
			}
			continue
		case solver.StatusSolverError:
			return rel
		}
		if haveIncumbent && rel.Objective >= incumbent.Objective-flags.IntTol {
			continue
		}

		branchVar, frac := mostFractional(binaries, rel.Values, flags.IntTol)
		if branchVar < 0 {
			incumbent = rel
			haveIncumbent = true
			continue
		}

		// push the far child first so the rounded child is explored next
		near := math.Round(frac)
		farFix := cloneFixings(nd.fixed)
		farFix[branchVar] = 1 - near
		stack = append(stack, node{fixed: farFix})

		nearFix := cloneFixings(nd.fixed)
		nearFix[branchVar] = near
		stack = append(stack, node{fixed: nearFix})
	}

	if haveIncumbent {
		// snap binaries onto exact integers for downstream consumers
		for _, v := range binaries {
			incumbent.Values[v] = math.Round(incumbent.Values[v])
		}
	}
	return incumbent
}

func binaryVars(m *model.Model) []model.VarID {
	var out []model.VarID
	for i, v := range m.Registry.Variables() {
		if v.Binary {
			out = append(out, model.VarID(i))
		}
	}
	return out
}

// mostFractional returns the unfixed binary farthest from an integer, or -1
// when the relaxation is already integral.
func mostFractional(binaries []model.VarID, values []float64, intTol float64) (model.VarID, float64) {
	best := model.VarID(-1)
	bestDist := intTol
	bestVal := 0.0
	for _, v := range binaries {
		val := values[v]
		dist := math.Abs(val - math.Round(val))
		if dist > bestDist {
			best = v
			bestDist = dist
			bestVal = val
		}
	}
	return best, bestVal
}

func cloneFixings(f fixings) fixings {
	out := make(fixings, len(f)+1)
	for k, v := range f {
		out[k] = v
	}
	return out
}
