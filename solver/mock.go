package solver

import (
	"context"

	"github.com/gridwise/capex/model"
)

// Mock is a scriptable Solver for tests: it records the models it was
// handed and replays canned results.
type Mock struct {
	Results []Result
	Err     error

	Models []*model.Model
	Opts   []Options

	calls int
}

func (s *Mock) Solve(ctx context.Context, m *model.Model, opts Options) (Result, error) {
	s.Models = append(s.Models, m)
	s.Opts = append(s.Opts, opts)
	if s.Err != nil {
		return Result{Status: StatusSolverError, Message: s.Err.Error()}, s.Err
	}
	if len(s.Results) == 0 {
		return Result{Status: StatusOptimal, Values: make([]float64, m.Registry.Len())}, nil
	}
	r := s.Results[s.calls%len(s.Results)]
	s.calls++
	return r, nil
}
