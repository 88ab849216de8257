// Package runner ties the pipeline together: catalog -> registry -> policy
// modules -> builder -> solver -> projection. Scenarios are mutually
// independent; each gets its own catalog, registry and model, so many can
// be solved concurrently without shared mutable state.
package runner

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/gridwise/capex/catalog"
	"github.com/gridwise/capex/config"
	"github.com/gridwise/capex/loader"
	"github.com/gridwise/capex/model"
	"github.com/gridwise/capex/planner"
	"github.com/gridwise/capex/results"
	"github.com/gridwise/capex/solver"
	"github.com/gridwise/capex/solver/simplex"
)

// BuildAndSolve is the core entry point: compose one scenario's model from
// the catalog and enabled modules, hand it to the backend, and decode the
// outcome. Solve-time statuses (Infeasible, Unbounded, TimedOut) come back
// inside the projection, not as Go errors; only data and composition
// failures are errors.
func BuildAndSolve(ctx context.Context, name string, cat *catalog.Catalog, enabled []string, opts planner.Options, solveOpts solver.Options) (*results.Projection, error) {
	reg := model.NewRegistry(cat)

	active := planner.ActiveModules(cat, enabled)
	modules, err := planner.ModulesByName(active)
	if err != nil {
		return nil, err
	}

	b := planner.NewBuilder(cat, reg, opts)
	m, err := b.Build(modules...)
	if err != nil {
		return nil, fmt.Errorf("compose model: %w", err)
	}

	backend, err := backendFor(solveOpts.Backend)
	if err != nil {
		return nil, err
	}
	res, err := backend.Solve(ctx, m, solveOpts)
	if err != nil {
		return nil, fmt.Errorf("solve: %w", err)
	}

	return results.Project(name, cat, m, res)
}

func backendFor(name string) (solver.Solver, error) {
	switch name {
	case "", simplex.Name:
		return simplex.New(), nil
	default:
		return nil, fmt.Errorf("unknown solver backend %q", name)
	}
}

// RunScenario loads one scenario's input directory and solves it.
func RunScenario(ctx context.Context, sc config.ScenarioConfig) (*results.Projection, error) {
	in, err := loader.Load(sc.InputDir)
	if err != nil {
		return nil, fmt.Errorf("load inputs: %w", err)
	}
	cat, err := catalog.New(in)
	if err != nil {
		return nil, fmt.Errorf("build catalog: %w", err)
	}
	opts := planner.Options{StorageBoundary: planner.StorageBoundary(sc.StorageBoundary)}
	return BuildAndSolve(ctx, sc.Name, cat, sc.Modules, opts, sc.Solver.Options())
}

// RunAll solves every configured scenario, fanning out across workers.
// Cancelling the context abandons in-flight solves; there are no partial
// results. Projections are delivered on sink in completion order.
func RunAll(ctx context.Context, scenarios []config.ScenarioConfig, workers int, sink chan<- *results.Projection) error {
	if workers <= 0 {
		workers = 1
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, sc := range scenarios {
		sc := sc
		g.Go(func() error {
			p, err := RunScenario(ctx, sc)
			if err != nil {
				return fmt.Errorf("scenario %s: %w", sc.Name, err)
			}
			slog.Info("Scenario solved",
				"scenario", sc.Name,
				"status", p.Status,
				"objective", p.Objective,
				"emissions_t", p.TotalEmissionsT,
			)
			select {
			case sink <- p:
			case <-ctx.Done():
				return ctx.Err()
			}
			return nil
		})
	}
	return g.Wait()
}
