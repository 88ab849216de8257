// Package planner composes one scenario's optimization model: it allocates
// the core dispatch, build, storage and flow variables, installs the
// always-present physical constraints (energy balance, capacity bounds,
// storage continuity, transmission limits), and lets the enabled policy
// modules contribute their variables, constraints and cost terms on top.
//
// Construction is single-threaded and deterministic: the catalog iterates
// entities in ID order and modules contribute in a fixed rank order, so two
// builds from the same catalog and module set produce byte-identical
// models.
package planner

import (
	"fmt"

	"github.com/gridwise/capex/catalog"
	"github.com/gridwise/capex/model"
)

// StorageBoundary selects how storage state-of-charge is tied across the
// edges of each investment period.
type StorageBoundary string

const (
	// BoundaryWrap links the first timestep's continuity equation back to
	// the last timestep of the same period.
	BoundaryWrap StorageBoundary = "wrap"
	// BoundaryReset starts each period at half the unit's energy capacity.
	BoundaryReset StorageBoundary = "reset"
)

// Options tune core constraint construction.
type Options struct {
	StorageBoundary StorageBoundary
}

type balanceKey struct {
	zone string
	step string
}

// Builder assembles one model from a catalog and a set of policy modules.
// It owns the composed model until Build hands it to the caller.
type Builder struct {
	cat  *catalog.Catalog
	reg  *model.Registry
	opts Options

	m       *model.Model
	balance map[balanceKey]*model.Expr
}

func NewBuilder(cat *catalog.Catalog, reg *model.Registry, opts Options) *Builder {
	if opts.StorageBoundary == "" {
		opts.StorageBoundary = BoundaryWrap
	}
	return &Builder{
		cat:     cat,
		reg:     reg,
		opts:    opts,
		m:       &model.Model{Registry: reg},
		balance: make(map[balanceKey]*model.Expr),
	}
}

// Build composes the core model plus the given policy modules and returns
// the finished problem. Composition conflicts between modules surface here,
// before any solver is involved.
func (b *Builder) Build(modules ...Module) (*model.Model, error) {
	if err := b.buildCore(); err != nil {
		return nil, err
	}

	comp := &Composition{
		cat:        b.cat,
		reg:        b.reg,
		b:          b,
		overrides:  make(map[rateKey]rateOverride),
		selections: make(map[rateKey]model.VarID),
	}
	sortModules(modules)
	for _, mod := range modules {
		comp.current = mod.Name()
		if err := mod.Contribute(comp); err != nil {
			return nil, fmt.Errorf("module %s: %w", mod.Name(), err)
		}
	}
	comp.current = ""

	b.sealEnergyBalance()
	return b.m, nil
}

// balanceFor returns the accumulating LHS of the zone/timestep energy
// balance. Injections add, withdrawals subtract; the equation is sealed
// against the zone load after all modules have contributed.
func (b *Builder) balanceFor(zoneID, tsID string) *model.Expr {
	key := balanceKey{zone: zoneID, step: tsID}
	e, ok := b.balance[key]
	if !ok {
		e = &model.Expr{}
		b.balance[key] = e
	}
	return e
}

// capacityExpr is existing capacity plus cumulative candidate builds
// through the given period. Build variables are non-negative, so installed
// capacity is non-decreasing across periods: capacity once built is not
// un-built.
func (b *Builder) capacityExpr(g catalog.Generator, periodID string) model.Expr {
	e := model.Expr{Offset: g.ExistingCapacity}
	for _, p := range b.cat.Periods() {
		if _, ok := g.BuildLimit[p.ID]; ok {
			if v, found := b.reg.Lookup(g.ID, p.ID, model.KindBuild); found {
				e.Add(v, 1)
			}
		}
		if p.ID == periodID {
			break
		}
	}
	return e
}

func (b *Builder) buildCore() error {
	if err := b.buildInvestment(); err != nil {
		return err
	}
	if err := b.buildDispatch(); err != nil {
		return err
	}
	if err := b.buildStorage(); err != nil {
		return err
	}
	if err := b.buildTransmission(); err != nil {
		return err
	}
	return nil
}

// buildInvestment allocates build variables and charges capital plus fixed
// O&M costs.
func (b *Builder) buildInvestment() error {
	for _, g := range b.cat.Generators() {
		for _, p := range b.cat.Periods() {
			if limit, ok := g.BuildLimit[p.ID]; ok {
				v, err := b.reg.Allocate(g.ID, p.ID, model.KindBuild, 0, limit)
				if err != nil {
					return err
				}
				b.m.Objective.Add(v, g.CapitalCost)
			}
		}
		for _, p := range b.cat.Periods() {
			cap := b.capacityExpr(g, p.ID)
			b.m.Objective.AddExpr(cap, g.FixedCost)
		}
	}
	return nil
}

// buildDispatch allocates dispatch variables for conventional and variable
// generators, bounds them by installed capacity and charges variable cost.
// Storage and electrolyzers are handled elsewhere: storage dispatches
// through charge/discharge pairs and electrolyzer draw belongs to the
// hydrogen module.
func (b *Builder) buildDispatch() error {
	for _, g := range b.cat.Generators() {
		if g.Tech == catalog.TechStorage || g.Tech == catalog.TechElectrolyzer {
			continue
		}
		for _, p := range b.cat.Periods() {
			cap := b.capacityExpr(g, p.ID)
			for _, ts := range p.Timesteps {
				d, err := b.reg.Allocate(g.ID, ts.ID, model.KindDispatch, 0, model.Inf)
				if err != nil {
					return err
				}
				// dispatch - capacity <= 0
				lhs := model.Expr{}
				lhs.Add(d, 1)
				lhs.AddExpr(cap, -1)
				b.m.AddConstraint(model.Constraint{
					Name:  fmt.Sprintf("cap[%s,%s]", g.ID, ts.ID),
					Expr:  lhs,
					Sense: model.LE,
					RHS:   0,
				})
				b.m.Objective.Add(d, g.VariableCost*ts.Weight)
				b.balanceFor(g.Zone, ts.ID).Add(d, 1)
			}
		}
	}
	return nil
}

// buildStorage allocates charge/discharge/state-of-charge for storage units
// and installs the continuity equations. The charge efficiency is applied
// on the way in; state of charge is measured in MWh.
func (b *Builder) buildStorage() error {
	for _, g := range b.cat.Generators() {
		if g.Tech != catalog.TechStorage {
			continue
		}
		for _, p := range b.cat.Periods() {
			cap := b.capacityExpr(g, p.ID)
			steps := p.Timesteps
			for i, ts := range steps {
				ch, err := b.reg.Allocate(g.ID, ts.ID, model.KindCharge, 0, model.Inf)
				if err != nil {
					return err
				}
				dis, err := b.reg.Allocate(g.ID, ts.ID, model.KindDischarge, 0, model.Inf)
				if err != nil {
					return err
				}
				soc, err := b.reg.Allocate(g.ID, ts.ID, model.KindStateOfCharge, 0, model.Inf)
				if err != nil {
					return err
				}

				for _, pv := range []struct {
					kind model.VarKind
					v    model.VarID
				}{{model.KindCharge, ch}, {model.KindDischarge, dis}} {
					lhs := model.Expr{}
					lhs.Add(pv.v, 1)
					lhs.AddExpr(cap, -1)
					b.m.AddConstraint(model.Constraint{
						Name:  fmt.Sprintf("%s_cap[%s,%s]", pv.kind, g.ID, ts.ID),
						Expr:  lhs,
						Sense: model.LE,
						RHS:   0,
					})
				}

				// soc <= energy capacity (hours * MW capacity)
				lhs := model.Expr{}
				lhs.Add(soc, 1)
				lhs.AddExpr(cap, -g.EnergyCapacityHours)
				b.m.AddConstraint(model.Constraint{
					Name:  fmt.Sprintf("soc_cap[%s,%s]", g.ID, ts.ID),
					Expr:  lhs,
					Sense: model.LE,
					RHS:   0,
				})

				// continuity: soc(t) - soc(prev) - eff*w*charge + w*discharge = 0
				cont := model.Expr{}
				cont.Add(soc, 1)
				cont.Add(ch, -g.RoundTripEfficiency*ts.Weight)
				cont.Add(dis, ts.Weight)
				switch {
				case i > 0:
					prev, _ := b.reg.Lookup(g.ID, steps[i-1].ID, model.KindStateOfCharge)
					cont.Add(prev, -1)
					b.m.AddConstraint(model.Constraint{
						Name:  fmt.Sprintf("soc[%s,%s]", g.ID, ts.ID),
						Expr:  cont,
						Sense: model.EQ,
						RHS:   0,
					})
				case b.opts.StorageBoundary == BoundaryReset:
					// start the period at half energy capacity
					cont.AddExpr(cap, -0.5*g.EnergyCapacityHours)
					b.m.AddConstraint(model.Constraint{
						Name:  fmt.Sprintf("soc[%s,%s]", g.ID, ts.ID),
						Expr:  cont,
						Sense: model.EQ,
						RHS:   0,
					})
					// wrap boundary is deferred until the last soc variable
					// of the period exists, handled below
				}

				b.m.Objective.Add(dis, g.VariableCost*ts.Weight)
				bal := b.balanceFor(g.Zone, ts.ID)
				bal.Add(dis, 1)
				bal.Add(ch, -1)
			}

			if b.opts.StorageBoundary == BoundaryWrap && len(steps) > 0 {
				first := steps[0]
				last := steps[len(steps)-1]
				socFirst, _ := b.reg.Lookup(g.ID, first.ID, model.KindStateOfCharge)
				socLast, _ := b.reg.Lookup(g.ID, last.ID, model.KindStateOfCharge)
				ch, _ := b.reg.Lookup(g.ID, first.ID, model.KindCharge)
				dis, _ := b.reg.Lookup(g.ID, first.ID, model.KindDischarge)
				cont := model.Expr{}
				cont.Add(socFirst, 1)
				cont.Add(socLast, -1)
				cont.Add(ch, -g.RoundTripEfficiency*first.Weight)
				cont.Add(dis, first.Weight)
				b.m.AddConstraint(model.Constraint{
					Name:  fmt.Sprintf("soc[%s,%s]", g.ID, first.ID),
					Expr:  cont,
					Sense: model.EQ,
					RHS:   0,
				})
			}
		}
	}
	return nil
}

// buildTransmission allocates a forward/reverse flow pair per line and
// timestep. Losses are charged against the receiving zone; the pair shares
// the line's thermal capacity so |net flow| stays within bounds.
func (b *Builder) buildTransmission() error {
	for _, l := range b.cat.Lines() {
		for _, p := range b.cat.Periods() {
			for _, ts := range p.Timesteps {
				fwd, err := b.reg.Allocate(l.ID, ts.ID, model.KindFlowForward, 0, l.Capacity)
				if err != nil {
					return err
				}
				revUpper := 0.0
				if l.Bidirectional {
					revUpper = l.Capacity
				}
				rev, err := b.reg.Allocate(l.ID, ts.ID, model.KindFlowReverse, 0, revUpper)
				if err != nil {
					return err
				}

				if l.Bidirectional {
					lhs := model.Expr{}
					lhs.Add(fwd, 1)
					lhs.Add(rev, 1)
					b.m.AddConstraint(model.Constraint{
						Name:  fmt.Sprintf("flow_cap[%s,%s]", l.ID, ts.ID),
						Expr:  lhs,
						Sense: model.LE,
						RHS:   l.Capacity,
					})
				}

				from := b.balanceFor(l.From, ts.ID)
				from.Add(fwd, -1)
				from.Add(rev, 1-l.Loss)
				to := b.balanceFor(l.To, ts.ID)
				to.Add(fwd, 1-l.Loss)
				to.Add(rev, -1)
			}
		}
	}
	return nil
}

// sealEnergyBalance turns the accumulated per-zone expressions into exact
// equality constraints against the zone loads. Runs after all modules have
// contributed their injections and withdrawals.
func (b *Builder) sealEnergyBalance() {
	for _, z := range b.cat.Zones() {
		for _, p := range b.cat.Periods() {
			for _, ts := range p.Timesteps {
				lhs := b.balanceFor(z.ID, ts.ID)
				b.m.AddConstraint(model.Constraint{
					Name:  fmt.Sprintf("balance[%s,%s]", z.ID, ts.ID),
					Expr:  *lhs,
					Sense: model.EQ,
					RHS:   z.Load[ts.ID],
				})
			}
		}
	}
}
