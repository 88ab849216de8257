package planner

import (
	"fmt"
	"sort"

	"github.com/gridwise/capex/catalog"
	"github.com/gridwise/capex/model"
)

// Module is a pluggable policy contribution. Modules add variables,
// constraints and objective terms through the Composition handle; they
// reference the dispatch and capacity variables the core has already
// allocated rather than introducing parallel accounting of the same
// physical quantity.
type Module interface {
	Name() string
	Contribute(c *Composition) error
}

// moduleRank fixes the order modules contribute in, independent of the
// order they were enabled in. Retrofit runs before carbon because carbon
// reads the retrofit selections when computing emissions coefficients.
func moduleRank(name string) int {
	switch name {
	case ModuleRetrofit:
		return 10
	case ModuleHydrogen:
		return 20
	case ModuleSteam:
		return 25
	case ModuleDemandResponse:
		return 30
	case ModuleCarbon:
		return 40
	default:
		return 100
	}
}

// Canonical module identifiers, as they appear in scenario configuration.
const (
	ModuleCarbon         = "carbon"
	ModuleHydrogen       = "hydrogen"
	ModuleDemandResponse = "demand_response"
	ModuleRetrofit       = "retrofit"
	ModuleSteam          = "steam"
)

// ModulesByName instantiates the named policy modules. Unknown names are an
// error so a misspelled scenario configuration cannot silently drop a
// policy.
func ModulesByName(names []string) ([]Module, error) {
	var out []Module
	seen := make(map[string]bool)
	for _, n := range names {
		if seen[n] {
			continue
		}
		seen[n] = true
		switch n {
		case ModuleCarbon:
			out = append(out, &CarbonModule{})
		case ModuleHydrogen:
			out = append(out, &HydrogenModule{})
		case ModuleDemandResponse:
			out = append(out, &DemandResponseModule{})
		case ModuleRetrofit:
			out = append(out, &RetrofitModule{})
		case ModuleSteam:
			out = append(out, &SteamModule{})
		default:
			return nil, fmt.Errorf("unknown policy module %q", n)
		}
	}
	return out, nil
}

// ActiveModules intersects the requested module names with the policy
// tables actually present in the catalog. A policy whose table is absent is
// disabled, not zero-valued.
func ActiveModules(cat *catalog.Catalog, requested []string) []string {
	var out []string
	for _, n := range requested {
		switch n {
		case ModuleCarbon:
			if cat.Carbon() == nil {
				continue
			}
		case ModuleDemandResponse:
			if len(cat.DemandResponsePrograms()) == 0 {
				continue
			}
		case ModuleHydrogen:
			if !hasElectrolyzers(cat) {
				continue
			}
		case ModuleRetrofit:
			if !hasRetrofitCandidates(cat) {
				continue
			}
		case ModuleSteam:
			if cat.Steam() == nil {
				continue
			}
		}
		out = append(out, n)
	}
	return out
}

func hasElectrolyzers(cat *catalog.Catalog) bool {
	for _, g := range cat.Generators() {
		if g.Tech == catalog.TechElectrolyzer {
			return true
		}
	}
	return false
}

func hasRetrofitCandidates(cat *catalog.Catalog) bool {
	for _, g := range cat.Generators() {
		if g.RetrofitEligible {
			return true
		}
	}
	return false
}

func sortModules(mods []Module) {
	sort.SliceStable(mods, func(i, j int) bool {
		ri, rj := moduleRank(mods[i].Name()), moduleRank(mods[j].Name())
		if ri != rj {
			return ri < rj
		}
		return mods[i].Name() < mods[j].Name()
	})
}

// rateKey identifies an emissions-rate override target.
type rateKey struct {
	unit   string
	period string
}

type rateOverride struct {
	module string
	rate   float64
}

// Composition is the shared handle policy modules contribute through. It
// accumulates constraints and objective terms into the model under
// construction, tracks per-zone energy-balance adjustments, and detects
// cross-module conflicts structurally.
type Composition struct {
	cat *catalog.Catalog
	reg *model.Registry
	b   *Builder

	current string // name of the module currently contributing

	overrides  map[rateKey]rateOverride
	selections map[rateKey]model.VarID // retrofit selection variables
}

// Catalog returns the scenario's entity catalog (read-only by convention).
func (c *Composition) Catalog() *catalog.Catalog { return c.cat }

// Registry returns the shared variable registry.
func (c *Composition) Registry() *model.Registry { return c.reg }

// AddConstraint appends a constraint to the composed model.
func (c *Composition) AddConstraint(name string, e model.Expr, sense model.Sense, rhs float64) {
	c.b.m.AddConstraint(model.Constraint{Name: name, Expr: e, Sense: sense, RHS: rhs})
}

// AddObjective adds a cost term to the (minimized) objective.
func (c *Composition) AddObjective(e model.Expr) {
	c.b.m.Objective.AddExpr(e, 1)
}

// AddZoneInjection adds power (MW) to the zone's energy balance at the
// timestep.
func (c *Composition) AddZoneInjection(zoneID, tsID string, e model.Expr) {
	c.b.balanceFor(zoneID, tsID).AddExpr(e, 1)
}

// AddZoneWithdrawal removes power (MW) from the zone's energy balance at
// the timestep, e.g. electrolyzer draw or a net demand-response shift.
func (c *Composition) AddZoneWithdrawal(zoneID, tsID string, e model.Expr) {
	c.b.balanceFor(zoneID, tsID).AddExpr(e, -1)
}

// CapacityExpr returns existing capacity plus cumulative builds through the
// period, in MW.
func (c *Composition) CapacityExpr(gen catalog.Generator, periodID string) model.Expr {
	return c.b.capacityExpr(gen, periodID)
}

// CapacityUpperBound returns a finite constant bound on the unit's installed
// capacity over the whole horizon, for big-M linearizations. Summation runs
// in period order so the coefficient is bit-for-bit reproducible.
func (c *Composition) CapacityUpperBound(gen catalog.Generator) float64 {
	ub := gen.ExistingCapacity
	for _, p := range c.cat.Periods() {
		if lim, ok := gen.BuildLimit[p.ID]; ok {
			ub += lim
		}
	}
	return ub
}

// OverrideEmissionsRate records that the contributing module fixes the
// unit's effective emissions rate for the period. Two modules setting a
// different rate for the same (unit, period) is a composition conflict.
func (c *Composition) OverrideEmissionsRate(unitID, periodID string, rate float64) error {
	key := rateKey{unit: unitID, period: periodID}
	if prev, ok := c.overrides[key]; ok && prev.module != c.current && prev.rate != rate {
		return &CompositionError{
			ModuleA: prev.module,
			ModuleB: c.current,
			Entity:  unitID,
			Index:   periodID,
			Detail:  fmt.Sprintf("emissions-rate override %g vs %g", prev.rate, rate),
		}
	}
	c.overrides[key] = rateOverride{module: c.current, rate: rate}
	return nil
}

// EmissionsRateOverride returns the override for (unit, period), if any.
func (c *Composition) EmissionsRateOverride(unitID, periodID string) (float64, bool) {
	o, ok := c.overrides[rateKey{unit: unitID, period: periodID}]
	return o.rate, ok
}

// SetRetrofitSelection publishes a unit's retrofit-selection variable for a
// period so other modules (carbon) can couple to it.
func (c *Composition) SetRetrofitSelection(unitID, periodID string, v model.VarID) {
	c.selections[rateKey{unit: unitID, period: periodID}] = v
}

// RetrofitSelection returns the selection variable for (unit, period), if
// the retrofit module allocated one.
func (c *Composition) RetrofitSelection(unitID, periodID string) (model.VarID, bool) {
	v, ok := c.selections[rateKey{unit: unitID, period: periodID}]
	return v, ok
}
