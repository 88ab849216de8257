package planner

import (
	"fmt"

	"github.com/gridwise/capex/model"
)

// CarbonModule caps total dispatch emissions per period. When a unit's
// retrofit has been selected, its effective emissions rate drops to the
// published post-retrofit rate from the selection period onward; the
// coupling is linearized through a per-timestep "emissions saved" variable
// bounded by both the dispatch level and the retrofit-selection binary.
//
// When no carbon policy table is present the module is not activated at
// all and dispatch may emit without bound. That is the documented
// baseline-scenario behavior, not an accident.
type CarbonModule struct{}

func (m *CarbonModule) Name() string { return ModuleCarbon }

func (m *CarbonModule) Contribute(c *Composition) error {
	cat := c.Catalog()
	policy := cat.Carbon()
	if policy == nil {
		return nil
	}

	for _, p := range cat.Periods() {
		cap, capped := policy.CapsT[p.ID]
		if !capped {
			continue
		}

		total := model.Expr{}
		for _, g := range cat.Generators() {
			if g.EmissionsRate == 0 {
				continue
			}
			for _, ts := range p.Timesteps {
				d, ok := c.Registry().Lookup(g.ID, ts.ID, model.KindDispatch)
				if !ok {
					continue
				}
				emis, err := m.emissionsExpr(c, g.ID, p.ID, ts.ID, d)
				if err != nil {
					return err
				}
				total.AddExpr(emis, ts.Weight)
			}
		}
		c.AddConstraint(fmt.Sprintf("carbon_cap[%s]", p.ID), total, model.LE, cap)
	}
	return nil
}

// emissionsExpr returns the unit's emissions in t/h at the timestep:
// preRate*dispatch minus any retrofit savings. Savings exist only when the
// retrofit module published a selection variable for the (unit, period),
// and are bounded by
//
//	saved <= (preRate-postRate) * dispatch
//	saved <= (preRate-postRate) * capUB * select
//
// so they can only materialize after the retrofit is selected.
func (m *CarbonModule) emissionsExpr(c *Composition, genID, periodID, tsID string, dispatch model.VarID) (model.Expr, error) {
	g := c.Catalog().GeneratorByID(genID)
	emis := model.Expr{}
	emis.Add(dispatch, g.EmissionsRate)

	sel, ok := c.RetrofitSelection(genID, periodID)
	if !ok {
		return emis, nil
	}
	postRate, ok := c.EmissionsRateOverride(genID, periodID)
	if !ok {
		postRate = g.RetrofitEmissionsRate
	}
	delta := g.EmissionsRate - postRate
	if delta <= 0 {
		return emis, nil
	}

	saved, err := c.Registry().Allocate(genID, tsID, model.KindEmissionsSaved, 0, model.Inf)
	if err != nil {
		return model.Expr{}, err
	}

	byDispatch := model.Expr{}
	byDispatch.Add(saved, 1)
	byDispatch.Add(dispatch, -delta)
	c.AddConstraint(fmt.Sprintf("saved_dispatch[%s,%s]", genID, tsID), byDispatch, model.LE, 0)

	bySelection := model.Expr{}
	bySelection.Add(saved, 1)
	bySelection.Add(sel, -delta*c.CapacityUpperBound(*g))
	c.AddConstraint(fmt.Sprintf("saved_select[%s,%s]", genID, tsID), bySelection, model.LE, 0)

	emis.Add(saved, -1)
	return emis, nil
}
