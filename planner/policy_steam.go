package planner

import (
	"fmt"

	"github.com/gridwise/capex/catalog"
	"github.com/gridwise/capex/model"
)

// SteamModule meets zone process-steam demand from two sources: heat
// recovered off thermal units fitted with cogeneration equipment, and steam
// raised directly from fuel at a fixed variable cost. Recovery capacity is
// a build decision per (unit, period); recovered steam is bounded both by
// the installed recovery capacity and by the waste heat the unit actually
// produces, which scales with its electric dispatch:
//
//	cogen[g,t] <= sum of cogen builds through the period
//	cogen[g,t] <= heatRatio * dispatch[g,t]
//
// Per (zone, timestep) the steam balance is an equality, matching the
// electric balance: cogen from local units + direct steam = demand.
type SteamModule struct{}

func (m *SteamModule) Name() string { return ModuleSteam }

func (m *SteamModule) Contribute(c *Composition) error {
	cat := c.Catalog()
	policy := cat.Steam()
	if policy == nil {
		return nil
	}

	// recovery[zone][timestep] accumulates cogen steam from local units
	recovery := make(map[balanceKey]*model.Expr)

	for _, g := range cat.Generators() {
		if g.Tech != catalog.TechThermal {
			continue
		}
		z := cat.ZoneByID(g.Zone)
		if z == nil || len(z.SteamDemandMW) == 0 {
			continue
		}

		cumulative := model.Expr{}
		for _, p := range cat.Periods() {
			build, err := c.Registry().Allocate(g.ID, p.ID, model.KindCogenBuild, 0, model.Inf)
			if err != nil {
				return err
			}
			cumulative.Add(build, 1)

			// installed recovery capacity carries its fixed cost in
			// every period from the build on
			cost := model.Expr{}
			cost.AddExpr(cumulative, policy.CogenFixedCost)
			c.AddObjective(cost)

			for _, ts := range p.Timesteps {
				rec, err := c.Registry().Allocate(g.ID, ts.ID, model.KindCogenDispatch, 0, model.Inf)
				if err != nil {
					return err
				}

				capBound := model.Expr{}
				capBound.Add(rec, 1)
				capBound.AddExpr(cumulative, -1)
				c.AddConstraint(fmt.Sprintf("cogen_cap[%s,%s]", g.ID, ts.ID), capBound, model.LE, 0)

				if d, ok := c.Registry().Lookup(g.ID, ts.ID, model.KindDispatch); ok {
					heat := model.Expr{}
					heat.Add(rec, 1)
					heat.Add(d, -policy.CogenHeatRatio)
					c.AddConstraint(fmt.Sprintf("cogen_heat[%s,%s]", g.ID, ts.ID), heat, model.LE, 0)
				}

				key := balanceKey{zone: g.Zone, step: ts.ID}
				if recovery[key] == nil {
					recovery[key] = &model.Expr{}
				}
				recovery[key].Add(rec, 1)
			}
		}
	}

	for _, z := range cat.Zones() {
		if len(z.SteamDemandMW) == 0 {
			continue
		}
		for _, p := range cat.Periods() {
			for _, ts := range p.Timesteps {
				direct, err := c.Registry().Allocate(z.ID, ts.ID, model.KindDirectSteam, 0, model.Inf)
				if err != nil {
					return err
				}
				cost := model.Expr{}
				cost.Add(direct, policy.DirectCost*ts.Weight)
				c.AddObjective(cost)

				balance := model.Expr{}
				balance.Add(direct, 1)
				if rec := recovery[balanceKey{zone: z.ID, step: ts.ID}]; rec != nil {
					balance.AddExpr(*rec, 1)
				}
				// a timestep absent from the demand table means no
				// steam is needed then
				c.AddConstraint(
					fmt.Sprintf("steam_balance[%s,%s]", z.ID, ts.ID),
					balance, model.EQ, z.SteamDemandMW[ts.ID],
				)
			}
		}
	}
	return nil
}
