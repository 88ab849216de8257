package planner

import (
	"fmt"

	"github.com/gridwise/capex/catalog"
	"github.com/gridwise/capex/model"
)

// HydrogenModule links electrolyzers into the electricity balance and
// enforces a per-zone hydrogen mass balance in kg, the module's own
// commodity unit. An electrolyzer's draw is a dispatch variable counted as
// additional load in its zone; production is draw times the unit's
// conversion factor. Per (zone, period):
//
//	sum_t weight*draw*conversion + withdraw - store = hydrogen demand
//
// with store/withdraw only present when the zone has a hydrogen store, and
// the store level carried across periods within [0, capacity].
type HydrogenModule struct{}

func (m *HydrogenModule) Name() string { return ModuleHydrogen }

func (m *HydrogenModule) Contribute(c *Composition) error {
	cat := c.Catalog()

	// production[zone][period] in kg, accumulated from electrolyzer draws
	production := make(map[balanceKey]*model.Expr)

	for _, g := range cat.Generators() {
		if g.Tech != catalog.TechElectrolyzer {
			continue
		}
		for _, p := range cat.Periods() {
			capExpr := c.CapacityExpr(g, p.ID)
			for _, ts := range p.Timesteps {
				draw, err := c.Registry().Allocate(g.ID, ts.ID, model.KindDispatch, 0, model.Inf)
				if err != nil {
					return err
				}
				lhs := model.Expr{}
				lhs.Add(draw, 1)
				lhs.AddExpr(capExpr, -1)
				c.AddConstraint(fmt.Sprintf("cap[%s,%s]", g.ID, ts.ID), lhs, model.LE, 0)

				// electricity drawn is additional zone load
				wd := model.Expr{}
				wd.Add(draw, 1)
				c.AddZoneWithdrawal(g.Zone, ts.ID, wd)

				cost := model.Expr{}
				cost.Add(draw, g.VariableCost*ts.Weight)
				c.AddObjective(cost)

				key := balanceKey{zone: g.Zone, step: p.ID}
				if production[key] == nil {
					production[key] = &model.Expr{}
				}
				production[key].Add(draw, ts.Weight*g.ConversionKgPerMWh)
			}
		}
	}

	for _, z := range cat.Zones() {
		store, hasStore := cat.HydrogenStorageFor(z.ID)
		if !m.zoneParticipates(cat, z, hasStore) {
			continue
		}
		var prevLevel model.VarID = -1
		for _, p := range cat.Periods() {
			balance := model.Expr{}
			if prod := production[balanceKey{zone: z.ID, step: p.ID}]; prod != nil {
				balance.AddExpr(*prod, 1)
			}

			if hasStore {
				in, err := c.Registry().Allocate(z.ID, p.ID, model.KindHydrogenStore, 0, model.Inf)
				if err != nil {
					return err
				}
				out, err := c.Registry().Allocate(z.ID, p.ID, model.KindHydrogenWithdraw, 0, model.Inf)
				if err != nil {
					return err
				}
				level, err := c.Registry().Allocate(z.ID, p.ID, model.KindHydrogenLevel, 0, store.CapacityKg)
				if err != nil {
					return err
				}
				balance.Add(out, 1)
				balance.Add(in, -1)

				// level(p) = level(p-1) + store - withdraw; empty at horizon start
				cont := model.Expr{}
				cont.Add(level, 1)
				cont.Add(in, -1)
				cont.Add(out, 1)
				if prevLevel >= 0 {
					cont.Add(prevLevel, -1)
				}
				c.AddConstraint(fmt.Sprintf("h2_level[%s,%s]", z.ID, p.ID), cont, model.EQ, 0)
				prevLevel = level
			}

			c.AddConstraint(
				fmt.Sprintf("h2_balance[%s,%s]", z.ID, p.ID),
				balance, model.EQ, z.HydrogenDemandKg[p.ID],
			)
		}
	}
	return nil
}

// zoneParticipates reports whether the zone needs a hydrogen balance:
// it hosts an electrolyzer, a hydrogen store, or carries hydrogen demand.
func (m *HydrogenModule) zoneParticipates(cat *catalog.Catalog, z catalog.Zone, hasStore bool) bool {
	if hasStore || len(z.HydrogenDemandKg) > 0 {
		return true
	}
	for _, g := range cat.GeneratorsInZone(z.ID) {
		if g.Tech == catalog.TechElectrolyzer {
			return true
		}
	}
	return false
}
