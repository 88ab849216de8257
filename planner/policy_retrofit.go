package planner

import (
	"fmt"

	"github.com/gridwise/capex/model"
)

// RetrofitModule adds a binary retrofit-selection variable per eligible
// thermal unit and candidate period. Once selected, a retrofit stays
// selected in every later period (monotonic lock-in); its one-time cost is
// charged on the selection increment, and the post-retrofit emissions rate
// is published for the carbon module to consume.
type RetrofitModule struct{}

func (m *RetrofitModule) Name() string { return ModuleRetrofit }

func (m *RetrofitModule) Contribute(c *Composition) error {
	cat := c.Catalog()
	for _, g := range cat.Generators() {
		if !g.RetrofitEligible {
			continue
		}
		var prev model.VarID = -1
		for _, p := range cat.Periods() {
			sel, err := c.Registry().AllocateBinary(g.ID, p.ID, model.KindRetrofitSelect)
			if err != nil {
				return err
			}
			c.SetRetrofitSelection(g.ID, p.ID, sel)
			if err := c.OverrideEmissionsRate(g.ID, p.ID, g.RetrofitEmissionsRate); err != nil {
				return err
			}

			// one-time cost on the increment sel(p) - sel(p-1)
			cost := model.Expr{}
			cost.Add(sel, g.RetrofitCost)
			if prev >= 0 {
				cost.Add(prev, -g.RetrofitCost)

				// lock-in: sel(p-1) <= sel(p)
				lhs := model.Expr{}
				lhs.Add(prev, 1)
				lhs.Add(sel, -1)
				c.AddConstraint(
					fmt.Sprintf("retrofit_lockin[%s,%s]", g.ID, p.ID),
					lhs, model.LE, 0,
				)
			}
			c.AddObjective(cost)
			prev = sel
		}
	}
	return nil
}
