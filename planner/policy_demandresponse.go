package planner

import (
	"fmt"

	"github.com/gridwise/capex/model"
)

// DemandResponseModule reshapes industrial load. Per program and timestep
// it allocates bounded shift-up and shift-down variables; the net shift is
// withdrawn from (added to) the zone's load in the energy balance, and the
// shifted energy must sum to zero over each period, so timing is
// redistributed but no energy is shed or created.
//
// A program whose bounds cannot be reconciled with capacity limits makes
// the whole model infeasible; that verdict belongs to the solver and is
// never papered over here.
type DemandResponseModule struct{}

func (m *DemandResponseModule) Name() string { return ModuleDemandResponse }

func (m *DemandResponseModule) Contribute(c *Composition) error {
	cat := c.Catalog()
	for _, prog := range cat.DemandResponsePrograms() {
		for _, p := range cat.Periods() {
			net := model.Expr{} // MWh shifted over the period
			for _, ts := range p.Timesteps {
				up, err := c.Registry().Allocate(prog.ID, ts.ID, model.KindShiftUp, 0, prog.ShiftUpLimit[ts.ID])
				if err != nil {
					return err
				}
				down, err := c.Registry().Allocate(prog.ID, ts.ID, model.KindShiftDown, 0, prog.ShiftDownLimit[ts.ID])
				if err != nil {
					return err
				}

				// net shift raises the zone's load when positive
				shift := model.Expr{}
				shift.Add(up, 1)
				shift.Add(down, -1)
				c.AddZoneWithdrawal(prog.Zone, ts.ID, shift)

				net.Add(up, ts.Weight)
				net.Add(down, -ts.Weight)
			}
			c.AddConstraint(fmt.Sprintf("dr_net_zero[%s,%s]", prog.ID, p.ID), net, model.EQ, 0)
		}
	}
	return nil
}
