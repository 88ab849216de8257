// Package results maps raw solver output back onto domain entities: typed
// per-(entity, period) dispatch, build, state-of-charge, emissions and
// shadow-price records, ready for the external writer.
//
// The projection is fully determined by the scenario inputs and the solver's
// returned values. Degenerate optima may admit several equally cheap
// solutions; which one the backend returns is documented backend behavior,
// not a correctness guarantee of this package.
package results

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/gridwise/capex/catalog"
	"github.com/gridwise/capex/model"
	"github.com/gridwise/capex/solver"
)

// DispatchRecord is one generator's operation at one timestep.
type DispatchRecord struct {
	Generator  string
	Zone       string
	Period     string
	Timestep   string
	PowerMW    float64
	EnergyMWh  float64
	EmissionsT float64
}

// BuildRecord is new capacity added in a period plus the cumulative total.
type BuildRecord struct {
	Generator    string
	Period       string
	BuiltMW      float64
	CumulativeMW float64
}

// StorageRecord is a storage unit's state at one timestep.
type StorageRecord struct {
	Generator   string
	Timestep    string
	ChargeMW    float64
	DischargeMW float64
	SocMWh      float64
}

// FlowRecord is the net transmission flow on a line at one timestep,
// positive in the line's From->To direction.
type FlowRecord struct {
	Line     string
	Timestep string
	NetMW    float64
}

// ShiftRecord is a demand-response program's net load adjustment at one
// timestep, positive when load was added.
type ShiftRecord struct {
	Program  string
	Zone     string
	Timestep string
	NetMW    float64
}

// HydrogenRecord is a zone's hydrogen production over one period, in kg.
type HydrogenRecord struct {
	Zone         string
	Period       string
	ProducedKg   float64
	StoreLevelKg float64
}

// SteamRecord is a zone's steam supply at one timestep, split by source.
type SteamRecord struct {
	Zone     string
	Timestep string
	CogenMW  float64
	DirectMW float64
}

// CogenBuildRecord is cogen recovery capacity added at a thermal unit in a
// period plus the cumulative total, in MW-thermal.
type CogenBuildRecord struct {
	Generator    string
	Period       string
	BuiltMW      float64
	CumulativeMW float64
}

// RetrofitRecord reports whether a unit's retrofit is in place in a period.
type RetrofitRecord struct {
	Generator string
	Period    string
	Selected  bool
}

// ShadowPrice is a dual value keyed by the constraint it relaxes.
type ShadowPrice struct {
	Constraint string
	Value      float64
}

// Projection is the decoded solution for one scenario run.
type Projection struct {
	RunID     uuid.UUID
	Scenario  string
	SolvedAt  time.Time
	Status    solver.Status
	Objective float64

	Dispatch        []DispatchRecord
	Builds          []BuildRecord
	Storage         []StorageRecord
	Flows           []FlowRecord
	Shifts          []ShiftRecord
	Hydrogen        []HydrogenRecord
	Steam           []SteamRecord
	CogenBuilds     []CogenBuildRecord
	Retrofits       []RetrofitRecord
	ShadowPrices    []ShadowPrice
	TotalEmissionsT float64
}

// Project decodes a solver result. Only StatusOptimal results carry
// variable values; for every other status the projection holds just the
// status and message so the caller can still report the outcome.
func Project(scenario string, cat *catalog.Catalog, m *model.Model, res solver.Result) (*Projection, error) {
	p := &Projection{
		RunID:     uuid.New(),
		Scenario:  scenario,
		SolvedAt:  time.Now().UTC(),
		Status:    res.Status,
		Objective: res.Objective,
	}
	if res.Status != solver.StatusOptimal {
		return p, nil
	}
	if len(res.Values) != m.Registry.Len() {
		return nil, fmt.Errorf("solver returned %d values for %d variables", len(res.Values), m.Registry.Len())
	}

	value := func(entity, index string, kind model.VarKind) (float64, bool) {
		id, ok := m.Registry.Lookup(entity, index, kind)
		if !ok {
			return 0, false
		}
		return res.Values[id], true
	}

	for _, g := range cat.Generators() {
		cumulative := g.ExistingCapacity
		for _, per := range cat.Periods() {
			if built, ok := value(g.ID, per.ID, model.KindBuild); ok {
				cumulative += built
				p.Builds = append(p.Builds, BuildRecord{
					Generator:    g.ID,
					Period:       per.ID,
					BuiltMW:      built,
					CumulativeMW: cumulative,
				})
			}

			selected := false
			if sel, ok := value(g.ID, per.ID, model.KindRetrofitSelect); ok {
				selected = sel > 0.5
				p.Retrofits = append(p.Retrofits, RetrofitRecord{
					Generator: g.ID,
					Period:    per.ID,
					Selected:  selected,
				})
			}

			// a selected retrofit changes the unit's physical rate from the
			// selection period on, whether or not a cap binds in the period
			rate := g.EmissionsRate
			if selected {
				rate = g.RetrofitEmissionsRate
			}

			for _, ts := range per.Timesteps {
				if d, ok := value(g.ID, ts.ID, model.KindDispatch); ok {
					emis := d * rate * ts.Weight
					p.Dispatch = append(p.Dispatch, DispatchRecord{
						Generator:  g.ID,
						Zone:       g.Zone,
						Period:     per.ID,
						Timestep:   ts.ID,
						PowerMW:    d,
						EnergyMWh:  d * ts.Weight,
						EmissionsT: emis,
					})
					p.TotalEmissionsT += emis
				}
				if soc, ok := value(g.ID, ts.ID, model.KindStateOfCharge); ok {
					ch, _ := value(g.ID, ts.ID, model.KindCharge)
					dis, _ := value(g.ID, ts.ID, model.KindDischarge)
					p.Storage = append(p.Storage, StorageRecord{
						Generator:   g.ID,
						Timestep:    ts.ID,
						ChargeMW:    ch,
						DischargeMW: dis,
						SocMWh:      soc,
					})
				}
			}
		}
	}

	for _, g := range cat.Generators() {
		cumulative := 0.0
		for _, per := range cat.Periods() {
			built, ok := value(g.ID, per.ID, model.KindCogenBuild)
			if !ok {
				continue
			}
			cumulative += built
			p.CogenBuilds = append(p.CogenBuilds, CogenBuildRecord{
				Generator:    g.ID,
				Period:       per.ID,
				BuiltMW:      built,
				CumulativeMW: cumulative,
			})
		}
	}

	for _, z := range cat.Zones() {
		for _, per := range cat.Periods() {
			for _, ts := range per.Timesteps {
				direct, ok := value(z.ID, ts.ID, model.KindDirectSteam)
				if !ok {
					continue
				}
				cogen := 0.0
				for _, g := range cat.GeneratorsInZone(z.ID) {
					if c, ok := value(g.ID, ts.ID, model.KindCogenDispatch); ok {
						cogen += c
					}
				}
				p.Steam = append(p.Steam, SteamRecord{
					Zone:     z.ID,
					Timestep: ts.ID,
					CogenMW:  cogen,
					DirectMW: direct,
				})
			}
		}
	}

	for _, l := range cat.Lines() {
		for _, per := range cat.Periods() {
			for _, ts := range per.Timesteps {
				fwd, okF := value(l.ID, ts.ID, model.KindFlowForward)
				rev, _ := value(l.ID, ts.ID, model.KindFlowReverse)
				if okF {
					p.Flows = append(p.Flows, FlowRecord{
						Line:     l.ID,
						Timestep: ts.ID,
						NetMW:    fwd - rev,
					})
				}
			}
		}
	}

	for _, prog := range cat.DemandResponsePrograms() {
		for _, per := range cat.Periods() {
			for _, ts := range per.Timesteps {
				up, okU := value(prog.ID, ts.ID, model.KindShiftUp)
				down, _ := value(prog.ID, ts.ID, model.KindShiftDown)
				if okU {
					p.Shifts = append(p.Shifts, ShiftRecord{
						Program:  prog.ID,
						Zone:     prog.Zone,
						Timestep: ts.ID,
						NetMW:    up - down,
					})
				}
			}
		}
	}

	for _, z := range cat.Zones() {
		for _, per := range cat.Periods() {
			produced := 0.0
			found := false
			for _, g := range cat.GeneratorsInZone(z.ID) {
				if g.Tech != catalog.TechElectrolyzer {
					continue
				}
				for _, ts := range per.Timesteps {
					if draw, ok := value(g.ID, ts.ID, model.KindDispatch); ok {
						produced += draw * ts.Weight * g.ConversionKgPerMWh
						found = true
					}
				}
			}
			level, hasLevel := value(z.ID, per.ID, model.KindHydrogenLevel)
			if found || hasLevel {
				p.Hydrogen = append(p.Hydrogen, HydrogenRecord{
					Zone:         z.ID,
					Period:       per.ID,
					ProducedKg:   produced,
					StoreLevelKg: level,
				})
			}
		}
	}

	for name, v := range res.Duals {
		if math.IsNaN(v) {
			continue
		}
		p.ShadowPrices = append(p.ShadowPrices, ShadowPrice{Constraint: name, Value: v})
	}
	sortShadowPrices(p.ShadowPrices)

	return p, nil
}
