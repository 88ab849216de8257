package runner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridwise/capex/catalog"
	"github.com/gridwise/capex/planner"
	"github.com/gridwise/capex/results"
	"github.com/gridwise/capex/solver"
)

func mustCatalog(t *testing.T, in catalog.Input) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New(in)
	require.NoError(t, err)
	return cat
}

func onePeriod(loads map[string]float64) ([]catalog.Period, []catalog.Zone) {
	steps := make([]catalog.Timestep, 0, len(loads))
	hours := 0.0
	for id := range loads {
		steps = append(steps, catalog.Timestep{ID: id, Weight: 1})
		hours++
	}
	// deterministic order for readability; the catalog re-sorts anyway
	for i := 0; i < len(steps); i++ {
		for j := i + 1; j < len(steps); j++ {
			if steps[j].ID < steps[i].ID {
				steps[i], steps[j] = steps[j], steps[i]
			}
		}
	}
	periods := []catalog.Period{{ID: "p1", Hours: hours, Timesteps: steps}}
	zones := []catalog.Zone{{ID: "z1", Load: loads}}
	return periods, zones
}

func dispatchOf(p *results.Projection, gen, ts string) (results.DispatchRecord, bool) {
	for _, d := range p.Dispatch {
		if d.Generator == gen && d.Timestep == ts {
			return d, true
		}
	}
	return results.DispatchRecord{}, false
}

func shadowOf(p *results.Projection, name string) (float64, bool) {
	for _, sp := range p.ShadowPrices {
		if sp.Constraint == name {
			return sp.Value, true
		}
	}
	return 0, false
}

// meritOrderInput is the canonical single-zone system: a free 20 MW wind
// unit and a 100 MW thermal unit at 10/MWh serving an 80 MW load.
func meritOrderInput() catalog.Input {
	periods, zones := onePeriod(map[string]float64{"t1": 80})
	return catalog.Input{
		Periods: periods,
		Zones:   zones,
		Generators: []catalog.Generator{
			{ID: "gas1", Zone: "z1", Tech: catalog.TechThermal, ExistingCapacity: 100, VariableCost: 10, EmissionsRate: 1},
			{ID: "wind1", Zone: "z1", Tech: catalog.TechWind, ExistingCapacity: 20},
		},
	}
}

func TestMeritOrderDispatch(t *testing.T) {
	cat := mustCatalog(t, meritOrderInput())

	p, err := BuildAndSolve(context.Background(), "baseline", cat, nil,
		planner.Options{}, solver.Options{WantDuals: true})
	require.NoError(t, err)
	require.Equal(t, solver.StatusOptimal, p.Status)

	assert.InDelta(t, 600.0, p.Objective, 1e-6)
	assert.InDelta(t, 60.0, p.TotalEmissionsT, 1e-6)

	wind, ok := dispatchOf(p, "wind1", "t1")
	require.True(t, ok)
	assert.InDelta(t, 20.0, wind.PowerMW, 1e-6, "free energy dispatches first")
	gas, ok := dispatchOf(p, "gas1", "t1")
	require.True(t, ok)
	assert.InDelta(t, 60.0, gas.PowerMW, 1e-6)

	// the marginal unit sets the zonal price
	price, ok := shadowOf(p, "balance[z1,t1]")
	require.True(t, ok, "expected a shadow price on the energy balance")
	assert.InDelta(t, 10.0, price, 1e-6)
}

func TestCarbonCapBelowCleanSupplyIsInfeasible(t *testing.T) {
	in := meritOrderInput()
	in.Carbon = &catalog.CarbonPolicy{CapsT: map[string]float64{"p1": 50}}
	cat := mustCatalog(t, in)

	p, err := BuildAndSolve(context.Background(), "tight_cap", cat,
		[]string{planner.ModuleCarbon}, planner.Options{}, solver.Options{})
	require.NoError(t, err, "an infeasible model is a result, not an error")
	assert.Equal(t, solver.StatusInfeasible, p.Status)
	assert.Empty(t, p.Dispatch)
}

func TestCarbonCapDrivesCleanBuildout(t *testing.T) {
	// with candidate wind available the same 50 t cap becomes feasible:
	// thermal backs down to 50 MW and 10 MW of wind is built
	in := meritOrderInput()
	in.Carbon = &catalog.CarbonPolicy{CapsT: map[string]float64{"p1": 50}}
	in.Generators[1].BuildLimit = map[string]float64{"p1": 60}
	in.Generators[1].CapitalCost = 50
	cat := mustCatalog(t, in)

	p, err := BuildAndSolve(context.Background(), "cap_expansion", cat,
		[]string{planner.ModuleCarbon}, planner.Options{}, solver.Options{})
	require.NoError(t, err)
	require.Equal(t, solver.StatusOptimal, p.Status)

	// 10 MW of wind at 50/MW capital plus 50 MWh of thermal at 10/MWh
	assert.InDelta(t, 1000.0, p.Objective, 1e-6)
	assert.LessOrEqual(t, p.TotalEmissionsT, 50.0+1e-6)

	require.Len(t, p.Builds, 1)
	assert.Equal(t, "wind1", p.Builds[0].Generator)
	assert.InDelta(t, 10.0, p.Builds[0].BuiltMW, 1e-6)
	assert.InDelta(t, 30.0, p.Builds[0].CumulativeMW, 1e-6)
}

func TestRetrofitUnlocksTightCarbonCap(t *testing.T) {
	// two periods, 40 t cap each: an unretrofitted 1 t/MWh unit serving
	// 80 MW emits 80 t, so the retrofit must be selected from period one
	periods := []catalog.Period{
		{ID: "p1", Hours: 1, Timesteps: []catalog.Timestep{{ID: "p1t1", Weight: 1}}},
		{ID: "p2", Hours: 1, Timesteps: []catalog.Timestep{{ID: "p2t1", Weight: 1}}},
	}
	in := catalog.Input{
		Periods: periods,
		Zones:   []catalog.Zone{{ID: "z1", Load: map[string]float64{"p1t1": 80, "p2t1": 80}}},
		Generators: []catalog.Generator{
			{
				ID: "coal1", Zone: "z1", Tech: catalog.TechThermal,
				ExistingCapacity: 100, VariableCost: 10, EmissionsRate: 1,
				RetrofitEligible: true, RetrofitEmissionsRate: 0.2, RetrofitCost: 100,
			},
		},
		Carbon: &catalog.CarbonPolicy{CapsT: map[string]float64{"p1": 40, "p2": 40}},
	}
	cat := mustCatalog(t, in)

	p, err := BuildAndSolve(context.Background(), "retrofit", cat,
		[]string{planner.ModuleCarbon, planner.ModuleRetrofit},
		planner.Options{}, solver.Options{})
	require.NoError(t, err)
	require.Equal(t, solver.StatusOptimal, p.Status)

	// 80 MWh at 10/MWh per period plus the one-time retrofit charge
	assert.InDelta(t, 1700.0, p.Objective, 1e-6)
	// both periods run at the post-retrofit 0.2 t/MWh
	assert.InDelta(t, 32.0, p.TotalEmissionsT, 1e-6)

	require.Len(t, p.Retrofits, 2)
	selectedIn := map[string]bool{}
	for _, r := range p.Retrofits {
		selectedIn[r.Period] = r.Selected
	}
	assert.True(t, selectedIn["p1"])
	assert.True(t, selectedIn["p2"], "lock-in keeps the retrofit in place")
}

func TestRetrofitEmissionsReportedAtPostRateInUncappedPeriods(t *testing.T) {
	// the cap binds only in period one, which forces the retrofit; the
	// locked-in unit must be reported at 0.2 t/MWh in period two as
	// well, even though no cap constrains it there
	periods := []catalog.Period{
		{ID: "p1", Hours: 1, Timesteps: []catalog.Timestep{{ID: "p1t1", Weight: 1}}},
		{ID: "p2", Hours: 1, Timesteps: []catalog.Timestep{{ID: "p2t1", Weight: 1}}},
	}
	in := catalog.Input{
		Periods: periods,
		Zones:   []catalog.Zone{{ID: "z1", Load: map[string]float64{"p1t1": 80, "p2t1": 80}}},
		Generators: []catalog.Generator{
			{
				ID: "coal1", Zone: "z1", Tech: catalog.TechThermal,
				ExistingCapacity: 100, VariableCost: 10, EmissionsRate: 1,
				RetrofitEligible: true, RetrofitEmissionsRate: 0.2, RetrofitCost: 100,
			},
		},
		Carbon: &catalog.CarbonPolicy{CapsT: map[string]float64{"p1": 40}},
	}
	cat := mustCatalog(t, in)

	p, err := BuildAndSolve(context.Background(), "retrofit-uncapped", cat,
		[]string{planner.ModuleCarbon, planner.ModuleRetrofit},
		planner.Options{}, solver.Options{})
	require.NoError(t, err)
	require.Equal(t, solver.StatusOptimal, p.Status)

	selectedIn := map[string]bool{}
	for _, r := range p.Retrofits {
		selectedIn[r.Period] = r.Selected
	}
	require.True(t, selectedIn["p1"])
	require.True(t, selectedIn["p2"])

	d1, ok := dispatchOf(p, "coal1", "p1t1")
	require.True(t, ok)
	assert.InDelta(t, 16.0, d1.EmissionsT, 1e-6)
	d2, ok := dispatchOf(p, "coal1", "p2t1")
	require.True(t, ok)
	assert.InDelta(t, 16.0, d2.EmissionsT, 1e-6, "80 MWh at the post-retrofit rate")
	assert.InDelta(t, 32.0, p.TotalEmissionsT, 1e-6)
}

func TestDemandResponseShiftsLoadWithoutSheddingIt(t *testing.T) {
	// the 90 MW peak exceeds the 60 MW fleet; shifting 30 MW of load into
	// the valley is the only feasible schedule
	periods, zones := onePeriod(map[string]float64{"t1": 30, "t2": 90})
	in := catalog.Input{
		Periods: periods,
		Zones:   zones,
		Generators: []catalog.Generator{
			{ID: "gas1", Zone: "z1", Tech: catalog.TechThermal, ExistingCapacity: 60, VariableCost: 10},
		},
		DemandResponse: []catalog.DemandResponseProgram{
			{
				ID: "smelter", Zone: "z1",
				ShiftUpLimit:   map[string]float64{"t1": 30, "t2": 0},
				ShiftDownLimit: map[string]float64{"t1": 0, "t2": 30},
			},
		},
	}
	cat := mustCatalog(t, in)

	p, err := BuildAndSolve(context.Background(), "dr", cat,
		[]string{planner.ModuleDemandResponse}, planner.Options{}, solver.Options{})
	require.NoError(t, err)
	require.Equal(t, solver.StatusOptimal, p.Status)
	assert.InDelta(t, 1200.0, p.Objective, 1e-6)

	var netEnergy float64
	byStep := map[string]float64{}
	for _, s := range p.Shifts {
		netEnergy += s.NetMW // unit weights, MW == MWh here
		byStep[s.Timestep] = s.NetMW
	}
	assert.InDelta(t, 0.0, netEnergy, 1e-6, "shifted energy must conserve over the period")
	assert.InDelta(t, 30.0, byStep["t1"], 1e-6)
	assert.InDelta(t, -30.0, byStep["t2"], 1e-6)
}

func TestStorageMovesEnergyIntoThePeak(t *testing.T) {
	// the 50 MW peak exceeds the 40 MW unit; the battery must carry the
	// difference from the off-peak step
	periods, zones := onePeriod(map[string]float64{"t1": 10, "t2": 50})
	in := catalog.Input{
		Periods: periods,
		Zones:   zones,
		Generators: []catalog.Generator{
			{ID: "gas1", Zone: "z1", Tech: catalog.TechThermal, ExistingCapacity: 40, VariableCost: 2},
			{ID: "bess1", Zone: "z1", Tech: catalog.TechStorage, ExistingCapacity: 50, RoundTripEfficiency: 1, EnergyCapacityHours: 4},
		},
	}
	cat := mustCatalog(t, in)

	p, err := BuildAndSolve(context.Background(), "storage", cat, nil,
		planner.Options{}, solver.Options{})
	require.NoError(t, err)
	require.Equal(t, solver.StatusOptimal, p.Status)

	// lossless shifting: total thermal energy equals total load
	assert.InDelta(t, 120.0, p.Objective, 1e-6)
	var thermalMWh float64
	for _, d := range p.Dispatch {
		thermalMWh += d.EnergyMWh
	}
	assert.InDelta(t, 60.0, thermalMWh, 1e-6)

	require.Len(t, p.Storage, 2)
	for _, s := range p.Storage {
		assert.GreaterOrEqual(t, s.SocMWh, -1e-9)
	}
}

func TestHydrogenDemandMetByElectrolysis(t *testing.T) {
	periods, zones := onePeriod(map[string]float64{"t1": 0})
	zones[0].HydrogenDemandKg = map[string]float64{"p1": 100}
	in := catalog.Input{
		Periods: periods,
		Zones:   zones,
		Generators: []catalog.Generator{
			{ID: "wind1", Zone: "z1", Tech: catalog.TechWind, ExistingCapacity: 100},
			{ID: "elz1", Zone: "z1", Tech: catalog.TechElectrolyzer, ExistingCapacity: 10, ConversionKgPerMWh: 20},
		},
	}
	cat := mustCatalog(t, in)

	p, err := BuildAndSolve(context.Background(), "hydrogen", cat,
		[]string{planner.ModuleHydrogen}, planner.Options{}, solver.Options{})
	require.NoError(t, err)
	require.Equal(t, solver.StatusOptimal, p.Status)

	require.Len(t, p.Hydrogen, 1)
	assert.InDelta(t, 100.0, p.Hydrogen[0].ProducedKg, 1e-6)

	// the 5 MW electrolyzer draw is covered by wind over the same balance
	wind, ok := dispatchOf(p, "wind1", "t1")
	require.True(t, ok)
	assert.InDelta(t, 5.0, wind.PowerMW, 1e-6)
}

func TestSteamDemandMetByCogenRecovery(t *testing.T) {
	// recovering steam off the gas unit costs 1/MW of capacity against
	// 30/MWh for direct-fired steam, so cogen serves the whole demand
	periods, zones := onePeriod(map[string]float64{"t1": 80})
	zones[0].SteamDemandMW = map[string]float64{"t1": 20}
	in := catalog.Input{
		Periods: periods,
		Zones:   zones,
		Generators: []catalog.Generator{
			{ID: "gas1", Zone: "z1", Tech: catalog.TechThermal, ExistingCapacity: 100, VariableCost: 10},
		},
		Steam: &catalog.SteamPolicy{CogenHeatRatio: 0.5, CogenFixedCost: 1, DirectCost: 30},
	}
	cat := mustCatalog(t, in)

	p, err := BuildAndSolve(context.Background(), "steam", cat,
		[]string{planner.ModuleSteam}, planner.Options{}, solver.Options{})
	require.NoError(t, err)
	require.Equal(t, solver.StatusOptimal, p.Status)

	// 80 MWh of gas at 10/MWh plus 20 MW of recovery capacity at 1/MW
	assert.InDelta(t, 820.0, p.Objective, 1e-6)

	require.Len(t, p.Steam, 1)
	assert.InDelta(t, 20.0, p.Steam[0].CogenMW, 1e-6)
	assert.InDelta(t, 0.0, p.Steam[0].DirectMW, 1e-6)

	require.Len(t, p.CogenBuilds, 1)
	assert.InDelta(t, 20.0, p.CogenBuilds[0].BuiltMW, 1e-6)
	assert.InDelta(t, 20.0, p.CogenBuilds[0].CumulativeMW, 1e-6)
}

func TestUnknownBackendRejected(t *testing.T) {
	cat := mustCatalog(t, meritOrderInput())
	_, err := BuildAndSolve(context.Background(), "bad_backend", cat, nil,
		planner.Options{}, solver.Options{Backend: "cplex"})
	require.Error(t, err)
}
