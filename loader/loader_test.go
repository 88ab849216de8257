package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridwise/capex/catalog"
)

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func coreFiles() map[string]string {
	return map[string]string{
		"periods.csv": "period,hours\np1,2\n",
		"timesteps.csv": "timestep,period,weight\n" +
			"t1,p1,1\n" +
			"t2,p1,1\n",
		"zones.csv": "zone\nnorth\nsouth\n",
		"loads.csv": "zone,timestep,load_mw\n" +
			"north,t1,50\nnorth,t2,70\n" +
			"south,t1,20\nsouth,t2,30\n",
		"generators.csv": "generator,zone,tech,existing_mw,variable_cost,fixed_cost,capital_cost,emissions_rate,rt_efficiency,energy_hours,conversion_kg_per_mwh\n" +
			"coal1,north,thermal,100,12,0,0,0.9,,,\n" +
			"wind1,south,wind,30,0,0,85,0,,,\n" +
			"bess1,north,storage,20,0,0,0,0,0.88,4,\n",
	}
}

func TestLoadCoreTables(t *testing.T) {
	dir := writeFiles(t, coreFiles())

	in, err := Load(dir)
	require.NoError(t, err)

	// the loaded input must survive catalog validation as-is
	cat, err := catalog.New(in)
	require.NoError(t, err)

	require.Len(t, in.Periods, 1)
	assert.Equal(t, 2.0, in.Periods[0].Hours)
	assert.Len(t, in.Periods[0].Timesteps, 2)
	assert.Len(t, in.Zones, 2)
	require.Len(t, in.Generators, 3)

	g := cat.GeneratorByID("bess1")
	require.NotNil(t, g)
	assert.Equal(t, catalog.TechStorage, g.Tech)
	assert.Equal(t, 0.88, g.RoundTripEfficiency)
	assert.Equal(t, 4.0, g.EnergyCapacityHours)

	z := cat.ZoneByID("north")
	require.NotNil(t, z)
	assert.Equal(t, 70.0, z.Load["t2"])
}

func TestMissingPolicyFilesLeavePoliciesDisabled(t *testing.T) {
	dir := writeFiles(t, coreFiles())

	in, err := Load(dir)
	require.NoError(t, err)

	assert.Nil(t, in.Carbon)
	assert.Empty(t, in.DemandResponse)
	assert.Empty(t, in.HydrogenStorage)
	for _, g := range in.Generators {
		assert.False(t, g.RetrofitEligible)
		assert.Empty(t, g.BuildLimit)
	}
}

func TestLoadPolicyTables(t *testing.T) {
	files := coreFiles()
	files["build_limits.csv"] = "generator,period,limit_mw\nwind1,p1,60\n"
	files["carbon_caps.csv"] = "period,cap_t\np1,120\n"
	files["retrofits.csv"] = "generator,post_emissions_rate,cost\ncoal1,0.2,400\n"
	files["dr_programs.csv"] = "program,zone,timestep,shift_up_mw,shift_down_mw\n" +
		"smelter,north,t1,10,5\n" +
		"smelter,north,t2,10,5\n"
	files["hydrogen_demand.csv"] = "zone,period,demand_kg\nsouth,p1,250\n"
	files["hydrogen_storage.csv"] = "zone,capacity_kg\nsouth,1000\n"
	files["lines.csv"] = "line,from,to,capacity_mw,loss,bidirectional\ntie1,north,south,40,0.02,true\n"
	dir := writeFiles(t, files)

	in, err := Load(dir)
	require.NoError(t, err)
	_, err = catalog.New(in)
	require.NoError(t, err)

	require.NotNil(t, in.Carbon)
	assert.Equal(t, 120.0, in.Carbon.CapsT["p1"])

	require.Len(t, in.DemandResponse, 1)
	prog := in.DemandResponse[0]
	assert.Equal(t, "north", prog.Zone)
	assert.Equal(t, 10.0, prog.ShiftUpLimit["t2"])
	assert.Equal(t, 5.0, prog.ShiftDownLimit["t1"])

	require.Len(t, in.Lines, 1)
	assert.True(t, in.Lines[0].Bidirectional)
	assert.Equal(t, 0.02, in.Lines[0].Loss)

	var coal *catalog.Generator
	for i := range in.Generators {
		if in.Generators[i].ID == "coal1" {
			coal = &in.Generators[i]
		}
	}
	require.NotNil(t, coal)
	assert.True(t, coal.RetrofitEligible)
	assert.Equal(t, 0.2, coal.RetrofitEmissionsRate)
	assert.Equal(t, 400.0, coal.RetrofitCost)

	var south *catalog.Zone
	for i := range in.Zones {
		if in.Zones[i].ID == "south" {
			south = &in.Zones[i]
		}
	}
	require.NotNil(t, south)
	assert.Equal(t, 250.0, south.HydrogenDemandKg["p1"])

	require.Len(t, in.HydrogenStorage, 1)
	assert.Equal(t, 1000.0, in.HydrogenStorage[0].CapacityKg)
}

func TestLoadSteamTables(t *testing.T) {
	files := coreFiles()
	files["steam.csv"] = "heat_ratio,cogen_fixed_cost,direct_cost\n0.5,2,30\n"
	files["steam_demand.csv"] = "zone,timestep,demand_mw\nnorth,t1,20\nnorth,t2,15\n"
	dir := writeFiles(t, files)

	in, err := Load(dir)
	require.NoError(t, err)
	_, err = catalog.New(in)
	require.NoError(t, err)

	require.NotNil(t, in.Steam)
	assert.Equal(t, 0.5, in.Steam.CogenHeatRatio)
	assert.Equal(t, 2.0, in.Steam.CogenFixedCost)
	assert.Equal(t, 30.0, in.Steam.DirectCost)

	var north *catalog.Zone
	for i := range in.Zones {
		if in.Zones[i].ID == "north" {
			north = &in.Zones[i]
		}
	}
	require.NotNil(t, north)
	assert.Equal(t, 20.0, north.SteamDemandMW["t1"])
	assert.Equal(t, 15.0, north.SteamDemandMW["t2"])
}

func TestLoadRejectsSteamDemandForUndefinedZone(t *testing.T) {
	files := coreFiles()
	files["steam.csv"] = "heat_ratio,cogen_fixed_cost,direct_cost\n0.5,2,30\n"
	files["steam_demand.csv"] = "zone,timestep,demand_mw\natlantis,t1,20\n"
	dir := writeFiles(t, files)

	_, err := Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "atlantis")
}

func TestLoadRejectsDuplicateZones(t *testing.T) {
	files := coreFiles()
	files["zones.csv"] = "zone\nnorth\nsouth\nnorth\n"
	dir := writeFiles(t, files)

	_, err := Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate zone")
}

func TestLoadRejectsUndefinedReferences(t *testing.T) {
	files := coreFiles()
	files["build_limits.csv"] = "generator,period,limit_mw\nnuke9,p1,60\n"
	dir := writeFiles(t, files)

	_, err := Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nuke9")
}

func TestLoadRejectsMalformedNumbers(t *testing.T) {
	files := coreFiles()
	files["loads.csv"] = "zone,timestep,load_mw\nnorth,t1,heavy\n"
	dir := writeFiles(t, files)

	_, err := Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load_mw")
}

func TestLoadRequiresCoreFiles(t *testing.T) {
	files := coreFiles()
	delete(files, "generators.csv")
	dir := writeFiles(t, files)

	_, err := Load(dir)
	require.Error(t, err)
}
