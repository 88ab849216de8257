// Package catalog holds the typed, validated in-memory representation of one
// scenario's entities: investment periods and their representative
// timesteps, load zones, generation/storage/electrolyzer units, transmission
// links and policy parameter tables.
//
// The catalog exclusively owns its records for the scenario's lifetime.
// Iteration order over every entity slice is fixed at construction (sorted
// by ID) so that downstream model construction is independent of the order
// the data loader happened to produce records in.
package catalog

import (
	"fmt"
	"math"
	"sort"
)

// weightTolerance is the relative slack allowed when checking that timestep
// weights sum to the period duration.
const weightTolerance = 1e-6

// Input bundles the raw records handed over by the data loader. Policy
// tables are pointers/nil-able: a missing table means the corresponding
// policy module is disabled for the scenario, not that it has zero-valued
// parameters.
type Input struct {
	Periods    []Period
	Zones      []Zone
	Generators []Generator
	Lines      []Line

	Carbon          *CarbonPolicy
	Steam           *SteamPolicy
	DemandResponse  []DemandResponseProgram
	HydrogenStorage []HydrogenStorage
}

// Catalog is the validated, immutable entity set for one scenario.
type Catalog struct {
	periods    []Period
	zones      []Zone
	generators []Generator
	lines      []Line

	carbon          *CarbonPolicy
	steam           *SteamPolicy
	demandResponse  []DemandResponseProgram
	hydrogenStorage map[string]HydrogenStorage // by zone ID

	zoneByID map[string]int
	genByID  map[string]int
	lineByID map[string]int
	progByID map[string]int
	periodOf map[string]string // timestep ID -> period ID
}

// New validates the loader's records and builds the catalog. The first
// problem found is returned as a *DataError naming the offending record.
func New(in Input) (*Catalog, error) {
	c := &Catalog{
		carbon:          in.Carbon,
		steam:           in.Steam,
		hydrogenStorage: make(map[string]HydrogenStorage),
		zoneByID:        make(map[string]int),
		genByID:         make(map[string]int),
		lineByID:        make(map[string]int),
		progByID:        make(map[string]int),
		periodOf:        make(map[string]string),
	}

	c.periods = append(c.periods, in.Periods...)
	sort.Slice(c.periods, func(i, j int) bool { return c.periods[i].ID < c.periods[j].ID })
	if len(c.periods) == 0 {
		return nil, &DataError{Table: "periods", ID: "", Reason: "no periods defined"}
	}
	for pi := range c.periods {
		p := &c.periods[pi]
		if len(p.Timesteps) == 0 {
			return nil, &DataError{Table: "periods", ID: p.ID, Reason: "period has no timesteps"}
		}
		sum := 0.0
		for _, ts := range p.Timesteps {
			if ts.Weight <= 0 {
				return nil, &DataError{Table: "timesteps", ID: ts.ID, Reason: "non-positive weight"}
			}
			if _, dup := c.periodOf[ts.ID]; dup {
				return nil, &DataError{Table: "timesteps", ID: ts.ID, Reason: "duplicate timestep"}
			}
			c.periodOf[ts.ID] = p.ID
			sum += ts.Weight
		}
		if math.Abs(sum-p.Hours) > weightTolerance*math.Max(1, p.Hours) {
			return nil, &DataError{
				Table:  "periods",
				ID:     p.ID,
				Reason: fmt.Sprintf("timestep weights sum to %g, period duration is %g", sum, p.Hours),
			}
		}
	}

	c.zones = append(c.zones, in.Zones...)
	sort.Slice(c.zones, func(i, j int) bool { return c.zones[i].ID < c.zones[j].ID })
	for zi, z := range c.zones {
		if _, dup := c.zoneByID[z.ID]; dup {
			return nil, &DataError{Table: "zones", ID: z.ID, Reason: "duplicate zone"}
		}
		c.zoneByID[z.ID] = zi
		for _, p := range c.periods {
			for _, ts := range p.Timesteps {
				load, ok := z.Load[ts.ID]
				if !ok {
					return nil, &DataError{Table: "loads", ID: z.ID, Reason: fmt.Sprintf("no load for timestep %q", ts.ID)}
				}
				if load < 0 {
					return nil, &DataError{Table: "loads", ID: z.ID, Reason: fmt.Sprintf("negative load at timestep %q", ts.ID)}
				}
			}
		}
	}

	c.generators = append(c.generators, in.Generators...)
	sort.Slice(c.generators, func(i, j int) bool { return c.generators[i].ID < c.generators[j].ID })
	for gi, g := range c.generators {
		if _, dup := c.genByID[g.ID]; dup {
			return nil, &DataError{Table: "generators", ID: g.ID, Reason: "duplicate generator"}
		}
		if _, ok := c.zoneByID[g.Zone]; !ok {
			return nil, &DataError{Table: "generators", ID: g.ID, Reason: fmt.Sprintf("references undefined zone %q", g.Zone)}
		}
		if g.ExistingCapacity < 0 {
			return nil, &DataError{Table: "generators", ID: g.ID, Reason: "negative existing capacity"}
		}
		if g.EmissionsRate < 0 {
			return nil, &DataError{Table: "generators", ID: g.ID, Reason: "negative emissions rate"}
		}
		if g.Tech == TechStorage && (g.RoundTripEfficiency <= 0 || g.RoundTripEfficiency > 1) {
			return nil, &DataError{Table: "generators", ID: g.ID, Reason: "storage round-trip efficiency must be in (0, 1]"}
		}
		if g.Tech == TechElectrolyzer && g.ConversionKgPerMWh <= 0 {
			return nil, &DataError{Table: "generators", ID: g.ID, Reason: "electrolyzer conversion must be positive"}
		}
		if g.RetrofitEligible {
			if g.Tech != TechThermal {
				return nil, &DataError{Table: "retrofits", ID: g.ID, Reason: "only thermal units are retrofit-eligible"}
			}
			if g.RetrofitEmissionsRate < 0 || g.RetrofitEmissionsRate > g.EmissionsRate {
				return nil, &DataError{Table: "retrofits", ID: g.ID, Reason: "post-retrofit rate must be in [0, pre-retrofit rate]"}
			}
		}
		c.genByID[g.ID] = gi
	}

	c.lines = append(c.lines, in.Lines...)
	sort.Slice(c.lines, func(i, j int) bool { return c.lines[i].ID < c.lines[j].ID })
	for li, l := range c.lines {
		if _, dup := c.lineByID[l.ID]; dup {
			return nil, &DataError{Table: "lines", ID: l.ID, Reason: "duplicate line"}
		}
		if _, ok := c.zoneByID[l.From]; !ok {
			return nil, &DataError{Table: "lines", ID: l.ID, Reason: fmt.Sprintf("references undefined zone %q", l.From)}
		}
		if _, ok := c.zoneByID[l.To]; !ok {
			return nil, &DataError{Table: "lines", ID: l.ID, Reason: fmt.Sprintf("references undefined zone %q", l.To)}
		}
		if l.Capacity < 0 || l.Loss < 0 || l.Loss >= 1 {
			return nil, &DataError{Table: "lines", ID: l.ID, Reason: "capacity must be >= 0 and loss in [0, 1)"}
		}
		c.lineByID[l.ID] = li
	}

	c.demandResponse = append(c.demandResponse, in.DemandResponse...)
	sort.Slice(c.demandResponse, func(i, j int) bool { return c.demandResponse[i].ID < c.demandResponse[j].ID })
	for di, dr := range c.demandResponse {
		if _, dup := c.progByID[dr.ID]; dup {
			return nil, &DataError{Table: "demand_response", ID: dr.ID, Reason: "duplicate program"}
		}
		zi, ok := c.zoneByID[dr.Zone]
		if !ok {
			return nil, &DataError{Table: "demand_response", ID: dr.ID, Reason: fmt.Sprintf("references undefined zone %q", dr.Zone)}
		}
		for ts, lim := range dr.ShiftDownLimit {
			if lim < 0 {
				return nil, &DataError{Table: "demand_response", ID: dr.ID, Reason: "negative shift-down limit"}
			}
			// load can never be shifted below zero
			if load, ok := c.zones[zi].Load[ts]; ok && lim > load {
				return nil, &DataError{Table: "demand_response", ID: dr.ID, Reason: fmt.Sprintf("shift-down limit exceeds zone load at timestep %q", ts)}
			}
		}
		for _, lim := range dr.ShiftUpLimit {
			if lim < 0 {
				return nil, &DataError{Table: "demand_response", ID: dr.ID, Reason: "negative shift-up limit"}
			}
		}
		c.progByID[dr.ID] = di
	}

	for _, hs := range in.HydrogenStorage {
		if _, ok := c.zoneByID[hs.Zone]; !ok {
			return nil, &DataError{Table: "hydrogen_storage", ID: hs.Zone, Reason: "references undefined zone"}
		}
		if hs.CapacityKg < 0 {
			return nil, &DataError{Table: "hydrogen_storage", ID: hs.Zone, Reason: "negative storage capacity"}
		}
		c.hydrogenStorage[hs.Zone] = hs
	}

	if c.carbon != nil {
		for pid, cap := range c.carbon.CapsT {
			if c.PeriodByID(pid) == nil {
				return nil, &DataError{Table: "carbon_caps", ID: pid, Reason: "references undefined period"}
			}
			if cap < 0 {
				return nil, &DataError{Table: "carbon_caps", ID: pid, Reason: "negative cap"}
			}
		}
	}

	if c.steam != nil {
		if c.steam.CogenHeatRatio <= 0 {
			return nil, &DataError{Table: "steam", ID: "", Reason: "cogen heat ratio must be positive"}
		}
		if c.steam.CogenFixedCost < 0 || c.steam.DirectCost < 0 {
			return nil, &DataError{Table: "steam", ID: "", Reason: "negative cost"}
		}
	}
	for _, z := range c.zones {
		for ts, d := range z.SteamDemandMW {
			if c.steam == nil {
				return nil, &DataError{Table: "steam_demand", ID: z.ID, Reason: "steam demand given without a steam policy"}
			}
			if _, ok := c.periodOf[ts]; !ok {
				return nil, &DataError{Table: "steam_demand", ID: z.ID, Reason: fmt.Sprintf("references undefined timestep %q", ts)}
			}
			if d < 0 {
				return nil, &DataError{Table: "steam_demand", ID: z.ID, Reason: fmt.Sprintf("negative steam demand at timestep %q", ts)}
			}
		}
	}

	return c, nil
}

// Periods returns the investment periods in chronological (ID-sorted) order.
func (c *Catalog) Periods() []Period { return c.periods }

// Zones returns all load zones, sorted by ID.
func (c *Catalog) Zones() []Zone { return c.zones }

// Generators returns all units, sorted by ID.
func (c *Catalog) Generators() []Generator { return c.generators }

// Lines returns all transmission links, sorted by ID.
func (c *Catalog) Lines() []Line { return c.lines }

// DemandResponsePrograms returns all programs, sorted by ID.
func (c *Catalog) DemandResponsePrograms() []DemandResponseProgram { return c.demandResponse }

// Carbon returns the carbon policy, or nil when the scenario has none.
func (c *Catalog) Carbon() *CarbonPolicy { return c.carbon }

// Steam returns the steam policy, or nil when the scenario has none.
func (c *Catalog) Steam() *SteamPolicy { return c.steam }

// HydrogenStorageFor returns the hydrogen store attached to the zone, if any.
func (c *Catalog) HydrogenStorageFor(zoneID string) (HydrogenStorage, bool) {
	hs, ok := c.hydrogenStorage[zoneID]
	return hs, ok
}

func (c *Catalog) ZoneByID(id string) *Zone {
	if i, ok := c.zoneByID[id]; ok {
		return &c.zones[i]
	}
	return nil
}

func (c *Catalog) GeneratorByID(id string) *Generator {
	if i, ok := c.genByID[id]; ok {
		return &c.generators[i]
	}
	return nil
}

func (c *Catalog) PeriodByID(id string) *Period {
	for i := range c.periods {
		if c.periods[i].ID == id {
			return &c.periods[i]
		}
	}
	return nil
}

// PeriodOfTimestep maps a timestep ID to its owning period ID.
func (c *Catalog) PeriodOfTimestep(tsID string) (string, bool) {
	p, ok := c.periodOf[tsID]
	return p, ok
}

// HasEntity reports whether the ID names any zone, generator, line or
// demand-response program in the catalog. The variable registry uses it to
// reject allocations for entities that were never loaded.
func (c *Catalog) HasEntity(id string) bool {
	if _, ok := c.zoneByID[id]; ok {
		return true
	}
	if _, ok := c.genByID[id]; ok {
		return true
	}
	if _, ok := c.lineByID[id]; ok {
		return true
	}
	if _, ok := c.progByID[id]; ok {
		return true
	}
	return false
}

// GeneratorsInZone returns the zone's units in catalog order.
func (c *Catalog) GeneratorsInZone(zoneID string) []Generator {
	var out []Generator
	for _, g := range c.generators {
		if g.Zone == zoneID {
			out = append(out, g)
		}
	}
	return out
}
