// Package loader reads a scenario's tabular input directory into a catalog
// Input. Presence of a policy table activates the matching module's data;
// an absent table leaves the policy disabled rather than zero-valued.
//
// Expected files (those marked optional may be missing):
//
//	periods.csv          period,hours
//	timesteps.csv        timestep,period,weight
//	zones.csv            zone
//	loads.csv            zone,timestep,load_mw
//	generators.csv       generator,zone,tech,existing_mw,variable_cost,
//	                     fixed_cost,capital_cost,emissions_rate,
//	                     rt_efficiency,energy_hours,conversion_kg_per_mwh
//	build_limits.csv     generator,period,limit_mw          (optional)
//	lines.csv            line,from,to,capacity_mw,loss,bidirectional (optional)
//	carbon_caps.csv      period,cap_t                       (optional)
//	dr_programs.csv      program,zone,timestep,shift_up_mw,shift_down_mw (optional)
//	retrofits.csv        generator,post_emissions_rate,cost (optional)
//	hydrogen_demand.csv  zone,period,demand_kg              (optional)
//	hydrogen_storage.csv zone,capacity_kg                   (optional)
//	steam.csv            heat_ratio,cogen_fixed_cost,direct_cost (optional)
//	steam_demand.csv     zone,timestep,demand_mw            (optional)
package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gridwise/capex/catalog"
)

// Load reads the directory and assembles the loader's half of the contract:
// raw records for catalog.New to validate.
func Load(dir string) (catalog.Input, error) {
	var in catalog.Input

	periods := make(map[string]*catalog.Period)
	var periodOrder []string
	err := eachRow(filepath.Join(dir, "periods.csv"), false, func(row rowReader) error {
		id := row.str("period")
		hours, err := row.num("hours")
		if err != nil {
			return err
		}
		periods[id] = &catalog.Period{ID: id, Hours: hours}
		periodOrder = append(periodOrder, id)
		return nil
	})
	if err != nil {
		return in, err
	}

	err = eachRow(filepath.Join(dir, "timesteps.csv"), false, func(row rowReader) error {
		pid := row.str("period")
		p, ok := periods[pid]
		if !ok {
			return fmt.Errorf("timestep %q references undefined period %q", row.str("timestep"), pid)
		}
		w, err := row.num("weight")
		if err != nil {
			return err
		}
		p.Timesteps = append(p.Timesteps, catalog.Timestep{ID: row.str("timestep"), Weight: w})
		return nil
	})
	if err != nil {
		return in, err
	}
	for _, pid := range periodOrder {
		in.Periods = append(in.Periods, *periods[pid])
	}

	zones := make(map[string]*catalog.Zone)
	err = eachRow(filepath.Join(dir, "zones.csv"), false, func(row rowReader) error {
		id := row.str("zone")
		if _, dup := zones[id]; dup {
			return fmt.Errorf("zones.csv: duplicate zone %q", id)
		}
		zones[id] = &catalog.Zone{ID: id, Load: make(map[string]float64)}
		return nil
	})
	if err != nil {
		return in, err
	}

	err = eachRow(filepath.Join(dir, "loads.csv"), false, func(row rowReader) error {
		z, ok := zones[row.str("zone")]
		if !ok {
			return fmt.Errorf("load row references undefined zone %q", row.str("zone"))
		}
		mw, err := row.num("load_mw")
		if err != nil {
			return err
		}
		z.Load[row.str("timestep")] = mw
		return nil
	})
	if err != nil {
		return in, err
	}

	gens := make(map[string]*catalog.Generator)
	var genOrder []string
	err = eachRow(filepath.Join(dir, "generators.csv"), false, func(row rowReader) error {
		g := &catalog.Generator{
			ID:         row.str("generator"),
			Zone:       row.str("zone"),
			Tech:       catalog.Technology(row.str("tech")),
			BuildLimit: make(map[string]float64),
		}
		var err error
		if g.ExistingCapacity, err = row.num("existing_mw"); err != nil {
			return err
		}
		if g.VariableCost, err = row.num("variable_cost"); err != nil {
			return err
		}
		if g.FixedCost, err = row.num("fixed_cost"); err != nil {
			return err
		}
		if g.CapitalCost, err = row.num("capital_cost"); err != nil {
			return err
		}
		if g.EmissionsRate, err = row.num("emissions_rate"); err != nil {
			return err
		}
		if g.RoundTripEfficiency, err = row.optNum("rt_efficiency"); err != nil {
			return err
		}
		if g.EnergyCapacityHours, err = row.optNum("energy_hours"); err != nil {
			return err
		}
		if g.ConversionKgPerMWh, err = row.optNum("conversion_kg_per_mwh"); err != nil {
			return err
		}
		gens[g.ID] = g
		genOrder = append(genOrder, g.ID)
		return nil
	})
	if err != nil {
		return in, err
	}

	err = eachRow(filepath.Join(dir, "build_limits.csv"), true, func(row rowReader) error {
		g, ok := gens[row.str("generator")]
		if !ok {
			return fmt.Errorf("build limit references undefined generator %q", row.str("generator"))
		}
		lim, err := row.num("limit_mw")
		if err != nil {
			return err
		}
		g.BuildLimit[row.str("period")] = lim
		return nil
	})
	if err != nil {
		return in, err
	}

	err = eachRow(filepath.Join(dir, "retrofits.csv"), true, func(row rowReader) error {
		g, ok := gens[row.str("generator")]
		if !ok {
			return fmt.Errorf("retrofit references undefined generator %q", row.str("generator"))
		}
		var err error
		g.RetrofitEligible = true
		if g.RetrofitEmissionsRate, err = row.num("post_emissions_rate"); err != nil {
			return err
		}
		if g.RetrofitCost, err = row.num("cost"); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return in, err
	}

	for _, gid := range genOrder {
		in.Generators = append(in.Generators, *gens[gid])
	}

	err = eachRow(filepath.Join(dir, "lines.csv"), true, func(row rowReader) error {
		l := catalog.Line{
			ID:   row.str("line"),
			From: row.str("from"),
			To:   row.str("to"),
		}
		var err error
		if l.Capacity, err = row.num("capacity_mw"); err != nil {
			return err
		}
		if l.Loss, err = row.num("loss"); err != nil {
			return err
		}
		l.Bidirectional = strings.EqualFold(row.str("bidirectional"), "true")
		in.Lines = append(in.Lines, l)
		return nil
	})
	if err != nil {
		return in, err
	}

	caps := make(map[string]float64)
	haveCaps := false
	err = eachRow(filepath.Join(dir, "carbon_caps.csv"), true, func(row rowReader) error {
		cap, err := row.num("cap_t")
		if err != nil {
			return err
		}
		caps[row.str("period")] = cap
		haveCaps = true
		return nil
	})
	if err != nil {
		return in, err
	}
	if haveCaps {
		in.Carbon = &catalog.CarbonPolicy{CapsT: caps}
	}

	progs := make(map[string]*catalog.DemandResponseProgram)
	var progOrder []string
	err = eachRow(filepath.Join(dir, "dr_programs.csv"), true, func(row rowReader) error {
		id := row.str("program")
		p, ok := progs[id]
		if !ok {
			p = &catalog.DemandResponseProgram{
				ID:             id,
				Zone:           row.str("zone"),
				ShiftUpLimit:   make(map[string]float64),
				ShiftDownLimit: make(map[string]float64),
			}
			progs[id] = p
			progOrder = append(progOrder, id)
		}
		up, err := row.num("shift_up_mw")
		if err != nil {
			return err
		}
		down, err := row.num("shift_down_mw")
		if err != nil {
			return err
		}
		ts := row.str("timestep")
		p.ShiftUpLimit[ts] = up
		p.ShiftDownLimit[ts] = down
		return nil
	})
	if err != nil {
		return in, err
	}
	for _, id := range progOrder {
		in.DemandResponse = append(in.DemandResponse, *progs[id])
	}

	err = eachRow(filepath.Join(dir, "hydrogen_demand.csv"), true, func(row rowReader) error {
		z, ok := zones[row.str("zone")]
		if !ok {
			return fmt.Errorf("hydrogen demand references undefined zone %q", row.str("zone"))
		}
		kg, err := row.num("demand_kg")
		if err != nil {
			return err
		}
		if z.HydrogenDemandKg == nil {
			z.HydrogenDemandKg = make(map[string]float64)
		}
		z.HydrogenDemandKg[row.str("period")] = kg
		return nil
	})
	if err != nil {
		return in, err
	}

	err = eachRow(filepath.Join(dir, "steam.csv"), true, func(row rowReader) error {
		p := &catalog.SteamPolicy{}
		var err error
		if p.CogenHeatRatio, err = row.num("heat_ratio"); err != nil {
			return err
		}
		if p.CogenFixedCost, err = row.num("cogen_fixed_cost"); err != nil {
			return err
		}
		if p.DirectCost, err = row.num("direct_cost"); err != nil {
			return err
		}
		if in.Steam != nil {
			return fmt.Errorf("steam.csv: more than one policy row")
		}
		in.Steam = p
		return nil
	})
	if err != nil {
		return in, err
	}

	err = eachRow(filepath.Join(dir, "steam_demand.csv"), true, func(row rowReader) error {
		z, ok := zones[row.str("zone")]
		if !ok {
			return fmt.Errorf("steam demand references undefined zone %q", row.str("zone"))
		}
		mw, err := row.num("demand_mw")
		if err != nil {
			return err
		}
		if z.SteamDemandMW == nil {
			z.SteamDemandMW = make(map[string]float64)
		}
		z.SteamDemandMW[row.str("timestep")] = mw
		return nil
	})
	if err != nil {
		return in, err
	}

	// collected only now so the hydrogen and steam demand rows are
	// included; the catalog sorts, so map order does not matter
	for _, z := range zones {
		in.Zones = append(in.Zones, *z)
	}

	err = eachRow(filepath.Join(dir, "hydrogen_storage.csv"), true, func(row rowReader) error {
		kg, err := row.num("capacity_kg")
		if err != nil {
			return err
		}
		in.HydrogenStorage = append(in.HydrogenStorage, catalog.HydrogenStorage{
			Zone:       row.str("zone"),
			CapacityKg: kg,
		})
		return nil
	})
	if err != nil {
		return in, err
	}

	return in, nil
}

// rowReader gives header-keyed access to one CSV record.
type rowReader struct {
	file   string
	header map[string]int
	record []string
}

func (r rowReader) str(col string) string {
	i, ok := r.header[col]
	if !ok || i >= len(r.record) {
		return ""
	}
	return strings.TrimSpace(r.record[i])
}

func (r rowReader) num(col string) (float64, error) {
	s := r.str(col)
	if s == "" {
		return 0, fmt.Errorf("%s: missing value for column %q", r.file, col)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: column %q: %w", r.file, col, err)
	}
	return v, nil
}

// optNum is num with empty cells (or an absent column) read as zero.
func (r rowReader) optNum(col string) (float64, error) {
	if r.str(col) == "" {
		return 0, nil
	}
	return r.num(col)
}

// eachRow streams a CSV file's data rows through fn. With optional set, a
// missing file is simply skipped.
func eachRow(path string, optional bool, fn func(rowReader) error) error {
	f, err := os.Open(path)
	if err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	head, err := r.Read()
	if err != nil {
		return fmt.Errorf("read %s header: %w", filepath.Base(path), err)
	}
	header := make(map[string]int, len(head))
	for i, h := range head {
		header[strings.TrimSpace(h)] = i
	}

	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", filepath.Base(path), err)
		}
		if err := fn(rowReader{file: filepath.Base(path), header: header, record: rec}); err != nil {
			return err
		}
	}
}
