package dataplatform

import (
	"time"

	"github.com/google/uuid"

	"github.com/gridwise/capex/repository"
)

// supabaseRun holds the json encoding schema for a scenario run summary in
// supabase.
type supabaseRun struct {
	ID              uuid.UUID `json:"id"`
	Scenario        string    `json:"scenario"`
	SolvedAt        time.Time `json:"solved_at"`
	Status          string    `json:"status"`
	Objective       float64   `json:"objective"`
	TotalEmissionsT float64   `json:"total_emissions_t"`
}

// supabaseDispatch holds the json encoding schema for one dispatch row in
// supabase.
type supabaseDispatch struct {
	RunID      uuid.UUID `json:"run_id"`
	Generator  string    `json:"generator"`
	Zone       string    `json:"zone"`
	Period     string    `json:"period"`
	Timestep   string    `json:"timestep"`
	PowerMW    float64   `json:"power_mw"`
	EnergyMWh  float64   `json:"energy_mwh"`
	EmissionsT float64   `json:"emissions_t"`
}

// supabaseBuild holds the json encoding schema for one build row in
// supabase.
type supabaseBuild struct {
	RunID        uuid.UUID `json:"run_id"`
	Generator    string    `json:"generator"`
	Period       string    `json:"period"`
	BuiltMW      float64   `json:"built_mw"`
	CumulativeMW float64   `json:"cumulative_mw"`
}

func convertRuns(runs []repository.StoredRun) []supabaseRun {
	var out []supabaseRun
	for _, r := range runs {
		out = append(out, supabaseRun{
			ID:              r.ID,
			Scenario:        r.Scenario,
			SolvedAt:        r.SolvedAt,
			Status:          r.Status,
			Objective:       r.Objective,
			TotalEmissionsT: r.TotalEmissionsT,
		})
	}
	return out
}

func convertDispatch(rows []repository.StoredDispatch) []supabaseDispatch {
	var out []supabaseDispatch
	for _, d := range rows {
		out = append(out, supabaseDispatch{
			RunID:      d.RunID,
			Generator:  d.Generator,
			Zone:       d.Zone,
			Period:     d.Period,
			Timestep:   d.Timestep,
			PowerMW:    d.PowerMW,
			EnergyMWh:  d.EnergyMWh,
			EmissionsT: d.EmissionsT,
		})
	}
	return out
}

func convertBuilds(rows []repository.StoredBuild) []supabaseBuild {
	var out []supabaseBuild
	for _, b := range rows {
		out = append(out, supabaseBuild{
			RunID:        b.RunID,
			Generator:    b.Generator,
			Period:       b.Period,
			BuiltMW:      b.BuiltMW,
			CumulativeMW: b.CumulativeMW,
		})
	}
	return out
}
