package repository

import (
	"time"

	"github.com/google/uuid"

	"github.com/gridwise/capex/results"
	"github.com/gridwise/capex/solver"
)

// StoredRun is one scenario run's summary row, persisted to the SQLite
// database with a count of upload attempts.
type StoredRun struct {
	ID                 uuid.UUID `gorm:"primaryKey"`
	Scenario           string
	SolvedAt           time.Time
	Status             string
	Objective          float64
	TotalEmissionsT    float64
	UploadAttemptCount uint
}

// StoredDispatch is one dispatch record, keyed back to its run.
type StoredDispatch struct {
	ID         uint `gorm:"primaryKey;autoIncrement"`
	RunID      uuid.UUID
	Generator  string
	Zone       string
	Period     string
	Timestep   string
	PowerMW    float64
	EnergyMWh  float64
	EmissionsT float64
}

// StoredBuild is one capacity-addition record, keyed back to its run.
type StoredBuild struct {
	ID           uint `gorm:"primaryKey;autoIncrement"`
	RunID        uuid.UUID
	Generator    string
	Period       string
	BuiltMW      float64
	CumulativeMW float64
}

// StoredShadowPrice is one dual value, keyed back to its run.
type StoredShadowPrice struct {
	ID         uint `gorm:"primaryKey;autoIncrement"`
	RunID      uuid.UUID
	Constraint string
	Value      float64
}

func newStoredRun(p *results.Projection) StoredRun {
	return StoredRun{
		ID:              p.RunID,
		Scenario:        p.Scenario,
		SolvedAt:        p.SolvedAt,
		Status:          string(p.Status),
		Objective:       p.Objective,
		TotalEmissionsT: p.TotalEmissionsT,
	}
}

func newStoredRecords(p *results.Projection) ([]StoredDispatch, []StoredBuild, []StoredShadowPrice) {
	var dispatch []StoredDispatch
	var builds []StoredBuild
	var prices []StoredShadowPrice
	if p.Status != solver.StatusOptimal {
		return dispatch, builds, prices
	}
	for _, d := range p.Dispatch {
		dispatch = append(dispatch, StoredDispatch{
			RunID:      p.RunID,
			Generator:  d.Generator,
			Zone:       d.Zone,
			Period:     d.Period,
			Timestep:   d.Timestep,
			PowerMW:    d.PowerMW,
			EnergyMWh:  d.EnergyMWh,
			EmissionsT: d.EmissionsT,
		})
	}
	for _, b := range p.Builds {
		builds = append(builds, StoredBuild{
			RunID:        p.RunID,
			Generator:    b.Generator,
			Period:       b.Period,
			BuiltMW:      b.BuiltMW,
			CumulativeMW: b.CumulativeMW,
		})
	}
	for _, sp := range p.ShadowPrices {
		prices = append(prices, StoredShadowPrice{
			RunID:      p.RunID,
			Constraint: sp.Constraint,
			Value:      sp.Value,
		})
	}
	return dispatch, builds, prices
}
