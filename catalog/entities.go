package catalog

// Technology classifies a generation unit. The planner treats storage and
// electrolyzers specially; everything else is a plain dispatchable or
// variable-output generator.
type Technology string

const (
	TechThermal      Technology = "thermal"
	TechWind         Technology = "wind"
	TechSolar        Technology = "solar"
	TechStorage      Technology = "storage"
	TechElectrolyzer Technology = "electrolyzer"
)

// Timestep is one representative dispatch interval within an investment
// period. Weight is the number of real hours this interval stands in for and
// is used to scale power (MW) decisions into energy (MWh).
type Timestep struct {
	ID     string
	Weight float64
}

// Period is one investment period. Hours is the modeled duration of the
// period; the weights of its timesteps must sum to Hours.
type Period struct {
	ID        string
	Hours     float64
	Timesteps []Timestep
}

// Zone is a demand node in the transmission topology.
type Zone struct {
	ID string

	// Load is the electrical demand in MW, keyed by timestep ID. Every
	// timestep must have an entry.
	Load map[string]float64

	// HydrogenDemandKg is an optional downstream hydrogen demand in kg,
	// keyed by period ID. Only meaningful when the hydrogen module is
	// active.
	HydrogenDemandKg map[string]float64

	// SteamDemandMW is an optional industrial steam demand in MW-thermal,
	// keyed by timestep ID. Missing entries mean zero. Only meaningful when
	// the steam module is active.
	SteamDemandMW map[string]float64
}

// Generator is an existing or candidate generation, storage or electrolyzer
// unit attached to a zone.
type Generator struct {
	ID   string
	Zone string
	Tech Technology

	ExistingCapacity float64 // MW already installed at the start of the horizon

	// BuildLimit caps new build per period in MW, keyed by period ID. A
	// period with no entry admits no candidate build in that period.
	BuildLimit map[string]float64

	VariableCost float64 // $/MWh dispatched
	FixedCost    float64 // $/MW of installed capacity, per period
	CapitalCost  float64 // $/MW of new build, charged once

	EmissionsRate float64 // tCO2/MWh; zero for renewables

	// Storage units only.
	RoundTripEfficiency float64 // applied on charge
	EnergyCapacityHours float64 // MWh of storage per MW of power capacity

	// Electrolyzers only.
	ConversionKgPerMWh float64

	// Retrofit-eligible thermal units only. Eligibility is externally
	// supplied data; the core does not second-guess it.
	RetrofitEligible      bool
	RetrofitEmissionsRate float64 // tCO2/MWh after the retrofit
	RetrofitCost          float64 // $ one-time, charged in the selection period
}

// Line is a capacity-bounded transmission link between two zones. Flow is
// measured positive in the From->To direction; a bidirectional line admits
// negative flow down to -Capacity.
type Line struct {
	ID            string
	From          string
	To            string
	Capacity      float64 // MW
	Loss          float64 // fraction of transmitted power lost in transit
	Bidirectional bool
}

// CarbonPolicy caps total emissions per period. A nil policy on the catalog
// means the carbon module is disabled for the scenario and dispatch may emit
// without bound.
type CarbonPolicy struct {
	// CapsT is the emissions cap in tonnes, keyed by period ID. Periods
	// without an entry are uncapped even when the policy is present.
	CapsT map[string]float64
}

// SteamPolicy enables the steam commodity. Zone steam demand is met either
// by cogeneration recovered from dispatching thermal units or by raising
// steam directly from fuel. A nil policy disables the module.
type SteamPolicy struct {
	// CogenHeatRatio is the MW-thermal of steam recoverable per MW of
	// electrical dispatch at a thermal unit.
	CogenHeatRatio float64

	// CogenFixedCost is the carrying cost in $/MW-thermal of installed
	// cogen recovery capacity, per period.
	CogenFixedCost float64

	// DirectCost is the fuel cost in $/MWh-thermal of steam raised
	// directly, bypassing cogeneration.
	DirectCost float64
}

// DemandResponseProgram describes a reshapeable block of industrial load in
// one zone. Shifted energy is conserved over each period: the program moves
// load between timesteps, it never sheds it.
type DemandResponseProgram struct {
	ID   string
	Zone string

	// Per-timestep bounds in MW on shifting load up (adding) or down
	// (removing), keyed by timestep ID. Missing entries mean zero.
	ShiftUpLimit   map[string]float64
	ShiftDownLimit map[string]float64
}

// HydrogenStorage is an optional per-zone hydrogen store, in kg.
type HydrogenStorage struct {
	Zone       string
	CapacityKg float64
}
