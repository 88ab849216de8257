package model

import "math"

// VarKind identifies what physical quantity a decision variable represents.
type VarKind string

const (
	KindDispatch         VarKind = "dispatch"        // MW generated (or drawn, for electrolyzers)
	KindCharge           VarKind = "charge"          // MW into a storage unit
	KindDischarge        VarKind = "discharge"       // MW out of a storage unit
	KindStateOfCharge    VarKind = "soc"             // MWh held by a storage unit
	KindBuild            VarKind = "build"           // MW of new capacity added in a period
	KindFlowForward      VarKind = "flow_fwd"        // MW on a transmission line, From->To
	KindFlowReverse      VarKind = "flow_rev"        // MW on a transmission line, To->From
	KindRetrofitSelect   VarKind = "retrofit_select" // binary: retrofit in place from this period on
	KindShiftUp          VarKind = "shift_up"        // MW of load added by demand response
	KindShiftDown        VarKind = "shift_down"      // MW of load removed by demand response
	KindHydrogenStore    VarKind = "h2_store"        // kg moved into the hydrogen store this period
	KindHydrogenWithdraw VarKind = "h2_withdraw"     // kg taken out of the hydrogen store this period
	KindHydrogenLevel    VarKind = "h2_level"        // kg held at end of period
	KindEmissionsSaved   VarKind = "emissions_saved" // tCO2/h avoided by an active retrofit
	KindCogenBuild       VarKind = "cogen_build"     // MW-thermal of cogen recovery added in a period
	KindCogenDispatch    VarKind = "cogen_dispatch"  // MW-thermal of steam recovered from a unit
	KindDirectSteam      VarKind = "direct_steam"    // MW-thermal of steam raised directly from fuel
)

// Inf is the unbounded upper limit for variable bounds.
var Inf = math.Inf(1)

// VarID is a dense index into the registry's variable table, assigned in
// allocation order.
type VarID int

// Variable is one decision variable: a (entity, index, kind) triple with its
// bounds. Index is a timestep ID for operational kinds and a period ID for
// investment kinds.
type Variable struct {
	Kind   VarKind
	Entity string
	Index  string
	Lower  float64
	Upper  float64
	Binary bool
}
