package planner

import "fmt"

// CompositionError reports two policy modules contributing contradictory
// definitions for the same quantity, e.g. different emissions-rate overrides
// for the same (unit, period). It is raised during model construction,
// before any solver call.
type CompositionError struct {
	ModuleA string
	ModuleB string
	Entity  string
	Index   string
	Detail  string
}

func (e *CompositionError) Error() string {
	return fmt.Sprintf("modules %s and %s conflict on (%s, %s): %s",
		e.ModuleA, e.ModuleB, e.Entity, e.Index, e.Detail)
}
