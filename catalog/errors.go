package catalog

import "fmt"

// DataError reports a malformed or inconsistent entity record found while
// building the catalog. It is fatal for the scenario.
type DataError struct {
	Table  string // which input table the record came from
	ID     string // the offending entity identifier
	Reason string
}

func (e *DataError) Error() string {
	return fmt.Sprintf("bad %s record %q: %s", e.Table, e.ID, e.Reason)
}

// UnknownEntityError reports a reference to an entity that is not present in
// the catalog, e.g. a variable allocation for a generator that was never
// loaded.
type UnknownEntityError struct {
	Kind string
	ID   string
}

func (e *UnknownEntityError) Error() string {
	return fmt.Sprintf("unknown %s %q", e.Kind, e.ID)
}
