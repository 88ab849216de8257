package model

import "github.com/gridwise/capex/catalog"

type varKey struct {
	entity string
	index  string
	kind   VarKind
}

// Registry allocates decision variables keyed by (entity, index, kind).
// Allocation is idempotent: asking twice for the same key returns the same
// handle, with the bounds from the first allocation. The registry is sized
// from one catalog snapshot and rejects entities that snapshot does not
// contain.
type Registry struct {
	cat   *catalog.Catalog
	vars  []Variable
	byKey map[varKey]VarID
}

func NewRegistry(cat *catalog.Catalog) *Registry {
	return &Registry{
		cat:   cat,
		byKey: make(map[varKey]VarID),
	}
}

// Allocate returns the handle for a continuous variable with the given
// bounds, creating it on first use. It fails with *catalog.UnknownEntityError
// when the entity is not in the catalog.
func (r *Registry) Allocate(entity, index string, kind VarKind, lower, upper float64) (VarID, error) {
	return r.allocate(Variable{Kind: kind, Entity: entity, Index: index, Lower: lower, Upper: upper})
}

// AllocateBinary is Allocate for a {0,1} variable.
func (r *Registry) AllocateBinary(entity, index string, kind VarKind) (VarID, error) {
	return r.allocate(Variable{Kind: kind, Entity: entity, Index: index, Lower: 0, Upper: 1, Binary: true})
}

func (r *Registry) allocate(v Variable) (VarID, error) {
	key := varKey{entity: v.Entity, index: v.Index, kind: v.Kind}
	if id, ok := r.byKey[key]; ok {
		return id, nil
	}
	if !r.cat.HasEntity(v.Entity) {
		return -1, &catalog.UnknownEntityError{Kind: string(v.Kind), ID: v.Entity}
	}
	id := VarID(len(r.vars))
	r.vars = append(r.vars, v)
	r.byKey[key] = id
	return id, nil
}

// Lookup returns the handle for a previously allocated variable.
func (r *Registry) Lookup(entity, index string, kind VarKind) (VarID, bool) {
	id, ok := r.byKey[varKey{entity: entity, index: index, kind: kind}]
	return id, ok
}

// Variables returns the variable table in allocation order. The slice is the
// registry's own backing store; callers must not mutate it.
func (r *Registry) Variables() []Variable { return r.vars }

// Len returns the number of allocated variables.
func (r *Registry) Len() int { return len(r.vars) }
