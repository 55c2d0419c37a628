// Package state holds the real State Record that processes transform.
//
// Each (scope, field) pair owns one slot. A slot's value is an immutable
// snapshot: commits replace it wholesale under the slot's write lock and
// nothing ever mutates a stored value in place. Readers therefore only need
// the lock long enough to load the current root.
package state

import (
	"fmt"
	"slices"
	"sync"

	"github.com/roach88/pop/internal/path"
	"github.com/roach88/pop/internal/value"
)

type slot struct {
	mu   sync.RWMutex
	root value.Value
}

// Record is the shared, hierarchical state aggregate.
// The set of slots is fixed by the schema at construction.
type Record struct {
	schema *path.Schema
	slots  map[path.FieldKey]*slot
}

// New builds a Record for schema. initial supplies starting values shaped
// {scope: {field: value}}; fields it omits take their declared default, or
// the zero value of their kind. Values are deep-copied in.
func New(schema *path.Schema, initial value.Map) (*Record, error) {
	r := &Record{
		schema: schema,
		slots:  make(map[path.FieldKey]*slot),
	}
	for scope := range initial {
		if !schema.HasScope(scope) {
			return nil, fmt.Errorf("initial state: unknown scope %q", scope)
		}
	}

	for _, key := range schema.FieldKeys() {
		spec, _ := schema.Field(key.Scope, key.Field)
		v := zeroOf(spec)

		if fields, ok := initial[key.Scope].(value.Map); ok {
			if given, exists := fields[key.Field]; exists {
				v = value.Clone(given)
			}
		}
		r.slots[key] = &slot{root: v}
	}

	for scope, raw := range initial {
		fields, ok := raw.(value.Map)
		if !ok {
			return nil, fmt.Errorf("initial state: scope %q must be a map, got %s", scope, value.KindOf(raw))
		}
		for field := range fields {
			if _, ok := r.slots[path.FieldKey{Scope: scope, Field: field}]; !ok {
				return nil, fmt.Errorf("initial state: scope %q has no field %q", scope, field)
			}
		}
	}
	return r, nil
}

// FromSnapshot infers a schema from snapshot and builds a Record holding it.
func FromSnapshot(snapshot value.Map) (*Record, error) {
	schema, err := path.Infer(snapshot)
	if err != nil {
		return nil, err
	}
	return New(schema, snapshot)
}

func zeroOf(spec path.FieldSpec) value.Value {
	if spec.Default != nil {
		return value.Clone(spec.Default)
	}
	switch spec.Kind {
	case value.KindString:
		return value.String("")
	case value.KindInt:
		return value.Int(0)
	case value.KindBool:
		return value.Bool(false)
	case value.KindList:
		return value.List{}
	case value.KindMap:
		return value.Map{}
	default:
		return value.Null{}
	}
}

// Schema returns the record's schema.
func (r *Record) Schema() *path.Schema {
	return r.schema
}

// Root returns the current committed value of a whole field.
func (r *Record) Root(key path.FieldKey) (value.Value, error) {
	s, ok := r.slots[key]
	if !ok {
		return nil, fmt.Errorf("state: no field %s", key)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.root, nil
}

// Get returns the committed value at p and whether it exists.
// The returned value is shared and must not be mutated.
func (r *Record) Get(p path.Path) (value.Value, bool, error) {
	root, err := r.Root(p.Key())
	if err != nil {
		return nil, false, err
	}
	return value.GetIn(root, p.Rest)
}

// Snapshot returns a deep copy of the whole record as {scope: {field: value}}.
// Each field is read atomically; fields are not read as one unit.
func (r *Record) Snapshot() value.Map {
	out := make(value.Map)
	for _, key := range r.schema.FieldKeys() {
		root, _ := r.Root(key)
		fields, ok := out[key.Scope].(value.Map)
		if !ok {
			fields = make(value.Map)
			out[key.Scope] = fields
		}
		fields[key.Field] = value.Clone(root)
	}
	return out
}

// Lock acquires write locks on every field in keys, in sorted order, and
// returns a Region through which the holder reads and replaces those fields.
// Release must be called exactly once, on every exit path.
func (r *Record) Lock(keys []path.FieldKey) (*Region, error) {
	sorted := slices.Clone(keys)
	slices.SortFunc(sorted, path.CompareKeys)
	sorted = slices.Compact(sorted)

	held := make(map[path.FieldKey]*slot, len(sorted))
	for _, key := range sorted {
		s, ok := r.slots[key]
		if !ok {
			for _, h := range held {
				h.mu.Unlock()
			}
			return nil, fmt.Errorf("state: no field %s", key)
		}
		s.mu.Lock()
		held[key] = s
	}
	return &Region{held: held}, nil
}
