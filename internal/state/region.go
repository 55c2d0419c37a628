package state

import (
	"fmt"
	"sync"

	"github.com/roach88/pop/internal/path"
	"github.com/roach88/pop/internal/value"
)

// Region is a set of fields held under write lock for one commit's
// check-and-apply sequence. Only held fields can be read or replaced.
type Region struct {
	held     map[path.FieldKey]*slot
	released sync.Once
}

// Holds reports whether key is part of the region.
func (g *Region) Holds(key path.FieldKey) bool {
	_, ok := g.held[key]
	return ok
}

// Root returns the current value of a held field.
func (g *Region) Root(key path.FieldKey) (value.Value, error) {
	s, ok := g.held[key]
	if !ok {
		return nil, fmt.Errorf("state: field %s is not locked", key)
	}
	return s.root, nil
}

// Get reads the value at p within a held field.
func (g *Region) Get(p path.Path) (value.Value, bool, error) {
	root, err := g.Root(p.Key())
	if err != nil {
		return nil, false, err
	}
	return value.GetIn(root, p.Rest)
}

// Replace installs a new root for a held field.
func (g *Region) Replace(key path.FieldKey, root value.Value) error {
	s, ok := g.held[key]
	if !ok {
		return fmt.Errorf("state: field %s is not locked", key)
	}
	s.root = root
	return nil
}

// Release unlocks every held field. Later calls are no-ops.
func (g *Region) Release() {
	g.released.Do(func() {
		for _, s := range g.held {
			s.mu.Unlock()
		}
	})
}
