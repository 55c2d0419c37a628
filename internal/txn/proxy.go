package txn

import (
	"errors"
	"fmt"

	"github.com/roach88/pop/internal/path"
	"github.com/roach88/pop/internal/value"
)

// ListProxy is a non-owning view of a list reached through a Guard. It holds
// no copy of the list: every read replays the transaction's Delta Log over
// committed state, and every write appends a Delta Entry. Once the
// transaction ends, every method fails with a StaleReferenceError.
type ListProxy struct {
	g    *Guard
	path path.Path
}

// Path returns the path the proxy views.
func (l *ListProxy) Path() path.Path { return l.path }

func (l *ListProxy) current() (value.List, error) {
	v, err := l.g.load(l.path)
	if err != nil {
		return nil, err
	}
	list, ok := v.(value.List)
	if !ok {
		return nil, fmt.Errorf("%s is now %s, not a list", l.path, value.KindOf(v))
	}
	return list, nil
}

// Len returns the apparent length.
func (l *ListProxy) Len() (int, error) {
	list, err := l.current()
	if err != nil {
		return 0, err
	}
	return len(list), nil
}

// Get returns element i: a value.Value, or a proxy for nested containers.
func (l *ListProxy) Get(i int) (any, error) {
	return l.g.read(l.path.Child(value.IndexSeg(i)))
}

// Set replaces element i.
func (l *ListProxy) Set(i int, v any) error {
	return l.g.write(l.path.Child(value.IndexSeg(i)), v)
}

// Append adds v to the end of the list.
func (l *ListProxy) Append(v any) error {
	return l.g.appendTo(l.path, v)
}

// Insert places v at position i, shifting later elements up.
func (l *ListProxy) Insert(i int, v any) error {
	return l.g.insertAt(l.path, i, v)
}

// Remove drops element i, shifting later elements down.
func (l *ListProxy) Remove(i int) error {
	return l.g.removeAt(l.path, i)
}

// Clear empties the list.
func (l *ListProxy) Clear() error {
	return l.g.clear(l.path)
}

// Snapshot returns a detached copy of the apparent list.
func (l *ListProxy) Snapshot() (value.List, error) {
	list, err := l.current()
	if err != nil {
		return nil, err
	}
	return value.Clone(list).(value.List), nil
}

// MapProxy is the map counterpart of ListProxy.
type MapProxy struct {
	g    *Guard
	path path.Path
}

// Path returns the path the proxy views.
func (m *MapProxy) Path() path.Path { return m.path }

func (m *MapProxy) current() (value.Map, error) {
	v, err := m.g.load(m.path)
	if err != nil {
		return nil, err
	}
	mv, ok := v.(value.Map)
	if !ok {
		return nil, fmt.Errorf("%s is now %s, not a map", m.path, value.KindOf(v))
	}
	return mv, nil
}

// Len returns the apparent number of keys.
func (m *MapProxy) Len() (int, error) {
	mv, err := m.current()
	if err != nil {
		return 0, err
	}
	return len(mv), nil
}

// Has reports whether key is present.
func (m *MapProxy) Has(key string) (bool, error) {
	mv, err := m.current()
	if err != nil {
		return false, err
	}
	_, ok := mv[key]
	return ok, nil
}

// Keys returns the apparent keys in canonical order.
func (m *MapProxy) Keys() ([]string, error) {
	mv, err := m.current()
	if err != nil {
		return nil, err
	}
	return mv.SortedKeys(), nil
}

// Get returns the value under key: a value.Value, or a proxy for nested
// containers.
func (m *MapProxy) Get(key string) (any, error) {
	return m.g.read(m.path.Child(value.KeySeg(key)))
}

// Set stores v under key.
func (m *MapProxy) Set(key string, v any) error {
	return m.g.write(m.path.Child(value.KeySeg(key)), v)
}

// Delete removes key.
func (m *MapProxy) Delete(key string) error {
	return m.g.delete(m.path.Child(value.KeySeg(key)))
}

// Clear removes every key.
func (m *MapProxy) Clear() error {
	return m.g.clear(m.path)
}

// Snapshot returns a detached copy of the apparent map.
func (m *MapProxy) Snapshot() (value.Map, error) {
	mv, err := m.current()
	if err != nil {
		return nil, err
	}
	return value.Clone(mv).(value.Map), nil
}

// Detach replaces proxies in v, including those nested in []any and
// map[string]any, with plain snapshots. It must run while the owning
// transaction is still open.
func Detach(v any) (any, error) {
	switch val := v.(type) {
	case *ListProxy:
		return val.Snapshot()
	case *MapProxy:
		return val.Snapshot()
	case *Guard:
		return nil, errors.New("a guard cannot be returned from a process")
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			d, err := Detach(elem)
			if err != nil {
				return nil, err
			}
			out[i] = d
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			d, err := Detach(elem)
			if err != nil {
				return nil, err
			}
			out[k] = d
		}
		return out, nil
	default:
		return v, nil
	}
}
