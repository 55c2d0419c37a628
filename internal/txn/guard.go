package txn

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/roach88/pop/internal/contract"
	"github.com/roach88/pop/internal/path"
	"github.com/roach88/pop/internal/poperr"
	"github.com/roach88/pop/internal/value"
)

var (
	// ErrNotFound is returned when a read or delete targets a location that
	// holds no value.
	ErrNotFound = errors.New("no value at path")

	// ErrKindMismatch is returned when a write does not fit the declared kind.
	ErrKindMismatch = errors.New("value does not match declared kind")
)

// Guard is the only handle a process body receives. It binds one State
// Record, one contract and one open transaction, and checks every access
// in the same order: stale reference, path resolution, contract coverage,
// then Delta Log replay or append.
//
// A failed resolution or contract check poisons the transaction, so one
// illegal access rolls back the whole invocation.
type Guard struct {
	tx       *Transaction
	contract contract.Contract
	strict   bool
	epoch    int64
}

// NewGuard binds a guard to tx. In strict mode only the contract's inputs
// grant reads.
func NewGuard(tx *Transaction, c contract.Contract, strict bool) *Guard {
	return &Guard{
		tx:       tx,
		contract: c,
		strict:   strict,
		epoch:    tx.Epoch(),
	}
}

// Transaction returns the bound transaction.
func (g *Guard) Transaction() *Transaction { return g.tx }

// Contract returns the bound contract.
func (g *Guard) Contract() contract.Contract { return g.contract }

// Read returns the value at raw. Scalars come back as value.Value;
// lists and maps come back as *ListProxy and *MapProxy.
func (g *Guard) Read(raw string) (any, error) {
	p, err := g.resolve(raw)
	if err != nil {
		return nil, err
	}
	return g.read(p)
}

// Value returns a detached copy of the value at raw.
func (g *Guard) Value(raw string) (value.Value, error) {
	p, err := g.resolve(raw)
	if err != nil {
		return nil, err
	}
	v, err := g.load(p)
	if err != nil {
		return nil, err
	}
	return value.Clone(v), nil
}

// Has reports whether a value exists at raw. It needs read access.
func (g *Guard) Has(raw string) (bool, error) {
	p, err := g.resolve(raw)
	if err != nil {
		return false, err
	}
	return g.has(p)
}

// Int reads an int at raw.
func (g *Guard) Int(raw string) (int64, error) {
	v, err := g.Value(raw)
	if err != nil {
		return 0, err
	}
	n, ok := v.(value.Int)
	if !ok {
		return 0, fmt.Errorf("%s is %s, not int", raw, value.KindOf(v))
	}
	return int64(n), nil
}

// String reads a string at raw.
func (g *Guard) String(raw string) (string, error) {
	v, err := g.Value(raw)
	if err != nil {
		return "", err
	}
	s, ok := v.(value.String)
	if !ok {
		return "", fmt.Errorf("%s is %s, not string", raw, value.KindOf(v))
	}
	return string(s), nil
}

// Bool reads a bool at raw.
func (g *Guard) Bool(raw string) (bool, error) {
	v, err := g.Value(raw)
	if err != nil {
		return false, err
	}
	b, ok := v.(value.Bool)
	if !ok {
		return false, fmt.Errorf("%s is %s, not bool", raw, value.KindOf(v))
	}
	return bool(b), nil
}

// List returns a proxy for the list at raw.
func (g *Guard) List(raw string) (*ListProxy, error) {
	got, err := g.Read(raw)
	if err != nil {
		return nil, err
	}
	l, ok := got.(*ListProxy)
	if !ok {
		return nil, fmt.Errorf("%s is not a list", raw)
	}
	return l, nil
}

// Map returns a proxy for the map at raw.
func (g *Guard) Map(raw string) (*MapProxy, error) {
	got, err := g.Read(raw)
	if err != nil {
		return nil, err
	}
	m, ok := got.(*MapProxy)
	if !ok {
		return nil, fmt.Errorf("%s is not a map", raw)
	}
	return m, nil
}

// Write records v as the new value at raw. v may be a value.Value, a plain
// Go value accepted by value.FromAny, or a proxy (which is snapshotted).
func (g *Guard) Write(raw string, v any) error {
	p, err := g.resolve(raw)
	if err != nil {
		return err
	}
	return g.write(p, v)
}

// Delete removes a map key or a list element. Deleting a list element
// shifts later elements down and needs write access to the whole list.
func (g *Guard) Delete(raw string) error {
	p, err := g.resolve(raw)
	if err != nil {
		return err
	}
	return g.delete(p)
}

func (g *Guard) resolve(raw string) (path.Path, error) {
	if err := g.tx.live(g.epoch, raw); err != nil {
		return path.Path{}, err
	}
	p, err := g.tx.Record().Schema().Resolve(raw)
	if err != nil {
		g.tx.Poison(err)
		return path.Path{}, err
	}
	return p, nil
}

func (g *Guard) violation(p path.Path, mode poperr.AccessMode) error {
	err := &poperr.AccessViolationError{Process: g.tx.Process(), Path: p.String(), Mode: mode}
	g.tx.Poison(err)
	return err
}

func (g *Guard) checkRead(p path.Path) error {
	if err := g.tx.live(g.epoch, p.String()); err != nil {
		return err
	}
	if !g.contract.CanRead(p, g.strict) {
		return g.violation(p, poperr.AccessRead)
	}
	return nil
}

func (g *Guard) checkWrite(p path.Path) error {
	if err := g.tx.live(g.epoch, p.String()); err != nil {
		return err
	}
	if !g.contract.CanWrite(p) {
		return g.violation(p, poperr.AccessWrite)
	}
	return nil
}

// load returns the apparent value at p. The result shares structure with
// committed state and must not be mutated.
func (g *Guard) load(p path.Path) (value.Value, error) {
	if err := g.checkRead(p); err != nil {
		return nil, err
	}
	v, ok, err := g.tx.Apparent(p)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", p, ErrNotFound)
	}
	return v, nil
}

func (g *Guard) has(p path.Path) (bool, error) {
	if err := g.checkRead(p); err != nil {
		return false, err
	}
	_, ok, err := g.tx.Apparent(p)
	return ok, err
}

func (g *Guard) read(p path.Path) (any, error) {
	v, err := g.load(p)
	if err != nil {
		return nil, err
	}
	return g.wrap(p, v), nil
}

func (g *Guard) wrap(p path.Path, v value.Value) any {
	switch v.(type) {
	case value.List:
		return &ListProxy{g: g, path: p}
	case value.Map:
		return &MapProxy{g: g, path: p}
	default:
		return v
	}
}

func (g *Guard) write(p path.Path, raw any) error {
	if err := g.checkWrite(p); err != nil {
		return err
	}
	v, err := toValue(raw)
	if err != nil {
		return fmt.Errorf("write %s: %w", p, err)
	}
	if err := g.checkKind(p, v); err != nil {
		return err
	}
	_, err = g.tx.change(g.epoch, p, func(value.Value, bool) (Entry, error) {
		return Entry{Op: OpSet, New: v}, nil
	})
	return err
}

func (g *Guard) delete(p path.Path) error {
	if p.IsField() {
		err := &poperr.InvalidPathError{Path: p.String(), Reason: "a whole field cannot be deleted"}
		g.tx.Poison(err)
		return err
	}
	if err := g.checkWrite(p); err != nil {
		return err
	}
	parent := p.Parent()
	container, _, err := g.tx.Apparent(parent)
	if err != nil {
		return err
	}
	if _, isList := container.(value.List); isList {
		last := p.Rest[len(p.Rest)-1]
		idx := last.Index
		if !last.IsIndex {
			n, err := strconv.Atoi(last.Key)
			if err != nil {
				return fmt.Errorf("%s: key into list: %w", p, value.ErrNotTraversable)
			}
			idx = n
		}
		return g.removeAt(parent, idx)
	}

	_, err = g.tx.change(g.epoch, p, func(_ value.Value, exists bool) (Entry, error) {
		if !exists {
			return Entry{}, ErrNotFound
		}
		return Entry{Op: OpDelete}, nil
	})
	return err
}

// mutateList records a container op on the list at p.
func (g *Guard) mutateList(p path.Path, op func(value.List) (Entry, error)) error {
	if err := g.checkWrite(p); err != nil {
		return err
	}
	_, err := g.tx.change(g.epoch, p, func(prior value.Value, exists bool) (Entry, error) {
		if !exists {
			return Entry{}, ErrNotFound
		}
		list, ok := prior.(value.List)
		if !ok {
			return Entry{}, fmt.Errorf("%s is not a list", value.KindOf(prior))
		}
		return op(list)
	})
	return err
}

func (g *Guard) appendTo(p path.Path, raw any) error {
	elem, err := toValue(raw)
	if err != nil {
		return fmt.Errorf("append %s: %w", p, err)
	}
	if err := g.checkElemKind(p, elem); err != nil {
		return err
	}
	return g.mutateList(p, func(list value.List) (Entry, error) {
		next := make(value.List, len(list), len(list)+1)
		copy(next, list)
		return Entry{Op: OpAppend, Index: len(list), Elem: elem, New: append(next, elem)}, nil
	})
}

func (g *Guard) insertAt(p path.Path, idx int, raw any) error {
	elem, err := toValue(raw)
	if err != nil {
		return fmt.Errorf("insert %s: %w", p, err)
	}
	if err := g.checkElemKind(p, elem); err != nil {
		return err
	}
	return g.mutateList(p, func(list value.List) (Entry, error) {
		if idx < 0 || idx > len(list) {
			return Entry{}, fmt.Errorf("insert index %d out of range (len %d)", idx, len(list))
		}
		next := make(value.List, 0, len(list)+1)
		next = append(next, list[:idx]...)
		next = append(next, elem)
		next = append(next, list[idx:]...)
		return Entry{Op: OpInsert, Index: idx, Elem: elem, New: next}, nil
	})
}

func (g *Guard) removeAt(p path.Path, idx int) error {
	return g.mutateList(p, func(list value.List) (Entry, error) {
		if idx < 0 || idx >= len(list) {
			return Entry{}, fmt.Errorf("remove index %d out of range (len %d): %w", idx, len(list), ErrNotFound)
		}
		next := make(value.List, 0, len(list)-1)
		next = append(next, list[:idx]...)
		next = append(next, list[idx+1:]...)
		return Entry{Op: OpRemove, Index: idx, Elem: list[idx], New: next}, nil
	})
}

func (g *Guard) clear(p path.Path) error {
	if err := g.checkWrite(p); err != nil {
		return err
	}
	_, err := g.tx.change(g.epoch, p, func(prior value.Value, exists bool) (Entry, error) {
		switch prior.(type) {
		case value.List:
			return Entry{Op: OpClear, New: value.List{}}, nil
		case value.Map:
			return Entry{Op: OpClear, New: value.Map{}}, nil
		}
		if !exists {
			return Entry{}, ErrNotFound
		}
		return Entry{}, fmt.Errorf("%s is not a container", value.KindOf(prior))
	})
	return err
}

func (g *Guard) checkKind(p path.Path, v value.Value) error {
	spec, ok := g.tx.Record().Schema().SpecAt(p)
	if !ok || spec.Kind == value.KindAny || spec.Kind == value.KindOf(v) {
		return nil
	}
	return fmt.Errorf("write %s: %s expects %s, got %s: %w", p, p, spec.Kind, value.KindOf(v), ErrKindMismatch)
}

func (g *Guard) checkElemKind(p path.Path, elem value.Value) error {
	spec, ok := g.tx.Record().Schema().SpecAt(p)
	if !ok || spec.Elem == nil || spec.Elem.Kind == value.KindAny || spec.Elem.Kind == value.KindOf(elem) {
		return nil
	}
	return fmt.Errorf("%s: elements must be %s, got %s: %w", p, spec.Elem.Kind, value.KindOf(elem), ErrKindMismatch)
}

func toValue(raw any) (value.Value, error) {
	detached, err := Detach(raw)
	if err != nil {
		return nil, err
	}
	return value.FromAny(detached)
}
