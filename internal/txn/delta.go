package txn

import (
	"fmt"
	"slices"

	"github.com/roach88/pop/internal/path"
	"github.com/roach88/pop/internal/value"
)

// Op names the mutation a Delta Entry records.
type Op string

const (
	// OpSet replaces (or creates) the value at the entry path.
	OpSet Op = "set"

	// OpDelete removes a map key.
	OpDelete Op = "delete"

	// OpAppend adds Elem to the end of the list at the entry path.
	OpAppend Op = "append"

	// OpInsert places Elem at Index in the list at the entry path.
	OpInsert Op = "insert"

	// OpRemove drops the element at Index from the list at the entry path.
	OpRemove Op = "remove"

	// OpClear empties the container at the entry path.
	OpClear Op = "clear"
)

// Entry is one recorded pending mutation. It is immutable once appended.
//
// Prior is the value at Path as the owning transaction saw it just before
// the entry was recorded, i.e. committed state replayed through every
// earlier entry. New is the value at Path after the entry (nil for
// OpDelete). Container ops (append, insert, remove, clear) address the
// container itself, so Prior and New are whole containers and Elem/Index
// describe the change.
//
// Values are never mutated in place anywhere in the engine, so Prior and New
// are true snapshots even when they share structure with committed state.
type Entry struct {
	Seq         int
	Path        path.Path
	Op          Op
	Index       int
	Elem        value.Value
	Prior       value.Value
	PriorExists bool
	New         value.Value
}

// Apply returns the field root with the entry applied. root is not modified.
func (e Entry) Apply(root value.Value) (value.Value, error) {
	if e.Op == OpDelete {
		return value.DeleteIn(root, e.Path.Rest)
	}
	return value.SetIn(root, e.Path.Rest, e.New)
}

// Revert returns the field root with Prior restored at the entry path.
// Applied to the result of Apply, it yields the original root.
func (e Entry) Revert(root value.Value) (value.Value, error) {
	if !e.PriorExists {
		return value.DeleteIn(root, e.Path.Rest)
	}
	return value.SetIn(root, e.Path.Rest, e.Prior)
}

func (e Entry) String() string {
	switch e.Op {
	case OpAppend:
		return fmt.Sprintf("#%d append %s <- %s", e.Seq, e.Path, value.MustCanonical(e.Elem))
	case OpInsert:
		return fmt.Sprintf("#%d insert %s[%d] <- %s", e.Seq, e.Path, e.Index, value.MustCanonical(e.Elem))
	case OpRemove:
		return fmt.Sprintf("#%d remove %s[%d]", e.Seq, e.Path, e.Index)
	case OpDelete, OpClear:
		return fmt.Sprintf("#%d %s %s", e.Seq, e.Op, e.Path)
	default:
		return fmt.Sprintf("#%d set %s <- %s", e.Seq, e.Path, value.MustCanonical(e.New))
	}
}

// Log is the append-only Delta Log of one transaction.
type Log struct {
	entries []Entry
}

// Append stamps e with the next sequence number and records it.
func (l *Log) Append(e Entry) Entry {
	e.Seq = len(l.entries) + 1
	l.entries = append(l.entries, e)
	return e
}

// Len returns the number of recorded entries.
func (l *Log) Len() int {
	return len(l.entries)
}

// Entries returns a copy of the recorded entries in order.
func (l *Log) Entries() []Entry {
	return slices.Clone(l.entries)
}

// Fields returns the distinct fields touched by the log, sorted.
func (l *Log) Fields() []path.FieldKey {
	var keys []path.FieldKey
	for _, e := range l.entries {
		if !slices.Contains(keys, e.Path.Key()) {
			keys = append(keys, e.Path.Key())
		}
	}
	slices.SortFunc(keys, path.CompareKeys)
	return keys
}

// Replay applies, in order, every entry that targets key on top of root.
func (l *Log) Replay(key path.FieldKey, root value.Value) (value.Value, error) {
	cur := root
	for _, e := range l.entries {
		if e.Path.Key() != key {
			continue
		}
		next, err := e.Apply(cur)
		if err != nil {
			return nil, fmt.Errorf("replay entry %d on %s: %w", e.Seq, e.Path, err)
		}
		cur = next
	}
	return cur, nil
}
