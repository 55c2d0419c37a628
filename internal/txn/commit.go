package txn

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/pop/internal/poperr"
	"github.com/roach88/pop/internal/state"
	"github.com/roach88/pop/internal/value"
)

// Commit applies the Delta Log to real state atomically.
//
// The union of touched fields is write-locked for the whole
// check-and-apply pass. For each entry, in recorded order, the real value
// at the entry path must still equal the entry's prior (presence
// included). On the first mismatch every entry already applied in this pass
// is reverted in reverse order, the transaction rolls back, and a
// ConflictError is returned; real state is then exactly what it was before
// Commit was called.
//
// A poisoned transaction never reaches the apply pass: Commit rolls it back
// and returns the poisoning error.
func (t *Transaction) Commit(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status != Open {
		return fmt.Errorf("commit %s (%s): %w", t.id, t.status, ErrNotOpen)
	}
	if t.poison != nil {
		t.status = RolledBack
		t.reason = t.poison.Error()
		return t.poison
	}
	if err := ctx.Err(); err != nil {
		t.status = RolledBack
		t.reason = err.Error()
		return err
	}

	entries := t.log.entries
	if len(entries) == 0 {
		t.status = Committed
		return nil
	}

	region, err := t.record.Lock(t.log.Fields())
	if err != nil {
		t.status = RolledBack
		t.reason = err.Error()
		return err
	}
	defer region.Release()

	for i, e := range entries {
		if err := t.applyEntry(region, e); err != nil {
			if rerr := revert(region, entries[:i]); rerr != nil {
				err = errors.Join(err, rerr)
			}
			t.status = RolledBack
			t.reason = err.Error()
			return err
		}
	}
	t.status = Committed
	return nil
}

func (t *Transaction) applyEntry(region *state.Region, e Entry) error {
	cur, exists, err := region.Get(e.Path)
	if err != nil || exists != e.PriorExists || (exists && !value.Equal(cur, e.Prior)) {
		return t.conflict(e, cur, exists)
	}
	root, err := region.Root(e.Path.Key())
	if err != nil {
		return err
	}
	next, err := e.Apply(root)
	if err != nil {
		return t.conflict(e, cur, exists)
	}
	return region.Replace(e.Path.Key(), next)
}

func (t *Transaction) conflict(e Entry, actual value.Value, exists bool) error {
	ce := &poperr.ConflictError{
		TxID:    t.id,
		Process: t.process,
		Path:    e.Path.String(),
		Seq:     e.Seq,
	}
	if e.PriorExists {
		ce.Expected = e.Prior
	}
	if exists {
		ce.Actual = actual
	}
	return ce
}

// revert undoes applied entries, last first, from their stored priors.
func revert(region *state.Region, applied []Entry) error {
	for i := len(applied) - 1; i >= 0; i-- {
		e := applied[i]
		root, err := region.Root(e.Path.Key())
		if err != nil {
			return err
		}
		prev, err := e.Revert(root)
		if err != nil {
			return fmt.Errorf("revert entry %d on %s: %w", e.Seq, e.Path, err)
		}
		if err := region.Replace(e.Path.Key(), prev); err != nil {
			return err
		}
	}
	return nil
}
