// Package txn implements the per-invocation transaction: its Delta Log,
// the Guard a process body receives, the proxies that stand in for nested
// containers, and the commit/rollback engine that applies or discards the
// log against the real State Record.
//
// Nothing in this package mutates real state outside Commit.
package txn

import (
	"errors"
	"fmt"
	"sync"

	"github.com/roach88/pop/internal/path"
	"github.com/roach88/pop/internal/poperr"
	"github.com/roach88/pop/internal/state"
	"github.com/roach88/pop/internal/value"
)

// ErrNotOpen is returned by Commit on a transaction that already finished.
var ErrNotOpen = errors.New("transaction is not open")

// Status is a transaction's lifecycle state.
type Status int

const (
	Open Status = iota
	Committed
	RolledBack
)

func (s Status) String() string {
	switch s {
	case Open:
		return "open"
	case Committed:
		return "committed"
	case RolledBack:
		return "rolled_back"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Transaction owns one Delta Log for one process invocation.
//
// Thread-safety: all methods are safe for concurrent use, though a
// transaction normally lives on the goroutine running its process body.
type Transaction struct {
	id      string
	epoch   int64
	process string
	record  *state.Record

	mu     sync.Mutex
	status Status
	log    Log
	poison error
	reason string

	// base pins each field's committed root at its first access. Reads and
	// entry priors are computed from it, so a commit by another
	// transaction after that access surfaces as a conflict here.
	base map[path.FieldKey]value.Value
}

// Begin opens a transaction against record. epoch must be unique per
// transaction within an engine; it tags every guard and proxy derived
// from the transaction.
func Begin(record *state.Record, id string, epoch int64, process string) *Transaction {
	return &Transaction{
		id:      id,
		epoch:   epoch,
		process: process,
		record:  record,
		status:  Open,
		base:    make(map[path.FieldKey]value.Value),
	}
}

// ID returns the transaction identifier.
func (t *Transaction) ID() string { return t.id }

// Epoch returns the epoch the transaction was opened at.
func (t *Transaction) Epoch() int64 { return t.epoch }

// Process returns the name of the process the transaction runs for.
func (t *Transaction) Process() string { return t.process }

// Record returns the State Record the transaction targets.
func (t *Transaction) Record() *state.Record { return t.record }

// Status returns the current lifecycle state.
func (t *Transaction) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Reason returns why the transaction rolled back, if it did.
func (t *Transaction) Reason() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reason
}

// Entries returns a copy of the Delta Log.
func (t *Transaction) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.log.Entries()
}

// Fields returns the fields the Delta Log touches.
func (t *Transaction) Fields() []path.FieldKey {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.log.Fields()
}

// Poison marks the transaction for rollback. Only the first error is kept.
func (t *Transaction) Poison(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.poison == nil && t.status == Open {
		t.poison = err
	}
}

// Poisoned returns the error that poisoned the transaction, if any.
func (t *Transaction) Poisoned() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.poison
}

// Rollback abandons the Delta Log. Real state was never touched outside
// Commit, so nothing needs restoring. Rolling back twice is a no-op;
// rolling back a committed transaction is an error.
func (t *Transaction) Rollback(reason string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch t.status {
	case RolledBack:
		return nil
	case Committed:
		return fmt.Errorf("rollback %s: %w", t.id, ErrNotOpen)
	}
	t.status = RolledBack
	t.reason = reason
	return nil
}

// live fails with StaleReferenceError unless the transaction is open and
// epoch matches it.
func (t *Transaction) live(epoch int64, at string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.liveLocked(epoch, at)
}

func (t *Transaction) liveLocked(epoch int64, at string) error {
	if t.status != Open || epoch != t.epoch {
		return &poperr.StaleReferenceError{TxID: t.id, Path: at, State: t.status.String()}
	}
	return nil
}

// Apparent returns the value at p as this transaction sees it: the field's
// root as first observed by the transaction, with the transaction's own
// entries for that field replayed on top.
func (t *Transaction) Apparent(p path.Path) (value.Value, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.liveLocked(t.epoch, p.String()); err != nil {
		return nil, false, err
	}
	root, err := t.apparentRoot(p.Key())
	if err != nil {
		return nil, false, err
	}
	return value.GetIn(root, p.Rest)
}

func (t *Transaction) apparentRoot(key path.FieldKey) (value.Value, error) {
	root, ok := t.base[key]
	if !ok {
		var err error
		if root, err = t.record.Root(key); err != nil {
			return nil, err
		}
		t.base[key] = root
	}
	return t.log.Replay(key, root)
}

// change computes an entry from the apparent value at p and records it.
// build receives the prior value and whether it exists and fills in Op,
// New, Elem and Index. The entry is checked against the apparent root
// before it is appended, so a recorded entry always replays.
func (t *Transaction) change(epoch int64, p path.Path, build func(prior value.Value, exists bool) (Entry, error)) (Entry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.liveLocked(epoch, p.String()); err != nil {
		return Entry{}, err
	}
	root, err := t.apparentRoot(p.Key())
	if err != nil {
		return Entry{}, err
	}
	prior, exists, err := value.GetIn(root, p.Rest)
	if err != nil {
		return Entry{}, fmt.Errorf("%s: %w", p, err)
	}
	e, err := build(prior, exists)
	if err != nil {
		return Entry{}, fmt.Errorf("%s: %w", p, err)
	}
	e.Path = p
	e.Prior = prior
	e.PriorExists = exists
	if _, err := e.Apply(root); err != nil {
		return Entry{}, fmt.Errorf("%s: %w", p, err)
	}
	return t.log.Append(e), nil
}
