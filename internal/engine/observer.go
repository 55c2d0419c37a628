package engine

import (
	"context"
	"time"

	"github.com/roach88/pop/internal/txn"
)

// Outcome describes one finished transaction.
type Outcome struct {
	TxID     string
	Epoch    int64
	Process  string
	Status   txn.Status
	Err      error
	Entries  []txn.Entry
	Started  time.Time
	Duration time.Duration

	// StateHash is the hash of the real state snapshot taken right after
	// the transaction finished.
	StateHash string
}

// Observer is notified after every transaction reaches a terminal state.
// Observers run on the goroutine that called Run, after the commit lock is
// released. An observer error is logged and never changes the outcome.
type Observer interface {
	TransactionFinished(ctx context.Context, o Outcome) error
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, o Outcome) error

// TransactionFinished implements Observer.
func (f ObserverFunc) TransactionFinished(ctx context.Context, o Outcome) error {
	return f(ctx, o)
}
