package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/pop/internal/engine"
	"github.com/roach88/pop/internal/poperr"
	"github.com/roach88/pop/internal/txn"
)

var _ engine.Observer = (*Journal)(nil)

// TransactionFinished implements engine.Observer by recording o.
func (j *Journal) TransactionFinished(ctx context.Context, o engine.Outcome) error {
	return j.Record(ctx, o)
}

// Record writes a finished transaction and its entries in one SQL
// transaction. Recording the same transaction ID twice is a no-op.
func (j *Journal) Record(ctx context.Context, o engine.Outcome) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin journal write: %w", err)
	}
	defer tx.Rollback()

	var errText, errCode sql.NullString
	if o.Err != nil {
		errText = sql.NullString{String: o.Err.Error(), Valid: true}
		errCode = sql.NullString{String: poperr.ReportCode(o.Err), Valid: true}
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO transactions
			(id, epoch, process, status, error, error_code, entry_count, state_hash, started_at, duration_us)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		o.TxID,
		o.Epoch,
		o.Process,
		o.Status.String(),
		errText,
		errCode,
		len(o.Entries),
		o.StateHash,
		o.Started.UTC().Format(time.RFC3339Nano),
		o.Duration.Microseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert transaction %s: %w", o.TxID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil
	}

	for _, e := range o.Entries {
		if err := insertEntry(ctx, tx, o.TxID, e); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit journal write: %w", err)
	}
	return nil
}

func insertEntry(ctx context.Context, tx *sql.Tx, txID string, e txn.Entry) error {
	elem, err := marshalValue(e.Elem, e.Elem != nil)
	if err != nil {
		return fmt.Errorf("entry %d elem: %w", e.Seq, err)
	}
	prior, err := marshalValue(e.Prior, e.PriorExists)
	if err != nil {
		return fmt.Errorf("entry %d prior: %w", e.Seq, err)
	}
	next, err := marshalValue(e.New, e.Op != txn.OpDelete)
	if err != nil {
		return fmt.Errorf("entry %d new: %w", e.Seq, err)
	}

	var idx sql.NullInt64
	if e.Op == txn.OpInsert || e.Op == txn.OpRemove {
		idx = sql.NullInt64{Int64: int64(e.Index), Valid: true}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO entries (tx_id, seq, path, op, idx, elem, prior, new_value)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, txID, e.Seq, e.Path.String(), string(e.Op), idx, elem, prior, next)
	if err != nil {
		return fmt.Errorf("insert entry %s#%d: %w", txID, e.Seq, err)
	}
	return nil
}
