package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/pop/internal/value"
)

// TxRecord is a journaled transaction.
type TxRecord struct {
	ID         string
	Epoch      int64
	Process    string
	Status     string
	Error      string
	ErrorCode  string
	EntryCount int
	StateHash  string
	StartedAt  time.Time
	Duration   time.Duration
}

// EntryRecord is a journaled Delta Entry. Values are decoded from
// canonical JSON; a nil Prior means the path did not exist before.
type EntryRecord struct {
	Seq   int
	Path  string
	Op    string
	Index *int
	Elem  value.Value
	Prior value.Value
	New   value.Value
}

// Filter narrows List. Zero values match everything.
type Filter struct {
	Process string
	Status  string
	Limit   int
}

// List returns journaled transactions ordered by epoch, then ID.
// Returns an empty slice (not nil) when nothing matches.
func (j *Journal) List(ctx context.Context, f Filter) ([]TxRecord, error) {
	query := `
		SELECT id, epoch, process, status, error, error_code, entry_count, state_hash, started_at, duration_us
		FROM transactions
		WHERE (? = '' OR process = ?) AND (? = '' OR status = ?)
		ORDER BY epoch ASC, id COLLATE BINARY ASC
	`
	args := []any{f.Process, f.Process, f.Status, f.Status}
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	out := []TxRecord{}
	for rows.Next() {
		rec, err := scanTx(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

// Get returns one journaled transaction by ID.
func (j *Journal) Get(ctx context.Context, id string) (TxRecord, bool, error) {
	row := j.db.QueryRowContext(ctx, `
		SELECT id, epoch, process, status, error, error_code, entry_count, state_hash, started_at, duration_us
		FROM transactions
		WHERE id = ?
	`, id)
	rec, err := scanTx(row)
	if err == sql.ErrNoRows {
		return TxRecord{}, false, nil
	}
	if err != nil {
		return TxRecord{}, false, err
	}
	return rec, true, nil
}

// Entries returns the Delta Log of one transaction in sequence order.
func (j *Journal) Entries(ctx context.Context, txID string) ([]EntryRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT seq, path, op, idx, elem, prior, new_value
		FROM entries
		WHERE tx_id = ?
		ORDER BY seq ASC
	`, txID)
	if err != nil {
		return nil, fmt.Errorf("query entries for %s: %w", txID, err)
	}
	defer rows.Close()

	out := []EntryRecord{}
	for rows.Next() {
		var (
			e                  EntryRecord
			idx                sql.NullInt64
			elem, prior, fresh sql.NullString
		)
		if err := rows.Scan(&e.Seq, &e.Path, &e.Op, &idx, &elem, &prior, &fresh); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		if idx.Valid {
			i := int(idx.Int64)
			e.Index = &i
		}
		if e.Elem, err = unmarshalValue(elem); err != nil {
			return nil, err
		}
		if e.Prior, err = unmarshalValue(prior); err != nil {
			return nil, err
		}
		if e.New, err = unmarshalValue(fresh); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTx(s scanner) (TxRecord, error) {
	var (
		rec            TxRecord
		errText, code  sql.NullString
		started        string
		durationMicros int64
	)
	err := s.Scan(&rec.ID, &rec.Epoch, &rec.Process, &rec.Status, &errText, &code,
		&rec.EntryCount, &rec.StateHash, &started, &durationMicros)
	if err == sql.ErrNoRows {
		return TxRecord{}, err
	}
	if err != nil {
		return TxRecord{}, fmt.Errorf("scan transaction: %w", err)
	}
	rec.Error = errText.String
	rec.ErrorCode = code.String
	rec.Duration = time.Duration(durationMicros) * time.Microsecond
	if rec.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
		return TxRecord{}, fmt.Errorf("parse started_at %q: %w", started, err)
	}
	return rec, nil
}
