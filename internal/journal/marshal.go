package journal

import (
	"database/sql"
	"fmt"

	"github.com/roach88/pop/internal/value"
)

// marshalValue converts v to canonical JSON TEXT, or NULL when absent.
func marshalValue(v value.Value, present bool) (sql.NullString, error) {
	if !present || v == nil {
		return sql.NullString{}, nil
	}
	data, err := value.MarshalCanonical(v)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshal value: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// unmarshalValue parses canonical JSON TEXT. NULL yields nil.
func unmarshalValue(s sql.NullString) (value.Value, error) {
	if !s.Valid {
		return nil, nil
	}
	v, err := value.Unmarshal([]byte(s.String))
	if err != nil {
		return nil, fmt.Errorf("unmarshal value: %w", err)
	}
	return v, nil
}
