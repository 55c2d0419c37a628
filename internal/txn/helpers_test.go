package txn

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/pop/internal/contract"
	"github.com/roach88/pop/internal/path"
	"github.com/roach88/pop/internal/state"
	"github.com/roach88/pop/internal/value"
)

func newRecord(t *testing.T) *state.Record {
	t.Helper()
	s := path.NewSchema()
	require.NoError(t, s.AddField("global", "counter", path.FieldSpec{Kind: value.KindInt}))
	require.NoError(t, s.AddField("global", "label", path.FieldSpec{Kind: value.KindString}))
	require.NoError(t, s.AddField("domain", "data", path.FieldSpec{Kind: value.KindList, Elem: &path.FieldSpec{Kind: value.KindString}}))
	require.NoError(t, s.AddField("domain", "users", path.FieldSpec{Kind: value.KindMap}))
	require.NoError(t, s.AddField("domain", "matrix", path.FieldSpec{Kind: value.KindList}))

	r, err := state.New(s, value.Map{
		"domain": value.Map{
			"users":  value.Map{"ann": value.Map{"age": value.Int(30)}},
			"matrix": value.List{value.List{value.Int(1), value.Int(2)}},
		},
	})
	require.NoError(t, err)
	return r
}

func open(t *testing.T, r *state.Record, epoch int64) *Transaction {
	t.Helper()
	return Begin(r, "tx-test", epoch, "test")
}

func guardFor(t *testing.T, tx *Transaction, inputs, outputs []string) *Guard {
	t.Helper()
	c, err := contract.Compile("test", tx.Record().Schema(), inputs, outputs, nil)
	require.NoError(t, err)
	return NewGuard(tx, c, false)
}

func fullGuard(tx *Transaction) *Guard {
	return NewGuard(tx, contract.Full(tx.Record().Schema()), false)
}
