package txn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pop/internal/path"
	"github.com/roach88/pop/internal/value"
)

func TestEntryApplyRevert(t *testing.T) {
	root := value.Map{"ann": value.Map{"age": value.Int(30)}}

	tests := []struct {
		name  string
		entry Entry
		want  value.Value
	}{
		{
			name: "set existing",
			entry: Entry{Path: path.MustParse("domain.users.ann.age"), Op: OpSet,
				Prior: value.Int(30), PriorExists: true, New: value.Int(31)},
			want: value.Map{"ann": value.Map{"age": value.Int(31)}},
		},
		{
			name:  "set new key",
			entry: Entry{Path: path.MustParse("domain.users.bob"), Op: OpSet, New: value.Map{}},
			want:  value.Map{"ann": value.Map{"age": value.Int(30)}, "bob": value.Map{}},
		},
		{
			name: "delete",
			entry: Entry{Path: path.MustParse("domain.users.ann"), Op: OpDelete,
				Prior: value.Map{"age": value.Int(30)}, PriorExists: true},
			want: value.Map{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			applied, err := tt.entry.Apply(root)
			require.NoError(t, err)
			assert.Equal(t, tt.want, applied)

			reverted, err := tt.entry.Revert(applied)
			require.NoError(t, err)
			assert.Equal(t, root, reverted)
		})
	}

	assert.Equal(t, value.Map{"ann": value.Map{"age": value.Int(30)}}, root, "root must not be mutated")
}

func TestLogReplayAndFields(t *testing.T) {
	var l Log
	e1 := l.Append(Entry{Path: path.MustParse("global.counter"), Op: OpSet, Prior: value.Int(0), PriorExists: true, New: value.Int(1)})
	e2 := l.Append(Entry{Path: path.MustParse("domain.data"), Op: OpAppend, Elem: value.String("x"),
		Prior: value.List{}, PriorExists: true, New: value.List{value.String("x")}})
	e3 := l.Append(Entry{Path: path.MustParse("global.counter"), Op: OpSet, Prior: value.Int(1), PriorExists: true, New: value.Int(2)})

	assert.Equal(t, 1, e1.Seq)
	assert.Equal(t, 2, e2.Seq)
	assert.Equal(t, 3, e3.Seq)
	assert.Equal(t, 3, l.Len())

	got, err := l.Replay(path.FieldKey{Scope: "global", Field: "counter"}, value.Int(0))
	require.NoError(t, err)
	assert.Equal(t, value.Int(2), got)

	assert.Equal(t, []path.FieldKey{
		{Scope: "domain", Field: "data"},
		{Scope: "global", Field: "counter"},
	}, l.Fields())

	entries := l.Entries()
	entries[0].Seq = 99
	assert.Equal(t, 1, l.Entries()[0].Seq, "Entries returns a copy")
}

func TestEntryString(t *testing.T) {
	e := Entry{Seq: 2, Path: path.MustParse("domain.data"), Op: OpInsert, Index: 1, Elem: value.String("x")}
	assert.Equal(t, `#2 insert domain.data[1] <- "x"`, e.String())

	e = Entry{Seq: 1, Path: path.MustParse("global.counter"), Op: OpSet, New: value.Int(5)}
	assert.Equal(t, "#1 set global.counter <- 5", e.String())
}
