package path

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pop/internal/poperr"
	"github.com/roach88/pop/internal/value"
)

func testSchema(t *testing.T) *Schema {
	t.Helper()
	s := NewSchema()
	require.NoError(t, s.AddField("global", "counter", FieldSpec{Kind: value.KindInt}))
	require.NoError(t, s.AddField("domain", "data", FieldSpec{Kind: value.KindList, Elem: &FieldSpec{Kind: value.KindString}}))
	require.NoError(t, s.AddField("domain", "users", FieldSpec{Kind: value.KindMap, Elem: &FieldSpec{Kind: value.KindMap}}))
	require.NoError(t, s.AddField("domain", "blob", FieldSpec{Kind: value.KindAny}))
	return s
}

func TestResolveValid(t *testing.T) {
	s := testSchema(t)

	tests := []struct {
		raw  string
		want string
	}{
		{"global.counter", "global.counter"},
		{"domain.data[1]", "domain.data[1]"},
		{"domain.data.1", "domain.data[1]"},
		{"domain.users.ann", "domain.users.ann"},
		{"domain.users.ann.age", "domain.users.ann.age"},
		{"domain.blob.x[3].y", "domain.blob.x[3].y"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			p, err := s.Resolve(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.String())
		})
	}
}

func TestResolveInvalid(t *testing.T) {
	s := testSchema(t)

	tests := []struct {
		raw    string
		reason string
	}{
		{"local.counter", `unknown scope "local"`},
		{"global.missing", `has no field "missing"`},
		{"global.counter.x", "has no members"},
		{"domain.data.first", "is not an index"},
		{"domain.data[0].x", "has no members"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			_, err := s.Resolve(tt.raw)
			require.Error(t, err)
			assert.True(t, poperr.IsInvalidPath(err))
			assert.Contains(t, err.Error(), tt.reason)
		})
	}
}

func TestAddFieldRejects(t *testing.T) {
	s := NewSchema()

	require.Error(t, s.AddField("", "x", FieldSpec{Kind: value.KindInt}))
	require.Error(t, s.AddField("g", "a.b", FieldSpec{Kind: value.KindInt}))
	require.Error(t, s.AddField("g", "x", FieldSpec{Kind: "float"}))
	require.Error(t, s.AddField("g", "x", FieldSpec{Kind: value.KindInt, Elem: &FieldSpec{Kind: value.KindInt}}))

	require.NoError(t, s.AddField("g", "x", FieldSpec{Kind: value.KindInt}))
	require.Error(t, s.AddField("g", "x", FieldSpec{Kind: value.KindInt}), "duplicate field")
}

func TestInfer(t *testing.T) {
	snap := value.Map{
		"global": value.Map{"counter": value.Int(0), "note": value.Null{}},
		"domain": value.Map{"data": value.List{}},
	}

	s, err := Infer(snap)
	require.NoError(t, err)
	assert.Equal(t, []string{"domain", "global"}, s.Scopes())
	assert.Equal(t, []string{"counter", "note"}, s.Fields("global"))

	spec, ok := s.Field("global", "counter")
	require.True(t, ok)
	assert.Equal(t, value.KindInt, spec.Kind)

	spec, ok = s.Field("global", "note")
	require.True(t, ok)
	assert.Equal(t, value.KindAny, spec.Kind)

	assert.Equal(t, []FieldKey{
		{Scope: "domain", Field: "data"},
		{Scope: "global", Field: "counter"},
		{Scope: "global", Field: "note"},
	}, s.FieldKeys())

	_, err = Infer(value.Map{"global": value.Int(1)})
	require.Error(t, err)
}

func TestSpecAt(t *testing.T) {
	s := testSchema(t)

	spec, ok := s.SpecAt(s.MustResolve("domain.data[0]"))
	require.True(t, ok)
	assert.Equal(t, value.KindString, spec.Kind)

	spec, ok = s.SpecAt(s.MustResolve("domain.users.ann.age"))
	require.True(t, ok)
	assert.Equal(t, value.KindAny, spec.Kind)

	_, ok = s.SpecAt(MustParse("nope.x"))
	assert.False(t, ok)
}
