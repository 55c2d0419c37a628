package value

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueSealed(t *testing.T) {
	var _ Value = Null{}
	var _ Value = String("test")
	var _ Value = Int(42)
	var _ Value = Bool(true)
	var _ Value = List{String("a"), Int(1)}
	var _ Value = Map{"key": String("value")}
}

func TestMapSortedKeysRFC8785Order(t *testing.T) {
	m := Map{
		"a":  Int(1),
		"A":  Int(2),
		"aa": Int(3),
		"aA": Int(4),
		"Aa": Int(5),
		"AA": Int(6),
	}

	assert.Equal(t, []string{"A", "AA", "Aa", "a", "aA", "aa"}, m.SortedKeys())
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		v    Value
		want Kind
	}{
		{nil, KindNull},
		{Null{}, KindNull},
		{String("x"), KindString},
		{Int(1), KindInt},
		{Bool(false), KindBool},
		{List{}, KindList},
		{Map{}, KindMap},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, KindOf(tt.v))
	}
	assert.True(t, IsContainer(List{}))
	assert.False(t, IsContainer(Int(0)))
}

func TestCloneIsDeep(t *testing.T) {
	orig := Map{
		"items": List{String("a"), Map{"n": Int(1)}},
	}

	cp := Clone(orig).(Map)
	cp["items"].(List)[0] = String("changed")
	cp["items"].(List)[1].(Map)["n"] = Int(99)

	assert.Equal(t, String("a"), orig["items"].(List)[0])
	assert.Equal(t, Int(1), orig["items"].(List)[1].(Map)["n"])
}

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"same ints", Int(1), Int(1), true},
		{"different ints", Int(1), Int(2), false},
		{"int vs string", Int(1), String("1"), false},
		{"nil equals null", nil, Null{}, true},
		{"lists equal", List{Int(1), String("x")}, List{Int(1), String("x")}, true},
		{"lists differ in length", List{Int(1)}, List{Int(1), Int(2)}, false},
		{"lists differ in order", List{Int(1), Int(2)}, List{Int(2), Int(1)}, false},
		{"maps equal", Map{"a": Int(1)}, Map{"a": Int(1)}, true},
		{"maps differ in key", Map{"a": Int(1)}, Map{"b": Int(1)}, false},
		{"nested", Map{"l": List{Map{"x": Bool(true)}}}, Map{"l": List{Map{"x": Bool(true)}}}, true},
		{"empty list vs empty map", List{}, Map{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Equal(tt.a, tt.b))
		})
	}
}

func TestFromAny(t *testing.T) {
	t.Run("nested plain values", func(t *testing.T) {
		v, err := FromAny(map[string]any{
			"name":  "cart",
			"count": 3,
			"tags":  []any{"a", int64(2), true, nil},
		})
		require.NoError(t, err)
		assert.Equal(t, Map{
			"name":  String("cart"),
			"count": Int(3),
			"tags":  List{String("a"), Int(2), Bool(true), Null{}},
		}, v)
	})

	t.Run("integral float accepted", func(t *testing.T) {
		v, err := FromAny(float64(4))
		require.NoError(t, err)
		assert.Equal(t, Int(4), v)
	})

	t.Run("fractional float rejected", func(t *testing.T) {
		_, err := FromAny(1.5)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "floats are not allowed")
	})

	t.Run("yaml style map keys", func(t *testing.T) {
		v, err := FromAny(map[any]any{"k": "v"})
		require.NoError(t, err)
		assert.Equal(t, Map{"k": String("v")}, v)

		_, err = FromAny(map[any]any{1: "v"})
		require.Error(t, err)
	})

	t.Run("unsupported type", func(t *testing.T) {
		_, err := FromAny(struct{}{})
		require.Error(t, err)
	})
}

func TestToAnyRoundTrip(t *testing.T) {
	orig := Map{
		"list": List{Int(1), String("two"), Null{}},
		"flag": Bool(true),
	}

	back, err := FromAny(ToAny(orig))
	require.NoError(t, err)
	assert.True(t, Equal(orig, back))
}

func TestUnmarshal(t *testing.T) {
	v, err := Unmarshal([]byte(`{"a":[1,2],"b":null}`))
	require.NoError(t, err)
	assert.Equal(t, Map{"a": List{Int(1), Int(2)}, "b": Null{}}, v)

	_, err = Unmarshal([]byte(`{"a":1.25}`))
	require.Error(t, err)
}

func TestMapJSONInterop(t *testing.T) {
	m := Map{"z": Int(1), "a": List{String("x")}}

	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Equal(t, `{"a":["x"],"z":1}`, string(data))

	var back Map
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, m, back)
}
