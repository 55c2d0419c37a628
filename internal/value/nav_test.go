package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTree() Map {
	return Map{
		"users": Map{
			"ann": Map{"age": Int(30), "tags": List{String("admin")}},
		},
		"queue": List{String("a"), String("b"), String("c")},
	}
}

func TestGetIn(t *testing.T) {
	root := sampleTree()

	t.Run("nested key", func(t *testing.T) {
		v, ok, err := GetIn(root, []Segment{KeySeg("users"), KeySeg("ann"), KeySeg("age")})
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, Int(30), v)
	})

	t.Run("index and numeric key", func(t *testing.T) {
		v, ok, err := GetIn(root, []Segment{KeySeg("queue"), IndexSeg(1)})
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, String("b"), v)

		v, ok, err = GetIn(root, []Segment{KeySeg("queue"), KeySeg("2")})
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, String("c"), v)
	})

	t.Run("missing is not an error", func(t *testing.T) {
		_, ok, err := GetIn(root, []Segment{KeySeg("users"), KeySeg("bob")})
		require.NoError(t, err)
		assert.False(t, ok)

		_, ok, err = GetIn(root, []Segment{KeySeg("queue"), IndexSeg(9)})
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("scalar traversal fails", func(t *testing.T) {
		_, _, err := GetIn(root, []Segment{KeySeg("users"), KeySeg("ann"), KeySeg("age"), KeySeg("x")})
		require.ErrorIs(t, err, ErrNotTraversable)
	})

	t.Run("key into list fails", func(t *testing.T) {
		_, _, err := GetIn(root, []Segment{KeySeg("queue"), KeySeg("first")})
		require.ErrorIs(t, err, ErrNotTraversable)
	})
}

func TestSetInCopiesPath(t *testing.T) {
	root := sampleTree()

	updated, err := SetIn(root, []Segment{KeySeg("users"), KeySeg("ann"), KeySeg("age")}, Int(31))
	require.NoError(t, err)

	got, _, err := GetIn(updated, []Segment{KeySeg("users"), KeySeg("ann"), KeySeg("age")})
	require.NoError(t, err)
	assert.Equal(t, Int(31), got)

	// Original untouched.
	assert.Equal(t, Int(30), root["users"].(Map)["ann"].(Map)["age"])

	// Siblings are shared, not copied.
	assert.Equal(t, root["queue"], updated.(Map)["queue"])
}

func TestSetInErrors(t *testing.T) {
	root := sampleTree()

	_, err := SetIn(root, []Segment{KeySeg("nobody"), KeySeg("age")}, Int(1))
	require.ErrorIs(t, err, ErrMissing)

	_, err = SetIn(root, []Segment{KeySeg("queue"), IndexSeg(3)}, String("d"))
	require.ErrorIs(t, err, ErrMissing)

	_, err = SetIn(root, []Segment{KeySeg("queue"), IndexSeg(0), KeySeg("x")}, Int(1))
	require.ErrorIs(t, err, ErrNotTraversable)
}

func TestSetInCreatesFinalKey(t *testing.T) {
	root := sampleTree()

	updated, err := SetIn(root, []Segment{KeySeg("users"), KeySeg("bob")}, Map{"age": Int(5)})
	require.NoError(t, err)
	assert.Len(t, updated.(Map)["users"].(Map), 2)
	assert.Len(t, root["users"].(Map), 1)
}

func TestDeleteIn(t *testing.T) {
	root := sampleTree()

	updated, err := DeleteIn(root, []Segment{KeySeg("queue"), IndexSeg(0)})
	require.NoError(t, err)
	assert.Equal(t, List{String("b"), String("c")}, updated.(Map)["queue"])
	assert.Len(t, root["queue"].(List), 3)

	updated, err = DeleteIn(root, []Segment{KeySeg("users"), KeySeg("ann")})
	require.NoError(t, err)
	assert.Empty(t, updated.(Map)["users"].(Map))

	same, err := DeleteIn(root, []Segment{KeySeg("users"), KeySeg("ghost")})
	require.NoError(t, err)
	assert.True(t, Equal(root, same))
}

func TestFormatSegments(t *testing.T) {
	segs := []Segment{KeySeg("users"), KeySeg("ann"), KeySeg("tags"), IndexSeg(0)}
	assert.Equal(t, "users.ann.tags[0]", FormatSegments(segs))
}
