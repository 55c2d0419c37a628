package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pop/internal/compiler"
	"github.com/roach88/pop/internal/engine"
)

var _ engine.IDGenerator = (*SequentialIDs)(nil)

func TestSequentialIDs(t *testing.T) {
	g := NewSequentialIDs("")
	assert.Equal(t, "tx-1", g.Generate())
	assert.Equal(t, "tx-2", g.Generate())
	assert.Equal(t, 2, g.Issued())

	g.Reset()
	assert.Equal(t, "tx-1", g.Generate())
}

func TestSequentialIDsConcurrent(t *testing.T) {
	g := NewSequentialIDs("run")
	const n = 200

	var wg sync.WaitGroup
	ids := make(chan string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids <- g.Generate()
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[string]bool{}
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	assert.Len(t, seen, n)
}

func TestFixtures(t *testing.T) {
	r := NewCounterRecord(t)
	assert.Equal(t, CounterSnapshot(), r.Snapshot())

	spec, err := compiler.CompileString(InventorySpec, "inventory.cue")
	require.NoError(t, err)
	_, ok := spec.Process("add")
	assert.True(t, ok)
	assert.Empty(t, spec.Warnings)
}
