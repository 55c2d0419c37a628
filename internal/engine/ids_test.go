package engine

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pop/internal/txn"
)

func TestUUIDv7Generator_ValidFormat(t *testing.T) {
	id := UUIDv7Generator{}.Generate()

	assert.Len(t, id, 36)
	assert.Regexp(t, `^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`, id)

	parsed, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
}

func TestUUIDv7Generator_Concurrent(t *testing.T) {
	gen := UUIDv7Generator{}
	const goroutines = 100

	ids := make(chan string, goroutines)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids <- gen.Generate()
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		require.False(t, seen[id], "duplicate id generated")
		seen[id] = true
	}
	assert.Len(t, seen, goroutines)
}

func TestFixedGenerator_Sequential(t *testing.T) {
	gen := NewFixedGenerator("tx-1", "tx-2")

	assert.Equal(t, "tx-1", gen.Generate())
	assert.Equal(t, "tx-2", gen.Generate())
	assert.Panics(t, func() { gen.Generate() }, "should panic when all ids exhausted")
}

func TestFixedGenerator_Empty(t *testing.T) {
	assert.Panics(t, func() { NewFixedGenerator().Generate() })
}

func TestEngine_TransactionIDsFromGenerator(t *testing.T) {
	var seen []string
	e := newTestEngine(t,
		WithIDGenerator(NewFixedGenerator("tx-a", "tx-b")),
		WithObserver(ObserverFunc(func(_ context.Context, o Outcome) error {
			seen = append(seen, o.TxID)
			return nil
		})),
	)
	registerIncrement(t, e)

	_, err := e.Run(context.Background(), "increment", nil)
	require.NoError(t, err)
	require.NoError(t, e.Edit(context.Background(), func(context.Context, *txn.Guard) error { return nil }))

	assert.Equal(t, []string{"tx-a", "tx-b"}, seen)
}
