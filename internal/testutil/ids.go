// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"fmt"
	"sync"
)

// SequentialIDs hands out prefix-1, prefix-2, ... as transaction IDs.
//
// Unlike engine.FixedGenerator it never runs out, which suits tests whose
// transaction count depends on retries or workflow length. Reset makes the
// same scenario produce byte-identical journals on every run.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type SequentialIDs struct {
	mu     sync.Mutex
	prefix string
	seq    int
}

// NewSequentialIDs creates a generator whose first ID is prefix-1.
// An empty prefix defaults to "tx".
func NewSequentialIDs(prefix string) *SequentialIDs {
	if prefix == "" {
		prefix = "tx"
	}
	return &SequentialIDs{prefix: prefix}
}

// Generate implements engine.IDGenerator.
func (g *SequentialIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	return fmt.Sprintf("%s-%d", g.prefix, g.seq)
}

// Issued returns how many IDs have been handed out.
func (g *SequentialIDs) Issued() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.seq
}

// Reset starts the sequence over at prefix-1.
func (g *SequentialIDs) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq = 0
}
