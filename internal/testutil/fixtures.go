package testutil

import (
	"testing"

	"github.com/roach88/pop/internal/state"
	"github.com/roach88/pop/internal/value"
)

// CounterSnapshot is the two-field record most engine tests start from.
func CounterSnapshot() value.Map {
	return value.Map{
		"global": value.Map{"counter": value.Int(0)},
		"domain": value.Map{"items": value.List{}},
	}
}

// NewCounterRecord builds a Record holding CounterSnapshot.
func NewCounterRecord(t testing.TB) *state.Record {
	t.Helper()
	r, err := state.FromSnapshot(CounterSnapshot())
	if err != nil {
		t.Fatalf("counter record: %v", err)
	}
	return r
}

// InventorySpec is a small CUE spec with a bounded add process.
const InventorySpec = `scope: global: counter: {kind: "int", default: 0}
scope: domain: items: {kind: "list", elem: {kind: "string"}}

process: add: {
	description: "Append an item while below the limit."
	inputs:  ["global.counter"]
	outputs: ["global.counter", "domain.items"]
	errors:  ["FULL"]
	steps: [
		{op: "assert", expr: "get(\"global.counter\") < 2", code: "FULL", message: "full"},
		{op: "append", path: "domain.items", expr: "args.item"},
		{op: "set", path: "global.counter", expr: "get(\"global.counter\") + 1"},
	]
	result: "get(\"global.counter\")"
}

process: reset: {
	outputs: ["global.counter", "domain.items"]
	steps: [
		{op: "clear", path: "domain.items"},
		{op: "set", path: "global.counter", expr: "0"},
	]
}
`
