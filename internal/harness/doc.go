// Package harness runs conformance scenarios against a compiled spec.
//
// A scenario names a spec, optional setup steps that must succeed, a flow of
// process runs with expected outcomes, and assertions over the resulting
// transaction trace and final state.
//
// # Scenario Format
//
//	name: fill_inventory
//	description: "Adding past the limit is refused and rolled back"
//	spec: inventory.cue
//	setup:
//	  - process: reset
//	flow:
//	  - process: add
//	    args: {item: a}
//	    expect: {result: 1}
//	  - process: add
//	    args: {item: b}
//	  - process: add
//	    args: {item: c}
//	    expect: {code: FULL}
//	assertions:
//	  - type: trace_count
//	    process: add
//	    status: committed
//	    count: 2
//	  - type: final_state
//	    path: global.counter
//	    expect: 2
//
// The spec path is resolved relative to the scenario file.
//
// # Assertion Types
//
//   - trace_contains: a transaction of process (optionally with status and code) exists
//   - trace_order: the first transactions of the listed processes ran in that order
//   - trace_count: process ran exactly count times (optionally only with status)
//   - final_state: the value at path equals expect
//
// # Deterministic Testing
//
// Every run uses a fresh in-memory journal and sequential transaction IDs
// (tx-1, tx-2, ...), so the same scenario always yields the same trace and
// can be compared against a golden file.
package harness
