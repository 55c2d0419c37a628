// Package engine runs registered processes against a State Record.
//
// Each Run opens one transaction, hands the process body a Guard bound to
// the process's contract, and then either commits the transaction's Delta
// Log atomically or rolls it back. Real state changes only inside a commit.
//
// CONCURRENCY:
//
// Run is safe from any goroutine. Process bodies accumulate changes in
// their own Delta Log without any shared lock. Commits lock the fields
// they touch, in sorted order, for the conflict-check-and-apply pass, so
// commits on disjoint fields run in parallel and commits on overlapping
// fields serialize. The conflict check rejects a commit whose recorded
// prior values no longer match real state.
//
// ERRORS:
//
//   - body error, panic, or contract violation: rollback, then
//     ProcessExecutionError wrapping the cause
//   - commit conflict: ConflictError, returned as-is, state already restored
//   - unknown process name: UnknownProcessError, no transaction opened
//
// NESTING:
//
// A body that calls Run opens an independent transaction which commits or
// rolls back on its own, before the outer one does. Depth is capped by
// WithMaxDepth.
package engine
