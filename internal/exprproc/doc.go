// Package exprproc builds process bodies from declarative step lists.
//
// A Definition names a process, its contract paths and an ordered list of
// steps. Each step evaluates an expr-lang expression and applies one
// mutation through the process's Guard, so contract checks and the Delta
// Log behave exactly as they do for hand-written bodies.
//
// Expressions see:
//
//	args          the run arguments as plain Go values
//	get(path)     the value at path (read through the Guard)
//	has(path)     whether a value exists at path
//
// Paths may embed expressions in braces, e.g. "domain.users.{args.name}".
package exprproc
