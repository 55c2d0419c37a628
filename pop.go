// Package pop runs contract-guarded processes against a shared State Record.
//
// A State Record is a fixed set of scopes and fields. Processes declare the
// paths they read (inputs), write (outputs) and the error codes they may
// raise; the engine runs each one in its own transaction, checks every access
// against that contract, and commits the buffered changes atomically or rolls
// them back.
//
//	e, _ := pop.New(pop.Map{
//		"global": pop.Map{"counter": pop.Int(0)},
//	})
//	_ = e.Register("increment", []string{"global.counter"}, []string{"global.counter"},
//		func(ctx context.Context, g *pop.Guard, args pop.Map) (any, error) {
//			n, err := g.Int("global.counter")
//			if err != nil {
//				return nil, err
//			}
//			return n + 1, g.Write("global.counter", n+1)
//		})
//	out, err := e.Run(ctx, "increment", nil)
package pop

import (
	"github.com/roach88/pop/internal/compiler"
	"github.com/roach88/pop/internal/engine"
	"github.com/roach88/pop/internal/journal"
	"github.com/roach88/pop/internal/path"
	"github.com/roach88/pop/internal/poperr"
	"github.com/roach88/pop/internal/state"
	"github.com/roach88/pop/internal/txn"
	"github.com/roach88/pop/internal/value"
	"github.com/roach88/pop/internal/workflow"
)

// Values.
type (
	Value  = value.Value
	Null   = value.Null
	String = value.String
	Int    = value.Int
	Bool   = value.Bool
	List   = value.List
	Map    = value.Map
	Kind   = value.Kind
)

// Schema and paths.
type (
	Schema    = path.Schema
	FieldSpec = path.FieldSpec
	Path      = path.Path
)

// Engine surface.
type (
	Engine        = engine.Engine
	Option        = engine.Option
	ProcessOption = engine.ProcessOption
	Func          = engine.Func
	Observer      = engine.Observer
	Outcome       = engine.Outcome
	Guard         = txn.Guard
	ListProxy     = txn.ListProxy
	MapProxy      = txn.MapProxy
	Record        = state.Record
)

// Errors.
type (
	InvalidPathError      = poperr.InvalidPathError
	AccessViolationError  = poperr.AccessViolationError
	ConflictError         = poperr.ConflictError
	StaleReferenceError   = poperr.StaleReferenceError
	ProcessExecutionError = poperr.ProcessExecutionError
	RegistrationError     = poperr.RegistrationError
	UnknownProcessError   = poperr.UnknownProcessError
	ProcessError          = poperr.ProcessError
)

// Declarative specs, workflows and the commit journal.
type (
	Spec     = compiler.Spec
	Workflow = workflow.Workflow
	Journal  = journal.Journal
)

// Engine options.
var (
	WithStrictMode     = engine.WithStrictMode
	WithLogger         = engine.WithLogger
	WithObserver       = engine.WithObserver
	WithIDGenerator    = engine.WithIDGenerator
	WithMaxDepth       = engine.WithMaxDepth
	WithMeterProvider  = engine.WithMeterProvider
	WithTracerProvider = engine.WithTracerProvider
	WithMetrics        = engine.WithMetrics
	WithErrors         = engine.WithErrors
	WithDescription    = engine.WithDescription
)

// Error helpers.
var (
	Raise              = poperr.Raise
	RaisedCode         = poperr.RaisedCode
	IsConflict         = poperr.IsConflict
	IsAccessViolation  = poperr.IsAccessViolation
	IsStale            = poperr.IsStale
	IsInvalidPath      = poperr.IsInvalidPath
	IsProcessExecution = poperr.IsProcessExecution
)

// Loading.
var (
	NewSchema    = path.NewSchema
	LoadSpec     = compiler.Load
	LoadWorkflow = workflow.Load
	OpenJournal  = journal.Open
	Execute      = workflow.Execute
)

// New builds an engine over a State Record whose schema is inferred from
// initial: every scope and field present becomes declared, with the kind of
// its starting value.
func New(initial Map, opts ...Option) (*Engine, error) {
	record, err := state.FromSnapshot(initial)
	if err != nil {
		return nil, err
	}
	return engine.New(record, opts...)
}

// NewWithSchema builds an engine over a State Record declared by schema.
// Fields missing from initial take their default or zero value.
func NewWithSchema(schema *Schema, initial Map, opts ...Option) (*Engine, error) {
	record, err := state.New(schema, initial)
	if err != nil {
		return nil, err
	}
	return engine.New(record, opts...)
}
