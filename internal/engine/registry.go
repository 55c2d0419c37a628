package engine

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/roach88/pop/internal/contract"
	"github.com/roach88/pop/internal/poperr"
	"github.com/roach88/pop/internal/txn"
	"github.com/roach88/pop/internal/value"
)

// Func is a process body. It receives the Guard as its only handle on
// state and must not keep the guard or any proxy after it returns.
type Func func(ctx context.Context, g *txn.Guard, args value.Map) (any, error)

// Process is a registered (name, contract, body) triple.
type Process struct {
	Name        string
	Description string
	Contract    contract.Contract
	Func        Func
}

// ProcessOption configures a process at registration.
type ProcessOption func(*registration)

type registration struct {
	description string
	errors      []string
}

// WithErrors declares the error codes a process may raise.
func WithErrors(codes ...string) ProcessOption {
	return func(r *registration) {
		r.errors = append(r.errors, codes...)
	}
}

// WithDescription attaches a human-readable description.
func WithDescription(desc string) ProcessOption {
	return func(r *registration) {
		r.description = desc
	}
}

// Registry maps process names to processes. Each engine owns exactly one.
//
// Thread-safety: safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	procs map[string]Process
}

func newRegistry() *Registry {
	return &Registry{procs: make(map[string]Process)}
}

func (r *Registry) add(p Process) error {
	if p.Name == "" || strings.TrimSpace(p.Name) != p.Name {
		return &poperr.RegistrationError{Process: p.Name, Message: "name must be non-empty without surrounding spaces"}
	}
	if p.Func == nil {
		return &poperr.RegistrationError{Process: p.Name, Message: "process body is nil"}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.procs[p.Name]; exists {
		return &poperr.RegistrationError{Process: p.Name, Message: "already registered"}
	}
	r.procs[p.Name] = p
	return nil
}

// Lookup returns the process registered under name.
func (r *Registry) Lookup(name string) (Process, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.procs[name]
	return p, ok
}

// Names returns registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.procs))
	for name := range r.procs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
