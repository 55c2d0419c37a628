// Package contract compiles the read/write whitelist a process declares.
package contract

import (
	"fmt"
	"slices"

	"github.com/roach88/pop/internal/path"
	"github.com/roach88/pop/internal/poperr"
)

// Contract is the immutable access whitelist attached to a process at
// registration. A path is readable when covered by Inputs (or, outside
// strict mode, by Outputs) and writable when covered by Outputs.
type Contract struct {
	Inputs  []path.Path
	Outputs []path.Path

	// Errors lists the error codes the process declares it may raise.
	Errors []string
}

// Compile resolves every declared path against schema. Any path that does
// not resolve rejects the whole contract.
func Compile(process string, schema *path.Schema, inputs, outputs, errs []string) (Contract, error) {
	in, err := resolveAll(process, schema, "inputs", inputs)
	if err != nil {
		return Contract{}, err
	}
	out, err := resolveAll(process, schema, "outputs", outputs)
	if err != nil {
		return Contract{}, err
	}
	var codes []string
	for _, code := range errs {
		if code == "" {
			return Contract{}, &poperr.RegistrationError{Process: process, Message: "declared error code is empty"}
		}
		if !slices.Contains(codes, code) {
			codes = append(codes, code)
		}
	}
	return Contract{Inputs: in, Outputs: out, Errors: codes}, nil
}

func resolveAll(process string, schema *path.Schema, role string, raws []string) ([]path.Path, error) {
	out := make([]path.Path, 0, len(raws))
	for _, raw := range raws {
		p, err := schema.Resolve(raw)
		if err != nil {
			return nil, &poperr.RegistrationError{
				Process: process,
				Message: fmt.Sprintf("%s path %q", role, raw),
				Err:     err,
			}
		}
		out = append(out, p)
	}
	return out, nil
}

// Full returns a contract covering every field of schema for both reading
// and writing.
func Full(schema *path.Schema) Contract {
	var all []path.Path
	for _, key := range schema.FieldKeys() {
		all = append(all, path.Path{Scope: key.Scope, Field: key.Field})
	}
	return Contract{Inputs: all, Outputs: all}
}

// CanRead reports whether p may be read. In strict mode only Inputs grant
// reads.
func (c Contract) CanRead(p path.Path, strict bool) bool {
	if covered(c.Inputs, p) {
		return true
	}
	return !strict && covered(c.Outputs, p)
}

// CanWrite reports whether p may be written.
func (c Contract) CanWrite(p path.Path) bool {
	return covered(c.Outputs, p)
}

// Declares reports whether code is in the declared error list.
func (c Contract) Declares(code string) bool {
	return slices.Contains(c.Errors, code)
}

// Fields returns the distinct fields the contract may write, sorted.
func (c Contract) Fields() []path.FieldKey {
	var keys []path.FieldKey
	for _, p := range c.Outputs {
		if !slices.Contains(keys, p.Key()) {
			keys = append(keys, p.Key())
		}
	}
	slices.SortFunc(keys, path.CompareKeys)
	return keys
}

func covered(set []path.Path, p path.Path) bool {
	for _, allowed := range set {
		if allowed.Covers(p) {
			return true
		}
	}
	return false
}
