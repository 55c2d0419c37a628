// Package compiler turns a CUE spec file into a State Record schema,
// initial values and expression process definitions.
//
// A spec looks like:
//
//	scope: global: counter: {kind: "int", default: 0}
//	scope: domain: items: {kind: "list", elem: {kind: "string"}}
//
//	initial: domain: items: ["seed"]
//
//	process: add_item: {
//		inputs:  ["global.counter"]
//		outputs: ["global.counter", "domain.items"]
//		errors:  ["FULL"]
//		steps: [
//			{op: "assert", expr: "get(\"global.counter\") < 10", code: "FULL"},
//			{op: "append", path: "domain.items", expr: "args.item"},
//			{op: "set", path: "global.counter", expr: "get(\"global.counter\") + 1"},
//		]
//		result: "get(\"global.counter\")"
//	}
package compiler

import (
	"fmt"
	"slices"

	"cuelang.org/go/cue"

	"github.com/roach88/pop/internal/exprproc"
	"github.com/roach88/pop/internal/path"
	"github.com/roach88/pop/internal/value"
)

// Spec is the compiled form of a spec file.
type Spec struct {
	Schema    *path.Schema
	Initial   value.Map
	Processes []exprproc.Definition

	// Warnings lists run-step cycles. Cycles are legal (a when guard can
	// end the recursion) but usually a mistake.
	Warnings []CycleWarning
}

// Process returns the definition named name.
func (s *Spec) Process(name string) (exprproc.Definition, bool) {
	i := slices.IndexFunc(s.Processes, func(d exprproc.Definition) bool { return d.Name == name })
	if i < 0 {
		return exprproc.Definition{}, false
	}
	return s.Processes[i], true
}

// Compile parses a CUE value holding a whole spec.
func Compile(v cue.Value) (*Spec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	schema, err := parseScopes(v)
	if err != nil {
		return nil, err
	}

	initial, err := parseInitial(v, schema)
	if err != nil {
		return nil, err
	}

	procs, err := parseProcesses(v)
	if err != nil {
		return nil, err
	}

	spec := &Spec{Schema: schema, Initial: initial, Processes: procs}
	if err := checkProcesses(spec); err != nil {
		return nil, err
	}
	spec.Warnings = AnalyzeCycles(procs)
	return spec, nil
}

// parseScopes builds the schema from the scope block (required).
func parseScopes(v cue.Value) (*path.Schema, error) {
	scopesVal := v.LookupPath(cue.ParsePath("scope"))
	if !scopesVal.Exists() {
		return nil, &CompileError{Field: "scope", Message: "at least one scope is required", Pos: v.Pos()}
	}

	schema := path.NewSchema()
	iter, err := scopesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		scope := iter.Label()
		if err := schema.AddScope(scope); err != nil {
			return nil, &CompileError{Field: "scope." + scope, Message: err.Error(), Pos: iter.Value().Pos()}
		}

		fieldIter, err := iter.Value().Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for fieldIter.Next() {
			field := fieldIter.Label()
			where := fmt.Sprintf("scope.%s.%s", scope, field)
			spec, err := parseFieldSpec(fieldIter.Value(), where)
			if err != nil {
				return nil, err
			}
			if err := schema.AddField(scope, field, spec); err != nil {
				return nil, &CompileError{Field: where, Message: err.Error(), Pos: fieldIter.Value().Pos()}
			}
		}
	}
	if len(schema.Scopes()) == 0 {
		return nil, &CompileError{Field: "scope", Message: "at least one scope is required", Pos: scopesVal.Pos()}
	}
	return schema, nil
}

// parseFieldSpec reads {kind, elem?, default?}. A bare string is
// shorthand for {kind: <string>}.
func parseFieldSpec(v cue.Value, where string) (path.FieldSpec, error) {
	if s, err := v.String(); err == nil {
		return checkedKind(s, where, v)
	}

	kindVal := v.LookupPath(cue.ParsePath("kind"))
	if !kindVal.Exists() {
		return path.FieldSpec{}, &CompileError{Field: where + ".kind", Message: "kind is required", Pos: v.Pos()}
	}
	kind, err := kindVal.String()
	if err != nil {
		return path.FieldSpec{}, formatCUEError(err)
	}
	spec, err := checkedKind(kind, where, kindVal)
	if err != nil {
		return path.FieldSpec{}, err
	}

	if elemVal := v.LookupPath(cue.ParsePath("elem")); elemVal.Exists() {
		if spec.Kind != value.KindList && spec.Kind != value.KindMap {
			return path.FieldSpec{}, &CompileError{Field: where + ".elem", Message: fmt.Sprintf("kind %q cannot declare elem", kind), Pos: elemVal.Pos()}
		}
		elem, err := parseFieldSpec(elemVal, where+".elem")
		if err != nil {
			return path.FieldSpec{}, err
		}
		spec.Elem = &elem
	}

	if defVal := v.LookupPath(cue.ParsePath("default")); defVal.Exists() {
		def, err := toValue(defVal, where+".default")
		if err != nil {
			return path.FieldSpec{}, err
		}
		if err := conforms(spec, def); err != nil {
			return path.FieldSpec{}, &CompileError{Field: where + ".default", Message: err.Error(), Pos: defVal.Pos()}
		}
		spec.Default = def
	}
	return spec, nil
}

func checkedKind(kind, where string, v cue.Value) (path.FieldSpec, error) {
	k := value.Kind(kind)
	if !value.ValidKinds[k] {
		msg := fmt.Sprintf("unknown kind %q", kind)
		if kind == "float" || kind == "number" {
			msg = "float types are forbidden - use int instead"
		}
		return path.FieldSpec{}, &CompileError{Field: where + ".kind", Message: msg, Pos: v.Pos()}
	}
	return path.FieldSpec{Kind: k}, nil
}

// conforms checks v against spec, recursing into declared element kinds.
func conforms(spec path.FieldSpec, v value.Value) error {
	if spec.Kind == value.KindAny {
		return nil
	}
	if got := value.KindOf(v); got != spec.Kind {
		return fmt.Errorf("value is %s, declared %s", got, spec.Kind)
	}
	if spec.Elem == nil {
		return nil
	}
	switch c := v.(type) {
	case value.List:
		for i, elem := range c {
			if err := conforms(*spec.Elem, elem); err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
		}
	case value.Map:
		for _, k := range c.SortedKeys() {
			if err := conforms(*spec.Elem, c[k]); err != nil {
				return fmt.Errorf("%s: %w", k, err)
			}
		}
	}
	return nil
}

// parseInitial reads the optional initial block, shaped {scope: {field: value}}.
func parseInitial(v cue.Value, schema *path.Schema) (value.Map, error) {
	initVal := v.LookupPath(cue.ParsePath("initial"))
	if !initVal.Exists() {
		return value.Map{}, nil
	}
	raw, err := toValue(initVal, "initial")
	if err != nil {
		return nil, err
	}
	initial, ok := raw.(value.Map)
	if !ok {
		return nil, &CompileError{Field: "initial", Message: "must be a struct of scopes", Pos: initVal.Pos()}
	}
	for _, scope := range initial.SortedKeys() {
		fields, ok := initial[scope].(value.Map)
		if !ok {
			return nil, &CompileError{Field: "initial." + scope, Message: "must be a struct of fields", Pos: initVal.Pos()}
		}
		for _, field := range fields.SortedKeys() {
			spec, ok := schema.Field(scope, field)
			if !ok {
				return nil, &CompileError{Field: fmt.Sprintf("initial.%s.%s", scope, field), Message: "field is not declared", Pos: initVal.Pos()}
			}
			if err := conforms(spec, fields[field]); err != nil {
				return nil, &CompileError{Field: fmt.Sprintf("initial.%s.%s", scope, field), Message: err.Error(), Pos: initVal.Pos()}
			}
		}
	}
	return initial, nil
}

// parseProcesses reads the optional process block in declaration order.
func parseProcesses(v cue.Value) ([]exprproc.Definition, error) {
	procsVal := v.LookupPath(cue.ParsePath("process"))
	if !procsVal.Exists() {
		return []exprproc.Definition{}, nil
	}

	iter, err := procsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	defs := []exprproc.Definition{}
	for iter.Next() {
		name := iter.Label()
		def, err := parseProcess(name, iter.Value())
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

func parseProcess(name string, v cue.Value) (exprproc.Definition, error) {
	where := "process." + name
	def := exprproc.Definition{Name: name}

	var err error
	if def.Description, err = optionalString(v, "description"); err != nil {
		return def, err
	}
	if def.Result, err = optionalString(v, "result"); err != nil {
		return def, err
	}
	if def.Inputs, err = stringList(v, "inputs"); err != nil {
		return def, err
	}
	if def.Outputs, err = stringList(v, "outputs"); err != nil {
		return def, err
	}
	if def.Errors, err = stringList(v, "errors"); err != nil {
		return def, err
	}

	stepsVal := v.LookupPath(cue.ParsePath("steps"))
	if stepsVal.Exists() {
		stepIter, err := stepsVal.List()
		if err != nil {
			return def, formatCUEError(err)
		}
		for i := 0; stepIter.Next(); i++ {
			var step exprproc.Step
			if err := stepIter.Value().Decode(&step); err != nil {
				return def, &CompileError{Field: fmt.Sprintf("%s.steps[%d]", where, i), Message: err.Error(), Pos: stepIter.Value().Pos()}
			}
			def.Steps = append(def.Steps, step)
		}
	}

	if len(def.Steps) == 0 && def.Result == "" {
		return def, &CompileError{Field: where, Message: "a process needs steps or a result", Pos: v.Pos()}
	}
	return def, nil
}

func optionalString(v cue.Value, name string) (string, error) {
	f := v.LookupPath(cue.ParsePath(name))
	if !f.Exists() {
		return "", nil
	}
	s, err := f.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func stringList(v cue.Value, name string) ([]string, error) {
	f := v.LookupPath(cue.ParsePath(name))
	if !f.Exists() {
		return nil, nil
	}
	iter, err := f.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

// checkProcesses compiles every definition and resolves contract paths and
// run targets, so a bad spec fails here rather than at registration.
func checkProcesses(spec *Spec) error {
	names := make(map[string]bool, len(spec.Processes))
	for _, def := range spec.Processes {
		names[def.Name] = true
	}
	for _, def := range spec.Processes {
		where := "process." + def.Name
		for _, group := range [][]string{def.Inputs, def.Outputs} {
			for _, raw := range group {
				if _, err := spec.Schema.Resolve(raw); err != nil {
					return &CompileError{Field: where, Message: err.Error()}
				}
			}
		}
		for i, s := range def.Steps {
			if s.Op == exprproc.OpRun && !names[s.Process] {
				return &CompileError{Field: fmt.Sprintf("%s.steps[%d]", where, i), Message: fmt.Sprintf("run target %q is not declared", s.Process)}
			}
		}
		if _, err := exprproc.Compile(def, noRunner{}); err != nil {
			return &CompileError{Field: where, Message: err.Error()}
		}
	}
	return nil
}
