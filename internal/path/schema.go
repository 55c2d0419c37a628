package path

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/pop/internal/poperr"
	"github.com/roach88/pop/internal/value"
)

var (
	errUnbalanced = errors.New("unbalanced brackets")
	errBadIndex   = errors.New("index must be a non-negative integer")
)

// FieldSpec describes the declared kind of a field or container element.
// Elem describes container elements; nil means any.
type FieldSpec struct {
	Kind    value.Kind
	Elem    *FieldSpec
	Default value.Value
}

func (f FieldSpec) elem() FieldSpec {
	if f.Elem == nil {
		return FieldSpec{Kind: value.KindAny}
	}
	return *f.Elem
}

// Schema is the closed lookup table of scopes and fields a State Record
// declares. It is built once and read-only afterwards.
type Schema struct {
	scopes map[string]map[string]FieldSpec
}

// NewSchema returns an empty schema.
func NewSchema() *Schema {
	return &Schema{scopes: make(map[string]map[string]FieldSpec)}
}

// AddScope declares a scope. Declaring an existing scope is a no-op.
func (s *Schema) AddScope(name string) error {
	if err := checkName(name); err != nil {
		return fmt.Errorf("scope %q: %w", name, err)
	}
	if _, ok := s.scopes[name]; !ok {
		s.scopes[name] = make(map[string]FieldSpec)
	}
	return nil
}

// AddField declares a field, creating its scope if needed.
func (s *Schema) AddField(scope, field string, spec FieldSpec) error {
	if err := s.AddScope(scope); err != nil {
		return err
	}
	if err := checkName(field); err != nil {
		return fmt.Errorf("field %q: %w", field, err)
	}
	if err := checkSpec(spec); err != nil {
		return fmt.Errorf("field %s.%s: %w", scope, field, err)
	}
	if _, exists := s.scopes[scope][field]; exists {
		return fmt.Errorf("field %s.%s declared twice", scope, field)
	}
	s.scopes[scope][field] = spec
	return nil
}

// Scopes returns scope names in sorted order.
func (s *Schema) Scopes() []string {
	names := make([]string, 0, len(s.scopes))
	for name := range s.scopes {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// HasScope reports whether scope is declared.
func (s *Schema) HasScope(scope string) bool {
	_, ok := s.scopes[scope]
	return ok
}

// Fields returns the field names of scope in sorted order.
func (s *Schema) Fields(scope string) []string {
	fields := s.scopes[scope]
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// FieldKeys returns every (scope, field) pair in sorted order.
func (s *Schema) FieldKeys() []FieldKey {
	var keys []FieldKey
	for _, scope := range s.Scopes() {
		for _, field := range s.Fields(scope) {
			keys = append(keys, FieldKey{Scope: scope, Field: field})
		}
	}
	return keys
}

// Field returns the declared spec for scope.field.
func (s *Schema) Field(scope, field string) (FieldSpec, bool) {
	fields, ok := s.scopes[scope]
	if !ok {
		return FieldSpec{}, false
	}
	spec, ok := fields[field]
	return spec, ok
}

// Infer derives a schema from a snapshot shaped {scope: {field: value}}.
// Field kinds come from the current values; null fields and all container
// elements are typed as any.
func Infer(snapshot value.Map) (*Schema, error) {
	s := NewSchema()
	for _, scope := range snapshot.SortedKeys() {
		fields, ok := snapshot[scope].(value.Map)
		if !ok {
			return nil, fmt.Errorf("scope %q must be a map of fields, got %s", scope, value.KindOf(snapshot[scope]))
		}
		if err := s.AddScope(scope); err != nil {
			return nil, err
		}
		for _, field := range fields.SortedKeys() {
			kind := value.KindOf(fields[field])
			if kind == value.KindNull {
				kind = value.KindAny
			}
			if err := s.AddField(scope, field, FieldSpec{Kind: kind}); err != nil {
				return nil, err
			}
		}
	}
	return s, nil
}

// Resolve parses raw and validates it against the schema: the scope and
// field must be declared and every further segment must be traversable from
// the declared kinds. List segments are normalized to indices.
func (s *Schema) Resolve(raw string) (Path, error) {
	p, err := Parse(raw)
	if err != nil {
		return Path{}, err
	}
	return s.Validate(p)
}

// MustResolve is Resolve for literals known to be valid.
func (s *Schema) MustResolve(raw string) Path {
	p, err := s.Resolve(raw)
	if err != nil {
		panic(err)
	}
	return p
}

// Validate checks an already-parsed path and returns its normalized form.
func (s *Schema) Validate(p Path) (Path, error) {
	fields, ok := s.scopes[p.Scope]
	if !ok {
		return Path{}, &poperr.InvalidPathError{Path: p.String(), Reason: fmt.Sprintf("unknown scope %q", p.Scope)}
	}
	spec, ok := fields[p.Field]
	if !ok {
		return Path{}, &poperr.InvalidPathError{Path: p.String(), Reason: fmt.Sprintf("scope %q has no field %q", p.Scope, p.Field)}
	}

	out := Path{Scope: p.Scope, Field: p.Field}
	for i, seg := range p.Rest {
		switch spec.Kind {
		case value.KindAny:
			out.Rest = append(out.Rest, p.Rest[i:]...)
			return out, nil
		case value.KindList:
			if !seg.IsIndex {
				n, err := strconv.Atoi(seg.Key)
				if err != nil || n < 0 {
					return Path{}, &poperr.InvalidPathError{Path: p.String(), Reason: fmt.Sprintf("%q is a list; %q is not an index", prefix(p, i), seg.Key)}
				}
				seg = value.IndexSeg(n)
			}
		case value.KindMap:
			if seg.IsIndex {
				seg = value.KeySeg(strconv.Itoa(seg.Index))
			}
		default:
			return Path{}, &poperr.InvalidPathError{Path: p.String(), Reason: fmt.Sprintf("%q is a %s and has no members", prefix(p, i), spec.Kind)}
		}
		out.Rest = append(out.Rest, seg)
		spec = spec.elem()
	}
	return out, nil
}

// SpecAt returns the declared spec at p, or an any spec past a dynamic container.
func (s *Schema) SpecAt(p Path) (FieldSpec, bool) {
	spec, ok := s.Field(p.Scope, p.Field)
	if !ok {
		return FieldSpec{}, false
	}
	for range p.Rest {
		if spec.Kind == value.KindAny {
			return spec, true
		}
		spec = spec.elem()
	}
	return spec, true
}

func prefix(p Path, n int) string {
	return Path{Scope: p.Scope, Field: p.Field, Rest: p.Rest[:n]}.String()
}

func checkName(name string) error {
	if name == "" {
		return errors.New("name is empty")
	}
	if strings.ContainsAny(name, ".[]") {
		return errors.New("name cannot contain '.', '[' or ']'")
	}
	return nil
}

func checkSpec(spec FieldSpec) error {
	if !value.ValidKinds[spec.Kind] {
		return fmt.Errorf("unknown kind %q", spec.Kind)
	}
	if spec.Elem != nil {
		if spec.Kind != value.KindList && spec.Kind != value.KindMap {
			return fmt.Errorf("kind %q cannot declare an element kind", spec.Kind)
		}
		return checkSpec(*spec.Elem)
	}
	return nil
}
