// Package path parses and validates dotted access paths against a State
// Record schema.
//
// Grammar:
//
//	path    = scope "." field { "." key | "[" index "]" }
//
// A resolved Path is a structural value: coverage and overlap checks compare
// segment sequences and never re-parse strings.
package path

import (
	"strconv"
	"strings"

	"github.com/roach88/pop/internal/poperr"
	"github.com/roach88/pop/internal/value"
)

// FieldKey names one top-level field of one scope. It is the unit of
// commit-time locking.
type FieldKey struct {
	Scope string
	Field string
}

// String renders the key as "scope.field".
func (k FieldKey) String() string {
	return k.Scope + "." + k.Field
}

// Less orders keys by scope, then field.
func (k FieldKey) Less(o FieldKey) bool {
	if k.Scope != o.Scope {
		return k.Scope < o.Scope
	}
	return k.Field < o.Field
}

// CompareKeys orders keys for slices.SortFunc.
func CompareKeys(a, b FieldKey) int {
	switch {
	case a.Less(b):
		return -1
	case b.Less(a):
		return 1
	}
	return 0
}

// Path is a parsed access path: a scope, a field within it, and zero or more
// segments into the field's nested containers.
type Path struct {
	Scope string
	Field string
	Rest  []value.Segment
}

// Key returns the (scope, field) root of the path.
func (p Path) Key() FieldKey {
	return FieldKey{Scope: p.Scope, Field: p.Field}
}

// IsField reports whether p addresses a whole field.
func (p Path) IsField() bool {
	return len(p.Rest) == 0
}

// Child returns p extended by seg. p is not modified.
func (p Path) Child(seg value.Segment) Path {
	rest := make([]value.Segment, len(p.Rest), len(p.Rest)+1)
	copy(rest, p.Rest)
	return Path{Scope: p.Scope, Field: p.Field, Rest: append(rest, seg)}
}

// Parent returns p without its last segment. A field path is its own parent.
func (p Path) Parent() Path {
	if len(p.Rest) == 0 {
		return p
	}
	return Path{Scope: p.Scope, Field: p.Field, Rest: p.Rest[:len(p.Rest)-1]}
}

// String renders p in canonical syntax.
func (p Path) String() string {
	var b strings.Builder
	b.WriteString(p.Scope)
	b.WriteByte('.')
	b.WriteString(p.Field)
	for _, seg := range p.Rest {
		b.WriteString(seg.String())
	}
	return b.String()
}

// Equal reports whether p and o address the same location.
func (p Path) Equal(o Path) bool {
	return len(p.Rest) == len(o.Rest) && p.Covers(o)
}

// Covers reports whether o is p or lies underneath p.
func (p Path) Covers(o Path) bool {
	if p.Scope != o.Scope || p.Field != o.Field || len(p.Rest) > len(o.Rest) {
		return false
	}
	for i, seg := range p.Rest {
		if !seg.Equal(o.Rest[i]) {
			return false
		}
	}
	return true
}

// Overlaps reports whether either path covers the other.
func (p Path) Overlaps(o Path) bool {
	return p.Covers(o) || o.Covers(p)
}

// Parse splits raw into a Path without consulting any schema.
func Parse(raw string) (Path, error) {
	if raw == "" {
		return Path{}, invalid(raw, "empty path")
	}
	tokens := strings.Split(raw, ".")
	if len(tokens) < 2 {
		return Path{}, invalid(raw, "path must name a scope and a field")
	}

	var p Path
	for i, tok := range tokens {
		name, indices, err := splitToken(tok)
		if err != nil {
			return Path{}, &poperr.InvalidPathError{Path: raw, Reason: "malformed segment " + strconv.Quote(tok), Err: err}
		}
		if name == "" {
			return Path{}, invalid(raw, "empty segment")
		}
		switch i {
		case 0:
			if len(indices) > 0 {
				return Path{}, invalid(raw, "scope cannot be indexed")
			}
			p.Scope = name
		case 1:
			p.Field = name
		default:
			p.Rest = append(p.Rest, value.KeySeg(name))
		}
		for _, idx := range indices {
			p.Rest = append(p.Rest, value.IndexSeg(idx))
		}
	}
	return p, nil
}

// MustParse is Parse for literals in tests and examples.
func MustParse(raw string) Path {
	p, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return p
}

// splitToken separates "name[1][2]" into "name" and [1 2].
func splitToken(tok string) (string, []int, error) {
	open := strings.IndexByte(tok, '[')
	if open < 0 {
		if strings.IndexByte(tok, ']') >= 0 {
			return "", nil, errUnbalanced
		}
		return tok, nil, nil
	}
	name := tok[:open]
	var indices []int
	rest := tok[open:]
	for rest != "" {
		if rest[0] != '[' {
			return "", nil, errUnbalanced
		}
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			return "", nil, errUnbalanced
		}
		n, err := strconv.Atoi(rest[1:end])
		if err != nil {
			return "", nil, errBadIndex
		}
		if n < 0 {
			return "", nil, errBadIndex
		}
		indices = append(indices, n)
		rest = rest[end+1:]
	}
	return name, indices, nil
}

func invalid(raw, reason string) error {
	return &poperr.InvalidPathError{Path: raw, Reason: reason}
}
