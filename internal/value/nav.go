package value

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrNotTraversable is returned when a segment tries to step into a scalar.
var ErrNotTraversable = errors.New("value is not a container")

// ErrMissing is returned when a write needs an intermediate container that does not exist.
var ErrMissing = errors.New("no value at path")

// Segment is one step into a nested container: a map key or a list index.
type Segment struct {
	Key     string
	Index   int
	IsIndex bool
}

// KeySeg returns a map-key segment.
func KeySeg(key string) Segment {
	return Segment{Key: key}
}

// IndexSeg returns a list-index segment.
func IndexSeg(i int) Segment {
	return Segment{Index: i, IsIndex: true}
}

// String renders the segment as it appears in a dotted path.
func (s Segment) String() string {
	if s.IsIndex {
		return "[" + strconv.Itoa(s.Index) + "]"
	}
	return "." + s.Key
}

// Equal compares two segments.
func (s Segment) Equal(o Segment) bool {
	if s.IsIndex != o.IsIndex {
		return false
	}
	if s.IsIndex {
		return s.Index == o.Index
	}
	return s.Key == o.Key
}

// listIndex interprets s as a position into a list of length n.
// A dotted numeric key is accepted as an index.
func (s Segment) listIndex(n int) (int, bool) {
	idx := s.Index
	if !s.IsIndex {
		parsed, err := strconv.Atoi(s.Key)
		if err != nil {
			return 0, false
		}
		idx = parsed
	}
	if idx < 0 || idx >= n {
		return idx, false
	}
	return idx, true
}

// FormatSegments renders segments without a leading dot.
func FormatSegments(segs []Segment) string {
	var b strings.Builder
	for i, s := range segs {
		str := s.String()
		if i == 0 && !s.IsIndex {
			str = str[1:]
		}
		b.WriteString(str)
	}
	return b.String()
}

// GetIn walks segs from root. It reports whether a value exists there.
// Missing keys and out-of-range indices are not errors; stepping into a
// scalar is.
func GetIn(root Value, segs []Segment) (Value, bool, error) {
	cur := root
	for i, seg := range segs {
		switch c := cur.(type) {
		case Map:
			if seg.IsIndex {
				return nil, false, fmt.Errorf("%s: index into map: %w", FormatSegments(segs[:i+1]), ErrNotTraversable)
			}
			next, ok := c[seg.Key]
			if !ok {
				return nil, false, nil
			}
			cur = next
		case List:
			idx, ok := seg.listIndex(len(c))
			if !ok {
				if !seg.IsIndex {
					if _, err := strconv.Atoi(seg.Key); err != nil {
						return nil, false, fmt.Errorf("%s: key into list: %w", FormatSegments(segs[:i+1]), ErrNotTraversable)
					}
				}
				return nil, false, nil
			}
			cur = c[idx]
		default:
			return nil, false, fmt.Errorf("%s: %w", FormatSegments(segs[:i+1]), ErrNotTraversable)
		}
	}
	return cur, true, nil
}

// SetIn returns a copy of root with the value at segs replaced by v.
// Only the containers along the path are copied; root itself is untouched.
// A missing final map key is created; missing intermediates and out-of-range
// list indices are errors.
func SetIn(root Value, segs []Segment, v Value) (Value, error) {
	if len(segs) == 0 {
		return v, nil
	}
	seg, rest := segs[0], segs[1:]
	switch c := root.(type) {
	case Map:
		if seg.IsIndex {
			return nil, fmt.Errorf("%s: index into map: %w", seg, ErrNotTraversable)
		}
		child, ok := c[seg.Key]
		if !ok && len(rest) > 0 {
			return nil, fmt.Errorf("%s: %w", seg, ErrMissing)
		}
		updated, err := SetIn(child, rest, v)
		if err != nil {
			return nil, err
		}
		out := make(Map, len(c)+1)
		for k, elem := range c {
			out[k] = elem
		}
		out[seg.Key] = updated
		return out, nil
	case List:
		idx, ok := seg.listIndex(len(c))
		if !ok {
			return nil, fmt.Errorf("%s: index out of range (len %d): %w", seg, len(c), ErrMissing)
		}
		updated, err := SetIn(c[idx], rest, v)
		if err != nil {
			return nil, err
		}
		out := make(List, len(c))
		copy(out, c)
		out[idx] = updated
		return out, nil
	default:
		return nil, fmt.Errorf("%s: %w", seg, ErrNotTraversable)
	}
}

// DeleteIn returns a copy of root without the value at segs.
// Deleting a map key removes it; deleting a list index shifts later elements down.
// Deleting something that is not there returns root unchanged.
func DeleteIn(root Value, segs []Segment) (Value, error) {
	if len(segs) == 0 {
		return Null{}, nil
	}
	seg, rest := segs[0], segs[1:]
	switch c := root.(type) {
	case Map:
		if seg.IsIndex {
			return nil, fmt.Errorf("%s: index into map: %w", seg, ErrNotTraversable)
		}
		child, ok := c[seg.Key]
		if !ok {
			return root, nil
		}
		out := make(Map, len(c))
		for k, elem := range c {
			out[k] = elem
		}
		if len(rest) == 0 {
			delete(out, seg.Key)
			return out, nil
		}
		updated, err := DeleteIn(child, rest)
		if err != nil {
			return nil, err
		}
		out[seg.Key] = updated
		return out, nil
	case List:
		idx, ok := seg.listIndex(len(c))
		if !ok {
			return root, nil
		}
		if len(rest) == 0 {
			out := make(List, 0, len(c)-1)
			out = append(out, c[:idx]...)
			out = append(out, c[idx+1:]...)
			return out, nil
		}
		updated, err := DeleteIn(c[idx], rest)
		if err != nil {
			return nil, err
		}
		out := make(List, len(c))
		copy(out, c)
		out[idx] = updated
		return out, nil
	default:
		return nil, fmt.Errorf("%s: %w", seg, ErrNotTraversable)
	}
}
