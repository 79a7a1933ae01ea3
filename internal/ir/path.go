package ir

import (
	"fmt"
	"strings"
)

// Wildcard is the field path meaning "the whole record".
const Wildcard = "*"

// Path is an ordered sequence of string key segments addressing a location
// in a nested Object tree, parsed from dotted notation ("a.b.c").
//
// Record state is only ever read and written through Path.Get and Path.Set.
// No code in the engine traverses the record tree ad hoc.
type Path []string

// ParsePath splits a dotted key-path string into segments.
// Returns an error for empty paths and paths with empty segments ("a..b").
func ParsePath(s string) (Path, error) {
	if s == "" {
		return nil, fmt.Errorf("empty path")
	}
	segments := strings.Split(s, ".")
	for i, seg := range segments {
		if seg == "" {
			return nil, fmt.Errorf("path %q: empty segment at position %d", s, i)
		}
	}
	return Path(segments), nil
}

// String renders the path back to dotted notation.
func (p Path) String() string {
	return strings.Join(p, ".")
}

// Leaf returns the last segment of the path.
// Output-field application reads exactly this key from a primitive's output.
func (p Path) Leaf() string {
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1]
}

// Get resolves the path against an object tree. A missing key or a
// non-object intermediate resolves to (nil, false) - absence, not an error.
func (p Path) Get(root Object) (Value, bool) {
	if len(p) == 0 {
		return nil, false
	}
	var cur Value = root
	for _, seg := range p {
		obj, ok := cur.(Object)
		if !ok {
			return nil, false
		}
		next, present := obj[seg]
		if !present {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// Set writes a value at the path, creating intermediate Objects as needed.
// An existing non-object intermediate is replaced by a fresh Object so the
// write always succeeds on a well-formed path. The root is mutated in place.
func (p Path) Set(root Object, v Value) error {
	if len(p) == 0 {
		return fmt.Errorf("cannot set empty path")
	}
	if root == nil {
		return fmt.Errorf("cannot set path %q on nil object", p)
	}
	cur := root
	for _, seg := range p[:len(p)-1] {
		next, present := cur[seg]
		child, isObj := next.(Object)
		if !present || !isObj {
			child = make(Object)
			cur[seg] = child
		}
		cur = child
	}
	cur[p.Leaf()] = v
	return nil
}
