// Package params implements hierarchical parameter addressing.
//
// A configuration key such as
//
//	callbacks__milestone__threshold
//
// is split on "__" (or on "." when the key has no "__") and resolved one
// segment at a time against a tree of components: every segment but the
// last must name a child of the current Parent, and the last must name a
// Field of the component reached.
//
// Setting is two-phase. Resolve checks every key and coerces every value
// into a Plan; nothing is modified unless all keys succeed. Plan.Apply then
// writes the values.
package params

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Separator joins path segments.
const Separator = "__"

// Common errors.
var (
	ErrUnknownComponent = errors.New("unknown component")
	ErrUnknownParam     = errors.New("unknown parameter")
	ErrInvalidValue     = errors.New("invalid value")
	ErrInvalidPath      = errors.New("invalid path")
)

// Node is a component exposing settable fields.
type Node interface {
	Fields() []Field
}

// Parent is a component owning named child components.
type Parent interface {
	Node

	// Children returns the child names in a stable order.
	Children() []string

	// Child returns the named child.
	Child(name string) (Node, bool)
}

// Error reports a key that could not be resolved or a value that could not
// be assigned.
type Error struct {
	Key     string // Full key as given
	Segment string // Segment that failed
	Pos     int    // Index of Segment in the split key
	Detail  string // Additional details
	Err     error  // One of the package errors
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("params: %q: segment %q (position %d): %v", e.Key, e.Segment, e.Pos, e.Err)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Unwrap returns the package error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Split splits a key into path segments.
func Split(key string) []string {
	if strings.Contains(key, Separator) {
		return strings.Split(key, Separator)
	}
	return strings.Split(key, ".")
}

// Join joins path segments into a key.
func Join(segments ...string) string {
	return strings.Join(segments, Separator)
}

// Change is one resolved assignment.
type Change struct {
	Key   string   // Key as given
	Path  []string // Split key
	Field Field    // Target field
	Value any      // Coerced value
	Prev  any      // Value before Apply
}

// Owner returns the first path segment, or "" for fields of the root.
func (c Change) Owner() string {
	if len(c.Path) < 2 {
		return ""
	}
	return c.Path[0]
}

// Plan is a validated set of assignments.
type Plan struct {
	Changes []Change
}

// Resolve validates values against root without modifying anything.
//
// Keys are processed in sorted order so the reported failure is
// deterministic.
func Resolve(root Node, values map[string]any) (*Plan, error) {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	plan := &Plan{Changes: make([]Change, 0, len(keys))}
	for _, key := range keys {
		path := Split(key)
		field, err := lookup(root, key, path)
		if err != nil {
			return nil, err
		}
		v, err := field.prepare(values[key])
		if err != nil {
			return nil, &Error{
				Key:     key,
				Segment: path[len(path)-1],
				Pos:     len(path) - 1,
				Detail:  err.Error(),
				Err:     ErrInvalidValue,
			}
		}
		plan.Changes = append(plan.Changes, Change{Key: key, Path: path, Field: field, Value: v})
	}
	return plan, nil
}

// Apply writes every change, recording the previous values.
func (p *Plan) Apply() {
	for i := range p.Changes {
		c := &p.Changes[i]
		c.Prev = c.Field.Get()
		c.Field.set(c.Value)
	}
}

// Revert restores the values recorded by Apply, last change first.
func (p *Plan) Revert() {
	for i := len(p.Changes) - 1; i >= 0; i-- {
		c := p.Changes[i]
		if c.Prev != nil {
			c.Field.set(c.Prev)
		}
	}
}

// Touches reports whether any change targets owner. When structural is
// true only structural fields count.
//
// The owner of a root field is "".
func (p *Plan) Touches(owner string, structural bool) bool {
	for _, c := range p.Changes {
		if c.Owner() != owner {
			continue
		}
		if !structural || c.Field.Structural {
			return true
		}
	}
	return false
}

// Set resolves and applies values.
func Set(root Node, values map[string]any) (*Plan, error) {
	plan, err := Resolve(root, values)
	if err != nil {
		return nil, err
	}
	plan.Apply()
	return plan, nil
}

// Get returns the current value at key.
func Get(root Node, key string) (any, error) {
	field, err := lookup(root, key, Split(key))
	if err != nil {
		return nil, err
	}
	return field.Get(), nil
}

// Flatten returns every field reachable from root keyed by its full path.
func Flatten(root Node) map[string]any {
	out := make(map[string]any)
	flatten(root, nil, out)
	return out
}

func flatten(n Node, prefix []string, out map[string]any) {
	for _, f := range n.Fields() {
		out[Join(append(prefix, f.Name)...)] = f.Get()
	}
	p, ok := n.(Parent)
	if !ok {
		return
	}
	for _, name := range p.Children() {
		child, ok := p.Child(name)
		if !ok {
			continue
		}
		next := make([]string, len(prefix), len(prefix)+1)
		copy(next, prefix)
		flatten(child, append(next, name), out)
	}
}

// Keys returns the sorted keys of Flatten(root).
func Keys(root Node) []string {
	flat := Flatten(root)
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func lookup(root Node, key string, path []string) (Field, error) {
	for i, seg := range path {
		if seg == "" {
			return Field{}, &Error{Key: key, Segment: seg, Pos: i, Err: ErrInvalidPath, Detail: "empty segment"}
		}
	}

	node := root
	for i, seg := range path[:len(path)-1] {
		p, ok := node.(Parent)
		if !ok {
			return Field{}, &Error{Key: key, Segment: seg, Pos: i, Err: ErrUnknownComponent, Detail: "parent has no components"}
		}
		child, ok := p.Child(seg)
		if !ok {
			return Field{}, &Error{
				Key:     key,
				Segment: seg,
				Pos:     i,
				Err:     ErrUnknownComponent,
				Detail:  "available: " + strings.Join(p.Children(), ", "),
			}
		}
		node = child
	}

	name := path[len(path)-1]
	for _, f := range node.Fields() {
		if f.Name == name {
			return f, nil
		}
	}
	return Field{}, &Error{Key: key, Segment: name, Pos: len(path) - 1, Err: ErrUnknownParam}
}
