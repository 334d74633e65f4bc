package state

import (
	"iter"
	"reflect"
)

// View is a read-only accessor over an object or array value. Reads of keys
// go through the owning node's children, so they are tracked per key. Every
// attempt to mutate or serialise a view fails with a usage error: writes go
// through Node.Set and Node.Merge.
//
// View methods that read panic with an *Error on usage errors (a pending
// root, a function-valued key), the same errors Node.Get returns.
type View interface {
	// Node returns the tracking node the view reads through.
	Node() *Node

	// Len returns the number of keys or elements.
	Len() int

	// Keys returns the object keys (sorted) or array indices.
	Keys() []Key

	// Get returns the tracked value at key: a nested View, or a plain value.
	Get(key Key) any

	// Range calls fn for each key in Keys order until fn returns false.
	Range(fn func(key Key, value any) bool)

	// Set always fails with CodeViewSet.
	Set(key Key, value any) error

	// Delete always fails with CodeViewDelete.
	Delete(key Key) error

	// MarshalJSON always fails with CodeViewToJSON.
	MarshalJSON() ([]byte, error)

	kind() valueKind
}

// NodeOf returns the tracking node behind v if v is a *Node or a View.
// Stores use it to refuse writing live views as values.
func NodeOf(v any) (*Node, bool) {
	switch t := v.(type) {
	case *Node:
		return t, t != nil
	case View:
		return t.Node(), t != nil
	}
	return nil, false
}

// findView returns the location of the first live view or node found in v
// or anywhere inside its objects, arrays and keyed maps.
func findView(v any, at Path) (Path, bool) {
	if _, ok := NodeOf(v); ok {
		return at, true
	}
	switch c := v.(type) {
	case map[string]any:
		for k, e := range c {
			if p, ok := findView(e, at.Append(Field(k))); ok {
				return p, true
			}
		}
	case []any:
		for i, e := range c {
			if p, ok := findView(e, at.Append(Index(i))); ok {
				return p, true
			}
		}
	default:
		if v == nil || reflect.ValueOf(v).Kind() != reflect.Map {
			return nil, false
		}
		entries, _ := keyedEntries(v)
		for k, e := range entries {
			if p, ok := findView(e, at.Append(k)); ok {
				return p, true
			}
		}
	}
	return nil, false
}

// =============================================================================
// Object views
// =============================================================================

// ObjectView is the View of a map[string]any value.
type ObjectView struct {
	node *Node
}

var _ View = (*ObjectView)(nil)

func (v *ObjectView) kind() valueKind { return kindObject }

// Node implements View.
func (v *ObjectView) Node() *Node { return v.node }

func (v *ObjectView) object() map[string]any {
	m, _ := v.node.Peek().(map[string]any)
	return m
}

// Len implements View.
func (v *ObjectView) Len() int { return len(v.object()) }

// Keys implements View.
func (v *ObjectView) Keys() []Key { return sortedObjectKeys(v.object()) }

// Has reports whether the object has a field name.
func (v *ObjectView) Has(name string) bool {
	_, ok := v.object()[name]
	return ok
}

// Get implements View.
func (v *ObjectView) Get(key Key) any { return v.node.Child(key).Value() }

// Field is Get(Field(name)).
func (v *ObjectView) Field(name string) any { return v.Get(Field(name)) }

// Range implements View.
func (v *ObjectView) Range(fn func(key Key, value any) bool) {
	for _, k := range v.Keys() {
		if !fn(k, v.Get(k)) {
			return
		}
	}
}

// All iterates over fields in key order.
func (v *ObjectView) All() iter.Seq2[Key, any] {
	return v.Range
}

// Set implements View.
func (v *ObjectView) Set(key Key, _ any) error {
	return usageError(CodeViewSet, v.node.path.Append(key))
}

// Delete implements View.
func (v *ObjectView) Delete(key Key) error {
	return usageError(CodeViewDelete, v.node.path.Append(key))
}

// MarshalJSON implements View.
func (v *ObjectView) MarshalJSON() ([]byte, error) {
	return nil, usageError(CodeViewToJSON, v.node.path)
}

// =============================================================================
// Array views
// =============================================================================

// ArrayView is the View of a []any value.
type ArrayView struct {
	node *Node
}

var _ View = (*ArrayView)(nil)

func (v *ArrayView) kind() valueKind { return kindArray }

// Node implements View.
func (v *ArrayView) Node() *Node { return v.node }

func (v *ArrayView) array() []any {
	a, _ := v.node.Peek().([]any)
	return a
}

// Len implements View.
func (v *ArrayView) Len() int { return len(v.array()) }

// Keys implements View.
func (v *ArrayView) Keys() []Key {
	keys := make([]Key, v.Len())
	for i := range keys {
		keys[i] = Index(i)
	}
	return keys
}

// Get implements View.
func (v *ArrayView) Get(key Key) any { return v.node.Child(key).Value() }

// At is Get(Index(i)).
func (v *ArrayView) At(i int) any { return v.Get(Index(i)) }

// Range implements View.
func (v *ArrayView) Range(fn func(key Key, value any) bool) {
	for i := 0; i < v.Len(); i++ {
		if !fn(Index(i), v.At(i)) {
			return
		}
	}
}

// All iterates over elements in order.
func (v *ArrayView) All() iter.Seq2[int, any] {
	return func(yield func(int, any) bool) {
		for i := 0; i < v.Len(); i++ {
			if !yield(i, v.At(i)) {
				return
			}
		}
	}
}

// Slice returns the tracked elements as a new slice.
func (v *ArrayView) Slice() []any {
	out := make([]any, 0, v.Len())
	for _, e := range v.All() {
		out = append(out, e)
	}
	return out
}

// Set implements View.
func (v *ArrayView) Set(key Key, _ any) error {
	return usageError(CodeViewSet, v.node.path.Append(key))
}

// Delete implements View.
func (v *ArrayView) Delete(key Key) error {
	return usageError(CodeViewDelete, v.node.path.Append(key))
}

// Append always fails with CodeViewStructure; use Node.Merge to append.
func (v *ArrayView) Append(...any) error {
	return usageError(CodeViewStructure, v.node.path)
}

// MarshalJSON implements View.
func (v *ArrayView) MarshalJSON() ([]byte, error) {
	return nil, usageError(CodeViewToJSON, v.node.path)
}
