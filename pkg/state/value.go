package state

import (
	"reflect"
	"slices"
)

// none is the type of the None sentinel.
type none struct{}

func (none) String() string { return "none" }

// None marks an absent value.
//
// Writing None to a nested path deletes the key. Writing None to the root
// puts the store into the pending state until a concrete value is set.
var None any = none{}

func isNone(v any) bool {
	_, ok := v.(none)
	return ok
}

// valueKind selects how a node exposes its value.
type valueKind uint8

const (
	kindScalar valueKind = iota
	kindObject
	kindArray
	kindOpaque
)

func kindOf(v any) valueKind {
	switch v.(type) {
	case map[string]any:
		return kindObject
	case []any:
		return kindArray
	case nil, none, string, bool, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, float32, float64:
		return kindScalar
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.String, reflect.Bool, reflect.Int, reflect.Int8, reflect.Int16,
		reflect.Int32, reflect.Int64, reflect.Uint, reflect.Uint8, reflect.Uint16,
		reflect.Uint32, reflect.Uint64, reflect.Float32, reflect.Float64:
		return kindScalar
	}
	return kindOpaque
}

func isFunc(v any) bool {
	return v != nil && reflect.ValueOf(v).Kind() == reflect.Func
}

// lookup reads key from an object or array value.
func lookup(container any, key Key) (any, bool) {
	switch c := container.(type) {
	case map[string]any:
		v, ok := c[string(key)]
		return v, ok
	case []any:
		i, ok := key.Index()
		if !ok || i >= len(c) {
			return nil, false
		}
		return c[i], true
	}
	return nil, false
}

// valueAt walks path from root. Missing keys yield nil.
func valueAt(root any, path Path) any {
	v := root
	for _, k := range path {
		if isNone(v) {
			return v
		}
		next, ok := lookup(v, k)
		if !ok {
			return nil
		}
		v = next
	}
	return v
}

type writeError struct {
	code string
	at   int
}

func (e *writeError) Error() string { return e.code }

// MaxIndexGap is how far past the end of an array an insert may land. The
// gap is padded with nil.
const MaxIndexGap = 1 << 16

// writeAt stores value at path inside container and returns the updated
// container, the previous value, and the action performed. An empty action
// means nothing changed. Arrays shrink by an ordered shift, so indices after
// a deleted element move down by one.
func writeAt(container any, path Path, value any, depth int) (any, any, Action, error) {
	key := path[0]
	if len(path) > 1 {
		child, ok := lookup(container, key)
		if !ok {
			return nil, nil, "", &writeError{code: "E107", at: depth + 1}
		}
		updated, prev, action, err := writeAt(child, path[1:], value, depth+1)
		if err != nil {
			return nil, nil, "", err
		}
		if action != "" {
			assign(container, key, updated)
		}
		return container, prev, action, nil
	}

	switch c := container.(type) {
	case map[string]any:
		prev, exists := c[string(key)]
		if isNone(value) {
			if !exists {
				return c, nil, "", nil
			}
			delete(c, string(key))
			return c, prev, Delete, nil
		}
		c[string(key)] = value
		if exists {
			return c, prev, Update, nil
		}
		return c, None, Insert, nil

	case []any:
		i, ok := key.Index()
		if !ok {
			return nil, nil, "", &writeError{code: CodeInvalidPath, at: depth}
		}
		if i < len(c) {
			prev := c[i]
			if isNone(value) {
				return slices.Delete(slices.Clone(c), i, i+1), prev, Delete, nil
			}
			c[i] = value
			return c, prev, Update, nil
		}
		if isNone(value) {
			return c, nil, "", nil
		}
		if i-len(c) > MaxIndexGap {
			return nil, nil, "", &writeError{code: CodeIndexOutOfRange, at: depth}
		}
		grown := make([]any, i+1)
		copy(grown, c)
		grown[i] = value
		return grown, None, Insert, nil
	}
	return nil, nil, "", &writeError{code: "E107", at: depth}
}

// assign replaces an existing child of an object or array in place.
func assign(container any, key Key, value any) {
	switch c := container.(type) {
	case map[string]any:
		c[string(key)] = value
	case []any:
		if i, ok := key.Index(); ok && i < len(c) {
			c[i] = value
		}
	}
}

// sortedObjectKeys returns the keys of m in ascending order.
func sortedObjectKeys(m map[string]any) []Key {
	keys := make([]Key, 0, len(m))
	for k := range m {
		keys = append(keys, Key(k))
	}
	slices.Sort(keys)
	return keys
}
