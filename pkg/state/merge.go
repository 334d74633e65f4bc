package state

import (
	"fmt"
	"maps"
	"reflect"
	"slices"
	"sort"
)

// merge computes the merged value at path and writes it with one set call.
// The returned mutation is anchored at path and records every touched key.
//
//   - array + array: the argument is appended (a run of Inserts)
//   - array + keyed: indices update, insert past the end, or are removed
//     when mapped to None; removals run last, highest index first
//   - object + keyed: per-key Insert, Update or Delete
//   - string: the argument is formatted and appended
//   - anything else: the argument replaces the value
func (s *Store) merge(path Path, src any) (Mutation, error) {
	if s.Destroyed() {
		return Mutation{}, usageError(CodeSetWhenDestroyed, path)
	}
	if isNone(s.value) {
		return Mutation{}, usageError(CodeSetWhenPending, path)
	}
	if at, ok := findView(src, path); ok {
		return Mutation{}, usageError(CodeSetToView, at)
	}

	current := s.Get(path)
	var (
		merged  any
		actions map[Key]Action
		err     error
	)
	switch c := current.(type) {
	case []any:
		merged, actions, err = mergeArray(c, src, path)
	case map[string]any:
		entries, ok := keyedEntries(src)
		if !ok {
			return s.set(path, src, src)
		}
		merged, actions = mergeObject(c, entries)
	case string:
		merged = c + fmt.Sprint(src)
	default:
		return s.set(path, src, src)
	}
	if err != nil {
		return Mutation{}, err
	}

	m, err := s.set(path, merged, src)
	if err != nil {
		return Mutation{}, err
	}
	if actions != nil {
		m = Mutation{Path: path.Append(), Actions: actions}
	}
	return m, nil
}

func mergeArray(c []any, src any, path Path) (any, map[Key]Action, error) {
	if appended, ok := src.([]any); ok {
		actions := make(map[Key]Action, len(appended))
		for i := range appended {
			actions[Index(len(c)+i)] = Insert
		}
		return append(slices.Clone(c), appended...), actions, nil
	}

	entries, ok := keyedEntries(src)
	if !ok {
		return src, nil, nil
	}

	type indexed struct {
		index int
		value any
	}
	sorted := make([]indexed, 0, len(entries))
	for k, v := range entries {
		i, ok := k.Index()
		if !ok {
			return nil, nil, usageError(CodeInvalidPath, path.Append(k))
		}
		sorted = append(sorted, indexed{i, v})
	}
	sort.Slice(sorted, func(a, b int) bool { return sorted[a].index < sorted[b].index })

	out := slices.Clone(c)
	actions := make(map[Key]Action, len(sorted))
	var removals []int
	for _, e := range sorted {
		switch {
		case isNone(e.value):
			if e.index < len(out) {
				removals = append(removals, e.index)
				actions[Index(e.index)] = Delete
			}
		case e.index < len(out):
			out[e.index] = e.value
			actions[Index(e.index)] = Update
		default:
			if e.index-len(out) > MaxIndexGap {
				return nil, nil, usageError(CodeIndexOutOfRange, path.Append(Index(e.index)))
			}
			for len(out) < e.index {
				out = append(out, nil)
			}
			out = append(out, e.value)
			actions[Index(e.index)] = Insert
		}
	}
	for i := len(removals) - 1; i >= 0; i-- {
		out = slices.Delete(out, removals[i], removals[i]+1)
	}
	return out, actions, nil
}

func mergeObject(c map[string]any, entries map[Key]any) (any, map[Key]Action) {
	out := maps.Clone(c)
	actions := make(map[Key]Action, len(entries))
	for k, v := range entries {
		_, exists := out[string(k)]
		switch {
		case isNone(v):
			if exists {
				delete(out, string(k))
				actions[k] = Delete
			}
		case exists:
			out[string(k)] = v
			actions[k] = Update
		default:
			out[string(k)] = v
			actions[k] = Insert
		}
	}
	return out, actions
}

// keyedEntries normalises a keyed merge argument: map[string]any,
// map[Key]any, map[int]any or any other map with string or integer keys.
func keyedEntries(src any) (map[Key]any, bool) {
	switch m := src.(type) {
	case map[string]any:
		out := make(map[Key]any, len(m))
		for k, v := range m {
			out[Key(k)] = v
		}
		return out, true
	case map[Key]any:
		return m, true
	case map[int]any:
		out := make(map[Key]any, len(m))
		for k, v := range m {
			out[Index(k)] = v
		}
		return out, true
	}

	rv := reflect.ValueOf(src)
	if rv.Kind() != reflect.Map {
		return nil, false
	}
	out := make(map[Key]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		k := iter.Key()
		switch k.Kind() {
		case reflect.String:
			out[Key(k.String())] = iter.Value().Interface()
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			out[Key(fmt.Sprint(k.Int()))] = iter.Value().Interface()
		default:
			return nil, false
		}
	}
	return out, true
}
