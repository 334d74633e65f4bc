package state

import (
	"fmt"
	"sort"
	"strings"
)

// Action classifies a per-key structural change recorded by a Mutation.
type Action string

const (
	Insert Action = "I"
	Update Action = "U"
	Delete Action = "D"
)

// Mutation describes the result of a write: the path that changed and,
// for multi-key or structural writes, what happened to each key below it.
//
// A key that was added or removed is reported at its parent path, because
// presence changes the container's iteration, not just one child's value.
type Mutation struct {
	Path    Path
	Actions map[Key]Action
}

// AllUpdates reports whether the mutation carries actions and every one of
// them is a plain Update.
func (m Mutation) AllUpdates() bool {
	if len(m.Actions) == 0 {
		return false
	}
	for _, a := range m.Actions {
		if a != Update {
			return false
		}
	}
	return true
}

// Structural reports whether any key was inserted or deleted.
func (m Mutation) Structural() bool {
	for _, a := range m.Actions {
		if a == Insert || a == Delete {
			return true
		}
	}
	return false
}

// Unfold splits an all-Update mutation into one single-key mutation per
// updated key, in ascending key order. Any other mutation is returned as is.
func (m Mutation) Unfold() []Mutation {
	if !m.AllUpdates() {
		return []Mutation{m}
	}
	keys := m.keys()
	out := make([]Mutation, 0, len(keys))
	for _, k := range keys {
		out = append(out, Mutation{Path: m.Path.Append(k)})
	}
	return out
}

// firstDeletedIndex returns the lowest array index marked Delete.
func (m Mutation) firstDeletedIndex() (int, bool) {
	first, found := 0, false
	for k, a := range m.Actions {
		if a != Delete {
			continue
		}
		if i, ok := k.Index(); ok && (!found || i < first) {
			first, found = i, true
		}
	}
	return first, found
}

// keys returns the action keys sorted numerically for indices, then lexically.
func (m Mutation) keys() []Key {
	keys := make([]Key, 0, len(m.Actions))
	for k := range m.Actions {
		keys = append(keys, k)
	}
	sortKeys(keys)
	return keys
}

// String renders the mutation as "path{key:action,...}".
func (m Mutation) String() string {
	var b strings.Builder
	b.WriteString(m.Path.display())
	if len(m.Actions) > 0 {
		b.WriteString("{")
		for i, k := range m.keys() {
			if i > 0 {
				b.WriteString(",")
			}
			fmt.Fprintf(&b, "%s:%s", k, m.Actions[k])
		}
		b.WriteString("}")
	}
	return b.String()
}

// sortKeys orders indices numerically before named fields.
func sortKeys(keys []Key) {
	sort.Slice(keys, func(i, j int) bool {
		a, aok := keys[i].Index()
		b, bok := keys[j].Index()
		switch {
		case aok && bok:
			return a < b
		case aok != bok:
			return aok
		default:
			return keys[i] < keys[j]
		}
	})
}
