// Package state provides a fine-grained tracking store for nested values.
//
// A Store holds one value tree made of map[string]any objects, []any arrays
// and leaf values. Observers read the tree through tracking Nodes; each node
// records exactly which paths were read. When a write happens the store asks
// every subscribed node whether the write intersects what it read, and only
// affected observers are notified.
//
// # Core Types
//
// Store owns the value and a monotonically increasing edition:
//
//	s, _ := state.New(map[string]any{"a": 0, "b": map[string]any{"c": 1}})
//	s.Set(state.P("b", "c"), 2)             // Update at b.c
//	s.Merge(state.Root, map[string]any{"d": 9}) // Insert d at root
//
// Node is a tracking view of one path:
//
//	x := s.Observe(func() { fmt.Println("x changed") })
//	a, _ := x.Field("a").Get() // x now depends on a only
//
// Objects and arrays are read through Views, whose key reads are tracked
// too; views refuse every direct mutation:
//
//	v, _ := x.Field("b").Get()
//	c := v.(*state.ObjectView).Field("c")
//
// # Mutations
//
// Every write returns a Mutation. Replacing a value reports the written
// path; inserting or deleting a key reports the parent path with a per-key
// Action, because presence changes the container's iteration:
//
//	m, _ := s.Set(state.P("b", "x"), 1)
//	// m.Path == P("b"), m.Actions == {"x": Insert}
//
// # Batching
//
// Writes inside Batch are notified once, when the outermost batch returns:
//
//	s.Batch(func() {
//	    s.Set(state.P("a"), 1)
//	    s.Set(state.P("b", "c"), 3)
//	})
//
// # Asynchronous Roots
//
// Writing a Future (or None) to the root makes the store pending. Reads fail
// with CodeGetWhenPending and concrete writes fail with CodeSetWhenPending
// until the Future settles and the store notifies its observers.
//
// # Concurrency
//
// Stores and nodes are single-threaded. Hosts that settle Futures on other
// goroutines route the settlement through WithDispatcher.
package state
