package state

import (
	"fmt"
	"slices"

	"github.com/oklog/ulid/v2"
)

// Store owns one value tree and notifies the observers that read the parts
// of it a write touched.
//
// A Store is not safe for concurrent use. All calls, including Future
// settlements delivered through the dispatcher, must happen on one goroutine
// or be serialised by the caller.
type Store struct {
	id string

	// value is the root value, or None while pending or unset.
	value any

	// edition increases on every write. Nodes compare it with their
	// snapshot edition instead of diffing values. A destroyed store holds
	// the negated edition.
	edition int64

	promised *promised

	subscribers []*Node

	extensions []Extension
	methods    map[string]Method

	batchDepth   int
	batchPending []Mutation

	dispatch func(func())
	detect   PendingDetector
}

// New creates a store holding initial. An initial Future (or None) starts
// the store in the pending state.
func New(initial any, opts ...Option) (*Store, error) {
	if at, ok := findView(initial, Root); ok {
		return nil, usageError(CodeInitFromView, at)
	}
	options := applyOptions(opts)
	s := &Store{
		id:         ulid.Make().String(),
		value:      None,
		edition:    1,
		extensions: options.extensions,
		dispatch:   options.dispatch,
		detect:     options.detect,
	}
	s.registerMethods()

	future, err := s.installRoot(initial)
	if err != nil {
		return nil, err
	}
	s.runInitHooks()
	if future != nil {
		s.await(s.promised, future)
	}
	return s, nil
}

// ID returns the unique identifier of the store.
func (s *Store) ID() string {
	return s.id
}

// Edition returns the current edition. It is negative once destroyed.
func (s *Store) Edition() int64 {
	return s.edition
}

// Get returns the value at path without tracking. It returns None if the
// root is pending and nil for keys that do not exist.
func (s *Store) Get(path Path) any {
	return valueAt(s.value, path)
}

// Promised reports whether the root is waiting for an asynchronous value.
func (s *Store) Promised() bool {
	return s.promised.pending()
}

// Error returns the rejection error of the asynchronous root, if the root
// Future failed and no concrete value has been set since.
func (s *Store) Error() error {
	if s.promised != nil && s.promised.state == promiseRejected {
		return s.promised.err
	}
	return nil
}

// Destroyed reports whether Destroy has been called without a later Resurrect.
func (s *Store) Destroyed() bool {
	return s.edition < 0
}

// =============================================================================
// Writes
// =============================================================================

// Set writes value at path and notifies affected observers. Writing None
// deletes the key. The returned Mutation is what observers were notified of.
func (s *Store) Set(path Path, value any) (Mutation, error) {
	m, err := s.set(path, value, nil)
	if err != nil {
		return Mutation{}, err
	}
	s.Notify(m)
	return m, nil
}

// SetFunc writes fn(current) at path. The current value is read untracked.
func (s *Store) SetFunc(path Path, fn func(prev any) any) (Mutation, error) {
	return s.Set(path, fn(s.Get(path)))
}

// Merge merges src into the value at path and notifies affected observers.
// See merge.go for how each kind of value merges.
func (s *Store) Merge(path Path, src any) (Mutation, error) {
	m, err := s.merge(path, src)
	if err != nil {
		return Mutation{}, err
	}
	s.Notify(m)
	return m, nil
}

// set applies a write without notifying.
func (s *Store) set(path Path, value any, merged any) (Mutation, error) {
	if s.Destroyed() {
		return Mutation{}, usageError(CodeSetWhenDestroyed, path)
	}
	// Merges check their argument before the merged value is built.
	if merged == nil {
		if at, ok := findView(value, path); ok {
			return Mutation{}, usageError(CodeSetToView, at)
		}
	}
	value, err := s.runPresetHooks(path, value, merged)
	if err != nil {
		return Mutation{}, err
	}

	if len(path) == 0 {
		return s.setRoot(value, merged)
	}
	if _, ok := s.detect(value); ok {
		return Mutation{}, usageError(CodeNestedFuture, path)
	}
	if isNone(s.value) {
		return Mutation{}, usageError(CodeSetWhenPending, path)
	}

	updated, prev, action, err := writeAt(s.value, path, value, 0)
	if err != nil {
		if we, ok := err.(*writeError); ok {
			return Mutation{}, usageError(we.code, path[:we.at+1])
		}
		return Mutation{}, err
	}
	if action == "" {
		return Mutation{Path: path.Append()}, nil
	}

	s.value = updated
	s.edition++
	s.runSetHooks(SetEvent{Path: path.Append(), Previous: prev, Value: value, Merged: merged})

	if action == Update {
		return Mutation{Path: path.Append()}, nil
	}
	key, _ := path.Last()
	return Mutation{
		Path:    path.Parent().Append(),
		Actions: map[Key]Action{key: action},
	}, nil
}

// setRoot replaces the root value, entering or leaving the pending state.
func (s *Store) setRoot(value any, merged any) (Mutation, error) {
	prev := s.value
	future, err := s.installRoot(value)
	if err != nil {
		return Mutation{}, err
	}
	s.edition++
	s.runSetHooks(SetEvent{Path: Root, Previous: prev, Value: s.value, Merged: merged})
	if future != nil {
		s.await(s.promised, future)
	}
	return Mutation{Path: Root}, nil
}

// installRoot swaps the root value and the pending holder. A returned Future
// must be awaited once the write is complete.
func (s *Store) installRoot(value any) (Future, error) {
	switch {
	case isNone(value):
		s.promised = &promised{resolvable: true}
		s.value = None
		return nil, nil
	default:
		if f, ok := s.detect(value); ok {
			s.promised = &promised{}
			s.value = None
			return f, nil
		}
	}

	if s.promised.pending() && !s.promised.resolvable {
		return nil, usageError(CodeSetWhenPending, Root)
	}
	if s.promised != nil {
		if s.promised.pending() {
			s.promised.state = promiseFulfilled
		}
		s.promised = nil
	}
	s.value = value
	return nil, nil
}

// =============================================================================
// Notification
// =============================================================================

// Notify delivers m to every subscriber. Inside a batch it is queued until
// the outermost batch closes. Notifications to a destroyed store are dropped.
func (s *Store) Notify(m Mutation) {
	if s.Destroyed() {
		return
	}
	if s.batchDepth > 0 {
		s.batchPending = append(s.batchPending, m)
		return
	}
	s.deliver([]Mutation{m})
}

// deliver asks every subscriber whether the mutations affect it, then runs
// each affected observer's callback once.
func (s *Store) deliver(ms []Mutation) {
	if len(ms) == 0 || len(s.subscribers) == 0 {
		return
	}
	pending := newPendingSet()
	subs := slices.Clone(s.subscribers)
	for _, m := range ms {
		for _, unit := range m.Unfold() {
			for _, sub := range subs {
				sub.onSet(unit, pending)
			}
		}
	}
	s.runNotifyHooks(ms, pending.run())
}

// Subscribe attaches a top-level node. Subscribing twice is a no-op.
func (s *Store) Subscribe(n *Node) {
	if n == nil || slices.Contains(s.subscribers, n) {
		return
	}
	s.subscribers = append(s.subscribers, n)
	n.host = s
}

// Unsubscribe detaches a top-level node.
func (s *Store) Unsubscribe(n *Node) {
	if i := slices.Index(s.subscribers, n); i >= 0 {
		s.subscribers = slices.Delete(s.subscribers, i, i+1)
	}
}

func (s *Store) unsubscribe(n *Node) {
	s.Unsubscribe(n)
}

// Observe creates a tracking node for the root and subscribes it.
// onNotify runs, with no arguments, whenever a write affects what the node
// (or any node reached from it) has read.
func (s *Store) Observe(onNotify func()) *Node {
	return s.ObserveAt(Root, onNotify)
}

// Root is Observe.
func (s *Store) Root(onNotify func()) *Node {
	return s.Observe(onNotify)
}

// ObserveAt creates a subscribed tracking node for path.
func (s *Store) ObserveAt(path Path, onNotify func()) *Node {
	n := newNode(s, path.Append(), &observer{onNotify: onNotify})
	s.Subscribe(n)
	return n
}

// Node returns an unsubscribed node for path, for reads and writes that do
// not need notification.
func (s *Store) Node(path Path) *Node {
	return newNode(s, path.Append(), &observer{})
}

// =============================================================================
// Batching
// =============================================================================

// Batch runs fn with notification deferred. Writes inside fn only queue
// their mutations; one notification pass runs when the outermost batch
// returns, so every affected observer is called at most once.
//
// Batches can be nested. Only the outermost one flushes.
func (s *Store) Batch(fn func()) {
	s.batchDepth++
	if s.batchDepth == 1 {
		s.runBatchHooks(true)
	}
	defer func() {
		s.batchDepth--
		if s.batchDepth > 0 {
			return
		}
		queued := s.batchPending
		s.batchPending = nil
		if !s.Destroyed() {
			s.deliver(queued)
		}
		s.runBatchHooks(false)
	}()
	fn()
}

// InBatch reports whether a batch is open.
func (s *Store) InBatch() bool {
	return s.batchDepth > 0
}

// =============================================================================
// Lifecycle
// =============================================================================

// Destroy deactivates the store. Later writes fail with CodeSetWhenDestroyed
// and notifications are dropped. Subscribers are kept so that Resurrect can
// restore the store as it was.
func (s *Store) Destroy() {
	if s.Destroyed() {
		return
	}
	s.edition = -s.edition
	s.runDestroyHooks()
}

// Resurrect reactivates a destroyed store, keeping its value and subscribers.
// Hosts use it when an observer is torn down and remounted in quick
// succession.
func (s *Store) Resurrect() {
	if !s.Destroyed() {
		return
	}
	s.edition = -s.edition
	s.runInitHooks()
}

// Call invokes an extension method against the node at path.
func (s *Store) Call(path Path, name string, args ...any) (any, error) {
	return s.Node(path).Call(name, args...)
}

// String identifies the store in logs.
func (s *Store) String() string {
	return fmt.Sprintf("Store(%s@%d)", s.id, s.edition)
}
