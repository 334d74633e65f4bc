package state

import (
	"github.com/mitchellh/mapstructure"
)

// observer is the owner of a tree of nodes: one mounted consumer of state.
// Every node reached from a top-level node shares its observer.
type observer struct {
	onNotify func()

	// unmounted makes onNotify inert once the consumer detaches.
	unmounted bool

	// cycle counts observation cycles; see Node.Reconcile.
	cycle uint64
}

// subscriptionHost is whatever a node is subscribed to: a Store for
// top-level nodes, or a parent Node for scoped ones.
type subscriptionHost interface {
	unsubscribe(n *Node)
}

// unreadEdition marks a snapshot that was never taken. Store editions start
// at 1 and are never 0.
const unreadEdition = 0

// Node is a tracking view of one path in a store. Reads through a node
// record what was read; the store uses those records to decide which
// observers a write affects.
//
// Child nodes are created lazily on first access and reused across
// observation cycles. A node is not safe for concurrent use.
type Node struct {
	store *Store
	path  Path
	obs   *observer
	host  subscriptionHost

	snapshot        any
	snapshotEdition int64
	view            View

	// created caches every child ever requested, for reuse.
	created map[Key]*Node
	// used holds the children requested in the current cycle.
	used map[Key]*Node
	// usedPrevious holds the children requested in the previous cycle.
	usedPrevious map[Key]*Node

	// selfUsed records that this node's own value was read.
	selfUsed bool
	// noProxy records that the value was consumed as a whole, so any
	// change below it affects the node.
	noProxy bool

	cycle uint64

	// subscribers are scoped nodes polled when this node is not affected.
	subscribers []*Node
}

func newNode(s *Store, path Path, obs *observer) *Node {
	return &Node{
		store: s,
		path:  path,
		obs:   obs,
		cycle: obs.cycle,
	}
}

// ReadOptions tunes how Get records a read.
type ReadOptions struct {
	// NoProxy returns the raw value instead of a view and records that the
	// whole subtree was read.
	NoProxy bool

	// Stealth returns the raw value without recording any read.
	Stealth bool
}

// Path returns the path this node addresses. The result must not be modified.
func (n *Node) Path() Path {
	return n.path
}

// Store returns the store the node reads from.
func (n *Node) Store() *Store {
	return n.store
}

// =============================================================================
// Reads
// =============================================================================

// Get returns the node's value and records the read. Objects and arrays are
// returned as views (*ObjectView, *ArrayView) whose reads are tracked per
// key; other values are returned as is.
//
// Get fails while the root is pending, or returns the rejection error if the
// root Future failed.
func (n *Node) Get() (any, error) {
	return n.GetWith(ReadOptions{})
}

// GetWith is Get with explicit read options.
func (n *Node) GetWith(opts ReadOptions) (any, error) {
	if !opts.Stealth {
		// A failed read still subscribes, so the observer hears when the
		// root settles.
		n.selfUsed = true
	}
	v, err := n.current()
	if err != nil {
		return nil, err
	}
	if opts.Stealth {
		return v, nil
	}

	if opts.NoProxy {
		n.noProxy = true
		return v, nil
	}

	switch kindOf(v) {
	case kindObject, kindArray:
		return n.viewOf(v), nil
	case kindOpaque:
		n.noProxy = true
	}
	return v, nil
}

// Value is Get for callers that treat usage errors as programming errors.
// It panics with the *Error that Get would return.
func (n *Node) Value() any {
	v, err := n.Get()
	if err != nil {
		panic(err)
	}
	return v
}

// Peek returns the raw value without recording a read. It returns None
// while the root is pending.
func (n *Node) Peek() any {
	n.refresh()
	return n.snapshot
}

// Keys returns the keys of an object (sorted) or the indices of an array,
// recording a read of the node. It returns nil for any other value.
func (n *Node) Keys() []Key {
	v, err := n.current()
	if err != nil {
		return nil
	}
	n.selfUsed = true
	switch c := v.(type) {
	case map[string]any:
		return sortedObjectKeys(c)
	case []any:
		keys := make([]Key, len(c))
		for i := range c {
			keys[i] = Index(i)
		}
		return keys
	}
	return nil
}

// OrNull returns nil if the node's value is nil, and the node otherwise.
// It records a read of the node.
func (n *Node) OrNull() *Node {
	v, err := n.current()
	if err != nil {
		return nil
	}
	n.selfUsed = true
	if v == nil {
		return nil
	}
	return n
}

// Promised reports whether the store root is pending. It records a read,
// so the observer is notified when the root settles.
func (n *Node) Promised() bool {
	n.selfUsed = true
	return n.store.Promised()
}

// Error returns the rejection error of the store root, if any. Like
// Promised, it records a read.
func (n *Node) Error() error {
	n.selfUsed = true
	return n.store.Error()
}

// Decode reads the whole value (as NoProxy) and decodes it into out, which
// must be a pointer. Fields are matched by their json tags.
func (n *Node) Decode(out any) error {
	v, err := n.GetWith(ReadOptions{NoProxy: true})
	if err != nil {
		return err
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(v)
}

// current returns the fresh raw value, failing while the root is pending.
func (n *Node) current() (any, error) {
	n.refresh()
	if isNone(n.snapshot) {
		if err := n.store.Error(); err != nil {
			return nil, err
		}
		return nil, usageError(CodeGetWhenPending, n.path)
	}
	return n.snapshot, nil
}

// refresh re-fetches the snapshot when the store edition moved on. A node
// that was read keeps its view materialised so later reads and notifications
// see the new value.
func (n *Node) refresh() {
	if n.snapshotEdition == n.store.edition {
		return
	}
	n.snapshot = n.store.Get(n.path)
	n.snapshotEdition = n.store.edition
	if n.view != nil && n.view.kind() != kindOf(n.snapshot) {
		n.view = nil
	}
	if n.selfUsed && !n.noProxy {
		switch k := kindOf(n.snapshot); k {
		case kindObject, kindArray:
			n.viewOf(n.snapshot)
		}
	}
}

// invalidate forces the next read to re-fetch from the store.
func (n *Node) invalidate() {
	n.snapshotEdition = unreadEdition
}

func (n *Node) viewOf(v any) View {
	k := kindOf(v)
	if n.view != nil && n.view.kind() == k {
		return n.view
	}
	switch k {
	case kindObject:
		n.view = &ObjectView{node: n}
	case kindArray:
		n.view = &ArrayView{node: n}
	default:
		n.view = nil
	}
	return n.view
}

// =============================================================================
// Children
// =============================================================================

// Child returns the node for key, creating it on first request, and records
// it as used in the current cycle.
//
// Child panics with CodeFunctionProperty if the value at key is a function:
// methods of custom types cannot be tracked.
func (n *Node) Child(key Key) *Node {
	if c, ok := n.used[key]; ok {
		return c
	}

	n.refresh()
	if raw, ok := lookup(n.snapshot, key); ok && isFunc(raw) {
		panic(usageError(CodeFunctionProperty, n.path.Append(key)))
	}

	c, ok := n.created[key]
	if !ok {
		c = newNode(n.store, n.path.Append(key), n.obs)
		if n.created == nil {
			n.created = make(map[Key]*Node)
		}
		n.created[key] = c
	} else if c.cycle != n.obs.cycle {
		if c.age() > 1 {
			// Nothing it used is recent enough to carry into the previous cycle.
			c.used = nil
		}
		c.reconcile()
	}
	if n.noProxy {
		c.noProxy = true
	}

	if n.used == nil {
		n.used = make(map[Key]*Node)
	}
	n.used[key] = c
	return c
}

// Field is Child(Field(name)).
func (n *Node) Field(name string) *Node {
	return n.Child(Field(name))
}

// Index is Child(Index(i)).
func (n *Node) Index(i int) *Node {
	return n.Child(Index(i))
}

// At walks path from this node through Child.
func (n *Node) At(path Path) *Node {
	c := n
	for _, k := range path {
		c = c.Child(k)
	}
	return c
}

// usedChild returns the child for key used in the current or previous cycle.
func (n *Node) usedChild(key Key) *Node {
	switch n.age() {
	case 0:
		if c, ok := n.used[key]; ok {
			return c
		}
		return n.usedPrevious[key]
	case 1:
		return n.used[key]
	}
	return nil
}

// age is the number of observation cycles since this node was last
// requested. A node of age 1 was only used in the previous cycle, so its own
// previous-cycle records are already too old to count.
func (n *Node) age() uint64 {
	return n.obs.cycle - n.cycle
}

// readSelf reports whether the node's own value was read recently enough
// to count.
func (n *Node) readSelf() bool {
	return n.selfUsed && n.age() <= 1
}

// =============================================================================
// Observation cycles
// =============================================================================

// Reconcile starts a new observation cycle, typically once per render.
//
// Read flags are cleared, and children used so far become the previous
// cycle's children. Until the next Reconcile, both the previous and the
// current cycle's children count when deciding whether a write affects
// this node, so reads made only inside asynchronous continuations of the
// previous cycle are not lost. Descendants are reset lazily when requested
// again.
func (n *Node) Reconcile() {
	n.obs.cycle++
	n.reconcile()
}

func (n *Node) reconcile() {
	n.cycle = n.obs.cycle
	n.usedPrevious = n.used
	n.used = nil
	n.selfUsed = false
	n.noProxy = false
	n.view = nil
}

// =============================================================================
// Subscriptions
// =============================================================================

// Subscribe attaches a scoped node. It is polled with every mutation this
// node is not itself affected by.
func (n *Node) Subscribe(sub *Node) {
	if sub == nil || sub == n {
		return
	}
	for _, existing := range n.subscribers {
		if existing == sub {
			return
		}
	}
	n.subscribers = append(n.subscribers, sub)
	sub.host = n
}

// Unsubscribe detaches a scoped node.
func (n *Node) Unsubscribe(sub *Node) {
	for i, existing := range n.subscribers {
		if existing == sub {
			n.subscribers = append(n.subscribers[:i:i], n.subscribers[i+1:]...)
			return
		}
	}
}

func (n *Node) unsubscribe(sub *Node) {
	n.Unsubscribe(sub)
}

// Scope creates a node for the same path with its own observer, subscribed
// to this node rather than to the store. Its notifications are gated by
// this node: when this node is affected, its own observer is expected to
// re-observe and carry the scoped one along.
func (n *Node) Scope(onNotify func()) *Node {
	scoped := newNode(n.store, n.path, &observer{onNotify: onNotify})
	n.Subscribe(scoped)
	return scoped
}

// Detach unsubscribes the node and makes its observer's callback inert.
// The node keeps answering reads and writes.
func (n *Node) Detach() {
	n.obs.unmounted = true
	if n.host != nil {
		n.host.unsubscribe(n)
		n.host = nil
	}
}

// Mounted reports whether the observer is still attached.
func (n *Node) Mounted() bool {
	return !n.obs.unmounted
}

// =============================================================================
// Writes
// =============================================================================

// Set writes value at this node's path. Writing None deletes it.
func (n *Node) Set(value any) error {
	_, err := n.store.Set(n.path, value)
	return err
}

// SetFunc writes fn(current value) at this node's path.
func (n *Node) SetFunc(fn func(prev any) any) error {
	_, err := n.store.SetFunc(n.path, fn)
	return err
}

// Merge merges src into this node's value.
func (n *Node) Merge(src any) error {
	_, err := n.store.Merge(n.path, src)
	return err
}

// Delete removes this node's key from its parent.
func (n *Node) Delete() error {
	return n.Set(None)
}

// Call invokes the extension method name against this node.
func (n *Node) Call(name string, args ...any) (any, error) {
	m, ok := n.store.methods[name]
	if !ok {
		return nil, usageError(CodeUnknownMethod, n.path).WithDetail("No extension provides method " + name + ".")
	}
	return m(n, args...)
}

// MarshalJSON rejects serialisation; a node is not a value.
func (n *Node) MarshalJSON() ([]byte, error) {
	return nil, usageError(CodeNodeToJSON, n.path)
}

// String identifies the node in logs.
func (n *Node) String() string {
	return "Node(" + n.path.display() + ")"
}
