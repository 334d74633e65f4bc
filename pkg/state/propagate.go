package state

// pendingSet collects the observers affected by one notification pass.
// Each observer is called at most once, in the order first affected.
type pendingSet struct {
	seen  map[*observer]struct{}
	order []*observer
}

func newPendingSet() *pendingSet {
	return &pendingSet{seen: make(map[*observer]struct{})}
}

func (p *pendingSet) add(o *observer) {
	if _, ok := p.seen[o]; ok {
		return
	}
	p.seen[o] = struct{}{}
	p.order = append(p.order, o)
}

// run calls every mounted observer and returns how many were called.
func (p *pendingSet) run() int {
	called := 0
	for _, o := range p.order {
		if o.unmounted || o.onNotify == nil {
			continue
		}
		o.onNotify()
		called++
	}
	return called
}

// onSet decides whether m affects this node, recording its observer in
// pending if so. Scoped subscribers are polled only when this node is not
// affected itself.
func (n *Node) onSet(m Mutation, pending *pendingSet) bool {
	affected := n.affected(m, pending)
	if !affected {
		for _, sub := range append([]*Node(nil), n.subscribers...) {
			sub.onSet(m, pending)
		}
	}
	return affected
}

func (n *Node) affected(m Mutation, pending *pendingSet) bool {
	if !related(m.Path, n.path) {
		return false
	}

	// Consumed as a whole: any change at or below the node counts.
	if n.noProxy && n.readsSubtree() {
		n.markAffected(pending)
		return true
	}

	if len(m.Path) > len(n.path) {
		next := m.Path[len(n.path)]
		child := n.usedChild(next)
		if child != nil && child.onSet(m, pending) {
			n.invalidate()
			return true
		}
		return false
	}

	if len(m.Path) < len(n.path) {
		return n.ancestorChanged(m, pending)
	}
	return n.terminal(m, pending)
}

// terminal handles a mutation addressed exactly at this node.
func (n *Node) terminal(m Mutation, pending *pendingSet) bool {
	if len(m.Actions) == 0 {
		// The whole value was replaced.
		if !n.readsSubtree() {
			return false
		}
		n.created = nil
		n.markAffected(pending)
		return true
	}

	firstDeleted, shifted := m.firstDeletedIndex()
	if shifted {
		_, isArray := n.store.Get(n.path).([]any)
		shifted = isArray
	}

	affected := n.readSelf()
	if !affected {
		for k := range m.Actions {
			if c := n.usedChild(k); c != nil && c.readsSubtree() {
				affected = true
				break
			}
		}
	}
	if !affected && shifted {
		affected = n.anyUsedChild(func(k Key, c *Node) bool {
			i, ok := k.Index()
			return ok && i >= firstDeleted && c.readsSubtree()
		})
	}
	if !affected {
		return false
	}

	if shifted {
		for k := range n.created {
			if i, ok := k.Index(); ok && i >= firstDeleted {
				delete(n.created, k)
			}
		}
	} else {
		for k := range m.Actions {
			delete(n.created, k)
		}
	}
	n.markAffected(pending)
	return true
}

// ancestorChanged handles a mutation addressed above this node, which is
// only possible for top-level nodes observing a nested path.
func (n *Node) ancestorChanged(m Mutation, pending *pendingSet) bool {
	if len(m.Actions) > 0 {
		key := n.path[len(m.Path)]
		_, named := m.Actions[key]
		if !named {
			first, ok := m.firstDeletedIndex()
			i, isIndex := key.Index()
			if !ok || !isIndex || i < first {
				return false
			}
		}
	}
	if !n.readsSubtree() {
		return false
	}
	n.created = nil
	n.markAffected(pending)
	return true
}

func (n *Node) markAffected(pending *pendingSet) {
	n.invalidate()
	pending.add(n.obs)
}

// readsSubtree reports whether this node or any child used in the current
// or previous cycle recorded a read.
func (n *Node) readsSubtree() bool {
	if n.readSelf() {
		return true
	}
	return n.anyUsedChild(func(_ Key, c *Node) bool { return c.readsSubtree() })
}

func (n *Node) anyUsedChild(pred func(Key, *Node) bool) bool {
	age := n.age()
	if age > 1 {
		return false
	}
	for k, c := range n.used {
		if pred(k, c) {
			return true
		}
	}
	if age == 1 {
		return false
	}
	for k, c := range n.usedPrevious {
		if _, current := n.used[k]; current {
			continue
		}
		if pred(k, c) {
			return true
		}
	}
	return false
}

// related reports whether one path is a prefix of the other.
func related(a, b Path) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	return b.HasPrefix(a)
}
