package state

// Extension plugs into a store's lifecycle. An extension implements any
// subset of the hook interfaces below; the store checks for each one.
//
// Example:
//
//	type audit struct{}
//
//	func (audit) Name() string { return "audit" }
//	func (audit) OnSet(ev state.SetEvent) { log.Println(ev.Path, ev.Value) }
//
//	s, _ := state.New(initial, state.WithExtensions(audit{}))
type Extension interface {
	Name() string
}

// InitHook is called when a store is created and again when it is resurrected.
type InitHook interface {
	OnInit(s *Store)
}

// PresetHook is called before a write is applied. It may return a replacement
// value, or an error to veto the write.
type PresetHook interface {
	OnPreset(ev PresetEvent) (any, error)
}

// SetHook is called after every successful write.
type SetHook interface {
	OnSet(ev SetEvent)
}

// DestroyHook is called when a store is destroyed.
type DestroyHook interface {
	OnDestroy(s *Store)
}

// BatchHook is called when the outermost batch opens and after it has
// flushed its notifications.
type BatchHook interface {
	OnBatchStart(s *Store)
	OnBatchFinish(s *Store)
}

// NotifyHook is called after each notification pass over a store that has
// subscribers, whether or not any observer was affected.
type NotifyHook interface {
	OnNotify(ev NotifyEvent)
}

// Method is an extension-contributed operation resolvable against any node.
type Method func(n *Node, args ...any) (any, error)

// MethodProvider contributes named methods, invoked with Node.Call.
type MethodProvider interface {
	Methods() map[string]Method
}

// PresetEvent describes a write about to be applied.
type PresetEvent struct {
	Store  *Store
	Path   Path
	Value  any
	Merged any
}

// SetEvent describes a write that has been applied.
type SetEvent struct {
	Store *Store

	// Path is the path written.
	Path Path

	// Previous is the value replaced, or None if the key was absent.
	Previous any

	// Value is the value written, or None for a deletion or a pending root.
	Value any

	// Merged is the argument of the merge that produced this write, if any.
	Merged any

	// State is the root value after the write.
	State any
}

// NotifyEvent describes one notification pass.
type NotifyEvent struct {
	Store *Store

	// Mutations are the mutations delivered, in write order.
	Mutations []Mutation

	// Observers is the number of observer callbacks run.
	Observers int
}

func (s *Store) runInitHooks() {
	for _, ext := range s.extensions {
		if h, ok := ext.(InitHook); ok {
			h.OnInit(s)
		}
	}
}

func (s *Store) runPresetHooks(path Path, value, merged any) (any, error) {
	for _, ext := range s.extensions {
		h, ok := ext.(PresetHook)
		if !ok {
			continue
		}
		next, err := h.OnPreset(PresetEvent{Store: s, Path: path, Value: value, Merged: merged})
		if err != nil {
			return nil, usageError(CodePresetVetoed, path).
				WithDetail("Vetoed by extension " + ext.Name() + ".").
				Wrap(err)
		}
		value = next
	}
	return value, nil
}

func (s *Store) runSetHooks(ev SetEvent) {
	ev.Store = s
	ev.State = s.value
	for _, ext := range s.extensions {
		if h, ok := ext.(SetHook); ok {
			h.OnSet(ev)
		}
	}
}

func (s *Store) runNotifyHooks(ms []Mutation, observers int) {
	for _, ext := range s.extensions {
		if h, ok := ext.(NotifyHook); ok {
			h.OnNotify(NotifyEvent{Store: s, Mutations: ms, Observers: observers})
		}
	}
}

func (s *Store) runDestroyHooks() {
	for _, ext := range s.extensions {
		if h, ok := ext.(DestroyHook); ok {
			h.OnDestroy(s)
		}
	}
}

func (s *Store) runBatchHooks(start bool) {
	for _, ext := range s.extensions {
		h, ok := ext.(BatchHook)
		if !ok {
			continue
		}
		if start {
			h.OnBatchStart(s)
		} else {
			h.OnBatchFinish(s)
		}
	}
}

// registerMethods indexes MethodProvider methods. Later extensions win.
func (s *Store) registerMethods() {
	for _, ext := range s.extensions {
		p, ok := ext.(MethodProvider)
		if !ok {
			continue
		}
		for name, m := range p.Methods() {
			if s.methods == nil {
				s.methods = make(map[string]Method)
			}
			s.methods[name] = m
		}
	}
}
