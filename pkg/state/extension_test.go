package state

import (
	"errors"
	"fmt"
	"reflect"
	"testing"
)

// recorder implements every hook and records what it saw.
type recorder struct {
	events []string
	sets   []SetEvent
}

func (r *recorder) Name() string { return "recorder" }

func (r *recorder) OnInit(*Store)    { r.events = append(r.events, "init") }
func (r *recorder) OnDestroy(*Store) { r.events = append(r.events, "destroy") }

func (r *recorder) OnSet(ev SetEvent) {
	r.events = append(r.events, "set "+ev.Path.String())
	r.sets = append(r.sets, ev)
}

func (r *recorder) OnBatchStart(*Store)  { r.events = append(r.events, "batch-start") }
func (r *recorder) OnBatchFinish(*Store) { r.events = append(r.events, "batch-finish") }

// doubler doubles integers written under "n".
type doubler struct{}

func (doubler) Name() string { return "doubler" }

func (doubler) OnPreset(ev PresetEvent) (any, error) {
	if i, ok := ev.Value.(int); ok && ev.Path.String() == "n" {
		return i * 2, nil
	}
	return ev.Value, nil
}

var errLocked = errors.New("locked")

// guard vetoes writes under "locked".
type guard struct{}

func (guard) Name() string { return "guard" }

func (guard) OnPreset(ev PresetEvent) (any, error) {
	if len(ev.Path) > 0 && ev.Path[0] == "locked" {
		return nil, errLocked
	}
	return ev.Value, nil
}

// counter contributes methods.
type counter struct{}

func (counter) Name() string { return "counter" }

func (counter) Methods() map[string]Method {
	return map[string]Method{
		"increment": func(n *Node, args ...any) (any, error) {
			by := 1
			if len(args) > 0 {
				by = args[0].(int)
			}
			err := n.SetFunc(func(prev any) any { return prev.(int) + by })
			return n.Peek(), err
		},
		"describe": func(n *Node, _ ...any) (any, error) {
			return fmt.Sprintf("%s=%v", n.Path(), n.Peek()), nil
		},
	}
}

func TestLifecycleHooks(t *testing.T) {
	rec := &recorder{}
	s := mustNew(t, sampleTree(), WithExtensions(rec))

	s.Destroy()
	s.Destroy()
	s.Resurrect()

	want := []string{"init", "destroy", "init"}
	if !reflect.DeepEqual(rec.events, want) {
		t.Errorf("events = %v, want %v", rec.events, want)
	}
}

func TestSetHookEvents(t *testing.T) {
	rec := &recorder{}
	s := mustNew(t, sampleTree(), WithExtensions(rec))

	mustSet(t, s, P("a"), 5)
	mustSet(t, s, P("b", "d"), "new")
	mustSet(t, s, P("b", "c"), None)
	mustSet(t, s, P("missing"), None)

	if len(rec.sets) != 3 {
		t.Fatalf("set events = %d, want 3 (no-op delete must not fire)", len(rec.sets))
	}

	update := rec.sets[0]
	if update.Previous != 0 || update.Value != 5 || update.Store != s {
		t.Errorf("update event = %+v", update)
	}

	insert := rec.sets[1]
	if insert.Previous != None {
		t.Errorf("insert Previous = %v, want None", insert.Previous)
	}

	del := rec.sets[2]
	if del.Previous != 1 || del.Value != None {
		t.Errorf("delete event Previous=%v Value=%v", del.Previous, del.Value)
	}
	state := del.State.(map[string]any)
	if _, ok := state["b"].(map[string]any)["c"]; ok {
		t.Error("State does not reflect the delete")
	}
}

func TestPresetHookTransformsValue(t *testing.T) {
	s := mustNew(t, map[string]any{"n": 0}, WithExtensions(doubler{}))
	mustSet(t, s, P("n"), 21)
	if got := s.Get(P("n")); got != 42 {
		t.Errorf("n = %v, want 42", got)
	}
}

func TestPresetHookVeto(t *testing.T) {
	rec := &recorder{}
	s := mustNew(t, map[string]any{"locked": map[string]any{"v": 1}}, WithExtensions(guard{}, rec))

	_, err := s.Set(P("locked", "v"), 2)
	expectCode(t, err, CodePresetVetoed)
	if !errors.Is(err, errLocked) {
		t.Errorf("veto error does not wrap the extension error: %v", err)
	}

	_, err = s.Merge(P("locked"), map[string]any{"v": 3})
	expectCode(t, err, CodePresetVetoed)

	if got := s.Get(P("locked", "v")); got != 1 {
		t.Errorf("vetoed write applied: %v", got)
	}
	if len(rec.sets) != 0 {
		t.Errorf("set hook fired for vetoed write")
	}
}

func TestExtensionMethods(t *testing.T) {
	s := mustNew(t, map[string]any{"hits": 1}, WithExtensions(counter{}))
	obs := &testObserver{}
	n := s.Observe(obs.notify)
	mustGet(t, n.Field("hits"))

	got, err := n.Field("hits").Call("increment", 4)
	if err != nil {
		t.Fatal(err)
	}
	if got != 5 {
		t.Errorf("increment returned %v, want 5", got)
	}
	if obs.count != 1 {
		t.Errorf("notifications = %d, want 1", obs.count)
	}

	desc, err := s.Call(P("hits"), "describe")
	if err != nil {
		t.Fatal(err)
	}
	if desc != "hits=5" {
		t.Errorf("describe = %v", desc)
	}

	_, err = n.Call("missing")
	expectCode(t, err, CodeUnknownMethod)
}
