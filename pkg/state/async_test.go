package state

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPendingRootLifecycle(t *testing.T) {
	p := NewPromise()
	s := mustNew(t, p)

	if !s.Promised() {
		t.Fatal("store should be pending")
	}

	obs := &testObserver{}
	n := s.Observe(obs.notify)
	_, err := n.Get()
	expectCode(t, err, CodeGetWhenPending)

	_, err = s.Set(Root, 1)
	expectCode(t, err, CodeSetWhenPending)
	_, err = s.Set(P("a"), 1)
	expectCode(t, err, CodeSetWhenPending)
	_, err = s.Merge(Root, map[string]any{"a": 1})
	expectCode(t, err, CodeSetWhenPending)

	p.Resolve(map[string]any{"a": 1})

	if s.Promised() {
		t.Error("store still pending after resolve")
	}
	if obs.count != 1 {
		t.Errorf("notifications = %d, want 1", obs.count)
	}
	if got := mustGet(t, n.Field("a")); got != 1 {
		t.Errorf("a = %v, want 1", got)
	}
}

func TestAlreadySettledFutureResolvesDuringNew(t *testing.T) {
	s := mustNew(t, Resolved(5))
	if s.Promised() {
		t.Error("store pending after New with a resolved promise")
	}
	if got := s.Get(Root); got != 5 {
		t.Errorf("root = %v, want 5", got)
	}
}

func TestRejectedRoot(t *testing.T) {
	boom := errors.New("boom")
	p := NewPromise()
	s := mustNew(t, p)

	obs := &testObserver{}
	n := s.Observe(obs.notify)
	if !n.Promised() {
		t.Fatal("node should report pending")
	}

	p.Reject(boom)

	if obs.count != 1 {
		t.Errorf("notifications = %d, want 1", obs.count)
	}
	if s.Promised() {
		t.Error("rejected store still pending")
	}
	if !errors.Is(n.Error(), boom) {
		t.Errorf("Error() = %v, want boom", n.Error())
	}
	if _, err := n.Get(); !errors.Is(err, boom) {
		t.Errorf("Get() error = %v, want boom", err)
	}

	mustSet(t, s, Root, map[string]any{"a": 2})
	if s.Error() != nil {
		t.Errorf("Error() after concrete set = %v", s.Error())
	}
	if got := mustGet(t, n.Field("a")); got != 2 {
		t.Errorf("a = %v, want 2", got)
	}
}

func TestNoneRootIsResolvableBySet(t *testing.T) {
	s := mustNew(t, None)
	if !s.Promised() {
		t.Fatal("None root should be pending")
	}

	obs := &testObserver{}
	n := s.Observe(obs.notify)
	if _, err := n.Get(); err == nil {
		t.Fatal("Get() on pending root should fail")
	}

	mustSet(t, s, Root, 3)
	if s.Promised() {
		t.Error("store still pending")
	}
	if obs.count != 1 {
		t.Errorf("notifications = %d, want 1", obs.count)
	}
	if got := mustGet(t, n); got != 3 {
		t.Errorf("root = %v, want 3", got)
	}

	// Writing None again re-enters the pending state.
	mustSet(t, s, Root, None)
	if !s.Promised() {
		t.Error("store should be pending again")
	}
}

func TestSupersededFutureIsIgnored(t *testing.T) {
	first := NewPromise()
	s := mustNew(t, first)

	second := NewPromise()
	mustSet(t, s, Root, second)

	first.Resolve("old")
	if !s.Promised() {
		t.Fatal("settling a superseded future ended the pending state")
	}

	second.Resolve("new")
	if got := s.Get(Root); got != "new" {
		t.Errorf("root = %v, want new", got)
	}
}

func TestSettlementAfterDestroyIsIgnored(t *testing.T) {
	p := NewPromise()
	s := mustNew(t, p)
	s.Destroy()
	p.Resolve(1)
	s.Resurrect()

	if !s.Promised() {
		t.Error("settlement applied to a destroyed store")
	}
}

func TestDispatcherSerialisesSettlement(t *testing.T) {
	loop := make(chan func(), 1)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	future := Go(ctx, func(ctx context.Context) (any, error) {
		return map[string]any{"loaded": true}, nil
	})
	s := mustNew(t, future, WithDispatcher(func(fn func()) { loop <- fn }))

	obs := &testObserver{}
	n := s.Observe(obs.notify)
	_, _ = n.Get()

	select {
	case fn := <-loop:
		if !s.Promised() {
			t.Fatal("settlement applied before the dispatcher ran it")
		}
		fn()
	case <-ctx.Done():
		t.Fatal("timed out waiting for settlement")
	}

	if obs.count != 1 {
		t.Errorf("notifications = %d, want 1", obs.count)
	}
	if got := s.Get(P("loaded")); got != true {
		t.Errorf("loaded = %v, want true", got)
	}
}

// deferred is a pending value recognised by a custom detector.
type deferred struct {
	p *Promise
}

func TestCustomPendingDetector(t *testing.T) {
	detect := func(v any) (Future, bool) {
		if d, ok := v.(deferred); ok {
			return d.p, true
		}
		return nil, false
	}

	d := deferred{p: NewPromise()}
	s := mustNew(t, d, WithPendingDetector(detect))
	if !s.Promised() {
		t.Fatal("custom pending value not detected")
	}
	d.p.Resolve("ready")
	if got := s.Get(Root); got != "ready" {
		t.Errorf("root = %v, want ready", got)
	}

	// With the custom detector, a plain Promise is an ordinary opaque value.
	mustSet(t, s, P(), NewPromise())
	if s.Promised() {
		t.Error("Promise treated as pending under a custom detector")
	}
}

func TestPromiseSettlesOnce(t *testing.T) {
	p := NewPromise()
	var got []any
	p.Then(func(v any) { got = append(got, v) }, func(error) { t.Error("rejected") })

	if !p.Resolve(1) {
		t.Error("first Resolve returned false")
	}
	if p.Resolve(2) || p.Reject(errors.New("late")) {
		t.Error("second settlement returned true")
	}
	p.Then(func(v any) { got = append(got, v) }, func(error) { t.Error("rejected") })

	if len(got) != 2 || got[0] != 1 || got[1] != 1 {
		t.Errorf("callbacks got %v, want [1 1]", got)
	}
	if !p.Settled() {
		t.Error("Settled() = false")
	}
}
