package state

import (
	"testing"
)

// testObserver counts notifications.
type testObserver struct {
	count int
}

func (o *testObserver) notify() { o.count++ }

func mustNew(t *testing.T, initial any, opts ...Option) *Store {
	t.Helper()
	s, err := New(initial, opts...)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return s
}

func mustGet(t *testing.T, n *Node) any {
	t.Helper()
	v, err := n.Get()
	if err != nil {
		t.Fatalf("Get(%s) error: %v", n.Path(), err)
	}
	return v
}

func mustSet(t *testing.T, s *Store, path Path, v any) Mutation {
	t.Helper()
	m, err := s.Set(path, v)
	if err != nil {
		t.Fatalf("Set(%s) error: %v", path, err)
	}
	return m
}

func mustMerge(t *testing.T, s *Store, path Path, v any) Mutation {
	t.Helper()
	m, err := s.Merge(path, v)
	if err != nil {
		t.Fatalf("Merge(%s) error: %v", path, err)
	}
	return m
}

func expectCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error %s, got nil", code)
	}
	if !IsCode(err, code) {
		t.Fatalf("expected error %s, got %v", code, err)
	}
}

func expectPanicCode(t *testing.T, code string, fn func()) {
	t.Helper()
	defer func() {
		t.Helper()
		r := recover()
		if r == nil {
			t.Fatalf("expected panic with %s", code)
		}
		err, ok := r.(error)
		if !ok || !IsCode(err, code) {
			t.Fatalf("expected panic with %s, got %v", code, r)
		}
	}()
	fn()
}

func sampleTree() map[string]any {
	return map[string]any{
		"a": 0,
		"b": map[string]any{"c": 1},
	}
}
