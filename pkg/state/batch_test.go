package state

import (
	"reflect"
	"testing"
)

func TestBatchNotifiesOnce(t *testing.T) {
	s := mustNew(t, sampleTree())
	obs := &testObserver{}
	n := s.Observe(obs.notify)
	mustGet(t, n.Field("a"))
	mustGet(t, n.At(P("b", "c")))

	s.Batch(func() {
		mustSet(t, s, P("a"), 1)
		mustSet(t, s, P("b", "c"), 2)
		if obs.count != 0 {
			t.Errorf("notified inside batch: %d", obs.count)
		}
		if !s.InBatch() {
			t.Error("InBatch() = false inside batch")
		}
	})

	if obs.count != 1 {
		t.Errorf("notifications = %d, want 1", obs.count)
	}
	if s.InBatch() {
		t.Error("InBatch() = true after batch")
	}
}

func TestNestedBatchFlushesOnOutermostClose(t *testing.T) {
	s := mustNew(t, sampleTree())
	obs := &testObserver{}
	n := s.Observe(obs.notify)
	mustGet(t, n.Field("a"))

	s.Batch(func() {
		s.Batch(func() {
			mustSet(t, s, P("a"), 1)
		})
		if obs.count != 0 {
			t.Errorf("inner batch flushed: %d", obs.count)
		}
		mustSet(t, s, P("a"), 2)
	})

	if obs.count != 1 {
		t.Errorf("notifications = %d, want 1", obs.count)
	}
}

func TestBatchFlushesOnPanic(t *testing.T) {
	s := mustNew(t, sampleTree())
	obs := &testObserver{}
	n := s.Observe(obs.notify)
	mustGet(t, n.Field("a"))

	func() {
		defer func() { _ = recover() }()
		s.Batch(func() {
			mustSet(t, s, P("a"), 1)
			panic("abort")
		})
	}()

	if s.InBatch() {
		t.Error("batch left open after panic")
	}
	if obs.count != 1 {
		t.Errorf("notifications = %d, want 1", obs.count)
	}
}

func TestBatchDropsNotificationsAfterDestroy(t *testing.T) {
	s := mustNew(t, sampleTree())
	obs := &testObserver{}
	n := s.Observe(obs.notify)
	mustGet(t, n.Field("a"))

	s.Batch(func() {
		mustSet(t, s, P("a"), 1)
		s.Destroy()
	})
	if obs.count != 0 {
		t.Errorf("destroyed store notified: %d", obs.count)
	}
}

func TestBatchHooks(t *testing.T) {
	rec := &recorder{}
	s := mustNew(t, sampleTree(), WithExtensions(rec))
	rec.events = nil

	s.Batch(func() {
		mustSet(t, s, P("a"), 1)
		s.Batch(func() {
			mustSet(t, s, P("a"), 2)
		})
	})

	want := []string{"batch-start", "set a", "set a", "batch-finish"}
	if !reflect.DeepEqual(rec.events, want) {
		t.Errorf("events = %v, want %v", rec.events, want)
	}
}
