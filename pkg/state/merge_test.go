package state

import (
	"reflect"
	"testing"
)

func TestMerge(t *testing.T) {
	tests := []struct {
		name        string
		initial     any
		path        Path
		src         any
		want        any
		wantPath    Path
		wantActions map[Key]Action
	}{
		{
			name:        "array append",
			initial:     []any{1, 2},
			path:        Root,
			src:         []any{3, 4},
			want:        []any{1, 2, 3, 4},
			wantPath:    Root,
			wantActions: map[Key]Action{Index(2): Insert, Index(3): Insert},
		},
		{
			name:        "array keyed deletes highest first",
			initial:     []any{"a", "b", "c", "d", "e"},
			path:        Root,
			src:         map[int]any{1: None, 3: None},
			want:        []any{"a", "c", "e"},
			wantPath:    Root,
			wantActions: map[Key]Action{Index(1): Delete, Index(3): Delete},
		},
		{
			name:        "array keyed update insert delete",
			initial:     map[string]any{"xs": []any{"a", "b", "c"}},
			path:        P("xs"),
			src:         map[string]any{"0": "x", "1": None, "4": "z"},
			want:        map[string]any{"xs": []any{"x", "c", nil, "z"}},
			wantPath:    P("xs"),
			wantActions: map[Key]Action{Index(0): Update, Index(1): Delete, Index(4): Insert},
		},
		{
			name:        "object keyed",
			initial:     map[string]any{"a": 1, "b": 2},
			path:        Root,
			src:         map[string]any{"a": 10, "b": None, "c": 3, "gone": None},
			want:        map[string]any{"a": 10, "c": 3},
			wantPath:    Root,
			wantActions: map[Key]Action{"a": Update, "b": Delete, "c": Insert},
		},
		{
			name:     "string appends",
			initial:  map[string]any{"s": "ab"},
			path:     P("s"),
			src:      7,
			want:     map[string]any{"s": "ab7"},
			wantPath: P("s"),
		},
		{
			name:     "scalar degenerates to set",
			initial:  map[string]any{"n": 1},
			path:     P("n"),
			src:      2,
			want:     map[string]any{"n": 2},
			wantPath: P("n"),
		},
		{
			name:     "object with non-keyed argument is replaced",
			initial:  map[string]any{"o": map[string]any{"k": 1}},
			path:     P("o"),
			src:      "flat",
			want:     map[string]any{"o": "flat"},
			wantPath: P("o"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := mustNew(t, tt.initial)
			m := mustMerge(t, s, tt.path, tt.src)
			if got := s.Get(Root); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("value = %#v, want %#v", got, tt.want)
			}
			if !m.Path.Equal(tt.wantPath) {
				t.Errorf("mutation path = %s, want %s", m.Path, tt.wantPath)
			}
			if len(m.Actions) != len(tt.wantActions) {
				t.Fatalf("actions = %v, want %v", m.Actions, tt.wantActions)
			}
			for k, a := range tt.wantActions {
				if m.Actions[k] != a {
					t.Errorf("action[%s] = %q, want %q", k, m.Actions[k], a)
				}
			}
		})
	}
}

func TestMergeArrayRejectsNamedKeys(t *testing.T) {
	s := mustNew(t, []any{1})
	_, err := s.Merge(Root, map[string]any{"name": 1})
	expectCode(t, err, CodeInvalidPath)
}

func TestMergeAllUpdatesNotifiesPerKey(t *testing.T) {
	s := mustNew(t, map[string]any{"a": 1, "b": 2})

	aObs := &testObserver{}
	an := s.Observe(aObs.notify)
	mustGet(t, an.Field("a"))

	// Holding the root view alone does not depend on any key's value.
	viewObs := &testObserver{}
	vn := s.Observe(viewObs.notify)
	mustGet(t, vn)

	mustMerge(t, s, Root, map[string]any{"b": 3})
	if aObs.count != 0 || viewObs.count != 0 {
		t.Errorf("after b update: a=%d view=%d, want 0 0", aObs.count, viewObs.count)
	}

	mustMerge(t, s, Root, map[string]any{"a": 3, "b": 4})
	if aObs.count != 1 {
		t.Errorf("a reader notifications = %d, want 1", aObs.count)
	}
}

func TestMergeMixedNotifiesRootReader(t *testing.T) {
	s := mustNew(t, map[string]any{"a": 1})
	obs := &testObserver{}
	n := s.Observe(obs.notify)
	mustGet(t, n)

	mustMerge(t, s, Root, map[string]any{"a": 2, "b": 1})
	if obs.count != 1 {
		t.Errorf("root view reader notifications = %d, want 1", obs.count)
	}
}

func TestMergeKeepsPreviousValueIntact(t *testing.T) {
	rec := &recorder{}
	initial := map[string]any{"a": 1}
	s := mustNew(t, initial, WithExtensions(rec))
	mustMerge(t, s, Root, map[string]any{"b": 2})

	if len(rec.sets) != 1 {
		t.Fatalf("set events = %d", len(rec.sets))
	}
	prev := rec.sets[0].Previous.(map[string]any)
	if _, ok := prev["b"]; ok {
		t.Error("merge mutated the previous object")
	}
	if !reflect.DeepEqual(rec.sets[0].Merged, map[string]any{"b": 2}) {
		t.Errorf("Merged = %v", rec.sets[0].Merged)
	}
}
