package main

import (
	"fmt"
	"os"
	"slices"
	"sort"
	"strings"

	"github.com/vango-dev/trackstate/internal/errors"
	"github.com/vango-dev/trackstate/internal/source"
	"github.com/vango-dev/trackstate/pkg/state"
	"gopkg.in/yaml.v3"
)

// Script is a replay script: observers that read parts of a document, and
// steps that write to it.
//
//	observers:
//	  - name: header
//	    reads: [user.name]
//	  - name: table
//	    whole: [items]
//	steps:
//	  - set: user.name
//	    value: Grace
//	    expect: [header]
//	  - batch:
//	      - merge: items
//	        value: [d]
//	      - delete: items.0
//	    expect: [table]
type Script struct {
	Observers []ObserverSpec `yaml:"observers"`
	Steps     []Step         `yaml:"steps"`
}

// ObserverSpec declares what an observer reads on every render.
type ObserverSpec struct {
	Name string `yaml:"name"`

	// At is the path the observer is mounted at (default: the root).
	At string `yaml:"at"`

	// Reads are dotted paths, relative to At, read key by key.
	Reads []string `yaml:"reads"`

	// Whole are dotted paths read as complete values.
	Whole []string `yaml:"whole"`

	// Keys are dotted paths whose key lists are read.
	Keys []string `yaml:"keys"`
}

// Step is one write, or a batch of writes. Exactly one of Set, Merge,
// Delete and Batch is given.
type Step struct {
	Set    *string `yaml:"set"`
	Merge  *string `yaml:"merge"`
	Delete *string `yaml:"delete"`
	Batch  []Step  `yaml:"batch"`
	Value  any     `yaml:"value"`

	// Expect lists the observers that must be notified. Nil skips the check;
	// an empty list expects no notification.
	Expect *[]string `yaml:"expect"`
}

// describe renders the step for output.
func (s Step) describe() string {
	switch {
	case s.Set != nil:
		return fmt.Sprintf("set %s = %v", displayPath(*s.Set), source.Normalize(s.Value))
	case s.Merge != nil:
		return fmt.Sprintf("merge %s <- %v", displayPath(*s.Merge), source.Normalize(s.Value))
	case s.Delete != nil:
		return "delete " + displayPath(*s.Delete)
	case s.Batch != nil:
		parts := make([]string, len(s.Batch))
		for i, b := range s.Batch {
			parts[i] = b.describe()
		}
		return "batch { " + strings.Join(parts, "; ") + " }"
	}
	return "noop"
}

func displayPath(p string) string {
	if p == "" {
		return "<root>"
	}
	return p
}

// LoadScript reads a YAML replay script.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New("E404").WithPath(path).Wrap(err)
	}
	var sc Script
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, errors.New("E404").WithPath(path).Wrap(err)
	}
	if err := sc.validate(); err != nil {
		return nil, errors.New("E404").WithPath(path).WithDetail(err.Error())
	}
	return &sc, nil
}

func (sc *Script) validate() error {
	seen := map[string]bool{}
	for _, o := range sc.Observers {
		if o.Name == "" {
			return fmt.Errorf("observer without a name")
		}
		if seen[o.Name] {
			return fmt.Errorf("duplicate observer %q", o.Name)
		}
		seen[o.Name] = true
	}
	var check func(steps []Step, where string) error
	check = func(steps []Step, where string) error {
		for i, st := range steps {
			given := 0
			for _, set := range []bool{st.Set != nil, st.Merge != nil, st.Delete != nil, st.Batch != nil} {
				if set {
					given++
				}
			}
			if given != 1 {
				return fmt.Errorf("%s%d: exactly one of set, merge, delete, batch is required", where, i+1)
			}
			if st.Expect != nil {
				for _, name := range *st.Expect {
					if !seen[name] {
						return fmt.Errorf("%s%d: unknown observer %q", where, i+1, name)
					}
				}
			}
			if st.Batch != nil {
				if err := check(st.Batch, fmt.Sprintf("%s%d.", where, i+1)); err != nil {
					return err
				}
			}
		}
		return nil
	}
	return check(sc.Steps, "step ")
}

// =============================================================================
// Replay
// =============================================================================

// replayObserver is a mounted observer that re-renders when notified.
type replayObserver struct {
	spec     ObserverSpec
	node     *state.Node
	notified bool
}

// render starts a new observation cycle and performs the declared reads.
// Read errors (a pending root) are ignored; the reads are still recorded.
func (o *replayObserver) render() error {
	o.node.Reconcile()
	for _, p := range o.spec.Reads {
		path, err := state.ParsePath(p)
		if err != nil {
			return err
		}
		if _, err := o.node.At(path).Get(); err != nil && !state.IsCode(err, state.CodeGetWhenPending) {
			return err
		}
	}
	for _, p := range o.spec.Whole {
		path, err := state.ParsePath(p)
		if err != nil {
			return err
		}
		if _, err := o.node.At(path).GetWith(state.ReadOptions{NoProxy: true}); err != nil && !state.IsCode(err, state.CodeGetWhenPending) {
			return err
		}
	}
	for _, p := range o.spec.Keys {
		path, err := state.ParsePath(p)
		if err != nil {
			return err
		}
		o.node.At(path).Keys()
	}
	return nil
}

// StepResult records who was notified by one top-level step.
type StepResult struct {
	Step     Step
	Mutation string
	Notified []string
	Err      error
}

// Replayer runs a script against a store.
type Replayer struct {
	store     *state.Store
	observers []*replayObserver
}

// NewReplayer mounts the script's observers and renders them once.
func NewReplayer(s *state.Store, sc *Script) (*Replayer, error) {
	r := &Replayer{store: s}
	for _, spec := range sc.Observers {
		at, err := state.ParsePath(spec.At)
		if err != nil {
			return nil, err
		}
		o := &replayObserver{spec: spec}
		o.node = s.ObserveAt(at, func() { o.notified = true })
		if err := o.render(); err != nil {
			return nil, fmt.Errorf("observer %s: %w", spec.Name, err)
		}
		r.observers = append(r.observers, o)
	}
	return r, nil
}

// Apply runs one top-level step, then re-renders the notified observers.
func (r *Replayer) Apply(st Step) StepResult {
	for _, o := range r.observers {
		o.notified = false
	}

	res := StepResult{Step: st}
	var mutations []string
	res.Err = r.apply(st, &mutations)
	res.Mutation = strings.Join(mutations, " ")

	for _, o := range r.observers {
		if !o.notified {
			continue
		}
		res.Notified = append(res.Notified, o.spec.Name)
		if err := o.render(); err != nil && res.Err == nil {
			res.Err = fmt.Errorf("observer %s: %w", o.spec.Name, err)
		}
	}
	sort.Strings(res.Notified)
	return res
}

func (r *Replayer) apply(st Step, mutations *[]string) error {
	if st.Batch != nil {
		var err error
		r.store.Batch(func() {
			for _, inner := range st.Batch {
				if err = r.apply(inner, mutations); err != nil {
					return
				}
			}
		})
		return err
	}

	var raw string
	value := source.Normalize(st.Value)
	switch {
	case st.Set != nil:
		raw = *st.Set
	case st.Merge != nil:
		raw = *st.Merge
	case st.Delete != nil:
		raw = *st.Delete
		value = state.None
	}
	path, err := state.ParsePath(raw)
	if err != nil {
		return err
	}

	var m state.Mutation
	if st.Merge != nil {
		m, err = r.store.Merge(path, value)
	} else {
		m, err = r.store.Set(path, value)
	}
	if err != nil {
		return err
	}
	*mutations = append(*mutations, m.String())
	return nil
}

// Check reports a mismatch between res and the step's expectations.
func (res StepResult) Check() error {
	if res.Step.Expect == nil {
		return nil
	}
	want := slices.Clone(*res.Step.Expect)
	sort.Strings(want)
	if !slices.Equal(want, res.Notified) {
		return fmt.Errorf("notified %v, expected %v", res.Notified, want)
	}
	return nil
}
