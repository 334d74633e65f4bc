// Package trackstate provides the public API for trackstate stores.
//
// This is the recommended import for most applications:
//
//	import "github.com/vango-dev/trackstate"
//
// Usage:
//
//	s, _ := trackstate.New(map[string]any{"user": map[string]any{"name": "Ada"}})
//	view := s.Observe(func() { rerender() })
//	name := view.Field("user").Field("name").Value()
//	s.Set(trackstate.P("user", "name"), "Grace") // rerender runs
package trackstate

import (
	"context"

	"github.com/vango-dev/trackstate/internal/source"
	"github.com/vango-dev/trackstate/pkg/state"
)

// =============================================================================
// Store (re-export from pkg/state)
// =============================================================================

// Store is a tracked document. See state.Store.
type Store = state.Store

// Node is one observer's handle on a path of a store.
type Node = state.Node

// Option configures a store.
type Option = state.Option

// New creates a store holding initial.
func New(initial any, opts ...Option) (*Store, error) {
	return state.New(initial, opts...)
}

// WithExtensions attaches extensions to a store.
var WithExtensions = state.WithExtensions

// WithDispatcher routes asynchronous settlement through dispatch.
var WithDispatcher = state.WithDispatcher

// None is the absent value. Writing it deletes; writing it at the root
// leaves the store pending.
var None = state.None

// =============================================================================
// Paths
// =============================================================================

// Path addresses a value inside a document.
type Path = state.Path

// Key is one path segment.
type Key = state.Key

// P builds a path from field names and indices.
var P = state.P

// ParsePath parses a dotted path such as "items.0.title".
var ParsePath = state.ParsePath

// =============================================================================
// Asynchronous roots
// =============================================================================

// Promise is the built-in Future.
type Promise = state.Promise

// Go runs fn in a goroutine and returns a Promise for its result.
var Go = state.Go

// =============================================================================
// Loading
// =============================================================================

// Open loads a JSON, YAML or TOML document from a file path or an
// s3://bucket/key URL and creates a store holding it.
//
// The document is loaded before Open returns. For a store that is usable
// while the document loads, pass Go(ctx, ...) to New instead.
func Open(ctx context.Context, location string, opts ...Option) (*Store, error) {
	doc, err := source.Load(ctx, location)
	if err != nil {
		return nil, err
	}
	return state.New(doc, opts...)
}
