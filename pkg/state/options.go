package state

// Option is a functional option for configuring a store.
type Option func(*storeOptions)

// storeOptions holds configuration for store behavior.
type storeOptions struct {
	extensions []Extension
	dispatch   func(func())
	detect     PendingDetector
}

// WithExtensions registers extensions in order. Hooks run in registration order.
func WithExtensions(exts ...Extension) Option {
	return func(o *storeOptions) {
		o.extensions = append(o.extensions, exts...)
	}
}

// WithDispatcher sets how Future settlements re-enter the store.
//
// A store is not safe for concurrent use. When Futures settle on other
// goroutines (as with Go), the dispatcher must hand the callback to the
// goroutine that owns the store, e.g. an event loop channel:
//
//	loop := make(chan func(), 16)
//	s, _ := state.New(v, state.WithDispatcher(func(fn func()) { loop <- fn }))
//
// By default settlements run inline on the settling goroutine.
func WithDispatcher(dispatch func(func())) Option {
	return func(o *storeOptions) {
		o.dispatch = dispatch
	}
}

// WithPendingDetector replaces the predicate that recognises asynchronous
// root values. By default any value implementing Future is asynchronous.
func WithPendingDetector(detect PendingDetector) Option {
	return func(o *storeOptions) {
		o.detect = detect
	}
}

func applyOptions(opts []Option) storeOptions {
	options := storeOptions{
		dispatch: func(fn func()) { fn() },
		detect:   detectFuture,
	}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}
