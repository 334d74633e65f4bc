package state

import (
	"context"
	"sync"
)

// Future is a value that settles later. Writing a Future to the root of a
// store makes the store pending until the Future settles.
type Future interface {
	// Then registers settlement callbacks. Exactly one of them is invoked,
	// once, possibly before Then returns.
	Then(onFulfilled func(any), onRejected func(error))
}

// PendingDetector decides whether a value written to the root is asynchronous.
type PendingDetector func(v any) (Future, bool)

// detectFuture is the default PendingDetector.
func detectFuture(v any) (Future, bool) {
	f, ok := v.(Future)
	return f, ok
}

// =============================================================================
// Promise
// =============================================================================

// Promise is a settle-once Future. It is safe for concurrent use; callbacks
// run on the goroutine that settles it (or that calls Then after settlement).
type Promise struct {
	mu        sync.Mutex
	settled   bool
	value     any
	err       error
	fulfilled []func(any)
	rejected  []func(error)
}

// NewPromise returns an unsettled promise.
func NewPromise() *Promise {
	return &Promise{}
}

// Resolved returns a promise already fulfilled with v.
func Resolved(v any) *Promise {
	p := NewPromise()
	p.Resolve(v)
	return p
}

// Rejected returns a promise already rejected with err.
func Rejected(err error) *Promise {
	p := NewPromise()
	p.Reject(err)
	return p
}

// Go runs fn on a new goroutine and returns a promise for its result.
// Cancelling ctx does not abort fn; fn is expected to observe ctx itself.
func Go(ctx context.Context, fn func(ctx context.Context) (any, error)) *Promise {
	p := NewPromise()
	go func() {
		v, err := fn(ctx)
		if err != nil {
			p.Reject(err)
			return
		}
		p.Resolve(v)
	}()
	return p
}

// Then implements Future.
func (p *Promise) Then(onFulfilled func(any), onRejected func(error)) {
	p.mu.Lock()
	if !p.settled {
		p.fulfilled = append(p.fulfilled, onFulfilled)
		p.rejected = append(p.rejected, onRejected)
		p.mu.Unlock()
		return
	}
	v, err := p.value, p.err
	p.mu.Unlock()

	if err != nil {
		onRejected(err)
	} else {
		onFulfilled(v)
	}
}

// Resolve fulfils the promise. It returns false if already settled.
func (p *Promise) Resolve(v any) bool {
	p.mu.Lock()
	if p.settled {
		p.mu.Unlock()
		return false
	}
	p.settled, p.value = true, v
	callbacks := p.fulfilled
	p.fulfilled, p.rejected = nil, nil
	p.mu.Unlock()

	for _, cb := range callbacks {
		cb(v)
	}
	return true
}

// Reject fails the promise. It returns false if already settled.
func (p *Promise) Reject(err error) bool {
	p.mu.Lock()
	if p.settled {
		p.mu.Unlock()
		return false
	}
	p.settled, p.err = true, err
	callbacks := p.rejected
	p.fulfilled, p.rejected = nil, nil
	p.mu.Unlock()

	for _, cb := range callbacks {
		cb(err)
	}
	return true
}

// Settled reports whether the promise has been resolved or rejected.
func (p *Promise) Settled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.settled
}

// =============================================================================
// Pending root holder
// =============================================================================

// promiseState is the lifecycle of a pending root: Pending -> Fulfilled | Rejected.
type promiseState uint8

const (
	promisePending promiseState = iota
	promiseFulfilled
	promiseRejected
)

// promised tracks the asynchronous root of a store.
//
// A holder installed by writing None at the root is resolvable: the next
// concrete root write fulfils it. A holder installed from a Future is not,
// and concrete writes are rejected until the Future settles.
type promised struct {
	state      promiseState
	resolvable bool
	err        error
}

func (p *promised) pending() bool {
	return p != nil && p.state == promisePending
}

// await wires settlement of f back into the store through its dispatcher.
// Settlement is ignored once the holder has been superseded or the store
// destroyed.
func (s *Store) await(p *promised, f Future) {
	f.Then(
		func(v any) {
			s.dispatch(func() {
				if s.promised != p || s.Destroyed() {
					return
				}
				p.state = promiseFulfilled
				s.promised = nil
				m, err := s.set(Root, v, nil)
				if err != nil {
					return
				}
				s.Notify(m)
			})
		},
		func(err error) {
			s.dispatch(func() {
				if s.promised != p || s.Destroyed() {
					return
				}
				p.state = promiseRejected
				p.err = err
				s.edition++
				s.Notify(Mutation{Path: Root})
			})
		},
	)
}
