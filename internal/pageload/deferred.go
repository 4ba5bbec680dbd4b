// Package pageload holds the deferred-data primitives shared by all route
// loaders: a pending asynchronous value, and the short-circuit results
// (redirect, not found) loaders return instead of page data.
//
// The convention every loader follows:
//
//   - validate inputs first, fail fast
//   - await the critical query; its result gates the whole response
//   - start deferred queries with Go without awaiting them
//   - redirect decisions happen before any deferred query is started
package pageload

import "context"

// Deferred is a pending asynchronous value. It resolves at most once and
// is discarded after the owning render completes.
type Deferred[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// Go starts fn on its own goroutine and returns the pending value.
// fn receives the given ctx; cancelling it cancels the underlying query.
func Go[T any](ctx context.Context, fn func(context.Context) (T, error)) *Deferred[T] {
	d := &Deferred[T]{done: make(chan struct{})}
	go func() {
		defer close(d.done)
		d.val, d.err = fn(ctx)
	}()
	return d
}

// Resolved wraps an already-known value, useful in tests and for routes
// that sometimes have the data on hand.
func Resolved[T any](val T) *Deferred[T] {
	d := &Deferred[T]{done: make(chan struct{}), val: val}
	close(d.done)
	return d
}

// Failed wraps an already-known error.
func Failed[T any](err error) *Deferred[T] {
	d := &Deferred[T]{done: make(chan struct{}), err: err}
	close(d.done)
	return d
}

// Wait blocks until the value resolves or ctx is done, whichever is first.
func (d *Deferred[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-d.done:
		return d.val, d.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Done reports without blocking whether the value has resolved.
func (d *Deferred[T]) Done() bool {
	select {
	case <-d.done:
		return true
	default:
		return false
	}
}
