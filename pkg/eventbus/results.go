// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package eventbus

import (
	"context"
	"sync"
)

// Awaitable is a deferred value. TriggerAsync and the plugin manager's async
// invocation await values implementing it before collecting results.
type Awaitable interface {
	Await(ctx context.Context) (any, error)
}

// Collapse applies the result shape rule: no results yields nil, exactly one
// result yields that value and two or more yield the ordered slice.
func Collapse(results []any) any {
	switch len(results) {
	case 0:
		return nil
	case 1:
		return results[0]
	default:
		return results
	}
}

// Promise is an Awaitable resolved by a background goroutine.
type Promise struct {
	done chan struct{}
	once sync.Once
	val  any
	err  error
}

// Go runs fn in a new goroutine and returns a Promise for its result.
func Go(fn func() (any, error)) *Promise {
	p := &Promise{done: make(chan struct{})}
	go func() {
		v, err := fn()
		p.settle(v, err)
	}()
	return p
}

// Resolved returns a Promise already settled with v.
func Resolved(v any) *Promise {
	p := &Promise{done: make(chan struct{})}
	p.settle(v, nil)
	return p
}

// Rejected returns a Promise already settled with err.
func Rejected(err error) *Promise {
	p := &Promise{done: make(chan struct{})}
	p.settle(nil, err)
	return p
}

func (p *Promise) settle(v any, err error) {
	p.once.Do(func() {
		p.val, p.err = v, err
		close(p.done)
	})
}

// Await blocks until the promise settles or ctx is done.
func (p *Promise) Await(ctx context.Context) (any, error) {
	select {
	case <-p.done:
		return p.val, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Resolve awaits v when it is Awaitable and returns it unchanged otherwise.
func Resolve(ctx context.Context, v any) (any, error) {
	if a, ok := v.(Awaitable); ok {
		return a.Await(ctx)
	}
	return v, nil
}
