// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package eventbus

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"sync"

	"github.com/samber/oops"
	"golang.org/x/sync/errgroup"
)

// Handler receives the arguments passed to a trigger call.
// A nil result is not collected by TriggerSync or TriggerAsync.
type Handler func(ctx context.Context, args ...any) (any, error)

// Eventbus is a concurrency-safe publish/subscribe bus keyed by event name.
type Eventbus struct {
	name   string
	events map[string][]*Subscription
	mu     sync.RWMutex
}

// New creates an empty bus. The name is only used for diagnostics.
func New(name string) *Eventbus {
	return &Eventbus{
		name:   name,
		events: make(map[string][]*Subscription),
	}
}

// Name returns the diagnostic name of the bus.
func (b *Eventbus) Name() string {
	return b.name
}

// On registers handler for event and returns the subscription handle.
func (b *Eventbus) On(event string, handler Handler, opts ...Option) (*Subscription, error) {
	sub, err := newSubscription(event, handler, opts)
	if err != nil {
		return nil, err
	}
	if err := b.attach(sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// attach registers an existing subscription, enforcing guarded events.
func (b *Eventbus) attach(sub *Subscription) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	existing := b.events[sub.event]
	for _, other := range existing {
		if other.guard {
			return oops.Code("EVENT_GUARDED").In("eventbus").
				With("event", sub.event).
				With("bus", b.name).
				Wrap(ErrGuarded)
		}
	}
	if sub.guard && len(existing) > 0 {
		return oops.Code("EVENT_GUARDED").In("eventbus").
			With("event", sub.event).
			With("bus", b.name).
			Hint("a guarded subscription must be the only handler for its event").
			Wrap(ErrGuarded)
	}
	b.events[sub.event] = append(existing, sub)
	return nil
}

// Off removes subscriptions for event. With no subscriptions given every
// handler for event is removed. With an empty event name the given
// subscriptions are removed wherever they are registered.
// It returns the number of subscriptions removed.
func (b *Eventbus) Off(event string, subs ...*Subscription) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if event != "" && len(subs) == 0 {
		n := len(b.events[event])
		delete(b.events, event)
		return n
	}

	removed := 0
	for _, target := range subs {
		if target == nil {
			continue
		}
		name := target.event
		if event != "" && event != name {
			continue
		}
		list := b.events[name]
		for i, sub := range list {
			if sub.id == target.id {
				list = append(list[:i:i], list[i+1:]...)
				removed++
				break
			}
		}
		if len(list) == 0 {
			delete(b.events, name)
		} else {
			b.events[name] = list
		}
	}
	return removed
}

// EventNames returns the sorted names of events with at least one handler.
func (b *Eventbus) EventNames() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	names := make([]string, 0, len(b.events))
	for name := range b.events {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CallbackCount returns the number of handlers registered for event.
func (b *Eventbus) CallbackCount(event string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.events[event])
}

// IsGuarded reports whether event is claimed by a guarded subscription.
func (b *Eventbus) IsGuarded(event string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.events[event] {
		if sub.guard {
			return true
		}
	}
	return false
}

// CreateProxy returns a new proxy that tracks its own subscriptions on b.
func (b *Eventbus) CreateProxy() *Proxy {
	return &Proxy{bus: b}
}

// CreateSecure returns a trigger-only view of b.
func (b *Eventbus) CreateSecure(name string) *Secure {
	return &Secure{bus: b, name: name}
}

// Trigger calls every handler for event and discards the results.
// Handler errors are logged, not returned.
func (b *Eventbus) Trigger(ctx context.Context, event string, args ...any) {
	for _, sub := range b.handlers(event) {
		if _, err := invoke(ctx, sub, args); err != nil {
			slog.Warn("event handler failed",
				"bus", b.name,
				"event", event,
				"subscription", sub.ID(),
				"error", err)
		}
	}
}

// TriggerSync calls every handler for event in registration order and returns
// the collapsed non-nil results. The first handler error stops the call.
func (b *Eventbus) TriggerSync(ctx context.Context, event string, args ...any) (any, error) {
	var results []any
	for _, sub := range b.handlers(event) {
		res, err := invoke(ctx, sub, args)
		if err != nil {
			return nil, err
		}
		if res != nil {
			results = append(results, res)
		}
	}
	return Collapse(results), nil
}

// TriggerAsync calls every handler for event in registration order on the
// caller's goroutine, then awaits the Awaitable results together and returns
// the collapsed non-nil results in registration order. A handler error stops
// the remaining handlers; the first await error cancels the other awaits.
func (b *Eventbus) TriggerAsync(ctx context.Context, event string, args ...any) (any, error) {
	subs := b.handlers(event)
	if len(subs) == 0 {
		return nil, nil
	}

	pending := make([]any, 0, len(subs))
	for _, sub := range subs {
		res, err := invoke(ctx, sub, args)
		if err != nil {
			return nil, err
		}
		pending = append(pending, res)
	}

	settled := make([]any, len(pending))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range pending {
		if _, ok := p.(Awaitable); !ok {
			settled[i] = p
			continue
		}
		g.Go(func() error {
			v, err := Resolve(gctx, p)
			if err != nil {
				return oops.In("eventbus").With("event", event).Wrap(err)
			}
			settled[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err //nolint:wrapcheck // wrapped per await
	}

	results := make([]any, 0, len(settled))
	for _, res := range settled {
		if res != nil {
			results = append(results, res)
		}
	}
	return Collapse(results), nil
}

// handlers returns a snapshot of the subscriptions for event so handlers run
// without holding the lock.
func (b *Eventbus) handlers(event string) []*Subscription {
	b.mu.RLock()
	defer b.mu.RUnlock()

	list := b.events[event]
	if len(list) == 0 {
		return nil
	}
	out := make([]*Subscription, len(list))
	copy(out, list)
	return out
}

// invoke calls the subscription handler and converts panics into errors.
func invoke(ctx context.Context, sub *Subscription, args []any) (res any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = oops.Code("HANDLER_PANIC").In("eventbus").
				With("event", sub.event).
				With("stack", string(debug.Stack())).
				Errorf("event handler panicked: %v", r)
		}
	}()

	res, err = sub.handler(ctx, args...)
	if err != nil {
		return nil, oops.In("eventbus").With("event", sub.event).Wrap(err)
	}
	return res, nil
}

// String implements fmt.Stringer.
func (b *Eventbus) String() string {
	return fmt.Sprintf("eventbus(%s)", b.name)
}
