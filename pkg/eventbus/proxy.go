// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package eventbus

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// Proxy is a filtered view of an Eventbus that remembers the subscriptions it
// made. Releasing the proxy's subscriptions never touches subscriptions made by
// other owners on the same bus.
//
// A suspended proxy keeps its subscriptions off the bus. On still records new
// subscriptions, and Resume registers all of them in their original order.
type Proxy struct {
	bus       *Eventbus
	subs      []*Subscription
	suspended bool
	destroyed bool
	mu        sync.Mutex
}

// Eventbus returns the bus the proxy is bound to.
func (p *Proxy) Eventbus() *Eventbus {
	return p.bus
}

// On registers handler on the underlying bus and records the subscription.
func (p *Proxy) On(event string, handler Handler, opts ...Option) (*Subscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.destroyed {
		return nil, ErrProxyDestroyed
	}

	sub, err := newSubscription(event, handler, opts)
	if err != nil {
		return nil, err
	}
	if !p.suspended {
		if err := p.bus.attach(sub); err != nil {
			return nil, err
		}
	}
	p.subs = append(p.subs, sub)
	return sub, nil
}

// Suspend takes every owned subscription off the bus. It returns false when
// the proxy was already suspended.
func (p *Proxy) Suspend() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.suspended {
		return false
	}
	p.suspended = true
	if len(p.subs) > 0 {
		p.bus.Off("", p.subs...)
	}
	return true
}

// Resume registers the owned subscriptions again, keeping their handles. A
// subscription that can no longer be registered, because another owner
// guarded its event meanwhile, is dropped and reported in the returned error.
func (p *Proxy) Resume() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.suspended {
		return nil
	}
	p.suspended = false

	var errs []error
	kept := p.subs[:0]
	for _, sub := range p.subs {
		if err := p.bus.attach(sub); err != nil {
			errs = append(errs, err)
			continue
		}
		kept = append(kept, sub)
	}
	p.subs = kept
	return errors.Join(errs...)
}

// Suspended reports whether the proxy's subscriptions are off the bus.
func (p *Proxy) Suspended() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.suspended
}

// Bind registers a previously captured binding.
func (p *Proxy) Bind(b Binding) (*Subscription, error) {
	return p.On(b.Event, b.Handler, b.Options()...)
}

// Off releases subscriptions owned by the proxy. An empty event name with no
// subscriptions releases everything the proxy owns. A non-empty event name with
// no subscriptions releases every owned subscription for that event.
// It returns the number of subscriptions released.
func (p *Proxy) Off(event string, subs ...*Subscription) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.off(event, subs)
}

func (p *Proxy) off(event string, subs []*Subscription) int {
	var selected, kept []*Subscription
	for _, owned := range p.subs {
		if matches(owned, event, subs) {
			selected = append(selected, owned)
		} else {
			kept = append(kept, owned)
		}
	}
	if len(selected) == 0 {
		return 0
	}
	p.subs = kept
	if p.suspended {
		return len(selected)
	}
	p.bus.Off("", selected...)
	return len(selected)
}

func matches(owned *Subscription, event string, subs []*Subscription) bool {
	if event != "" && owned.event != event {
		return false
	}
	if len(subs) == 0 {
		return true
	}
	for _, s := range subs {
		if s != nil && s.id == owned.id {
			return true
		}
	}
	return false
}

// Bindings returns the definitions of every owned subscription in
// registration order, suspended or not.
func (p *Proxy) Bindings() []Binding {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Binding, len(p.subs))
	for i, sub := range p.subs {
		out[i] = sub.Binding()
	}
	return out
}

// EventNames returns the sorted, distinct event names the proxy has subscribed to.
func (p *Proxy) EventNames() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	seen := make(map[string]struct{}, len(p.subs))
	names := make([]string, 0, len(p.subs))
	for _, sub := range p.subs {
		if _, ok := seen[sub.event]; ok {
			continue
		}
		seen[sub.event] = struct{}{}
		names = append(names, sub.event)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of owned subscriptions.
func (p *Proxy) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subs)
}

// Destroy releases every owned subscription. Further On calls fail.
func (p *Proxy) Destroy() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.off("", nil)
	p.destroyed = true
}

// IsDestroyed reports whether Destroy has been called.
func (p *Proxy) IsDestroyed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.destroyed
}

// Trigger forwards to the underlying bus.
func (p *Proxy) Trigger(ctx context.Context, event string, args ...any) {
	p.bus.Trigger(ctx, event, args...)
}

// TriggerSync forwards to the underlying bus.
func (p *Proxy) TriggerSync(ctx context.Context, event string, args ...any) (any, error) {
	return p.bus.TriggerSync(ctx, event, args...)
}

// TriggerAsync forwards to the underlying bus.
func (p *Proxy) TriggerAsync(ctx context.Context, event string, args ...any) (any, error) {
	return p.bus.TriggerAsync(ctx, event, args...)
}
