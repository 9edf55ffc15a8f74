// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package eventbus

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

var (
	entropy     = ulid.Monotonic(rand.Reader, 0)
	entropyLock sync.Mutex
)

func newID() ulid.ULID {
	entropyLock.Lock()
	defer entropyLock.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy)
}

// Option configures a subscription.
type Option func(*subOptions)

type subOptions struct {
	guard bool
}

// WithGuard claims the event name: while the subscription exists no other
// subscription may be registered for the same event.
func WithGuard() Option {
	return func(o *subOptions) {
		o.guard = true
	}
}

func newSubscription(event string, handler Handler, opts []Option) (*Subscription, error) {
	if event == "" {
		return nil, ErrInvalidEvent
	}
	if handler == nil {
		return nil, oops.In("eventbus").With("event", event).Wrap(ErrNilHandler)
	}
	var o subOptions
	for _, opt := range opts {
		opt(&o)
	}
	return &Subscription{
		id:      newID(),
		event:   event,
		handler: handler,
		guard:   o.guard,
	}, nil
}

// Subscription is the handle returned by On. It identifies one registered
// handler and is used to release it.
type Subscription struct {
	id      ulid.ULID
	event   string
	handler Handler
	guard   bool
}

// ID returns the unique subscription identifier.
func (s *Subscription) ID() string {
	return s.id.String()
}

// Event returns the subscribed event name.
func (s *Subscription) Event() string {
	return s.event
}

// Guarded reports whether the subscription claims its event name.
func (s *Subscription) Guarded() bool {
	return s.guard
}

// Binding returns the definition needed to register an equivalent subscription again.
func (s *Subscription) Binding() Binding {
	return Binding{Event: s.event, Handler: s.handler, Guard: s.guard}
}

// Binding is the definition of a subscription: event name, handler and options.
// Proxies hand out bindings so that owners can suspend and later restore the
// exact same set of subscriptions.
type Binding struct {
	Event   string
	Handler Handler
	Guard   bool
}

// Options returns the subscription options recorded in the binding.
func (b Binding) Options() []Option {
	if b.Guard {
		return []Option{WithGuard()}
	}
	return nil
}
