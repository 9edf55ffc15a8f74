// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package eventbus

import (
	"context"
	"sync"
)

// Secure is a trigger-only view of an Eventbus. The underlying bus can be
// swapped with SetEventbus while callers keep using the same *Secure.
type Secure struct {
	bus       *Eventbus
	name      string
	destroyed bool
	mu        sync.RWMutex
}

// Name returns the name given at creation.
func (s *Secure) Name() string {
	return s.name
}

// SetEventbus redirects the view to bus.
func (s *Secure) SetEventbus(bus *Eventbus) error {
	if bus == nil {
		return ErrNilEventbus
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return ErrSecureDestroyed
	}
	s.bus = bus
	return nil
}

// Destroy detaches the view. Further triggers fail with ErrSecureDestroyed.
func (s *Secure) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.destroyed = true
	s.bus = nil
}

// IsDestroyed reports whether Destroy has been called.
func (s *Secure) IsDestroyed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.destroyed
}

func (s *Secure) current() (*Eventbus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.destroyed {
		return nil, ErrSecureDestroyed
	}
	return s.bus, nil
}

// Trigger forwards to the current bus.
func (s *Secure) Trigger(ctx context.Context, event string, args ...any) error {
	bus, err := s.current()
	if err != nil {
		return err
	}
	bus.Trigger(ctx, event, args...)
	return nil
}

// TriggerSync forwards to the current bus.
func (s *Secure) TriggerSync(ctx context.Context, event string, args ...any) (any, error) {
	bus, err := s.current()
	if err != nil {
		return nil, err
	}
	return bus.TriggerSync(ctx, event, args...)
}

// TriggerAsync forwards to the current bus.
func (s *Secure) TriggerAsync(ctx context.Context, event string, args ...any) (any, error) {
	bus, err := s.current()
	if err != nil {
		return nil, err
	}
	return bus.TriggerAsync(ctx, event, args...)
}
