// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package eventbus

import "errors"

// Sentinel errors for programmatic error checking.
var (
	// ErrInvalidEvent is returned when an event name is empty.
	ErrInvalidEvent = errors.New("event name is empty")
	// ErrNilHandler is returned when subscribing a nil handler.
	ErrNilHandler = errors.New("handler is nil")
	// ErrGuarded is returned when subscribing to an event name claimed by a guarded subscription.
	ErrGuarded = errors.New("event is guarded")
	// ErrProxyDestroyed is returned when using a destroyed proxy.
	ErrProxyDestroyed = errors.New("eventbus proxy is destroyed")
	// ErrSecureDestroyed is returned when using a destroyed secure view.
	ErrSecureDestroyed = errors.New("eventbus secure view is destroyed")
	// ErrNilEventbus is returned when a nil bus is supplied where one is required.
	ErrNilEventbus = errors.New("eventbus is nil")
)
