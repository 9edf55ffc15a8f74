// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package eventbus provides a named publish/subscribe bus used to wire plugins
// to each other and to their host.
//
// Handlers are registered per event name and invoked in registration order.
// Three trigger styles are offered:
//
//   - Trigger calls every handler for side effects and discards results.
//   - TriggerSync calls handlers one after another and collects their results.
//   - TriggerAsync runs handlers concurrently, awaits any Awaitable results and
//     aborts on the first error.
//
// Collected results collapse to nil (no results), the single value (one result)
// or a []any (two or more results).
//
// A Proxy wraps a bus and remembers the subscriptions it created so that its
// owner can release them in bulk. A Secure view only triggers events and can be
// pointed at a different bus without invalidating references held by callers.
package eventbus
