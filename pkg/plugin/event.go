// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package plugin defines the API shared by plugin authors and the plugin manager:
// lifecycle hooks, the events passed to them, and dynamic method dispatch.
package plugin

import (
	"context"

	"github.com/holomush/pluginmgr/pkg/eventbus"
)

// Lifecycle hook method names. Instances expose hooks either as Go methods with
// these names, as entries of a Funcs map, or through a Dispatcher.
const (
	HookLoad             = "OnPluginLoad"
	HookUnload           = "OnPluginUnload"
	HookEventbusChanged  = "OnPluginEventbusChanged"
	HookEventbusResetter = "ResetEventbus"
)

// Event is passed to the load and unload hooks.
type Event struct {
	// Eventbus is the plugin's private proxy. Nil when the manager has no bus attached.
	Eventbus *eventbus.Proxy

	// PluginName is the registry key of the plugin.
	PluginName string

	// PluginOptions are the options supplied when the plugin was added.
	PluginOptions map[string]any

	// State carries data across a reload: whatever the unload hook stores here is
	// handed to the load hook of the replacement instance.
	State any

	// HotReload may be set by the load hook to have the manager reload the plugin
	// whenever the reloader supplies a new instance.
	HotReload HotReloader

	// Reloaded is true when the hook runs as part of a reload.
	Reloaded bool
}

// EventbusChangedEvent is passed to OnPluginEventbusChanged after the manager
// moved every plugin to a new bus.
type EventbusChangedEvent struct {
	Eventbus       *eventbus.Proxy
	PluginName     string
	PluginOptions  map[string]any
	OldEventbus    *eventbus.Eventbus
	NewEventbus    *eventbus.Eventbus
	OldEventPrefix string
	NewEventPrefix string
}

// InvokeEvent is the single event object shared by every plugin during one
// event-broadcast invocation. The per-plugin fields are rebound before each
// plugin runs; Data is shared and mutated in place.
type InvokeEvent struct {
	Data          map[string]any
	Eventbus      *eventbus.Proxy
	PluginName    string
	PluginOptions map[string]any
}

// LoadHook is implemented by plugins that want to run code once loaded.
type LoadHook interface {
	OnPluginLoad(ctx context.Context, ev *Event) error
}

// UnloadHook is implemented by plugins that release resources on removal or reload.
type UnloadHook interface {
	OnPluginUnload(ctx context.Context, ev *Event) error
}

// EventbusChangedHook is implemented by plugins that react to bus swaps.
type EventbusChangedHook interface {
	OnPluginEventbusChanged(ctx context.Context, ev *EventbusChangedEvent) error
}

// EventbusResetter is implemented by plugins that hold on to a bus reference.
// The manager calls it when the plugin is removed or reloaded.
type EventbusResetter interface {
	ResetEventbus()
}

// HotReloader is an external source of replacement instances, typically a file
// watcher supplied by the module loader.
type HotReloader interface {
	// Accept registers the callback invoked with each new instance.
	Accept(fn func(instance any))

	// Close stops the reloader. Accepted callbacks are no longer invoked.
	Close() error
}
