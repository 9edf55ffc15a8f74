// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package pluginmgr

import (
	"context"
	"log/slog"
	"sync"

	"github.com/holomush/pluginmgr/pkg/eventbus"
	"github.com/holomush/pluginmgr/pkg/plugin"
)

// Entry is one registered plugin.
type Entry struct {
	name string

	// lifecycle serializes add, remove and reload of this entry.
	lifecycle sync.Mutex

	mu       sync.RWMutex
	data     *PluginData
	instance any
	methods  *plugin.MethodSet
	enabled  bool
	reloader plugin.HotReloader
	proxy    *eventbus.Proxy
}

func newEntry(name string, data *PluginData, instance any, proxy *eventbus.Proxy) *Entry {
	return &Entry{
		name:     name,
		data:     data,
		instance: instance,
		methods:  plugin.NewMethodSet(instance),
		enabled:  true,
		proxy:    proxy,
	}
}

// Name returns the registry key.
func (e *Entry) Name() string {
	return e.name
}

// Data returns the stored snapshot. Callers must treat it as read-only.
func (e *Entry) Data() *PluginData {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.data
}

// Instance returns the loaded plugin instance.
func (e *Entry) Instance() any {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.instance
}

// SetInstance replaces the instance and re-resolves its methods.
func (e *Entry) SetInstance(instance any) {
	methods := plugin.NewMethodSet(instance)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.instance = instance
	e.methods = methods
}

// Methods returns the cached method set of the current instance.
func (e *Entry) Methods() *plugin.MethodSet {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.methods
}

// Eventbus returns the entry's private proxy, nil when no bus is attached.
func (e *Entry) Eventbus() *eventbus.Proxy {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.proxy
}

// Enabled reports whether the entry takes part in events and invocations.
func (e *Entry) Enabled() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.enabled
}

// SetEnabled suspends or restores the entry's subscriptions. A disabled
// entry's proxy stays suspended, so subscriptions it makes while disabled are
// recorded but never fire. Returns true when the flag changed.
func (e *Entry) SetEnabled(enabled bool) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.enabled == enabled {
		return false
	}
	e.enabled = enabled

	if e.proxy == nil {
		return true
	}
	if !enabled {
		e.proxy.Suspend()
		return true
	}
	if err := e.proxy.Resume(); err != nil {
		slog.Warn("failed to restore plugin subscriptions",
			"plugin", e.name,
			"error", err)
	}
	return true
}

func (e *Entry) rebind(proxy *eventbus.Proxy, bindings []eventbus.Binding) {
	for _, b := range bindings {
		if _, err := proxy.Bind(b); err != nil {
			slog.Warn("failed to restore plugin subscription",
				"plugin", e.name,
				"event", b.Event,
				"error", err)
		}
	}
}

// Events returns the sorted event names the entry subscribes to, including
// suspended subscriptions.
func (e *Entry) Events() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.proxy == nil {
		return []string{}
	}
	return e.proxy.EventNames()
}

// Reloader returns the hot-reload source, if any.
func (e *Entry) Reloader() plugin.HotReloader {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.reloader
}

func (e *Entry) setReloader(r plugin.HotReloader) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reloader = r
}

// Reset clears loader metadata and asks the instance to drop its bus
// reference. Failures raised by the instance are ignored.
func (e *Entry) Reset(ctx context.Context) {
	e.mu.Lock()
	e.reloader = nil
	methods := e.methods
	e.mu.Unlock()

	if methods.Has(plugin.HookEventbusResetter) {
		if _, err := methods.Call(ctx, plugin.HookEventbusResetter); err != nil {
			slog.Debug("plugin eventbus reset failed",
				"plugin", e.name,
				"error", err)
		}
	}
}

// unbind releases every subscription, active or suspended, keeping the proxy.
func (e *Entry) unbind() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.proxy != nil {
		e.proxy.Off("")
	}
}

// destroyProxy releases every subscription the entry ever made.
func (e *Entry) destroyProxy() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.proxy != nil {
		e.proxy.Destroy()
	}
}

// moveTo rebinds the entry's subscriptions on a proxy of bus and destroys the
// old proxy. A disabled entry gets a suspended proxy.
func (e *Entry) moveTo(bus *eventbus.Eventbus, prefix string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	old := e.proxy
	var bindings []eventbus.Binding
	if old != nil {
		bindings = old.Bindings()
		old.Destroy()
	}

	e.proxy = bus.CreateProxy()
	if !e.enabled {
		e.proxy.Suspend()
	}
	e.rebind(e.proxy, bindings)
	e.data = e.data.withPrefix(prefix)
}
