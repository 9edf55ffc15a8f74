// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package pluginmgr is the plugin registry: it loads plugins, tracks them as
// named entries wired to a shared event bus, and invokes methods across them.
package pluginmgr

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"
	"go.opentelemetry.io/otel/attribute"

	"github.com/holomush/pluginmgr/pkg/errutil"
	"github.com/holomush/pluginmgr/pkg/eventbus"
	"github.com/holomush/pluginmgr/pkg/plugin"
)

// Notification event suffixes, published as "{prefix}:{suffix}".
const (
	EventPluginAdded    = "plugin:added"
	EventPluginRemoved  = "plugin:removed"
	EventPluginReloaded = "plugin:reloaded"
	EventPluginEnabled  = "plugin:enabled"
)

// ModuleLoader resolves a target to a plugin instance.
type ModuleLoader interface {
	Load(ctx context.Context, target string, resolve plugin.Resolver) (plugin.LoadResult, error)
}

// Manager is the plugin registry.
type Manager struct {
	mu sync.RWMutex

	// entries is nil once the manager is destroyed.
	entries *orderedmap.OrderedMap[string, *Entry]
	loading map[string]struct{}

	bus      *eventbus.Eventbus
	prefix   string
	options  Options
	loader   ModuleLoader
	commands *eventbus.Proxy
	proxies  []*eventbus.Proxy
	secures  []*eventbus.Secure

	supportFactories []SupportFactory
	supports         []Support

	logger *slog.Logger
}

// New creates a manager. The invoke extension is always composed in; other
// extensions are added with WithSupport.
func New(opts ...Option) *Manager {
	m := &Manager{
		entries: orderedmap.New[string, *Entry](),
		loading: make(map[string]struct{}),
		prefix:  DefaultEventPrefix,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}

	factories := append([]SupportFactory{invokeSupportFactory}, m.supportFactories...)
	for _, f := range factories {
		m.supports = append(m.supports, f(m))
	}
	m.supportFactories = nil

	for _, s := range m.supports {
		s.SetOptions(m.options)
	}
	if m.bus != nil {
		m.commands = m.bus.CreateProxy()
		m.bindCommands(m.commands, m.prefix, m.options)
		for _, s := range m.supports {
			if err := s.SetEventbus(m.bus, m.prefix); err != nil {
				errutil.LogWarn(m.logger, "failed to attach support extension", err)
			}
		}
	}
	return m
}

// ReloadRequest selects the plugin to reload and the optional replacement.
type ReloadRequest struct {
	Plugin string `mapstructure:"plugin"`

	// Instance replaces the current instance when non-nil.
	Instance any `mapstructure:"instance"`

	// Silent suppresses the reloaded notification.
	Silent bool `mapstructure:"silent"`
}

// RemoveResult reports the outcome of removing one plugin.
type RemoveResult struct {
	Plugin  string  `json:"plugin"`
	Success bool    `json:"success"`
	Errors  []error `json:"-"`
}

// Add registers a plugin. moduleData is opaque caller metadata stored in the
// returned snapshot. The load hook runs before Add returns; if it fails the
// entry is rolled back and the hook error is returned.
//
// The returned PluginData is a copy; later bus swaps do not update it.
func (m *Manager) Add(ctx context.Context, cfg Config, moduleData map[string]any) (_ *PluginData, err error) {
	ctx, span := startSpan(ctx, "pluginmgr.add", attribute.String("plugin.name", cfg.Name))
	defer func() {
		endSpan(span, err)
		recordLifecycle("add", err)
	}()

	if err := m.checkAlive(); err != nil {
		return nil, err
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	name := cfg.Name
	target := cfg.ResolvedTarget()

	m.mu.Lock()
	if m.entries == nil {
		m.mu.Unlock()
		return nil, errDestroyed()
	}
	if _, ok := m.entries.Get(name); ok {
		m.mu.Unlock()
		return nil, errPluginExists(name)
	}
	if _, ok := m.loading[name]; ok {
		m.mu.Unlock()
		return nil, errPluginLoading(name)
	}
	m.loading[name] = struct{}{}
	loader := m.loader
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.loading, name)
		m.mu.Unlock()
	}()

	res, err := resolveInstance(ctx, cfg, target, loader)
	if err != nil {
		return nil, err
	}

	entry, err := m.insert(name, target, res, cfg.Options, moduleData)
	if err != nil {
		if res.Reloader != nil {
			_ = res.Reloader.Close() //nolint:errcheck // best effort on a failed add
		}
		if res.Type != plugin.LoadInstance {
			m.release(name, res.Instance)
		}
		return nil, err
	}

	defer entry.lifecycle.Unlock()
	ctx = withLifecycle(ctx, entry)

	ev := &plugin.Event{
		Eventbus:      entry.Eventbus(),
		PluginName:    name,
		PluginOptions: mustCopyMap(entry.Data().Plugin.Options),
	}
	hookErr := m.callHook(ctx, entry, plugin.HookLoad, ev)
	if hookErr == nil && !m.isRegistered(entry) {
		// The load hook destroyed the manager.
		hookErr = errDestroyed()
	}
	if hookErr != nil {
		m.rollback(entry)
		if res.Type != plugin.LoadInstance {
			m.release(name, res.Instance)
		}
		return nil, hookErr
	}
	next := ev.HotReload
	if next == nil {
		next = res.Reloader
	} else if res.Reloader != nil && res.Reloader != next {
		_ = res.Reloader.Close() //nolint:errcheck // superseded by the load hook
	}
	m.wireReloader(entry, next, nil)

	data := entry.Data().Clone()
	if err := m.notify(ctx, EventPluginAdded, data.Clone()); err != nil {
		errutil.LogWarn(m.logger, "plugin added notification failed", err, "plugin", name)
	}

	m.logger.Info("plugin added",
		"plugin", name,
		"target", target,
		"type", string(res.Type))
	return data, nil
}

func resolveInstance(ctx context.Context, cfg Config, target string, loader ModuleLoader) (plugin.LoadResult, error) {
	if cfg.Instance != nil {
		return plugin.LoadResult{Instance: cfg.Instance, Type: plugin.LoadInstance}, nil
	}
	if loader == nil {
		return plugin.LoadResult{}, errLoadFailed(cfg.Name, target, errors.New("no module loader configured"))
	}

	res, err := loader.Load(ctx, target, plugin.ResolveExport)
	if err != nil {
		return plugin.LoadResult{}, errLoadFailed(cfg.Name, target, err)
	}
	if res.Instance == nil {
		return plugin.LoadResult{}, errLoadFailed(cfg.Name, target, errors.New("loader returned no instance"))
	}
	if !res.Type.Valid() {
		return plugin.LoadResult{}, errLoadFailed(cfg.Name, target, errors.New("loader returned unknown load type "+string(res.Type)))
	}
	return res, nil
}

// insert builds the entry and stores it under the current bus and prefix.
// The entry is published with its lifecycle lock held; Add releases it once
// the load hook and the added notification are done.
func (m *Manager) insert(name, target string, res plugin.LoadResult, options, moduleData map[string]any) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.entries == nil {
		return nil, errDestroyed()
	}

	data, err := newPluginData(m.prefix, name, target, res.Type, mergeOptions(res.Defaults, options), moduleData)
	if err != nil {
		return nil, err
	}

	var proxy *eventbus.Proxy
	if m.bus != nil {
		proxy = m.bus.CreateProxy()
	}
	entry := newEntry(name, data, res.Instance, proxy)
	entry.reloader = res.Reloader
	entry.lifecycle.Lock()
	m.entries.Set(name, entry)
	PluginsLoaded.Set(float64(m.entries.Len()))
	return entry, nil
}

// rollback undoes insert after a failed load hook.
func (m *Manager) rollback(entry *Entry) {
	entry.destroyProxy()
	if r := entry.Reloader(); r != nil {
		_ = r.Close() //nolint:errcheck // best effort on a failed add
	}
	m.forget(entry)
}

// forget deletes entry from the registry if it is still the registered one.
func (m *Manager) forget(entry *Entry) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.entries == nil {
		return false
	}
	if cur, ok := m.entries.Get(entry.name); !ok || cur != entry {
		return false
	}
	m.entries.Delete(entry.name)
	PluginsLoaded.Set(float64(m.entries.Len()))
	return true
}

// AddAll adds configs in order and stops at the first failure. Plugins added
// before the failure stay registered; their data is returned with the error.
func (m *Manager) AddAll(ctx context.Context, configs []Config, moduleData map[string]any) ([]*PluginData, error) {
	if err := m.checkAlive(); err != nil {
		return nil, err
	}

	out := make([]*PluginData, 0, len(configs))
	for _, cfg := range configs {
		data, err := m.Add(ctx, cfg, moduleData)
		if err != nil {
			return out, err
		}
		out = append(out, data)
	}
	return out, nil
}

// Remove unloads the named plugins in order. No names means no plugins.
// Unknown names are skipped. Hook and notification failures are reported per
// plugin and never abort the batch.
func (m *Manager) Remove(ctx context.Context, names ...string) ([]RemoveResult, error) {
	if err := m.checkAlive(); err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return []RemoveResult{}, nil
	}
	entries, err := m.resolve(names)
	if err != nil {
		return nil, err
	}

	results := make([]RemoveResult, 0, len(entries))
	for _, entry := range entries {
		if r, ok := m.removeEntry(ctx, entry); ok {
			results = append(results, r)
		}
	}
	return results, nil
}

// RemoveAll unloads every registered plugin.
func (m *Manager) RemoveAll(ctx context.Context) ([]RemoveResult, error) {
	names, err := m.GetPluginNames(FilterAll)
	if err != nil {
		return nil, err
	}
	return m.Remove(ctx, names...)
}

func (m *Manager) removeEntry(ctx context.Context, entry *Entry) (_ RemoveResult, ok bool) {
	ctx, unlock, err := lockLifecycle(ctx, entry)
	if err != nil {
		recordLifecycle("remove", err)
		return RemoveResult{Plugin: entry.name, Errors: []error{err}}, true
	}
	defer unlock()

	if !m.isRegistered(entry) {
		return RemoveResult{}, false
	}

	ctx, span := startSpan(ctx, "pluginmgr.remove", attribute.String("plugin.name", entry.name))
	var errs []error

	ev := &plugin.Event{
		Eventbus:      entry.Eventbus(),
		PluginName:    entry.name,
		PluginOptions: mustCopyMap(entry.Data().Plugin.Options),
	}
	if err := m.callHook(ctx, entry, plugin.HookUnload, ev); err != nil {
		errs = append(errs, err)
	}

	reloader := entry.Reloader()
	entry.Reset(ctx)
	entry.destroyProxy()
	m.release(entry.name, entry.Instance())
	if reloader != nil {
		if err := reloader.Close(); err != nil {
			errutil.LogWarn(m.logger, "failed to close hot reloader", err, "plugin", entry.name)
		}
	}

	data := entry.Data().Clone()
	m.forget(entry)

	if err := m.notify(ctx, EventPluginRemoved, data); err != nil {
		errs = append(errs, err)
	}

	err = errors.Join(errs...)
	endSpan(span, err)
	recordLifecycle("remove", err)
	m.logger.Info("plugin removed", "plugin", entry.name, "errors", len(errs))

	return RemoveResult{Plugin: entry.name, Success: len(errs) == 0, Errors: errs}, true
}

// Reload runs the unload hook, drops the plugin's subscriptions, swaps in
// req.Instance when given and runs the load hook with the state the unload
// hook left behind. Returns false without error when the plugin does not exist.
//
// The load phase runs even when unload fails. When several phases fail, the
// first error in unload, load, notification order is returned.
func (m *Manager) Reload(ctx context.Context, req ReloadRequest) (_ bool, err error) {
	if err := m.checkAlive(); err != nil {
		return false, err
	}
	entry, err := m.GetEntry(req.Plugin)
	if errors.Is(err, ErrPluginNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	ctx, unlock, err := lockLifecycle(ctx, entry)
	if err != nil {
		recordLifecycle("reload", err)
		return false, err
	}
	defer unlock()
	if !m.isRegistered(entry) {
		return false, nil
	}

	ctx, span := startSpan(ctx, "pluginmgr.reload", attribute.String("plugin.name", entry.name))
	defer func() {
		endSpan(span, err)
		recordLifecycle("reload", err)
	}()

	options := entry.Data().Plugin.Options
	unloadEv := &plugin.Event{
		Eventbus:      entry.Eventbus(),
		PluginName:    entry.name,
		PluginOptions: mustCopyMap(options),
		Reloaded:      true,
	}
	unloadErr := m.callHook(ctx, entry, plugin.HookUnload, unloadEv)

	previous := entry.Reloader()
	entry.Reset(ctx)
	entry.unbind()

	if req.Instance != nil {
		old := entry.Instance()
		entry.SetInstance(req.Instance)
		if _, ok := old.(io.Closer); ok && old != req.Instance {
			m.release(entry.name, old)
		}
	}

	loadEv := &plugin.Event{
		Eventbus:      entry.Eventbus(),
		PluginName:    entry.name,
		PluginOptions: mustCopyMap(options),
		State:         unloadEv.State,
		Reloaded:      true,
	}
	loadErr := m.callHook(ctx, entry, plugin.HookLoad, loadEv)
	m.wireReloader(entry, loadEv.HotReload, previous)

	var notifyErr error
	if !req.Silent {
		notifyErr = m.notify(ctx, EventPluginReloaded, entry.Data().Clone())
	}

	m.logger.Info("plugin reloaded", "plugin", entry.name, "replaced", req.Instance != nil)

	for _, e := range []error{unloadErr, loadErr, notifyErr} {
		if e != nil {
			return true, e
		}
	}
	return true, nil
}

// release closes an instance that owns resources, such as a script runtime
// or a plugin process, once the registry no longer references it.
func (m *Manager) release(name string, instance any) {
	c, ok := instance.(io.Closer)
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		errutil.LogWarn(m.logger, "failed to release plugin instance", err, "plugin", name)
	}
}

// wireReloader attaches the hot-reload source to entry. next comes from the
// load hook and wins over previous, which is closed when replaced.
func (m *Manager) wireReloader(entry *Entry, next, previous plugin.HotReloader) {
	if next == nil {
		entry.setReloader(previous)
		return
	}
	if previous != nil && previous != next {
		if err := previous.Close(); err != nil {
			errutil.LogWarn(m.logger, "failed to close hot reloader", err, "plugin", entry.name)
		}
	}

	entry.setReloader(next)
	if previous == next {
		return
	}

	name := entry.name
	next.Accept(func(instance any) {
		ctx := context.Background()
		if _, err := m.Reload(ctx, ReloadRequest{Plugin: name, Instance: instance}); err != nil {
			errutil.LogError(m.logger, "hot reload failed", err, "plugin", name)
		}
	})
}

// SetEnabled suspends or restores the named plugins' subscriptions. No names
// means all plugins. Each plugin whose flag changed is announced on the bus.
func (m *Manager) SetEnabled(ctx context.Context, enabled bool, names ...string) (err error) {
	defer func() { recordLifecycle("set_enabled", err) }()

	entries, err := m.resolve(names)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if !entry.SetEnabled(enabled) {
			continue
		}
		payload := EnabledChange{Enabled: enabled, Data: entry.Data().Clone()}
		if err := m.notify(ctx, EventPluginEnabled, payload); err != nil {
			errutil.LogWarn(m.logger, "plugin enabled notification failed", err, "plugin", entry.name)
		}
	}
	return nil
}

// EnabledChange is the payload of the plugin:enabled notification.
type EnabledChange struct {
	Enabled bool        `json:"enabled"`
	Data    *PluginData `json:"data"`
}

// SetEventbus moves the manager, its extensions and every plugin to bus.
// A non-empty prefix replaces the command prefix. Owned proxies are destroyed,
// secure views are redirected, and each plugin's OnPluginEventbusChanged hook
// runs afterwards.
func (m *Manager) SetEventbus(ctx context.Context, bus *eventbus.Eventbus, prefix string) error {
	if err := m.checkAlive(); err != nil {
		return err
	}
	if bus == nil {
		return errInvalidArgument("eventbus", nil, "must not be nil")
	}

	m.mu.Lock()
	if m.entries == nil {
		m.mu.Unlock()
		return errDestroyed()
	}
	oldBus, oldPrefix := m.bus, m.prefix
	if prefix == "" {
		prefix = oldPrefix
	}
	m.bus, m.prefix = bus, prefix

	proxies := m.proxies
	m.proxies = nil
	for _, s := range m.secures {
		if err := s.SetEventbus(bus); err != nil {
			errutil.LogWarn(m.logger, "failed to redirect secure eventbus", err, "name", s.Name())
		}
	}

	if m.commands != nil {
		m.commands.Destroy()
	}
	m.commands = bus.CreateProxy()
	m.bindCommands(m.commands, prefix, m.options)
	supports := m.supports
	entries := m.entryList()
	for _, entry := range entries {
		entry.moveTo(bus, prefix)
	}
	m.mu.Unlock()

	for _, p := range proxies {
		p.Destroy()
	}
	for _, s := range supports {
		if err := s.SetEventbus(bus, prefix); err != nil {
			errutil.LogWarn(m.logger, "failed to move support extension", err)
		}
	}

	for _, entry := range entries {
		ev := &plugin.EventbusChangedEvent{
			Eventbus:       entry.Eventbus(),
			PluginName:     entry.name,
			PluginOptions:  mustCopyMap(entry.Data().Plugin.Options),
			OldEventbus:    oldBus,
			NewEventbus:    bus,
			OldEventPrefix: oldPrefix,
			NewEventPrefix: prefix,
		}
		if err := m.callHook(ctx, entry, plugin.HookEventbusChanged, ev); err != nil {
			errutil.LogWarn(m.logger, "eventbus changed hook failed", err, "plugin", entry.name)
		}
	}

	m.logger.Info("eventbus attached", "bus", bus.Name(), "prefix", prefix)
	return nil
}

// Eventbus returns the attached bus, nil when none.
func (m *Manager) Eventbus() *eventbus.Eventbus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.bus
}

// EventPrefix returns the command prefix.
func (m *Manager) EventPrefix() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.prefix
}

// CreateEventbusProxy returns a proxy of the attached bus owned by the
// manager. It is destroyed on bus swap and on Destroy.
func (m *Manager) CreateEventbusProxy() (*eventbus.Proxy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entries == nil {
		return nil, errDestroyed()
	}
	if m.bus == nil {
		return nil, errNoEventbus()
	}
	p := m.bus.CreateProxy()
	m.proxies = append(m.proxies, p)
	return p, nil
}

// CreateEventbusSecure returns a trigger-only view of the attached bus that
// follows bus swaps. It is destroyed on Destroy.
func (m *Manager) CreateEventbusSecure(name string) (*eventbus.Secure, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entries == nil {
		return nil, errDestroyed()
	}
	if m.bus == nil {
		return nil, errNoEventbus()
	}
	s := m.bus.CreateSecure(name)
	m.secures = append(m.secures, s)
	return s, nil
}

// Destroy destroys owned bus wrappers, removes every plugin, withdraws the
// command surface and detaches extensions. The manager is unusable afterwards
// and a second Destroy fails with ErrDestroyed.
func (m *Manager) Destroy(ctx context.Context) (err error) {
	defer func() { recordLifecycle("destroy", err) }()

	m.mu.Lock()
	if m.entries == nil {
		m.mu.Unlock()
		return errDestroyed()
	}
	proxies, secures := m.proxies, m.secures
	m.proxies, m.secures = nil, nil
	m.mu.Unlock()

	for _, p := range proxies {
		p.Destroy()
	}
	for _, s := range secures {
		s.Destroy()
	}

	results, err := m.RemoveAll(ctx)
	if err != nil {
		return err
	}
	for _, r := range results {
		for _, e := range r.Errors {
			errutil.LogWarn(m.logger, "plugin removal failed during destroy", e, "plugin", r.Plugin)
		}
	}

	m.mu.Lock()
	if m.entries == nil {
		m.mu.Unlock()
		return errDestroyed()
	}
	commands, supports := m.commands, m.supports
	m.entries = nil
	m.loading = nil
	m.commands = nil
	m.supports = nil
	m.bus = nil
	m.loader = nil
	m.mu.Unlock()

	if commands != nil {
		commands.Destroy()
	}
	for _, s := range supports {
		s.Destroy()
	}
	PluginsLoaded.Set(0)
	m.logger.Info("plugin manager destroyed")
	return nil
}

// IsDestroyed reports whether Destroy completed.
func (m *Manager) IsDestroyed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.entries == nil
}

// GetEntry returns the entry registered under name.
func (m *Manager) GetEntry(name string) (*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.entries == nil {
		return nil, errDestroyed()
	}
	entry, ok := m.entries.Get(name)
	if !ok {
		return nil, errPluginNotFound(name)
	}
	return entry, nil
}

func (m *Manager) checkAlive() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.entries == nil {
		return errDestroyed()
	}
	return nil
}

func (m *Manager) isRegistered(entry *Entry) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.entries == nil {
		return false
	}
	cur, ok := m.entries.Get(entry.name)
	return ok && cur == entry
}

// entryList returns the entries in insertion order. Caller holds m.mu.
func (m *Manager) entryList() []*Entry {
	out := make([]*Entry, 0, m.entries.Len())
	for pair := m.entries.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

// resolve returns the entries for names in the order given, skipping unknown
// and duplicate names. No names means every entry in insertion order.
func (m *Manager) resolve(names []string) ([]*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.entries == nil {
		return nil, errDestroyed()
	}
	if len(names) == 0 {
		return m.entryList(), nil
	}

	out := make([]*Entry, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		if entry, ok := m.entries.Get(name); ok {
			out = append(out, entry)
		}
	}
	return out, nil
}

type lifecycleKey struct{}

// heldLifecycle records, in a context, the entries whose lifecycle lock the
// current call chain holds.
type heldLifecycle struct {
	entry  *Entry
	parent *heldLifecycle
}

func withLifecycle(ctx context.Context, entry *Entry) context.Context {
	parent, _ := ctx.Value(lifecycleKey{}).(*heldLifecycle)
	return context.WithValue(ctx, lifecycleKey{}, &heldLifecycle{entry: entry, parent: parent})
}

func holdsLifecycle(ctx context.Context, entry *Entry) bool {
	for h, _ := ctx.Value(lifecycleKey{}).(*heldLifecycle); h != nil; h = h.parent {
		if h.entry == entry {
			return true
		}
	}
	return false
}

// lockLifecycle serializes add, remove and reload of entry. Other callers
// wait; a call made from one of the entry's own hooks fails with
// ErrPluginBusy instead of waiting on itself.
func lockLifecycle(ctx context.Context, entry *Entry) (context.Context, func(), error) {
	if holdsLifecycle(ctx, entry) {
		return ctx, nil, errPluginBusy(entry.name, "lifecycle")
	}
	entry.lifecycle.Lock()
	return withLifecycle(ctx, entry), entry.lifecycle.Unlock, nil
}

// callHook invokes a lifecycle hook when the instance exposes it and awaits
// an Awaitable result.
func (m *Manager) callHook(ctx context.Context, entry *Entry, hook string, ev any) error {
	methods := entry.Methods()
	if !methods.Has(hook) {
		return nil
	}

	start := time.Now()
	res, err := methods.Call(ctx, hook, ev)
	if err == nil {
		_, err = eventbus.Resolve(ctx, res)
	}
	recordHook(hook, time.Since(start))

	if err != nil {
		return errHookFailed(entry.name, hook, err)
	}
	return nil
}

// notify publishes "{prefix}:{suffix}" when a bus is attached and awaits
// asynchronous listeners.
func (m *Manager) notify(ctx context.Context, suffix string, payload any) error {
	m.mu.RLock()
	bus, prefix := m.bus, m.prefix
	m.mu.RUnlock()

	if bus == nil {
		return nil
	}
	_, err := bus.TriggerAsync(ctx, prefix+":"+suffix, payload)
	return err //nolint:wrapcheck // eventbus errors carry their own context
}
