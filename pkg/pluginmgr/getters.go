// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package pluginmgr

import (
	"context"

	"github.com/gobwas/glob"
)

// EnabledFilter selects plugins by enabled state.
type EnabledFilter int

// Enabled filters.
const (
	FilterAll EnabledFilter = iota
	FilterEnabled
	FilterDisabled
)

func (f EnabledFilter) match(enabled bool) bool {
	switch f {
	case FilterEnabled:
		return enabled
	case FilterDisabled:
		return !enabled
	default:
		return true
	}
}

// EnabledState is one row of GetEnabledAll.
type EnabledState struct {
	Plugin  string `json:"plugin"`
	Enabled bool   `json:"enabled"`
}

// PluginEvents lists the events one plugin subscribes to.
type PluginEvents struct {
	Plugin string   `json:"plugin"`
	Events []string `json:"events"`
}

// GetEnabled reports whether the named plugin is enabled.
func (m *Manager) GetEnabled(name string) (bool, error) {
	entry, err := m.GetEntry(name)
	if err != nil {
		return false, err
	}
	return entry.Enabled(), nil
}

// GetEnabledAll reports the enabled state of the named plugins in the order
// given, skipping unknown names. No names means all plugins.
func (m *Manager) GetEnabledAll(names ...string) ([]EnabledState, error) {
	entries, err := m.resolve(names)
	if err != nil {
		return nil, err
	}
	out := make([]EnabledState, 0, len(entries))
	for _, e := range entries {
		out = append(out, EnabledState{Plugin: e.name, Enabled: e.Enabled()})
	}
	return out, nil
}

// GetPluginNames returns registered names in insertion order.
func (m *Manager) GetPluginNames(filter EnabledFilter) ([]string, error) {
	entries, err := m.resolve(nil)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if filter.match(e.Enabled()) {
			out = append(out, e.name)
		}
	}
	return out, nil
}

// GetPluginData returns a copy of the named plugin's data.
func (m *Manager) GetPluginData(name string) (*PluginData, error) {
	entry, err := m.GetEntry(name)
	if err != nil {
		return nil, err
	}
	return entry.Data().Clone(), nil
}

// GetPluginDataAll returns copies of the named plugins' data. No names means
// all plugins.
func (m *Manager) GetPluginDataAll(names ...string) ([]*PluginData, error) {
	entries, err := m.resolve(names)
	if err != nil {
		return nil, err
	}
	out := make([]*PluginData, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Data().Clone())
	}
	return out, nil
}

// GetPluginEvents returns the sorted event names the plugin subscribes to,
// suspended subscriptions included.
func (m *Manager) GetPluginEvents(name string) ([]string, error) {
	entry, err := m.GetEntry(name)
	if err != nil {
		return nil, err
	}
	return entry.Events(), nil
}

// GetPluginEventsAll returns the events of the named plugins. No names means
// all plugins.
func (m *Manager) GetPluginEventsAll(names ...string) ([]PluginEvents, error) {
	entries, err := m.resolve(names)
	if err != nil {
		return nil, err
	}
	out := make([]PluginEvents, 0, len(entries))
	for _, e := range entries {
		out = append(out, PluginEvents{Plugin: e.name, Events: e.Events()})
	}
	return out, nil
}

// HasPlugin reports whether name is registered.
func (m *Manager) HasPlugin(name string) (bool, error) {
	_, err := m.GetEntry(name)
	if err == nil {
		return true, nil
	}
	if m.IsDestroyed() {
		return false, err
	}
	return false, nil
}

// HasPlugins reports whether every named plugin is registered. No names
// reports whether any plugin is registered.
func (m *Manager) HasPlugins(names ...string) (bool, error) {
	entries, err := m.resolve(names)
	if err != nil {
		return false, err
	}
	if len(names) == 0 {
		return len(entries) > 0, nil
	}
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		seen[n] = struct{}{}
	}
	return len(entries) == len(seen), nil
}

// GetPluginsByEvent returns the plugins with at least one subscription whose
// event name matches the glob pattern, with the matching events. No names
// means all plugins.
func (m *Manager) GetPluginsByEvent(pattern string, names ...string) ([]PluginEvents, error) {
	if err := m.checkAlive(); err != nil {
		return nil, err
	}
	g, err := glob.Compile(pattern, ':')
	if err != nil {
		return nil, errInvalidArgument("event", pattern, "is not a valid glob: "+err.Error())
	}

	entries, err := m.resolve(names)
	if err != nil {
		return nil, err
	}
	out := make([]PluginEvents, 0)
	for _, e := range entries {
		var matched []string
		for _, ev := range e.Events() {
			if g.Match(ev) {
				matched = append(matched, ev)
			}
		}
		if len(matched) > 0 {
			out = append(out, PluginEvents{Plugin: e.name, Events: matched})
		}
	}
	return out, nil
}

// GetOptions returns the current behavior flags.
func (m *Manager) GetOptions() (Options, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.entries == nil {
		return Options{}, errDestroyed()
	}
	return m.options, nil
}

// SetOptions applies patch. Bus commands are re-registered so the NoEvent*
// flags take effect immediately, and extensions are notified.
func (m *Manager) SetOptions(_ context.Context, patch OptionsPatch) error {
	m.mu.Lock()
	if m.entries == nil {
		m.mu.Unlock()
		return errDestroyed()
	}
	m.options = patch.Apply(m.options)
	opts := m.options
	if m.commands != nil {
		m.commands.Off("")
		m.bindCommands(m.commands, m.prefix, opts)
	}
	supports := m.supports
	m.mu.Unlock()

	for _, s := range supports {
		s.SetOptions(opts)
	}
	m.logger.Debug("plugin manager options updated", "options", opts)
	return nil
}
