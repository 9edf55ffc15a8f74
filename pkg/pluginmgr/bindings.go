// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package pluginmgr

import (
	"context"
	"errors"
	"log/slog"

	"github.com/go-viper/mapstructure/v2"

	"github.com/holomush/pluginmgr/pkg/errutil"
	"github.com/holomush/pluginmgr/pkg/eventbus"
)

// Command suffixes of the manager's bus surface, published as "{prefix}:{suffix}".
const (
	CmdAdd              = "async:add"
	CmdAddAll           = "async:add:all"
	CmdDestroyManager   = "async:destroy:manager"
	CmdRemove           = "async:remove"
	CmdRemoveAll        = "async:remove:all"
	CmdGetEnabled       = "get:enabled"
	CmdGetOptions       = "get:options"
	CmdGetPluginByEvent = "get:plugin:by:event"
	CmdGetPluginData    = "get:plugin:data"
	CmdGetPluginEvents  = "get:plugin:events"
	CmdGetPluginNames   = "get:plugin:names"
	CmdHasPlugin        = "has:plugin"
	CmdIsValidConfig    = "is:valid:config"
	CmdSetEnabled       = "set:enabled"
	CmdSetOptions       = "set:options"
)

// command is one bus-exposed operation. disabled reports whether the current
// options withdraw it.
type command struct {
	suffix   string
	disabled func(Options) bool
	handler  eventbus.Handler
}

// bindCommands registers the command surface on proxy as guarded events.
func (m *Manager) bindCommands(proxy *eventbus.Proxy, prefix string, opts Options) {
	bindCommandTable(proxy, prefix, opts, m.commandTable(), m.logger)
}

func bindCommandTable(proxy *eventbus.Proxy, prefix string, opts Options, table []command, logger *slog.Logger) {
	for _, c := range table {
		if c.disabled != nil && c.disabled(opts) {
			continue
		}
		if _, err := proxy.On(prefix+":"+c.suffix, c.handler, eventbus.WithGuard()); err != nil {
			errutil.LogWarn(logger, "failed to bind plugin manager command", err, "event", prefix+":"+c.suffix)
		}
	}
}

func (m *Manager) commandTable() []command {
	return []command{
		{suffix: CmdAdd, disabled: func(o Options) bool { return o.NoEventAdd }, handler: m.handleAdd},
		{suffix: CmdAddAll, disabled: func(o Options) bool { return o.NoEventAdd }, handler: m.handleAddAll},
		{suffix: CmdDestroyManager, disabled: func(o Options) bool { return o.NoEventDestroy }, handler: m.handleDestroy},
		{suffix: CmdRemove, disabled: func(o Options) bool { return o.NoEventRemoval }, handler: m.handleRemove},
		{suffix: CmdRemoveAll, disabled: func(o Options) bool { return o.NoEventRemoval }, handler: m.handleRemoveAll},
		{suffix: CmdGetEnabled, handler: m.handleGetEnabled},
		{suffix: CmdGetOptions, handler: m.handleGetOptions},
		{suffix: CmdGetPluginByEvent, handler: m.handleGetPluginByEvent},
		{suffix: CmdGetPluginData, handler: m.handleGetPluginData},
		{suffix: CmdGetPluginEvents, handler: m.handleGetPluginEvents},
		{suffix: CmdGetPluginNames, handler: m.handleGetPluginNames},
		{suffix: CmdHasPlugin, handler: m.handleHasPlugin},
		{suffix: CmdIsValidConfig, handler: handleIsValidConfig},
		{suffix: CmdSetEnabled, disabled: func(o Options) bool { return o.NoEventSetEnabled }, handler: m.handleSetEnabled},
		{suffix: CmdSetOptions, disabled: func(o Options) bool { return o.NoEventSetOptions }, handler: m.handleSetOptions},
	}
}

func arg(args []any, i int) any {
	if i < len(args) {
		return args[i]
	}
	return nil
}

// decodeNames accepts a single name (single is true), a list of names, or nil.
func decodeNames(v any) (names []string, single bool, err error) {
	switch n := v.(type) {
	case nil:
		return nil, false, nil
	case string:
		return []string{n}, true, nil
	case []string:
		return n, false, nil
	}
	if err := mapstructure.Decode(v, &names); err != nil {
		return nil, false, errInvalidArgument("plugins", v, "must be a string or a list of strings")
	}
	return names, false, nil
}

func decodeModuleData(v any) (map[string]any, error) {
	switch md := v.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return md, nil
	default:
		return nil, errInvalidArgument("moduleData", v, "must be a map")
	}
}

func decodeConfigs(v any) ([]Config, error) {
	var raw []any
	switch list := v.(type) {
	case []Config:
		return list, nil
	case []map[string]any:
		for _, c := range list {
			raw = append(raw, c)
		}
	case []any:
		raw = list
	default:
		return nil, errInvalidArgument("configs", v, "must be a list of plugin configs")
	}

	out := make([]Config, 0, len(raw))
	for _, r := range raw {
		cfg, err := ParseConfig(r)
		if err != nil {
			return nil, err
		}
		out = append(out, cfg)
	}
	return out, nil
}

// scalar maps a not-found error to a nil result for single-name bus queries.
func scalar(v any, err error) (any, error) {
	if errors.Is(err, ErrPluginNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (m *Manager) handleAdd(ctx context.Context, args ...any) (any, error) {
	cfg, err := ParseConfig(arg(args, 0))
	if err != nil {
		return nil, err
	}
	md, err := decodeModuleData(arg(args, 1))
	if err != nil {
		return nil, err
	}
	return m.Add(ctx, cfg, md)
}

func (m *Manager) handleAddAll(ctx context.Context, args ...any) (any, error) {
	configs, err := decodeConfigs(arg(args, 0))
	if err != nil {
		return nil, err
	}
	md, err := decodeModuleData(arg(args, 1))
	if err != nil {
		return nil, err
	}
	data, err := m.AddAll(ctx, configs, md)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (m *Manager) handleDestroy(ctx context.Context, _ ...any) (any, error) {
	return nil, m.Destroy(ctx)
}

func (m *Manager) handleRemove(ctx context.Context, args ...any) (any, error) {
	names, _, err := decodeNames(arg(args, 0))
	if err != nil {
		return nil, err
	}
	return m.Remove(ctx, names...)
}

func (m *Manager) handleRemoveAll(ctx context.Context, _ ...any) (any, error) {
	return m.RemoveAll(ctx)
}

func (m *Manager) handleGetEnabled(_ context.Context, args ...any) (any, error) {
	names, one, err := decodeNames(arg(args, 0))
	if err != nil {
		return nil, err
	}
	if one {
		return scalar(m.GetEnabled(names[0]))
	}
	return m.GetEnabledAll(names...)
}

func (m *Manager) handleGetOptions(context.Context, ...any) (any, error) {
	return m.GetOptions()
}

func (m *Manager) handleGetPluginByEvent(_ context.Context, args ...any) (any, error) {
	pattern, ok := arg(args, 0).(string)
	if !ok || pattern == "" {
		return nil, errInvalidArgument("event", arg(args, 0), "must be a non-empty string")
	}
	names, _, err := decodeNames(arg(args, 1))
	if err != nil {
		return nil, err
	}
	return m.GetPluginsByEvent(pattern, names...)
}

func (m *Manager) handleGetPluginData(_ context.Context, args ...any) (any, error) {
	names, one, err := decodeNames(arg(args, 0))
	if err != nil {
		return nil, err
	}
	if one {
		return scalar(m.GetPluginData(names[0]))
	}
	return m.GetPluginDataAll(names...)
}

func (m *Manager) handleGetPluginEvents(_ context.Context, args ...any) (any, error) {
	names, one, err := decodeNames(arg(args, 0))
	if err != nil {
		return nil, err
	}
	if one {
		return scalar(m.GetPluginEvents(names[0]))
	}
	return m.GetPluginEventsAll(names...)
}

func (m *Manager) handleGetPluginNames(_ context.Context, args ...any) (any, error) {
	filter := FilterAll
	switch v := arg(args, 0).(type) {
	case nil:
	case bool:
		if v {
			filter = FilterEnabled
		} else {
			filter = FilterDisabled
		}
	default:
		return nil, errInvalidArgument("enabled", v, "must be a boolean")
	}
	return m.GetPluginNames(filter)
}

func (m *Manager) handleHasPlugin(_ context.Context, args ...any) (any, error) {
	names, one, err := decodeNames(arg(args, 0))
	if err != nil {
		return nil, err
	}
	if one {
		return m.HasPlugin(names[0])
	}
	return m.HasPlugins(names...)
}

func handleIsValidConfig(_ context.Context, args ...any) (any, error) {
	return IsValidConfig(arg(args, 0)), nil
}

func (m *Manager) handleSetEnabled(ctx context.Context, args ...any) (any, error) {
	enabled, ok := arg(args, 0).(bool)
	if !ok {
		return nil, errInvalidArgument("enabled", arg(args, 0), "must be a boolean")
	}
	names, _, err := decodeNames(arg(args, 1))
	if err != nil {
		return nil, err
	}
	return nil, m.SetEnabled(ctx, enabled, names...)
}

func (m *Manager) handleSetOptions(ctx context.Context, args ...any) (any, error) {
	patch, err := DecodeOptionsPatch(arg(args, 0))
	if err != nil {
		return nil, err
	}
	return nil, m.SetOptions(ctx, patch)
}
