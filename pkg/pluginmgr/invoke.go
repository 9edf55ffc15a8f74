// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package pluginmgr

import (
	"context"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/holomush/pluginmgr/pkg/errutil"
	"github.com/holomush/pluginmgr/pkg/eventbus"
	"github.com/holomush/pluginmgr/pkg/plugin"
)

// Metadata keys added to every event-broadcast payload.
const (
	MetaInvokeCount = "$$plugin_invoke_count"
	MetaInvokeNames = "$$plugin_invoke_names"
)

// Invocation strategy names, used as metric labels.
const (
	StrategyInvoke           = "invoke"
	StrategyInvokeSync       = "sync"
	StrategyInvokeAsync      = "async"
	StrategyInvokeSyncEvent  = "sync_event"
	StrategyInvokeAsyncEvent = "async_event"
)

// target is one enabled entry exposing the invoked method.
type target struct {
	entry   *Entry
	methods *plugin.MethodSet
}

// targets resolves the enabled entries for names that expose method and
// applies the strict-mode flags.
func (m *Manager) targets(method string, names []string) ([]target, error) {
	if err := m.checkAlive(); err != nil {
		return nil, err
	}
	if method == "" {
		return nil, errInvalidArgument("method", method, "must not be empty")
	}
	entries, err := m.resolve(names)
	if err != nil {
		return nil, err
	}
	opts, err := m.GetOptions()
	if err != nil {
		return nil, err
	}

	var out []target
	matchedPlugin := false
	for _, e := range entries {
		if !e.Enabled() {
			continue
		}
		matchedPlugin = true
		ms := e.Methods()
		if ms.Has(method) {
			out = append(out, target{entry: e, methods: ms})
		}
	}

	if opts.ThrowNoPlugin && !matchedPlugin {
		return nil, errNoPlugin(method, names)
	}
	if opts.ThrowNoMethod && matchedPlugin && len(out) == 0 {
		return nil, errNoMethod(method, names)
	}
	return out, nil
}

// spreadArgs turns an invocation argument into positional arguments: a []any
// is spread, nil means none and anything else is a single argument.
func spreadArgs(args any) []any {
	switch a := args.(type) {
	case nil:
		return nil
	case []any:
		return a
	default:
		return []any{a}
	}
}

// Invoke calls method on every matching plugin for its side effects. Results
// and method errors are discarded; only resolution errors are returned.
func (m *Manager) Invoke(ctx context.Context, method string, args any, names ...string) (err error) {
	ctx, span := startSpan(ctx, "pluginmgr.invoke", attribute.String("method", method), attribute.String("strategy", StrategyInvoke))
	defer func() {
		endSpan(span, err)
		recordInvocation(StrategyInvoke, err)
	}()

	targets, err := m.targets(method, names)
	if err != nil {
		return err
	}
	positional := spreadArgs(args)
	for _, t := range targets {
		if _, callErr := t.methods.Call(ctx, method, positional...); callErr != nil {
			errutil.LogWarn(m.logger, "plugin invoke failed", callErr, "plugin", t.entry.name, "method", method)
		}
	}
	return nil
}

// InvokeSync calls method on every matching plugin in order and returns the
// collapsed non-nil results: nil for none, the value for one, a slice for
// more. The first method error stops the call.
func (m *Manager) InvokeSync(ctx context.Context, method string, args any, names ...string) (_ any, err error) {
	ctx, span := startSpan(ctx, "pluginmgr.invoke", attribute.String("method", method), attribute.String("strategy", StrategyInvokeSync))
	defer func() {
		endSpan(span, err)
		recordInvocation(StrategyInvokeSync, err)
	}()

	targets, err := m.targets(method, names)
	if err != nil {
		return nil, err
	}
	positional := spreadArgs(args)
	var results []any
	for _, t := range targets {
		res, err := t.methods.Call(ctx, method, positional...)
		if err != nil {
			return nil, err //nolint:wrapcheck // method errors carry plugin context
		}
		if res != nil {
			results = append(results, res)
		}
	}
	return eventbus.Collapse(results), nil
}

// InvokeAsync calls method on every matching plugin in order, then awaits all
// Awaitable results together. The first error cancels the remaining awaits
// and is returned. Results collapse as in InvokeSync.
func (m *Manager) InvokeAsync(ctx context.Context, method string, args any, names ...string) (_ any, err error) {
	ctx, span := startSpan(ctx, "pluginmgr.invoke", attribute.String("method", method), attribute.String("strategy", StrategyInvokeAsync))
	defer func() {
		endSpan(span, err)
		recordInvocation(StrategyInvokeAsync, err)
	}()

	targets, err := m.targets(method, names)
	if err != nil {
		return nil, err
	}
	positional := spreadArgs(args)
	pending := make([]any, 0, len(targets))
	for _, t := range targets {
		res, err := t.methods.Call(ctx, method, positional...)
		if err != nil {
			return nil, err //nolint:wrapcheck // method errors carry plugin context
		}
		pending = append(pending, res)
	}

	settled := make([]any, len(pending))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range pending {
		g.Go(func() error {
			v, err := eventbus.Resolve(gctx, p)
			if err != nil {
				return err //nolint:wrapcheck // awaited errors carry plugin context
			}
			settled[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err //nolint:wrapcheck // see above
	}

	results := make([]any, 0, len(settled))
	for _, v := range settled {
		if v != nil {
			results = append(results, v)
		}
	}
	return eventbus.Collapse(results), nil
}

// InvokeSyncEvent broadcasts one shared *plugin.InvokeEvent to every matching
// plugin in order and returns its Data. Data starts as a deep copy of
// copyProps with the top-level entries of passthru assigned by reference, so
// plugins may mutate values the caller passed through but never copyProps.
// MetaInvokeCount and MetaInvokeNames are always set on the returned payload.
func (m *Manager) InvokeSyncEvent(ctx context.Context, method string, copyProps, passthru map[string]any, names ...string) (map[string]any, error) {
	return m.invokeEvent(ctx, StrategyInvokeSyncEvent, method, copyProps, passthru, names, false)
}

// InvokeAsyncEvent is InvokeSyncEvent that awaits each plugin's Awaitable
// result before moving to the next plugin. A rejection stops later plugins
// from running.
func (m *Manager) InvokeAsyncEvent(ctx context.Context, method string, copyProps, passthru map[string]any, names ...string) (map[string]any, error) {
	return m.invokeEvent(ctx, StrategyInvokeAsyncEvent, method, copyProps, passthru, names, true)
}

func (m *Manager) invokeEvent(ctx context.Context, strategy, method string, copyProps, passthru map[string]any, names []string, await bool) (_ map[string]any, err error) {
	ctx, span := startSpan(ctx, "pluginmgr.invoke", attribute.String("method", method), attribute.String("strategy", strategy))
	defer func() {
		endSpan(span, err)
		recordInvocation(strategy, err)
	}()

	targets, err := m.targets(method, names)
	if err != nil {
		return nil, err
	}

	data, err := deepCopyMap(copyProps)
	if err != nil {
		return nil, errInvalidArgument("copyProps", copyProps, "cannot be copied: "+err.Error())
	}
	if data == nil {
		data = make(map[string]any, len(passthru)+2)
	}
	for k, v := range passthru {
		data[k] = v
	}

	ev := &plugin.InvokeEvent{Data: data}
	invoked := make([]string, 0, len(targets))
	for _, t := range targets {
		ev.Eventbus = t.entry.Eventbus()
		ev.PluginName = t.entry.name
		ev.PluginOptions = mustCopyMap(t.entry.Data().Plugin.Options)

		res, err := t.methods.Call(ctx, method, ev)
		if err == nil && await {
			_, err = eventbus.Resolve(ctx, res)
		}
		if err != nil {
			return nil, err //nolint:wrapcheck // method errors carry plugin context
		}
		invoked = append(invoked, t.entry.name)
	}

	ev.Data[MetaInvokeCount] = len(invoked)
	ev.Data[MetaInvokeNames] = invoked
	return ev.Data, nil
}

// GetMethodNames returns the sorted union of method names exposed by the
// named plugins. No names means all plugins.
func (m *Manager) GetMethodNames(names ...string) ([]string, error) {
	entries, err := m.resolve(names)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	for _, e := range entries {
		for _, n := range e.Methods().Names() {
			seen[n] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out, nil
}

// HasMethod reports whether any of the named plugins exposes method. No names
// means all plugins.
func (m *Manager) HasMethod(method string, names ...string) (bool, error) {
	entries, err := m.resolve(names)
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if e.Methods().Has(method) {
			return true, nil
		}
	}
	return false, nil
}
