// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package lua

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/samber/oops"
	lua "github.com/yuin/gopher-lua"

	"github.com/holomush/pluginmgr/pkg/plugin"
)

// ErrClosed is returned when calling into a closed module.
var ErrClosed = errors.New("lua module is closed")

// hookFuncs maps lifecycle hook names to the Lua globals implementing them.
var hookFuncs = map[string]string{
	plugin.HookLoad:             "on_plugin_load",
	plugin.HookUnload:           "on_plugin_unload",
	plugin.HookEventbusChanged:  "on_plugin_eventbus_changed",
	plugin.HookEventbusResetter: "reset_eventbus",
}

// runtime is one Lua state shared by a module and its exports. Calls are
// serialized by mu. A call made from inside a running call on the same
// runtime (a script triggering an event it handles itself) runs under a
// lease taken from the caller instead, so it cannot deadlock; sibling calls
// under one lease still run one at a time.
type runtime struct {
	mu     sync.Mutex
	state  *lua.LState
	name   string
	path   string
	closed bool
}

type leaseKey struct{}

type lease struct {
	rt *runtime
	mu sync.Mutex
}

// acquire locks r, or the caller's lease when ctx already holds r.
func (r *runtime) acquire(ctx context.Context) (release func(), err error) {
	parent, _ := ctx.Value(leaseKey{}).(*lease)
	if parent != nil && parent.rt == r {
		parent.mu.Lock()
	} else {
		parent = nil
		r.mu.Lock()
		if r.closed {
			r.mu.Unlock()
			return nil, oops.In("lua").With("plugin", r.name).Wrap(ErrClosed)
		}
	}

	prev := r.state.Context()
	r.state.SetContext(context.WithValue(ctx, leaseKey{}, &lease{rt: r}))
	return func() {
		if prev != nil {
			r.state.SetContext(prev)
		} else {
			r.state.RemoveContext()
		}
		if parent != nil {
			parent.mu.Unlock()
		} else {
			r.mu.Unlock()
		}
	}, nil
}

// currentContext returns the context of the running call.
func (r *runtime) currentContext() context.Context {
	if ctx := r.state.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// call runs fn with the lock held and applies the return convention: the
// first result is the value, and a nil value followed by a message is an
// error. after runs once fn returned successfully.
func (r *runtime) call(fn *lua.LFunction, method string, in []lua.LValue, after ...func()) (any, error) {
	L := r.state
	if err := L.CallByParam(lua.P{Fn: fn, NRet: 2, Protect: true}, in...); err != nil {
		return nil, oops.Code("LUA_ERROR").In("lua").
			With("plugin", r.name).
			With("method", method).
			Wrap(err)
	}
	ret, errVal := L.Get(-2), L.Get(-1)
	L.Pop(2)

	for _, fn := range after {
		fn()
	}

	if ret == lua.LNil && errVal != lua.LNil {
		return nil, oops.Code("LUA_ERROR").In("lua").
			With("plugin", r.name).
			With("method", method).
			Errorf("%s", errVal.String())
	}
	return fromLua(ret), nil
}

// Module is a loaded Lua script. It implements plugin.Dispatcher over the
// script's global functions and plugin.Exporter over its global tables.
type Module struct {
	rt    *runtime
	scope *lua.LTable
	names []string
}

var (
	_ plugin.Dispatcher = (*Module)(nil)
	_ plugin.Exporter   = (*Module)(nil)
)

// Compile runs source in a fresh sandboxed state and returns the module.
// path is informational and used in errors.
func Compile(ctx context.Context, pluginName, path string, source []byte) (*Module, error) {
	L, err := newState(pluginName)
	if err != nil {
		return nil, err
	}
	L.SetContext(ctx)
	if err := L.DoString(string(source)); err != nil {
		L.Close()
		return nil, oops.Code("LUA_COMPILE").In("lua").
			With("plugin", pluginName).
			With("path", path).
			Hint("syntax or runtime error in the script body").
			Wrap(err)
	}
	L.RemoveContext()

	rt := &runtime{state: L, name: pluginName, path: path}
	return newModule(rt, L.G.Global), nil
}

func newModule(rt *runtime, scope *lua.LTable) *Module {
	m := &Module{rt: rt, scope: scope}
	goNames := make(map[string]string, len(hookFuncs))
	for goName, luaName := range hookFuncs {
		goNames[luaName] = goName
	}
	scope.ForEach(func(k, v lua.LValue) {
		fn, ok := v.(*lua.LFunction)
		if !ok || fn.IsG {
			return
		}
		name := k.String()
		if goName, ok := goNames[name]; ok {
			name = goName
		}
		m.names = append(m.names, name)
	})
	sort.Strings(m.names)
	return m
}

// Name returns the plugin name the module was compiled for.
func (m *Module) Name() string { return m.rt.name }

// Path returns the script path or URL.
func (m *Module) Path() string { return m.rt.path }

// MethodNames implements plugin.Dispatcher.
func (m *Module) MethodNames() []string {
	out := make([]string, len(m.names))
	copy(out, m.names)
	return out
}

// Export returns a module view over the global table name, so a script can
// publish `Plugin = { ... }` next to helper functions.
func (m *Module) Export(name string) (any, bool) {
	m.rt.mu.Lock()
	defer m.rt.mu.Unlock()
	if m.rt.closed {
		return nil, false
	}
	t, ok := m.scope.RawGetString(name).(*lua.LTable)
	if !ok {
		return nil, false
	}
	return newModule(m.rt, t), true
}

// Close releases the Lua state. Exports share the state and close with it.
func (m *Module) Close() error {
	m.rt.mu.Lock()
	defer m.rt.mu.Unlock()
	if !m.rt.closed {
		m.rt.closed = true
		m.rt.state.Close()
	}
	return nil
}

// Call implements plugin.Dispatcher. Lifecycle hook names are routed to their
// Lua counterparts. A script may signal failure by raising an error or by
// returning nil plus an error message.
func (m *Module) Call(ctx context.Context, method string, args ...any) (any, error) {
	release, err := m.rt.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	L := m.rt.state
	luaName := method
	if n, ok := hookFuncs[method]; ok {
		luaName = n
	}
	fn, ok := m.scope.RawGetString(luaName).(*lua.LFunction)
	if !ok {
		return nil, oops.Code("METHOD_NOT_FOUND").In("lua").
			With("plugin", m.rt.name).
			With("method", method).
			Wrap(plugin.ErrMethodNotFound)
	}

	in := make([]lua.LValue, 0, len(args))
	var after []func()
	for _, a := range args {
		v, writeBack := m.argToLua(L, a)
		in = append(in, v)
		if writeBack != nil {
			after = append(after, writeBack)
		}
	}
	return m.rt.call(fn, method, in, after...)
}

// argToLua converts one call argument. Lifecycle and invoke events become
// tables; the returned func copies script mutations back into the event.
func (m *Module) argToLua(L *lua.LState, arg any) (lua.LValue, func()) {
	switch ev := arg.(type) {
	case *plugin.Event:
		t := L.NewTable()
		t.RawSetString("plugin_name", lua.LString(ev.PluginName))
		t.RawSetString("options", toLua(L, ev.PluginOptions))
		t.RawSetString("state", toLua(L, ev.State))
		t.RawSetString("reloaded", lua.LBool(ev.Reloaded))
		t.RawSetString("eventbus", newBusTable(L, m.rt, ev.Eventbus))
		return t, func() { ev.State = fromLua(t.RawGetString("state")) }

	case *plugin.EventbusChangedEvent:
		t := L.NewTable()
		t.RawSetString("plugin_name", lua.LString(ev.PluginName))
		t.RawSetString("options", toLua(L, ev.PluginOptions))
		t.RawSetString("old_prefix", lua.LString(ev.OldEventPrefix))
		t.RawSetString("new_prefix", lua.LString(ev.NewEventPrefix))
		t.RawSetString("eventbus", newBusTable(L, m.rt, ev.Eventbus))
		return t, nil

	case *plugin.InvokeEvent:
		t := L.NewTable()
		data := toLua(L, ev.Data)
		t.RawSetString("data", data)
		t.RawSetString("plugin_name", lua.LString(ev.PluginName))
		t.RawSetString("options", toLua(L, ev.PluginOptions))
		t.RawSetString("eventbus", newBusTable(L, m.rt, ev.Eventbus))
		return t, func() {
			updated, _ := fromLua(t.RawGetString("data")).(map[string]any)
			ev.ApplyData(updated)
		}

	default:
		return toLua(L, arg), nil
	}
}
