// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package lua

import (
	"context"

	lua "github.com/yuin/gopher-lua"

	"github.com/holomush/pluginmgr/pkg/eventbus"
)

// newBusTable exposes the plugin's private proxy to a script:
//
//	ev.eventbus:on(name, fn)             -- returns the subscription id
//	ev.eventbus:off(name)                -- returns the number removed
//	ev.eventbus:trigger(name, ...)
//	ev.eventbus:trigger_sync(name, ...)  -- returns result, err
//	ev.eventbus:trigger_async(name, ...) -- returns result, err
//
// With no bus attached every method raises an error.
func newBusTable(L *lua.LState, rt *runtime, proxy *eventbus.Proxy) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("on", L.NewFunction(busOn(rt, proxy)))
	t.RawSetString("off", L.NewFunction(busOff(proxy)))
	t.RawSetString("trigger", L.NewFunction(busTrigger(rt, proxy)))
	t.RawSetString("trigger_sync", L.NewFunction(busTriggerResult(rt, proxy, (*eventbus.Proxy).TriggerSync)))
	t.RawSetString("trigger_async", L.NewFunction(busTriggerResult(rt, proxy, (*eventbus.Proxy).TriggerAsync)))
	return t
}

func requireBus(L *lua.LState, proxy *eventbus.Proxy) {
	if proxy == nil {
		L.RaiseError("no eventbus attached")
	}
}

// triggerArgs reads (self, name, ...) from the stack.
func triggerArgs(L *lua.LState) (string, []any) {
	name := L.CheckString(2)
	args := make([]any, 0, L.GetTop()-2)
	for i := 3; i <= L.GetTop(); i++ {
		args = append(args, fromLua(L.Get(i)))
	}
	return name, args
}

func busOn(rt *runtime, proxy *eventbus.Proxy) lua.LGFunction {
	return func(L *lua.LState) int {
		requireBus(L, proxy)
		name := L.CheckString(2)
		fn := L.CheckFunction(3)

		sub, err := proxy.On(name, scriptHandler(rt, name, fn))
		if err != nil {
			L.RaiseError("subscribe %s: %s", name, err.Error())
			return 0
		}
		L.Push(lua.LString(sub.ID()))
		return 1
	}
}

func busOff(proxy *eventbus.Proxy) lua.LGFunction {
	return func(L *lua.LState) int {
		requireBus(L, proxy)
		L.Push(lua.LNumber(proxy.Off(L.CheckString(2))))
		return 1
	}
}

func busTrigger(rt *runtime, proxy *eventbus.Proxy) lua.LGFunction {
	return func(L *lua.LState) int {
		requireBus(L, proxy)
		name, args := triggerArgs(L)
		proxy.Trigger(rt.currentContext(), name, args...)
		return 0
	}
}

type triggerFunc func(p *eventbus.Proxy, ctx context.Context, event string, args ...any) (any, error)

func busTriggerResult(rt *runtime, proxy *eventbus.Proxy, trigger triggerFunc) lua.LGFunction {
	return func(L *lua.LState) int {
		requireBus(L, proxy)
		name, args := triggerArgs(L)
		res, err := trigger(proxy, rt.currentContext(), name, args...)
		if err != nil {
			L.Push(lua.LNil)
			L.Push(lua.LString(err.Error()))
			return 2
		}
		L.Push(toLua(L, res))
		L.Push(lua.LNil)
		return 2
	}
}

// scriptHandler adapts a Lua function to an eventbus handler. The handler
// takes the module lock unless the trigger came from a call that holds it.
func scriptHandler(rt *runtime, event string, fn *lua.LFunction) eventbus.Handler {
	return func(ctx context.Context, args ...any) (any, error) {
		release, err := rt.acquire(ctx)
		if err != nil {
			return nil, err
		}
		defer release()

		in := make([]lua.LValue, 0, len(args))
		for _, a := range args {
			in = append(in, toLua(rt.state, a))
		}
		return rt.call(fn, event, in)
	}
}
