// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package pluginmgr

import (
	"context"
	"sync"

	"github.com/holomush/pluginmgr/pkg/eventbus"
)

// Support is an extension composed into a Manager that exposes its own slice
// of the bus command surface.
type Support interface {
	// SetEventbus moves the extension's commands to bus under prefix.
	SetEventbus(bus *eventbus.Eventbus, prefix string) error

	// SetOptions is called with the manager's options whenever they change.
	SetOptions(opts Options)

	// Destroy withdraws the extension's commands.
	Destroy()
}

// SupportFactory builds an extension bound to m.
type SupportFactory func(m *Manager) Support

// Invoke extension command suffixes.
const (
	CmdAsyncInvoke      = "async:invoke"
	CmdAsyncInvokeEvent = "async:invoke:event"
	CmdGetMethodNames   = "get:method:names"
	CmdHasMethod        = "has:method"
	CmdInvoke           = "invoke"
	CmdSyncInvoke       = "sync:invoke"
	CmdSyncInvokeEvent  = "sync:invoke:event"
)

// InvokeSupport exposes the invocation engine on the bus.
type InvokeSupport struct {
	m *Manager

	mu      sync.Mutex
	proxy   *eventbus.Proxy
	options Options
}

// NewInvokeSupport returns the invoke extension for m.
func NewInvokeSupport(m *Manager) *InvokeSupport {
	return &InvokeSupport{m: m}
}

func invokeSupportFactory(m *Manager) Support {
	return NewInvokeSupport(m)
}

// SetEventbus implements Support.
func (s *InvokeSupport) SetEventbus(bus *eventbus.Eventbus, prefix string) error {
	if bus == nil {
		return errInvalidArgument("eventbus", nil, "must not be nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.proxy != nil {
		s.proxy.Destroy()
	}
	s.proxy = bus.CreateProxy()
	bindCommandTable(s.proxy, prefix, s.options, s.commandTable(), s.m.logger)
	return nil
}

// SetOptions implements Support.
func (s *InvokeSupport) SetOptions(opts Options) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.options = opts
}

// Destroy implements Support.
func (s *InvokeSupport) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.proxy != nil {
		s.proxy.Destroy()
		s.proxy = nil
	}
}

func (s *InvokeSupport) commandTable() []command {
	return []command{
		{suffix: CmdAsyncInvoke, handler: s.handleAsyncInvoke},
		{suffix: CmdAsyncInvokeEvent, handler: s.handleAsyncInvokeEvent},
		{suffix: CmdGetMethodNames, handler: s.handleGetMethodNames},
		{suffix: CmdHasMethod, handler: s.handleHasMethod},
		{suffix: CmdInvoke, handler: s.handleInvoke},
		{suffix: CmdSyncInvoke, handler: s.handleSyncInvoke},
		{suffix: CmdSyncInvokeEvent, handler: s.handleSyncInvokeEvent},
	}
}

func decodeMethod(v any) (string, error) {
	method, ok := v.(string)
	if !ok || method == "" {
		return "", errInvalidArgument("method", v, "must be a non-empty string")
	}
	return method, nil
}

func decodeProps(field string, v any) (map[string]any, error) {
	switch p := v.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return p, nil
	default:
		return nil, errInvalidArgument(field, v, "must be a map")
	}
}

// invokeArgs decodes (method, args, plugins).
func invokeArgs(args []any) (method string, callArgs any, names []string, err error) {
	if method, err = decodeMethod(arg(args, 0)); err != nil {
		return "", nil, nil, err
	}
	if names, _, err = decodeNames(arg(args, 2)); err != nil {
		return "", nil, nil, err
	}
	return method, arg(args, 1), names, nil
}

// eventArgs decodes (method, copyProps, passthruProps, plugins).
func eventArgs(args []any) (method string, copyProps, passthru map[string]any, names []string, err error) {
	if method, err = decodeMethod(arg(args, 0)); err != nil {
		return "", nil, nil, nil, err
	}
	if copyProps, err = decodeProps("copyProps", arg(args, 1)); err != nil {
		return "", nil, nil, nil, err
	}
	if passthru, err = decodeProps("passthruProps", arg(args, 2)); err != nil {
		return "", nil, nil, nil, err
	}
	if names, _, err = decodeNames(arg(args, 3)); err != nil {
		return "", nil, nil, nil, err
	}
	return method, copyProps, passthru, names, nil
}

func (s *InvokeSupport) handleInvoke(ctx context.Context, args ...any) (any, error) {
	method, callArgs, names, err := invokeArgs(args)
	if err != nil {
		return nil, err
	}
	return nil, s.m.Invoke(ctx, method, callArgs, names...)
}

func (s *InvokeSupport) handleSyncInvoke(ctx context.Context, args ...any) (any, error) {
	method, callArgs, names, err := invokeArgs(args)
	if err != nil {
		return nil, err
	}
	return s.m.InvokeSync(ctx, method, callArgs, names...)
}

func (s *InvokeSupport) handleAsyncInvoke(ctx context.Context, args ...any) (any, error) {
	method, callArgs, names, err := invokeArgs(args)
	if err != nil {
		return nil, err
	}
	return s.m.InvokeAsync(ctx, method, callArgs, names...)
}

func (s *InvokeSupport) handleSyncInvokeEvent(ctx context.Context, args ...any) (any, error) {
	method, copyProps, passthru, names, err := eventArgs(args)
	if err != nil {
		return nil, err
	}
	return s.m.InvokeSyncEvent(ctx, method, copyProps, passthru, names...)
}

func (s *InvokeSupport) handleAsyncInvokeEvent(ctx context.Context, args ...any) (any, error) {
	method, copyProps, passthru, names, err := eventArgs(args)
	if err != nil {
		return nil, err
	}
	return s.m.InvokeAsyncEvent(ctx, method, copyProps, passthru, names...)
}

func (s *InvokeSupport) handleGetMethodNames(_ context.Context, args ...any) (any, error) {
	names, _, err := decodeNames(arg(args, 0))
	if err != nil {
		return nil, err
	}
	return s.m.GetMethodNames(names...)
}

func (s *InvokeSupport) handleHasMethod(_ context.Context, args ...any) (any, error) {
	method, err := decodeMethod(arg(args, 0))
	if err != nil {
		return nil, err
	}
	names, _, err := decodeNames(arg(args, 1))
	if err != nil {
		return nil, err
	}
	return s.m.HasMethod(method, names...)
}
