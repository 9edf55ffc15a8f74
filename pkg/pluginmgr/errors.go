// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package pluginmgr

import (
	"errors"

	"github.com/samber/oops"
)

// Error codes attached to manager errors.
const (
	CodeDestroyed       = "MANAGER_DESTROYED"
	CodeInvalidConfig   = "INVALID_CONFIG"
	CodeInvalidArgument = "INVALID_ARGUMENT"
	CodePluginExists    = "PLUGIN_EXISTS"
	CodePluginLoading   = "PLUGIN_LOADING"
	CodePluginBusy      = "PLUGIN_BUSY"
	CodePluginNotFound  = "PLUGIN_NOT_FOUND"
	CodeLoadFailed      = "LOAD_FAILED"
	CodeHookFailed      = "HOOK_FAILED"
	CodeNoPlugin        = "NO_PLUGIN"
	CodeNoMethod        = "NO_METHOD"
	CodeNoEventbus      = "NO_EVENTBUS"
)

// Sentinel errors. Every error returned by the manager wraps one of these.
var (
	ErrDestroyed       = errors.New("plugin manager destroyed")
	ErrInvalidConfig   = errors.New("invalid plugin config")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrPluginExists    = errors.New("plugin already exists")
	ErrPluginLoading   = errors.New("plugin is already loading")
	ErrPluginBusy      = errors.New("plugin lifecycle operation in progress")
	ErrPluginNotFound  = errors.New("plugin not found")
	ErrLoadFailed      = errors.New("plugin load failed")
	ErrHookFailed      = errors.New("plugin lifecycle hook failed")
	ErrNoPlugin        = errors.New("no plugin matched")
	ErrNoMethod        = errors.New("no plugin method matched")
	ErrNoEventbus      = errors.New("no eventbus attached")
)

func errDestroyed() error {
	return oops.Code(CodeDestroyed).In("pluginmgr").Wrap(ErrDestroyed)
}

func errInvalidConfig(field string, value any, reason string) error {
	return oops.Code(CodeInvalidConfig).In("pluginmgr").
		With("field", field).
		With("value", value).
		Wrapf(ErrInvalidConfig, "%s %s", field, reason)
}

func errInvalidArgument(field string, value any, reason string) error {
	return oops.Code(CodeInvalidArgument).In("pluginmgr").
		With("field", field).
		With("value", value).
		Wrapf(ErrInvalidArgument, "%s %s", field, reason)
}

func errPluginBusy(name, operation string) error {
	return oops.Code(CodePluginBusy).In("pluginmgr").
		With("plugin", name).
		With("operation", operation).
		Hint("a lifecycle hook cannot remove or reload its own plugin").
		Wrap(ErrPluginBusy)
}

func errPluginExists(name string) error {
	return oops.Code(CodePluginExists).In("pluginmgr").
		With("plugin", name).
		Wrapf(ErrPluginExists, "plugin %q", name)
}

func errPluginLoading(name string) error {
	return oops.Code(CodePluginLoading).In("pluginmgr").
		With("plugin", name).
		Wrapf(ErrPluginLoading, "plugin %q", name)
}

func errPluginNotFound(name string) error {
	return oops.Code(CodePluginNotFound).In("pluginmgr").
		With("plugin", name).
		Wrapf(ErrPluginNotFound, "plugin %q", name)
}

func errLoadFailed(name, target string, cause error) error {
	return oops.Code(CodeLoadFailed).In("pluginmgr").
		With("plugin", name).
		With("target", target).
		Wrapf(errors.Join(ErrLoadFailed, cause), "failed to load %s", target)
}

func errHookFailed(name, hook string, cause error) error {
	return oops.Code(CodeHookFailed).In("pluginmgr").
		With("plugin", name).
		With("hook", hook).
		Wrapf(errors.Join(ErrHookFailed, cause), "%s", hook)
}

func errNoPlugin(method string, names []string) error {
	return oops.Code(CodeNoPlugin).In("pluginmgr").
		With("method", method).
		With("plugins", names).
		Wrap(ErrNoPlugin)
}

func errNoMethod(method string, names []string) error {
	return oops.Code(CodeNoMethod).In("pluginmgr").
		With("method", method).
		With("plugins", names).
		Wrapf(ErrNoMethod, "method %q", method)
}

func errNoEventbus() error {
	return oops.Code(CodeNoEventbus).In("pluginmgr").Wrap(ErrNoEventbus)
}
