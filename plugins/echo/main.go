// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package main implements an echo plugin served over go-plugin.
//
// Build it next to its manifest:
//
//	go build -o plugins/echo/echo-$(go env GOOS)-$(go env GOARCH) ./plugins/echo
package main

import (
	"context"
	"strings"

	"github.com/holomush/pluginmgr/pkg/plugin"
	"github.com/holomush/pluginmgr/pkg/pluginsdk"
)

// Echo repeats what it is given.
type Echo struct {
	prefix string
}

// OnPluginLoad picks up the "prefix" option.
func (e *Echo) OnPluginLoad(_ context.Context, ev *plugin.Event) error {
	if p, ok := ev.PluginOptions["prefix"].(string); ok {
		e.prefix = p
	}
	return nil
}

// Echo returns msg with the configured prefix.
func (e *Echo) Echo(msg string) string {
	return e.prefix + msg
}

// Shout returns msg upper-cased.
func (e *Echo) Shout(msg string) string {
	return strings.ToUpper(e.prefix + msg)
}

// Collect appends the plugin name to data["echoed_by"].
func (e *Echo) Collect(ev *plugin.InvokeEvent) {
	seen, _ := ev.Data["echoed_by"].([]any)
	ev.Data["echoed_by"] = append(seen, ev.PluginName)
}

func main() {
	pluginsdk.Serve(&pluginsdk.ServeConfig{Plugin: &Echo{}})
}
