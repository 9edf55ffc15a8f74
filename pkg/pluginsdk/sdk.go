// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package pluginsdk builds and talks to out-of-process plugins.
//
// A binary plugin is an executable that serves one plugin instance over gRPC
// using the HashiCorp go-plugin framework. Any value the manager accepts as an
// instance can be served: its exported methods (or Funcs entries) become
// remote methods, and the lifecycle hooks receive the same event types as an
// in-process plugin, minus the event bus.
//
//	package main
//
//	import (
//		"context"
//
//		"github.com/holomush/pluginmgr/pkg/plugin"
//		"github.com/holomush/pluginmgr/pkg/pluginsdk"
//	)
//
//	type Echo struct{}
//
//	func (Echo) Echo(_ context.Context, msg string) string { return msg }
//
//	func (Echo) Count(ev *plugin.InvokeEvent) {
//		n, _ := ev.Data["count"].(int)
//		ev.Data["count"] = n + 1
//	}
//
//	func main() {
//		pluginsdk.Serve(&pluginsdk.ServeConfig{Plugin: Echo{}})
//	}
package pluginsdk

import (
	"context"
	"errors"

	"github.com/hashicorp/go-hclog"
	hashiplug "github.com/hashicorp/go-plugin"
	"google.golang.org/grpc"

	"github.com/holomush/pluginmgr/pkg/plugin"
)

// PluginName is the name the plugin is dispensed under.
const PluginName = "plugin"

// HandshakeConfig is the go-plugin handshake configuration.
// Both host and plugins must use the same values.
var HandshakeConfig = hashiplug.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "PLUGINMGR_PLUGIN",
	MagicCookieValue: "pluginmgr-v1",
}

// PluginMap is the set of plugins a host can dispense.
var PluginMap = map[string]hashiplug.Plugin{
	PluginName: &GRPCPlugin{},
}

// ServeConfig configures the plugin server.
type ServeConfig struct {
	// Plugin is the served instance. Required; Serve panics if nil.
	Plugin any

	// Logger receives go-plugin's own diagnostics. Defaults to a
	// warn-level logger on stderr, which the host forwards.
	Logger hclog.Logger
}

// Serve starts the plugin server. It is called from main and blocks until
// the host disconnects.
func Serve(config *ServeConfig) {
	if config == nil {
		panic("pluginsdk: config cannot be nil")
	}
	if config.Plugin == nil {
		panic("pluginsdk: config.Plugin cannot be nil")
	}
	logger := config.Logger
	if logger == nil {
		logger = hclog.New(&hclog.LoggerOptions{
			Name:       "plugin",
			Level:      hclog.Warn,
			JSONFormat: true,
		})
	}
	hashiplug.Serve(&hashiplug.ServeConfig{
		HandshakeConfig: HandshakeConfig,
		Plugins: map[string]hashiplug.Plugin{
			PluginName: &GRPCPlugin{Impl: config.Plugin},
		},
		GRPCServer: hashiplug.DefaultGRPCServer,
		Logger:     logger,
	})
}

// GRPCPlugin implements go-plugin's Plugin interface for gRPC.
type GRPCPlugin struct {
	hashiplug.NetRPCUnsupportedPlugin

	// Impl is the served instance. Only used in the plugin process.
	Impl any
}

// GRPCServer registers the plugin service (called by the plugin process).
func (p *GRPCPlugin) GRPCServer(_ *hashiplug.GRPCBroker, s *grpc.Server) error {
	if p.Impl == nil {
		return errors.New("pluginsdk: plugin is nil")
	}
	RegisterServer(s, plugin.NewMethodSet(p.Impl))
	return nil
}

// GRPCClient returns a *Client (called by the host process).
func (p *GRPCPlugin) GRPCClient(ctx context.Context, _ *hashiplug.GRPCBroker, c *grpc.ClientConn) (any, error) {
	return NewClient(ctx, c)
}
