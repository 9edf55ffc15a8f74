// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package binary starts out-of-process plugins with HashiCorp go-plugin and
// hands back an instance the manager can call.
package binary

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"sync"

	"github.com/hashicorp/go-hclog"
	hashiplug "github.com/hashicorp/go-plugin"
	"github.com/samber/oops"

	"github.com/holomush/pluginmgr/pkg/plugin"
	"github.com/holomush/pluginmgr/pkg/pluginsdk"
)

// ErrClosed is returned when calling into a plugin whose process was stopped.
var ErrClosed = errors.New("plugin process is stopped")

// PluginClient wraps the go-plugin client for testability.
type PluginClient interface {
	// Client returns the gRPC client protocol.
	Client() (hashiplug.ClientProtocol, error)
	// Kill terminates the plugin process.
	Kill()
}

// ClientFactory creates plugin clients.
type ClientFactory interface {
	// NewClient creates a client for the given executable path.
	NewClient(execPath string) PluginClient
}

// DefaultClientFactory creates real go-plugin clients.
type DefaultClientFactory struct {
	// Logger receives the plugin's stderr and go-plugin diagnostics.
	Logger hclog.Logger
}

// NewClient creates a real go-plugin client.
func (f *DefaultClientFactory) NewClient(execPath string) PluginClient {
	logger := f.Logger
	if logger == nil {
		logger = hclog.New(&hclog.LoggerOptions{Name: "pluginmgr.binary", Level: hclog.Warn})
	}
	return hashiplug.NewClient(&hashiplug.ClientConfig{
		HandshakeConfig:  pluginsdk.HandshakeConfig,
		Plugins:          pluginsdk.PluginMap,
		Cmd:              exec.Command(execPath), // #nosec G204 -- path resolved by the loader from a manifest or explicit target
		AllowedProtocols: []hashiplug.Protocol{hashiplug.ProtocolGRPC},
		Logger:           logger.Named(execPath),
	})
}

// Launcher starts plugin executables.
type Launcher struct {
	factory ClientFactory
}

// NewLauncher creates a launcher backed by real go-plugin clients.
func NewLauncher() *Launcher {
	return &Launcher{factory: &DefaultClientFactory{}}
}

// NewLauncherWithFactory creates a launcher with a custom client factory.
// Panics if factory is nil.
func NewLauncherWithFactory(factory ClientFactory) *Launcher {
	if factory == nil {
		panic("binary: factory cannot be nil")
	}
	return &Launcher{factory: factory}
}

// Start launches execPath and connects to the plugin it serves.
func (l *Launcher) Start(_ context.Context, name, execPath string) (*Instance, error) {
	errb := oops.In("binary").With("plugin", name).With("path", execPath)

	info, err := os.Stat(execPath)
	if err != nil {
		return nil, errb.Code("PLUGIN_EXECUTABLE_MISSING").Wrap(err)
	}
	if info.IsDir() {
		return nil, errb.Code("PLUGIN_EXECUTABLE_MISSING").Errorf("%s is a directory", execPath)
	}

	client := l.factory.NewClient(execPath)
	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, errb.Code("PLUGIN_CONNECT_FAILED").Wrapf(err, "connect to plugin")
	}

	raw, err := rpcClient.Dispense(pluginsdk.PluginName)
	if err != nil {
		client.Kill()
		return nil, errb.Code("PLUGIN_CONNECT_FAILED").Wrapf(err, "dispense plugin")
	}

	dispatcher, ok := raw.(plugin.Dispatcher)
	if !ok {
		client.Kill()
		return nil, errb.Code("PLUGIN_CONNECT_FAILED").Errorf("plugin %s does not serve the plugin protocol", name)
	}

	return &Instance{name: name, path: execPath, client: client, remote: dispatcher}, nil
}

// Instance is a running plugin process. It implements plugin.Dispatcher and
// io.Closer; closing kills the process.
type Instance struct {
	name   string
	path   string
	client PluginClient
	remote plugin.Dispatcher

	mu     sync.RWMutex
	closed bool
}

var _ plugin.Dispatcher = (*Instance)(nil)

// Path returns the executable path.
func (i *Instance) Path() string { return i.path }

// MethodNames implements plugin.Dispatcher.
func (i *Instance) MethodNames() []string {
	return i.remote.MethodNames()
}

// Call implements plugin.Dispatcher.
//
// The read lock is released before the call so calls are not serialized. A
// concurrent Close makes the in-flight call fail when the process dies.
func (i *Instance) Call(ctx context.Context, method string, args ...any) (any, error) {
	i.mu.RLock()
	closed := i.closed
	i.mu.RUnlock()
	if closed {
		return nil, oops.In("binary").With("plugin", i.name).With("method", method).Wrap(ErrClosed)
	}
	return i.remote.Call(ctx, method, args...)
}

// Close kills the plugin process. It is safe to call more than once.
func (i *Instance) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if !i.closed {
		i.closed = true
		i.client.Kill()
	}
	return nil
}
