// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/pluginmgr/internal/callexpr"
	"github.com/holomush/pluginmgr/internal/config"
	"github.com/holomush/pluginmgr/internal/observability"
	"github.com/holomush/pluginmgr/pkg/errutil"
	"github.com/holomush/pluginmgr/pkg/plugin"
	"github.com/holomush/pluginmgr/pkg/pluginmgr"
)

const greeterSource = `
function greet(name) return "hi " .. name end
function collect(ev)
	ev.data.seen = ev.plugin_name
	ev.data.total = (ev.data.total or 0) + 1
end
function on_plugin_load(ev)
	ev.eventbus:on("greeter:ping", function() return "pong" end)
end
`

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	configFile = ""

	cmd := NewRootCmd()
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCommand_HasExpectedSubcommands(t *testing.T) {
	out, err := execute(t, "--help")
	require.NoError(t, err)

	for _, sub := range []string{"run", "invoke", "list", "validate", "schema"} {
		assert.Contains(t, out, sub, "Help missing %q command", sub)
	}
	for _, flag := range []string{"--config", "--log-format", "--prefix", "--search-path", "--hot-reload"} {
		assert.Contains(t, out, flag, "Help missing %q flag", flag)
	}
}

func TestRootCommand_VersionFlag(t *testing.T) {
	configFile = ""
	cmd := NewRootCmd()
	cmd.Version = "test-version"
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--version"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "test-version")
}

func TestInvoke_Sync(t *testing.T) {
	script := writeFile(t, t.TempDir(), "greeter.lua", greeterSource)

	out, err := execute(t, "invoke", "--load", "greeter="+script, `greet("bob")`)
	require.NoError(t, err)
	assert.JSONEq(t, `"hi bob"`, out)
}

func TestInvoke_SyncEvent(t *testing.T) {
	script := writeFile(t, t.TempDir(), "greeter.lua", greeterSource)

	out, err := execute(t, "invoke", "--mode", "sync-event", "--load", "greeter="+script, `collect({total: 4})`)
	require.NoError(t, err)

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &payload))
	assert.Equal(t, "greeter", payload["seen"])
	assert.EqualValues(t, 5, payload["total"])
	assert.EqualValues(t, 1, payload[pluginmgr.MetaInvokeCount])
	assert.Equal(t, []any{"greeter"}, payload[pluginmgr.MetaInvokeNames])
}

func TestInvoke_FromConfigFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "greeter.lua", greeterSource)
	cfg := writeFile(t, dir, "pluginmgr.yaml", `
loader:
  search_paths: [`+dir+`]
plugins:
  - name: greeter
`)

	out, err := execute(t, "invoke", "--config", cfg, "--mode", "async", `greet("ann")`)
	require.NoError(t, err)
	assert.JSONEq(t, `"hi ann"`, out)
}

func TestInvoke_Errors(t *testing.T) {
	script := writeFile(t, t.TempDir(), "greeter.lua", greeterSource)

	_, err := execute(t, "invoke", "--load", "greeter="+script, `greet(`)
	require.ErrorIs(t, err, callexpr.ErrSyntax)

	_, err = execute(t, "invoke", "--load", "greeter="+script, "--mode", "sideways", "greet()")
	errutil.AssertErrorCode(t, err, "INVALID_ARGUMENT")

	_, err = execute(t, "invoke", "--load", "=", "greet()")
	errutil.AssertErrorCode(t, err, "INVALID_ARGUMENT")

	_, err = execute(t, "invoke", "--load", "missing=/no/such/plugin.lua", "greet()")
	require.ErrorIs(t, err, pluginmgr.ErrLoadFailed)

	_, err = execute(t, "invoke", "--load", "greeter="+script, "--prefix", "p", "--mode", "sync-event", "collect(1)")
	errutil.AssertErrorCode(t, err, "INVALID_ARGUMENT")
}

func TestInvoke_ThrowNoPlugin(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "pluginmgr.yaml", "manager:\n  options:\n    throw_no_plugin: true\n")

	_, err := execute(t, "invoke", "--config", cfg, "--plugins", "ghost", "greet()")
	require.ErrorIs(t, err, pluginmgr.ErrNoPlugin)
}

func TestEventProps(t *testing.T) {
	copyProps, passthru, err := eventProps(nil)
	require.NoError(t, err)
	assert.Nil(t, copyProps)
	assert.Nil(t, passthru)

	copyProps, passthru, err = eventProps([]any{nil, map[string]any{"a": 1}})
	require.NoError(t, err)
	assert.Nil(t, copyProps)
	assert.Equal(t, map[string]any{"a": 1}, passthru)

	_, _, err = eventProps([]any{map[string]any{}, map[string]any{}, map[string]any{}})
	require.Error(t, err)
}

func TestList_JSON(t *testing.T) {
	script := writeFile(t, t.TempDir(), "greeter.lua", greeterSource)

	out, err := execute(t, "list", "--json", "--prefix", "mods", "--load", "greeter="+script)
	require.NoError(t, err)

	var statuses []PluginStatus
	require.NoError(t, json.Unmarshal([]byte(out), &statuses))
	require.Len(t, statuses, 1)
	assert.Equal(t, "greeter", statuses[0].Name)
	assert.Equal(t, plugin.LoadRequirePath, statuses[0].Type)
	assert.True(t, statuses[0].Enabled)
	assert.Contains(t, statuses[0].Methods, "greet")
	assert.Contains(t, statuses[0].Events, "greeter:ping")
}

func TestList_Table(t *testing.T) {
	script := writeFile(t, t.TempDir(), "greeter.lua", greeterSource)

	out, err := execute(t, "list", "--load", "greeter="+script)
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "greeter")
	assert.Contains(t, out, "require-path")
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.yaml", "log:\n  level: debug\n")
	bad := writeFile(t, dir, "bad.yaml", "log:\n  level: loud\n")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "echo"), 0o750))
	manifestPath := writeFile(t, filepath.Join(dir, "echo"), "plugin.yaml", `
name: echo
version: 1.0.0
type: lua
lua-plugin:
  entry: main.lua
`)

	out, err := execute(t, "validate", good, manifestPath)
	require.NoError(t, err)
	assert.Contains(t, out, good+": ok")
	assert.Contains(t, out, manifestPath+": ok")

	_, err = execute(t, "validate", good, bad)
	require.ErrorIs(t, err, config.ErrInvalidConfig)

	_, err = execute(t, "validate")
	errutil.AssertErrorCode(t, err, "INVALID_ARGUMENT")

	out, err = execute(t, "validate", "--config", good)
	require.NoError(t, err)
	assert.Contains(t, out, "ok")
}

func TestSchema(t *testing.T) {
	out, err := execute(t, "schema")
	require.NoError(t, err)
	assert.Contains(t, out, config.SchemaID)

	out, err = execute(t, "schema", "manifest")
	require.NoError(t, err)
	assert.Contains(t, out, "plugin.schema.json")

	_, err = execute(t, "schema", "other")
	require.Error(t, err)
}

type stubObservability struct {
	metrics *observability.Metrics
	status  observability.HostStatus
	started bool
	stopped bool
}

func (s *stubObservability) Start() (<-chan error, error) {
	s.started = true
	return make(chan error), nil
}

func (s *stubObservability) Stop(context.Context) error {
	s.stopped = true
	return nil
}

func (s *stubObservability) Addr() string                    { return "stub" }
func (s *stubObservability) Metrics() *observability.Metrics { return s.metrics }

func TestRun_StartsAndShutsDown(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "greeter.lua", greeterSource)
	cfg := writeFile(t, dir, "pluginmgr.yaml", `
metrics:
  addr: 127.0.0.1:0
loader:
  search_paths: [`+dir+`]
plugins:
  - name: greeter
  - name: missing
`)

	stub := &stubObservability{metrics: observability.NewMetrics(prometheus.NewRegistry())}
	deps := &RunDeps{
		ObservabilityServerFactory: func(_ string, status observability.HostStatus) ObservabilityServer {
			stub.status = status
			return stub
		},
		SignalContext: func(ctx context.Context) (context.Context, context.CancelFunc) {
			ctx, cancel := context.WithCancel(ctx)
			cancel()
			return ctx, cancel
		},
	}

	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	configFile = ""
	root := NewRootCmd()
	runCmd, _, err := root.Find([]string{"run"})
	require.NoError(t, err)
	runCmd.RunE = func(cmd *cobra.Command, _ []string) error {
		return runWithDeps(cmd.Context(), cmd, deps)
	}
	out := new(bytes.Buffer)
	root.SetOut(out)
	root.SetErr(new(bytes.Buffer))
	root.SetArgs([]string{"run", "--config", cfg})

	require.NoError(t, root.Execute())

	assert.Contains(t, out.String(), "started with 1 plugin(s)")
	assert.True(t, stub.started)
	assert.True(t, stub.stopped)
	assert.False(t, stub.status.Ready(), "not ready after shutdown")
	assert.InDelta(t, 1, testutil.ToFloat64(stub.metrics.StartupPlugins.WithLabelValues(pluginmgr.StatusSuccess)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(stub.metrics.StartupPlugins.WithLabelValues(pluginmgr.StatusError)), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(stub.metrics.Ready), 0)
}

func TestParseLoadFlags(t *testing.T) {
	got, err := parseLoadFlags([]string{"a=./a.lua", "./b.lua"})
	require.NoError(t, err)
	assert.Equal(t, []pluginmgr.Config{
		{Name: "a", Target: "./a.lua"},
		{Name: "./b.lua", Target: "./b.lua"},
	}, got)

	_, err = parseLoadFlags([]string{"a="})
	require.Error(t, err)
}
