// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package pluginsdk_test

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/holomush/pluginmgr/pkg/errutil"
	"github.com/holomush/pluginmgr/pkg/eventbus"
	"github.com/holomush/pluginmgr/pkg/plugin"
	"github.com/holomush/pluginmgr/pkg/pluginmgr"
	"github.com/holomush/pluginmgr/pkg/pluginsdk"
)

type point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// remote is served over an in-memory gRPC connection.
type remote struct{}

func (remote) Echo(_ context.Context, msg string) string { return msg }

func (remote) Sum(a, b int) int { return a + b }

func (remote) Point() point { return point{X: 1, Y: 2} }

func (remote) Fail() error { return errors.New("refused") }

func (remote) Later(n int) *eventbus.Promise { return eventbus.Resolved(n * 2) }

func (remote) Count(ev *plugin.InvokeEvent) {
	result, _ := ev.Data["result"].(map[string]any)
	n, _ := result["count"].(int)
	result["count"] = n + 1
	ev.Data["seen_by"] = ev.PluginName
}

func (remote) OnPluginLoad(_ context.Context, ev *plugin.Event) error {
	if ev.State == nil {
		ev.State = map[string]any{"loads": 1}
	}
	return nil
}

func (remote) OnPluginUnload(_ context.Context, ev *plugin.Event) error {
	ev.State = map[string]any{"reloaded": ev.Reloaded, "tag": ev.PluginOptions["tag"]}
	return nil
}

// dial serves instance on an in-memory listener and returns a client.
func dial(t *testing.T, instance any) *pluginsdk.Client {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	pluginsdk.RegisterServer(srv, plugin.NewMethodSet(instance))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	client, err := pluginsdk.NewClient(context.Background(), conn)
	require.NoError(t, err)
	return client
}

func TestClient_MethodNames(t *testing.T) {
	c := dial(t, remote{})
	assert.Equal(t, []string{
		"Count", "Echo", "Fail", "Later", "OnPluginLoad", "OnPluginUnload", "Point", "Sum",
	}, c.MethodNames())
}

func TestClient_Call(t *testing.T) {
	c := dial(t, remote{})
	ctx := context.Background()

	tests := []struct {
		method string
		args   []any
		want   any
	}{
		{method: "Echo", args: []any{"hi"}, want: "hi"},
		{method: "Sum", args: []any{2, 3}, want: 5},
		{method: "Point", want: map[string]any{"x": 1, "y": 2}},
		{method: "Later", args: []any{4}, want: 8},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			got, err := c.Call(ctx, tt.method, tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClient_CallErrors(t *testing.T) {
	c := dial(t, remote{})
	ctx := context.Background()

	_, err := c.Call(ctx, "Missing")
	require.ErrorIs(t, err, plugin.ErrMethodNotFound)
	errutil.AssertErrorCode(t, err, "METHOD_NOT_FOUND")

	_, err = c.Call(ctx, "Sum", "one", 2)
	require.ErrorIs(t, err, plugin.ErrInvalidArgument)

	_, err = c.Call(ctx, "Fail")
	require.ErrorIs(t, err, pluginsdk.ErrCallFailed)
	errutil.AssertErrorCode(t, err, "PLUGIN_CALL_FAILED")
	errutil.AssertErrorContext(t, err, "method", "Fail")
	assert.Contains(t, err.Error(), "refused")

	_, err = c.Call(ctx, "Echo", make(chan int))
	require.ErrorIs(t, err, plugin.ErrInvalidArgument)
}

func TestClient_HookStateCrossesTheWire(t *testing.T) {
	c := dial(t, remote{})
	ctx := context.Background()

	unload := &plugin.Event{PluginName: "r", PluginOptions: map[string]any{"tag": "x"}, Reloaded: true}
	_, err := c.Call(ctx, plugin.HookUnload, unload)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"reloaded": true, "tag": "x"}, unload.State)

	load := &plugin.Event{PluginName: "r"}
	_, err = c.Call(ctx, plugin.HookLoad, load)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"loads": 1}, load.State)
}

func TestClient_InvokeEventThroughManager(t *testing.T) {
	m := pluginmgr.New()
	ctx := context.Background()
	_, err := m.Add(ctx, pluginmgr.Config{Name: "remote", Instance: dial(t, remote{})}, nil)
	require.NoError(t, err)

	result := map[string]any{"count": 1}
	data, err := m.InvokeSyncEvent(ctx, "Count", nil, map[string]any{"result": result})
	require.NoError(t, err)
	assert.Equal(t, 2, result["count"])
	assert.Equal(t, "remote", data["seen_by"])

	got, err := m.InvokeSync(ctx, "Sum", []any{1, 2})
	require.NoError(t, err)
	assert.Equal(t, 3, got)
}

func TestGRPCPlugin_GRPCServer_NilPlugin(t *testing.T) {
	p := &pluginsdk.GRPCPlugin{}
	s := grpc.NewServer()
	defer s.Stop()

	require.Error(t, p.GRPCServer(nil, s))
}

func TestGRPCPlugin_GRPCServer_RegistersService(t *testing.T) {
	p := &pluginsdk.GRPCPlugin{Impl: remote{}}
	s := grpc.NewServer()
	defer s.Stop()

	require.NoError(t, p.GRPCServer(nil, s))
	info := s.GetServiceInfo()
	require.Contains(t, info, pluginsdk.ServiceName)

	var methods []string
	for _, m := range info[pluginsdk.ServiceName].Methods {
		methods = append(methods, m.Name)
	}
	assert.ElementsMatch(t, []string{"Describe", "Call"}, methods)
}

func TestServe_RejectsMissingPlugin(t *testing.T) {
	assert.Panics(t, func() { pluginsdk.Serve(nil) })
	assert.Panics(t, func() { pluginsdk.Serve(&pluginsdk.ServeConfig{}) })
}
