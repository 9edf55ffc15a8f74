// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package eventbus_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/pluginmgr/pkg/eventbus"
)

func TestProxy_OffReleasesOnlyOwnedSubscriptions(t *testing.T) {
	bus := eventbus.New("test")
	_, err := bus.On("evt", constHandler("direct"))
	require.NoError(t, err)

	proxy := bus.CreateProxy()
	_, err = proxy.On("evt", constHandler("proxied"))
	require.NoError(t, err)
	_, err = proxy.On("other", constHandler("proxied"))
	require.NoError(t, err)

	assert.Equal(t, 2, bus.CallbackCount("evt"))
	assert.Equal(t, []string{"evt", "other"}, proxy.EventNames())

	assert.Equal(t, 2, proxy.Off(""))
	assert.Equal(t, 0, proxy.Len())
	assert.Equal(t, 1, bus.CallbackCount("evt"))
	assert.Equal(t, 0, bus.CallbackCount("other"))
}

func TestProxy_OffByEvent(t *testing.T) {
	bus := eventbus.New("test")
	proxy := bus.CreateProxy()
	_, err := proxy.On("a", constHandler(1))
	require.NoError(t, err)
	_, err = proxy.On("b", constHandler(2))
	require.NoError(t, err)

	assert.Equal(t, 1, proxy.Off("a"))
	assert.Equal(t, []string{"b"}, proxy.EventNames())
}

func TestProxy_BindingsRestoreSameSubscriptions(t *testing.T) {
	bus := eventbus.New("test")
	proxy := bus.CreateProxy()
	_, err := proxy.On("a", constHandler(1))
	require.NoError(t, err)
	_, err = proxy.On("a", constHandler(2))
	require.NoError(t, err)
	_, err = proxy.On("g", constHandler(3), eventbus.WithGuard())
	require.NoError(t, err)

	bindings := proxy.Bindings()
	require.Len(t, bindings, 3)
	proxy.Off("")

	got, err := bus.TriggerSync(context.Background(), "a")
	require.NoError(t, err)
	assert.Nil(t, got)

	for _, b := range bindings {
		_, err := proxy.Bind(b)
		require.NoError(t, err)
	}

	got, err = bus.TriggerSync(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, []any{1, 2}, got)
	assert.True(t, bus.IsGuarded("g"))
}

func TestProxy_SuspendRecordsWithoutRegistering(t *testing.T) {
	bus := eventbus.New("test")
	proxy := bus.CreateProxy()
	first, err := proxy.On("a", constHandler(1))
	require.NoError(t, err)

	require.True(t, proxy.Suspend())
	assert.False(t, proxy.Suspend(), "second suspend")
	assert.True(t, proxy.Suspended())
	assert.Equal(t, 0, bus.CallbackCount("a"))

	_, err = proxy.On("a", constHandler(2))
	require.NoError(t, err)
	_, err = proxy.On("b", constHandler(3))
	require.NoError(t, err)

	got, err := bus.TriggerSync(context.Background(), "a")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, 0, bus.CallbackCount("b"))
	assert.Equal(t, []string{"a", "b"}, proxy.EventNames())
	assert.Len(t, proxy.Bindings(), 3)

	require.NoError(t, proxy.Resume())
	assert.False(t, proxy.Suspended())
	got, err = bus.TriggerSync(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, []any{1, 2}, got)

	// Handles stay valid across suspend and resume.
	assert.Equal(t, 1, proxy.Off("a", first))
	got, err = bus.TriggerSync(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, 2, got)
}

func TestProxy_OffWhileSuspended(t *testing.T) {
	bus := eventbus.New("test")
	proxy := bus.CreateProxy()
	_, err := proxy.On("a", constHandler(1))
	require.NoError(t, err)
	proxy.Suspend()

	assert.Equal(t, 1, proxy.Off(""))
	require.NoError(t, proxy.Resume())
	assert.Equal(t, 0, bus.CallbackCount("a"))
}

func TestProxy_ResumeDropsGuardConflicts(t *testing.T) {
	bus := eventbus.New("test")
	proxy := bus.CreateProxy()
	_, err := proxy.On("cmd", constHandler("proxied"))
	require.NoError(t, err)
	_, err = proxy.On("other", constHandler("kept"))
	require.NoError(t, err)
	proxy.Suspend()

	_, err = bus.On("cmd", constHandler("owner"), eventbus.WithGuard())
	require.NoError(t, err)

	err = proxy.Resume()
	require.ErrorIs(t, err, eventbus.ErrGuarded)
	assert.Equal(t, []string{"other"}, proxy.EventNames())
	got, err := bus.TriggerSync(context.Background(), "cmd")
	require.NoError(t, err)
	assert.Equal(t, "owner", got)
}

func TestProxy_ResumeWithoutSuspend(t *testing.T) {
	bus := eventbus.New("test")
	proxy := bus.CreateProxy()
	_, err := proxy.On("a", constHandler(1))
	require.NoError(t, err)

	require.NoError(t, proxy.Resume())
	assert.Equal(t, 1, bus.CallbackCount("a"))
}

func TestProxy_Destroy(t *testing.T) {
	bus := eventbus.New("test")
	proxy := bus.CreateProxy()
	_, err := proxy.On("a", constHandler(1))
	require.NoError(t, err)

	proxy.Destroy()
	assert.True(t, proxy.IsDestroyed())
	assert.Equal(t, 0, bus.CallbackCount("a"))

	_, err = proxy.On("a", constHandler(1))
	assert.ErrorIs(t, err, eventbus.ErrProxyDestroyed)
}

func TestSecure_RedirectsAndDestroys(t *testing.T) {
	first := eventbus.New("first")
	second := eventbus.New("second")
	_, err := first.On("who", constHandler("first"))
	require.NoError(t, err)
	_, err = second.On("who", constHandler("second"))
	require.NoError(t, err)

	secure := first.CreateSecure("view")
	assert.Equal(t, "view", secure.Name())

	got, err := secure.TriggerSync(context.Background(), "who")
	require.NoError(t, err)
	assert.Equal(t, "first", got)

	require.NoError(t, secure.SetEventbus(second))
	got, err = secure.TriggerAsync(context.Background(), "who")
	require.NoError(t, err)
	assert.Equal(t, "second", got)

	assert.ErrorIs(t, secure.SetEventbus(nil), eventbus.ErrNilEventbus)

	secure.Destroy()
	assert.True(t, secure.IsDestroyed())
	_, err = secure.TriggerSync(context.Background(), "who")
	assert.ErrorIs(t, err, eventbus.ErrSecureDestroyed)
	assert.ErrorIs(t, secure.Trigger(context.Background(), "who"), eventbus.ErrSecureDestroyed)
}
