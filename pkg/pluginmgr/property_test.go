// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package pluginmgr_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/holomush/pluginmgr/pkg/eventbus"
	"github.com/holomush/pluginmgr/pkg/pluginmgr"
)

// TestProperty_RegistryNamesStayUnique adds and removes random names and checks
// the registry against a model: names are unique and keep insertion order.
func TestProperty_RegistryNamesStayUnique(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		m := pluginmgr.New()
		ctx := context.Background()
		model := []string{}

		ops := rapid.SliceOfN(rapid.StringMatching(`[+-][a-d]`), 1, 30).Draw(rt, "ops")
		for _, op := range ops {
			name := op[1:]
			idx := indexOf(model, name)
			switch op[0] {
			case '+':
				_, err := m.Add(ctx, pluginmgr.Config{Name: name, Instance: constPlugin(name)}, nil)
				if idx >= 0 {
					require.ErrorIs(rt, err, pluginmgr.ErrPluginExists)
				} else {
					require.NoError(rt, err)
					model = append(model, name)
				}
			case '-':
				results, err := m.Remove(ctx, name)
				require.NoError(rt, err)
				if idx >= 0 {
					require.Len(rt, results, 1)
					model = append(model[:idx], model[idx+1:]...)
				} else {
					require.Empty(rt, results)
				}
			}
		}

		names, err := m.GetPluginNames(pluginmgr.FilterAll)
		require.NoError(rt, err)
		assert.Equal(rt, model, names)
	})
}

// TestProperty_InvokeSyncCollapse checks the result shape rule for any mix of
// nil and non-nil plugin results.
func TestProperty_InvokeSyncCollapse(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		values := rapid.SliceOfN(rapid.OneOf(rapid.Just[any](nil), rapid.Map(rapid.Int(), func(i int) any { return i })), 0, 6).Draw(rt, "values")

		m := pluginmgr.New()
		ctx := context.Background()
		var want []any
		for i, v := range values {
			_, err := m.Add(ctx, pluginmgr.Config{Name: string(rune('a' + i)), Instance: constPlugin(v)}, nil)
			require.NoError(rt, err)
			if v != nil {
				want = append(want, v)
			}
		}

		got, err := m.InvokeSync(ctx, "value", nil)
		require.NoError(rt, err)
		assert.Equal(rt, eventbus.Collapse(want), got)

		switch len(want) {
		case 0:
			assert.Nil(rt, got)
		case 1:
			assert.Equal(rt, want[0], got)
		default:
			assert.Equal(rt, want, got)
		}
	})
}

// TestProperty_EventCopyNeverLeaks checks that plugins mutating the event
// payload never reach the caller's copyProps.
func TestProperty_EventCopyNeverLeaks(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(0, 5).Draw(rt, "plugins")
		start := rapid.IntRange(-100, 100).Draw(rt, "start")

		m := pluginmgr.New()
		ctx := context.Background()
		for i := range n {
			_, err := m.Add(ctx, pluginmgr.Config{Name: string(rune('a' + i)), Instance: counterPlugin()}, nil)
			require.NoError(rt, err)
		}

		copyProps := map[string]any{"result": map[string]any{"count": start}}
		payload, err := m.InvokeSyncEvent(ctx, "count", copyProps, nil)
		require.NoError(rt, err)

		assert.Equal(rt, start, copyProps["result"].(map[string]any)["count"])
		assert.Equal(rt, start+n, payload["result"].(map[string]any)["count"])
		assert.Equal(rt, n, payload[pluginmgr.MetaInvokeCount])
	})
}

// TestProperty_EnableToggleRoundTrip checks that any sequence of enable and
// disable calls leaves every subscription reachable exactly when enabled.
func TestProperty_EnableToggleRoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		bus := eventbus.New("test")
		m := pluginmgr.New(pluginmgr.WithEventbus(bus))
		ctx := context.Background()
		_, err := m.Add(ctx, pluginmgr.Config{Name: "p", Instance: &lifecyclePlugin{subscribe: []string{"a:ping", "b:ping"}}}, nil)
		require.NoError(rt, err)

		toggles := rapid.SliceOf(rapid.Bool()).Draw(rt, "toggles")
		enabled := true
		for _, on := range toggles {
			require.NoError(rt, m.SetEnabled(ctx, on, "p"))
			enabled = on
		}

		want := 0
		if enabled {
			want = 1
		}
		assert.Equal(rt, want, bus.CallbackCount("a:ping"))
		assert.Equal(rt, want, bus.CallbackCount("b:ping"))

		events, err := m.GetPluginEvents("p")
		require.NoError(rt, err)
		assert.Equal(rt, []string{"a:ping", "b:ping"}, events)

		res, err := bus.TriggerSync(ctx, "a:ping")
		require.NoError(rt, err)
		if enabled {
			assert.Equal(rt, "p", res)
		} else {
			assert.Nil(rt, res)
		}
	})
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}
