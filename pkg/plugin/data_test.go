// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package plugin_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/holomush/pluginmgr/pkg/plugin"
)

func TestSyncData_KeepsNestedIdentity(t *testing.T) {
	nested := map[string]any{"count": 1, "gone": true}
	dst := map[string]any{"nested": nested, "drop": 1}

	plugin.SyncData(dst, map[string]any{
		"nested": map[string]any{"count": 2},
		"added":  "yes",
	})

	assert.Equal(t, map[string]any{
		"nested": map[string]any{"count": 2},
		"added":  "yes",
	}, dst)
	assert.Equal(t, map[string]any{"count": 2}, nested)
}

func TestSyncData_ReplacesTypeChanges(t *testing.T) {
	dst := map[string]any{"v": map[string]any{"a": 1}}
	plugin.SyncData(dst, map[string]any{"v": "flat"})
	assert.Equal(t, map[string]any{"v": "flat"}, dst)
}

func TestInvokeEvent_ApplyData(t *testing.T) {
	ev := &plugin.InvokeEvent{}
	ev.ApplyData(nil)
	assert.Equal(t, map[string]any{}, ev.Data)

	shared := map[string]any{"n": 1}
	ev = &plugin.InvokeEvent{Data: map[string]any{"shared": shared}}
	ev.ApplyData(map[string]any{"shared": map[string]any{"n": 2}})
	assert.Equal(t, 2, shared["n"])
}
