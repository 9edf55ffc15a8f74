// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package plugin

import "sort"

// SyncData makes dst equal to src while keeping the identity of nested maps
// present in both. Out-of-process and script plugins work on a copy of
// InvokeEvent.Data; syncing the copy back lets values the caller passed by
// reference observe the plugin's mutations.
func SyncData(dst, src map[string]any) {
	for k := range dst {
		if _, ok := src[k]; !ok {
			delete(dst, k)
		}
	}
	keys := make([]string, 0, len(src))
	for k := range src {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		next := src[k]
		if cur, ok := dst[k].(map[string]any); ok {
			if nested, ok := next.(map[string]any); ok {
				SyncData(cur, nested)
				continue
			}
		}
		dst[k] = next
	}
}

// ApplyData syncs updated into ev.Data, replacing a nil map outright.
func (ev *InvokeEvent) ApplyData(updated map[string]any) {
	if updated == nil {
		updated = map[string]any{}
	}
	if ev.Data == nil {
		ev.Data = updated
		return
	}
	SyncData(ev.Data, updated)
}
