// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package pluginsdk

import (
	"encoding/json"
	"math"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/holomush/pluginmgr/pkg/plugin"
)

// Events cross the wire as objects tagged with kindField so the plugin side
// can hand its hooks the same types an in-process plugin receives.
const kindField = "$pluginmgr"

const (
	kindEvent           = "event"
	kindEventbusChanged = "eventbus_changed"
	kindInvokeEvent     = "invoke_event"
)

func encodeArg(arg any) (*structpb.Value, error) {
	switch ev := arg.(type) {
	case *plugin.Event:
		return toValue(map[string]any{
			kindField:     kindEvent,
			"plugin_name": ev.PluginName,
			"options":     ev.PluginOptions,
			"state":       ev.State,
			"reloaded":    ev.Reloaded,
		})
	case *plugin.EventbusChangedEvent:
		return toValue(map[string]any{
			kindField:     kindEventbusChanged,
			"plugin_name": ev.PluginName,
			"options":     ev.PluginOptions,
			"old_prefix":  ev.OldEventPrefix,
			"new_prefix":  ev.NewEventPrefix,
		})
	case *plugin.InvokeEvent:
		return toValue(map[string]any{
			kindField:     kindInvokeEvent,
			"plugin_name": ev.PluginName,
			"options":     ev.PluginOptions,
			"data":        ev.Data,
		})
	default:
		return toValue(arg)
	}
}

func decodeArg(v *structpb.Value) any {
	val := fromValue(v)
	m, ok := val.(map[string]any)
	if !ok {
		return val
	}
	name, _ := m["plugin_name"].(string)
	options, _ := m["options"].(map[string]any)

	switch m[kindField] {
	case kindEvent:
		reloaded, _ := m["reloaded"].(bool)
		return &plugin.Event{PluginName: name, PluginOptions: options, State: m["state"], Reloaded: reloaded}
	case kindEventbusChanged:
		oldPrefix, _ := m["old_prefix"].(string)
		newPrefix, _ := m["new_prefix"].(string)
		return &plugin.EventbusChangedEvent{
			PluginName:     name,
			PluginOptions:  options,
			OldEventPrefix: oldPrefix,
			NewEventPrefix: newPrefix,
		}
	case kindInvokeEvent:
		data, _ := m["data"].(map[string]any)
		if data == nil {
			data = map[string]any{}
		}
		return &plugin.InvokeEvent{PluginName: name, PluginOptions: options, Data: data}
	default:
		return val
	}
}

// encodeUpdate captures what a hook may hand back through its event.
func encodeUpdate(arg any) (*structpb.Value, error) {
	switch ev := arg.(type) {
	case *plugin.Event:
		return toValue(map[string]any{"state": ev.State})
	case *plugin.InvokeEvent:
		return toValue(map[string]any{"data": ev.Data})
	default:
		return structpb.NewNullValue(), nil
	}
}

func applyUpdate(arg any, update *structpb.Value) {
	fields, ok := fromValue(update).(map[string]any)
	if !ok {
		return
	}
	switch ev := arg.(type) {
	case *plugin.Event:
		ev.State = fields["state"]
	case *plugin.InvokeEvent:
		data, _ := fields["data"].(map[string]any)
		ev.ApplyData(data)
	}
}

// toValue converts v to a protobuf value. Values structpb does not know,
// such as structs or typed slices, go through their JSON form.
func toValue(v any) (*structpb.Value, error) {
	if out, err := structpb.NewValue(v); err == nil {
		return out, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return structpb.NewValue(generic)
}

// fromValue converts a protobuf value back to Go. Integral numbers become
// int, matching what in-process plugins produce.
func fromValue(v *structpb.Value) any {
	return normalize(v.AsInterface())
}

func normalize(v any) any {
	switch val := v.(type) {
	case float64:
		if val == math.Trunc(val) && math.Abs(val) <= 1<<53 {
			return int(val)
		}
		return val
	case map[string]any:
		for k, item := range val {
			val[k] = normalize(item)
		}
		return val
	case []any:
		for i, item := range val {
			val[i] = normalize(item)
		}
		return val
	default:
		return v
	}
}
