// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package pluginmgr

import (
	"regexp"

	"github.com/mitchellh/copystructure"
	"github.com/samber/oops"

	"github.com/holomush/pluginmgr/pkg/plugin"
)

// PluginData is the public snapshot of a registered plugin. Only plain data
// survives in Module and Plugin.Options: values are deep-copied on the way in.
type PluginData struct {
	Manager ManagerData    `json:"manager"`
	Module  map[string]any `json:"module"`
	Plugin  PluginInfo     `json:"plugin"`
}

// ManagerData describes how the manager exposes the plugin on the bus.
type ManagerData struct {
	// EventPrepend is the command prefix in effect.
	EventPrepend string `json:"eventPrepend"`
	// ScopedName is "{prefix}:{name}".
	ScopedName string `json:"scopedName"`
}

// PluginInfo identifies the plugin and how it was loaded.
type PluginInfo struct {
	Name          string          `json:"name"`
	Target        string          `json:"target"`
	TargetEscaped string          `json:"targetEscaped"`
	Type          plugin.LoadType `json:"type"`
	Options       map[string]any  `json:"options"`
}

func newPluginData(prefix, name, target string, typ plugin.LoadType, options, module map[string]any) (*PluginData, error) {
	opts, err := deepCopyMap(options)
	if err != nil {
		return nil, oops.Code(CodeInvalidConfig).In("pluginmgr").With("field", "options").Wrap(err)
	}
	mod, err := deepCopyMap(module)
	if err != nil {
		return nil, oops.Code(CodeInvalidArgument).In("pluginmgr").With("field", "moduleData").Wrap(err)
	}
	if opts == nil {
		opts = map[string]any{}
	}
	if mod == nil {
		mod = map[string]any{}
	}

	return &PluginData{
		Manager: managerData(prefix, name),
		Module:  mod,
		Plugin: PluginInfo{
			Name:          name,
			Target:        target,
			TargetEscaped: regexp.QuoteMeta(target),
			Type:          typ,
			Options:       opts,
		},
	}, nil
}

func managerData(prefix, name string) ManagerData {
	return ManagerData{
		EventPrepend: prefix,
		ScopedName:   prefix + ":" + name,
	}
}

// Clone returns a deep copy of d.
func (d *PluginData) Clone() *PluginData {
	if d == nil {
		return nil
	}
	out := *d
	// Stored maps were produced by deepCopyMap, so copying them again cannot fail.
	out.Module = mustCopyMap(d.Module)
	out.Plugin.Options = mustCopyMap(d.Plugin.Options)
	return &out
}

// withPrefix returns a copy of d bound to a new bus prefix.
func (d *PluginData) withPrefix(prefix string) *PluginData {
	out := *d
	out.Manager = managerData(prefix, d.Plugin.Name)
	return &out
}

func mustCopyMap(m map[string]any) map[string]any {
	out, err := deepCopyMap(m)
	if err != nil {
		panic(err)
	}
	return out
}

func deepCopyMap(m map[string]any) (map[string]any, error) {
	if m == nil {
		return nil, nil
	}
	c, err := copystructure.Copy(m)
	if err != nil {
		return nil, err //nolint:wrapcheck // wrapped by callers
	}
	out, _ := c.(map[string]any) //nolint:errcheck // Copy preserves the type
	return out, nil
}

// mergeOptions overlays options on a copy of defaults. Only top-level keys
// are merged.
func mergeOptions(defaults, options map[string]any) map[string]any {
	if len(defaults) == 0 {
		return options
	}
	out := make(map[string]any, len(defaults)+len(options))
	for k, v := range defaults {
		out[k] = v
	}
	for k, v := range options {
		out[k] = v
	}
	return out
}
