// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package plugin

// LoadType tags how an instance was obtained.
type LoadType string

// Load types. The set is closed.
const (
	// LoadInstance is a pre-built instance handed to the manager directly.
	LoadInstance LoadType = "instance"
	// LoadImportModule is a module compiled into the host and resolved by name.
	LoadImportModule LoadType = "import-module"
	// LoadImportPath is a plugin directory described by a plugin.yaml manifest.
	LoadImportPath LoadType = "import-path"
	// LoadImportURL is a remote plugin.yaml manifest.
	LoadImportURL LoadType = "import-url"
	// LoadRequireModule is a script or manifest found by bare name in a search path.
	LoadRequireModule LoadType = "require-module"
	// LoadRequirePath is a script file or plugin executable loaded from a path.
	LoadRequirePath LoadType = "require-path"
	// LoadRequireURL is a remote script.
	LoadRequireURL LoadType = "require-url"
)

// Valid reports whether t is one of the known load types.
func (t LoadType) Valid() bool {
	switch t {
	case LoadInstance, LoadImportModule, LoadImportPath, LoadImportURL,
		LoadRequireModule, LoadRequirePath, LoadRequireURL:
		return true
	default:
		return false
	}
}

// LoadResult is what a module loader produces for a target.
type LoadResult struct {
	Instance any
	Type     LoadType

	// Reloader is optional loader metadata used to hot reload the instance.
	Reloader HotReloader

	// Defaults are option defaults shipped with the module, such as the
	// options of a plugin.yaml. Options given at registration win.
	Defaults map[string]any
}

// Exporter is implemented by loaded modules that expose named values.
type Exporter interface {
	Export(name string) (any, bool)
}

// Resolver picks the plugin instance out of a raw loaded module.
type Resolver func(module any) any

// ResolveExport is the default Resolver: the module's "Plugin" export if
// present, else its "Default" export, else the module itself.
func ResolveExport(module any) any {
	exp, ok := module.(Exporter)
	if !ok {
		return module
	}
	if v, ok := exp.Export("Plugin"); ok && v != nil {
		return v
	}
	if v, ok := exp.Export("Default"); ok && v != nil {
		return v
	}
	return module
}
