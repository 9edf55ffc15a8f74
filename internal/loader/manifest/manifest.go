// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package manifest parses plugin.yaml files describing directory and remote
// plugins.
package manifest

import (
	"errors"
	"regexp"
	"runtime"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

// FileName is the manifest file looked up in plugin directories.
const FileName = "plugin.yaml"

// HostAPIVersion is matched against a manifest's Requires constraint.
const HostAPIVersion = "1.0.0"

// Type identifies the plugin runtime.
type Type string

// Plugin types supported by the loader.
const (
	TypeLua    Type = "lua"
	TypeBinary Type = "binary"
)

// ErrInvalidManifest is wrapped by every parse and validation failure.
var ErrInvalidManifest = errors.New("invalid manifest")

// Manifest represents a plugin.yaml file.
type Manifest struct {
	Name         string         `yaml:"name" json:"name" jsonschema:"pattern=^[a-z]([a-z0-9-]*[a-z0-9])?$,maxLength=64"`
	Version      string         `yaml:"version" json:"version" jsonschema:"description=Strict semantic version"`
	Description  string         `yaml:"description,omitempty" json:"description,omitempty"`
	Type         Type           `yaml:"type" json:"type" jsonschema:"enum=lua,enum=binary"`
	Requires     string         `yaml:"requires,omitempty" json:"requires,omitempty" jsonschema:"description=Semver constraint on the host plugin API"`
	Options      map[string]any `yaml:"options,omitempty" json:"options,omitempty" jsonschema:"description=Default plugin options"`
	LuaPlugin    *LuaConfig     `yaml:"lua-plugin,omitempty" json:"lua-plugin,omitempty"`
	BinaryPlugin *BinaryConfig  `yaml:"binary-plugin,omitempty" json:"binary-plugin,omitempty"`
}

// LuaConfig holds Lua-specific configuration.
type LuaConfig struct {
	Entry string `yaml:"entry" json:"entry"`
}

// BinaryConfig holds binary plugin configuration.
type BinaryConfig struct {
	// Executable may contain ${os} and ${arch}.
	Executable string `yaml:"executable" json:"executable"`
}

const maxNameLength = 64

var namePattern = regexp.MustCompile(`^[a-z]([a-z0-9-]*[a-z0-9])?$`)

// Parse parses and validates a plugin.yaml document.
func Parse(data []byte) (*Manifest, error) {
	if len(data) == 0 {
		return nil, invalid("document", "manifest data is empty")
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, oops.Code("INVALID_MANIFEST").In("manifest").
			Hint("plugin.yaml is not valid YAML").
			Wrap(errors.Join(ErrInvalidManifest, err))
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks manifest constraints.
func (m *Manifest) Validate() error {
	if m.Name == "" || !namePattern.MatchString(m.Name) {
		return invalid("name", "name %q must start with a-z, contain only a-z, 0-9 and hyphens, and not end with a hyphen", m.Name)
	}
	if len(m.Name) > maxNameLength {
		return invalid("name", "name must be %d characters or less, got %d", maxNameLength, len(m.Name))
	}

	if m.Version == "" {
		return invalid("version", "version is required")
	}
	if _, err := semver.StrictNewVersion(m.Version); err != nil {
		return invalid("version", "version %q is not a strict semantic version: %v", m.Version, err)
	}

	if m.Requires != "" {
		constraint, err := semver.NewConstraint(m.Requires)
		if err != nil {
			return invalid("requires", "requires %q is not a version constraint: %v", m.Requires, err)
		}
		if !constraint.Check(semver.MustParse(HostAPIVersion)) {
			return invalid("requires", "plugin requires host API %s, have %s", m.Requires, HostAPIVersion)
		}
	}

	switch m.Type {
	case TypeLua:
		if m.LuaPlugin == nil || m.LuaPlugin.Entry == "" {
			return invalid("lua-plugin", "lua-plugin.entry is required when type is lua")
		}
	case TypeBinary:
		if m.BinaryPlugin == nil || m.BinaryPlugin.Executable == "" {
			return invalid("binary-plugin", "binary-plugin.executable is required when type is binary")
		}
	default:
		return invalid("type", "type must be 'lua' or 'binary', got %q", m.Type)
	}
	return nil
}

// Entry returns the file the manifest points at, relative to its directory.
// Binary executables have ${os} and ${arch} expanded for the running host.
func (m *Manifest) Entry() string {
	if m.Type == TypeBinary {
		return strings.NewReplacer("${os}", runtime.GOOS, "${arch}", runtime.GOARCH).Replace(m.BinaryPlugin.Executable)
	}
	return m.LuaPlugin.Entry
}

func invalid(field, format string, args ...any) error {
	return oops.Code("INVALID_MANIFEST").In("manifest").
		With("field", field).
		Wrap(errors.Join(ErrInvalidManifest, oops.Errorf(format, args...)))
}
