// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package pluginmgr

import (
	"errors"
	"net/url"

	"github.com/go-viper/mapstructure/v2"
	"github.com/samber/oops"
)

// Config is a plugin registration request.
type Config struct {
	// Name is the unique registry key.
	Name string `mapstructure:"name" json:"name"`

	// Target is the loader target. Defaults to Name.
	Target string `mapstructure:"target" json:"target,omitempty"`

	// Instance is a pre-built plugin registered without the loader.
	Instance any `mapstructure:"instance" json:"-"`

	// Options are handed to the plugin's lifecycle hooks.
	Options map[string]any `mapstructure:"options" json:"options,omitempty"`
}

// ResolvedTarget returns Target, or Name when no target was given.
func (c Config) ResolvedTarget() string {
	if c.Target != "" {
		return c.Target
	}
	return c.Name
}

// IsValidConfig reports whether v is a well-formed registration request: a
// Config, *Config or map with a non-empty string name, an optional string or
// URL target and an optional map of options.
func IsValidConfig(v any) bool {
	return validateConfig(v) == nil
}

// ParseConfig validates v and converts it to a Config. The returned error
// names the offending field.
func ParseConfig(v any) (Config, error) {
	if err := validateConfig(v); err != nil {
		return Config{}, err
	}

	switch c := v.(type) {
	case Config:
		return c, nil
	case *Config:
		return *c, nil
	}

	raw, _ := v.(map[string]any) //nolint:errcheck // shape checked by validateConfig
	fields := make(map[string]any, len(raw))
	for k, val := range raw {
		fields[k] = val
	}
	if u, ok := fields["target"].(*url.URL); ok {
		fields["target"] = u.String()
	}

	var cfg Config
	if err := mapstructure.Decode(fields, &cfg); err != nil {
		return Config{}, oops.Code(CodeInvalidConfig).In("pluginmgr").
			With("value", v).
			Wrap(errors.Join(ErrInvalidConfig, err))
	}
	return cfg, nil
}

func validateConfig(v any) error {
	switch c := v.(type) {
	case nil:
		return errInvalidConfig("config", v, "must not be nil")
	case Config:
		return validateName(c.Name)
	case *Config:
		if c == nil {
			return errInvalidConfig("config", v, "must not be nil")
		}
		return validateName(c.Name)
	case map[string]any:
		name, ok := c["name"].(string)
		if !ok {
			return errInvalidConfig("name", c["name"], "must be a string")
		}
		if err := validateName(name); err != nil {
			return err
		}
		switch t := c["target"].(type) {
		case nil, string, *url.URL:
		default:
			return errInvalidConfig("target", t, "must be a string or URL")
		}
		switch o := c["options"].(type) {
		case nil, map[string]any:
		default:
			return errInvalidConfig("options", o, "must be a map")
		}
		return nil
	default:
		return errInvalidConfig("config", v, "must be a map")
	}
}

func validateName(name string) error {
	if name == "" {
		return errInvalidConfig("name", name, "must not be empty")
	}
	return nil
}
