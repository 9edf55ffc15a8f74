// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package pluginmgr

import (
	"log/slog"

	"github.com/go-viper/mapstructure/v2"
	"github.com/samber/oops"

	"github.com/holomush/pluginmgr/pkg/eventbus"
)

// DefaultEventPrefix is the command prefix used when none is configured.
const DefaultEventPrefix = "plugins"

// Options are the manager's behavior flags. The NoEvent* flags withdraw the
// matching bus commands; direct method calls are never affected. The Throw*
// flags turn unmatched invocations into errors.
type Options struct {
	NoEventAdd        bool `mapstructure:"noEventAdd" json:"noEventAdd" koanf:"no_event_add"`
	NoEventDestroy    bool `mapstructure:"noEventDestroy" json:"noEventDestroy" koanf:"no_event_destroy"`
	NoEventRemoval    bool `mapstructure:"noEventRemoval" json:"noEventRemoval" koanf:"no_event_removal"`
	NoEventSetEnabled bool `mapstructure:"noEventSetEnabled" json:"noEventSetEnabled" koanf:"no_event_set_enabled"`
	NoEventSetOptions bool `mapstructure:"noEventSetOptions" json:"noEventSetOptions" koanf:"no_event_set_options"`
	ThrowNoMethod     bool `mapstructure:"throwNoMethod" json:"throwNoMethod" koanf:"throw_no_method"`
	ThrowNoPlugin     bool `mapstructure:"throwNoPlugin" json:"throwNoPlugin" koanf:"throw_no_plugin"`
}

// OptionsPatch is a partial update of Options. Nil fields are left unchanged.
type OptionsPatch struct {
	NoEventAdd        *bool `mapstructure:"noEventAdd"`
	NoEventDestroy    *bool `mapstructure:"noEventDestroy"`
	NoEventRemoval    *bool `mapstructure:"noEventRemoval"`
	NoEventSetEnabled *bool `mapstructure:"noEventSetEnabled"`
	NoEventSetOptions *bool `mapstructure:"noEventSetOptions"`
	ThrowNoMethod     *bool `mapstructure:"throwNoMethod"`
	ThrowNoPlugin     *bool `mapstructure:"throwNoPlugin"`
}

// Apply returns o with the non-nil fields of p applied.
func (p OptionsPatch) Apply(o Options) Options {
	set := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}
	set(&o.NoEventAdd, p.NoEventAdd)
	set(&o.NoEventDestroy, p.NoEventDestroy)
	set(&o.NoEventRemoval, p.NoEventRemoval)
	set(&o.NoEventSetEnabled, p.NoEventSetEnabled)
	set(&o.NoEventSetOptions, p.NoEventSetOptions)
	set(&o.ThrowNoMethod, p.ThrowNoMethod)
	set(&o.ThrowNoPlugin, p.ThrowNoPlugin)
	return o
}

// DecodeOptionsPatch decodes a map such as {"throwNoPlugin": true}. Unknown
// keys are rejected.
func DecodeOptionsPatch(v any) (OptionsPatch, error) {
	var patch OptionsPatch
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused:      true,
		WeaklyTypedInput: false,
		Result:           &patch,
	})
	if err != nil {
		return OptionsPatch{}, oops.In("pluginmgr").Wrap(err)
	}
	if err := dec.Decode(v); err != nil {
		return OptionsPatch{}, errInvalidArgument("options", v, "must be a map of known boolean flags: "+err.Error())
	}
	return patch, nil
}

// Option configures a Manager.
type Option func(*Manager)

// WithOptions sets the initial behavior flags.
func WithOptions(o Options) Option {
	return func(m *Manager) {
		m.options = o
	}
}

// WithEventbus attaches bus at construction.
func WithEventbus(bus *eventbus.Eventbus) Option {
	return func(m *Manager) {
		m.bus = bus
	}
}

// WithEventPrefix sets the command prefix. Empty keeps DefaultEventPrefix.
func WithEventPrefix(prefix string) Option {
	return func(m *Manager) {
		if prefix != "" {
			m.prefix = prefix
		}
	}
}

// WithLoader sets the module loader used for configs without an instance.
func WithLoader(l ModuleLoader) Option {
	return func(m *Manager) {
		m.loader = l
	}
}

// WithSupport composes an extension into the manager.
func WithSupport(f SupportFactory) Option {
	return func(m *Manager) {
		m.supportFactories = append(m.supportFactories, f)
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}
