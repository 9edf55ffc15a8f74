// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package config loads the pluginmgr host configuration. Values are layered
// in this order, later layers winning: built-in defaults, the YAML file,
// PLUGINMGR_* environment variables and command-line flags.
package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/holomush/pluginmgr/internal/loader"
	"github.com/holomush/pluginmgr/internal/xdg"
	"github.com/holomush/pluginmgr/pkg/pluginmgr"
)

// EnvPrefix prefixes environment overrides. A double underscore separates
// key levels: PLUGINMGR_LOADER__HOT_RELOAD=true sets loader.hot_reload.
const EnvPrefix = "PLUGINMGR_"

// ErrInvalidConfig is wrapped by every load and validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the host configuration file.
type Config struct {
	Log     LogConfig      `koanf:"log"`
	Metrics MetricsConfig  `koanf:"metrics"`
	Manager ManagerConfig  `koanf:"manager"`
	Loader  LoaderConfig   `koanf:"loader"`
	Plugins []PluginConfig `koanf:"plugins" jsonschema:"description=Plugins registered at startup, in order"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Format string `koanf:"format" jsonschema:"enum=json,enum=text"`
	Level  string `koanf:"level" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
}

// MetricsConfig configures the observability server.
type MetricsConfig struct {
	// Addr is the listen address; empty disables the server.
	Addr string `koanf:"addr" jsonschema:"description=Listen address of /metrics and /healthz; empty disables it"`
}

// ManagerConfig configures the plugin manager.
type ManagerConfig struct {
	Prefix  string            `koanf:"prefix" jsonschema:"description=Command event prefix"`
	Options pluginmgr.Options `koanf:"options"`
}

// LoaderConfig configures module resolution.
type LoaderConfig struct {
	SearchPaths []string      `koanf:"search_paths"`
	HotReload   bool          `koanf:"hot_reload"`
	HTTPTimeout time.Duration `koanf:"http_timeout" jsonschema:"type=string,description=Per-attempt timeout such as 10s"`
	HTTPRetries uint64        `koanf:"http_retries"`
}

// PluginConfig is one plugin registered at startup.
type PluginConfig struct {
	Name    string         `koanf:"name" jsonschema:"required,minLength=1"`
	Target  string         `koanf:"target"`
	Options map[string]any `koanf:"options"`
	Module  map[string]any `koanf:"module" jsonschema:"description=Opaque metadata stored with the plugin"`
}

// Defaults returns the built-in configuration.
func Defaults() map[string]any {
	return map[string]any{
		"log.format":          "json",
		"log.level":           "info",
		"manager.prefix":      pluginmgr.DefaultEventPrefix,
		"loader.http_timeout": loader.DefaultHTTPTimeout.String(),
		"loader.http_retries": loader.DefaultHTTPRetries,
		"loader.search_paths": []string{xdg.PluginsDir()},
	}
}

// DefaultPath returns the XDG configuration file when it exists, else "".
func DefaultPath() string {
	path := xdg.ConfigFile()
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"log-format":   "log.format",
	"log-level":    "log.level",
	"metrics-addr": "metrics.addr",
	"prefix":       "manager.prefix",
	"search-path":  "loader.search_paths",
	"hot-reload":   "loader.hot_reload",
}

// RegisterFlags adds the flags Load understands to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("log-format", "json", "log format (json or text)")
	fs.String("log-level", "info", "log level (debug, info, warn, error)")
	fs.String("metrics-addr", "", "observability listen address, empty to disable")
	fs.String("prefix", pluginmgr.DefaultEventPrefix, "command event prefix")
	fs.StringSlice("search-path", nil, "directories searched for bare plugin names")
	fs.Bool("hot-reload", false, "reload file-backed Lua plugins when they change")
}

// Load builds the configuration. path may be empty; flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, loadErr("defaults", err)
	}
	if path != "" {
		if err := ValidateFile(path); err != nil {
			return nil, err
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, loadErr("file", err)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, loadErr("env", err)
	}
	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, loadErr("flags", err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, loadErr("decode", err)
	}
	return &cfg, nil
}

// envKey turns PLUGINMGR_LOADER__HOT_RELOAD into loader.hot_reload.
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

func loadErr(layer string, err error) error {
	return oops.Code("CONFIG_LOAD_FAILED").In("config").With("layer", layer).
		Wrap(errors.Join(ErrInvalidConfig, err))
}

// LoaderOptions converts the loader section.
func (c *Config) LoaderOptions() loader.Options {
	return loader.Options{
		SearchPaths: c.Loader.SearchPaths,
		HotReload:   c.Loader.HotReload,
		HTTPTimeout: c.Loader.HTTPTimeout,
		HTTPRetries: c.Loader.HTTPRetries,
	}
}

// ManagerOptions converts the manager section.
func (c *Config) ManagerOptions() []pluginmgr.Option {
	return []pluginmgr.Option{
		pluginmgr.WithEventPrefix(c.Manager.Prefix),
		pluginmgr.WithOptions(c.Manager.Options),
	}
}

// Request returns p as a registration request.
func (p PluginConfig) Request() pluginmgr.Config {
	return pluginmgr.Config{Name: p.Name, Target: p.Target, Options: p.Options}
}
