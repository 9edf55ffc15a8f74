// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/holomush/pluginmgr/internal/config"
	"github.com/holomush/pluginmgr/internal/logging"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the pluginmgr CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pluginmgr",
		Short: "pluginmgr - plugin lifecycle host",
		Long: `pluginmgr registers Lua, binary and compiled-in plugins on an event bus,
manages their lifecycle and invokes their methods.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default $XDG_CONFIG_HOME/pluginmgr/config.yaml)")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewInvokeCmd())
	cmd.AddCommand(NewListCmd())
	cmd.AddCommand(NewValidateCmd())
	cmd.AddCommand(NewSchemaCmd())

	return cmd
}

// loadConfig reads the configuration for cmd and installs the default logger.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	path := configFile
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path, cmd.Flags())
	if err != nil {
		return nil, nil, err
	}
	logger := logging.Setup("pluginmgr", version, logOptions(cfg), cmd.ErrOrStderr())
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func logOptions(cfg *config.Config) logging.Options {
	return logging.Options{Format: cfg.Log.Format, Level: cfg.Log.Level}
}
