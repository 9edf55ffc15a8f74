// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"fmt"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/pluginmgr/internal/config"
	"github.com/holomush/pluginmgr/internal/loader/manifest"
)

// schemas maps schema names to their generators.
var schemas = map[string]func() ([]byte, error){
	"config":   config.GenerateSchema,
	"manifest": manifest.GenerateSchema,
}

// NewSchemaCmd creates the schema subcommand.
func NewSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "schema [config|manifest]",
		Short:     "Print the JSON schema of the configuration file or plugin.yaml",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"config", "manifest"},
		RunE: func(cmd *cobra.Command, args []string) error {
			name := "config"
			if len(args) == 1 {
				name = args[0]
			}
			gen, ok := schemas[name]
			if !ok {
				return oops.Code("INVALID_ARGUMENT").In("cli").With("schema", name).Errorf("unknown schema %q", name)
			}
			data, err := gen()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		},
	}
}
