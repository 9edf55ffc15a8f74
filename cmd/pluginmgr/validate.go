// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/pluginmgr/internal/config"
	"github.com/holomush/pluginmgr/internal/loader/manifest"
)

// NewValidateCmd creates the validate subcommand.
func NewValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [FILE...]",
		Short: "Validate configuration files and plugin manifests",
		Long: `Validate each FILE against its JSON schema. Files named plugin.yaml are
checked as plugin manifests, everything else as host configuration. With no
FILE the --config file is validated.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, args)
		},
	}
}

func runValidate(cmd *cobra.Command, files []string) error {
	if len(files) == 0 {
		if configFile == "" {
			return oops.Code("INVALID_ARGUMENT").In("cli").Errorf("no file to validate; pass FILE or --config")
		}
		files = []string{configFile}
	}

	var errs []error
	for _, f := range files {
		if err := validateFile(f); err != nil {
			cmd.PrintErrf("%s: %v\n", f, err)
			errs = append(errs, err)
			continue
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", f)
	}
	return errors.Join(errs...)
}

func validateFile(path string) error {
	if filepath.Base(path) != "plugin.yaml" {
		return config.ValidateFile(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return oops.In("cli").With("path", path).Wrap(err)
	}
	if err := manifest.ValidateSchema(data); err != nil {
		return err
	}
	_, err = manifest.Parse(data)
	return err
}
