// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Command gen-schema generates the configuration and plugin manifest JSON
// Schema files.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/holomush/pluginmgr/internal/config"
	"github.com/holomush/pluginmgr/internal/loader/manifest"
)

type schemaFile struct {
	name     string
	generate func() ([]byte, error)
}

var files = []schemaFile{
	{name: "config.schema.json", generate: config.GenerateSchema},
	{name: "plugin.schema.json", generate: manifest.GenerateSchema},
}

func main() {
	outDir := "schemas"
	if len(os.Args) > 1 {
		outDir = os.Args[1]
	}
	if err := generate(outDir); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func generate(outDir string) error {
	if err := os.MkdirAll(outDir, 0o750); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	for _, f := range files {
		schema, err := f.generate()
		if err != nil {
			return fmt.Errorf("generating %s: %w", f.name, err)
		}
		outPath := filepath.Join(outDir, f.name)
		if err := os.WriteFile(outPath, schema, 0o600); err != nil {
			return fmt.Errorf("writing %s: %w", outPath, err)
		}
		fmt.Printf("Generated %s\n", outPath)
	}
	return nil
}
