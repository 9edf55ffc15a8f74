// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/holomush/pluginmgr/pkg/plugin"
	"github.com/holomush/pluginmgr/pkg/pluginmgr"
)

// PluginStatus is one row of the list output.
type PluginStatus struct {
	Name    string          `json:"name"`
	Target  string          `json:"target"`
	Type    plugin.LoadType `json:"type"`
	Enabled bool            `json:"enabled"`
	Methods []string        `json:"methods"`
	Events  []string        `json:"events"`
}

// listConfig holds configuration for the list command.
type listConfig struct {
	jsonOutput bool
	load       []string
}

// NewListCmd creates the list subcommand.
func NewListCmd() *cobra.Command {
	cfg := &listConfig{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Register the configured plugins and list them",
		Long: `Register the configured plugins and show each plugin's load type,
target, methods and the bus events it subscribed to.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runList(cmd, cfg)
		},
	}

	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output as JSON")
	cmd.Flags().StringSliceVar(&cfg.load, "load", nil, "register an extra plugin as name=target or target")

	return cmd
}

func runList(cmd *cobra.Command, cfg *listConfig) error {
	extra, err := parseLoadFlags(cfg.load)
	if err != nil {
		return err
	}
	conf, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	h := newHost(conf, logger)
	defer h.close(context.Background())

	// Failed plugins are logged and left out of the listing.
	_ = h.start(ctx, extra, nil)

	statuses, err := collectStatus(h.mgr)
	if err != nil {
		return err
	}

	if cfg.jsonOutput {
		data, err := json.MarshalIndent(statuses, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal plugins: %w", err)
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return err
	}
	_, err = fmt.Fprint(cmd.OutOrStdout(), formatStatusTable(statuses))
	return err
}

func collectStatus(mgr *pluginmgr.Manager) ([]PluginStatus, error) {
	all, err := mgr.GetPluginDataAll()
	if err != nil {
		return nil, err
	}
	out := make([]PluginStatus, 0, len(all))
	for _, d := range all {
		name := d.Plugin.Name
		enabled, err := mgr.GetEnabled(name)
		if err != nil {
			return nil, err
		}
		methods, err := mgr.GetMethodNames(name)
		if err != nil {
			return nil, err
		}
		events, err := mgr.GetPluginEvents(name)
		if err != nil {
			return nil, err
		}
		out = append(out, PluginStatus{
			Name:    name,
			Target:  d.Plugin.Target,
			Type:    d.Plugin.Type,
			Enabled: enabled,
			Methods: methods,
			Events:  events,
		})
	}
	return out, nil
}

// formatStatusTable formats the plugins as a human-readable table.
func formatStatusTable(statuses []PluginStatus) string {
	var buf strings.Builder
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(w, "NAME\tTYPE\tENABLED\tTARGET\tMETHODS")
	for _, s := range statuses {
		methods := strings.Join(s.Methods, ",")
		if methods == "" {
			methods = "-"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%t\t%s\t%s\n", s.Name, s.Type, s.Enabled, s.Target, methods)
	}

	_ = w.Flush()
	return buf.String()
}
