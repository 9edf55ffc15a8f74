// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/pluginmgr/internal/callexpr"
	"github.com/holomush/pluginmgr/pkg/pluginmgr"
)

// Invocation modes.
const (
	modeFire       = "fire"
	modeSync       = "sync"
	modeAsync      = "async"
	modeSyncEvent  = "sync-event"
	modeAsyncEvent = "async-event"
)

// invokeConfig holds configuration for the invoke command.
type invokeConfig struct {
	plugins []string
	load    []string
	mode    string
}

// NewInvokeCmd creates the invoke subcommand.
func NewInvokeCmd() *cobra.Command {
	cfg := &invokeConfig{}

	cmd := &cobra.Command{
		Use:   "invoke EXPR",
		Short: "Call a method on the registered plugins and print the result as JSON",
		Long: `Register the configured plugins, call the method named by EXPR on every
enabled plugin that has it, print the result as JSON and unload.

EXPR is a call such as greet("bob", 3). In the event modes the first
argument is copied into the event payload and the second, when given, is
passed through by reference:

  pluginmgr invoke --mode sync-event 'collect({"seen": []})'`,
		Example: `  pluginmgr invoke 'greet("bob")' --load greeter=./greeter.lua
  pluginmgr invoke --mode async --plugins a,b 'fetch(1)'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInvoke(cmd, cfg, args[0])
		},
	}

	cmd.Flags().StringSliceVar(&cfg.plugins, "plugins", nil, "restrict the call to these plugins")
	cmd.Flags().StringSliceVar(&cfg.load, "load", nil, "register an extra plugin as name=target or target")
	cmd.Flags().StringVar(&cfg.mode, "mode", modeSync, "fire, sync, async, sync-event or async-event")

	return cmd
}

func runInvoke(cmd *cobra.Command, cfg *invokeConfig, src string) error {
	expr, err := callexpr.Parse(src)
	if err != nil {
		return err
	}
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

	if err := h.start(ctx, extra, nil); err != nil {
		return err
	}

	result, err := invoke(ctx, h.mgr, cfg.mode, expr, cfg.plugins)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return oops.Code("INVALID_RESULT").In("cli").
			Hint("the result contains values without a JSON form").
			Wrap(err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}

func invoke(ctx context.Context, mgr *pluginmgr.Manager, mode string, expr *callexpr.Expr, names []string) (any, error) {
	switch mode {
	case modeFire:
		return nil, mgr.Invoke(ctx, expr.Method, expr.Spread(), names...)
	case modeSync:
		return mgr.InvokeSync(ctx, expr.Method, expr.Spread(), names...)
	case modeAsync:
		return mgr.InvokeAsync(ctx, expr.Method, expr.Spread(), names...)
	case modeSyncEvent, modeAsyncEvent:
		copyProps, passthru, err := eventProps(expr.Args)
		if err != nil {
			return nil, err
		}
		if mode == modeSyncEvent {
			return mgr.InvokeSyncEvent(ctx, expr.Method, copyProps, passthru, names...)
		}
		return mgr.InvokeAsyncEvent(ctx, expr.Method, copyProps, passthru, names...)
	}
	return nil, oops.Code("INVALID_ARGUMENT").In("cli").With("mode", mode).
		Errorf("unknown mode %q", mode)
}

// eventProps reads (copyProps?, passthru?) from the call arguments.
func eventProps(args []any) (copyProps, passthru map[string]any, err error) {
	if len(args) > 2 {
		return nil, nil, oops.Code("INVALID_ARGUMENT").In("cli").With("args", len(args)).
			Errorf("event modes take at most two arguments")
	}
	props := make([]map[string]any, 2)
	for i, a := range args {
		if a == nil {
			continue
		}
		m, ok := a.(map[string]any)
		if !ok {
			return nil, nil, oops.Code("INVALID_ARGUMENT").In("cli").With("arg", i).
				Errorf("event mode arguments must be objects")
		}
		props[i] = m
	}
	return props[0], props[1], nil
}
