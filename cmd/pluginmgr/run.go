// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/holomush/pluginmgr/internal/observability"
	"github.com/holomush/pluginmgr/pkg/errutil"
	"github.com/holomush/pluginmgr/pkg/pluginmgr"
)

const shutdownTimeout = 5 * time.Second

// ObservabilityServer is the part of observability.Server run uses.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}

// RunDeps contains injectable dependencies for the run command.
// All fields with nil values will use their default implementations.
type RunDeps struct {
	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, status observability.HostStatus) ObservabilityServer

	// SignalContext returns a context cancelled on shutdown signals.
	// Default: signal.NotifyContext for SIGINT and SIGTERM
	SignalContext func(ctx context.Context) (context.Context, context.CancelFunc)
}

// NewRunCmd creates the run subcommand.
func NewRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Register the configured plugins and serve until interrupted",
		Long: `Register every plugin listed in the configuration, serve metrics and
health checks when metrics.addr is set, and unload all plugins on SIGINT or
SIGTERM. Plugins that fail to register are logged and skipped.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWithDeps(cmd.Context(), cmd, nil)
		},
	}
}

func runWithDeps(ctx context.Context, cmd *cobra.Command, deps *RunDeps) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if deps == nil {
		deps = &RunDeps{}
	}
	if deps.ObservabilityServerFactory == nil {
		deps.ObservabilityServerFactory = func(addr string, status observability.HostStatus) ObservabilityServer {
			return observability.NewServer(addr, status)
		}
	}
	if deps.SignalContext == nil {
		deps.SignalContext = func(ctx context.Context) (context.Context, context.CancelFunc) {
			return signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
		}
	}

	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := deps.SignalContext(ctx)
	defer cancel()

	h := newHost(cfg, logger)

	var obsServer ObservabilityServer
	var record func(error)
	if cfg.Metrics.Addr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Metrics.Addr, h)
		obsErrCh, err := obsServer.Start()
		if err != nil {
			h.close(context.Background())
			return err
		}
		go monitorServerErrors(ctx, cancel, obsErrCh, "observability")
		record = obsServer.Metrics().RecordStartupPlugin
	}

	// Failures are already logged per plugin.
	_ = h.start(ctx, nil, record)

	names, err := h.mgr.GetPluginNames(pluginmgr.FilterAll)
	if err != nil {
		return err
	}
	h.ready.Store(true)
	if obsServer != nil {
		obsServer.Metrics().Ready.Set(1)
	}
	cmd.Printf("pluginmgr started with %d plugin(s)\n", len(names))
	logger.Info("pluginmgr ready", "plugins", names, "prefix", h.mgr.EventPrefix())

	<-ctx.Done()
	logger.Info("shutting down")

	h.ready.Store(false)
	if obsServer != nil {
		obsServer.Metrics().Ready.Set(0)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	h.close(shutdownCtx)
	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			errutil.LogWarn(logger, "error stopping observability server", err)
		}
	}

	logger.Info("shutdown complete")
	return nil
}

// monitorServerErrors cancels ctx when a background server fails.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, name string) {
	select {
	case err, ok := <-errCh:
		if ok && err != nil {
			errutil.LogError(nil, "server failed", err, "server", name)
			cancel()
		}
	case <-ctx.Done():
	}
}
