// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/samber/oops"

	"github.com/holomush/pluginmgr/internal/config"
	"github.com/holomush/pluginmgr/internal/loader"
	"github.com/holomush/pluginmgr/internal/loader/binary"
	"github.com/holomush/pluginmgr/internal/logging"
	"github.com/holomush/pluginmgr/pkg/errutil"
	"github.com/holomush/pluginmgr/pkg/eventbus"
	"github.com/holomush/pluginmgr/pkg/pluginmgr"
)

// host is a manager on its own bus with the module loader attached.
type host struct {
	cfg    *config.Config
	bus    *eventbus.Eventbus
	mgr    *pluginmgr.Manager
	logger *slog.Logger
	ready  atomic.Bool
}

// Ready reports whether the startup plugins have been registered.
func (h *host) Ready() bool { return h.ready.Load() }

// Plugins lists the registered plugins for the status endpoints.
func (h *host) Plugins() ([]pluginmgr.EnabledState, error) {
	return h.mgr.GetEnabledAll()
}

func newHost(cfg *config.Config, logger *slog.Logger) *host {
	launcher := binary.NewLauncherWithFactory(&binary.DefaultClientFactory{
		Logger: logging.HCLogger("plugin", logOptions(cfg), nil),
	})
	ld := loader.New(
		loader.WithOptions(cfg.LoaderOptions()),
		loader.WithLauncher(launcher),
	)

	bus := eventbus.New("pluginmgr")
	opts := append(cfg.ManagerOptions(),
		pluginmgr.WithEventbus(bus),
		pluginmgr.WithLoader(ld),
		pluginmgr.WithLogger(logger),
	)
	return &host{
		cfg:    cfg,
		bus:    bus,
		mgr:    pluginmgr.New(opts...),
		logger: logger,
	}
}

// start registers the configured plugins followed by extra. Every plugin is
// attempted; the failures are joined. record, when set, sees each result.
func (h *host) start(ctx context.Context, extra []pluginmgr.Config, record func(error)) error {
	type request struct {
		cfg    pluginmgr.Config
		module map[string]any
	}
	requests := make([]request, 0, len(h.cfg.Plugins)+len(extra))
	for _, p := range h.cfg.Plugins {
		requests = append(requests, request{cfg: p.Request(), module: p.Module})
	}
	for _, c := range extra {
		requests = append(requests, request{cfg: c})
	}

	var errs []error
	for _, r := range requests {
		_, err := h.mgr.Add(ctx, r.cfg, r.module)
		if record != nil {
			record(err)
		}
		if err != nil {
			errutil.LogError(h.logger, "plugin registration failed", err, "plugin", r.cfg.Name)
			errs = append(errs, err)
			continue
		}
		h.logger.Debug("plugin registered", "plugin", r.cfg.Name, "target", r.cfg.ResolvedTarget())
	}
	return errors.Join(errs...)
}

// close destroys the manager, unloading every plugin.
func (h *host) close(ctx context.Context) {
	if err := h.mgr.Destroy(ctx); err != nil && !errors.Is(err, pluginmgr.ErrDestroyed) {
		errutil.LogWarn(h.logger, "destroy failed", err)
	}
}

// parseLoadFlags turns --load values of the form name=target or target into
// registration requests.
func parseLoadFlags(values []string) ([]pluginmgr.Config, error) {
	out := make([]pluginmgr.Config, 0, len(values))
	for _, v := range values {
		name, target, found := strings.Cut(v, "=")
		if !found {
			target = v
			name = v
		}
		if name == "" || target == "" {
			return nil, oops.Code("INVALID_ARGUMENT").In("cli").With("load", v).
				Errorf("--load expects name=target or target")
		}
		out = append(out, pluginmgr.Config{Name: name, Target: target})
	}
	return out, nil
}
