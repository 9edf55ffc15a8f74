// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package observability serves the plugin host's metrics, health checks and
// a plugin status listing on one HTTP listener.
package observability

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/oops"

	"github.com/holomush/pluginmgr/pkg/errutil"
	"github.com/holomush/pluginmgr/pkg/pluginmgr"
)

// ErrAlreadyRunning is returned by Start on a running server.
var ErrAlreadyRunning = errors.New("observability server already running")

// HostStatus is the view of the plugin host the health checks report on.
type HostStatus interface {
	// Ready reports whether startup registration finished.
	Ready() bool
	// Plugins lists the registered plugins and their enabled state.
	Plugins() ([]pluginmgr.EnabledState, error)
}

// Metrics are the host process metrics. The manager's own metrics are
// registered next to them.
type Metrics struct {
	StartupPlugins *prometheus.CounterVec
	Ready          prometheus.Gauge
}

// NewMetrics creates the host metrics and registers them, together with the
// plugin manager metrics, on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		StartupPlugins: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pluginmgr_startup_plugins_total",
				Help: "Plugins registered from configuration at startup by status",
			},
			[]string{"status"},
		),
		Ready: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "pluginmgr_host_ready",
				Help: "1 once startup plugins are registered, 0 while starting or stopping",
			},
		),
	}
	reg.MustRegister(m.StartupPlugins, m.Ready)
	pluginmgr.RegisterMetrics(reg)
	return m
}

// RecordStartupPlugin counts one startup registration.
func (m *Metrics) RecordStartupPlugin(err error) {
	status := pluginmgr.StatusSuccess
	if err != nil {
		status = pluginmgr.StatusError
	}
	m.StartupPlugins.WithLabelValues(status).Inc()
}

// readiness is the body of /healthz/readiness.
type readiness struct {
	Status  string `json:"status"`
	Plugins int    `json:"plugins"`
	Enabled int    `json:"enabled"`
}

// Server exposes /metrics, /healthz/liveness, /healthz/readiness and
// /plugins. A nil HostStatus is always ready with no plugins.
type Server struct {
	addr     string
	status   HostStatus
	registry *prometheus.Registry
	metrics  *Metrics

	running atomic.Bool
	mu      sync.Mutex
	ln      net.Listener
	srv     *http.Server
}

// NewServer creates a server for addr ("host:port"; port 0 picks one) on a
// private registry carrying Go runtime, process, host and manager metrics.
func NewServer(addr string, status HostStatus) *Server {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Server{
		addr:     addr,
		status:   status,
		registry: registry,
		metrics:  NewMetrics(registry),
	}
}

// Metrics returns the host metrics.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Start listens and serves in the background. Serve failures arrive on the
// returned channel, which is closed once the server stops.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.In("observability").With("addr", s.addr).Wrap(ErrAlreadyRunning)
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.Code("LISTEN_FAILED").In("observability").With("addr", s.addr).Wrap(err)
	}
	srv := &http.Server{
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.mu.Lock()
	s.ln, s.srv = ln, srv
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errutil.LogError(nil, "observability server failed", err)
			errCh <- err
		}
	}()

	slog.Info("observability server started", "addr", ln.Addr().String())
	return errCh, nil
}

// Stop shuts the server down. Stopping a stopped server is a no-op.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	s.mu.Lock()
	srv := s.srv
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	if err := srv.Shutdown(ctx); err != nil {
		s.running.Store(true)
		return oops.In("observability").With("addr", s.addr).Wrapf(err, "shutdown")
	}
	slog.Info("observability server stopped")
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.HandleFunc("GET /healthz/liveness", handleLiveness)
	mux.HandleFunc("GET /healthz/readiness", s.handleReadiness)
	mux.HandleFunc("GET /plugins", s.handlePlugins)
	return mux
}

func handleLiveness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

// handleReadiness answers 200 with plugin counts once the host is ready and
// 503 before that or when the registry cannot be read.
func (s *Server) handleReadiness(w http.ResponseWriter, _ *http.Request) {
	if s.status == nil {
		writeJSON(w, http.StatusOK, readiness{Status: "ready"})
		return
	}
	if !s.status.Ready() {
		writeJSON(w, http.StatusServiceUnavailable, readiness{Status: "starting"})
		return
	}
	plugins, err := s.status.Plugins()
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, readiness{Status: "unavailable"})
		return
	}
	body := readiness{Status: "ready", Plugins: len(plugins)}
	for _, p := range plugins {
		if p.Enabled {
			body.Enabled++
		}
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handlePlugins(w http.ResponseWriter, _ *http.Request) {
	plugins := []pluginmgr.EnabledState{}
	if s.status != nil {
		list, err := s.status.Plugins()
		if err != nil {
			errutil.LogWarn(nil, "list plugins for status endpoint", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
			return
		}
		plugins = append(plugins, list...)
	}
	writeJSON(w, http.StatusOK, plugins)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	// The client may have gone away; nothing to do about it.
	_ = json.NewEncoder(w).Encode(v)
}
