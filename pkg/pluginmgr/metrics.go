// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package pluginmgr

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("pluginmgr")

// Status label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// PluginsLoaded is the number of registered plugins.
// Use RegisterMetrics to register this with a Prometheus registry.
var PluginsLoaded = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "pluginmgr_plugins",
		Help: "Number of registered plugins",
	},
)

// LifecycleOperations counts add, remove, reload and set-enabled operations.
var LifecycleOperations = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "pluginmgr_lifecycle_total",
		Help: "Total number of plugin lifecycle operations",
	},
	[]string{"operation", "status"},
)

// Invocations counts invocation calls per strategy.
var Invocations = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "pluginmgr_invocations_total",
		Help: "Total number of plugin method invocations",
	},
	[]string{"strategy", "status"},
)

// HookDuration observes lifecycle hook latency.
var HookDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "pluginmgr_hook_duration_seconds",
		Help:    "Plugin lifecycle hook duration in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"hook"},
)

// RegisterMetrics registers the manager metrics with reg.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(PluginsLoaded)
	reg.MustRegister(LifecycleOperations)
	reg.MustRegister(Invocations)
	reg.MustRegister(HookDuration)
}

func status(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusSuccess
}

func recordLifecycle(operation string, err error) {
	LifecycleOperations.WithLabelValues(operation, status(err)).Inc()
}

func recordInvocation(strategy string, err error) {
	Invocations.WithLabelValues(strategy, status(err)).Inc()
}

func recordHook(hook string, d time.Duration) {
	HookDuration.WithLabelValues(hook).Observe(d.Seconds())
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
