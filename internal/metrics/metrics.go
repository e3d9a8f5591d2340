// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics exposes orckit's internal counters and gauges through
// a Prometheus registry, bridged from an OpenTelemetry meter so the
// rest of the codebase instruments via the otel API while still
// shipping a plain /metrics endpoint for local scraping.
package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/attribute"
	otelprometheus "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Registry holds every metric orckit exports. Process-status and
// restart counters use promauto directly (cheap, label-keyed); build
// duration uses an OTel histogram instrument bridged into the same
// Prometheus registry, demonstrating both instrumentation paths side
// by side the way a growing service accumulates them over time.
type Registry struct {
	reg *prometheus.Registry

	processStatus *prometheus.GaugeVec
	restarts      *prometheus.CounterVec
	preflightFail *prometheus.CounterVec

	meterProvider *sdkmetric.MeterProvider
	buildDuration metric.Float64Histogram
}

// New builds a Registry with its own prometheus.Registry (not the
// global default, so multiple orchestrator instances in one process —
// e.g. in tests — never collide on metric registration).
func New() (*Registry, error) {
	reg := prometheus.NewRegistry()

	exporter, err := otelprometheus.New(otelprometheus.WithRegisterer(reg))
	if err != nil {
		return nil, fmt.Errorf("metrics: failed to create otel prometheus exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := mp.Meter("orckit")

	buildDuration, err := meter.Float64Histogram(
		"orckit_build_duration_seconds",
		metric.WithDescription("duration of deep-mode bundler build cycles"),
	)
	if err != nil {
		return nil, fmt.Errorf("metrics: failed to create build duration histogram: %w", err)
	}

	r := &Registry{
		reg: reg,
		processStatus: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "orckit_process_status",
			Help: "current lifecycle state of a supervised process, one gauge per (process,status) pair set to 1",
		}, []string{"process", "status"}),
		restarts: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "orckit_process_restarts_total",
			Help: "total restarts performed per process",
		}, []string{"process"}),
		preflightFail: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "orckit_preflight_failures_total",
			Help: "total preflight check failures by check name",
		}, []string{"check"}),
		meterProvider: mp,
		buildDuration: buildDuration,
	}
	return r, nil
}

// Registerer exposes the underlying Prometheus registry for wiring an
// HTTP /metrics handler.
func (r *Registry) Registerer() *prometheus.Registry {
	return r.reg
}

var allStates = []string{"pending", "starting", "building", "running", "stopping", "failed", "stopped"}

// SetProcessStatus records name's current status, clearing every other
// status gauge for that process so only one reads 1 at a time.
func (r *Registry) SetProcessStatus(name, status string) {
	for _, s := range allStates {
		if s == status {
			r.processStatus.WithLabelValues(name, s).Set(1)
		} else {
			r.processStatus.WithLabelValues(name, s).Set(0)
		}
	}
}

// IncRestart increments name's restart counter.
func (r *Registry) IncRestart(name string) {
	r.restarts.WithLabelValues(name).Inc()
}

// IncPreflightFailure increments the named preflight check's failure counter.
func (r *Registry) IncPreflightFailure(check string) {
	r.preflightFail.WithLabelValues(check).Inc()
}

// ObserveBuildDuration records a completed build's wall-clock duration.
func (r *Registry) ObserveBuildDuration(ctx context.Context, process string, seconds float64) {
	r.buildDuration.Record(ctx, seconds, metric.WithAttributes(attribute.String("process", process)))
}

// Shutdown flushes and releases the underlying meter provider.
func (r *Registry) Shutdown(ctx context.Context) error {
	return r.meterProvider.Shutdown(ctx)
}
