// Package metrics exposes Prometheus collectors for pipeline runs and bridge
// dispatches. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	pipelineRuns    *prometheus.CounterVec
	stageDuration   *prometheus.HistogramVec
	bridgeDispatch  *prometheus.CounterVec
	bridgeActive    prometheus.Gauge
	bridgeCallbacks *prometheus.CounterVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		pipelineRuns: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "switchyard_pipeline_runs_total",
				Help: "Total number of pipeline runs by route and final status",
			},
			[]string{"route", "status"},
		),
		stageDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "switchyard_pipeline_stage_duration_seconds",
				Help:    "Pipeline stage duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage", "status"},
		),
		bridgeDispatch: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "switchyard_bridge_dispatch_total",
				Help: "Total number of bridge dispatch requests by result",
			},
			[]string{"result"},
		),
		bridgeActive: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "switchyard_bridge_tasks_active",
				Help: "Number of bridge tasks currently executing",
			},
		),
		bridgeCallbacks: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "switchyard_bridge_callbacks_total",
				Help: "Total number of bridge callback deliveries by result",
			},
			[]string{"result"},
		),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) PipelineRun(route, status string) {
	if m == nil {
		return
	}
	m.pipelineRuns.WithLabelValues(route, status).Inc()
}

func (m *Metrics) StageDuration(stage, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage, status).Observe(d.Seconds())
}

func (m *Metrics) BridgeDispatch(result string) {
	if m == nil {
		return
	}
	m.bridgeDispatch.WithLabelValues(result).Inc()
}

func (m *Metrics) BridgeTaskStarted() {
	if m == nil {
		return
	}
	m.bridgeActive.Inc()
}

func (m *Metrics) BridgeTaskFinished() {
	if m == nil {
		return
	}
	m.bridgeActive.Dec()
}

func (m *Metrics) BridgeCallback(result string) {
	if m == nil {
		return
	}
	m.bridgeCallbacks.WithLabelValues(result).Inc()
}
