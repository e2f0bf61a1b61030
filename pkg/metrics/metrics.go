// Package metrics defines the Prometheus instruments for the remediation webhook.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "vm_remediator"

// Metrics holds every instrument. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	ReportsTotal      *prometheus.CounterVec
	ActionsTotal      *prometheus.CounterVec
	RemoteCallsTotal  *prometheus.CounterVec
	LocateDuration    prometheus.Histogram
	RemediateDuration *prometheus.HistogramVec
}

// New registers all instruments on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ReportsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reports_total",
				Help:      "Probe reports received, by result",
			},
			[]string{"result"},
		),
		ActionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "actions_total",
				Help:      "Control actions attempted, by action and outcome",
			},
			[]string{"action", "success"},
		),
		RemoteCallsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "remote_calls_total",
				Help:      "Inventory API calls, by operation and outcome",
			},
			[]string{"op", "outcome"},
		),
		LocateDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "locate_duration_seconds",
				Help:      "Time spent searching zones for the target address",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
		),
		RemediateDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "remediate_duration_seconds",
				Help:      "End-to-end remediation time, by result",
				Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"result"},
		),
	}
}

// Registry exposes the underlying registry for tests and custom exporters.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Report counts one inbound report by result label.
func (m *Metrics) Report(result string) {
	if m == nil {
		return
	}
	m.ReportsTotal.WithLabelValues(result).Inc()
}

// Action counts one attempted control action.
func (m *Metrics) Action(action string, success bool) {
	if m == nil {
		return
	}
	m.ActionsTotal.WithLabelValues(action, boolLabel(success)).Inc()
}

// RemoteCall counts one inventory call.
func (m *Metrics) RemoteCall(op string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.RemoteCallsTotal.WithLabelValues(op, outcome).Inc()
}

// ObserveLocate records one locator pass.
func (m *Metrics) ObserveLocate(d time.Duration) {
	if m == nil {
		return
	}
	m.LocateDuration.Observe(d.Seconds())
}

// ObserveRemediate records one end-to-end run.
func (m *Metrics) ObserveRemediate(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.RemediateDuration.WithLabelValues(result).Observe(d.Seconds())
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
