// Package metrics exposes recording lifecycle counters for Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome label values.
const (
	OutcomeSuccess   = "success"
	OutcomeFailure   = "failure"
	OutcomeNoop      = "noop"
	OutcomeRetrying  = "retrying"
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
)

// Finalization sources.
const (
	SourceStop    = "stop"
	SourceWebhook = "webhook"
	SourceWorker  = "worker"
)

// Metrics holds the coordinator's collectors on a private registry.
type Metrics struct {
	registry      *prometheus.Registry
	captureStarts *prometheus.CounterVec
	finalizations *prometheus.CounterVec
	webhookEvents *prometheus.CounterVec
	registrations *prometheus.CounterVec
}

// New creates and registers the collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		captureStarts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "capture_starts_total",
			Help: "Capture start attempts by outcome.",
		}, []string{"outcome"}),
		finalizations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recording_finalizations_total",
			Help: "Terminal registry writes by source and outcome.",
		}, []string{"source", "outcome"}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Verified provider callbacks by event.",
		}, []string{"event"}),
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recording_registrations_total",
			Help: "Recording row inserts by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(
		m.captureStarts,
		m.finalizations,
		m.webhookEvents,
		m.registrations,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// CaptureStart counts a capture start.
func (m *Metrics) CaptureStart(outcome string) {
	if m == nil {
		return
	}
	m.captureStarts.WithLabelValues(outcome).Inc()
}

// Finalization counts a terminal write attempt.
func (m *Metrics) Finalization(source, outcome string) {
	if m == nil {
		return
	}
	m.finalizations.WithLabelValues(source, outcome).Inc()
}

// WebhookEvent counts a verified callback.
func (m *Metrics) WebhookEvent(event string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(event).Inc()
}

// Registration counts a recording row insert.
func (m *Metrics) Registration(outcome string) {
	if m == nil {
		return
	}
	m.registrations.WithLabelValues(outcome).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
