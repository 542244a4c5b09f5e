// Package metrics exposes Prometheus instrumentation for quota, billing and
// advertisement lifecycle events.
package metrics

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const maxLabelLen = 64

func sanitizeLabel(s string) string {
	if s == "" {
		return "unknown"
	}
	s = strings.ReplaceAll(s, " ", "_")
	if len(s) > maxLabelLen {
		s = s[:maxLabelLen]
	}
	return s
}

// Metrics holds every collector of the service.
type Metrics struct {
	registry *prometheus.Registry

	reconciliations *prometheus.CounterVec
	toolsChanged    *prometheus.CounterVec
	sweepRuns       *prometheus.CounterVec
	sweepItems      *prometheus.CounterVec
	sweepDuration   *prometheus.HistogramVec
	webhookEvents   *prometheus.CounterVec
	adTransitions   *prometheus.CounterVec
	selections      *prometheus.CounterVec
}

var (
	instance *Metrics
	once     sync.Once
)

// Get returns the singleton metrics instance.
func Get() *Metrics {
	once.Do(func() {
		instance = New()
	})
	return instance
}

// New builds a Metrics on its own registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		reconciliations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "toolfox",
			Subsystem: "quota",
			Name:      "reconciliations_total",
			Help:      "Quota reconciliations by resulting action and force flag",
		}, []string{"action", "force"}),
		toolsChanged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "toolfox",
			Subsystem: "quota",
			Name:      "tools_changed_total",
			Help:      "Featured flag changes written by the reconciler",
		}, []string{"direction"}),
		sweepRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "toolfox",
			Subsystem: "sweep",
			Name:      "runs_total",
			Help:      "Expiry sweep runs by sweep and outcome",
		}, []string{"sweep", "outcome"}),
		sweepItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "toolfox",
			Subsystem: "sweep",
			Name:      "items_total",
			Help:      "Items handled by expiry sweeps by result type",
		}, []string{"sweep", "type"}),
		sweepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "toolfox",
			Subsystem: "sweep",
			Name:      "duration_seconds",
			Help:      "Expiry sweep duration",
			Buckets:   prometheus.DefBuckets,
		}, []string{"sweep"}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "toolfox",
			Subsystem: "webhook",
			Name:      "events_total",
			Help:      "Payment webhook events by type and result",
		}, []string{"type", "result"}),
		adTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "toolfox",
			Subsystem: "advertising",
			Name:      "transitions_total",
			Help:      "Advertisement status transitions",
		}, []string{"to"}),
		selections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "toolfox",
			Subsystem: "selection",
			Name:      "saves_total",
			Help:      "Manual tool selection attempts by result",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.reconciliations,
		m.toolsChanged,
		m.sweepRuns,
		m.sweepItems,
		m.sweepDuration,
		m.webhookEvents,
		m.adTransitions,
		m.selections,
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RecordReconciliation(action string, force bool, activated, deactivated int) {
	f := "false"
	if force {
		f = "true"
	}
	m.reconciliations.WithLabelValues(sanitizeLabel(action), f).Inc()
	if activated > 0 {
		m.toolsChanged.WithLabelValues("activated").Add(float64(activated))
	}
	if deactivated > 0 {
		m.toolsChanged.WithLabelValues("deactivated").Add(float64(deactivated))
	}
}

func (m *Metrics) RecordSweep(sweep, outcome string, took time.Duration) {
	m.sweepRuns.WithLabelValues(sanitizeLabel(sweep), sanitizeLabel(outcome)).Inc()
	m.sweepDuration.WithLabelValues(sanitizeLabel(sweep)).Observe(took.Seconds())
}

func (m *Metrics) RecordSweepItem(sweep, itemType string) {
	m.sweepItems.WithLabelValues(sanitizeLabel(sweep), sanitizeLabel(itemType)).Inc()
}

func (m *Metrics) RecordWebhook(eventType, result string) {
	m.webhookEvents.WithLabelValues(sanitizeLabel(eventType), sanitizeLabel(result)).Inc()
}

func (m *Metrics) RecordAdvertisementTransition(to string) {
	m.adTransitions.WithLabelValues(sanitizeLabel(to)).Inc()
}

func (m *Metrics) RecordSelection(result string) {
	m.selections.WithLabelValues(sanitizeLabel(result)).Inc()
}
