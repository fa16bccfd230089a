// Package metrics exports dispatch activity as Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mattjoyce/hookd/internal/hooks"
)

// Metrics is a hooks.DispatchObserver that feeds a private registry.
type Metrics struct {
	dispatches      *prometheus.CounterVec
	dispatchLatency *prometheus.HistogramVec
	calloutCalls    *prometheus.CounterVec
	calloutNonzero  *prometheus.CounterVec

	libraries []string
	registry  *prometheus.Registry
}

// New creates the collectors. libraries[i] is the label used for slot i;
// slots beyond the slice are labelled by index.
func New(libraries []string) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		dispatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hookd_dispatch_total",
				Help: "Total number of hook dispatches",
			},
			[]string{"hook"},
		),
		dispatchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hookd_dispatch_duration_seconds",
				Help:    "Time spent running all callouts of a hook",
				Buckets: []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05, .1, .5},
			},
			[]string{"hook"},
		),
		calloutCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hookd_callout_calls_total",
				Help: "Total number of callout invocations",
			},
			[]string{"hook", "library"},
		),
		calloutNonzero: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hookd_callout_nonzero_status_total",
				Help: "Total number of callout invocations that returned a nonzero status",
			},
			[]string{"hook", "library"},
		),
		libraries: libraries,
		registry:  registry,
	}

	registry.MustRegister(
		m.dispatches,
		m.dispatchLatency,
		m.calloutCalls,
		m.calloutNonzero,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// RegisterJournalDropped exports a counter read from fn on every scrape.
func (m *Metrics) RegisterJournalDropped(fn func() uint64) {
	m.registry.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "hookd_journal_dropped_total",
			Help: "Dispatch records dropped because the journal queue was full",
		},
		func() float64 { return float64(fn()) },
	))
}

// ObserveDispatch implements hooks.DispatchObserver.
func (m *Metrics) ObserveDispatch(rec hooks.DispatchRecord) {
	m.dispatches.WithLabelValues(rec.Hook).Inc()
	m.dispatchLatency.WithLabelValues(rec.Hook).Observe(rec.Duration.Seconds())
	for _, c := range rec.Callouts {
		library := m.libraryLabel(c.Library)
		m.calloutCalls.WithLabelValues(rec.Hook, library).Inc()
		if c.Status != 0 {
			m.calloutNonzero.WithLabelValues(rec.Hook, library).Inc()
		}
	}
}

func (m *Metrics) libraryLabel(index int) string {
	if index >= 0 && index < len(m.libraries) {
		return m.libraries[index]
	}
	return strconv.Itoa(index)
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the HTTP handler for /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
