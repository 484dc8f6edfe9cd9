// Package metrics holds the Prometheus collectors for list processing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const Namespace = "jcsy"

// Metrics is safe to use through a nil pointer; every method is then a no-op.
type Metrics struct {
	LookupsTotal       *prometheus.CounterVec
	RowsProcessedTotal *prometheus.CounterVec
	ListProcessSeconds prometheus.Histogram

	gatherer prometheus.Gatherer
}

// New registers the collectors on reg, or on a fresh registry when reg is nil.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		LookupsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "lookups_total",
			Help:      "Flight status lookups by source and result",
		}, []string{"source", "result"}),
		RowsProcessedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "rows_processed_total",
			Help:      "List rows processed by final status",
		}, []string{"status"}),
		ListProcessSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "list_process_seconds",
			Help:      "Time taken to process one list",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		}),
		gatherer: reg,
	}
}

func (m *Metrics) Lookup(source, result string) {
	if m == nil {
		return
	}
	m.LookupsTotal.WithLabelValues(source, result).Inc()
}

func (m *Metrics) Row(status string) {
	if m == nil {
		return
	}
	m.RowsProcessedTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveList(d time.Duration) {
	if m == nil {
		return
	}
	m.ListProcessSeconds.Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
