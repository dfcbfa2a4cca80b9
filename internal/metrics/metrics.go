// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "coursecal"

// Status label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Metrics groups the collectors for feed refreshes and cross-reference runs.
type Metrics struct {
	Registry *prometheus.Registry

	FeedFetches    *prometheus.CounterVec
	FeedEvents     prometheus.Gauge
	FeedLastUpdate prometheus.Gauge
	CrossRefRuns   *prometheus.CounterVec
	CrossRefMatch  prometheus.Histogram
}

// New registers all collectors on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		FeedFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_fetches_total",
			Help:      "Schedule feed fetches by outcome.",
		}, []string{"status"}),
		FeedEvents: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "feed_events",
			Help:      "Events parsed from the most recent feed.",
		}),
		FeedLastUpdate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "feed_last_update_timestamp_seconds",
			Help:      "Unix time of the last successful feed refresh.",
		}),
		CrossRefRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "crossref_runs_total",
			Help:      "Cross-reference requests by output format.",
		}, []string{"format"}),
		CrossRefMatch: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "crossref_matched_events",
			Help:      "Matched events per assignment.",
			Buckets:   []float64{0, 1, 2, 5, 10, 25},
		}),
	}

	reg.MustRegister(
		m.FeedFetches,
		m.FeedEvents,
		m.FeedLastUpdate,
		m.CrossRefRuns,
		m.CrossRefMatch,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}
