// Package metrics exports engine activity as Prometheus counters.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"visitlog/internal/visits"
)

// Collector counts recorded fixes and failures. It implements visits.Observer.
type Collector struct {
	registry *prometheus.Registry

	fixesRecorded prometheus.Counter
	placesCreated prometheus.Counter
	placesMerged  prometheus.Counter
	failures      *prometheus.CounterVec
	lastIngest    prometheus.Gauge
}

// New returns a collector registered on a fresh registry, together with the
// Go runtime and process collectors.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		fixesRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "visitlog",
			Name:      "fixes_recorded_total",
			Help:      "Fixes accepted by the engine.",
		}),
		placesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "visitlog",
			Name:      "places_created_total",
			Help:      "Fixes that started a new place.",
		}),
		placesMerged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "visitlog",
			Name:      "places_merged_total",
			Help:      "Fixes merged into an existing place.",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "visitlog",
			Name:      "record_failures_total",
			Help:      "Fixes the engine failed to record, by error kind.",
		}, []string{"kind"}),
		lastIngest: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "visitlog",
			Name:      "last_ingest_timestamp_seconds",
			Help:      "Timestamp of the most recently recorded fix.",
		}),
	}

	c.registry.MustRegister(
		c.fixesRecorded,
		c.placesCreated,
		c.placesMerged,
		c.failures,
		c.lastIngest,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Recorded counts a stored fix and moves the last ingest gauge.
func (c *Collector) Recorded(_ context.Context, fix visits.Fix, res visits.Result) {
	c.fixesRecorded.Inc()
	if res.Created {
		c.placesCreated.Inc()
	} else {
		c.placesMerged.Inc()
	}
	c.lastIngest.Set(float64(fix.Timestamp) / 1000)
}

// Failed counts a rejected fix by error kind.
func (c *Collector) Failed(_ context.Context, _ visits.Fix, err error) {
	c.failures.WithLabelValues(visits.Kind(err)).Inc()
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
