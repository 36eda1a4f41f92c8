// Package metrics counts cache and facet activity for one monitor.
package metrics

import (
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the monitor's counters on a private registry so that two
// monitors never share series.
type Metrics struct {
	registry      *prometheus.Registry
	cacheRequests *prometheus.CounterVec
	facetResults  *prometheus.CounterVec
}

// New registers the monitor counters on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "statemon",
			Name:      "cache_requests_total",
			Help:      "Cache lookups by key and result (hit or miss).",
		}, []string{"key", "result"}),
		facetResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "statemon",
			Name:      "facet_results_total",
			Help:      "Snapshot facet reads by facet and outcome.",
		}, []string{"facet", "outcome"}),
	}
	m.registry.MustRegister(m.cacheRequests, m.facetResults)
	return m
}

// Registry exposes the underlying registry, e.g. for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// CacheHit records a cache hit for key.
func (m *Metrics) CacheHit(key string) {
	m.cacheRequests.WithLabelValues(keyLabel(key), "hit").Inc()
}

// CacheMiss records a cache miss for key.
func (m *Metrics) CacheMiss(key string) {
	m.cacheRequests.WithLabelValues(keyLabel(key), "miss").Inc()
}

// Facet records the outcome of one facet read.
func (m *Metrics) Facet(facet, outcome string) {
	m.facetResults.WithLabelValues(facet, outcome).Inc()
}

// WriteTextfile writes the current values in the Prometheus text format,
// suitable for the node exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// keyLabel drops parameter suffixes ("diff:10000" -> "diff") to keep label
// cardinality fixed.
func keyLabel(key string) string {
	if i := strings.IndexByte(key, ':'); i >= 0 {
		return key[:i]
	}
	return key
}
