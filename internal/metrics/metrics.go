// Package metrics holds Prometheus instruments that are used across the
// serving edge.  All collectors are registered with the global registry, so
// importing this package in main.go is enough to expose them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	CachedDomains = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "edge_cached_domains",
			Help: "Number of verified domain records currently cached in memory.",
		})

	DomainLoadTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "edge_domain_load_total",
			Help: "Cumulative number of domain records loaded from the registry.",
		})

	DomainLoadErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "edge_domain_load_errors_total",
			Help: "Cumulative number of domain lookups that found no eligible record.",
		})

	DomainEvictTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "edge_domain_evict_total",
			Help: "Cumulative number of domain records evicted from the cache.",
		})

	SnapshotHitTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edge_snapshot_hit_total",
			Help: "Snapshot cache hits by lookup tier (domain or default).",
		},
		[]string{"tier"})

	SnapshotMissTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "edge_snapshot_miss_total",
			Help: "Snapshot cache misses across every lookup tier.",
		})

	GenerationTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "edge_generation_total",
			Help: "On-demand snapshot generation invocations.",
		})

	GenerationFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "edge_generation_failures_total",
			Help: "Generation invocations that yielded no snapshot on re-read.",
		})

	LifecyclePollTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edge_lifecycle_poll_total",
			Help: "Domain lifecycle polls by resulting state.",
		},
		[]string{"state"})

	ServeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edge_serve_total",
			Help: "Responses by render source (snapshot-hit, generated, fallback-shell, not-found, error).",
		},
		[]string{"source"})
)

func init() {
	prometheus.MustRegister(
		CachedDomains,
		DomainLoadTotal,
		DomainLoadErrorsTotal,
		DomainEvictTotal,
		SnapshotHitTotal,
		SnapshotMissTotal,
		GenerationTotal,
		GenerationFailuresTotal,
		LifecyclePollTotal,
		ServeTotal,
	)
}
