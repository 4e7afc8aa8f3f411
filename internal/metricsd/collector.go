// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package metricsd wires the router's per-connection query statistics into
// Prometheus collectors and the db:perf_update event, following the
// constructor-plus-CounterVec shape this codebase's metrics collectors use
// throughout.
package metricsd

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector exposes the router's connection-level metrics.
type Collector struct {
	QueriesTotal   *prometheus.CounterVec
	QueryTimeTotal *prometheus.CounterVec
	CacheHits      *prometheus.CounterVec
	CacheMisses    *prometheus.CounterVec
	CacheHitRate   *prometheus.GaugeVec
	MaintenanceRowsDeleted *prometheus.CounterVec
}

var connectionLabels = []string{"connection_id"}

// NewCollector builds and registers the router's collectors on r.
func NewCollector(r *prometheus.Registry) *Collector {
	c := &Collector{
		QueriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sqlite3x_queries_total",
			Help: "Total number of queries executed per connection",
		}, connectionLabels),
		QueryTimeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sqlite3x_query_time_ms_total",
			Help: "Total query execution time in milliseconds per connection",
		}, connectionLabels),
		CacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sqlite3x_parse_cache_hits_total",
			Help: "Total parse cache hits per connection",
		}, connectionLabels),
		CacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sqlite3x_parse_cache_misses_total",
			Help: "Total parse cache misses per connection",
		}, connectionLabels),
		CacheHitRate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sqlite3x_parse_cache_hit_rate",
			Help: "Parse cache hit rate percentage per connection",
		}, connectionLabels),
		MaintenanceRowsDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sqlite3x_maintenance_rows_deleted_total",
			Help: "Total rows deleted by partition maintenance",
		}, connectionLabels),
	}

	r.MustRegister(
		c.QueriesTotal,
		c.QueryTimeTotal,
		c.CacheHits,
		c.CacheMisses,
		c.CacheHitRate,
		c.MaintenanceRowsDeleted,
	)
	return c
}
