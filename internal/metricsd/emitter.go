// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metricsd

import (
	"context"
	"time"

	"github.com/shardkit/sqlite3x/internal/eventbus"
	"github.com/shardkit/sqlite3x/internal/sqlite3x"
)

// Emitter ticks for the lifetime of ctx. On each tick it walks every
// registered connection, sets that connection's cache-hit-rate gauge from the
// registry's query statistics, ensures its queries-total series exists, and
// publishes one db:perf_update event per connection. The counter collectors
// (queries, query time, cache hits/misses, maintenance rows) are not advanced
// from those statistics. This is the router's only long-lived background task.
type Emitter struct {
	registry   *sqlite3x.Registry
	collector  *Collector
	bus        *eventbus.Bus
	interval   time.Duration
}

func NewEmitter(registry *sqlite3x.Registry, collector *Collector, bus *eventbus.Bus, interval time.Duration) *Emitter {
	return &Emitter{registry: registry, collector: collector, bus: bus, interval: interval}
}

// Run ticks until ctx is cancelled.
func (e *Emitter) Run(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.tick()
		}
	}
}

func (e *Emitter) tick() {
	for _, conn := range e.registry.GetConnections() {
		stats := e.registry.GetQueryStats(conn.ID)

		e.collector.QueriesTotal.WithLabelValues(conn.ID).Add(0)
		e.collector.CacheHitRate.WithLabelValues(conn.ID).Set(stats.CacheHitRate)

		e.bus.Publish(eventbus.TopicPerfUpdate, eventbus.PerfUpdateEvent{
			ConnectionID:   conn.ID,
			TotalQueries:   stats.TotalQueries,
			AvgQueryTimeMS: stats.AvgQueryTimeMS,
			CacheHitRate:   stats.CacheHitRate,
		})
	}
}
