// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/shardkit/sqlite3x/internal/config"
	"github.com/shardkit/sqlite3x/internal/eventbus"
	"github.com/shardkit/sqlite3x/internal/metricsd"
	"github.com/shardkit/sqlite3x/internal/sqlite3x"
)

const metricsEmitInterval = 10 * time.Second

// runServeCommand brings up a long-running router process: it loads
// configuration, opens the coordinator database, attaches every configured
// shard, registers an update-hook publisher for db:data_changed, and runs
// the metrics emitter and /metrics HTTP endpoint until interrupted.
func runServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the router as a long-lived process with metrics and change events",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			handle, err := sqlite3x.Open(cfg.MainDBPath)
			if err != nil {
				return err
			}
			defer handle.Close()

			manager, err := sqlite3x.NewPartitionManager(handle, sqlite3x.PartitionConfig{
				Strategy:  sqlite3x.Strategy(cfg.Strategy),
				Shards:    cfg.Shards,
				KeyColumn: cfg.KeyColumn,
			})
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			if err := manager.InitializeShards(ctx); err != nil {
				return err
			}

			registry := sqlite3x.NewRegistry()
			connID := sqlite3x.NewConnectionID()
			if err := registry.AddConnection(sqlite3x.ConnectionInfo{
				ID: connID, Path: cfg.MainDBPath, IsConnected: true, CreatedAt: time.Now(),
			}, handle); err != nil {
				return err
			}

			bus := eventbus.New()
			handle.OnUpdate(func(op sqlite3x.UpdateOp, database, table string, rowID int64) {
				bus.Publish(eventbus.TopicDataChanged, eventbus.DataChangedEvent{
					ConnectionID: connID,
					Database:     database,
					Table:        table,
					Operation:    string(op),
					RowID:        rowID,
				})
			})

			promRegistry := prometheus.NewRegistry()
			promRegistry.MustRegister(collectors.NewGoCollector())
			promRegistry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			collector := metricsd.NewCollector(promRegistry)

			if cfg.MetricsEnabled {
				server := metricsd.NewServer(cfg.MetricsHost, cfg.MetricsPort, promRegistry)
				go func() {
					log.Info().Str("addr", server.Addr).Msg("metrics server listening")
					if err := server.ListenAndServe(); err != nil {
						log.Warn().Err(err).Msg("metrics server stopped")
					}
				}()
				defer server.Close()
			}

			emitter := metricsd.NewEmitter(registry, collector, bus, metricsEmitInterval)
			log.Info().Str("main_db", cfg.MainDBPath).Int("shards", len(cfg.Shards)).Msg("router serving")
			emitter.Run(ctx)
			return nil
		},
	}
	return cmd
}
