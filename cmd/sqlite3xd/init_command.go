// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/shardkit/sqlite3x/internal/sqlite3x"
)

func runInitCommand() *cobra.Command {
	var (
		mainDBPath string
		shards     []string
		strategy   string
		keyColumn  string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Open the coordinator database and write its partition metadata sidecar",
		RunE: func(cmd *cobra.Command, _ []string) error {
			handle, err := sqlite3x.Open(mainDBPath)
			if err != nil {
				return err
			}
			defer handle.Close()

			config := sqlite3x.PartitionConfig{
				Strategy:  sqlite3x.Strategy(strategy),
				Shards:    shards,
				KeyColumn: keyColumn,
			}
			if err := config.Validate(); err != nil {
				return err
			}

			metadata := sqlite3x.NewPartitionMetadata(config, time.Now())
			if err := metadata.Save(sqlite3x.DefaultMetadataPath(mainDBPath)); err != nil {
				return err
			}

			cmd.Printf("Initialized %s with %d shard(s) under strategy %s\n", mainDBPath, len(shards), strategy)
			return nil
		},
	}

	cmd.Flags().StringVar(&mainDBPath, "main-db", "", "Path to the coordinator SQLite database")
	cmd.Flags().StringSliceVar(&shards, "shard", nil, "Shard database file path (repeatable)")
	cmd.Flags().StringVar(&strategy, "strategy", "Hash", "Partition strategy: Hash, Range, or RoundRobin")
	cmd.Flags().StringVar(&keyColumn, "key-column", "", "Partition key column (required for Hash/Range)")
	_ = cmd.MarkFlagRequired("main-db")

	return cmd
}
