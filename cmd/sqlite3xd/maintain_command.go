// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/shardkit/sqlite3x/internal/sqlite3x"
)

func runMaintainCommand() *cobra.Command {
	var mainDBPath string

	cmd := &cobra.Command{
		Use:   "maintain",
		Short: "Run retention-policy pruning across every attached shard",
		RunE: func(cmd *cobra.Command, _ []string) error {
			metadata, err := sqlite3x.LoadPartitionMetadata(sqlite3x.DefaultMetadataPath(mainDBPath))
			if err != nil {
				return err
			}

			handle, err := sqlite3x.Open(mainDBPath)
			if err != nil {
				return err
			}
			defer handle.Close()

			manager, err := sqlite3x.NewPartitionManager(handle, metadata.Config)
			if err != nil {
				return err
			}
			ctx := context.Background()
			if err := manager.InitializeShards(ctx); err != nil {
				return err
			}

			deleted := manager.RunPartitionMaintenance(ctx)
			cmd.Printf("Maintenance complete: %d row(s) deleted\n", deleted)
			return nil
		},
	}

	cmd.Flags().StringVar(&mainDBPath, "main-db", "", "Path to the coordinator SQLite database")
	_ = cmd.MarkFlagRequired("main-db")

	return cmd
}
