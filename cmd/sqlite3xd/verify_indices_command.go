// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/shardkit/sqlite3x/internal/sqlite3x"
)

func runVerifyIndicesCommand() *cobra.Command {
	var (
		mainDBPath string
		fix        bool
	)

	cmd := &cobra.Command{
		Use:   "verify-indices",
		Short: "Report (or create) missing shard-key indices across attached shards",
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

			if fix {
				if err := manager.EnsureShardKeyIndices(ctx); err != nil {
					return err
				}
				cmd.Println("Shard key indices ensured.")
				return nil
			}

			missing, err := manager.VerifyShardKeyIndices(ctx)
			if err != nil {
				return err
			}
			if len(missing) == 0 {
				cmd.Println("All policy tables have a covering shard-key index.")
				return nil
			}
			cmd.Println("Missing shard-key indices:")
			for _, m := range missing {
				cmd.Printf("  - %s\n", m)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&mainDBPath, "main-db", "", "Path to the coordinator SQLite database")
	cmd.Flags().BoolVar(&fix, "fix", false, "Create any missing shard-key indices instead of just reporting them")
	_ = cmd.MarkFlagRequired("main-db")

	return cmd
}
