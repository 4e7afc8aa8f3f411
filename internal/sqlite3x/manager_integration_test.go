// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package sqlite3x

import (
	"context"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

// newManagerWithAttachedShards opens a coordinator handle backed by
// t.TempDir() and attaches shardCount real shard files to it via
// InitializeShards, returning a manager ready to route against a live
// multi-shard SQLite setup.
func newManagerWithAttachedShards(t *testing.T, strategy Strategy, keyColumn string, shardCount int) (*PartitionManager, *DatabaseHandle) {
	t.Helper()
	ctx := context.Background()

	main := openTestHandle(t)

	shards := make([]string, shardCount)
	for i := 0; i < shardCount; i++ {
		shards[i] = filepath.Join(t.TempDir(), shardAlias(i)+".db")
	}

	cfg := NewPartitionConfig(strategy, shards)
	cfg.KeyColumn = keyColumn

	manager, err := NewPartitionManager(main, cfg)
	require.NoError(t, err)
	require.NoError(t, manager.InitializeShards(ctx))

	return manager, main
}

func createAccountsTableOnEveryShard(t *testing.T, ctx context.Context, main *DatabaseHandle, shardCount int) {
	t.Helper()
	for i := 0; i < shardCount; i++ {
		alias := shardAlias(i)
		_, err := main.Execute(ctx, "CREATE TABLE "+alias+".accounts (id INTEGER PRIMARY KEY, email TEXT, created_at TEXT)")
		require.NoError(t, err)
	}
}

func TestQueryPartitionedRoutesToSingleShardWhenKeyKnown(t *testing.T) {
	ctx := context.Background()
	manager, main := newManagerWithAttachedShards(t, StrategyHash, "id", 3)
	createAccountsTableOnEveryShard(t, ctx, main, 3)

	for id := 1; id <= 6; id++ {
		alias, err := manager.SelectShard(strconv.Itoa(id))
		require.NoError(t, err)
		_, err = main.Execute(ctx, "INSERT INTO "+alias+".accounts (id, email) VALUES ("+strconv.Itoa(id)+", 'user"+strconv.Itoa(id)+"@example.com')")
		require.NoError(t, err)
	}

	result, err := manager.QueryPartitioned(ctx, "SELECT id, email FROM accounts WHERE id = 3")
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	require.Equal(t, int64(3), result.Rows[0][0])
}

func TestQueryPartitionedFansOutAcrossAllShardsWhenKeyUnknown(t *testing.T) {
	ctx := context.Background()
	manager, main := newManagerWithAttachedShards(t, StrategyRoundRobin, "", 3)
	createAccountsTableOnEveryShard(t, ctx, main, 3)

	for i, alias := range []string{"shard_0", "shard_1", "shard_2"} {
		_, err := main.Execute(ctx, "INSERT INTO "+alias+".accounts (id, email) VALUES ("+strconv.Itoa(i+1)+", 'user"+strconv.Itoa(i+1)+"@example.com')")
		require.NoError(t, err)
	}

	result, err := manager.QueryPartitioned(ctx, "SELECT id, email FROM accounts")
	require.NoError(t, err)
	require.Len(t, result.Rows, 3)
}

func TestExecutePartitionedRoutesWriteToHashedShard(t *testing.T) {
	ctx := context.Background()
	manager, main := newManagerWithAttachedShards(t, StrategyHash, "id", 3)
	createAccountsTableOnEveryShard(t, ctx, main, 3)

	affected, err := manager.ExecutePartitioned(ctx, "INSERT INTO accounts (id, email) VALUES (42, 'hashed@example.com')")
	require.NoError(t, err)
	require.Equal(t, int64(1), affected)

	alias, err := manager.SelectShard("42")
	require.NoError(t, err)
	result, err := main.Query(ctx, "SELECT email FROM "+alias+".accounts WHERE id = 42")
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	require.Equal(t, "hashed@example.com", result.Rows[0][0])

	for i := 0; i < 3; i++ {
		other := shardAlias(i)
		if other == alias {
			continue
		}
		res, err := main.Query(ctx, "SELECT email FROM "+other+".accounts WHERE id = 42")
		require.NoError(t, err)
		require.Len(t, res.Rows, 0)
	}
}

func TestRunPartitionMaintenancePrunesRowsPastRetentionOnEveryShard(t *testing.T) {
	ctx := context.Background()
	manager, main := newManagerWithAttachedShards(t, StrategyHash, "id", 2)
	createAccountsTableOnEveryShard(t, ctx, main, 2)

	_, err := main.Execute(ctx, "INSERT INTO shard_0.accounts (id, email, created_at) VALUES (1, 'old@example.com', date('now', '-90 days'))")
	require.NoError(t, err)
	_, err = main.Execute(ctx, "INSERT INTO shard_0.accounts (id, email, created_at) VALUES (2, 'new@example.com', date('now'))")
	require.NoError(t, err)
	_, err = main.Execute(ctx, "INSERT INTO shard_1.accounts (id, email, created_at) VALUES (3, 'old2@example.com', date('now', '-90 days'))")
	require.NoError(t, err)

	require.NoError(t, manager.CreatePartitionPolicy(PartitionPolicy{
		TableName: "accounts", DateColumn: "created_at", Interval: "days", Retention: 30,
	}))

	deleted := manager.RunPartitionMaintenance(ctx)
	require.Equal(t, int64(2), deleted)

	remaining, err := main.Query(ctx, "SELECT id FROM shard_0.accounts")
	require.NoError(t, err)
	require.Len(t, remaining.Rows, 1)
	require.Equal(t, int64(2), remaining.Rows[0][0])
}

func TestRunPartitionMaintenanceAbsorbsPerShardFailures(t *testing.T) {
	ctx := context.Background()
	manager, main := newManagerWithAttachedShards(t, StrategyHash, "id", 2)

	// Only shard_0 gets the table created; shard_1's DELETE fails because
	// the table doesn't exist there, and that failure must not stop
	// shard_0's rows from being counted.
	_, err := main.Execute(ctx, "CREATE TABLE shard_0.accounts (id INTEGER PRIMARY KEY, email TEXT, created_at TEXT)")
	require.NoError(t, err)
	_, err = main.Execute(ctx, "INSERT INTO shard_0.accounts (id, email, created_at) VALUES (1, 'old@example.com', date('now', '-90 days'))")
	require.NoError(t, err)

	require.NoError(t, manager.CreatePartitionPolicy(PartitionPolicy{
		TableName: "accounts", DateColumn: "created_at", Interval: "days", Retention: 30,
	}))

	deleted := manager.RunPartitionMaintenance(ctx)
	require.Equal(t, int64(1), deleted)
}

func TestVerifyShardKeyIndicesReportsMissingThenEnsureCreatesThem(t *testing.T) {
	ctx := context.Background()
	manager, main := newManagerWithAttachedShards(t, StrategyHash, "id", 2)
	createAccountsTableOnEveryShard(t, ctx, main, 2)

	require.NoError(t, manager.CreatePartitionPolicy(PartitionPolicy{
		TableName: "accounts", DateColumn: "created_at", Interval: "days", Retention: 30,
	}))

	missing, err := manager.VerifyShardKeyIndices(ctx)
	require.NoError(t, err)
	require.Len(t, missing, 2)
	require.Contains(t, missing, "shard_0.accounts")
	require.Contains(t, missing, "shard_1.accounts")

	require.NoError(t, manager.EnsureShardKeyIndices(ctx))

	missing, err = manager.VerifyShardKeyIndices(ctx)
	require.NoError(t, err)
	require.Empty(t, missing)
}
