// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package sqlite3x

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCheckGlobalUniquenessWithNoShardsAttachedIsUnique(t *testing.T) {
	cfg := NewPartitionConfig(StrategyHash, []string{"shard_0.db"})
	cfg.KeyColumn = "id"
	manager, err := NewPartitionManager(nil, cfg)
	require.NoError(t, err)

	idx := NewGlobalIndexManager(manager)
	unique, err := idx.CheckGlobalUniqueness(context.Background(), "accounts", "email", "a@example.com")
	require.NoError(t, err)
	require.True(t, unique)
}

func TestUniqueInsertPartitionedStopsShortOfInsertWhenUnknown(t *testing.T) {
	// With no shards attached, global uniqueness reports true (no rows
	// found anywhere), so the insert attempt proceeds to ExecutePartitioned,
	// which then fails because no shard is attached to route to — proving
	// the uniqueness check ran before the write was ever issued.
	cfg := NewPartitionConfig(StrategyHash, []string{"shard_0.db"})
	cfg.KeyColumn = "id"
	manager, err := NewPartitionManager(nil, cfg)
	require.NoError(t, err)

	idx := NewGlobalIndexManager(manager)
	_, err = idx.UniqueInsertPartitioned(context.Background(),
		"INSERT INTO accounts (id, email) VALUES (1, 'a@example.com')",
		"accounts", "email", "a@example.com")
	require.Error(t, err)
	kind, ok := KindOf(err)
	require.True(t, ok)
	require.Equal(t, KindShardNotFound, kind)
}
