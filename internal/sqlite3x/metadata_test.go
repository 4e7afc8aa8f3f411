// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package sqlite3x

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataSaveLoadRoundTrip(t *testing.T) {
	cfg := NewPartitionConfig(StrategyHash, []string{"shard_0.db", "shard_1.db"})
	cfg.KeyColumn = "customer_id"
	meta := NewPartitionMetadata(cfg, time.Unix(1700000000, 0))

	path := filepath.Join(t.TempDir(), "main.db.partition_metadata.json")
	require.NoError(t, meta.Save(path))

	loaded, err := LoadPartitionMetadata(path)
	require.NoError(t, err)
	assert.Equal(t, meta, loaded)
}

func TestLoadPartitionMetadataRejectsNewerVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meta.json")
	future := PartitionMetadata{Version: metadataVersion + 1}
	require.NoError(t, future.Save(path))

	_, err := LoadPartitionMetadata(path)
	require.Error(t, err)
}

func TestLoadPartitionMetadataMissingFile(t *testing.T) {
	_, err := LoadPartitionMetadata(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}

func TestDefaultMetadataPath(t *testing.T) {
	assert.Equal(t, "/data/main.db.partition_metadata.json", DefaultMetadataPath("/data/main.db"))
}
