// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	d := Defaults()
	assert.Equal(t, "Hash", d.Strategy)
	assert.Equal(t, "info", d.LogLevel)
	assert.Equal(t, 9090, d.MetricsPort)
	assert.Equal(t, 1, d.MinConnections)
	assert.Equal(t, 10, d.MaxConnections)
}

func TestLoadWithNoFileReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "Hash", cfg.Strategy)
	assert.Equal(t, 9090, cfg.MetricsPort)
}

func TestLoadReadsTOMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "router.toml")
	content := `
dataDir = "/var/lib/sqlite3x"
mainDbPath = "/var/lib/sqlite3x/main.db"
shards = ["shard_0.db", "shard_1.db"]
strategy = "RoundRobin"
keyColumn = "tenant_id"
metricsPort = 9191
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/sqlite3x/main.db", cfg.MainDBPath)
	assert.Equal(t, []string{"shard_0.db", "shard_1.db"}, cfg.Shards)
	assert.Equal(t, "RoundRobin", cfg.Strategy)
	assert.Equal(t, "tenant_id", cfg.KeyColumn)
	assert.Equal(t, 9191, cfg.MetricsPort)
	// unset fields still take their defaults alongside the overridden ones.
	assert.Equal(t, 10, cfg.MaxConnections)
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}
