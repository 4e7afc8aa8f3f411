// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package sqlite3x

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestHandle(t *testing.T) *DatabaseHandle {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	h, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func TestHandleExecuteAndQuery(t *testing.T) {
	h := openTestHandle(t)
	ctx := context.Background()

	_, err := h.Execute(ctx, "CREATE TABLE widgets (id INTEGER PRIMARY KEY, name TEXT)")
	require.NoError(t, err)

	affected, err := h.ExecuteWithParams(ctx, "INSERT INTO widgets (id, name) VALUES (?, ?)", []any{float64(1), "gadget"})
	require.NoError(t, err)
	require.Equal(t, int64(1), affected)

	result, err := h.Query(ctx, "SELECT id, name FROM widgets")
	require.NoError(t, err)
	require.Equal(t, []string{"id", "name"}, result.Columns)
	require.Len(t, result.Rows, 1)
	require.Equal(t, "gadget", result.Rows[0][1])
}

func TestHandleAttachDatabaseAndListAttached(t *testing.T) {
	h := openTestHandle(t)
	ctx := context.Background()

	shardPath := filepath.Join(t.TempDir(), "shard_0.db")
	require.NoError(t, h.AttachDatabase(ctx, "shard_0", shardPath))

	attached, err := h.GetAttachedDatabases(ctx)
	require.NoError(t, err)

	found := false
	for _, a := range attached {
		if a.Name == "shard_0" {
			found = true
		}
	}
	require.True(t, found)
}

func TestHandleGetSchemaReportsTablesAndColumns(t *testing.T) {
	h := openTestHandle(t)
	ctx := context.Background()

	_, err := h.Execute(ctx, "CREATE TABLE accounts (id INTEGER PRIMARY KEY, email TEXT NOT NULL)")
	require.NoError(t, err)

	schema, err := h.GetSchema(ctx)
	require.NoError(t, err)
	require.Len(t, schema.Tables, 1)
	require.Equal(t, "accounts", schema.Tables[0].Name)

	var emailCol *ColumnInfo
	for i := range schema.Tables[0].Columns {
		if schema.Tables[0].Columns[i].Name == "email" {
			emailCol = &schema.Tables[0].Columns[i]
		}
	}
	require.NotNil(t, emailCol)
	require.True(t, emailCol.NotNull)
}

func TestHandleOnUpdateReceivesInsertNotification(t *testing.T) {
	h := openTestHandle(t)
	ctx := context.Background()

	_, err := h.Execute(ctx, "CREATE TABLE events (id INTEGER PRIMARY KEY)")
	require.NoError(t, err)

	var gotOp UpdateOp
	var gotTable string
	h.OnUpdate(func(op UpdateOp, database, table string, rowID int64) {
		gotOp = op
		gotTable = table
	})

	_, err = h.Execute(ctx, "INSERT INTO events (id) VALUES (1)")
	require.NoError(t, err)

	require.Equal(t, UpdateOpInsert, gotOp)
	require.Equal(t, "events", gotTable)
}

func TestHandleBackupAndRestoreRoundTrip(t *testing.T) {
	h := openTestHandle(t)
	ctx := context.Background()

	_, err := h.Execute(ctx, "CREATE TABLE widgets (id INTEGER PRIMARY KEY, name TEXT)")
	require.NoError(t, err)
	_, err = h.Execute(ctx, "INSERT INTO widgets (id, name) VALUES (1, 'gadget')")
	require.NoError(t, err)

	backupPath := filepath.Join(t.TempDir(), "backup.db")
	require.NoError(t, h.BackupToFile(backupPath))

	restored, err := Open(filepath.Join(t.TempDir(), "restored.db"))
	require.NoError(t, err)
	defer restored.Close()

	require.NoError(t, restored.RestoreFromFile(backupPath))

	result, err := restored.Query(ctx, "SELECT name FROM widgets WHERE id = 1")
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	require.Equal(t, "gadget", result.Rows[0][0])
}
