// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package sqlite3x

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBeginCommitTransaction(t *testing.T) {
	h := openTestHandle(t)
	ctx := context.Background()
	_, err := h.Execute(ctx, "CREATE TABLE widgets (id INTEGER PRIMARY KEY, name TEXT)")
	require.NoError(t, err)

	reg := NewRegistry()
	require.NoError(t, reg.AddConnection(ConnectionInfo{ID: "conn-1", Path: h.GetPath()}, h))

	require.NoError(t, reg.BeginTransaction(ctx, "conn-1", "tx-1"))
	_, ok := reg.GetTransaction("tx-1")
	require.True(t, ok)

	_, err = h.Execute(ctx, "INSERT INTO widgets (id, name) VALUES (1, 'gadget')")
	require.NoError(t, err)

	require.NoError(t, reg.CommitTransaction(ctx, "tx-1"))
	_, ok = reg.GetTransaction("tx-1")
	require.False(t, ok)

	result, err := h.Query(ctx, "SELECT name FROM widgets")
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
}

func TestRollbackTransactionDiscardsWrites(t *testing.T) {
	h := openTestHandle(t)
	ctx := context.Background()
	_, err := h.Execute(ctx, "CREATE TABLE widgets (id INTEGER PRIMARY KEY, name TEXT)")
	require.NoError(t, err)

	reg := NewRegistry()
	require.NoError(t, reg.AddConnection(ConnectionInfo{ID: "conn-1", Path: h.GetPath()}, h))

	require.NoError(t, reg.BeginTransaction(ctx, "conn-1", "tx-1"))
	_, err = h.Execute(ctx, "INSERT INTO widgets (id, name) VALUES (1, 'gadget')")
	require.NoError(t, err)
	require.NoError(t, reg.RollbackTransaction(ctx, "tx-1"))

	result, err := h.Query(ctx, "SELECT name FROM widgets")
	require.NoError(t, err)
	require.Empty(t, result.Rows)
}

func TestBeginTransactionRejectsDuplicateID(t *testing.T) {
	h := openTestHandle(t)
	ctx := context.Background()

	reg := NewRegistry()
	require.NoError(t, reg.AddConnection(ConnectionInfo{ID: "conn-1", Path: h.GetPath()}, h))

	require.NoError(t, reg.BeginTransaction(ctx, "conn-1", "tx-1"))
	err := reg.BeginTransaction(ctx, "conn-1", "tx-1")
	require.Error(t, err)

	// the first transaction's bookkeeping must still be intact.
	_, ok := reg.GetTransaction("tx-1")
	require.True(t, ok)

	require.NoError(t, reg.RollbackTransaction(ctx, "tx-1"))
}

func TestEndTransactionUnknownIDFails(t *testing.T) {
	h := openTestHandle(t)
	ctx := context.Background()

	reg := NewRegistry()
	require.NoError(t, reg.AddConnection(ConnectionInfo{ID: "conn-1", Path: h.GetPath()}, h))

	require.Error(t, reg.CommitTransaction(ctx, "missing"))
	require.Error(t, reg.RollbackTransaction(ctx, "missing"))
}
