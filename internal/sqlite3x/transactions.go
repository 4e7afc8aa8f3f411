// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package sqlite3x

import (
	"context"
	"time"
)

// BeginTransaction starts a transaction on connectionID's handle and
// registers it under transactionID. If registration fails after BEGIN has
// already succeeded (e.g. a duplicate transactionID), a ROLLBACK is
// attempted before the registration error is returned, so a dangling
// open transaction doesn't outlive its failed bookkeeping.
func (r *Registry) BeginTransaction(ctx context.Context, connectionID, transactionID string) error {
	handle, ok := r.GetDBHandle(connectionID)
	if !ok {
		return ErrNotFound("connection not found: %s", connectionID)
	}

	if _, err := handle.Execute(ctx, "BEGIN TRANSACTION"); err != nil {
		return err
	}

	if err := r.AddTransaction(connectionID, transactionID, time.Now()); err != nil {
		if _, rbErr := handle.Execute(ctx, "ROLLBACK"); rbErr != nil {
			return wrapErr(KindTransaction, err, "register transaction failed (%v); rollback also failed: %v", err, rbErr)
		}
		return err
	}
	return nil
}

// CommitTransaction commits transactionID's transaction and removes its
// bookkeeping.
func (r *Registry) CommitTransaction(ctx context.Context, transactionID string) error {
	return r.endTransaction(ctx, transactionID, "COMMIT")
}

// RollbackTransaction rolls back transactionID's transaction and removes its
// bookkeeping.
func (r *Registry) RollbackTransaction(ctx context.Context, transactionID string) error {
	return r.endTransaction(ctx, transactionID, "ROLLBACK")
}

func (r *Registry) endTransaction(ctx context.Context, transactionID, stmt string) error {
	tx, ok := r.GetTransaction(transactionID)
	if !ok {
		return ErrNotFound("transaction not found: %s", transactionID)
	}
	handle, ok := r.GetDBHandle(tx.ConnectionID)
	if !ok {
		return ErrNotFound("connection not found: %s", tx.ConnectionID)
	}

	if _, err := handle.Execute(ctx, stmt); err != nil {
		return wrapErr(KindTransaction, err, "%s failed: %v", stmt, err)
	}
	return r.RemoveTransaction(transactionID)
}
