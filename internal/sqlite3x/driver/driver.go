// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

//go:build cgo

// Package driver exposes the one piece database/sql's generic driver.Conn
// interface refuses to: a live *sqlite3.SQLiteConn, so the router can
// register update hooks, scalar UDFs, and run page-stepping online backups.
package driver

import (
	"database/sql"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/mattn/go-sqlite3"
)

// Conn wraps the raw connection handle captured at connect time.
type Conn struct {
	*sqlite3.SQLiteConn
}

var driverSeq atomic.Uint64

// Open opens a single dedicated connection to path and returns both the
// *sql.DB used for ordinary Exec/Query traffic and the raw Conn used for
// hooks, UDF registration, and backups.
//
// Each call registers its own driver instance rather than reusing one
// process-wide "sqlite3" registration: the ConnectHook closure must capture
// this call's raw-conn cell, and a DatabaseHandle owns exactly one physical
// connection for its entire lifetime (never a pool), so there is no
// contention to dedupe against.
func Open(path string) (*sql.DB, *Conn, error) {
	name := fmt.Sprintf("sqlite3x-%d", driverSeq.Add(1))
	var raw *sqlite3.SQLiteConn
	sql.Register(name, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			raw = conn
			return nil
		},
	})

	db, err := sql.Open(name, path)
	if err != nil {
		return nil, nil, fmt.Errorf("open sqlite3 connection: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("ping sqlite3 connection: %w", err)
	}
	if raw == nil {
		db.Close()
		return nil, nil, fmt.Errorf("sqlite3 connect hook did not fire")
	}

	return db, &Conn{SQLiteConn: raw}, nil
}

// RunBackup steps an online backup from src to dest 5 pages at a time,
// sleeping 250ms between steps — the same cadence rusqlite's
// `Backup::run_to_completion(5, Duration::from_millis(250), None)` uses, so
// a backup of a live, actively-written database makes bounded forward
// progress without starving writers.
func RunBackup(dest, src *Conn) error {
	backup, err := dest.SQLiteConn.Backup("main", src.SQLiteConn, "main")
	if err != nil {
		return fmt.Errorf("initialize backup: %w", err)
	}
	for {
		done, err := backup.Step(5)
		if err != nil {
			_ = backup.Finish()
			return fmt.Errorf("backup step: %w", err)
		}
		if done {
			break
		}
		time.Sleep(250 * time.Millisecond)
	}
	return backup.Finish()
}
