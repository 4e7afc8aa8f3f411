// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

//go:build !cgo

package driver

import (
	"database/sql"
	"errors"
)

// Conn is a stub on non-cgo builds; mattn/go-sqlite3 requires cgo.
type Conn struct{}

var errNoCGO = errors.New("sqlite3x: the database wrapper requires cgo (mattn/go-sqlite3); rebuild with CGO_ENABLED=1")

func Open(path string) (*sql.DB, *Conn, error) {
	return nil, nil, errNoCGO
}

func RunBackup(dest, src *Conn) error {
	return errNoCGO
}
