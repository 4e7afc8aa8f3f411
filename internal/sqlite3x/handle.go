// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package sqlite3x

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/shardkit/sqlite3x/internal/sqlite3x/driver"
	"github.com/shardkit/sqlite3x/pkg/jsonvalue"
)

const connectionSetupTimeout = 5 * time.Second

// DatabaseHandle is a safe wrapper around a single dedicated SQLite
// connection. Every router component — shard attachment, update hooks, UDF
// registration, online backup — needs access to the same physical
// connection, so unlike an ordinary application datastore this is
// deliberately never a pool: see DESIGN.md for why.
type DatabaseHandle struct {
	mu             sync.Mutex
	db             *sql.DB
	raw            *driver.Conn
	path           string
	registeredUDFs map[string]struct{}
}

// Open opens (creating if necessary) a SQLite database at path, enabling WAL
// mode and foreign key enforcement the way every connection in this router
// does.
func Open(path string) (*DatabaseHandle, error) {
	log.Info().Str("path", path).Msg("opening sqlite3x database")

	db, raw, err := driver.Open(path)
	if err != nil {
		return nil, wrapErr(KindConnection, err, "failed to open database: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectionSetupTimeout)
	defer cancel()
	if err := applyPragmas(ctx, db); err != nil {
		db.Close()
		return nil, wrapErr(KindConnection, err, "failed to set pragmas: %v", err)
	}

	log.Info().Str("path", path).Msg("sqlite3x database opened successfully")
	return &DatabaseHandle{
		db:             db,
		raw:            raw,
		path:           path,
		registeredUDFs: make(map[string]struct{}),
	}, nil
}

func applyPragmas(ctx context.Context, db *sql.DB) error {
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA foreign_keys=ON"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("apply pragma %q: %w", pragma, err)
		}
	}
	return nil
}

// Close closes the underlying connection.
func (h *DatabaseHandle) Close() error {
	log.Info().Str("path", h.path).Msg("closing sqlite3x database")
	return h.db.Close()
}

// GetPath returns the path this handle was opened with.
func (h *DatabaseHandle) GetPath() string {
	return h.path
}

// Execute runs a statement that returns no rows and reports affected rows.
func (h *DatabaseHandle) Execute(ctx context.Context, sql string) (int64, error) {
	log.Debug().Str("sql", sql).Msg("executing sql")
	h.mu.Lock()
	defer h.mu.Unlock()

	res, err := h.db.ExecContext(ctx, sql)
	if err != nil {
		return 0, wrapErr(KindQuery, err, "execute error: %v", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, wrapErr(KindQuery, err, "execute error: %v", err)
	}
	log.Debug().Int64("affected", affected).Msg("execute complete")
	return affected, nil
}

// ExecuteBatch runs a semicolon-separated sequence of statements, e.g. a
// schema dump. mattn/go-sqlite3 drives sqlite3_prepare_v2 in a loop,
// consuming one statement's worth of text at a time, so a single
// ExecContext call already handles the whole batch.
func (h *DatabaseHandle) ExecuteBatch(ctx context.Context, sql string) error {
	log.Debug().Msg("executing batch sql")
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, err := h.db.ExecContext(ctx, sql); err != nil {
		return wrapErr(KindQuery, err, "execute batch error: %v", err)
	}
	return nil
}

// ExecuteWithParams runs a parameterized statement that returns no rows.
func (h *DatabaseHandle) ExecuteWithParams(ctx context.Context, query string, params []any) (int64, error) {
	log.Debug().Str("sql", query).Msg("executing sql with params")
	h.mu.Lock()
	defer h.mu.Unlock()

	args, err := jsonvalue.ToDriverValues(params)
	if err != nil {
		return 0, wrapErr(KindTypeConversion, err, "%v", err)
	}

	res, err := h.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, wrapErr(KindQuery, err, "execute error: %v", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, wrapErr(KindQuery, err, "execute error: %v", err)
	}
	return affected, nil
}

// Query runs sql with no parameters and collects all rows.
func (h *DatabaseHandle) Query(ctx context.Context, sql string) (QueryResult, error) {
	return h.QueryWithParams(ctx, sql, nil)
}

// QueryWithParams runs a parameterized query and collects all rows. Column
// types are reported as a flat "TEXT" placeholder for every column, matching
// this wrapper's policy of leaving precise type inference to GetSchema's
// PRAGMA-derived column types.
func (h *DatabaseHandle) QueryWithParams(ctx context.Context, query string, params []any) (QueryResult, error) {
	log.Debug().Str("sql", query).Msg("querying with params")
	h.mu.Lock()
	defer h.mu.Unlock()

	args, err := jsonvalue.ToDriverValues(params)
	if err != nil {
		return QueryResult{}, wrapErr(KindTypeConversion, err, "%v", err)
	}

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return QueryResult{}, wrapErr(KindQuery, err, "query error: %v", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return QueryResult{}, wrapErr(KindQuery, err, "query error: %v", err)
	}
	columnTypes := make([]string, len(columns))
	for i := range columnTypes {
		columnTypes[i] = "TEXT"
	}

	result := QueryResult{Columns: columns, ColumnTypes: columnTypes}
	scanTargets := make([]any, len(columns))
	scanValues := make([]any, len(columns))
	for i := range scanTargets {
		scanTargets[i] = &scanValues[i]
	}

	for rows.Next() {
		if err := rows.Scan(scanTargets...); err != nil {
			return QueryResult{}, wrapErr(KindQuery, err, "row error: %v", err)
		}
		rowData := make([]any, len(columns))
		for i, v := range scanValues {
			rowData[i] = jsonvalue.FromCell(v)
		}
		result.Rows = append(result.Rows, rowData)
	}
	if err := rows.Err(); err != nil {
		return QueryResult{}, wrapErr(KindQuery, err, "row error: %v", err)
	}

	log.Debug().Int("rows", len(result.Rows)).Msg("query returned rows")
	return result, nil
}

// BackupToFile writes a consistent online backup of this database to
// destPath, five pages at a time.
func (h *DatabaseHandle) BackupToFile(destPath string) error {
	log.Info().Str("dest", destPath).Msg("backing up database")
	h.mu.Lock()
	defer h.mu.Unlock()

	destDB, destRaw, err := driver.Open(destPath)
	if err != nil {
		return wrapErr(KindConnection, err, "failed to open destination database: %v", err)
	}
	defer destDB.Close()

	if err := driver.RunBackup(destRaw, h.raw); err != nil {
		return wrapErr(KindQuery, err, "backup execution error: %v", err)
	}
	log.Info().Str("dest", destPath).Msg("backup completed successfully")
	return nil
}

// RestoreFromFile overwrites this database's contents with srcPath's,
// restoring five pages at a time.
func (h *DatabaseHandle) RestoreFromFile(srcPath string) error {
	log.Info().Str("src", srcPath).Msg("restoring database")
	h.mu.Lock()
	defer h.mu.Unlock()

	srcDB, srcRaw, err := driver.Open(srcPath)
	if err != nil {
		return wrapErr(KindConnection, err, "failed to open source database: %v", err)
	}
	defer srcDB.Close()

	if err := driver.RunBackup(h.raw, srcRaw); err != nil {
		return wrapErr(KindQuery, err, "restore execution error: %v", err)
	}
	log.Info().Str("src", srcPath).Msg("restore completed successfully")
	return nil
}

// OnUpdate registers a hook invoked whenever a row is inserted, updated or
// deleted in a rowid table on this connection. Only one hook can be active
// at a time; registering again replaces the previous one.
func (h *DatabaseHandle) OnUpdate(callback func(op UpdateOp, database, table string, rowID int64)) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.raw.RegisterUpdateHook(func(op int, database, table string, rowID int64) {
		var kind UpdateOp
		switch op {
		case sqlite3.SQLITE_INSERT:
			kind = UpdateOpInsert
		case sqlite3.SQLITE_UPDATE:
			kind = UpdateOpUpdate
		case sqlite3.SQLITE_DELETE:
			kind = UpdateOpDelete
		}
		callback(kind, database, table, rowID)
	})
}

// CreateScalarFunction registers a scalar UDF. impl must match the shape
// mattn/go-sqlite3's RegisterFunc expects (a Go func whose argument/return
// types it can bind). deterministic marks the function pure for SQLite's
// query planner, matching SQLITE_DETERMINISTIC.
func (h *DatabaseHandle) CreateScalarFunction(name string, impl any, deterministic bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.raw.RegisterFunc(name, impl, deterministic); err != nil {
		return wrapErr(KindQuery, err, "failed to create scalar function: %v", err)
	}
	h.registeredUDFs[name] = struct{}{}
	return nil
}

// GetRegisteredFunctions returns the names of UDFs registered through
// CreateScalarFunction on this handle.
func (h *DatabaseHandle) GetRegisteredFunctions() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	names := make([]string, 0, len(h.registeredUDFs))
	for name := range h.registeredUDFs {
		names = append(names, name)
	}
	return names
}

// AttachDatabase attaches path under alias using raw ATTACH DATABASE SQL:
// SQLite has no bind-parameter support for ATTACH's alias or path, so this
// is deliberately a plain string format rather than a parameterized query.
func (h *DatabaseHandle) AttachDatabase(ctx context.Context, alias, path string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	stmt := fmt.Sprintf("ATTACH DATABASE '%s' AS %s", path, alias)
	if _, err := h.db.ExecContext(ctx, stmt); err != nil {
		return wrapErr(KindQuery, err, "attach error: %v", err)
	}
	return nil
}

// GetAttachedDatabases lists every database attached to this connection
// (the main database plus any shard aliases), via PRAGMA database_list.
func (h *DatabaseHandle) GetAttachedDatabases(ctx context.Context) ([]AttachedDatabase, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	rows, err := h.db.QueryContext(ctx, "PRAGMA database_list")
	if err != nil {
		return nil, wrapErr(KindQuery, err, "pragma error: %v", err)
	}
	defer rows.Close()

	var dbs []AttachedDatabase
	for rows.Next() {
		var seq int
		var name string
		var file sql.NullString
		if err := rows.Scan(&seq, &name, &file); err != nil {
			return nil, wrapErr(KindQuery, err, "%v", err)
		}
		dbs = append(dbs, AttachedDatabase{Seq: seq, Name: name, File: file.String})
	}
	return dbs, rows.Err()
}

// GetSchema returns the full table/view/index/trigger schema of the main
// database, including per-column foreign key resolution.
func (h *DatabaseHandle) GetSchema(ctx context.Context) (SchemaInfo, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var info SchemaInfo

	tableRows, err := h.db.QueryContext(ctx, "SELECT name, sql FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		return SchemaInfo{}, wrapErr(KindSchema, err, "schema query error: %v", err)
	}
	var tableNames []string
	var tableSQL = make(map[string]sql.NullString)
	for tableRows.Next() {
		var name string
		var tsql sql.NullString
		if err := tableRows.Scan(&name, &tsql); err != nil {
			tableRows.Close()
			return SchemaInfo{}, wrapErr(KindSchema, err, "%v", err)
		}
		tableNames = append(tableNames, name)
		tableSQL[name] = tsql
	}
	tableRows.Close()

	for _, name := range tableNames {
		columns, err := h.tableColumns(ctx, name)
		if err != nil {
			return SchemaInfo{}, err
		}
		tbl := TableInfo{Name: name, Columns: columns}
		if s := tableSQL[name]; s.Valid {
			tbl.SQL = s.String
		}
		info.Tables = append(info.Tables, tbl)
	}

	viewRows, err := h.db.QueryContext(ctx, "SELECT name, sql FROM sqlite_master WHERE type='view' ORDER BY name")
	if err != nil {
		return SchemaInfo{}, wrapErr(KindSchema, err, "view query error: %v", err)
	}
	for viewRows.Next() {
		var name string
		var vsql sql.NullString
		if err := viewRows.Scan(&name, &vsql); err != nil {
			viewRows.Close()
			return SchemaInfo{}, wrapErr(KindSchema, err, "%v", err)
		}
		info.Views = append(info.Views, ViewInfo{Name: name, SQL: vsql.String})
	}
	viewRows.Close()

	idxRows, err := h.db.QueryContext(ctx, "SELECT name, tbl_name, sql FROM sqlite_master WHERE type='index' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		return SchemaInfo{}, wrapErr(KindSchema, err, "index query error: %v", err)
	}
	for idxRows.Next() {
		var name, tblName string
		var isql sql.NullString
		if err := idxRows.Scan(&name, &tblName, &isql); err != nil {
			idxRows.Close()
			return SchemaInfo{}, wrapErr(KindSchema, err, "%v", err)
		}
		info.Indexes = append(info.Indexes, IndexInfo{
			Name: name, TableName: tblName, SQL: isql.String,
			Unique: isql.Valid && strings.Contains(isql.String, "UNIQUE"),
		})
	}
	idxRows.Close()

	trigRows, err := h.db.QueryContext(ctx, "SELECT name, tbl_name, sql FROM sqlite_master WHERE type='trigger' ORDER BY name")
	if err != nil {
		return SchemaInfo{}, wrapErr(KindSchema, err, "trigger query error: %v", err)
	}
	for trigRows.Next() {
		var name, tblName string
		var tsql sql.NullString
		if err := trigRows.Scan(&name, &tblName, &tsql); err != nil {
			trigRows.Close()
			return SchemaInfo{}, wrapErr(KindSchema, err, "%v", err)
		}
		info.Triggers = append(info.Triggers, TriggerInfo{Name: name, TableName: tblName, SQL: tsql.String})
	}
	trigRows.Close()

	return info, nil
}

func (h *DatabaseHandle) tableColumns(ctx context.Context, table string) ([]ColumnInfo, error) {
	fks, err := h.foreignKeysByColumn(ctx, table)
	if err != nil {
		return nil, err
	}

	rows, err := h.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, wrapErr(KindSchema, err, "%v", err)
	}
	defer rows.Close()

	var columns []ColumnInfo
	for rows.Next() {
		var cid int
		var name, dataType string
		var notNull int
		var defaultValue sql.NullString
		var pk int
		if err := rows.Scan(&cid, &name, &dataType, &notNull, &defaultValue, &pk); err != nil {
			return nil, wrapErr(KindSchema, err, "%v", err)
		}
		col := ColumnInfo{
			Name:       name,
			DataType:   dataType,
			NotNull:    notNull != 0,
			PrimaryKey: pk != 0,
		}
		if defaultValue.Valid {
			col.DefaultValue = defaultValue.String
			col.HasDefault = true
		}
		if fk, ok := fks[name]; ok {
			col.ForeignKey = &fk
		}
		columns = append(columns, col)
	}
	return columns, rows.Err()
}

func (h *DatabaseHandle) foreignKeysByColumn(ctx context.Context, table string) (map[string]ForeignKeyInfo, error) {
	rows, err := h.db.QueryContext(ctx, fmt.Sprintf("PRAGMA foreign_key_list(%s)", table))
	if err != nil {
		return nil, wrapErr(KindSchema, err, "%v", err)
	}
	defer rows.Close()

	fks := make(map[string]ForeignKeyInfo)
	for rows.Next() {
		var id, seq int
		var refTable, from, to string
		var onUpdate, onDelete, match string
		if err := rows.Scan(&id, &seq, &refTable, &from, &to, &onUpdate, &onDelete, &match); err != nil {
			return nil, wrapErr(KindSchema, err, "%v", err)
		}
		fks[from] = ForeignKeyInfo{Table: refTable, Column: to}
	}
	return fks, rows.Err()
}
