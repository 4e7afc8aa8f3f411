// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package sqlite3x

import (
	"context"
	"fmt"
	"strings"
)

// GlobalIndexManager provides cross-shard uniqueness and index-coverage
// checks on top of a PartitionManager, since no single shard's own indices
// can enforce a uniqueness constraint that spans every shard.
type GlobalIndexManager struct {
	manager *PartitionManager
}

func NewGlobalIndexManager(manager *PartitionManager) *GlobalIndexManager {
	return &GlobalIndexManager{manager: manager}
}

// CheckGlobalUniqueness reports whether no shard currently holds a row with
// columnName = value in tableName.
func (g *GlobalIndexManager) CheckGlobalUniqueness(ctx context.Context, tableName, columnName, value string) (bool, error) {
	escaped := strings.ReplaceAll(value, "'", "''")
	sql := fmt.Sprintf("SELECT COUNT(*) as cnt FROM %s WHERE %s = '%s'", tableName, columnName, escaped)

	result, err := g.manager.QueryPartitioned(ctx, sql)
	if err != nil {
		return false, err
	}

	var total int64
	for _, row := range result.Rows {
		if len(row) == 0 {
			continue
		}
		switch n := row[0].(type) {
		case int64:
			total += n
		case float64:
			total += int64(n)
		}
	}
	return total == 0, nil
}

// AnalyzeIndexCoverage delegates to the partition manager's shard-key index
// verification.
func (g *GlobalIndexManager) AnalyzeIndexCoverage(ctx context.Context) ([]string, error) {
	return g.manager.VerifyShardKeyIndices(ctx)
}

// UniqueInsertPartitioned checks global uniqueness for uniqueColumn/value
// before delegating the actual write to ExecutePartitioned, so a violation
// is reported without ever issuing the insert.
func (g *GlobalIndexManager) UniqueInsertPartitioned(ctx context.Context, sql, tableName, uniqueColumn, value string) (int64, error) {
	unique, err := g.CheckGlobalUniqueness(ctx, tableName, uniqueColumn, value)
	if err != nil {
		return 0, err
	}
	if !unique {
		return 0, ErrGlobalUniquenessViolation("column '%s' with value '%s'", uniqueColumn, value)
	}
	return g.manager.ExecutePartitioned(ctx, sql)
}
