// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package sqlite3x

import (
	"context"
	"fmt"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"
)

// PartitionPolicy configures retention-based maintenance for one table.
type PartitionPolicy struct {
	TableName    string `json:"table_name"`
	DateColumn   string `json:"date_column"`
	Interval     string `json:"interval"`
	Retention    uint32 `json:"retention"`
	AutoIndexing bool   `json:"auto_indexing"`
}

// PartitionConfig is the full sharding configuration a PartitionManager runs
// under: strategy, shard file paths, the (optional) partition key column,
// and any retention policies.
type PartitionConfig struct {
	Strategy  Strategy          `json:"strategy"`
	Shards    []string          `json:"shards"`
	KeyColumn string            `json:"key_column,omitempty"`
	Policies  []PartitionPolicy `json:"policies"`
}

// NewPartitionConfig builds a config with no key column and no policies set.
func NewPartitionConfig(strategy Strategy, shards []string) PartitionConfig {
	return PartitionConfig{Strategy: strategy, Shards: shards}
}

// Validate enforces the invariants every PartitionManager requires before
// it will attach shards: at least one shard, and a key column whenever the
// strategy needs one to compute a shard index.
func (c PartitionConfig) Validate() error {
	if len(c.Shards) == 0 {
		return ErrShardingPolicyViolation("at least one shard is required")
	}
	if (c.Strategy == StrategyHash || c.Strategy == StrategyRange) && c.KeyColumn == "" {
		return ErrShardingPolicyViolation("key column is required for hash or range strategy")
	}
	return nil
}

const parseCacheCapacity = 1000

// PartitionManager attaches shard files to one coordinator connection and
// routes queries/writes across them.
type PartitionManager struct {
	mainDB *DatabaseHandle

	shardMu sync.Mutex
	shards  map[string]*DatabaseHandle // alias -> same physical connection as mainDB

	configMu sync.RWMutex
	config   PartitionConfig

	selector *selector
	parser   *Parser

	parseCache *lru.Cache[string, ParsedStatement]
}

// NewPartitionManager validates config and constructs a manager ready for
// InitializeShards.
func NewPartitionManager(mainDB *DatabaseHandle, config PartitionConfig) (*PartitionManager, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	cache, err := lru.New[string, ParsedStatement](parseCacheCapacity)
	if err != nil {
		return nil, wrapErr(KindQuery, err, "failed to create parse cache: %v", err)
	}
	return &PartitionManager{
		mainDB:     mainDB,
		shards:     make(map[string]*DatabaseHandle),
		config:     config,
		selector:   newSelector(),
		parser:     NewParser(),
		parseCache: cache,
	}, nil
}

// GetConfig returns a copy of the current partition configuration.
func (m *PartitionManager) GetConfig() PartitionConfig {
	m.configMu.RLock()
	defer m.configMu.RUnlock()
	return m.config
}

// InitializeShards attaches every configured shard file to the coordinator
// connection under its `shard_<n>` alias. All aliases map to the SAME
// physical DatabaseHandle as mainDB: ATTACH DATABASE joins the shard's
// schema into the one connection's namespace, it does not open a second
// connection.
func (m *PartitionManager) InitializeShards(ctx context.Context) error {
	m.configMu.RLock()
	shardPaths := append([]string(nil), m.config.Shards...)
	m.configMu.RUnlock()

	m.shardMu.Lock()
	defer m.shardMu.Unlock()

	for i, shardPath := range shardPaths {
		alias := shardAlias(i)
		if err := m.mainDB.AttachDatabase(ctx, alias, shardPath); err != nil {
			return err
		}
		m.shards[alias] = m.mainDB
	}
	return nil
}

// SelectShard resolves partitionKey to a shard alias under the manager's
// configured strategy.
func (m *PartitionManager) SelectShard(partitionKey string) (string, error) {
	m.configMu.RLock()
	strategy := m.config.Strategy
	shardCount := len(m.config.Shards)
	m.configMu.RUnlock()

	return m.selector.Select(strategy, partitionKey, shardCount)
}

// GetShard returns the handle backing alias, if attached.
func (m *PartitionManager) GetShard(alias string) (*DatabaseHandle, bool) {
	m.shardMu.Lock()
	defer m.shardMu.Unlock()
	h, ok := m.shards[alias]
	return h, ok
}

func (m *PartitionManager) attachedShardNames() []string {
	m.shardMu.Lock()
	defer m.shardMu.Unlock()
	names := make([]string, 0, len(m.shards))
	for alias := range m.shards {
		names = append(names, alias)
	}
	return names
}

// modifySQLForShard rewrites the table reference following ` FROM `,
// ` INTO `, or a leading `UPDATE ` to `<alias>.<table>`, leaving the
// statement untouched if the table is already qualified (making the rewrite
// idempotent, property P6). INTO and UPDATE are rewritten alongside FROM so
// that INSERT and UPDATE statements actually land on the single shard
// ExecutePartitioned selected, rather than falling back to SQLite's
// attached-database search order.
func (m *PartitionManager) modifySQLForShard(sql, alias string) string {
	if rewritten, ok := qualifyTableAfterKeyword(sql, alias, " FROM "); ok {
		return rewritten
	}
	if rewritten, ok := qualifyTableAfterKeyword(sql, alias, " INTO "); ok {
		return rewritten
	}
	if rewritten, ok := qualifyUpdateTarget(sql, alias); ok {
		return rewritten
	}
	return sql
}

func qualifyUpdateTarget(sql, alias string) (string, bool) {
	if len(sql) < 7 || !strings.EqualFold(sql[:7], "UPDATE ") {
		return sql, false
	}
	rest := sql[7:]
	end := strings.IndexAny(rest, " (,;\n\r")
	if end < 0 {
		end = len(rest)
	}
	table := strings.TrimSpace(rest[:end])
	if table == "" || strings.Contains(table, ".") {
		return sql, false
	}
	return fmt.Sprintf("%s%s.%s%s", sql[:7], alias, table, rest[end:]), true
}

func qualifyTableAfterKeyword(sql, alias, keyword string) (string, bool) {
	upper := strings.ToUpper(sql)
	pos := strings.Index(upper, strings.ToUpper(keyword))
	if pos < 0 {
		return sql, false
	}
	rest := sql[pos+len(keyword):]
	end := strings.IndexAny(rest, " (,;\n\r")
	if end < 0 {
		end = len(rest)
	}
	table := strings.TrimSpace(rest[:end])
	if table == "" || strings.Contains(table, ".") {
		return sql, false
	}
	return fmt.Sprintf("%s%s.%s%s", sql[:pos+len(keyword)], alias, table, rest[end:]), true
}

// QueryPartitioned runs a SELECT across the shards that can hold matching
// rows: if the configured key column appears in a `<key> = <value>` WHERE
// fragment, the query is routed to the single owning shard; otherwise (or if
// key extraction fails) it fans out to every attached shard and concatenates
// the rows. The parsed statement is cached by normalized SQL text, bounded
// to parseCacheCapacity entries.
func (m *PartitionManager) QueryPartitioned(ctx context.Context, sql string) (QueryResult, error) {
	normalized := strings.TrimSpace(sql)

	parsed, ok := m.parseCache.Get(normalized)
	if !ok {
		p, err := m.parser.ParseSelect(normalized)
		if err != nil {
			return QueryResult{}, err
		}
		m.parseCache.Add(normalized, p)
		parsed = p
	}

	keyColumn := m.GetConfig().KeyColumn

	var targets []string
	if keyColumn != "" && parsed.HasWhere &&
		strings.Contains(strings.ToUpper(parsed.WhereClause), strings.ToUpper(keyColumn+" =")) {
		val, err := m.parser.ExtractPartitionKeyValue(parsed, keyColumn)
		if err != nil {
			targets = m.attachedShardNames()
		} else {
			alias, err := m.SelectShard(val)
			if err != nil {
				return QueryResult{}, err
			}
			targets = []string{alias}
		}
	} else {
		targets = m.attachedShardNames()
	}

	var result QueryResult
	for _, alias := range targets {
		shard, ok := m.GetShard(alias)
		if !ok {
			continue
		}
		modified := m.modifySQLForShard(sql, alias)
		res, err := shard.Query(ctx, modified)
		if err != nil {
			return QueryResult{}, err
		}
		if len(result.Columns) == 0 {
			result.Columns = res.Columns
			result.ColumnTypes = res.ColumnTypes
		}
		result.Rows = append(result.Rows, res.Rows...)
	}
	return result, nil
}

// ExecutePartitioned routes a single INSERT/UPDATE/DELETE to the one shard
// its partition key resolves to. A key column must be configured and
// present in the statement; there is no fan-out write path.
func (m *PartitionManager) ExecutePartitioned(ctx context.Context, sql string) (int64, error) {
	trimmed := strings.TrimSpace(sql)
	upper := strings.ToUpper(trimmed)

	var parsed ParsedStatement
	var err error
	switch {
	case strings.HasPrefix(upper, "INSERT"):
		parsed, err = m.parser.ParseInsert(trimmed)
	case strings.HasPrefix(upper, "UPDATE"):
		parsed, err = m.parser.ParseUpdate(trimmed)
	case strings.HasPrefix(upper, "DELETE"):
		parsed, err = m.parser.ParseDelete(trimmed)
	default:
		return 0, ErrQuery("only INSERT/UPDATE/DELETE supported")
	}
	if err != nil {
		return 0, err
	}

	keyColumn := m.GetConfig().KeyColumn
	if keyColumn == "" {
		return 0, ErrQuery("key column not configured")
	}

	val, err := m.parser.ExtractPartitionKeyValue(parsed, keyColumn)
	if err != nil {
		return 0, err
	}
	alias, err := m.SelectShard(val)
	if err != nil {
		return 0, err
	}
	shard, ok := m.GetShard(alias)
	if !ok {
		return 0, ErrShardNotFound("shard %s not found", alias)
	}

	modified := m.modifySQLForShard(sql, alias)
	return shard.Execute(ctx, modified)
}

// CreatePartitionPolicy registers a retention policy. One policy per table.
func (m *PartitionManager) CreatePartitionPolicy(policy PartitionPolicy) error {
	m.configMu.Lock()
	defer m.configMu.Unlock()

	for _, p := range m.config.Policies {
		if p.TableName == policy.TableName {
			return ErrQuery("policy for %s already exists", policy.TableName)
		}
	}
	m.config.Policies = append(m.config.Policies, policy)
	return nil
}

// DeletePartitionPolicy removes the policy for tableName.
func (m *PartitionManager) DeletePartitionPolicy(tableName string) error {
	m.configMu.Lock()
	defer m.configMu.Unlock()

	kept := m.config.Policies[:0]
	found := false
	for _, p := range m.config.Policies {
		if p.TableName == tableName {
			found = true
			continue
		}
		kept = append(kept, p)
	}
	if !found {
		return ErrQuery("policy for %s not found", tableName)
	}
	m.config.Policies = kept
	return nil
}

// VerifyShardKeyIndices reports, as "<alias>.<table>" strings, every
// shard/table pair that has a configured policy but no index covering the
// partition key column.
func (m *PartitionManager) VerifyShardKeyIndices(ctx context.Context) ([]string, error) {
	config := m.GetConfig()
	if config.KeyColumn == "" {
		return nil, nil
	}

	var missing []string
	m.shardMu.Lock()
	shards := make(map[string]*DatabaseHandle, len(m.shards))
	for alias, h := range m.shards {
		shards[alias] = h
	}
	m.shardMu.Unlock()

	for alias, db := range shards {
		for _, policy := range config.Policies {
			covered, err := m.shardHasKeyIndex(ctx, db, alias, policy.TableName, config.KeyColumn)
			if err != nil {
				return nil, err
			}
			if !covered {
				missing = append(missing, fmt.Sprintf("%s.%s", alias, policy.TableName))
			}
		}
	}
	return missing, nil
}

func (m *PartitionManager) shardHasKeyIndex(ctx context.Context, db *DatabaseHandle, alias, table, keyColumn string) (bool, error) {
	listSQL := fmt.Sprintf("PRAGMA %s.index_list(%s)", alias, table)
	listRes, err := db.Query(ctx, listSQL)
	if err != nil {
		return false, err
	}
	for _, row := range listRes.Rows {
		if len(row) < 2 {
			continue
		}
		idxName, ok := row[1].(string)
		if !ok {
			continue
		}
		infoSQL := fmt.Sprintf("PRAGMA %s.index_info('%s')", alias, idxName)
		infoRes, err := db.Query(ctx, infoSQL)
		if err != nil {
			return false, err
		}
		for _, infoRow := range infoRes.Rows {
			if len(infoRow) < 3 {
				continue
			}
			col, ok := infoRow[2].(string)
			if ok && col == keyColumn {
				return true, nil
			}
		}
	}
	return false, nil
}

// EnsureShardKeyIndices creates a `idx_<table>_<key>_shardkey` index on the
// partition key column for every policy-covered table on every shard, if
// missing.
func (m *PartitionManager) EnsureShardKeyIndices(ctx context.Context) error {
	config := m.GetConfig()
	if config.KeyColumn == "" {
		return nil
	}

	m.shardMu.Lock()
	shards := make(map[string]*DatabaseHandle, len(m.shards))
	for alias, h := range m.shards {
		shards[alias] = h
	}
	m.shardMu.Unlock()

	for alias, db := range shards {
		for _, policy := range config.Policies {
			stmt := fmt.Sprintf(
				"CREATE INDEX IF NOT EXISTS %s.idx_%s_%s_shardkey ON %s(%s)",
				alias, policy.TableName, config.KeyColumn, policy.TableName, config.KeyColumn,
			)
			if _, err := db.Execute(ctx, stmt); err != nil {
				return err
			}
		}
	}
	return nil
}

// RunPartitionMaintenance deletes rows older than each policy's retention
// window from every shard. Failures on individual shards/policies are
// absorbed rather than aborting the run — the original rationale is that one
// shard's transient failure shouldn't block pruning the rest — so only the
// rows successfully deleted are counted and returned.
func (m *PartitionManager) RunPartitionMaintenance(ctx context.Context) int64 {
	config := m.GetConfig()

	m.shardMu.Lock()
	shards := make(map[string]*DatabaseHandle, len(m.shards))
	for alias, h := range m.shards {
		shards[alias] = h
	}
	m.shardMu.Unlock()

	var totalDeleted int64
	for _, policy := range config.Policies {
		for alias, db := range shards {
			stmt := fmt.Sprintf(
				"DELETE FROM %s.%s WHERE %s < date('now', '-%d %s')",
				alias, policy.TableName, policy.DateColumn, policy.Retention, policy.Interval,
			)
			affected, err := db.Execute(ctx, stmt)
			if err != nil {
				log.Warn().Err(err).Str("shard", alias).Str("table", policy.TableName).Msg("partition maintenance delete failed")
				continue
			}
			totalDeleted += affected
		}
		if policy.AutoIndexing {
			if err := m.EnsureShardKeyIndices(ctx); err != nil {
				log.Warn().Err(err).Str("table", policy.TableName).Msg("auto-indexing failed during maintenance")
			}
		}
	}
	return totalDeleted
}
