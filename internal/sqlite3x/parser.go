// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package sqlite3x

import (
	"strconv"
	"strings"
)

// StatementKind identifies the recognized shape of a parsed SQL statement.
type StatementKind int

const (
	StatementInsert StatementKind = iota
	StatementUpdate
	StatementDelete
	StatementSelect
)

// ParsedStatement is the shape a statement is reduced to once it clears the
// admission filter and one of the four shape recognizers.
type ParsedStatement struct {
	Kind        StatementKind
	TableName   string
	Columns     []string
	Values      []string
	WhereClause string
	HasWhere    bool
	SetClause   string
	HasSet      bool
}

// Parser recognizes INSERT/UPDATE/DELETE/SELECT statements by string scanning
// only — no SQL grammar dependency, matching the router's long-standing
// design choice to keep this admission filter auditable line by line.
type Parser struct{}

func NewParser() *Parser { return &Parser{} }

// detectInjectionPatterns is the admission filter every recognizer runs
// before attempting to parse: only the four DML verbs are allowed, DDL
// keywords and comment markers are rejected outright, and nested SELECTs
// (subqueries) are rejected since the rewriter cannot safely qualify them.
func (p *Parser) detectInjectionPatterns(sql string) error {
	upper := strings.ToUpper(strings.TrimSpace(sql))

	allowedPrefixes := []string{"INSERT", "UPDATE", "DELETE", "SELECT"}
	allowed := false
	for _, prefix := range allowedPrefixes {
		if strings.HasPrefix(upper, prefix) {
			allowed = true
			break
		}
	}
	if !allowed {
		return ErrInvalidSQL("only INSERT, UPDATE, DELETE, SELECT statements are supported for partitioning")
	}

	for _, keyword := range []string{" DROP ", " ALTER ", " CREATE ", " TRUNCATE "} {
		if strings.Contains(upper, keyword) {
			return ErrInvalidSQL("DDL statements are not supported for partitioning: '%s'", strings.TrimSpace(keyword))
		}
	}

	if strings.Contains(sql, "--") || strings.Contains(sql, "/*") || strings.Contains(sql, "*/") {
		return ErrInvalidSQL("SQL comments are not allowed for security reasons")
	}

	if strings.Count(upper, "SELECT") > 1 {
		return ErrInvalidSQL("nested SELECT statements (subqueries) are not supported for partitioning")
	}

	return nil
}

func (p *Parser) validateIdentifier(identifier string) error {
	if identifier == "" {
		return ErrInvalidSQL("empty identifier not allowed")
	}
	runes := []rune(identifier)
	first := runes[0]
	if !isAlpha(first) && first != '_' {
		return ErrInvalidSQL("invalid identifier '%s': must start with letter or underscore", identifier)
	}
	for _, ch := range runes[1:] {
		if !isAlphaNumeric(ch) && ch != '_' {
			return ErrInvalidSQL("invalid identifier '%s': contains invalid character '%c'", identifier, ch)
		}
	}
	return nil
}

func isAlpha(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r > 127
}

func isAlphaNumeric(r rune) bool {
	return isAlpha(r) || (r >= '0' && r <= '9')
}

func indexAny(s string, cutset string) int {
	return strings.IndexAny(s, cutset)
}

// ParseInsert recognizes `INSERT INTO table [(cols...)] VALUES (vals...)`.
func (p *Parser) ParseInsert(sql string) (ParsedStatement, error) {
	if err := p.detectInjectionPatterns(sql); err != nil {
		return ParsedStatement{}, err
	}
	trimmed := strings.TrimSpace(sql)
	upper := strings.ToUpper(trimmed)
	if !strings.HasPrefix(upper, "INSERT INTO ") {
		return ParsedStatement{}, ErrInvalidSQL("not an INSERT statement")
	}

	afterInto := trimmed[12:]
	tableEnd := indexAny(afterInto, " (\n\r")
	if tableEnd < 0 {
		return ParsedStatement{}, ErrInvalidSQL("table name not found")
	}
	tableName := strings.TrimSpace(afterInto[:tableEnd])
	if err := p.validateIdentifier(tableName); err != nil {
		return ParsedStatement{}, err
	}

	rest := strings.TrimLeft(afterInto[tableEnd:], " \t\r\n")

	var columns, values []string
	if strings.HasPrefix(rest, "(") {
		colEnd := strings.Index(rest, ")")
		if colEnd < 0 {
			return ParsedStatement{}, ErrInvalidSQL("column list not closed")
		}
		for _, col := range strings.Split(rest[1:colEnd], ",") {
			col = strings.TrimSpace(col)
			if col == "" {
				continue
			}
			if err := p.validateIdentifier(col); err != nil {
				return ParsedStatement{}, err
			}
			columns = append(columns, col)
		}

		afterCols := strings.TrimLeft(rest[colEnd+1:], " \t\r\n")
		vals, err := parseValuesClause(afterCols)
		if err != nil {
			return ParsedStatement{}, err
		}
		values = vals
	} else {
		vals, err := parseValuesClause(rest)
		if err != nil {
			return ParsedStatement{}, err
		}
		values = vals
	}

	return ParsedStatement{Kind: StatementInsert, TableName: tableName, Columns: columns, Values: values}, nil
}

func parseValuesClause(rest string) ([]string, error) {
	if !strings.HasPrefix(strings.ToUpper(rest), "VALUES") {
		return nil, ErrInvalidSQL("VALUES keyword not found")
	}
	afterValues := strings.TrimLeft(rest[6:], " \t\r\n")
	if !strings.HasPrefix(afterValues, "(") {
		return nil, ErrInvalidSQL("VALUES clause not found")
	}
	valEnd := strings.Index(afterValues, ")")
	if valEnd < 0 {
		return nil, ErrInvalidSQL("VALUES clause not closed")
	}
	var values []string
	for _, v := range strings.Split(afterValues[1:valEnd], ",") {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		values = append(values, v)
	}
	return values, nil
}

// ParseUpdate recognizes `UPDATE table SET set_clause [WHERE where_clause]`.
func (p *Parser) ParseUpdate(sql string) (ParsedStatement, error) {
	if err := p.detectInjectionPatterns(sql); err != nil {
		return ParsedStatement{}, err
	}
	trimmed := strings.TrimSpace(sql)
	upper := strings.ToUpper(trimmed)
	if !strings.HasPrefix(upper, "UPDATE ") {
		return ParsedStatement{}, ErrInvalidSQL("not an UPDATE statement")
	}

	afterUpdate := trimmed[7:]
	tableEnd := indexAny(afterUpdate, " \n\r")
	if tableEnd < 0 {
		return ParsedStatement{}, ErrInvalidSQL("table name not found")
	}
	tableName := strings.TrimSpace(afterUpdate[:tableEnd])
	if err := p.validateIdentifier(tableName); err != nil {
		return ParsedStatement{}, err
	}

	rest := strings.TrimLeft(afterUpdate[tableEnd:], " \t\r\n")
	if !strings.HasPrefix(strings.ToUpper(rest), "SET") {
		return ParsedStatement{}, ErrInvalidSQL("SET keyword not found")
	}
	afterSet := strings.TrimLeft(rest[3:], " \t\r\n")

	stmt := ParsedStatement{Kind: StatementUpdate, TableName: tableName, HasSet: true}
	if wherePos := strings.Index(strings.ToUpper(afterSet), " WHERE "); wherePos >= 0 {
		stmt.SetClause = strings.TrimSpace(afterSet[:wherePos])
		stmt.WhereClause = strings.TrimSpace(afterSet[wherePos+7:])
		stmt.HasWhere = true
	} else {
		stmt.SetClause = strings.TrimSpace(afterSet)
	}
	return stmt, nil
}

// ParseDelete recognizes `DELETE FROM table [WHERE where_clause]`.
func (p *Parser) ParseDelete(sql string) (ParsedStatement, error) {
	if err := p.detectInjectionPatterns(sql); err != nil {
		return ParsedStatement{}, err
	}
	trimmed := strings.TrimSpace(sql)
	upper := strings.ToUpper(trimmed)
	if !strings.HasPrefix(upper, "DELETE FROM ") {
		return ParsedStatement{}, ErrInvalidSQL("not a DELETE statement")
	}

	afterFrom := trimmed[12:]
	tableEnd := indexAny(afterFrom, " ;\n\r")
	if tableEnd < 0 {
		tableEnd = len(afterFrom)
	}
	tableName := strings.TrimSpace(afterFrom[:tableEnd])
	if err := p.validateIdentifier(tableName); err != nil {
		return ParsedStatement{}, err
	}

	rest := strings.TrimLeft(afterFrom[tableEnd:], " \t\r\n")
	stmt := ParsedStatement{Kind: StatementDelete, TableName: tableName}
	if strings.HasPrefix(strings.ToUpper(rest), "WHERE") {
		stmt.WhereClause = strings.TrimSpace(rest[5:])
		stmt.HasWhere = true
	}
	return stmt, nil
}

// ParseSelect recognizes `SELECT ... FROM table [WHERE ...] [GROUP BY|ORDER BY|LIMIT ...]`.
func (p *Parser) ParseSelect(sql string) (ParsedStatement, error) {
	if err := p.detectInjectionPatterns(sql); err != nil {
		return ParsedStatement{}, err
	}
	trimmed := strings.TrimSpace(sql)
	upper := strings.ToUpper(trimmed)
	if !strings.HasPrefix(upper, "SELECT ") {
		return ParsedStatement{}, ErrInvalidSQL("not a SELECT statement")
	}

	fromPos := strings.Index(upper, " FROM ")
	if fromPos < 0 {
		return ParsedStatement{}, ErrInvalidSQL("FROM keyword not found")
	}
	afterFrom := trimmed[fromPos+6:]
	tableEnd := indexAny(afterFrom, " ;\n\r")
	if tableEnd < 0 {
		tableEnd = len(afterFrom)
	}
	tableName := strings.TrimSpace(afterFrom[:tableEnd])
	if err := p.validateIdentifier(tableName); err != nil {
		return ParsedStatement{}, err
	}

	rest := afterFrom[tableEnd:]
	stmt := ParsedStatement{Kind: StatementSelect, TableName: tableName}
	restUpper := strings.ToUpper(rest)
	if wherePos := strings.Index(restUpper, " WHERE "); wherePos >= 0 {
		afterWhere := rest[wherePos+7:]
		afterWhereUpper := strings.ToUpper(afterWhere)
		whereEnd := len(afterWhere)
		for _, clause := range []string{" GROUP BY ", " ORDER BY ", " LIMIT "} {
			if pos := strings.Index(afterWhereUpper, clause); pos >= 0 && pos < whereEnd {
				whereEnd = pos
			}
		}
		stmt.WhereClause = strings.TrimSpace(afterWhere[:whereEnd])
		stmt.HasWhere = true
	}
	return stmt, nil
}

// ExtractPartitionKeyValue pulls the partition-key literal out of a parsed
// statement: the INSERT values list by column position, or a `<key> = ...`
// fragment out of the WHERE clause for UPDATE/DELETE/SELECT.
func (p *Parser) ExtractPartitionKeyValue(stmt ParsedStatement, keyColumn string) (string, error) {
	switch stmt.Kind {
	case StatementInsert:
		idx := -1
		for i, col := range stmt.Columns {
			if strings.EqualFold(col, keyColumn) {
				idx = i
				break
			}
		}
		if idx < 0 {
			return "", ErrPartitionKeyNotFound("key '%s' not found in INSERT", keyColumn)
		}
		if idx >= len(stmt.Values) {
			return "", ErrPartitionKeyNotFound("value not found")
		}
		return stmt.Values[idx], nil
	case StatementUpdate, StatementDelete, StatementSelect:
		if !stmt.HasWhere {
			return "", ErrPartitionKeyNotFound("WHERE clause required")
		}
		pattern := keyColumn + " ="
		patternUpper := strings.ToUpper(pattern)
		whereUpper := strings.ToUpper(stmt.WhereClause)
		pos := strings.Index(whereUpper, patternUpper)
		if pos < 0 {
			return "", ErrPartitionKeyNotFound("key '%s' not found in WHERE", keyColumn)
		}
		afterEq := strings.TrimLeft(stmt.WhereClause[pos+len(pattern):], " \t")
		valueEnd := indexAny(afterEq, " ;\n\r")
		if valueEnd < 0 {
			valueEnd = len(afterEq)
		}
		return strings.Trim(strings.TrimSpace(afterEq[:valueEnd]), "'\"`"), nil
	default:
		return "", ErrPartitionKeyNotFound("unsupported statement kind")
	}
}

// parseInt64 is a small helper shared with the shard selector's Range strategy.
func parseInt64(s string) (int64, bool) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
