/*-------------------------------------------------------------------------
 *
 * SQL Sandbox - Store Introspection
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package sandbox

import (
	"database/sql"
	"fmt"
	"strings"
)

// extractSchema introspects the final normalized store and builds the
// DatabaseInfo snapshot: table list, per-table columns with primary key
// markers, row counts, and the schema text handed to the LLM. It always runs
// against the store itself, never against transpiler output, so it is immune
// to transpilation quirks. An ingest that yields zero tables is an error,
// never an empty DatabaseInfo.
func extractSchema(storePath string, format SourceFormat, originalFilename string) (*DatabaseInfo, error) {
	db, err := sql.Open("sqlite", readOnlyDSN(storePath))
	if err != nil {
		return nil, newIngestError(IngestInvalidArtifact, "failed to open store: %v", err)
	}
	defer db.Close()

	tables, err := listTables(db)
	if err != nil {
		return nil, newIngestError(IngestInvalidArtifact, "failed to list tables: %v", err)
	}
	if len(tables) == 0 {
		return nil, newIngestError(IngestEmptyResult, "normalization produced no tables")
	}

	var schemaParts []string
	rowCounts := make(map[string]int64, len(tables))

	for _, table := range tables {
		columns, err := tableColumns(db, table)
		if err != nil {
			return nil, newIngestError(IngestInvalidArtifact, "failed to read columns of %s: %v", table, err)
		}

		var colDefs []string
		for _, col := range columns {
			def := fmt.Sprintf("  %s %s", col.Name, col.Type)
			if col.PrimaryKey {
				def += " PRIMARY KEY"
			}
			colDefs = append(colDefs, def)
		}
		schemaParts = append(schemaParts, fmt.Sprintf("TABLE %s:\n%s", table, strings.Join(colDefs, "\n")))

		var count int64
		if err := db.QueryRow("SELECT COUNT(*) FROM " + quoteIdentifier(table)).Scan(&count); err != nil {
			return nil, newIngestError(IngestInvalidArtifact, "failed to count rows of %s: %v", table, err)
		}
		rowCounts[table] = count
	}

	return &DatabaseInfo{
		StorePath:        storePath,
		Tables:           tables,
		Schema:           strings.Join(schemaParts, "\n\n"),
		RowCounts:        rowCounts,
		SourceFormat:     format,
		OriginalFilename: originalFilename,
	}, nil
}

// listTables returns user table names in a stable order.
func listTables(db *sql.DB) ([]string, error) {
	rows, err := db.Query(
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// tableColumns reads column metadata for one table via PRAGMA table_info.
func tableColumns(db *sql.DB, table string) ([]ColumnInfo, error) {
	rows, err := db.Query("PRAGMA table_info(" + quoteIdentifier(table) + ")")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []ColumnInfo
	for rows.Next() {
		var (
			cid, notNull, pk int
			name, colType    string
			dflt             sql.NullString
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}
		if colType == "" {
			colType = "TEXT"
		}
		columns = append(columns, ColumnInfo{Name: name, Type: colType, PrimaryKey: pk > 0})
	}
	return columns, rows.Err()
}

// quoteIdentifier double-quotes an identifier for safe interpolation. Native
// uploads can carry arbitrary table names, so quoting is not optional.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
