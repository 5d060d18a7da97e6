/*-------------------------------------------------------------------------
 *
 * SQL Sandbox - Core Types
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

// Package sandbox normalizes untrusted tabular uploads (SQLite files, SQL
// dumps, CSV, XLSX) into an ephemeral per-session SQLite store and answers
// natural language questions against it via LLM-generated SQL. Generated SQL
// is statically validated and executed on a read-only connection with a
// wall-clock timeout and a row cap.
package sandbox

import "time"

// SourceFormat tags the originating upload format of a normalized store.
type SourceFormat string

const (
	FormatNative      SourceFormat = "native"
	FormatDump        SourceFormat = "dump"
	FormatCSV         SourceFormat = "csv"
	FormatSpreadsheet SourceFormat = "spreadsheet"
)

// Limits bounds resource usage for a sandbox. The zero value is not usable;
// call DefaultLimits.
type Limits struct {
	// MaxRows is the hard cap on rows returned by a single query.
	MaxRows int

	// QueryTimeout bounds the wall-clock time of a single query execution.
	QueryTimeout time.Duration

	// MaxUploadBytes rejects oversized uploads before any parsing.
	MaxUploadBytes int64

	// HistoryLimit caps the per-session query history; older records are
	// discarded first.
	HistoryLimit int
}

// DefaultLimits returns the standard sandbox resource bounds.
func DefaultLimits() Limits {
	return Limits{
		MaxRows:        1000,
		QueryTimeout:   5 * time.Second,
		MaxUploadBytes: 50 * 1024 * 1024,
		HistoryLimit:   100,
	}
}

// ColumnInfo describes a single column of an ingested table.
type ColumnInfo struct {
	Name       string
	Type       string
	PrimaryKey bool
}

// TableInfo describes a single ingested table.
type TableInfo struct {
	Name     string
	Columns  []ColumnInfo
	RowCount int64
}

// DatabaseInfo is an immutable snapshot of a normalized store, produced by a
// successful ingest and owned by the session that performed it. StorePath is
// only meaningful inside the owning session's storage root.
type DatabaseInfo struct {
	StorePath        string
	Tables           []string
	Schema           string
	RowCounts        map[string]int64
	SourceFormat     SourceFormat
	OriginalFilename string
}

// QueryResult is the outcome of one query attempt. All failure modes are
// captured in Error with Success false; execution never panics or returns a
// Go error across the subsystem boundary.
type QueryResult struct {
	Success      bool            `json:"success"`
	SQL          string          `json:"sql"`
	Columns      []string        `json:"columns"`
	Rows         [][]interface{} `json:"rows"`
	RowCount     int             `json:"row_count"`
	Truncated    bool            `json:"truncated"`
	LatencyMS    int64           `json:"latency_ms"`
	Model        string          `json:"model,omitempty"`
	FallbackUsed bool            `json:"fallback_used,omitempty"`
	Error        string          `json:"error,omitempty"`
}

// HistoryEntry records one question asked within a session.
type HistoryEntry struct {
	Question  string    `json:"question"`
	SQL       string    `json:"sql"`
	Success   bool      `json:"success"`
	Timestamp time.Time `json:"timestamp"`
}

// SchemaSnapshot is the introspection view returned by Session.Schema.
type SchemaSnapshot struct {
	Tables           []TableSummary `json:"tables"`
	SchemaText       string         `json:"schema_text"`
	SourceFormat     SourceFormat   `json:"source_format,omitempty"`
	OriginalFilename string         `json:"original_filename,omitempty"`
}

// TableSummary pairs a table name with its row count at ingestion time.
type TableSummary struct {
	Name     string `json:"name"`
	RowCount int64  `json:"row_count"`
}
