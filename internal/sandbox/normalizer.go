/*-------------------------------------------------------------------------
 *
 * SQL Sandbox - Upload Normalization
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package sandbox

import (
	"bytes"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"sqlsandbox/internal/logging"
)

// supportedExtensions maps upload extensions to their source format tag.
var supportedExtensions = map[string]SourceFormat{
	".sqlite":  FormatNative,
	".db":      FormatNative,
	".sqlite3": FormatNative,
	".sql":     FormatDump,
	".csv":     FormatCSV,
	".xlsx":    FormatSpreadsheet,
}

// normalizer converts uploads of any supported format into a single SQLite
// store inside the owning session's storage root.
type normalizer struct {
	dir    string
	limits Limits
}

// ingest normalizes one upload and returns its schema snapshot. The filename
// decides the strategy; bytes that do not parse as the claimed format are
// rejected, as is any normalization that produces zero tables.
func (n *normalizer) ingest(raw []byte, originalFilename string) (*DatabaseInfo, error) {
	ext := strings.ToLower(filepath.Ext(originalFilename))
	format, ok := supportedExtensions[ext]
	if !ok {
		return nil, newIngestError(IngestUnsupportedFormat,
			"unsupported file type %q (supported: %s)", ext, supportedExtensionList())
	}

	if int64(len(raw)) > n.limits.MaxUploadBytes {
		return nil, newIngestError(IngestInvalidArtifact,
			"file exceeds the %d MB upload limit", n.limits.MaxUploadBytes/(1024*1024))
	}

	storePath := filepath.Join(n.dir, "db_"+uuid.NewString()+".sqlite")

	var err error
	switch format {
	case FormatNative:
		err = n.ingestNative(raw, storePath)
	case FormatDump:
		err = n.ingestDump(raw, storePath)
	case FormatCSV:
		err = n.ingestCSV(raw, originalFilename, storePath)
	case FormatSpreadsheet:
		err = n.ingestXLSX(raw, storePath)
	}
	if err != nil {
		os.Remove(storePath)
		var ingestErr *IngestError
		if errors.As(err, &ingestErr) {
			return nil, err
		}
		return nil, newIngestError(IngestInvalidArtifact, "failed to process %s file: %v", format, err)
	}

	info, err := extractSchema(storePath, format, originalFilename)
	if err != nil {
		os.Remove(storePath)
		return nil, err
	}

	logging.Info("ingested upload",
		"filename", originalFilename, "format", string(format), "tables", len(info.Tables))
	return info, nil
}

// ingestNative copies a native SQLite file into the session scope and probes
// it read-only; an unreadable file is rejected and discarded.
func (n *normalizer) ingestNative(raw []byte, storePath string) error {
	if err := os.WriteFile(storePath, raw, 0o600); err != nil {
		return fmt.Errorf("failed to stage upload: %w", err)
	}

	db, err := sql.Open("sqlite", readOnlyDSN(storePath))
	if err != nil {
		return newIngestError(IngestInvalidArtifact, "not a valid SQLite database: %v", err)
	}
	defer db.Close()

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master").Scan(&count); err != nil {
		return newIngestError(IngestInvalidArtifact, "not a valid SQLite database: %v", err)
	}
	return nil
}

// ingestDump transpiles a MySQL/PostgreSQL-style dump and replays it into a
// fresh store inside a single transaction.
func (n *normalizer) ingestDump(raw []byte, storePath string) error {
	result := Transpile(string(raw))
	if len(result.Statements) == 0 {
		return emptyDumpError(result)
	}

	db, err := sql.Open("sqlite", "file:"+storePath)
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}
	defer db.Close()

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	for _, stmt := range result.Statements {
		if _, err := tx.Exec(stmt.SQL); err != nil {
			tx.Rollback()
			if strings.Contains(strings.ToLower(err.Error()), "syntax error") {
				return newIngestError(IngestInvalidArtifact,
					"SQL syntax error: %v. The dump may use database-specific syntax that could not be converted; try exporting as SQLite or CSV instead", err)
			}
			return newIngestError(IngestInvalidArtifact, "SQL execution error: %v", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit dump: %w", err)
	}

	tables, err := listTables(db)
	if err != nil {
		return fmt.Errorf("failed to inspect store: %w", err)
	}
	if len(tables) == 0 {
		return emptyDumpError(result)
	}
	return nil
}

// emptyDumpError distinguishes "nothing convertible was in the file" from
// "statements were there but could not be converted".
func emptyDumpError(result TranspileResult) error {
	if result.Dropped > 0 {
		return newIngestError(IngestEmptyResult,
			"no tables were created from the SQL dump: %d statements use unsupported syntax", result.Dropped)
	}
	return newIngestError(IngestEmptyResult,
		"no tables were created from the SQL dump; the file may contain only comments. Ensure the dump contains CREATE TABLE statements")
}

// ingestCSV loads one CSV file as a single table named after the file.
func (n *normalizer) ingestCSV(raw []byte, originalFilename, storePath string) error {
	reader := csv.NewReader(bytes.NewReader(raw))
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		return newIngestError(IngestInvalidArtifact, "CSV file is empty")
	}
	if err != nil {
		return newIngestError(IngestInvalidArtifact, "failed to parse CSV header: %v", err)
	}

	records, err := reader.ReadAll()
	if err != nil {
		return newIngestError(IngestInvalidArtifact, "failed to parse CSV rows: %v", err)
	}

	db, err := sql.Open("sqlite", "file:"+storePath)
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}
	defer db.Close()

	stem := strings.TrimSuffix(filepath.Base(originalFilename), filepath.Ext(originalFilename))
	return loadTable(db, sanitizeTableName(stem), sanitizeColumnNames(header), records)
}

// ingestXLSX loads a spreadsheet workbook, one table per non-empty sheet.
func (n *normalizer) ingestXLSX(raw []byte, storePath string) error {
	workbook, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		return newIngestError(IngestInvalidArtifact, "not a valid XLSX workbook: %v", err)
	}
	defer workbook.Close()

	db, err := sql.Open("sqlite", "file:"+storePath)
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}
	defer db.Close()

	loaded := 0
	for _, sheet := range workbook.GetSheetList() {
		rows, err := workbook.GetRows(sheet)
		if err != nil {
			return newIngestError(IngestInvalidArtifact, "failed to read sheet %q: %v", sheet, err)
		}
		if len(rows) == 0 {
			continue
		}

		columns := sanitizeColumnNames(rows[0])
		// Trailing empty cells are trimmed per row by the reader, so pad
		// every data row back to header width.
		records := make([][]string, 0, len(rows)-1)
		for _, row := range rows[1:] {
			if len(row) > len(columns) {
				row = row[:len(columns)]
			}
			for len(row) < len(columns) {
				row = append(row, "")
			}
			records = append(records, row)
		}

		if err := loadTable(db, sanitizeTableName(sheet), columns, records); err != nil {
			return err
		}
		loaded++
	}

	if loaded == 0 {
		return newIngestError(IngestEmptyResult, "workbook contains no non-empty sheets")
	}
	return nil
}

// loadTable bulk-loads string records into a freshly created table,
// overwriting any table of the same name from earlier in this ingest.
func loadTable(db *sql.DB, table string, columns []string, records [][]string) error {
	quotedCols := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	for i, col := range columns {
		quotedCols[i] = quoteIdentifier(col) + " TEXT"
		placeholders[i] = "?"
	}

	if _, err := db.Exec("DROP TABLE IF EXISTS " + quoteIdentifier(table)); err != nil {
		return fmt.Errorf("failed to reset table %s: %w", table, err)
	}
	if _, err := db.Exec(fmt.Sprintf("CREATE TABLE %s (%s)",
		quoteIdentifier(table), strings.Join(quotedCols, ", "))); err != nil {
		return fmt.Errorf("failed to create table %s: %w", table, err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin bulk load: %w", err)
	}
	stmt, err := tx.Prepare(fmt.Sprintf("INSERT INTO %s VALUES (%s)",
		quoteIdentifier(table), strings.Join(placeholders, ", ")))
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare bulk load: %w", err)
	}

	for _, record := range records {
		args := make([]interface{}, len(record))
		for i, v := range record {
			args[i] = v
		}
		if _, err := stmt.Exec(args...); err != nil {
			stmt.Close()
			tx.Rollback()
			return newIngestError(IngestInvalidArtifact, "failed to load row into %s: %v", table, err)
		}
	}
	stmt.Close()
	return tx.Commit()
}

var (
	nonWordRe       = regexp.MustCompile(`\W`)
	underscoreRunRe = regexp.MustCompile(`_+`)
)

// sanitizeColumnName makes an arbitrary header cell safe as a SQL identifier:
// non-word characters become underscores, runs collapse, a leading digit gets
// a fixed prefix, and an empty name falls back to a placeholder.
func sanitizeColumnName(name string) string {
	name = nonWordRe.ReplaceAllString(name, "_")
	name = underscoreRunRe.ReplaceAllString(name, "_")
	name = strings.Trim(name, "_")
	if name != "" && name[0] >= '0' && name[0] <= '9' {
		name = "col_" + name
	}
	if name == "" {
		return "unnamed"
	}
	return name
}

// sanitizeColumnNames sanitizes a full header row and deduplicates collisions
// so the CREATE TABLE never fails on two headers collapsing to one name.
// Collisions are detected case-insensitively because column names are.
func sanitizeColumnNames(header []string) []string {
	seen := make(map[string]int, len(header))
	out := make([]string, len(header))
	for i, raw := range header {
		name := sanitizeColumnName(raw)
		key := strings.ToLower(name)
		seen[key]++
		if n := seen[key]; n > 1 {
			name = fmt.Sprintf("%s_%d", name, n)
		}
		out[i] = name
	}
	return out
}

// sanitizeTableName applies the column sanitizer plus a length cap.
func sanitizeTableName(name string) string {
	name = sanitizeColumnName(name)
	if len(name) > 64 {
		name = name[:64]
	}
	return name
}

func supportedExtensionList() string {
	exts := make([]string, 0, len(supportedExtensions))
	for ext := range supportedExtensions {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return strings.Join(exts, ", ")
}
