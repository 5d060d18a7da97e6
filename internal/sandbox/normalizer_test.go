/*-------------------------------------------------------------------------
 *
 * SQL Sandbox - Upload Normalization Tests
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
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func newTestNormalizer(t *testing.T) *normalizer {
	t.Helper()
	return &normalizer{dir: t.TempDir(), limits: DefaultLimits()}
}

func ingestKind(t *testing.T, err error) IngestErrorKind {
	t.Helper()
	var ingestErr *IngestError
	if !errors.As(err, &ingestErr) {
		t.Fatalf("expected IngestError, got %T: %v", err, err)
	}
	return ingestErr.Kind
}

func TestIngestUnsupportedExtension(t *testing.T) {
	n := newTestNormalizer(t)
	_, err := n.ingest([]byte("hello"), "notes.txt")
	if kind := ingestKind(t, err); kind != IngestUnsupportedFormat {
		t.Errorf("kind = %v, want unsupported format", kind)
	}
	if !strings.Contains(err.Error(), ".csv") {
		t.Errorf("error should list supported extensions, got: %v", err)
	}
}

func TestIngestOversizedUpload(t *testing.T) {
	n := newTestNormalizer(t)
	n.limits.MaxUploadBytes = 10
	_, err := n.ingest([]byte("name\nalice\nbob\n"), "people.csv")
	if kind := ingestKind(t, err); kind != IngestInvalidArtifact {
		t.Errorf("kind = %v, want invalid artifact", kind)
	}
}

func TestIngestCSV(t *testing.T) {
	n := newTestNormalizer(t)
	csv := "First Name,2024 Total,First Name\nalice,10,x\nbob,20,y\n"

	info, err := n.ingest([]byte(csv), "sales report.csv")
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}

	if len(info.Tables) != 1 || info.Tables[0] != "sales_report" {
		t.Errorf("tables = %v, want [sales_report]", info.Tables)
	}
	if info.RowCounts["sales_report"] != 2 {
		t.Errorf("row count = %d, want 2", info.RowCounts["sales_report"])
	}
	if info.SourceFormat != FormatCSV {
		t.Errorf("format = %v, want csv", info.SourceFormat)
	}
	for _, col := range []string{"First_Name", "col_2024_Total", "First_Name_2"} {
		if !strings.Contains(info.Schema, col) {
			t.Errorf("schema missing sanitized column %s:\n%s", col, info.Schema)
		}
	}
}

func TestIngestCSVEmpty(t *testing.T) {
	n := newTestNormalizer(t)
	_, err := n.ingest([]byte(""), "empty.csv")
	if err == nil {
		t.Fatal("expected error for empty CSV")
	}
	if kind := ingestKind(t, err); kind != IngestInvalidArtifact {
		t.Errorf("kind = %v, want invalid artifact", kind)
	}
}

func TestIngestNative(t *testing.T) {
	n := newTestNormalizer(t)

	// Build a real store to upload.
	srcPath := t.TempDir() + "/src.sqlite"
	db, err := sql.Open("sqlite", "file:"+srcPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := db.Exec("CREATE TABLE pets (name TEXT)"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := db.Exec("INSERT INTO pets VALUES ('rex')"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	db.Close()

	raw, err := os.ReadFile(srcPath)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	info, err := n.ingest(raw, "pets.db")
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	if len(info.Tables) != 1 || info.Tables[0] != "pets" {
		t.Errorf("tables = %v, want [pets]", info.Tables)
	}
	if info.RowCounts["pets"] != 1 {
		t.Errorf("row count = %d, want 1", info.RowCounts["pets"])
	}
}

func TestIngestNativeInvalid(t *testing.T) {
	n := newTestNormalizer(t)
	_, err := n.ingest([]byte("definitely not a database"), "fake.sqlite")
	if kind := ingestKind(t, err); kind != IngestInvalidArtifact {
		t.Errorf("kind = %v, want invalid artifact", kind)
	}
}

func TestIngestDump(t *testing.T) {
	n := newTestNormalizer(t)
	dump := "/*!40101 SET NAMES utf8 */;\n" +
		"CREATE TABLE `users` (\n" +
		"  `id` int(11) NOT NULL AUTO_INCREMENT,\n" +
		"  `name` varchar(100) NOT NULL,\n" +
		"  PRIMARY KEY (`id`)\n" +
		") ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;\n" +
		"LOCK TABLES `users` WRITE;\n" +
		"INSERT INTO `users` VALUES (1,'alice'),(2,'bob');\n" +
		"UNLOCK TABLES;\n"

	info, err := n.ingest([]byte(dump), "backup.sql")
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	if len(info.Tables) != 1 || info.Tables[0] != "users" {
		t.Fatalf("tables = %v, want [users]", info.Tables)
	}
	if info.RowCounts["users"] != 2 {
		t.Errorf("row count = %d, want 2", info.RowCounts["users"])
	}
	if !strings.Contains(info.Schema, "PRIMARY KEY") {
		t.Errorf("schema lost the primary key:\n%s", info.Schema)
	}
}

// The inline AUTO_INCREMENT PRIMARY KEY idiom must come out as an
// auto-assigning integer key with the text column intact.
func TestIngestDumpAutoIncrementIdiom(t *testing.T) {
	n := newTestNormalizer(t)
	dump := "CREATE TABLE users (id INT AUTO_INCREMENT PRIMARY KEY, name VARCHAR(50)) " +
		"ENGINE=InnoDB DEFAULT CHARSET=utf8; INSERT INTO users VALUES (1,'Ann');"

	info, err := n.ingest([]byte(dump), "users.sql")
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	if len(info.Tables) != 1 || info.Tables[0] != "users" {
		t.Fatalf("tables = %v, want [users]", info.Tables)
	}
	if info.RowCounts["users"] != 1 {
		t.Errorf("row count = %d, want 1", info.RowCounts["users"])
	}

	db, err := sql.Open("sqlite", readOnlyDSN(info.StorePath))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	cols, err := tableColumns(db, "users")
	if err != nil {
		t.Fatalf("columns: %v", err)
	}
	if len(cols) != 2 {
		t.Fatalf("columns = %+v, want 2", cols)
	}
	if cols[0].Type != "INTEGER" || !cols[0].PrimaryKey {
		t.Errorf("id column = %+v, want INTEGER primary key", cols[0])
	}
	if cols[1].Type != "TEXT" {
		t.Errorf("name column = %+v, want TEXT", cols[1])
	}
}

func TestIngestDumpCommentOnly(t *testing.T) {
	n := newTestNormalizer(t)
	_, err := n.ingest([]byte("-- nothing here\n-- still nothing\n"), "empty.sql")
	if kind := ingestKind(t, err); kind != IngestEmptyResult {
		t.Errorf("kind = %v, want empty result", kind)
	}
}

func TestIngestXLSX(t *testing.T) {
	n := newTestNormalizer(t)

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]interface{}{
		{"Product", "Units Sold"},
		{"widget", 3},
		{"gadget"}, // short row, must be padded
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	f.Close()

	info, err := n.ingest(buf.Bytes(), "inventory.xlsx")
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	if len(info.Tables) != 1 {
		t.Fatalf("tables = %v, want one table", info.Tables)
	}
	if info.RowCounts[info.Tables[0]] != 2 {
		t.Errorf("row count = %d, want 2", info.RowCounts[info.Tables[0]])
	}
	if !strings.Contains(info.Schema, "Units_Sold") {
		t.Errorf("schema missing sanitized column:\n%s", info.Schema)
	}
}

func TestIngestXLSXInvalid(t *testing.T) {
	n := newTestNormalizer(t)
	_, err := n.ingest([]byte("not a zip archive"), "fake.xlsx")
	if kind := ingestKind(t, err); kind != IngestInvalidArtifact {
		t.Errorf("kind = %v, want invalid artifact", kind)
	}
}

func TestSanitizeColumnName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"First Name", "First_Name"},
		{"2024 Total", "col_2024_Total"},
		{"Email", "Email"},
		{"a--b!!c", "a_b_c"},
		{"__trim__", "trim"},
		{"", "unnamed"},
		{"!!!", "unnamed"},
	}
	for _, tt := range tests {
		if got := sanitizeColumnName(tt.in); got != tt.want {
			t.Errorf("sanitizeColumnName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeColumnNamesDeduplicates(t *testing.T) {
	got := sanitizeColumnNames([]string{"name", "name", "Name!", "name"})
	want := []string{"name", "name_2", "Name_3", "name_4"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("column %d = %q, want %q (all: %v)", i, got[i], want[i], got)
		}
	}
}

func TestSanitizeTableNameLengthCap(t *testing.T) {
	long := strings.Repeat("x", 100)
	if got := sanitizeTableName(long); len(got) != 64 {
		t.Errorf("len = %d, want 64", len(got))
	}
}
