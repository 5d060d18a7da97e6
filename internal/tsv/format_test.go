/*-------------------------------------------------------------------------
 *
 * SQL Sandbox - Tabular Result Formatting Tests
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package tsv

import (
	"testing"
	"time"
)

func TestFormatValue(t *testing.T) {
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		in   interface{}
		want string
	}{
		{"nil", nil, "NULL"},
		{"string", "hello", "hello"},
		{"bytes", []byte("raw"), "raw"},
		{"int64", int64(-42), "-42"},
		{"float", 3.14, "3.14"},
		{"bool true", true, "true"},
		{"bool false", false, "false"},
		{"time", ts, "2025-06-01T12:00:00Z"},
		{"embedded tab", "a\tb", "a\\tb"},
		{"embedded newline", "line1\nline2", "line1\\nline2"},
		{"backslash", `a\b`, `a\\b`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatValue(tt.in); got != tt.want {
				t.Errorf("FormatValue(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestFormatResults(t *testing.T) {
	got := FormatResults(
		[]string{"name", "age"},
		[][]interface{}{
			{"alice", int64(30)},
			{"bob", nil},
		},
	)
	want := "name\tage\nalice\t30\nbob\tNULL\n"
	if got != want {
		t.Errorf("FormatResults = %q, want %q", got, want)
	}
}

func TestFormatResultsNoRows(t *testing.T) {
	got := FormatResults([]string{"a"}, nil)
	if got != "a\n" {
		t.Errorf("FormatResults = %q, want header only", got)
	}
}
