/*-------------------------------------------------------------------------
 *
 * SQL Sandbox - Tabular Result Formatting
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

// Package tsv renders query results as tab-separated values, the compact
// tabular form handed back to terminals and LLM contexts.
package tsv

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FormatValue renders a single cell. Tabs and newlines inside string values
// are escaped so one result row always stays one output line.
func FormatValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case string:
		return escapeString(val)
	case []byte:
		return escapeString(string(val))
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case bool:
		if val {
			return "true"
		}
		return "false"
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return escapeString(fmt.Sprintf("%v", val))
	}
}

func escapeString(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\t", "\\t")
	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.ReplaceAll(s, "\r", "\\r")
	return s
}

// FormatResults renders a header line plus one line per row.
func FormatResults(columns []string, rows [][]interface{}) string {
	var sb strings.Builder
	sb.WriteString(strings.Join(columns, "\t"))
	sb.WriteByte('\n')

	for _, row := range rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = FormatValue(v)
		}
		sb.WriteString(strings.Join(cells, "\t"))
		sb.WriteByte('\n')
	}
	return sb.String()
}
