/*-------------------------------------------------------------------------
 *
 * SQL Sandbox - Read-Only Query Execution
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package sandbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// readOnlyDSN opens a store so that any write attempt fails at the engine
// level, as a second line of defense behind static validation.
func readOnlyDSN(storePath string) string {
	return "file:" + storePath + "?mode=ro"
}

// Execute runs a SQL query against a normalized store under the sandbox
// discipline: static validation, read-only connection, wall-clock timeout
// that cancels the in-flight query, and an internally applied row cap. It
// never returns a Go error; every failure mode lands in QueryResult.Error.
func Execute(ctx context.Context, query string, info *DatabaseInfo, limits Limits) QueryResult {
	start := time.Now()
	result := QueryResult{SQL: query}

	fail := func(msg string) QueryResult {
		result.Error = msg
		result.LatencyMS = time.Since(start).Milliseconds()
		return result
	}

	// The validator is the single mandatory gate: it runs here as well so a
	// caller bypassing the agent cannot bypass the rules.
	if verr := ValidateSQL(query); verr != nil {
		return fail(verr.Message)
	}

	db, err := sql.Open("sqlite", readOnlyDSN(info.StorePath))
	if err != nil {
		return fail(fmt.Sprintf("failed to open store: %v", err))
	}
	defer db.Close()

	qctx, cancel := context.WithTimeout(ctx, limits.QueryTimeout)
	defer cancel()

	rows, err := db.QueryContext(qctx, applyRowCap(query, limits.MaxRows))
	if err != nil {
		return fail(classifyExecError(err, limits))
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return fail(fmt.Sprintf("SQL error: %v", err))
	}

	var fetched [][]interface{}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return fail(fmt.Sprintf("SQL error: %v", err))
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		fetched = append(fetched, values)
		if len(fetched) > limits.MaxRows {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return fail(classifyExecError(err, limits))
	}

	result.Truncated = len(fetched) > limits.MaxRows
	if result.Truncated {
		fetched = fetched[:limits.MaxRows]
	}

	result.Success = true
	result.Columns = columns
	result.Rows = fetched
	result.RowCount = len(fetched)
	result.LatencyMS = time.Since(start).Milliseconds()
	return result
}

// applyRowCap wraps the query so at most maxRows+1 rows ever come back,
// regardless of any LIMIT the model chose to include. Fetching one extra row
// is what makes truncation detectable.
func applyRowCap(query string, maxRows int) string {
	trimmed := strings.TrimRight(strings.TrimSpace(query), "; \t\n")
	return fmt.Sprintf("SELECT * FROM (%s) LIMIT %d", trimmed, maxRows+1)
}

// classifyExecError distinguishes a timeout from a generic engine error.
// Timeouts are retryable from the caller's point of view: the session stays
// usable for a faster follow-up query.
func classifyExecError(err error, limits Limits) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Sprintf("query timeout (%dms exceeded)", limits.QueryTimeout.Milliseconds())
	}
	if errors.Is(err, context.Canceled) {
		return "query canceled"
	}
	return fmt.Sprintf("SQL error: %v", err)
}
