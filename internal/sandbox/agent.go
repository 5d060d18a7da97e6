/*-------------------------------------------------------------------------
 *
 * SQL Sandbox - Natural Language Query Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package sandbox

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"sqlsandbox/internal/llm"
)

// sqlAgentPrompt instructs the model to emit exactly one SQLite SELECT.
const sqlAgentPrompt = `You are an expert SQL analyst. Your task is to convert natural language questions into valid SQLite SELECT queries.

DATABASE SCHEMA:
%s

RULES:
1. Generate ONLY valid SQLite SELECT queries
2. Use aggregations (COUNT, SUM, AVG, MIN, MAX) for analytical questions
3. Use appropriate JOINs when querying related tables
4. Add ORDER BY for sorted results, LIMIT for top-N queries
5. NEVER use INSERT, UPDATE, DELETE, DROP, CREATE, ALTER, or any DDL/DML
6. Return ONLY the SQL query, no explanation or markdown formatting
7. If the question cannot be answered with the schema, respond with: SELECT 'Cannot answer: [reason]' AS error

QUESTION: %s

SQL QUERY:`

// Gateway is the single external capability the agent consumes: given a
// prompt, return a text completion. Model fallback lives behind it.
type Gateway interface {
	Complete(ctx context.Context, prompt string) (llm.Completion, error)
}

// Agent turns a natural language question into validated, executed SQL.
type Agent struct {
	gateway Gateway
	limits  Limits
}

// NewAgent creates an agent bound to a completion gateway.
func NewAgent(gateway Gateway, limits Limits) *Agent {
	return &Agent{gateway: gateway, limits: limits}
}

// Ask generates SQL for the question, validates it, and executes it. A
// validator rejection is final: the agent never retries with a "fixed"
// query, because a rejected statement could be a disguised attack. All
// failures come back as an unsuccessful QueryResult, never as a Go error.
func (a *Agent) Ask(ctx context.Context, question string, info *DatabaseInfo) QueryResult {
	start := time.Now()

	prompt := fmt.Sprintf(sqlAgentPrompt, info.Schema, question)
	completion, err := a.gateway.Complete(ctx, prompt)
	if err != nil {
		return QueryResult{
			Error:     fmt.Sprintf("SQL generation failed: %v", err),
			LatencyMS: time.Since(start).Milliseconds(),
		}
	}

	query := CleanResponse(completion.Text)

	if verr := ValidateSQL(query); verr != nil {
		return QueryResult{
			SQL:          query,
			Model:        completion.Model,
			FallbackUsed: completion.FallbackUsed,
			Error:        verr.Message,
			LatencyMS:    time.Since(start).Milliseconds(),
		}
	}

	result := Execute(ctx, query, info, a.limits)
	result.Model = completion.Model
	result.FallbackUsed = completion.FallbackUsed
	// Latency covers generation plus execution.
	result.LatencyMS = time.Since(start).Milliseconds()
	return result
}

var (
	fenceRe       = regexp.MustCompile("(?i)```sql\\s*|```\\s*")
	selectStartIx = regexp.MustCompile(`(?i)\bSELECT\b`)
)

// CleanResponse strips markdown fences and any narrative prose before the
// first SELECT from a raw completion. Some models return "Here's the
// query:\n\nSELECT ..." despite instructions. Trailing semicolons are
// removed so the row cap can be applied safely.
func CleanResponse(raw string) string {
	cleaned := fenceRe.ReplaceAllString(raw, "")
	cleaned = strings.TrimSpace(cleaned)

	if loc := selectStartIx.FindStringIndex(cleaned); loc != nil && loc[0] > 0 {
		cleaned = cleaned[loc[0]:]
	}

	return strings.TrimRight(cleaned, "; \t\n")
}
