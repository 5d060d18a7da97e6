/*-------------------------------------------------------------------------
 *
 * SQL Sandbox - Static SQL Validation
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package sandbox

import (
	"fmt"
	"regexp"
	"strings"
)

// blockedKeywords are DML/DDL and administrative verbs rejected anywhere in a
// query, as whole words, case-insensitively.
var blockedKeywords = []string{
	"INSERT", "UPDATE", "DELETE", "DROP", "CREATE", "ALTER",
	"TRUNCATE", "REPLACE", "MERGE", "GRANT", "REVOKE",
	"ATTACH", "DETACH", "VACUUM", "REINDEX", "ANALYZE",
}

var (
	blockedKeywordRe = func() map[string]*regexp.Regexp {
		m := make(map[string]*regexp.Regexp, len(blockedKeywords))
		for _, kw := range blockedKeywords {
			m[kw] = regexp.MustCompile(`\b` + kw + `\b`)
		}
		return m
	}()

	selectStartRe = regexp.MustCompile(`^\s*SELECT\b`)

	// A semicolon followed by anything but whitespace means a chained
	// second statement.
	statementChainRe = regexp.MustCompile(`;\s*\S`)

	extensionLoadRe = regexp.MustCompile(`\bLOAD_EXTENSION\b`)
)

// ValidateSQL statically checks that sql is a single read-only SELECT
// statement. It returns nil when the query is acceptable, or a
// ValidationError naming the rule that fired. It is pure and deterministic,
// and it is the single mandatory gate between any SQL (agent-generated or
// caller-supplied) and execution.
func ValidateSQL(sql string) *ValidationError {
	if strings.TrimSpace(sql) == "" {
		return &ValidationError{Rule: RuleEmptyQuery, Message: "empty SQL query"}
	}

	upper := strings.ToUpper(sql)

	for _, kw := range blockedKeywords {
		if blockedKeywordRe[kw].MatchString(upper) {
			return &ValidationError{
				Rule:    RuleBlockedKeyword,
				Message: fmt.Sprintf("blocked operation: %s is not allowed", kw),
			}
		}
	}

	if !selectStartRe.MatchString(upper) {
		return &ValidationError{Rule: RuleSelectOnly, Message: "only SELECT queries are allowed"}
	}

	// Comments are a classic vector for keyword obfuscation, so they are
	// rejected outright rather than stripped.
	if strings.Contains(sql, "--") {
		return &ValidationError{Rule: RuleNoComments, Message: "SQL comments are not allowed"}
	}
	if strings.Contains(sql, "/*") {
		return &ValidationError{Rule: RuleNoComments, Message: "block comments are not allowed"}
	}

	if statementChainRe.MatchString(sql) {
		return &ValidationError{Rule: RuleSingleStatement, Message: "multiple statements are not allowed"}
	}

	if extensionLoadRe.MatchString(upper) {
		return &ValidationError{Rule: RuleNoExtensionLoading, Message: "extension loading is not allowed"}
	}

	return nil
}
