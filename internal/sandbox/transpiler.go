/*-------------------------------------------------------------------------
 *
 * SQL Sandbox - Dump Dialect Transpilation
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package sandbox

import (
	"regexp"
	"strings"

	"github.com/xwb1989/sqlparser"

	"sqlsandbox/internal/logging"
)

// TranspilePath reports which rewrite strategy produced a statement.
type TranspilePath int

const (
	// PathStructural means the statement was parsed in the source dialect
	// and re-emitted for SQLite.
	PathStructural TranspilePath = iota

	// PathFallback means the source parser rejected the statement and the
	// regex rewrite pass was used instead.
	PathFallback
)

// TranspiledStatement is one statement of the converted script.
type TranspiledStatement struct {
	SQL  string
	Path TranspilePath
}

// TranspileResult is the outcome of converting a dump script. Dropped counts
// statements that could not be converted into anything resembling DDL/DML;
// partial schema recovery is preferred over total failure, so dropping is
// logged rather than fatal.
type TranspileResult struct {
	Statements []TranspiledStatement
	Dropped    int
}

// Script joins the converted statements back into an executable script.
func (r TranspileResult) Script() string {
	parts := make([]string, len(r.Statements))
	for i, s := range r.Statements {
		parts[i] = s.SQL
	}
	return strings.Join(parts, ";\n") + ";"
}

// Pre-clean patterns: MySQL administrative noise that a structural parser
// chokes on. These run as pure text rewriting before any parsing.
var precleanRes = []*regexp.Regexp{
	regexp.MustCompile(`(?s)/\*!\d+.*?\*/;?`),                           // versioned conditional comments
	regexp.MustCompile(`(?i)LOCK\s+TABLES\s+[^;]+;`),                    // LOCK TABLES ... WRITE;
	regexp.MustCompile(`(?i)UNLOCK\s+TABLES\s*;`),                       //
	regexp.MustCompile(`(?i)SET\s+NAMES\s+[^;]+;`),                      // session charset
	regexp.MustCompile(`(?i)SET\s+sql_mode\s*=\s*[^;]+;`),               //
	regexp.MustCompile(`(?i)SET\s+character_set_client\s*=\s*[^;]+;`),   //
	regexp.MustCompile(`(?i)SET\s+@[^;]+;`),                             // session variables
	regexp.MustCompile(`(?i)ALTER\s+TABLE\s+\w+\s+DISABLE\s+KEYS\s*;`),  //
	regexp.MustCompile(`(?i)ALTER\s+TABLE\s+\w+\s+ENABLE\s+KEYS\s*;`),   //
}

// Post-fix patterns, applied to every emitted statement regardless of which
// path produced it. Ordering matters: type widths are stripped before the
// auto-increment idiom is normalized.
var (
	reIntWidth       = regexp.MustCompile(`(?i)\b(?:TINYINT|SMALLINT|MEDIUMINT|BIGINT|INTEGER|INT)\s*\(\s*\d+\s*\)`)
	reIntVariant     = regexp.MustCompile(`(?i)\b(?:TINYINT|SMALLINT|MEDIUMINT|BIGINT|UINT)\b`)
	reBareInt        = regexp.MustCompile(`(?i)\bINT\b`)
	reTextWidth      = regexp.MustCompile(`(?i)\b(?:VARCHAR|NVARCHAR|CHAR|TEXT)\s*\(\s*\d+\s*\)`)
	reDecimal        = regexp.MustCompile(`(?i)\b(?:DECIMAL|NUMERIC|REAL|DOUBLE|FLOAT)\s*\(\s*\d+\s*(?:,\s*\d+\s*)?\)`)
	reEnum           = regexp.MustCompile(`(?i)\bENUM\s*\([^)]*\)`)
	reSet            = regexp.MustCompile(`(?i)\bSET\s*\('[^)]*\)`)
	reTimestamp      = regexp.MustCompile(`(?i)\bTIMESTAMPTZ\b|\bTIMESTAMP\b`)
	reUnsigned       = regexp.MustCompile(`(?i)\bUNSIGNED\b`)
	reZerofill       = regexp.MustCompile(`(?i)\bZEROFILL\b`)
	reEngineOpt      = regexp.MustCompile(`(?i)\s*ENGINE\s*=\s*\w+`)
	reCharsetOpt     = regexp.MustCompile(`(?i)\s*DEFAULT\s+CHARSET\s*=\s*\w+`)
	reCollateOpt     = regexp.MustCompile(`(?i)\s*COLLATE\s*=?\s*\w+`)
	reCharSetClause  = regexp.MustCompile(`(?i)\s*CHARACTER\s+SET\s+\w+`)
	reAutoIncOpt     = regexp.MustCompile(`(?i)\s*AUTO_INCREMENT\s*=\s*\d+`)
	reRowFormatOpt   = regexp.MustCompile(`(?i)\s*ROW_FORMAT\s*=\s*\w+`)
	reComment        = regexp.MustCompile(`(?i)\bCOMMENT\s+'[^']*'`)
	reOnUpdateTS     = regexp.MustCompile(`(?i)\bON\s+UPDATE\s+CURRENT_TIMESTAMP\b`)
	reSerial         = regexp.MustCompile(`(?i)\b(?:BIGSERIAL|SERIAL)\b`)
	reFulltextKey    = regexp.MustCompile(`(?i),?\s*FULLTEXT\s+KEY\s+\w+\s*\([^)]+\)`)
	reUniqueKeyDef   = regexp.MustCompile(`(?i),?\s*UNIQUE\s+KEY\s+\w+\s*\([^)]+\)`)
	reUniqueIdxDef   = regexp.MustCompile(`(?i),?\s*UNIQUE\s+(?:INDEX\s+)?\w+\s*\([^)]+\)`)
	reKeyDef         = regexp.MustCompile(`(?i),?\s*(?:KEY|INDEX)\s+\w+\s*\([^)]+\)`)
	rePrimaryKeyDef  = regexp.MustCompile(`(?i),?\s*PRIMARY\s+KEY\s*\([^)]+\)`)
	reAutoIncPKFirst = regexp.MustCompile(`(?i)\bINTEGER\s+(?:NOT\s+NULL\s+)?AUTO_?INCREMENT\s+PRIMARY\s+KEY\b`)
	rePKAutoInc      = regexp.MustCompile(`(?i)\bINTEGER\s+PRIMARY\s+KEY\s+AUTO_?INCREMENT\b`)
	reAutoIncBare    = regexp.MustCompile(`(?i)\bINTEGER\s+(?:NOT\s+NULL\s+)?AUTO_?INCREMENT\b`)
	reValidAutoInc   = regexp.MustCompile(`(?i)PRIMARY\s+KEY\s+AUTO_?INCREMENT\b`)
	reStrayAutoInc   = regexp.MustCompile(`(?i)\bAUTO_?INCREMENT\b`)
	reIPKAutoInc     = regexp.MustCompile(`(?i)\bINTEGER\s+PRIMARY\s+KEY\s+AUTOINCREMENT\b`)
	reEmptyComma     = regexp.MustCompile(`,\s*\)`)
	reMultiSpace     = regexp.MustCompile(`  +`)

	// A statement whose fallback text carries none of these verbs is noise,
	// not recoverable DDL/DML, and is dropped.
	reStatementVerb = regexp.MustCompile(`(?i)\b(CREATE|INSERT|UPDATE|DELETE|REPLACE|SELECT|DROP|ALTER|PRAGMA|BEGIN|COMMIT|ROLLBACK)\b`)
)

// Transpile rewrites a MySQL/PostgreSQL-style dump script into SQLite DDL/DML.
// It never fails outright: statements the structural parser rejects fall
// through to the regex pass, and only statements that survive neither are
// dropped. The source dialect is assumed to be MySQL-style; PostgreSQL dumps
// are handled on a best-effort basis by the same rewrite rules.
func Transpile(script string) TranspileResult {
	cleaned := preclean(script)

	pieces, err := sqlparser.SplitStatementToPieces(cleaned)
	if err != nil {
		logging.Debug("statement splitter failed, splitting on semicolons", "error", err.Error())
		pieces = strings.Split(cleaned, ";")
	}

	var result TranspileResult
	for _, piece := range pieces {
		piece = strings.TrimSpace(piece)
		if piece == "" || isCommentOnly(piece) {
			continue
		}

		if converted, ok := rewriteStructural(piece); ok {
			result.Statements = append(result.Statements, TranspiledStatement{
				SQL:  postFix(converted),
				Path: PathStructural,
			})
			continue
		}

		fixed := postFix(piece)
		if !reStatementVerb.MatchString(fixed) {
			result.Dropped++
			logging.Warn("dropping untranspilable statement", "statement", truncateForLog(piece))
			continue
		}
		result.Statements = append(result.Statements, TranspiledStatement{
			SQL:  fixed,
			Path: PathFallback,
		})
	}

	return result
}

// preclean strips dialect-specific administrative noise before parsing.
func preclean(script string) string {
	for _, re := range precleanRes {
		script = re.ReplaceAllString(script, "")
	}
	// Identifier backticks: SQLite tolerates them, but removing them up
	// front keeps both rewrite paths on plain identifiers.
	return strings.ReplaceAll(script, "`", "")
}

// rewriteStructural parses one statement in the MySQL grammar and re-emits
// it. CREATE TABLE is rebuilt column by column so table options and
// secondary indexes never reach SQLite; everything else is re-serialized
// from the AST. Returns ok=false when the parser rejects the statement.
func rewriteStructural(stmt string) (string, bool) {
	parsed, err := sqlparser.Parse(stmt)
	if err != nil {
		logging.Debug("structural parse failed", "error", err.Error())
		return "", false
	}

	if ddl, ok := parsed.(*sqlparser.DDL); ok && ddl.Action == sqlparser.CreateStr && ddl.TableSpec != nil {
		return rebuildCreateTable(ddl), true
	}

	return sqlparser.String(parsed), true
}

// rebuildCreateTable re-emits a parsed CREATE TABLE with only column
// definitions and the primary key constraint. MySQL table options and
// secondary index sub-clauses are intentionally not carried over.
func rebuildCreateTable(ddl *sqlparser.DDL) string {
	var defs []string
	for _, col := range ddl.TableSpec.Columns {
		defs = append(defs, sqlparser.String(col))
	}
	for _, idx := range ddl.TableSpec.Indexes {
		if idx.Info == nil || !idx.Info.Primary {
			continue
		}
		cols := make([]string, len(idx.Columns))
		for i, ic := range idx.Columns {
			cols[i] = ic.Column.String()
		}
		defs = append(defs, "PRIMARY KEY ("+strings.Join(cols, ", ")+")")
	}

	name := ddl.NewName.Name.String()
	if name == "" {
		name = ddl.Table.Name.String()
	}
	return "CREATE TABLE " + name + " (" + strings.Join(defs, ", ") + ")"
}

// postFix normalizes one emitted statement to SQLite's type system and its
// single canonical auto-assigning column declaration. Applied to the output
// of both rewrite paths.
func postFix(sql string) string {
	// Table options SQLite does not understand.
	sql = reEngineOpt.ReplaceAllString(sql, "")
	sql = reCharsetOpt.ReplaceAllString(sql, "")
	sql = reCollateOpt.ReplaceAllString(sql, "")
	sql = reCharSetClause.ReplaceAllString(sql, "")
	sql = reAutoIncOpt.ReplaceAllString(sql, "")
	sql = reRowFormatOpt.ReplaceAllString(sql, "")
	sql = reComment.ReplaceAllString(sql, "")
	sql = reOnUpdateTS.ReplaceAllString(sql, "")

	// Collapse the type zoo: one integer type, one float type, text for
	// everything stringly or temporal.
	sql = reIntWidth.ReplaceAllString(sql, "INTEGER")
	sql = reIntVariant.ReplaceAllString(sql, "INTEGER")
	sql = reBareInt.ReplaceAllString(sql, "INTEGER")
	sql = reTextWidth.ReplaceAllString(sql, "TEXT")
	sql = reDecimal.ReplaceAllString(sql, "REAL")
	sql = reEnum.ReplaceAllString(sql, "TEXT")
	sql = reSet.ReplaceAllString(sql, "TEXT")
	sql = reTimestamp.ReplaceAllString(sql, "TEXT")
	sql = reUnsigned.ReplaceAllString(sql, "")
	sql = reZerofill.ReplaceAllString(sql, "")
	sql = reSerial.ReplaceAllString(sql, "INTEGER PRIMARY KEY AUTOINCREMENT")

	// Secondary index sub-clauses inside CREATE TABLE. The PRIMARY KEY
	// constraint is handled separately below.
	sql = reFulltextKey.ReplaceAllString(sql, "")
	sql = reUniqueKeyDef.ReplaceAllString(sql, "")
	sql = reUniqueIdxDef.ReplaceAllString(sql, "")
	sql = reKeyDef.ReplaceAllString(sql, "")

	// Normalize the auto-increment idiom to SQLite's canonical form.
	sql = reAutoIncPKFirst.ReplaceAllString(sql, "INTEGER PRIMARY KEY AUTOINCREMENT")
	sql = rePKAutoInc.ReplaceAllString(sql, "INTEGER PRIMARY KEY AUTOINCREMENT")
	sql = reAutoIncBare.ReplaceAllString(sql, "INTEGER PRIMARY KEY AUTOINCREMENT")

	// A bare AUTOINCREMENT outside the canonical idiom is a syntax error in
	// SQLite. Park the valid occurrences, drop the strays, restore.
	sql = reValidAutoInc.ReplaceAllString(sql, "PRIMARY KEY __AUTOINC__")
	sql = reStrayAutoInc.ReplaceAllString(sql, "")
	sql = strings.ReplaceAll(sql, "__AUTOINC__", "AUTOINCREMENT")

	// An explicit PRIMARY KEY (...) clause conflicts with the rewritten
	// auto-assigning column, so collapse it only in that case.
	if reIPKAutoInc.MatchString(sql) {
		sql = rePrimaryKeyDef.ReplaceAllString(sql, "")
	}

	sql = reEmptyComma.ReplaceAllString(sql, ")")
	sql = reMultiSpace.ReplaceAllString(sql, " ")
	return strings.TrimSpace(sql)
}

// isCommentOnly reports whether every line of the statement is a -- comment.
func isCommentOnly(stmt string) bool {
	for _, line := range strings.Split(stmt, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "--") {
			return false
		}
	}
	return true
}

func truncateForLog(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > 120 {
		return s[:120] + "..."
	}
	return s
}
