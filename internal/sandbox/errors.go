/*-------------------------------------------------------------------------
 *
 * SQL Sandbox - Error Taxonomy
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package sandbox

import (
	"errors"
	"fmt"
)

// Sentinel errors for session state violations. Both are recoverable by the
// caller (give consent / upload a database) and are never wrapped in a
// QueryResult.
var (
	ErrConsentRequired = errors.New("consent required before processing data")
	ErrNoDatabase      = errors.New("no database loaded; upload a file first")
)

// IngestErrorKind classifies why an ingest was rejected.
type IngestErrorKind int

const (
	// IngestUnsupportedFormat means the filename extension is not supported.
	// Rejected at the boundary before any bytes are parsed.
	IngestUnsupportedFormat IngestErrorKind = iota

	// IngestInvalidArtifact means the bytes do not parse as a well-formed
	// instance of the claimed format.
	IngestInvalidArtifact

	// IngestEmptyResult means normalization succeeded but produced zero
	// tables.
	IngestEmptyResult
)

// String returns the kind name for logging and error text.
func (k IngestErrorKind) String() string {
	switch k {
	case IngestUnsupportedFormat:
		return "unsupported format"
	case IngestInvalidArtifact:
		return "invalid artifact"
	case IngestEmptyResult:
		return "empty result"
	default:
		return "ingest error"
	}
}

// IngestError reports a rejected upload. The message is user-facing and
// reported verbatim; ingests are never retried automatically.
type IngestError struct {
	Kind    IngestErrorKind
	Message string
}

func (e *IngestError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func newIngestError(kind IngestErrorKind, format string, args ...interface{}) *IngestError {
	return &IngestError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// ValidationError reports the specific sandbox rule a SQL statement violated.
type ValidationError struct {
	Rule    string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Validation rule identifiers, reported with every rejection so failures are
// debuggable without exposing the full rule set.
const (
	RuleEmptyQuery         = "empty_query"
	RuleBlockedKeyword     = "blocked_keyword"
	RuleSelectOnly         = "select_only"
	RuleNoComments         = "no_comments"
	RuleSingleStatement    = "single_statement"
	RuleNoExtensionLoading = "no_extension_loading"
)
