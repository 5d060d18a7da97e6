/*-------------------------------------------------------------------------
 *
 * SQL Sandbox - Per-User Session
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
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"sqlsandbox/internal/logging"
)

// Session owns one user's sandbox lifecycle: the consent gate, an exclusive
// ephemeral storage root, at most one live normalized store, and the query
// history. All operations on a session are serialized by its mutex, so an
// ingest can never replace the store underneath a running query; sessions
// are fully independent of each other.
type Session struct {
	id          string
	storageRoot string
	limits      Limits

	mu      sync.Mutex
	consent bool
	current *DatabaseInfo
	history []HistoryEntry
	agent   *Agent
	norm    *normalizer
}

// newSession creates a session with a fresh private storage root.
func newSession(id string, gateway Gateway, limits Limits) (*Session, error) {
	root := filepath.Join(os.TempDir(), "sqlsandbox_"+uuid.NewString())
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create session storage: %w", err)
	}

	return &Session{
		id:          id,
		storageRoot: root,
		limits:      limits,
		agent:       NewAgent(gateway, limits),
		norm:        &normalizer{dir: root, limits: limits},
	}, nil
}

// ID returns the opaque session identifier.
func (s *Session) ID() string {
	return s.id
}

// GiveConsent records consent for ephemeral data processing. This is a
// one-way transition; consent never reverts within the session's lifetime.
func (s *Session) GiveConsent() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.consent {
		s.consent = true
		logging.Info("consent given", "session", s.id)
	}
}

// HasConsent reports whether consent has been given.
func (s *Session) HasConsent() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.consent
}

// Upload ingests a new database file. It requires consent and replaces the
// current database wholesale; there is exactly one live database per
// session at a time.
func (s *Session) Upload(raw []byte, originalFilename string) (*DatabaseInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.consent {
		return nil, ErrConsentRequired
	}

	// The storage root may have been reclaimed by a prior Cleanup.
	if err := os.MkdirAll(s.storageRoot, 0o700); err != nil {
		return nil, fmt.Errorf("failed to restore session storage: %w", err)
	}

	info, err := s.norm.ingest(raw, originalFilename)
	if err != nil {
		return nil, err
	}

	s.current = info
	return info, nil
}

// Ask answers a natural language question against the current database and
// appends the attempt to the session history. State violations (no consent,
// no database) are returned as errors; query failures land inside the
// QueryResult.
func (s *Session) Ask(ctx context.Context, question string) (QueryResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.consent {
		return QueryResult{}, ErrConsentRequired
	}
	if s.current == nil {
		return QueryResult{}, ErrNoDatabase
	}

	result := s.agent.Ask(ctx, question, s.current)

	s.history = append(s.history, HistoryEntry{
		Question:  question,
		SQL:       result.SQL,
		Success:   result.Success,
		Timestamp: time.Now().UTC(),
	})
	if s.limits.HistoryLimit > 0 && len(s.history) > s.limits.HistoryLimit {
		s.history = s.history[len(s.history)-s.limits.HistoryLimit:]
	}

	return result, nil
}

// Schema returns the introspection snapshot of the current database, or an
// empty snapshot when none is loaded.
func (s *Session) Schema() SchemaSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return SchemaSnapshot{Tables: []TableSummary{}}
	}

	tables := make([]TableSummary, 0, len(s.current.Tables))
	for _, t := range s.current.Tables {
		tables = append(tables, TableSummary{Name: t, RowCount: s.current.RowCounts[t]})
	}
	return SchemaSnapshot{
		Tables:           tables,
		SchemaText:       s.current.Schema,
		SourceFormat:     s.current.SourceFormat,
		OriginalFilename: s.current.OriginalFilename,
	}
}

// HasDatabase reports whether a database is currently loaded.
func (s *Session) HasDatabase() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil
}

// Tables lists the tables of the current database, empty when none.
func (s *Session) Tables() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	return append([]string(nil), s.current.Tables...)
}

// History returns a copy of the recorded query history.
func (s *Session) History() []HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]HistoryEntry(nil), s.history...)
}

// Cleanup reclaims the session's storage root and drops the current
// database and history. It is idempotent and safe on a session that was
// already cleaned.
func (s *Session) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.RemoveAll(s.storageRoot); err != nil {
		logging.Error("failed to reclaim session storage", "session", s.id, "error", err.Error())
	}
	s.current = nil
	s.history = nil
	logging.Info("session cleaned up", "session", s.id)
}
