/*-------------------------------------------------------------------------
 *
 * SQL Sandbox - Session Registry
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package sandbox

import (
	"context"
	"sync"
)

// Registry owns the live sessions, keyed by an opaque session ID. Lookups
// create the session lazily; concurrent first references to the same ID
// converge on a single instance.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	gateway  Gateway
	limits   Limits
}

// NewRegistry creates an empty registry. Every session it creates shares
// the gateway and limits.
func NewRegistry(gateway Gateway, limits Limits) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		gateway:  gateway,
		limits:   limits,
	}
}

// Session returns the session for the ID, creating it on first reference.
func (r *Registry) Session(id string) (*Session, error) {
	r.mu.RLock()
	session, ok := r.sessions[id]
	r.mu.RUnlock()
	if ok {
		return session, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Another goroutine may have created it between the lock switch.
	if session, ok := r.sessions[id]; ok {
		return session, nil
	}

	session, err := newSession(id, r.gateway, r.limits)
	if err != nil {
		return nil, err
	}
	r.sessions[id] = session
	return session, nil
}

// GiveConsent records consent for the session.
func (r *Registry) GiveConsent(id string) error {
	session, err := r.Session(id)
	if err != nil {
		return err
	}
	session.GiveConsent()
	return nil
}

// Upload ingests an upload into the session.
func (r *Registry) Upload(id string, raw []byte, originalFilename string) (*DatabaseInfo, error) {
	session, err := r.Session(id)
	if err != nil {
		return nil, err
	}
	return session.Upload(raw, originalFilename)
}

// Ask answers a question against the session's current database.
func (r *Registry) Ask(ctx context.Context, id, question string) (QueryResult, error) {
	session, err := r.Session(id)
	if err != nil {
		return QueryResult{}, err
	}
	return session.Ask(ctx, question)
}

// Schema returns the session's schema snapshot.
func (r *Registry) Schema(id string) (SchemaSnapshot, error) {
	session, err := r.Session(id)
	if err != nil {
		return SchemaSnapshot{}, err
	}
	return session.Schema(), nil
}

// CleanupSession reclaims one session's resources and removes it from the
// registry. Unknown IDs are a no-op.
func (r *Registry) CleanupSession(id string) {
	r.mu.Lock()
	session, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if ok {
		session.Cleanup()
	}
}

// CleanupAll reclaims every session. Intended for process shutdown.
func (r *Registry) CleanupAll() {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Cleanup()
	}
}
