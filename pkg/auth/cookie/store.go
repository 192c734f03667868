package cookie

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/avekoy/portier/pkg/principal"
)

// ErrSessionNotFound is returned by a Store when a session id is unknown or
// has expired.
var ErrSessionNotFound = errors.New("session not found")

// Store persists server-side session state keyed by session id.
type Store interface {
	Put(ctx context.Context, id string, p *principal.Principal, expiresAt time.Time) error
	Get(ctx context.Context, id string) (*principal.Principal, error)
	Delete(ctx context.Context, id string) error
}

type session struct {
	principal *principal.Principal
	expiresAt time.Time
}

// MemoryStore keeps sessions in process memory. Expired sessions are dropped
// lazily on access.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]session
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]session)}
}

// Put stores the principal under the session id.
func (s *MemoryStore) Put(_ context.Context, id string, p *principal.Principal, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = session{principal: p, expiresAt: expiresAt}
	return nil
}

// Get returns the principal for the session id, dropping it when expired.
func (s *MemoryStore) Get(_ context.Context, id string) (*principal.Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if time.Now().After(sess.expiresAt) {
		delete(s.sessions, id)
		return nil, ErrSessionNotFound
	}
	return sess.principal, nil
}

// Delete removes the session. Deleting an unknown id is not an error.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

// Len returns the number of live sessions, counting expired ones not yet
// dropped.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
