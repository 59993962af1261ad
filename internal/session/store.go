// Package session defines the shared session token store.
//
// The persisted token is the only cross-component mutable state in the
// client. Only the app state machine and the gateway's 401/403 handler may
// write it; everything else reads through this interface.
package session

import "sync"

// Store holds the opaque session token. Absence means unauthenticated.
type Store interface {
	// Token returns the current token and whether one is present.
	Token() (string, bool)

	// SetToken replaces the stored token.
	SetToken(token string) error

	// Clear removes the stored token.
	Clear() error
}

// MemoryStore is an in-process Store used in tests and as a fallback when
// no persistent storage is configured.
type MemoryStore struct {
	mu    sync.RWMutex
	token string
	set   bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Token returns the current token and whether one is present.
func (s *MemoryStore) Token() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.set
}

// SetToken replaces the stored token.
func (s *MemoryStore) SetToken(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.set = true
	return nil
}

// Clear removes the stored token.
func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.set = false
	return nil
}
