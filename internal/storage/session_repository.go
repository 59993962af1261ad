package storage

import (
	"database/sql"
	"fmt"
	"log"
)

// sessionTokenKey is the fixed key the session token is stored under.
const sessionTokenKey = "session_token"

// SessionRepository persists the session token in the local state database.
// It implements session.Store.
type SessionRepository struct {
	db *DB
}

// NewSessionRepository creates a session repository on the given database.
func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Token returns the persisted token and whether one is present.
// Read failures are logged and reported as absent rather than surfaced;
// callers treat a missing token as "unauthenticated" either way.
func (r *SessionRepository) Token() (string, bool) {
	var token string
	err := r.db.QueryRow(
		`SELECT value FROM client_state WHERE key = ?`, sessionTokenKey,
	).Scan(&token)

	if err == sql.ErrNoRows {
		return "", false
	}
	if err != nil {
		log.Printf("Failed to read session token: %v", err)
		return "", false
	}
	if token == "" {
		return "", false
	}

	return token, true
}

// SetToken replaces the persisted token.
func (r *SessionRepository) SetToken(token string) error {
	_, err := r.db.Exec(`
		INSERT INTO client_state (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, sessionTokenKey, token)

	if err != nil {
		return fmt.Errorf("storing session token: %w", err)
	}

	return nil
}

// Clear removes the persisted token.
func (r *SessionRepository) Clear() error {
	_, err := r.db.Exec(`DELETE FROM client_state WHERE key = ?`, sessionTokenKey)
	if err != nil {
		return fmt.Errorf("clearing session token: %w", err)
	}
	return nil
}
