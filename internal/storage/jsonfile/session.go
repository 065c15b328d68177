package jsonfile

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/attacker735/finalproject-malygin-m25-555/internal/apperrors"
)

// SessionStore remembers which user is logged in between CLI invocations.
type SessionStore struct {
	mu   sync.Mutex
	path string
}

// NewSessionStore returns a store writing under the given data directory.
func NewSessionStore(dir string) *SessionStore {
	return &SessionStore{path: filepath.Join(dir, "session.json")}
}

type sessionRecord struct {
	UserID string `json:"user_id"`
}

// CurrentUserID returns the logged-in user id, or ErrNotFound when no
// session is open.
func (s *SessionStore) CurrentUserID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var record sessionRecord
	found, err := readJSON(s.path, &record)
	if err != nil {
		return "", err
	}
	if !found || record.UserID == "" {
		return "", fmt.Errorf("%w: no active session", apperrors.ErrNotFound)
	}
	return record.UserID, nil
}

// SetCurrentUser opens a session for the given user id.
func (s *SessionStore) SetCurrentUser(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSON(s.path, sessionRecord{UserID: id})
}

// Clear closes the session.
func (s *SessionStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
