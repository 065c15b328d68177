package jsonfile

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/attacker735/finalproject-malygin-m25-555/internal/account"
	"github.com/attacker735/finalproject-malygin-m25-555/internal/apperrors"
)

// UserStore persists users in users.json.
type UserStore struct {
	mu   sync.Mutex
	path string
}

// NewUserStore returns a store writing under the given data directory.
func NewUserStore(dir string) *UserStore {
	return &UserStore{path: filepath.Join(dir, "users.json")}
}

type userRecord struct {
	UserID       string    `json:"user_id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"password_hash"`
	RegisteredAt time.Time `json:"registered_at"`
}

func toUserRecord(u account.User) userRecord {
	return userRecord{
		UserID:       u.ID,
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		RegisteredAt: u.RegisteredAt,
	}
}

func (r userRecord) toUser() *account.User {
	return &account.User{
		ID:           r.UserID,
		Username:     r.Username,
		PasswordHash: r.PasswordHash,
		RegisteredAt: r.RegisteredAt,
	}
}

func (s *UserStore) load() ([]userRecord, error) {
	var records []userRecord
	if _, err := readJSON(s.path, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// FindByUsername returns the user with the given username.
func (s *UserStore) FindByUsername(username string) (*account.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records, err := s.load()
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		if r.Username == username {
			return r.toUser(), nil
		}
	}
	return nil, fmt.Errorf("%w: user %q", apperrors.ErrNotFound, username)
}

// FindByID returns the user with the given id.
func (s *UserStore) FindByID(id string) (*account.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records, err := s.load()
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		if r.UserID == id {
			return r.toUser(), nil
		}
	}
	return nil, fmt.Errorf("%w: user id %q", apperrors.ErrNotFound, id)
}

// Save inserts or updates a user keyed by id.
func (s *UserStore) Save(u account.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	records, err := s.load()
	if err != nil {
		return err
	}
	updated := false
	for i, r := range records {
		if r.UserID == u.ID {
			records[i] = toUserRecord(u)
			updated = true
			break
		}
	}
	if !updated {
		records = append(records, toUserRecord(u))
	}
	return writeJSON(s.path, records)
}
