package database

import (
	"context"
	"sync"

	"github.com/kestrelchat/kestrel/internal/domain"
)

var _ domain.UserRepository = (*MemoryUserStore)(nil)

// MemoryUserStore keeps user records in a process-local map. It backs
// tests and standalone runs where no SurrealDB is configured; records do
// not survive a restart.
type MemoryUserStore struct {
	mu    sync.RWMutex
	users map[string]domain.User
}

// NewMemoryUserStore creates an empty in-memory user store.
func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{users: make(map[string]domain.User)}
}

// Contains reports whether a record exists for username.
func (s *MemoryUserStore) Contains(ctx context.Context, username string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.users[username]
	return ok, nil
}

// Add stores a new user record, rejecting duplicate usernames.
func (s *MemoryUserStore) Add(ctx context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.Username]; ok {
		return domain.ErrUserAlreadyExists
	}
	s.users[user.Username] = *user
	return nil
}

// Get retrieves the record for username, or domain.ErrUserNotFound.
func (s *MemoryUserStore) Get(ctx context.Context, username string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[username]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &user, nil
}
