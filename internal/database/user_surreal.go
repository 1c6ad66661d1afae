package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/surrealdb/surrealdb.go"

	"github.com/kestrelchat/kestrel/internal/domain"
)

const userTable = "user"

var _ domain.UserRepository = (*SurrealUserStore)(nil)

// SurrealUserStore keeps user records in SurrealDB, keyed by username.
type SurrealUserStore struct {
	db *surrealdb.DB
}

// NewSurrealUserStore creates a user store over an established connection.
func NewSurrealUserStore(db *surrealdb.DB) *SurrealUserStore {
	return &SurrealUserStore{db: db}
}

// Contains reports whether a record exists for username.
func (s *SurrealUserStore) Contains(ctx context.Context, username string) (bool, error) {
	user, err := s.lookup(ctx, username)
	if err != nil {
		return false, err
	}
	return user != nil, nil
}

// Add stores a new user record. Usernames are unique; adding a duplicate
// returns domain.ErrUserAlreadyExists.
func (s *SurrealUserStore) Add(ctx context.Context, user *domain.User) error {
	query := fmt.Sprintf("CREATE %s:$username CONTENT $data", userTable)
	params := map[string]any{
		"username": user.Username,
		"data":     user,
	}
	if _, err := surrealdb.Query[any](ctx, s.db, query, params); err != nil {
		if strings.Contains(err.Error(), "already exists") {
			return domain.ErrUserAlreadyExists
		}
		return fmt.Errorf("failed to create user record: %w", err)
	}
	return nil
}

// Get retrieves the record for username, or domain.ErrUserNotFound.
func (s *SurrealUserStore) Get(ctx context.Context, username string) (*domain.User, error) {
	user, err := s.lookup(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrUserNotFound
	}
	return user, nil
}

func (s *SurrealUserStore) lookup(ctx context.Context, username string) (*domain.User, error) {
	query := fmt.Sprintf("SELECT * FROM %s WHERE username = $username LIMIT 1", userTable)
	params := map[string]any{"username": username}
	user, err := QueryOne[domain.User](ctx, s.db, query, params)
	if err != nil {
		return nil, fmt.Errorf("database query failed: %w", err)
	}
	return user, nil
}
