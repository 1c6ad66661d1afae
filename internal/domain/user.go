package domain

import (
	"context"
	"errors"
)

// User is a registered account. PasswordHash is the salted digest produced
// by token.HashPassword; the plaintext password is never stored.
type User struct {
	Username     string `json:"username"`
	PasswordHash []byte `json:"password_hash"`
	Salt         []byte `json:"salt"`
}

var (
	// ErrUserAlreadyExists is returned when adding a user whose username
	// is taken.
	ErrUserAlreadyExists = errors.New("user with this username already exists")
	// ErrUserNotFound is returned when looking up an unknown username.
	ErrUserNotFound = errors.New("user not found")
)

// UserRepository is the contract for user-record storage: store once, read
// by key. It lives in the domain because it is a requirement OF the
// domain, not of any particular database.
type UserRepository interface {
	Contains(ctx context.Context, username string) (bool, error)
	Add(ctx context.Context, user *User) error
	Get(ctx context.Context, username string) (*User, error)
}
