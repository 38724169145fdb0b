package domain

import (
	"context"
	"time"
)

// User is an authenticated identity. Never mutated after creation.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// UserRef is the public projection of a User sent to clients.
type UserRef struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

func (u *User) Ref() UserRef {
	return UserRef{ID: u.ID, Username: u.Username}
}

// UserRepository persists users. Create must fail with ErrUsernameTaken on duplicates.
type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	Create(ctx context.Context, username, passwordHash string) (*User, error)
}
