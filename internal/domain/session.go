package domain

import (
	"context"
	"time"
)

// Session binds an opaque session ID (carried in the signed cookie) to a user.
type Session struct {
	ID        string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

// SessionStore keeps server-side sessions. Get returns ErrSessionNotFound for
// unknown or expired sessions; Delete is idempotent.
type SessionStore interface {
	Create(ctx context.Context, userID int64, ttl time.Duration) (*Session, error)
	Get(ctx context.Context, sessionID string) (*Session, error)
	Delete(ctx context.Context, sessionID string) error
}
