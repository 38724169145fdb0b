package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/madhavanSPR/VDI-DASHBOARD/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "vdi:session:"

// SessionStore keeps sessions as JSON strings whose Redis TTL is the session lifetime.
type SessionStore struct {
	rdb   goredis.Cmdable
	clock clockwork.Clock
}

type sessionRecord struct {
	UserID    int64     `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func NewSessionStore(rdb goredis.Cmdable, clock clockwork.Clock) *SessionStore {
	return &SessionStore{rdb: rdb, clock: clock}
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}

func (s *SessionStore) Create(ctx context.Context, userID int64, ttl time.Duration) (*domain.Session, error) {
	now := s.clock.Now().UTC()
	sess := &domain.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	data, err := json.Marshal(sessionRecord{UserID: userID, CreatedAt: sess.CreatedAt, ExpiresAt: sess.ExpiresAt})
	if err != nil {
		return nil, fmt.Errorf("encode session: %w", err)
	}
	if err := s.rdb.Set(ctx, sessionKey(sess.ID), data, ttl).Err(); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}
	return sess, nil
}

func (s *SessionStore) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	data, err := s.rdb.Get(ctx, sessionKey(sessionID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	var rec sessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if !s.clock.Now().Before(rec.ExpiresAt) {
		return nil, domain.ErrSessionNotFound
	}

	return &domain.Session{
		ID:        sessionID,
		UserID:    rec.UserID,
		CreatedAt: rec.CreatedAt,
		ExpiresAt: rec.ExpiresAt,
	}, nil
}

func (s *SessionStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.rdb.Del(ctx, sessionKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

var _ domain.SessionStore = (*SessionStore)(nil)
