package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/madhavanSPR/VDI-DASHBOARD/internal/domain"
)

const sweepInterval = time.Minute

// MemoryStore keeps sessions in process memory. Expired sessions are dropped
// on lookup and by a sweep piggybacked on Create.
type MemoryStore struct {
	mu        sync.Mutex
	clock     clockwork.Clock
	sessions  map[string]domain.Session
	lastSweep time.Time
}

func NewMemoryStore(clock clockwork.Clock) *MemoryStore {
	return &MemoryStore{
		clock:     clock,
		sessions:  make(map[string]domain.Session),
		lastSweep: clock.Now(),
	}
}

func (s *MemoryStore) Create(_ context.Context, userID int64, ttl time.Duration) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	if now.Sub(s.lastSweep) >= sweepInterval {
		s.sweepLocked(now)
	}

	sess := domain.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	s.sessions[sess.ID] = sess
	return &sess, nil
}

func (s *MemoryStore) Get(_ context.Context, sessionID string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	if !s.clock.Now().Before(sess.ExpiresAt) {
		delete(s.sessions, sessionID)
		return nil, domain.ErrSessionNotFound
	}
	return &sess, nil
}

func (s *MemoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, sessionID)
	return nil
}

// Len reports the number of stored sessions, expired ones included until swept.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *MemoryStore) sweepLocked(now time.Time) {
	for id, sess := range s.sessions {
		if !now.Before(sess.ExpiresAt) {
			delete(s.sessions, id)
		}
	}
	s.lastSweep = now
}

var _ domain.SessionStore = (*MemoryStore)(nil)
