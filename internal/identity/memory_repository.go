package identity

import (
	"context"
	"strings"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/madhavanSPR/VDI-DASHBOARD/internal/domain"
)

// MemoryRepository is the process-local user table used when no database is configured.
// Usernames are unique case-insensitively, matching the Postgres index.
type MemoryRepository struct {
	mu         sync.RWMutex
	clock      clockwork.Clock
	byID       map[int64]*domain.User
	byUsername map[string]*domain.User
	lastID     int64
}

func NewMemoryRepository(clock clockwork.Clock) *MemoryRepository {
	return &MemoryRepository{
		clock:      clock,
		byID:       make(map[int64]*domain.User),
		byUsername: make(map[string]*domain.User),
	}
}

func (r *MemoryRepository) GetByID(_ context.Context, id int64) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	out := *u
	return &out, nil
}

func (r *MemoryRepository) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byUsername[strings.ToLower(username)]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	out := *u
	return &out, nil
}

func (r *MemoryRepository) Create(_ context.Context, username, passwordHash string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := strings.ToLower(username)
	if _, exists := r.byUsername[key]; exists {
		return nil, domain.ErrUsernameTaken
	}

	r.lastID++
	u := &domain.User{
		ID:           r.lastID,
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    r.clock.Now().UTC(),
	}
	r.byID[u.ID] = u
	r.byUsername[key] = u

	out := *u
	return &out, nil
}

// Compile-time interface check.
var _ domain.UserRepository = (*MemoryRepository)(nil)
