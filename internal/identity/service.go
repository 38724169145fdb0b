package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/madhavanSPR/VDI-DASHBOARD/internal/domain"
)

var (
	ErrInvalidUsername = errors.New("username must be 3-32 characters of letters, digits, '_', '.' or '-'")
	ErrInvalidPassword = errors.New("password must be 6-128 characters")
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{3,32}$`)

const (
	minPasswordLen = 6
	maxPasswordLen = 128
)

// Service is the Identity Store. It is the only writer of user records.
type Service struct {
	users domain.UserRepository
	hash  func(password string) (string, error)

	// dummyHash is verified against when the username is unknown so that
	// Authenticate costs the same for unknown and known users.
	dummyHash string
}

func NewService(users domain.UserRepository) *Service {
	dummy, _ := hashWithSalt("not-a-real-password", make([]byte, saltLen))
	return &Service{users: users, hash: HashPassword, dummyHash: dummy}
}

func (s *Service) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *Service) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return s.users.GetByUsername(ctx, username)
}

// CreateUser validates the credentials, hashes the password and stores the user.
// A taken username fails with domain.ErrUsernameTaken.
func (s *Service) CreateUser(ctx context.Context, username, password string) (*domain.User, error) {
	if err := ValidateCredentials(username, password); err != nil {
		return nil, err
	}

	hash, err := s.hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.Create(ctx, username, hash)
	if err != nil {
		return nil, fmt.Errorf("create user %q: %w", username, err)
	}
	return user, nil
}

// Authenticate returns the user when the password matches, and
// domain.ErrInvalidCredentials for an unknown user or wrong password.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if errors.Is(err, domain.ErrUserNotFound) {
		_, _ = VerifyPassword(s.dummyHash, password)
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	ok, err := VerifyPassword(user.PasswordHash, password)
	if err != nil {
		slog.ErrorContext(ctx, "Stored password hash is unreadable", "user_id", user.ID, "error", err)
		return nil, domain.ErrInvalidCredentials
	}
	if !ok {
		return nil, domain.ErrInvalidCredentials
	}
	return user, nil
}

// Seed creates each account that does not exist yet. Existing accounts are left alone.
func (s *Service) Seed(ctx context.Context, accounts []SeedAccount) (created int, err error) {
	for _, acc := range accounts {
		_, err := s.users.GetByUsername(ctx, acc.Username)
		if err == nil {
			continue
		}
		if !errors.Is(err, domain.ErrUserNotFound) {
			return created, fmt.Errorf("seed lookup %q: %w", acc.Username, err)
		}

		if _, err := s.users.Create(ctx, acc.Username, acc.PasswordHash); err != nil {
			if errors.Is(err, domain.ErrUsernameTaken) {
				continue
			}
			return created, fmt.Errorf("seed create %q: %w", acc.Username, err)
		}
		created++
	}
	return created, nil
}

func ValidateCredentials(username, password string) error {
	if !usernamePattern.MatchString(username) {
		return ErrInvalidUsername
	}
	if n := len(password); n < minPasswordLen || n > maxPasswordLen {
		return ErrInvalidPassword
	}
	return nil
}
