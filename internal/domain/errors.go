package domain

import (
	"errors"
	"fmt"
)

// Umbrella errors. Specific errors wrap one of these so callers can classify
// with errors.Is without knowing every sentinel.
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

var (
	ErrVDINotFound     = fmt.Errorf("vdi %w", ErrNotFound)
	ErrRequestNotFound = fmt.Errorf("request %w", ErrNotFound)
	ErrUserNotFound    = fmt.Errorf("user %w", ErrNotFound)
	ErrSessionNotFound = fmt.Errorf("session %w", ErrNotFound)

	ErrVDIAlreadyAssigned = fmt.Errorf("%w: vdi is already assigned", ErrConflict)
	ErrRequestNotPending  = fmt.Errorf("%w: request is no longer pending", ErrConflict)
	ErrHolderChanged      = fmt.Errorf("%w: vdi changed hands since the request was made", ErrConflict)
	ErrUsernameTaken      = fmt.Errorf("%w: username already exists", ErrConflict)

	ErrInvalidCredentials = errors.New("invalid username or password")
)
