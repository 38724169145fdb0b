// Package errors provides structured errors that carry a category, a client-facing
// message and log context, and map onto HTTP status codes.
package errors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/madhavanSPR/VDI-DASHBOARD/internal/domain"
)

// ErrorType is the category of an error. It is also the "type" field of the JSON body.
type ErrorType string

const (
	TypeValidation   ErrorType = "validation"   // 400
	TypeRejected     ErrorType = "rejected"     // 400, a ledger action refused by current state
	TypeUnauthorized ErrorType = "unauthorized" // 401
	TypeNotFound     ErrorType = "not_found"    // 404
	TypeConflict     ErrorType = "conflict"     // 409
	TypeInternal     ErrorType = "internal"     // 500
	TypeExternal     ErrorType = "external"     // 502
)

type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]any
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) HTTPStatus() int {
	switch e.Type {
	case TypeValidation, TypeRejected:
		return http.StatusBadRequest
	case TypeUnauthorized:
		return http.StatusUnauthorized
	case TypeNotFound:
		return http.StatusNotFound
	case TypeConflict:
		return http.StatusConflict
	case TypeExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func newError(t ErrorType, message string, cause error) *Error {
	return &Error{Type: t, Message: message, Cause: cause, Context: make(map[string]any)}
}

func ValidationError(message string) *Error {
	return newError(TypeValidation, message, nil)
}

// RejectedError reports a ledger action that failed against the current state.
// The cause's message is what the client sees.
func RejectedError(cause error) *Error {
	return newError(TypeRejected, cause.Error(), cause)
}

func UnauthorizedError(message string) *Error {
	return newError(TypeUnauthorized, message, nil)
}

func NotFoundError(message string) *Error {
	return newError(TypeNotFound, message, nil)
}

func ConflictError(message string) *Error {
	return newError(TypeConflict, message, nil)
}

func InternalError(message string, cause error) *Error {
	return newError(TypeInternal, message, cause)
}

func ExternalError(message string, cause error) *Error {
	return newError(TypeExternal, message, cause)
}

// WithContext adds a log field (chainable).
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

type ErrorResponse struct {
	Error   string         `json:"error"`
	Type    ErrorType      `json:"type"`
	Context map[string]any `json:"context,omitempty"`
}

func (e *Error) ToResponse() ErrorResponse {
	return ErrorResponse{
		Error:   e.Message,
		Type:    e.Type,
		Context: e.Context,
	}
}

// FromLedger maps the outcome of a VDI or request action. NotFound and Conflict
// become 400 rejections; anything else is internal.
func FromLedger(err error) *Error {
	if err == nil {
		return nil
	}
	if se, ok := asError(err); ok {
		return se
	}
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrConflict) {
		return RejectedError(err)
	}
	return InternalError("internal server error", err)
}

// AsStructuredError converts any error into a structured Error.
// Unknown errors become internal errors with a generic message.
func AsStructuredError(err error) *Error {
	if err == nil {
		return nil
	}
	if se, ok := asError(err); ok {
		return se
	}
	return InternalError("internal server error", err)
}

func asError(err error) (*Error, bool) {
	var se *Error
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
