// Package apperror defines the error taxonomy shared by every layer of the portal.
//
// Each AppError wraps one sentinel so callers can classify with errors.Is
// without caring which layer produced it:
//
//	ErrCredential → bad, duplicate or weak credentials (user-correctable)
//	ErrNetwork    → a collaborator was unreachable (transient, no auto-retry)
//	ErrNotFound   → an expected record is missing
//	ErrForbidden  → a write or view was rejected for lack of permission
//
// HTTP handlers translate these into status codes; services never know about HTTP.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrCredential   = errors.New("credential error")
	ErrNetwork      = errors.New("network error")
)

// Credential error codes surfaced by the identity provider.
const (
	CodeDuplicateEmail    = "duplicate-email"
	CodeWeakPassword      = "weak-password"
	CodeInvalidCredential = "invalid-credential"
	CodeCancelled         = "cancelled"
)

type AppError struct {
	Err     error  // sentinel this error classifies as
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
	Code    string // Optional: machine-readable sub-kind, e.g. "weak-password"
	Cause   error  // Optional: underlying error, kept for logs only
}

func (e *AppError) Error() string {
	return e.Message
}

// Unwrap exposes both the sentinel and the cause so errors.Is matches either.
func (e *AppError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthorized reports a request that needs an authenticated identity.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// Credential returns a user-correctable credential failure.
func Credential(code, message string) *AppError {
	return &AppError{
		Err:     ErrCredential,
		Code:    code,
		Message: message,
	}
}

// Network wraps a transport failure talking to an external collaborator.
func Network(message string, cause error) *AppError {
	return &AppError{
		Err:     ErrNetwork,
		Message: message,
		Cause:   cause,
	}
}

// CodeOf returns the Code of the first AppError in err's chain, or "".
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}
