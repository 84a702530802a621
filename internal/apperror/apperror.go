// Package apperror defines the error taxonomy shared by every layer.
//
// Services return *AppError values wrapping one of the sentinels below.
// Handlers never inspect messages to decide what to do; they use errors.Is
// against the sentinels and show Message to the user.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation error")
	ErrConflict   = errors.New("conflict")
	ErrForbidden  = errors.New("forbidden")

	// Gate outcomes. None of these is a fault: the web layer turns each
	// into a redirect with a flash message.
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrProfileMissing  = errors.New("profile missing")
	ErrUnapproved      = errors.New("account not approved")
	ErrRoleMismatch    = errors.New("role mismatch")
)

type AppError struct {
	Err     error  // sentinel
	Message string // shown to the user
	Field   string // form field for validation errors
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
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

// Conflict reports a state clash, e.g. a duplicate review or a donation
// that is not in the status an operation requires.
func Conflict(message string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: message,
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

func Unauthenticated() *AppError {
	return &AppError{
		Err:     ErrUnauthenticated,
		Message: "Please log in to continue.",
	}
}

func ProfileMissing() *AppError {
	return &AppError{
		Err:     ErrProfileMissing,
		Message: "Your account has no profile.",
	}
}

func Unapproved() *AppError {
	return &AppError{
		Err:     ErrUnapproved,
		Message: "Your account is pending approval from the administrator.",
	}
}

// RoleMismatch is returned when a profile's role does not match the role an
// action requires. want is the required role, e.g. "donor".
func RoleMismatch(want string) *AppError {
	return &AppError{
		Err:     ErrRoleMismatch,
		Message: fmt.Sprintf("Only %s accounts can do that.", want),
	}
}

// MessageOf returns the user-facing message carried by err, or fallback when
// err carries none.
func MessageOf(err error, fallback string) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return fallback
}
