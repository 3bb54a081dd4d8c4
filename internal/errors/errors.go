// Package errors provides the error taxonomy shared by the store, the sync
// engine and the presentation layer.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode identifies a failure class. Callers branch on the code, not on
// error strings.
type ErrorCode string

const (
	// ErrInternal is an unclassified failure.
	ErrInternal ErrorCode = "INTERNAL_ERROR"

	// ErrNotFound is returned when a requested row does not exist and the
	// absence is an error for the caller.
	ErrNotFound ErrorCode = "NOT_FOUND"

	// ErrStorage is a local persistence failure. Fatal for the triggering
	// request; logged and surfaced as a generic failure.
	ErrStorage ErrorCode = "STORAGE_ERROR"

	// ErrRemoteUnavailable is a network or auth failure talking to the
	// remote journal collection. Recoverable: the user re-issues the action.
	ErrRemoteUnavailable ErrorCode = "REMOTE_UNAVAILABLE"

	// ErrDecryption means a stored ciphertext does not decrypt with the
	// current secret key. The operator must reconfigure credentials.
	ErrDecryption ErrorCode = "DECRYPTION_ERROR"

	// ErrQuerySyntax is a malformed full-text query. Recovered locally with
	// a validation message, never a crash.
	ErrQuerySyntax ErrorCode = "QUERY_SYNTAX_ERROR"
)

// AppError carries an ErrorCode alongside a message and an optional cause.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Wrap wraps an existing error with an error code.
func Wrap(code ErrorCode, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code ErrorCode) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// CodeOf returns the code carried by err, or ErrInternal when err carries
// none.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal
}
