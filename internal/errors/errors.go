// Package errors provides the error codes shared by the store, queue, sync engine and façade.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode identifies a class of failure. Codes are stable and surface in
// logs, metrics labels and the HTTP status endpoint.
type ErrorCode string

const (
	// General errors
	ErrInternal   ErrorCode = "INTERNAL_ERROR"
	ErrInvalid    ErrorCode = "INVALID_INPUT"
	ErrNotFound   ErrorCode = "NOT_FOUND"
	ErrPermission ErrorCode = "PERMISSION_DENIED"

	// Database errors
	ErrDatabase  ErrorCode = "DATABASE_ERROR"
	ErrMigration ErrorCode = "MIGRATION_FAILED"

	// Local write path
	ErrLocalWrite  ErrorCode = "LOCAL_WRITE_FAILED"
	ErrQueueAppend ErrorCode = "QUEUE_APPEND_FAILED"
	ErrTenantScope ErrorCode = "TENANT_SCOPE_VIOLATION"
	ErrTranslation ErrorCode = "TRANSLATION_FAILED"

	// Sync errors
	ErrRemote         ErrorCode = "REMOTE_FAILED"
	ErrRemoteTimeout  ErrorCode = "REMOTE_TIMEOUT"
	ErrSyncInProgress ErrorCode = "SYNC_IN_PROGRESS"
)

// AppError represents an application error with code and message.
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
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new AppError with a formatted message.
func Newf(code ErrorCode, format string, args ...any) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap wraps an existing error with an error code.
func Wrap(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Is reports whether any error in err's chain is an AppError with the given code.
func Is(err error, code ErrorCode) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// CodeOf returns the code of the outermost AppError in err's chain,
// or ErrInternal when there is none.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal
}

// IsRetryable reports whether replaying the failed operation later can succeed.
// Contract violations never heal on their own.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	switch CodeOf(err) {
	case ErrTenantScope, ErrInvalid, ErrPermission:
		return false
	}
	return true
}
