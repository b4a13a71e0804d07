package response

import (
	"errors"
	"fmt"
)

// Error codes
const (
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeConflict      = "CONFLICT"
	ErrCodeStaleVersion  = "STALE_VERSION"
	ErrCodeWriteConflict = "WRITE_CONFLICT"
	ErrCodeMergeConflict = "MERGE_CONFLICT"
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeForbidden     = "FORBIDDEN"
	ErrCodeInternal      = "INTERNAL_ERROR"
)

// AppError is the error type returned by the service layer
type AppError struct {
	Code    string
	Message string
	Details string
	// Meta carries identifiers and conflicting values for audit and UI messages
	Meta map[string]interface{}
}

func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// WithMeta attaches a key/value pair to the error and returns it
func (e *AppError) WithMeta(key string, value interface{}) *AppError {
	if e.Meta == nil {
		e.Meta = make(map[string]interface{})
	}
	e.Meta[key] = value
	return e
}

// NewAppError creates a new AppError
func NewAppError(code, message, details string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// NewValidationError creates a validation error
func NewValidationError(message, details string) *AppError {
	return NewAppError(ErrCodeValidation, message, details)
}

// NewNotFoundError creates a not found error
func NewNotFoundError(message, details string) *AppError {
	return NewAppError(ErrCodeNotFound, message, details)
}

// NewConflictError creates a conflict error
func NewConflictError(message, details string) *AppError {
	return NewAppError(ErrCodeConflict, message, details)
}

// NewMergeConflictError creates an error for duplicate stages that cannot be merged automatically
func NewMergeConflictError(message, details string) *AppError {
	return NewAppError(ErrCodeMergeConflict, message, details)
}

// NewForbiddenError creates a forbidden error
func NewForbiddenError(message, details string) *AppError {
	return NewAppError(ErrCodeForbidden, message, details)
}

// IsCode reports whether err is an AppError carrying code
func IsCode(err error, code string) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return false
	}
	return appErr.Code == code
}
