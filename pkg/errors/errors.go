package errors

import (
	stderrors "errors"
	"net/http"
)

// AppError is a custom error type that includes an HTTP status code
type AppError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *AppError) Error() string {
	return e.Message
}

// NewAppError creates a new AppError
func NewAppError(code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Common errors
var (
	ErrInvalidRequest = NewAppError(http.StatusBadRequest, "Invalid request parameters")
	ErrUnauthorized   = NewAppError(http.StatusUnauthorized, "Unauthorized access")
	ErrForbidden      = NewAppError(http.StatusForbidden, "Access denied")
	ErrNotFound       = NewAppError(http.StatusNotFound, "Resource not found")
	ErrInternalServer = NewAppError(http.StatusInternalServerError, "Internal server error")
	ErrRateLimit      = NewAppError(http.StatusTooManyRequests, "Rate limit exceeded")
)

// Helper functions to create specific errors
func BadRequest(msg string) *AppError {
	return NewAppError(http.StatusBadRequest, msg)
}

func NotFound(msg string) *AppError {
	return NewAppError(http.StatusNotFound, msg)
}

func Unauthorized(msg string) *AppError {
	return NewAppError(http.StatusUnauthorized, msg)
}

// Forbidden is returned when the caller is not a participant or admin.
// The message stays generic so membership information does not leak.
func Forbidden(msg string) *AppError {
	return NewAppError(http.StatusForbidden, msg)
}

func Conflict(msg string) *AppError {
	return NewAppError(http.StatusConflict, msg)
}

func Internal(msg string) *AppError {
	return NewAppError(http.StatusInternalServerError, msg)
}

// Validation is an alias for BadRequest used by the chat services so call
// sites read as the failure they report.
func Validation(msg string) *AppError {
	return BadRequest(msg)
}

// As unwraps err into *AppError if possible.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsValidation reports whether err is a 400-level validation error.
func IsValidation(err error) bool {
	appErr, ok := As(err)
	return ok && appErr.Code == http.StatusBadRequest
}

// IsForbidden reports whether err is an authorization failure.
func IsForbidden(err error) bool {
	appErr, ok := As(err)
	return ok && appErr.Code == http.StatusForbidden
}

// IsNotFound reports whether err is a missing-entity failure.
func IsNotFound(err error) bool {
	appErr, ok := As(err)
	return ok && appErr.Code == http.StatusNotFound
}
