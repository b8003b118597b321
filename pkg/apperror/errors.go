package apperror

import (
	"errors"
	"net/http"
)

// Kind classifies an error by how the billing core recovers from it
type Kind string

const (
	KindGeneric            Kind = ""
	KindValidation         Kind = "validation"
	KindLocalStorage       Kind = "local_storage"
	KindRemoteWrite        Kind = "remote_write"
	KindRemoteSubscription Kind = "remote_subscription"
)

// AppError represents an application error with HTTP status code
type AppError struct {
	Code    int          `json:"code"`
	Message string       `json:"message"`
	Kind    Kind         `json:"kind,omitempty"`
	Errors  []FieldError `json:"errors,omitempty"`
	Err     error        `json:"-"`
}

// FieldError represents a validation error for a specific field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Common errors
var (
	ErrNotFound           = &AppError{Code: http.StatusNotFound, Message: "Resource not found"}
	ErrUnauthorized       = &AppError{Code: http.StatusUnauthorized, Message: "Unauthorized"}
	ErrForbidden          = &AppError{Code: http.StatusForbidden, Message: "Forbidden"}
	ErrBadRequest         = &AppError{Code: http.StatusBadRequest, Message: "Bad request"}
	ErrInternalServer     = &AppError{Code: http.StatusInternalServerError, Message: "Internal server error"}
	ErrConflict           = &AppError{Code: http.StatusConflict, Message: "Resource already exists"}
	ErrInvalidCredentials = &AppError{Code: http.StatusUnauthorized, Message: "Invalid credentials"}
	ErrSetupRequired      = &AppError{Code: http.StatusPreconditionRequired, Message: "Auth setup has not been completed"}
	ErrInvalidToken       = &AppError{Code: http.StatusUnauthorized, Message: "Invalid token"}
)

// NewAppError creates a new application error
func NewAppError(code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// NewValidationError creates a new validation error
func NewValidationError(fieldErrors []FieldError) *AppError {
	return &AppError{
		Code:    http.StatusUnprocessableEntity,
		Message: "Validation failed",
		Kind:    KindValidation,
		Errors:  fieldErrors,
	}
}

// NewFieldError is a shorthand for a validation error on a single field
func NewFieldError(field, message string) *AppError {
	return NewValidationError([]FieldError{{Field: field, Message: message}})
}

// NewLocalStorageError wraps a failure of the device-local persistent store
func NewLocalStorageError(op string, err error) *AppError {
	return &AppError{
		Code:    http.StatusInternalServerError,
		Message: "Local storage unavailable (" + op + ")",
		Kind:    KindLocalStorage,
		Err:     err,
	}
}

// NewRemoteWriteError wraps a failed or unacknowledged remote write
func NewRemoteWriteError(err error) *AppError {
	return &AppError{
		Code:    http.StatusServiceUnavailable,
		Message: "Remote write failed",
		Kind:    KindRemoteWrite,
		Err:     err,
	}
}

// NewRemoteSubscriptionError wraps a failure to establish or keep the live bill stream
func NewRemoteSubscriptionError(err error) *AppError {
	return &AppError{
		Code:    http.StatusServiceUnavailable,
		Message: "Live bill stream unavailable",
		Kind:    KindRemoteSubscription,
		Err:     err,
	}
}

// NewNotFoundError creates a not found error with a custom message
func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Code:    http.StatusNotFound,
		Message: resource + " not found",
	}
}

// NewBadRequestError creates a bad request error with a custom message
func NewBadRequestError(message string) *AppError {
	return &AppError{
		Code:    http.StatusBadRequest,
		Message: message,
	}
}

// IsKind reports whether err carries an AppError of the given kind
func IsKind(err error, kind Kind) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind == kind
	}
	return false
}

// GetAppError converts an error to AppError if possible
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return &AppError{
		Code:    http.StatusInternalServerError,
		Message: err.Error(),
	}
}
