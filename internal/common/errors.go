package common

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInternal     = errors.New("internal error")
	ErrDatabase     = errors.New("database error")
	ErrValidation   = errors.New("validation failed")
	ErrConflict     = errors.New("conflicting state")

	// pipeline boundaries
	ErrAuth      = errors.New("authentication failed")
	ErrInference = errors.New("inference failed")
	ErrParse     = errors.New("unparsable model output")
	ErrStore     = errors.New("store failure")
)

// Error codes carried by AppError.Code.
const (
	CodeAuth      = "AUTH_ERROR"
	CodeInference = "INFERENCE_ERROR"
	CodeStore     = "STORE_ERROR"
	CodeConfig    = "CONFIG_ERROR"
	CodeNotFound  = "NOT_FOUND"
	CodeConflict  = "CONFLICT"
	CodeInvalid   = "INVALID_INPUT"
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// AuthError reports a failed or impossible token exchange.
func AuthError(message string, cause error) *AppError {
	return NewAppError(CodeAuth, message, join(ErrAuth, cause))
}

// InferenceError reports a failed call to the inference service.
func InferenceError(message string, cause error) *AppError {
	return NewAppError(CodeInference, message, join(ErrInference, cause))
}

// StoreError reports a failed read or write against a store.
func StoreError(message string, cause error) *AppError {
	return NewAppError(CodeStore, message, join(ErrStore, cause))
}

func NotFound(message string) *AppError {
	return NewAppError(CodeNotFound, message, ErrNotFound)
}

func Conflict(message string) *AppError {
	return NewAppError(CodeConflict, message, ErrConflict)
}

func InvalidInput(message string) *AppError {
	return NewAppError(CodeInvalid, message, ErrInvalidInput)
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// HTTPStatus maps an error onto the status code returned to API callers.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrAuth), errors.Is(err, ErrInference):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ErrorCode returns the AppError code in err's chain, or "INTERNAL".
func ErrorCode(err error) string {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return "INTERNAL"
}

func join(sentinel, cause error) error {
	if cause == nil {
		return sentinel
	}
	return errors.Join(sentinel, cause)
}
