package apperror

import (
	"errors"
	"fmt"
)

// Code identifies a category of application error
type Code string

const (
	CodeValidation      Code = "VALIDATION_ERROR"
	CodeNotFound        Code = "NOT_FOUND"
	CodeConflict        Code = "CONFLICT"
	CodeInvalidState    Code = "INVALID_STATE"
	CodeDelivery        Code = "DELIVERY_ERROR"
	CodeCorrelationMiss Code = "CORRELATION_MISS"
	CodeInternal        Code = "INTERNAL_ERROR"
)

// AppError is an error carrying a category code
type AppError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Validation reports malformed input rejected before persistence
func Validation(format string, args ...any) *AppError {
	return &AppError{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// NotFound reports a missing resource
func NotFound(resource, id string) *AppError {
	return &AppError{Code: CodeNotFound, Message: fmt.Sprintf("%s not found: %s", resource, id)}
}

// Conflict reports a uniqueness violation
func Conflict(message string, err error) *AppError {
	return &AppError{Code: CodeConflict, Message: message, Err: err}
}

// InvalidState reports an illegal state transition
func InvalidState(format string, args ...any) *AppError {
	return &AppError{Code: CodeInvalidState, Message: fmt.Sprintf(format, args...)}
}

// Delivery reports a failed send through a delivery channel
func Delivery(message string, err error) *AppError {
	return &AppError{Code: CodeDelivery, Message: message, Err: err}
}

// CorrelationMiss reports an inbound reply that matched no outstanding reminder
func CorrelationMiss(format string, args ...any) *AppError {
	return &AppError{Code: CodeCorrelationMiss, Message: fmt.Sprintf(format, args...)}
}

// Internal wraps an unexpected error
func Internal(err error) *AppError {
	return &AppError{Code: CodeInternal, Message: "internal error", Err: err}
}

// CodeOf returns the code of the first AppError in err's chain, or CodeInternal
func CodeOf(err error) Code {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// Is reports whether err carries the given code
func Is(err error, code Code) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// MessageOf returns the client-facing message of err
func MessageOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "internal error"
}
