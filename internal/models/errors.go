package models

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes returned in AppError.Code.
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeBadRequest         = "BAD_REQUEST"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeForbidden          = "FORBIDDEN"
	CodeNotFound           = "NOT_FOUND"
	CodeConflict           = "CONFLICT"
	CodeTooManyRequests    = "TOO_MANY_REQUESTS"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeInternal           = "INTERNAL_ERROR"
)

// FieldError names one failing input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// AppError represents a custom application error.
//
// Operational errors are expected outcomes (bad input, missing auth) whose
// Message is safe to show to clients. Non-operational errors are bugs or
// infrastructure failures and only ever surface as a generic message.
type AppError struct {
	Code        string
	Status      int
	Message     string
	Fields      []FieldError
	Err         error
	Operational bool
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

// AsAppError extracts an *AppError from err's chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether err carries an AppError with the given code.
func HasCode(err error, code string) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Code == code
}

func operational(code string, status int, message string) *AppError {
	return &AppError{Code: code, Status: status, Message: message, Operational: true}
}

// NewValidationError reports input that failed validation. Fields may be empty
// when the failure is not attributable to a single field.
func NewValidationError(message string, fields ...FieldError) *AppError {
	e := operational(CodeValidation, http.StatusUnprocessableEntity, message)
	e.Fields = fields
	return e
}

func NewBadRequestError(message string) *AppError {
	return operational(CodeBadRequest, http.StatusBadRequest, message)
}

func NewUnauthorizedError(message string) *AppError {
	return operational(CodeUnauthorized, http.StatusUnauthorized, message)
}

func NewForbiddenError(message string) *AppError {
	return operational(CodeForbidden, http.StatusForbidden, message)
}

func NewNotFoundError(resource string, id interface{}) *AppError {
	return operational(CodeNotFound, http.StatusNotFound, fmt.Sprintf("%s with ID %v not found", resource, id))
}

func NewConflictError(message string) *AppError {
	return operational(CodeConflict, http.StatusConflict, message)
}

func NewTooManyRequestsError(message string) *AppError {
	return operational(CodeTooManyRequests, http.StatusTooManyRequests, message)
}

// NewServiceUnavailableError marks a retryable dependency failure such as a
// store timeout.
func NewServiceUnavailableError(err error) *AppError {
	e := operational(CodeServiceUnavailable, http.StatusServiceUnavailable, "Service temporarily unavailable, please retry")
	e.Err = err
	return e
}

func NewInternalError(err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Status:  http.StatusInternalServerError,
		Message: "Internal server error",
		Err:     err,
	}
}
