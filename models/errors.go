package models

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	CodeBadInput           ErrorCode = "BAD_INPUT"
	CodeUnauthenticated    ErrorCode = "UNAUTHENTICATED"
	CodeForbidden          ErrorCode = "FORBIDDEN"
	CodeNotFound           ErrorCode = "NOT_FOUND"
	CodeConflict           ErrorCode = "CONFLICT"
	CodeValidationFailed   ErrorCode = "VALIDATION_FAILED"
	CodeResourceLocked     ErrorCode = "RESOURCE_LOCKED"
	CodeRateLimited        ErrorCode = "RATE_LIMITED"
	CodeTimeout            ErrorCode = "TIMEOUT"
	CodeInternal           ErrorCode = "INTERNAL"
	CodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
)

// HTTPStatus maps an error code to the response status.
func (c ErrorCode) HTTPStatus() int {
	switch c {
	case CodeBadInput:
		return http.StatusBadRequest
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeValidationFailed:
		return http.StatusUnprocessableEntity
	case CodeResourceLocked:
		return http.StatusLocked
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether a client should retry with backoff.
func (c ErrorCode) Retryable() bool {
	switch c {
	case CodeRateLimited, CodeTimeout, CodeServiceUnavailable:
		return true
	}
	return false
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type AppError struct {
	Code             ErrorCode
	Message          string
	ValidationErrors []FieldError
	Details          map[string]interface{}
	Err              error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = map[string]interface{}{}
	}
	e.Details[key] = value
	return e
}

func NewBadInput(msg string) *AppError {
	return &AppError{Code: CodeBadInput, Message: msg}
}

func NewUnauthenticated(msg string) *AppError {
	return &AppError{Code: CodeUnauthenticated, Message: msg}
}

func NewForbidden(msg string) *AppError {
	return &AppError{Code: CodeForbidden, Message: msg}
}

func NewNotFound(msg string) *AppError {
	return &AppError{Code: CodeNotFound, Message: msg}
}

func NewConflict(msg string) *AppError {
	return &AppError{Code: CodeConflict, Message: msg}
}

func NewValidationFailed(fields []FieldError) *AppError {
	return &AppError{Code: CodeValidationFailed, Message: "validation failed", ValidationErrors: fields}
}

func NewResourceLocked(msg string) *AppError {
	return &AppError{Code: CodeResourceLocked, Message: msg}
}

func NewRateLimited(msg string) *AppError {
	return &AppError{Code: CodeRateLimited, Message: msg}
}

func NewInternal(msg string, err error) *AppError {
	return &AppError{Code: CodeInternal, Message: msg, Err: err}
}

// ErrorCodeOf extracts the code of an AppError anywhere in the chain, or
// CodeInternal for anything else.
func ErrorCodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}
