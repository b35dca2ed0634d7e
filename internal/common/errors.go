package common

import (
	"errors"
	"net/http"
)

// Error codes shared by every handler.
const (
	CodeBadRequest = "BAD_REQUEST"
	CodeNotFound   = "NOT_FOUND"
	CodeInternal   = "INTERNAL"
)

// AppError is an error the HTTP layer can render: a stable code, a client
// safe message and a status.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
	Details    any
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// IsAppError reports whether err already carries an AppError.
func IsAppError(err error) bool {
	var target *AppError
	return errors.As(err, &target)
}

// BadRequest wraps err as a 400 BAD_REQUEST AppError.
func BadRequest(message string, err error) *AppError {
	return NewAppError(CodeBadRequest, message, http.StatusBadRequest, err)
}

// ErrorRule maps a sentinel onto an API error. An empty Message reuses the
// wrapped error's text.
type ErrorRule struct {
	Target  error
	Status  int
	Code    string
	Message string
}

// MapError returns err as an AppError using the first rule whose Target
// matches errors.Is. AppErrors and unmatched errors are returned unchanged.
func MapError(err error, rules ...ErrorRule) error {
	if err == nil || IsAppError(err) {
		return err
	}
	for _, rule := range rules {
		if !errors.Is(err, rule.Target) {
			continue
		}
		message := rule.Message
		if message == "" {
			message = err.Error()
		}
		return NewAppError(rule.Code, message, rule.Status, err)
	}
	return err
}
