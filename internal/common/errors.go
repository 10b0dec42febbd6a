package common

import (
	"errors"
	"fmt"
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

// Pipeline error taxonomy. Only ErrFatalIO aborts a run; everything else
// degrades per stage policy and is absorbed into the step log.
var (
	ErrFatalIO             = errors.New("fatal io error")
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrParse               = errors.New("parse error")
	ErrValidation          = errors.New("validation failed")
	ErrNotFound            = errors.New("resource not found")
	ErrInvalidInput        = errors.New("invalid input")
	ErrDatabase            = errors.New("database error")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// FatalIO marks an error as run-aborting (file or provisional row persistence).
func FatalIO(message string, cause error) error {
	return fmt.Errorf("%s: %w: %w", message, ErrFatalIO, cause)
}

// Unavailable marks a provider as unreachable; callers degrade, never abort.
func Unavailable(provider string, cause error) error {
	return fmt.Errorf("%s: %w: %w", provider, ErrProviderUnavailable, cause)
}

// ParseFailure marks a provider response that could not be decoded.
func ParseFailure(provider string, cause error) error {
	return fmt.Errorf("%s: %w: %w", provider, ErrParse, cause)
}
