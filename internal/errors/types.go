package errors

import (
	"errors"
	"fmt"
)

// PermanentError represents an error that should not be retried
type PermanentError struct {
	Err     error
	Message string // Operator-friendly message
}

func (e *PermanentError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("permanent error: %v", e.Err)
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// DegradedError represents a step that continued with reduced functionality.
// FallbackContent holds what was handed back to the caller instead.
type DegradedError struct {
	Err             error
	FallbackContent string
	Message         string
}

func (e *DegradedError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("degraded error: %v", e.Err)
}

func (e *DegradedError) Unwrap() error {
	return e.Err
}

// NewPermanent wraps err with an operator-facing message.
func NewPermanent(err error, format string, args ...any) error {
	return &PermanentError{Err: err, Message: fmt.Sprintf(format, args...)}
}

// IsDegraded checks if an error allows degraded service
func IsDegraded(err error) bool {
	var degradedErr *DegradedError
	return errors.As(err, &degradedErr)
}

// IsPermanent checks if an error was explicitly marked permanent
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}
	var permanentErr *PermanentError
	return errors.As(err, &permanentErr)
}

// FallbackContent returns the content a degraded error carried, if any.
func FallbackContent(err error) (string, bool) {
	var degradedErr *DegradedError
	if errors.As(err, &degradedErr) {
		return degradedErr.FallbackContent, true
	}
	return "", false
}
