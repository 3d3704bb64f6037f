package main

import (
	apperrors "callsieve/internal/errors"
)

const (
	exitRuntime = 1
	exitUsage   = 2
)

// ExitCodeError wraps an error with a specific process exit code.
//
// Most commands return plain errors and exit with code 1. Configuration and
// catalog problems exit with 2 so scripts can tell bad invocations apart.
type ExitCodeError struct {
	Code int
	Err  error
}

func (e *ExitCodeError) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func (e *ExitCodeError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// usageError marks permanent failures with the usage exit code.
func usageError(err error) error {
	if err == nil {
		return nil
	}
	if apperrors.IsPermanent(err) {
		return &ExitCodeError{Code: exitUsage, Err: err}
	}
	return err
}
