package clibase

import (
	"errors"
	"fmt"
)

// ExitError carries the process exit code for an error. A nil Err exits
// silently.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// Exit wraps err with an exit code.
func Exit(code int, err error) error { return &ExitError{Code: code, Err: err} }

// Usage marks err as a command-line usage error (exit 2).
func Usage(err error) error { return &ExitError{Code: 2, Err: err} }

// Usagef formats a usage error.
func Usagef(format string, args ...any) error { return Usage(fmt.Errorf(format, args...)) }

// CodeOf maps an error to an exit code: nil is 0, an ExitError carries its own
// code, anything else (cobra parse errors) is a usage error.
func CodeOf(err error) int {
	if err == nil {
		return 0
	}
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return 2
}
