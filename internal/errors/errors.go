package errors

import (
	"errors"
	"fmt"
)

// Code is a stable, machine-readable error type mapped to process exit codes.
type Code int

const (
	CodeSuccess     Code = 0
	CodeInternal    Code = 1
	CodeUsage       Code = 2
	CodeAuth        Code = 10
	CodeRateLimited Code = 11
	CodeUnavailable Code = 12
	CodeValidation  Code = 13
	CodeNotFound    Code = 14
	CodeIntegrity   Code = 15
	CodeBlocked     Code = 16
	CodeTimeout     Code = 17
)

// Error is a typed error that carries a stable error code.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// CodeOf extracts the code from err, defaulting to CodeInternal for untyped
// errors and CodeSuccess for nil.
func CodeOf(err error) Code {
	if err == nil {
		return CodeSuccess
	}
	if typed, ok := As(err); ok {
		return typed.Code
	}
	return CodeInternal
}

func Is(err error, code Code) bool {
	return CodeOf(err) == code
}

// UserMessage returns the user-facing message of err, dropping wrapped
// cause detail. Untyped errors pass through unchanged.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if typed, ok := As(err); ok && typed.Message != "" {
		return typed.Message
	}
	return err.Error()
}

func ExitCode(err error) int {
	return int(CodeOf(err))
}
