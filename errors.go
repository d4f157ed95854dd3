package sensormgr

import (
	"errors"
	"fmt"
)

// Error represents a structured sensor-manager error with context.
type Error struct {
	Op     string    // Operation that failed (e.g., "request", "register")
	Handle uint32    // Sensor handle (0 if not applicable)
	Client uint32    // Client id (0 if not applicable)
	Code   ErrorCode // High-level error category
	Msg    string    // Human-readable message
	Inner  error     // Wrapped error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var parts []string

	if e.Op != "" {
		parts = append(parts, fmt.Sprintf("op=%s", e.Op))
	}
	if e.Handle != 0 {
		parts = append(parts, fmt.Sprintf("handle=%d", e.Handle))
	}
	if e.Client != 0 {
		parts = append(parts, fmt.Sprintf("client=%d", e.Client))
	}

	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}

	if len(parts) > 0 {
		return fmt.Sprintf("sensormgr: %s (%s)", msg, parts[0])
	}
	return fmt.Sprintf("sensormgr: %s", msg)
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Inner
}

// Is provides errors.Is support keyed on error code.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	if te, ok := target.(*Error); ok {
		return e.Code == te.Code
	}
	return false
}

// ErrorCode represents a high-level error category.
type ErrorCode string

const (
	ErrCodeCapacityExhausted ErrorCode = "capacity exhausted"
	ErrCodeUnknownHandle     ErrorCode = "unknown sensor handle"
	ErrCodeUnknownClient     ErrorCode = "unknown client request"
	ErrCodeInfeasibleRequest ErrorCode = "infeasible request"
	ErrCodeDriverRefused     ErrorCode = "driver refused operation"
	ErrCodeInvalidConfig     ErrorCode = "invalid configuration"
)

// NewError creates a new structured error.
func NewError(op string, code ErrorCode, msg string) *Error {
	return &Error{Op: op, Code: code, Msg: msg}
}

// NewHandleError creates a new sensor-scoped error.
func NewHandleError(op string, handle uint32, code ErrorCode, msg string) *Error {
	return &Error{Op: op, Handle: handle, Code: code, Msg: msg}
}

// NewClientError creates a new client-scoped error.
func NewClientError(op string, handle, client uint32, code ErrorCode, msg string) *Error {
	return &Error{Op: op, Handle: handle, Client: client, Code: code, Msg: msg}
}

// WrapError wraps an existing error with sensormgr context.
func WrapError(op string, code ErrorCode, inner error) *Error {
	if inner == nil {
		return nil
	}
	return &Error{Op: op, Code: code, Msg: inner.Error(), Inner: inner}
}

// IsCode reports whether err matches the given error code.
func IsCode(err error, code ErrorCode) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}
