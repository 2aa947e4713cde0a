// Package apperr defines the error taxonomy shared by the storage facade,
// its backends and the backup codec.
//
// Every error carries a Code. Two errors match under errors.Is when their
// codes are equal, so callers test against the predefined sentinels:
//
//	if errors.Is(err, apperr.ErrNotFound) { ... }
package apperr

import (
	"errors"
	"fmt"
)

// Code classifies a failure.
type Code string

const (
	CodeUnknown            Code = "unknown"
	CodeValidation         Code = "validation"
	CodeNotFound           Code = "not_found"
	CodeInvalidBackend     Code = "invalid_backend"
	CodeBackendUnavailable Code = "backend_unavailable"
	CodeTransactionFailed  Code = "transaction_failed"
)

// Error is the application error type.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// New creates an error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates an error with the given code that wraps err.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// Predefined sentinels. Never mutate these; use the constructors below.
var (
	ErrValidation         = New(CodeValidation, "validation failed")
	ErrNotFound           = New(CodeNotFound, "resource not found")
	ErrInvalidBackend     = New(CodeInvalidBackend, "storage backend not available for mode")
	ErrBackendUnavailable = New(CodeBackendUnavailable, "storage backend could not be opened")
	ErrTransactionFailed  = New(CodeTransactionFailed, "storage transaction failed")
)

// NotFound reports a missing entity of the given kind.
func NotFound(kind, id string) *Error {
	return &Error{Code: CodeNotFound, Message: kind + " not found", Detail: id}
}

// Validation reports structurally invalid input.
func Validation(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: "validation failed", Detail: fmt.Sprintf(format, args...)}
}

// InvalidBackend reports a storage mode with no implementation.
func InvalidBackend(mode string) *Error {
	return &Error{Code: CodeInvalidBackend, Message: "no storage backend for mode", Detail: mode}
}

// BackendUnavailable wraps a failure to open or reach a backend.
func BackendUnavailable(backend string, err error) *Error {
	return &Error{Code: CodeBackendUnavailable, Message: "storage backend unavailable", Detail: backend, Err: err}
}

// TransactionFailed wraps an aborted or failed write.
func TransactionFailed(op string, err error) *Error {
	return &Error{Code: CodeTransactionFailed, Message: "storage transaction failed", Detail: op, Err: err}
}

// CodeOf returns the code of the first *Error in err's chain.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// Retryable reports whether repeating the operation may succeed.
// Only transaction failures qualify.
func Retryable(err error) bool {
	return CodeOf(err) == CodeTransactionFailed
}
