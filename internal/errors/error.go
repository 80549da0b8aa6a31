// Package errors provides structured errors with typed error codes.
//
// Error codes are grouped by concern:
//   - Pricing errors (100-199): invalid contract parameters or option kind
//   - History errors (200-299): not enough observations for a calculation
//   - Aggregate errors (300-399): mathematically undefined summary values
//   - Config errors (400-499)
//   - Data source errors (500-599)
//   - Report errors (600-699)
//
// Usage:
//
//	err := errors.Newf(errors.ErrCodeDomain, "spot must be > 0, got %v", s)
//	if errors.HasCode(err, errors.ErrCodeDomain) { ... }
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode identifies a class of failure.
type ErrorCode int

const (
	ErrCodeUnknown ErrorCode = 1

	ErrCodeDomain            ErrorCode = 100
	ErrCodeInvalidOptionType ErrorCode = 101

	ErrCodeInsufficientHistory ErrorCode = 200
	ErrCodeInsufficientData    ErrorCode = 201

	ErrCodeUndefinedAggregate ErrorCode = 300

	ErrCodeInvalidConfig ErrorCode = 400

	ErrCodeDataSource ErrorCode = 500

	ErrCodeReport ErrorCode = 600
)

var codeNames = map[ErrorCode]string{
	ErrCodeUnknown:             "Unknown",
	ErrCodeDomain:              "DomainError",
	ErrCodeInvalidOptionType:   "InvalidOptionType",
	ErrCodeInsufficientHistory: "InsufficientHistory",
	ErrCodeInsufficientData:    "InsufficientData",
	ErrCodeUndefinedAggregate:  "UndefinedAggregate",
	ErrCodeInvalidConfig:       "InvalidConfig",
	ErrCodeDataSource:          "DataSourceError",
	ErrCodeReport:              "ReportError",
}

// String returns the symbolic name of the code.
func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("ErrorCode(%d)", int(c))
}

// Error is a coded error with an optional cause.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// New creates a new Error with the given code and message.
func New(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a new Error with the given code and formatted message.
func Newf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps cause with a new Error carrying code and message.
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Wrapf wraps cause with a new Error carrying code and a formatted message.
func Wrapf(code ErrorCode, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// GetCode extracts the ErrorCode of the first *Error in err's chain.
// Returns ErrCodeUnknown if there is none.
func GetCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeUnknown
}

// HasCode checks whether any *Error in err's chain carries code.
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Code == code {
			return true
		}
		err = e.Cause
	}
	return false
}
