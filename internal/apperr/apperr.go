package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies an error for transport mapping.
type Code string

const (
	CodeValidation       Code = "validation_error"
	CodeNotFound         Code = "not_found"
	CodeDependencyCycle  Code = "dependency_cycle"
	CodeConflict         Code = "conflict"
	CodeCapacityExceeded Code = "capacity_exceeded" // internal only; reaching a client indicates a scheduler bug
)

// Error is a structured application error: a machine-readable code, a
// human-readable message and optional contextual details (offending task
// id, cycle path, etc.).
type Error struct {
	Code    Code           `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// New creates an Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithDetail attaches a contextual detail and returns the same error.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// Validation creates a malformed-input error.
func Validation(format string, args ...any) *Error {
	return New(CodeValidation, format, args...)
}

// NotFound creates a missing-resource error.
func NotFound(format string, args ...any) *Error {
	return New(CodeNotFound, format, args...)
}

// DependencyCycle creates a cycle-detected error listing the task ids
// participating in the cycle.
func DependencyCycle(path []uint) *Error {
	return New(CodeDependencyCycle, "dependency cycle detected").WithDetail("cycle_path", path)
}

// Conflict creates a state-conflict error (archived task referenced,
// timer already running, and so on).
func Conflict(format string, args ...any) *Error {
	return New(CodeConflict, format, args...)
}

// CapacityExceeded signals a reservation past a day's remaining hours.
// It must be handled inside the scheduler and never surface.
func CapacityExceeded(date string, requested, remaining float64) *Error {
	return New(CodeCapacityExceeded, "reservation of %.2fh exceeds remaining %.2fh on %s", requested, remaining, date).
		WithDetail("date", date)
}

// HTTPStatus maps an error code to its HTTP response status.
func HTTPStatus(err error) int {
	var ae *Error
	if !errors.As(err, &ae) {
		return http.StatusInternalServerError
	}
	switch ae.Code {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeValidation, CodeDependencyCycle:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// As extracts an *Error from err, if present.
func As(err error) (*Error, bool) {
	var ae *Error
	ok := errors.As(err, &ae)
	return ae, ok
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code Code) bool {
	ae, ok := As(err)
	return ok && ae.Code == code
}
