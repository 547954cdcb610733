// Package errors provides structured error handling for lakeflow
package errors

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeInternal represents internal system errors
	ErrorTypeInternal ErrorType = "internal"
	// ErrorTypeValidation represents validation errors
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeTimeout represents timeout errors
	ErrorTypeTimeout ErrorType = "timeout"
	// ErrorTypeConnection represents connection errors
	ErrorTypeConnection ErrorType = "connection"
	// ErrorTypeConfig represents a missing or invalid setting, detected before any I/O
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeData represents data processing errors
	ErrorTypeData ErrorType = "data"
	// ErrorTypeQuery represents query execution errors
	ErrorTypeQuery ErrorType = "query"
	// ErrorTypeSourceUnavailable represents an HTTP source failure or timeout
	ErrorTypeSourceUnavailable ErrorType = "source_unavailable"
	// ErrorTypeStorageWrite represents a bucket or object operation failure
	ErrorTypeStorageWrite ErrorType = "storage_write"
	// ErrorTypeStagingLoad represents a schema or insert failure in the staging zone
	ErrorTypeStagingLoad ErrorType = "staging_load"
	// ErrorTypeExportQuery represents a per-table query, serialize or upload failure during export
	ErrorTypeExportQuery ErrorType = "export_query"
)

// Error represents a structured error with context
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
	Stack   []StackFrame
}

// StackFrame represents a single frame in the call stack
type StackFrame struct {
	Function string
	File     string
	Line     int
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a key-value detail to the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new error with the given type and message
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Stack:   captureStack(2),
	}
}

// Newf creates a new error with a formatted message
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(2),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}

	// If already our error type, preserve the stack
	var existingErr *Error
	if errors.As(err, &existingErr) {
		return &Error{
			Type:    errType,
			Message: message,
			Cause:   err,
			Stack:   existingErr.Stack,
		}
	}

	return &Error{
		Type:    errType,
		Message: message,
		Cause:   err,
		Stack:   captureStack(2),
	}
}

// IsRetryable returns true if the error is worth retrying by the scheduler.
// Nothing inside lakeflow retries; the answer is only surfaced in logs.
func IsRetryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}

	switch e.Type {
	case ErrorTypeTimeout, ErrorTypeConnection, ErrorTypeSourceUnavailable, ErrorTypeStorageWrite:
		return true
	default:
		return false
	}
}

// IsType checks if the error, or any error it wraps, is of the given type
func IsType(err error, errType ErrorType) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Type == errType {
			return true
		}
		err = e.Cause
	}
	return false
}

// TypeOf returns the outermost ErrorType of err, or ErrorTypeInternal for foreign errors
func TypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeInternal
}

// captureStack captures the current call stack
func captureStack(skip int) []StackFrame {
	const maxFrames = 32
	frames := make([]StackFrame, 0, maxFrames)

	for i := skip; i < maxFrames+skip; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}

		frames = append(frames, StackFrame{
			Function: fn.Name(),
			File:     file,
			Line:     line,
		})
	}

	return frames
}
