// Package errors provides structured errors for perfkit.
// Every error carries a code for programmatic handling, optional context
// and a short stack trace.
package errors

import (
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strings"
)

// Code identifies an error class.
type Code string

const (
	// Input errors (1xx)
	CodeSourceUnavailable    Code = "E101"
	CodeInvalidFormat        Code = "E103"
	CodeMissingRequiredField Code = "E104"

	// Processing errors (2xx)
	CodeMalformedRecord Code = "E201"
	CodeEmptySeries     Code = "E202"
	CodeInvalidArgument Code = "E203"

	// Output errors (3xx)
	CodeWriteFailed Code = "E301"

	// System errors (4xx)
	CodeContextCanceled Code = "E401"

	// Query engine errors (5xx)
	CodeQueryFailed Code = "E502"

	CodeUnknown Code = "E999"
)

// Sentinels for errors.Is. Matching is by code only.
var (
	ErrSourceUnavailable    = &Error{Code: CodeSourceUnavailable}
	ErrInvalidFormat        = &Error{Code: CodeInvalidFormat}
	ErrMissingRequiredField = &Error{Code: CodeMissingRequiredField}
	ErrMalformedRecord      = &Error{Code: CodeMalformedRecord}
	ErrEmptySeries          = &Error{Code: CodeEmptySeries}
	ErrInvalidArgument      = &Error{Code: CodeInvalidArgument}
	ErrQueryFailed          = &Error{Code: CodeQueryFailed}
)

// Error is the base error type for all perfkit errors.
type Error struct {
	Code       Code
	Message    string
	Cause      error
	Context    map[string]interface{}
	StackTrace []Frame
}

// Frame represents a stack frame.
type Frame struct {
	Function string
	File     string
	Line     int
}

// Error implements the error interface.
func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		sb.WriteString(" (")
		for i, k := range keys {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		sb.WriteString(")")
	}

	if e.Cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Cause.Error())
	}

	return sb.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches a target error.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WithContext adds context to the error.
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// New creates a new Error.
func New(code Code, message string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		StackTrace: captureStack(2),
	}
}

// Newf creates a new Error with a formatted message.
func Newf(code Code, format string, args ...interface{}) *Error {
	return &Error{
		Code:       code,
		Message:    fmt.Sprintf(format, args...),
		StackTrace: captureStack(2),
	}
}

// Wrap wraps an existing error with additional context.
func Wrap(err error, code Code, message string) *Error {
	if err == nil {
		return nil
	}

	return &Error{
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: captureStack(2),
	}
}

// Wrapf wraps an error with a formatted message.
func Wrapf(err error, code Code, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:       code,
		Message:    fmt.Sprintf(format, args...),
		Cause:      err,
		StackTrace: captureStack(2),
	}
}

// captureStack captures the current stack trace.
func captureStack(skip int) []Frame {
	var frames []Frame
	pcs := make([]uintptr, 32)
	n := runtime.Callers(skip+1, pcs)
	pcs = pcs[:n]

	cf := runtime.CallersFrames(pcs)
	for {
		frame, more := cf.Next()
		frames = append(frames, Frame{
			Function: frame.Function,
			File:     frame.File,
			Line:     frame.Line,
		})
		if !more || len(frames) >= 10 {
			break
		}
	}
	return frames
}

// FormatStack returns a formatted stack trace.
func (e *Error) FormatStack() string {
	var sb strings.Builder
	for _, f := range e.StackTrace {
		sb.WriteString(fmt.Sprintf("  at %s\n    %s:%d\n", f.Function, f.File, f.Line))
	}
	return sb.String()
}

// --- Convenience constructors ---

// MalformedRecord reports a perf log line that failed structural decode.
// line is 1-based.
func MalformedRecord(line int, reason string, cause error) *Error {
	e := &Error{
		Code:       CodeMalformedRecord,
		Message:    "malformed record: " + reason,
		Cause:      cause,
		StackTrace: captureStack(2),
	}
	return e.WithContext("line", line)
}

// EmptySeries reports a statistical operation called on zero-length input.
func EmptySeries(operation string) *Error {
	return New(CodeEmptySeries, "empty series").WithContext("operation", operation)
}

// MissingRequiredField reports a snapshot document missing a required key.
// location is a JSON pointer to the object that lacks the field.
func MissingRequiredField(field, location string) *Error {
	return New(CodeMissingRequiredField, "missing required field").
		WithContext("field", field).
		WithContext("location", location)
}

// InvalidArgument reports a configuration or parameter outside its domain.
func InvalidArgument(name string, value interface{}, reason string) *Error {
	return New(CodeInvalidArgument, "invalid "+name+": "+reason).
		WithContext("value", value)
}

// SourceUnavailable reports an input that could not be opened.
func SourceUnavailable(uri string, cause error) *Error {
	return Wrap(cause, CodeSourceUnavailable, "source unavailable").WithContext("uri", uri)
}

// ContextCanceled creates a cancellation error.
func ContextCanceled(operation string) *Error {
	return New(CodeContextCanceled, "operation canceled").
		WithContext("operation", operation)
}

// --- Error checking utilities ---

// IsCode checks if an error has a specific code.
func IsCode(err error, code Code) bool {
	var pkErr *Error
	if errors.As(err, &pkErr) {
		return pkErr.Code == code
	}
	return false
}

// GetCode extracts the error code from an error.
func GetCode(err error) Code {
	var pkErr *Error
	if errors.As(err, &pkErr) {
		return pkErr.Code
	}
	return CodeUnknown
}

// LineOf returns the line number of a malformed-record error.
func LineOf(err error) (int, bool) {
	var pkErr *Error
	if !errors.As(err, &pkErr) || pkErr.Code != CodeMalformedRecord {
		return 0, false
	}
	line, ok := pkErr.Context["line"].(int)
	return line, ok
}

// MultiError collects multiple errors.
type MultiError struct {
	Errors []error
}

// Error implements the error interface.
func (m *MultiError) Error() string {
	if len(m.Errors) == 0 {
		return "no errors"
	}
	if len(m.Errors) == 1 {
		return m.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d errors occurred:\n", len(m.Errors)))
	for i, err := range m.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (m *MultiError) Unwrap() []error {
	return m.Errors
}

// Add adds an error to the collection.
func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

// Len returns the number of collected errors.
func (m *MultiError) Len() int {
	return len(m.Errors)
}

// HasErrors returns true if any errors were collected.
func (m *MultiError) HasErrors() bool {
	return len(m.Errors) > 0
}

// Combined returns nil if no errors, the single error if one, or the MultiError.
func (m *MultiError) Combined() error {
	switch len(m.Errors) {
	case 0:
		return nil
	case 1:
		return m.Errors[0]
	default:
		return m
	}
}
