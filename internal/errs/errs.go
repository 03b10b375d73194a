// Package errs defines the closed error taxonomy shared by the resolver,
// store, registry client, and installer. Every failure that crosses a
// package boundary carries a Code so the CLI can render a precise message
// and callers can branch with errors.Is / errs.CodeOf.
package errs

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Code identifies a failure class.
type Code string

const (
	PackageNotFound    Code = "PACKAGE_NOT_FOUND"
	VersionNotFound    Code = "VERSION_NOT_FOUND"
	VersionConflict    Code = "VERSION_CONFLICT"
	VersionYanked      Code = "VERSION_YANKED"
	CircularDependency Code = "CIRCULAR_DEPENDENCY"
	NoCandidates       Code = "NO_CANDIDATES"
	ResolutionFailed   Code = "RESOLUTION_FAILED"
	IntegrityMismatch  Code = "INTEGRITY_MISMATCH"
	InvalidPackage     Code = "INVALID_PACKAGE"
	SecurityViolation  Code = "SECURITY_VIOLATION"
	StorageError       Code = "STORAGE_ERROR"
	NetworkError       Code = "NETWORK_ERROR"
	TimeoutError       Code = "TIMEOUT_ERROR"
)

// Error is a coded error with optional structured details.
type Error struct {
	Code    Code
	Message string
	Details map[string]string
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+"="+e.Details[k])
		}
		msg += " (" + strings.Join(parts, ", ") + ")"
	}
	return msg
}

// Unwrap exposes the underlying cause for errors.Is / errors.As chains.
func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error with the same code, so sentinel comparisons
// like errors.Is(err, &Error{Code: VersionConflict}) work.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Code == e.Code
	}
	return false
}

// New creates a coded error.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a coded error around an underlying cause.
func Wrap(code Code, err error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// WithDetail attaches a structured detail field and returns the error.
func (e *Error) WithDetail(key, value string) *Error {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// CodeOf extracts the Code from an error chain, or "" if none is present.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code Code) bool {
	return CodeOf(err) == code
}
