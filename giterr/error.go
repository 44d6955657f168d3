// Package giterr implements the closed error taxonomy shared by every
// git-mind core component, in the style of go-git's plumbing.PermanentError:
// a small wrapper type with a stable code, a message and an optional cause
// chain, built on fmt.Errorf/%w rather than ad-hoc string matching.
package giterr

import (
	"errors"
	"fmt"
)

// Code is one member of the closed taxonomy described in spec §7.
type Code int

const (
	Unknown Code = iota
	InvalidArgument
	InvalidState
	NotFound
	AlreadyExists
	NotImplemented
	OutOfMemory
	BufferTooSmall
	IoFailed
	FileNotFound
	PathTooLong
	InvalidFormat
	InvalidLength
	InvalidType
	InvalidUtf8
	InvalidPath
	InvalidEdgeType
	CorruptStorage
)

func (c Code) String() string {
	switch c {
	case InvalidArgument:
		return "InvalidArgument"
	case InvalidState:
		return "InvalidState"
	case NotFound:
		return "NotFound"
	case AlreadyExists:
		return "AlreadyExists"
	case NotImplemented:
		return "NotImplemented"
	case OutOfMemory:
		return "OutOfMemory"
	case BufferTooSmall:
		return "BufferTooSmall"
	case IoFailed:
		return "IoFailed"
	case FileNotFound:
		return "FileNotFound"
	case PathTooLong:
		return "PathTooLong"
	case InvalidFormat:
		return "InvalidFormat"
	case InvalidLength:
		return "InvalidLength"
	case InvalidType:
		return "InvalidType"
	case InvalidUtf8:
		return "InvalidUtf8"
	case InvalidPath:
		return "InvalidPath"
	case InvalidEdgeType:
		return "InvalidEdgeType"
	case CorruptStorage:
		return "CorruptStorage"
	default:
		return "Unknown"
	}
}

// Error is the concrete error type returned by every core operation.
type Error struct {
	Code    Code
	Context string
	Cause   error
}

// New builds a root error with no cause.
func New(code Code, context string) *Error {
	return &Error{Code: code, Context: context}
}

// Wrap enriches a lower-level error with a short context string, the way
// journal append wraps "ref update non-fast-forward" into "journal append
// failed".
func Wrap(code Code, cause error, context string) *Error {
	return &Error{Code: code, Context: context, Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Context)
	}
	return fmt.Sprintf("%s: %s: %s", e.Code, e.Context, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target carries the same Code, matching errors.Is
// semantics so callers can write errors.Is(err, giterr.NotFound)-style
// checks against a sentinel built with New(code, "").
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// Format renders the full cause chain as a single string, the
// caller-visible behavior spec §7 delegates to "error_format".
func Format(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// CodeOf extracts the Code from err if it (or something in its chain) is a
// *Error, otherwise Unknown.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return Unknown
}

// Is reports whether err's chain contains an *Error with the given code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}
