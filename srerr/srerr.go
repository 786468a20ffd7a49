// Package srerr defines the flat error taxonomy used across sysrepod. Every
// operation that can fail returns one of these codes wrapped in an Error, so
// callers can test for a specific condition with errors.As or CodeOf instead
// of matching error strings.
package srerr

import "fmt"

// Code is one of a fixed set of outcomes. There is no hierarchy; callers
// switch on the code directly.
type Code int

const (
	OK Code = iota
	InvalArg
	NoMem
	NotFound
	Internal
	Unauthorized
	MalformedMsg
	TimeOut
	Unsupported
	UnknownModel
	BadElement
	ValidationFailed
	DataMissing
	DataExists
	IO
	Locked
	CommitFailed
	Sys
)

var names = map[Code]string{
	OK:               "OK",
	InvalArg:         "INVAL_ARG",
	NoMem:            "NOMEM",
	NotFound:         "NOT_FOUND",
	Internal:         "INTERNAL",
	Unauthorized:     "UNAUTHORIZED",
	MalformedMsg:     "MALFORMED_MSG",
	TimeOut:          "TIME_OUT",
	Unsupported:      "UNSUPPORTED",
	UnknownModel:     "UNKNOWN_MODEL",
	BadElement:       "BAD_ELEMENT",
	ValidationFailed: "VALIDATION_FAILED",
	DataMissing:      "DATA_MISSING",
	DataExists:       "DATA_EXISTS",
	IO:               "IO",
	Locked:           "LOCKED",
	CommitFailed:     "COMMIT_FAILED",
	Sys:              "SYS",
}

func (c Code) String() string {
	if s, ok := names[c]; ok {
		return s
	}
	return "UNKNOWN"
}

// Error is the concrete error type returned by every package in this
// module. Path is optional context (the data-tree path the failure relates
// to) and is empty for errors that aren't path-scoped.
type Error struct {
	Code    Code
	Message string
	Path    string
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s (path=%s)", e.Code, e.Message, e.Path)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// New builds an Error with no path context.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// NewPath builds an Error scoped to a data-tree path.
func NewPath(code Code, path string, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Path: path}
}

// CodeOf extracts the Code from err, returning Internal for any error not
// produced by this package (defensive default for errors crossing a
// boundary this module doesn't control, e.g. the standard library).
func CodeOf(err error) Code {
	if err == nil {
		return OK
	}
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return Internal
}
