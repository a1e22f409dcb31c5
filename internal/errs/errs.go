// Package errs classifies failures for the notes API. Every error that
// reaches a transport is reduced to a Code, which picks the HTTP status
// or the MCP tool error code, and a message that is safe to show a client.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is the client-visible class of an error.
type Code string

const (
	InvalidArgument   Code = "invalid_argument"
	NotFound          Code = "not_found"
	ResourceExhausted Code = "resource_exhausted"
	Internal          Code = "internal"
)

// InternalMessage replaces the message of every internal error sent to a client.
const InternalMessage = "Internal server error"

var statusByCode = map[Code]int{
	InvalidArgument:   http.StatusBadRequest,
	NotFound:          http.StatusNotFound,
	ResourceExhausted: http.StatusTooManyRequests,
	Internal:          http.StatusInternalServerError,
}

// Error carries a Code, a client message, and an optional cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e == nil:
		return ""
	case e.Message != "" && e.Err != nil && e.Code == Internal:
		return e.Message + ": " + e.Err.Error()
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New returns an error of class code.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf is New with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap returns an error of class code that keeps cause for errors.Is and logs.
func Wrap(code Code, message string, cause error) error {
	return &Error{Code: code, Message: message, Err: cause}
}

func coded(err error) (*Error, bool) {
	var e *Error
	if err == nil || !errors.As(err, &e) || e == nil {
		return nil, false
	}
	return e, true
}

// CodeOf returns the class of err. Untyped and nil errors are Internal.
func CodeOf(err error) Code {
	if e, ok := coded(err); ok && e.Code != "" {
		return e.Code
	}
	return Internal
}

// Is reports whether err is of class code.
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// MessageOf returns what a client may see for err. Anything internal,
// untyped, or without a message becomes InternalMessage.
func MessageOf(err error) string {
	e, ok := coded(err)
	if !ok || e.Message == "" || CodeOf(err) == Internal {
		return InternalMessage
	}
	return e.Message
}

// HTTPStatus maps code to a response status; unknown codes are 500.
func HTTPStatus(code Code) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
