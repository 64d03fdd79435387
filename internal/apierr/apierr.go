package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is the boundary error type: services return it, handlers map Status
// onto the HTTP response and Code into the error envelope.
type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// Validation covers missing or malformed request fields. Never retried.
func Validation(format string, args ...interface{}) *Error {
	return New(http.StatusBadRequest, "validation", fmt.Errorf(format, args...))
}

// NotFound names the field that failed to resolve (email, agent, chat).
func NotFound(field string) *Error {
	return New(http.StatusNotFound, "not_found", fmt.Errorf("%s not found", field))
}

func Unauthorized(format string, args ...interface{}) *Error {
	return New(http.StatusUnauthorized, "unauthorized", fmt.Errorf(format, args...))
}

// Upstream wraps assistant-provider failures: network, auth, run-failed,
// poll timeout. Surfaces as a 500 without crashing the host.
func Upstream(err error) *Error {
	return New(http.StatusInternalServerError, "upstream", err)
}

func Internal(err error) *Error {
	return New(http.StatusInternalServerError, "internal", err)
}

// From extracts an *Error from err's chain, defaulting to internal.
func From(err error) *Error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return Internal(err)
}

func IsNotFound(err error) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Code == "not_found"
}

func IsUpstream(err error) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Code == "upstream"
}
