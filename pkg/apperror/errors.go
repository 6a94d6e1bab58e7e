// Package apperror defines the coded errors shared by the report service
// layers and their mapping onto HTTP responses.
package apperror

import (
	"errors"
	"fmt"
	"maps"
	"net/http"
)

// ErrorCode is the stable, machine-readable part of an error.
type ErrorCode string

const (
	CodeUnknownReportType ErrorCode = "UNKNOWN_REPORT_TYPE"
	CodeUnsupportedFormat ErrorCode = "UNSUPPORTED_FORMAT"
	CodeUnknownDimension  ErrorCode = "UNKNOWN_DIMENSION"
	CodeInvalidArgument   ErrorCode = "INVALID_ARGUMENT"
	CodeNotFound          ErrorCode = "NOT_FOUND"

	CodeFetchFailed      ErrorCode = "FETCH_FAILED"
	CodeRenderFailed     ErrorCode = "RENDER_FAILED"
	CodeCacheUnavailable ErrorCode = "CACHE_UNAVAILABLE"
	CodeRateLimited      ErrorCode = "RATE_LIMITED"
	CodeTimeout          ErrorCode = "TIMEOUT"
	CodeInternal         ErrorCode = "INTERNAL_ERROR"
)

type codeInfo struct {
	status int
	caller bool // the request itself is wrong, retrying it will not help
}

var codes = map[ErrorCode]codeInfo{
	CodeUnknownReportType: {http.StatusNotFound, true},
	CodeNotFound:          {http.StatusNotFound, true},
	CodeUnsupportedFormat: {http.StatusBadRequest, true},
	CodeUnknownDimension:  {http.StatusBadRequest, true},
	CodeInvalidArgument:   {http.StatusBadRequest, true},
	CodeRateLimited:       {http.StatusTooManyRequests, false},
	CodeFetchFailed:       {http.StatusBadGateway, false},
	CodeCacheUnavailable:  {http.StatusServiceUnavailable, false},
	CodeTimeout:           {http.StatusGatewayTimeout, false},
	CodeRenderFailed:      {http.StatusInternalServerError, false},
	CodeInternal:          {http.StatusInternalServerError, false},
}

// Error carries a code, a message safe to show to API clients, the
// offending input field if any, and the underlying cause.
type Error struct {
	Code    ErrorCode
	Message string
	Field   string
	Details map[string]any
	Cause   error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Field != "" {
		msg += " (field: " + e.Field + ")"
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

// HTTPStatus returns the response status for the code; unknown codes are 500.
func (e *Error) HTTPStatus() int {
	if info, ok := codes[e.Code]; ok {
		return info.status
	}
	return http.StatusInternalServerError
}

// WithField names the request parameter that caused the error.
func (e *Error) WithField(field string) *Error {
	e.Field = field
	return e
}

// WithDetails attaches structured context. The error is modified in place.
func (e *Error) WithDetails(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// DetailsCopy returns a copy of the details safe to hand to loggers.
func (e *Error) DetailsCopy() map[string]any {
	return maps.Clone(e.Details)
}

func New(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Newf(code ErrorCode, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap keeps cause reachable through errors.Is and errors.As.
func Wrap(cause error, code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// As finds the first *Error in the chain.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Is reports whether the chain holds an *Error with the given code.
func Is(err error, code ErrorCode) bool {
	appErr, ok := As(err)
	return ok && appErr.Code == code
}

// Code returns CodeInternal for errors that are not *Error.
func Code(err error) ErrorCode {
	if appErr, ok := As(err); ok {
		return appErr.Code
	}
	return CodeInternal
}

func HTTPStatus(err error) int {
	if appErr, ok := As(err); ok {
		return appErr.HTTPStatus()
	}
	return http.StatusInternalServerError
}

// Message hides the text of foreign errors behind a generic one.
func Message(err error) string {
	if appErr, ok := As(err); ok {
		return appErr.Message
	}
	return "internal error"
}

// IsCallerError reports whether err was caused by the request rather than
// by the service or its backends.
func IsCallerError(err error) bool {
	appErr, ok := As(err)
	return ok && codes[appErr.Code].caller
}
