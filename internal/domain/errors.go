package domain

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorKind is the caller-facing error category. Its string form is the stable
// machine-checkable code sent to clients.
type ErrorKind string

const (
	KindUnauthorized        ErrorKind = "UNAUTHORIZED"
	KindRateLimited         ErrorKind = "RATE_LIMITED"
	KindInvalidArgument     ErrorKind = "INVALID_ARGUMENT"
	KindNotFound            ErrorKind = "NOT_FOUND"
	KindFailedPrecondition  ErrorKind = "FAILED_PRECONDITION"
	KindUpstreamUnavailable ErrorKind = "UPSTREAM_UNAVAILABLE"
	KindInternal            ErrorKind = "INTERNAL"
)

// AppError is a structured application error with HTTP status code.
type AppError struct {
	Code    int       `json:"-"`
	Kind    ErrorKind `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`

	// RetryAfter, when set, tells the client how long to back off.
	RetryAfter time.Duration `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WithRetryAfter sets RetryAfter and returns e.
func (e *AppError) WithRetryAfter(d time.Duration) *AppError {
	e.RetryAfter = d
	return e
}

// Common error constructors.

func ErrUnauthorized(msg string) *AppError {
	return &AppError{Code: http.StatusUnauthorized, Kind: KindUnauthorized, Message: msg}
}

func ErrRateLimited(msg string) *AppError {
	return &AppError{Code: http.StatusTooManyRequests, Kind: KindRateLimited, Message: msg}
}

func ErrBadRequest(msg string) *AppError {
	return &AppError{Code: http.StatusBadRequest, Kind: KindInvalidArgument, Message: msg}
}

func ErrNotFound(msg string) *AppError {
	return &AppError{Code: http.StatusNotFound, Kind: KindNotFound, Message: msg}
}

func ErrFailedPrecondition(msg string) *AppError {
	return &AppError{Code: http.StatusConflict, Kind: KindFailedPrecondition, Message: msg}
}

func ErrUpstreamUnavailable(msg string, err error) *AppError {
	return &AppError{Code: http.StatusServiceUnavailable, Kind: KindUpstreamUnavailable, Message: msg, Err: err}
}

func ErrInternal(msg string, err error) *AppError {
	return &AppError{Code: http.StatusInternalServerError, Kind: KindInternal, Message: msg, Err: err}
}

// AsAppError attempts to extract an AppError from an error chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// KindOf returns the taxonomy kind of err, KindInternal for anything unclassified.
func KindOf(err error) ErrorKind {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Kind
	}
	return KindInternal
}
