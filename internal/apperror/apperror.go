// Package apperror defines the error kinds the HTTP layer knows how to render.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrBadRequest      = errors.New("bad request")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrTooManyRequests = errors.New("too many requests")
)

// Context carries structured details rendered under error.context.
type Context map[string]any

// Error is a domain error with a client facing message.
type Error struct {
	Kind    error
	Message string
	Context Context
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func newError(kind error, msg string, ctx []Context) *Error {
	e := &Error{Kind: kind, Message: msg}
	if len(ctx) > 0 && len(ctx[0]) > 0 {
		e.Context = ctx[0]
	}
	return e
}

func BadRequest(msg string, ctx ...Context) *Error {
	return newError(ErrBadRequest, msg, ctx)
}

func Unauthorized(msg string, ctx ...Context) *Error {
	return newError(ErrUnauthorized, msg, ctx)
}

func Forbidden(msg string, ctx ...Context) *Error {
	return newError(ErrForbidden, msg, ctx)
}

func NotFound(msg string, ctx ...Context) *Error {
	return newError(ErrNotFound, msg, ctx)
}

func Conflict(msg string, ctx ...Context) *Error {
	return newError(ErrConflict, msg, ctx)
}

func TooManyRequests(msg string, ctx ...Context) *Error {
	return newError(ErrTooManyRequests, msg, ctx)
}

// As extracts the *Error from err's chain.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
