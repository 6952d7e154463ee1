// Package common defines shared constants and sentinel errors used across
// the server layers. Callers should use errors.Is to match these values.
package common

import (
	"errors"
	"time"
)

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")
	ErrorConflict = errors.New("conflict")

	// Service-level errors.
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorBadRequest   = errors.New("bad request")
	ErrorRateLimited  = errors.New("rate limited")

	// Token errors. ErrTokenExpired is kept apart from ErrInvalidToken because
	// an expired access token can still be recovered with a refresh token.
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// Error is a domain failure carrying a client-facing message. Kind is one of
// the sentinels above, so errors.Is(err, common.ErrorConflict) keeps working.
type Error struct {
	Kind       error
	Msg        string
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return e.Kind.Error()
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// NewError wraps kind with a message shown to the client.
func NewError(kind error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// RateLimited returns an ErrorRateLimited failure that expires after retryAfter.
func RateLimited(msg string, retryAfter time.Duration) *Error {
	return &Error{Kind: ErrorRateLimited, Msg: msg, RetryAfter: retryAfter}
}

// Message returns the client-facing text of err: the Msg of a *Error,
// otherwise the error string itself.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Error()
	}
	return err.Error()
}
